package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown kind", &UnknownKindError{Kind: "volcano"}, `Неизвестный тип компонента "volcano": допускаются только типы из палитры.`},
		{"dangling", &DanglingReferenceError{EdgeID: "e1", End: "target", NodeID: "Z"}, `Связь "e1" ссылается на несуществующий узел "Z".`},
		{"duplicate edge", &DuplicateIDError{Entity: EntityEdge, ID: "e1"}, `Повторяющийся идентификатор связи "e1".`},
		{"validation default", &ValidationError{Field: "edges"}, MsgInvalidRequest},
		{"schema without field", &SchemaError{}, MsgInvalidResponse},
		{"timeout", &UpstreamError{Backend: "openai", Timeout: true, Err: context.DeadlineExceeded}, "Превышено время ожидания ответа от ИИ-модели."},
		{"wrapped superseded", fmt.Errorf("commit: %w", ErrSuperseded), "Запрос устарел: уже выполняется более новый запрос."},
		{"fallback", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Localize(tt.err))
		})
	}
}

func TestSchemaError_WrapsCause(t *testing.T) {
	err := &SchemaError{Err: &DanglingReferenceError{EdgeID: "e1", End: "source", NodeID: "X"}}
	assert.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, err, ErrDanglingReference)
	assert.Equal(t, `Связь "e1" ссылается на несуществующий узел "X".`, Localize(err))
}

func TestUpstreamError_Unwrap(t *testing.T) {
	err := &UpstreamError{Backend: "gemini", Timeout: true, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
