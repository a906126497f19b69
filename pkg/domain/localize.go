package domain

import (
	"errors"
	"fmt"
)

// MsgInvalidRequest is the message returned for an inbound request that lacks
// nodes, edges or a model selector.
const MsgInvalidRequest = `Неверный формат JSON: ожидается объект с полями "nodes" и "edges" (массивы) и ИИ-модель.`

// MsgInvalidResponse is the message returned when the backend answer lacks
// suggestions or the modified graph.
const MsgInvalidResponse = "Неверный ответ от ИИ: ожидается объект с suggestions (массив) и modified (объект с nodes и edges)."

// Localize renders err as a user-facing Russian message.
// Unknown errors fall back to their Go error text.
func Localize(err error) string {
	if err == nil {
		return ""
	}

	var (
		unknownKind *UnknownKindError
		dangling    *DanglingReferenceError
		duplicate   *DuplicateIDError
		schema      *SchemaError
		upstream    *UpstreamError
		validation  *ValidationError
	)

	switch {
	case errors.As(err, &unknownKind):
		return fmt.Sprintf("Неизвестный тип компонента %q: допускаются только типы из палитры.", unknownKind.Kind)
	case errors.As(err, &dangling):
		return fmt.Sprintf("Связь %q ссылается на несуществующий узел %q.", dangling.EdgeID, dangling.NodeID)
	case errors.As(err, &duplicate):
		if duplicate.Entity == EntityEdge {
			return fmt.Sprintf("Повторяющийся идентификатор связи %q.", duplicate.ID)
		}
		return fmt.Sprintf("Повторяющийся идентификатор узла %q.", duplicate.ID)
	case errors.Is(err, ErrNonScalar):
		return "Значения свойств должны быть строками или числами."
	case errors.As(err, &schema):
		if schema.Field != "" {
			return fmt.Sprintf("%s Отсутствует или неверно задано поле %q.", MsgInvalidResponse, schema.Field)
		}
		return MsgInvalidResponse
	case errors.Is(err, ErrMalformedResponse):
		return "Не удалось разобрать ответ ИИ как JSON."
	case errors.As(err, &upstream):
		if upstream.Timeout {
			return "Превышено время ожидания ответа от ИИ-модели."
		}
		return "Ошибка при обращении к ИИ-модели."
	case errors.As(err, &validation):
		if validation.Msg != "" {
			return validation.Msg
		}
		return MsgInvalidRequest
	case errors.Is(err, ErrSuperseded):
		return "Запрос устарел: уже выполняется более новый запрос."
	case errors.Is(err, ErrNotFound):
		return "Элемент не найден."
	default:
		return err.Error()
	}
}
