// Package config loads process configuration from a YAML or JSON file,
// overlaid with AQUEDUCT_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override file settings.
const EnvPrefix = "AQUEDUCT_"

// Config is the complete process configuration.
type Config struct {
	// Workspace names the persisted graph served by this process.
	Workspace string `mapstructure:"workspace" validate:"required"`
	// Palette and Rules point at YAML files replacing the embedded defaults.
	Palette string `mapstructure:"palette"`
	Rules   string `mapstructure:"rules"`

	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type BackendConfig struct {
	DefaultModel     string        `mapstructure:"default_model" validate:"required"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url" validate:"omitempty,url"`
	GeminiAPIKey     string        `mapstructure:"gemini_api_key"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold" validate:"min=1"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" validate:"gt=0"`
	// CacheTTL enables the response cache when positive.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`
	// StaticResponse, when set, answers every model from this file.
	StaticResponse string `mapstructure:"static_response"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=memory redis"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"min=0"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl" validate:"min=0"`

	// EncryptionKey (hex or base64, 32 bytes) seals persisted graphs with
	// AES-256-GCM. Fallback keys still decrypt during rotation.
	EncryptionKey          string   `mapstructure:"encryption_key"`
	EncryptionFallbackKeys []string `mapstructure:"encryption_fallback_keys"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"workspace": "default",
		"server": map[string]interface{}{
			"addr":         ":8080",
			"cors_origins": []interface{}{"*"},
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
		"backend": map[string]interface{}{
			"default_model":     "gpt-4o-mini",
			"timeout":           "60s",
			"breaker_threshold": 5,
			"breaker_cooldown":  "30s",
			"cache_ttl":         "0s",
		},
		"storage": map[string]interface{}{
			"driver": "memory",
			"prefix": "aqueduct:workspace:",
		},
	}
}

// fallbackEnv maps conventional provider variables onto config keys. They
// apply only when the AQUEDUCT_ form is absent.
var fallbackEnv = map[string][2]string{
	"OPENAI_API_KEY": {"backend", "openai_api_key"},
	"GEMINI_API_KEY": {"backend", "gemini_api_key"},
	"GOOGLE_API_KEY": {"backend", "gemini_api_key"},
	"REDIS_ADDR":     {"storage", "redis_addr"},
}

// Default returns the configuration used when no file or environment is set.
func Default() *Config {
	cfg, err := build(defaults())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path (optional) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Environ())
}

// LoadWithEnv reads path (optional) and overlays env, given as KEY=VALUE
// pairs. The file format is chosen by extension: .json, otherwise YAML.
func LoadWithEnv(path string, env []string) (*Config, error) {
	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		file := make(map[string]interface{})
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &file)
		} else {
			err = yaml.Unmarshal(data, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		merge(raw, file)
	}

	overlayEnv(raw, env)
	return build(raw)
}

func build(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst[k].(map[string]interface{}); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// overlayEnv applies AQUEDUCT_<SECTION>_<KEY> and AQUEDUCT_<KEY> variables.
func overlayEnv(raw map[string]interface{}, env []string) {
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	for envKey, target := range fallbackEnv {
		v, ok := vars[envKey]
		if !ok || v == "" {
			continue
		}
		if _, set := vars[EnvPrefix+strings.ToUpper(target[0]+"_"+target[1])]; set {
			continue
		}
		section(raw, target[0])[target[1]] = v
	}

	for k, v := range vars {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
		placed := false
		for sec, val := range raw {
			if _, ok := val.(map[string]interface{}); !ok {
				continue
			}
			if key, ok := strings.CutPrefix(name, sec+"_"); ok {
				section(raw, sec)[key] = v
				placed = true
				break
			}
		}
		if !placed {
			raw[name] = v
		}
	}
}

func section(raw map[string]interface{}, name string) map[string]interface{} {
	m, ok := raw[name].(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
		raw[name] = m
	}
	return m
}

var validate = validator.New()

// Validate checks struct tags and reports every failing field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validation error: %w", err)
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, formatValidationError(e))
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func formatValidationError(e validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", field, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", field, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s'", field, e.Tag())
	}
}
