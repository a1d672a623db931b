// Package ai wraps the language-model providers behind one small interface.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"viajeia-backend/config"
)

// Generator produces text for a prompt.
type Generator interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
	// Stream sends chunks until the reply ends, then closes the channel. A
	// reply cut short by the provider ends with a Chunk carrying Err.
	Stream(ctx context.Context, prompt string) (<-chan Chunk, error)
}

// Chunk is one piece of a streamed reply. Err is set only on the last one.
type Chunk struct {
	Text string
	Err  error
}

var (
	ErrNotConfigured   = errors.New("proveedor de IA no configurado")
	ErrModelNotAllowed = errors.New("modelo no permitido")
	ErrEmptyResponse   = errors.New("La respuesta del modelo está vacía o en formato inesperado")
)

// ConfigError reports a missing API key.
type ConfigError struct {
	Provider string
	EnvVar   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("API key de %s no configurada. Por favor, configura la variable de entorno %s.", e.Provider, e.EnvVar)
}

func (e *ConfigError) Is(target error) bool { return target == ErrNotConfigured }

// ModelError reports a Gemini model outside the free tier.
type ModelError struct {
	Model string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("Modelo '%s' NO permitido. Solo se permiten modelos GRATUITOS de Gemini. Modelos permitidos: %s. Los modelos Pro son de pago y NO están permitidos.",
		e.Model, strings.Join(FreeModels, ", "))
}

func (e *ModelError) Is(target error) bool { return target == ErrModelNotAllowed }

// FreeModels lists the Gemini models known to be free. CheckFreeModel also
// accepts any other "flash" model.
var FreeModels = []string{
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-2.0-flash-lite",
	"gemini-flash-latest",
	"gemini-pro-latest",
}

// CheckFreeModel rejects paid Gemini models.
func CheckFreeModel(model string) error {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.Contains(m, "flash") || m == "gemini-pro-latest" || m == "models/gemini-pro-latest" {
		return nil
	}
	return &ModelError{Model: model}
}

// sanitizeKey trims whitespace and one pair of matching surrounding quotes,
// which .env files often leave on secrets.
func sanitizeKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return s
}

// New builds the generator selected by cfg.LLMProvider. A missing key or a
// disallowed model does not fail startup: the returned generator reports the
// problem on every call so the HTTP layer can answer with it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.LLMProvider {
	case "openai":
		key := sanitizeKey(cfg.OpenAIAPIKey)
		if key == "" {
			logger.Warn("OPENAI_API_KEY not set, LLM calls will fail")
			return &Disabled{provider: "openai", model: cfg.OpenAIModel, err: &ConfigError{Provider: "OpenAI", EnvVar: "OPENAI_API_KEY"}}, nil
		}
		logger.Info("llm provider ready", zap.String("provider", "openai"), zap.String("model", cfg.OpenAIModel), zap.String("key", config.Mask(key)))
		return NewOpenAI(key, cfg.OpenAIModel, ""), nil
	default:
		key := sanitizeKey(cfg.GeminiAPIKey)
		if key == "" {
			logger.Warn("GEMINI_API_KEY not set, LLM calls will fail")
			return &Disabled{provider: "gemini", model: cfg.GeminiModel, err: &ConfigError{Provider: "Gemini", EnvVar: "GEMINI_API_KEY"}}, nil
		}
		if err := CheckFreeModel(cfg.GeminiModel); err != nil {
			logger.Error("gemini model rejected", zap.String("model", cfg.GeminiModel))
			return &Disabled{provider: "gemini", model: cfg.GeminiModel, err: err}, nil
		}
		g, err := NewGemini(ctx, key, cfg.GeminiModel, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("llm provider ready", zap.String("provider", "gemini"), zap.String("model", cfg.GeminiModel), zap.String("key", config.Mask(key)))
		return g, nil
	}
}

// Disabled is a Generator that always fails with a fixed error.
type Disabled struct {
	provider string
	model    string
	err      error
}

// Ready returns the configuration error of a Disabled generator, nil otherwise.
func Ready(g Generator) error {
	if d, ok := g.(*Disabled); ok {
		return d.err
	}
	return nil
}

func (d *Disabled) Name() string  { return d.provider }
func (d *Disabled) Model() string { return d.model }

func (d *Disabled) Generate(ctx context.Context, prompt string) (string, error) {
	return "", d.err
}

func (d *Disabled) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	return nil, d.err
}
