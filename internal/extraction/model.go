package extraction

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned when a hosted model is constructed without a credential
var ErrMissingAPIKey = errors.New("llm api key is required")

// Model is a language model that answers a prompt with text. Implementations are
// asked for JSON matching schema and must sample deterministically (temperature 0).
type Model interface {
	// Generate sends the prompt and returns the model's reply
	Generate(ctx context.Context, prompt string, schema map[string]any) (string, error)
	// Name identifies the backend and model in logs
	Name() string
	// Close releases the client
	Close() error
}
