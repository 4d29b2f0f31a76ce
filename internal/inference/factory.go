package inference

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-extractor/internal/config"
)

// New builds the classifier selected by cfg.Backend. It is called once at
// startup and the result is shared by all requests.
func New(ctx context.Context, cfg config.ModelConfig) (Classifier, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return Disabled{}, nil
	case config.BackendGemini:
		c, err := NewGeminiClassifier(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendOpenAI:
		return NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.BackendEndpoint:
		return NewEndpointClassifier(cfg.EndpointURL, cfg.HuggingFaceToken, nil), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
