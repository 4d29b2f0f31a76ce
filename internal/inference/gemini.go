package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClassifier labels tokens with a Gemini multimodal model.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier creates the GenAI client. Credentials come from the
// standard GOOGLE_API_KEY / GOOGLE_CLOUD_PROJECT environment.
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

func (g *GeminiClassifier) Name() string { return "gemini" }

// Classify sends the page image and token list in a single request.
func (g *GeminiClassifier) Classify(ctx context.Context, in Input) ([]int, error) {
	prompt, err := buildPrompt(in.Tokens)
	if err != nil {
		return nil, err
	}
	png, err := encodePNG(in.Image)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "image/png",
						Data:     png,
					},
				},
			},
		},
	}

	temperature := float32(0)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	return parseLabels(resp.Text(), len(in.Tokens))
}
