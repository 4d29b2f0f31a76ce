package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClassifier labels tokens with an OpenAI vision chat model.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier creates a classifier for the given key and model.
func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	return NewOpenAIClassifierWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIClassifierWithConfig allows a custom base URL or HTTP client.
func NewOpenAIClassifierWithConfig(cfg openai.ClientConfig, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIClassifier) Name() string { return "openai" }

// Classify sends the page as a data URL alongside the token list.
func (o *OpenAIClassifier) Classify(ctx context.Context, in Input) ([]int, error) {
	prompt, err := buildPrompt(in.Tokens)
	if err != nil {
		return nil, err
	}
	png, err := encodePNG(in.Image)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		// A zero temperature is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) != 1 {
		return nil, fmt.Errorf("unexpected number of choices: %d", len(resp.Choices))
	}

	return parseLabels(resp.Choices[0].Message.Content, len(in.Tokens))
}
