package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EndpointClassifier calls a hosted token-classification model over HTTP,
// such as a Hugging Face Inference Endpoint serving LayoutLMv3.
type EndpointClassifier struct {
	url    string
	token  string
	client *http.Client
}

// NewEndpointClassifier creates a classifier for url. token, when set, is
// sent as a bearer credential.
func NewEndpointClassifier(url, token string, client *http.Client) *EndpointClassifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointClassifier{url: url, token: token, client: client}
}

func (e *EndpointClassifier) Name() string { return "endpoint" }

type endpointRequest struct {
	Image string   `json:"image"`
	Words []string `json:"words"`
	Boxes [][4]int `json:"boxes"`
}

type endpointResponse struct {
	Predictions []int `json:"predictions"`
}

// Classify posts the page and returns the predicted label ids.
func (e *EndpointClassifier) Classify(ctx context.Context, in Input) ([]int, error) {
	png, err := encodePNG(in.Image)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(endpointRequest{
		Image: base64.StdEncoding.EncodeToString(png),
		Words: Words(in.Tokens),
		Boxes: Boxes(in.Tokens),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out endpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Predictions, nil
}
