package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// buildPrompt asks a multimodal model to label each token with the BIO schema.
func buildPrompt(tokens []Token) (string, error) {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("encode tokens: %w", err)
	}

	var b strings.Builder
	b.WriteString("You label words on a bank statement page for token classification.\n\n")
	b.WriteString("The attached image is the page. Each token below has its text and its box as [x0, y0, x1, y1] on a 0-1000 grid.\n\n")
	b.WriteString("Allowed labels:\n")
	for _, l := range Labels {
		b.WriteString("  - " + l + "\n")
	}
	b.WriteString("\nDATE is the transaction date, DESC the description, AMOUNT the signed amount with currency, STATUS the settlement status. Everything else is O.\n")
	b.WriteString("Use B- for the first word of a field and I- for the following words.\n\n")
	b.WriteString("Tokens:\n")
	b.Write(payload)
	b.WriteString("\n\nReturn ONLY a JSON object of the form {\"labels\": [\"O\", ...]} with exactly one label per token, in token order.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	return b.String(), nil
}

type labelResponse struct {
	Labels []string `json:"labels"`
}

// parseLabels decodes a model reply into label ids and checks it covers
// every token.
func parseLabels(raw string, tokens int) ([]int, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var resp labelResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if len(resp.Labels) != tokens {
		return nil, fmt.Errorf("got %d labels for %d tokens", len(resp.Labels), tokens)
	}
	return labelIDs(resp.Labels)
}

// cleanModelJSON strips Markdown fences and any prose around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return ""
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no page image")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}
