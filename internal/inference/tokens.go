package inference

import (
	"strings"

	"github.com/dvloznov/statement-extractor/internal/render"
)

// MaxTokens is the maximum sequence length accepted by the layout model.
const MaxTokens = 512

// Token is a single word with the normalized box of the block it came from.
type Token struct {
	Text string `json:"text"`
	Box  [4]int `json:"box"`
}

// BuildTokens splits every block into whitespace-separated words. Each word
// carries its block's box scaled to the 0..1000 grid of a width x height page.
// The sequence is truncated to MaxTokens.
func BuildTokens(blocks []render.TextBlock, width, height float64) []Token {
	var tokens []Token
	for _, b := range blocks {
		box := b.Box.Normalize(width, height)
		for _, word := range strings.Fields(b.Text) {
			if len(tokens) == MaxTokens {
				return tokens
			}
			tokens = append(tokens, Token{Text: word, Box: box})
		}
	}
	return tokens
}

// Words returns the token texts.
func Words(tokens []Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}

// Boxes returns the token boxes.
func Boxes(tokens []Token) [][4]int {
	boxes := make([][4]int, len(tokens))
	for i, t := range tokens {
		boxes[i] = t.Box
	}
	return boxes
}
