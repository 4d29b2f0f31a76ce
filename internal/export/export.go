// Package export writes extraction results as JSON or CSV.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// CSVFilename is the attachment name used when serving CSV.
const CSVFilename = "transactions.csv"

// ParseFormat accepts "json", "csv" or empty (JSON).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q: must be json or csv", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Envelope is the JSON document returned for a processed statement.
type Envelope struct {
	Result []pipeline.PageResult `json:"result"`
}

// Write encodes results in format f.
func Write(w io.Writer, f Format, results []pipeline.PageResult) error {
	if f == FormatCSV {
		return WriteCSV(w, results)
	}
	return WriteJSON(w, results)
}

// WriteJSON writes {"result": [...]}.
func WriteJSON(w io.Writer, results []pipeline.PageResult) error {
	if results == nil {
		results = []pipeline.PageResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{Result: results}); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes a header row and one row per transaction across all pages,
// in page order, with no page markers.
func WriteCSV(w io.Writer, results []pipeline.PageResult) error {
	txs := pipeline.Transactions(results)
	if txs == nil {
		txs = []domain.Transaction{}
	}
	if err := gocsv.Marshal(txs, w); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}
