package render

import "errors"

// ErrNotPDF is wrapped by DocumentParseError when the input lacks a PDF header.
var ErrNotPDF = errors.New("input is not a PDF document")

// ErrEmptyDocument is wrapped by DocumentParseError for zero-length input.
var ErrEmptyDocument = errors.New("empty document")

// DocumentParseError reports input that could not be opened as a PDF.
// It is fatal for the request that supplied the document.
type DocumentParseError struct {
	Err error
}

func (e *DocumentParseError) Error() string {
	return "parse pdf document: " + e.Err.Error()
}

func (e *DocumentParseError) Unwrap() error {
	return e.Err
}

// IsDocumentParseError reports whether err is or wraps a DocumentParseError.
func IsDocumentParseError(err error) bool {
	var target *DocumentParseError
	return errors.As(err, &target)
}
