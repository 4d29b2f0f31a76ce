package gcsuploader

import (
	"context"
)

// StorageService archives statement PDFs and reads them back.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// StorePDF uploads a statement under its document ID and returns its gs:// URI.
	StorePDF(ctx context.Context, documentID string, data []byte) (string, error)

	// FetchFromGCS downloads file bytes from the given gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Ensure Archive implements StorageService.
var _ StorageService = (*Archive)(nil)
