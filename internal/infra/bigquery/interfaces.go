package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// TransactionSink provides warehouse operations for extracted statements.
// This interface enables mocking and testing of the warehouse export.
type TransactionSink interface {
	// ExportDocument writes the document summary and all its transactions.
	ExportDocument(ctx context.Context, doc DocumentExport) error

	// QueryTransactionsByDocument returns the stored transactions of a document in statement order.
	QueryTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error)

	// ListDocuments returns the most recently processed documents.
	ListDocuments(ctx context.Context, limit int) ([]*DocumentRow, error)
}

// BigQuerySink is the concrete implementation of TransactionSink. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type BigQuerySink struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewBigQuerySink creates a sink writing to dataset in project.
func NewBigQuerySink(ctx context.Context, project, dataset string) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: creating client: %w", err)
	}
	return &BigQuerySink{
		client:  client,
		project: project,
		dataset: dataset,
	}, nil
}

// Close closes the BigQuery client connection.
func (s *BigQuerySink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ensure BigQuerySink implements TransactionSink.
var _ TransactionSink = (*BigQuerySink)(nil)
