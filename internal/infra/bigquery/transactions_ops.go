package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	documentsTable    = "extracted_documents"
	transactionsTable = "extracted_transactions"
)

// ExportDocument inserts the document row, then its transaction rows.
func (s *BigQuerySink) ExportDocument(ctx context.Context, doc DocumentExport) error {
	now := time.Now().UTC()

	docRow := BuildDocumentRow(doc, now)
	if err := s.client.Dataset(s.dataset).Table(documentsTable).Inserter().Put(ctx, docRow); err != nil {
		return fmt.Errorf("ExportDocument: inserting document row: %w", err)
	}

	rows := BuildTransactionRows(doc, now)
	if len(rows) == 0 {
		return nil
	}
	if err := s.client.Dataset(s.dataset).Table(transactionsTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("ExportDocument: inserting transactions: %w", err)
	}
	return nil
}

// QueryTransactionsByDocument reads the transactions of one document.
func (s *BigQuerySink) QueryTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			document_id,
			statement_page_no,
			statement_line_no,
			raw_date,
			transaction_date,
			raw_description,
			amount,
			currency,
			status,
			created_ts
		FROM %s.%s
		WHERE document_id = @document_id
		ORDER BY statement_page_no, statement_line_no
	`, s.dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDocument: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDocument: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// ListDocuments reads the most recently processed documents.
func (s *BigQuerySink) ListDocuments(ctx context.Context, limit int) ([]*DocumentRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		ORDER BY processed_ts DESC
		LIMIT @limit
	`, s.dataset, documentsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: query read: %w", err)
	}

	var rows []*DocumentRow
	for {
		var r DocumentRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
