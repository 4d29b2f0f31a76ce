package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// TransactionRow is one extracted statement line in
// <dataset>.extracted_transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	DocumentID    string `bigquery:"document_id"`    // REQUIRED

	StatementPageNo int64 `bigquery:"statement_page_no"` // REQUIRED, 1-based
	StatementLineNo int64 `bigquery:"statement_line_no"` // REQUIRED, 1-based within the page

	RawDate         string            `bigquery:"raw_date"`         // REQUIRED, as printed
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE when the date does not parse

	RawDescription string `bigquery:"raw_description"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED

	Status string `bigquery:"status"` // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
