package bigquery

import (
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-extractor/internal/inference"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
)

// statementDateLayout matches dates such as "15 March, 2024".
const statementDateLayout = "02 January, 2006"

// DocumentExport is everything written to the warehouse for one statement.
type DocumentExport struct {
	DocumentID       string
	Filename         string
	GCSURI           string
	Layout           string
	InferenceBackend string
	Currency         string
	Results          []pipeline.PageResult
}

// ParseStatementDate parses a printed transaction date. Runs of whitespace
// between the parts are tolerated.
func ParseStatementDate(s string) (civil.Date, bool) {
	t, err := time.Parse(statementDateLayout, strings.Join(strings.Fields(s), " "))
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// BuildDocumentRow summarizes an export. Header metadata is taken from the
// first page that has it.
func BuildDocumentRow(doc DocumentExport, now time.Time) *DocumentRow {
	row := &DocumentRow{
		DocumentID:       doc.DocumentID,
		OriginalFilename: doc.Filename,
		GCSURI:           bigquery.NullString{StringVal: doc.GCSURI, Valid: doc.GCSURI != ""},
		Layout:           doc.Layout,
		PageCount:        int64(len(doc.Results)),
		InferenceBackend: doc.InferenceBackend,
		ProcessedTS:      now,
	}

	for _, r := range doc.Results {
		row.TransactionCount += int64(len(r.Transactions))
		if r.Prediction.Outcome() == inference.OutcomeDegraded {
			row.DegradedPageCount++
		}
		if !row.AccountHolder.Valid && r.Metadata.AccountHolder != "" {
			row.AccountHolder = bigquery.NullString{StringVal: r.Metadata.AccountHolder, Valid: true}
		}
		if !row.Period.Valid && r.Metadata.Period != "" {
			row.Period = bigquery.NullString{StringVal: r.Metadata.Period, Valid: true}
		}
	}
	return row
}

// BuildTransactionRows flattens all pages into warehouse rows in page order.
func BuildTransactionRows(doc DocumentExport, now time.Time) []*TransactionRow {
	currency := doc.Currency
	if currency == "" {
		currency = "USD"
	}

	var rows []*TransactionRow
	for _, r := range doc.Results {
		for i, tx := range r.Transactions {
			row := &TransactionRow{
				TransactionID:   uuid.NewString(),
				DocumentID:      doc.DocumentID,
				StatementPageNo: int64(r.Page),
				StatementLineNo: int64(i + 1),
				RawDate:         tx.Date,
				RawDescription:  tx.Description,
				Amount:          tx.Amount.Rat(),
				Currency:        currency,
				Status:          string(tx.Status),
				CreatedTS:       now,
			}
			if d, ok := ParseStatementDate(tx.Date); ok {
				row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
			}
			rows = append(rows, row)
		}
	}
	return rows
}
