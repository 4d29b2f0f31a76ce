package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// DocumentRow records one processed statement in <dataset>.extracted_documents.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED

	OriginalFilename string              `bigquery:"original_filename"` // NULLABLE
	GCSURI           bigquery.NullString `bigquery:"gcs_uri"`           // NULLABLE

	Layout string `bigquery:"layout"` // REQUIRED

	AccountHolder bigquery.NullString `bigquery:"account_holder"` // NULLABLE
	Period        bigquery.NullString `bigquery:"period"`         // NULLABLE

	PageCount        int64 `bigquery:"page_count"`        // REQUIRED
	TransactionCount int64 `bigquery:"transaction_count"` // REQUIRED

	InferenceBackend  string `bigquery:"inference_backend"`   // REQUIRED
	DegradedPageCount int64  `bigquery:"degraded_page_count"` // REQUIRED

	ProcessedTS time.Time `bigquery:"processed_ts"` // REQUIRED
}
