package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/ingest"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/render"
)

var samplePDF = []byte("%PDF-1.4\n%fake body\n")

// MockIngester is a mock implementation of Ingester.
type MockIngester struct {
	IngestFunc func(ctx context.Context, st ingest.Statement) (*ingest.Outcome, error)
	calls      int
}

func (m *MockIngester) Ingest(ctx context.Context, st ingest.Statement) (*ingest.Outcome, error) {
	m.calls++
	return m.IngestFunc(ctx, st)
}

// MockPublisher is a mock implementation of jobs.Publisher that saves jobs
// without running them.
type MockPublisher struct {
	store jobs.JobStore
	err   error
}

func (m *MockPublisher) PublishExtraction(ctx context.Context, job *jobs.ExtractionJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = "job-" + job.DocumentID[:8]
	job.Status = jobs.JobStatusPending
	job.CreatedAt = time.Now().UTC()
	return m.store.SaveJob(ctx, job)
}

func (m *MockPublisher) Close() error { return nil }

func sampleResults() []pipeline.PageResult {
	return []pipeline.PageResult{
		{
			Page: 1,
			Transactions: []domain.Transaction{{
				Date:        "15 March, 2024",
				Description: "Grocery Store",
				Amount:      domain.NewAmount(decimal.RequireFromString("-42.50")),
				Status:      domain.StatusCompleted,
			}},
			Metadata: domain.DocumentMetadata{AccountHolder: "John Smith"},
		},
		{
			Page: 2,
			Transactions: []domain.Transaction{{
				Date:        "16 March, 2024",
				Description: "Salary",
				Amount:      domain.NewAmount(decimal.RequireFromString("2000.00")),
				Status:      domain.StatusCanceled,
			}},
		},
	}
}

func okIngester() *MockIngester {
	return &MockIngester{IngestFunc: func(ctx context.Context, st ingest.Statement) (*ingest.Outcome, error) {
		return &ingest.Outcome{DocumentID: "doc-1", Results: sampleResults()}, nil
	}}
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestRouter(ingester Ingester, store jobs.JobStore, publisher jobs.Publisher, maxUpload int64) http.Handler {
	log := zerolog.Nop()
	return NewRouter(
		NewExtractionHandler(ingester, maxUpload, log),
		NewJobsHandler(store, publisher, maxUpload, log),
		nil,
	)
}

func postFile(t *testing.T, h http.Handler, target string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", "statement.pdf", data)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProcessPDF_JSON(t *testing.T) {
	ingester := okIngester()
	h := newTestRouter(ingester, inmemory.NewStore(), nil, 1<<20)

	rec := postFile(t, h, "/process-pdf", samplePDF)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "doc-1", rec.Header().Get("X-Document-ID"))

	var body struct {
		Result []struct {
			Page         int                        `json:"page"`
			Transactions []map[string]interface{}   `json:"transactions"`
			Metadata     map[string]json.RawMessage `json:"metadata"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Result, 2)
	assert.Equal(t, 1, body.Result[0].Page)
	assert.Equal(t, -42.5, body.Result[0].Transactions[0]["amount"])
	assert.Equal(t, "Completed", body.Result[0].Transactions[0]["status"])
	assert.Contains(t, body.Result[0].Metadata, "account_holder")
	assert.NotContains(t, body.Result[0].Metadata, "period")
	assert.Empty(t, body.Result[1].Metadata)
}

func TestProcessPDF_CSV(t *testing.T) {
	h := newTestRouter(okIngester(), inmemory.NewStore(), nil, 1<<20)

	rec := postFile(t, h, "/process-pdf?format=csv", samplePDF)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=transactions.csv", rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,description,amount,status", lines[0])
	assert.Equal(t, `"15 March, 2024",Grocery Store,-42.5,Completed`, lines[1])
}

func TestProcessPDF_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		build      func(t *testing.T) *http.Request
		ingestErr  error
		wantStatus int
		wantCalls  int
	}{
		{
			name: "unknown format",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "file", "a.pdf", samplePDF)
				req := httptest.NewRequest(http.MethodPost, "/process-pdf?format=xml", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing file field",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "document", "a.pdf", samplePDF)
				req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			build: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/process-pdf", bytes.NewReader(samplePDF))
				req.Header.Set("Content-Type", "application/pdf")
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not a pdf",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "file", "a.png", []byte("\x89PNG\r\n\x1a\n"))
				req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "unparseable pdf",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "file", "a.pdf", samplePDF)
				req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			ingestErr:  &render.DocumentParseError{Err: errors.New("broken xref")},
			wantStatus: http.StatusUnprocessableEntity,
			wantCalls:  1,
		},
		{
			name: "internal failure",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "file", "a.pdf", samplePDF)
				req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			ingestErr:  context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := &MockIngester{IngestFunc: func(ctx context.Context, st ingest.Statement) (*ingest.Outcome, error) {
				if tt.ingestErr != nil {
					return nil, tt.ingestErr
				}
				return &ingest.Outcome{Results: sampleResults()}, nil
			}}
			h := newTestRouter(ingester, inmemory.NewStore(), nil, 1<<20)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.build(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalls, ingester.calls)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestProcessPDF_TooLarge(t *testing.T) {
	ingester := okIngester()
	h := newTestRouter(ingester, inmemory.NewStore(), nil, 512)

	rec := postFile(t, h, "/process-pdf", append(samplePDF, bytes.Repeat([]byte("x"), 4096)...))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, ingester.calls)
}

func TestJobs_Lifecycle(t *testing.T) {
	store := inmemory.NewStore()
	h := newTestRouter(okIngester(), store, &MockPublisher{store: store}, 1<<20)

	rec := postFile(t, h, "/api/jobs", samplePDF)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	jobID := created["job_id"]
	require.NotEmpty(t, jobID)
	assert.NotEmpty(t, created["document_id"])
	assert.Equal(t, "pending", created["status"])

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec = get("/api/jobs/" + jobID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "%PDF")

	rec = get("/api/jobs/" + jobID + "/result")
	assert.Equal(t, http.StatusConflict, rec.Code)

	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	job.Status = jobs.JobStatusCompleted
	job.Result = sampleResults()
	require.NoError(t, store.SaveJob(context.Background(), job))

	rec = get("/api/jobs/" + jobID + "/result?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=transactions.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "\n"))

	rec = get("/api/jobs/" + jobID + "/result")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result"`)

	rec = get("/api/jobs?status=completed")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestJobs_Errors(t *testing.T) {
	store := inmemory.NewStore()
	h := newTestRouter(okIngester(), store, &MockPublisher{store: store, err: jobs.ErrQueueClosed}, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=done", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postFile(t, h, "/api/jobs", samplePDF)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(okIngester(), inmemory.NewStore(), nil, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}
