package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/ingest"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/render"
)

// uploadField is the multipart field carrying the statement.
const uploadField = "file"

// multipartMemory is how much of a form is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// Ingester extracts an uploaded statement.
type Ingester interface {
	Ingest(ctx context.Context, st ingest.Statement) (*ingest.Outcome, error)
}

// ExtractionHandler handles synchronous statement extraction.
type ExtractionHandler struct {
	ingester  Ingester
	maxUpload int64
	log       zerolog.Logger
}

// NewExtractionHandler creates a new extraction handler.
func NewExtractionHandler(ingester Ingester, maxUpload int64, log zerolog.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		ingester:  ingester,
		maxUpload: maxUpload,
		log:       log,
	}
}

// ProcessPDF handles POST /process-pdf?format=json|csv
func (h *ExtractionHandler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOr(ctx, h.log)

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	up, uerr := readUpload(w, r, h.maxUpload)
	if uerr != nil {
		middleware.WriteError(w, uerr.status, uerr.message)
		return
	}

	out, err := h.ingester.Ingest(ctx, ingest.Statement{Filename: up.filename, Data: up.data})
	if err != nil {
		if render.IsDocumentParseError(err) {
			log.Warn().Err(err).Str("filename", up.filename).Msg("Rejected unparseable statement")
			middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not parse PDF document")
			return
		}
		log.Error().Err(err).Str("filename", up.filename).Msg("Failed to process statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process statement")
		return
	}

	w.Header().Set("X-Document-ID", out.DocumentID)
	writeResult(w, format, out.Results, log)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	maxUpload int64
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, maxUpload int64, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		maxUpload: maxUpload,
		log:       log,
	}
}

// CreateJob handles POST /api/jobs
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOr(ctx, h.log)

	up, uerr := readUpload(w, r, h.maxUpload)
	if uerr != nil {
		middleware.WriteError(w, uerr.status, uerr.message)
		return
	}

	job := &jobs.ExtractionJob{
		DocumentID: uuid.New().String(),
		Filename:   up.filename,
		PDF:        up.data,
	}

	if err := h.publisher.PublishExtraction(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is shutting down")
			return
		}
		log.Error().Err(err).Msg("Failed to enqueue extraction job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue extraction job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("document_id", job.DocumentID).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": job.DocumentID,
		"status":      string(jobs.JobStatusPending),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// GetJobResult handles GET /api/jobs/{id}/result?format=json|csv
func (h *JobsHandler) GetJobResult(w http.ResponseWriter, r *http.Request, jobID string) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}

	if job.Status != jobs.JobStatusCompleted {
		middleware.WriteError(w, http.StatusConflict, fmt.Sprintf("Job is %s", job.Status))
		return
	}

	writeResult(w, format, job.Result, logger.FromContextOr(r.Context(), h.log))
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", filter.Status))
		return
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request, jobID string) (*jobs.ExtractionJob, bool) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	return job, true
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type upload struct {
	filename string
	data     []byte
}

// uploadError is a rejected upload and the status to answer with.
type uploadError struct {
	status  int
	message string
}

// readUpload reads the statement from the multipart body.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (upload, *uploadError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			return upload{}, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", maxBytes)}
		}
		return upload{}, &uploadError{http.StatusBadRequest, "Expected a multipart form with a file field"}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return upload{}, &uploadError{http.StatusBadRequest, "Missing file field"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, &uploadError{http.StatusBadRequest, "Failed to read uploaded file"}
	}

	if !render.LooksLikePDF(data) {
		return upload{}, &uploadError{http.StatusUnprocessableEntity, "Uploaded file is not a PDF"}
	}

	return upload{filename: filepath.Base(header.Filename), data: data}, nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// writeResult encodes results in format. CSV is served as an attachment.
func writeResult(w http.ResponseWriter, format export.Format, results []pipeline.PageResult, log zerolog.Logger) {
	w.Header().Set("Content-Type", format.ContentType())
	if format == export.FormatCSV {
		w.Header().Set("Content-Disposition", "attachment; filename="+export.CSVFilename)
	}
	w.WriteHeader(http.StatusOK)

	if err := export.Write(w, format, results); err != nil {
		log.Error().Err(err).Str("format", string(format)).Msg("Failed to write result")
	}
}
