package handlers

import (
	"net/http"
)

// NewRouter registers every endpoint. metrics may be nil.
func NewRouter(extraction *ExtractionHandler, jobsHandler *JobsHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /process-pdf", extraction.ProcessPDF)

	mux.HandleFunc("POST /api/jobs", jobsHandler.CreateJob)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/jobs/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJobResult(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /health", Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}
