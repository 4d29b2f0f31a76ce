// Package ingest runs one uploaded statement through extraction and the
// optional archive and warehouse.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/infra/bigquery"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/metrics"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
)

// DocumentProcessor extracts per-page results from PDF bytes.
type DocumentProcessor interface {
	Process(ctx context.Context, data []byte) ([]pipeline.PageResult, error)
}

// Statement is one uploaded PDF.
type Statement struct {
	DocumentID string
	Filename   string
	Data       []byte
}

// Outcome is what ingesting a statement produced.
type Outcome struct {
	DocumentID string
	ArchiveURI string
	Results    []pipeline.PageResult
}

// Deps are the collaborators of a Service. Archive, Sink and Metrics are optional.
type Deps struct {
	Processor DocumentProcessor
	Archive   gcsuploader.StorageService
	Sink      bigquery.TransactionSink
	Metrics   *metrics.Recorder

	// Layout and Backend are recorded with warehouse rows.
	Layout  string
	Backend string
}

// Service extracts statements. Archiving and warehouse export are best
// effort: their failures are logged and counted but never fail the call.
type Service struct {
	deps Deps
	log  zerolog.Logger
}

// NewService creates a Service.
func NewService(deps Deps, log zerolog.Logger) *Service {
	return &Service{deps: deps, log: log}
}

// Ingest extracts st. Statements that cannot be parsed are neither archived
// nor exported, and the *render.DocumentParseError is returned.
func (s *Service) Ingest(ctx context.Context, st Statement) (*Outcome, error) {
	if st.DocumentID == "" {
		st.DocumentID = uuid.New().String()
	}
	log := logger.FromContextOr(ctx, s.log).With().Str("document_id", st.DocumentID).Logger()
	ctx = logger.WithContext(ctx, log)

	results, err := s.deps.Processor.Process(ctx, st.Data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", st.DocumentID, err)
	}

	out := &Outcome{DocumentID: st.DocumentID, Results: results}
	out.ArchiveURI = s.archive(ctx, st, log)
	s.export(ctx, st, out, log)
	return out, nil
}

func (s *Service) archive(ctx context.Context, st Statement, log zerolog.Logger) string {
	if s.deps.Archive == nil {
		return ""
	}
	uri, err := s.deps.Archive.StorePDF(ctx, st.DocumentID, st.Data)
	if err != nil {
		s.deps.Metrics.ArchiveFailed()
		log.Warn().Err(err).Msg("Failed to archive statement")
		return ""
	}
	log.Info().Str("gcs_uri", uri).Msg("Statement archived")
	return uri
}

func (s *Service) export(ctx context.Context, st Statement, out *Outcome, log zerolog.Logger) {
	if s.deps.Sink == nil {
		return
	}
	err := s.deps.Sink.ExportDocument(ctx, bigquery.DocumentExport{
		DocumentID:       out.DocumentID,
		Filename:         st.Filename,
		GCSURI:           out.ArchiveURI,
		Layout:           s.deps.Layout,
		InferenceBackend: s.deps.Backend,
		Results:          out.Results,
	})
	if err != nil {
		s.deps.Metrics.WarehouseFailed()
		log.Warn().Err(err).Msg("Failed to export statement to warehouse")
		return
	}
	log.Info().Int("transactions", len(pipeline.Transactions(out.Results))).Msg("Statement exported to warehouse")
}
