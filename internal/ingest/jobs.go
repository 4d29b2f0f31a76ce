package ingest

import (
	"context"

	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
)

// HandleJob is a jobs.JobHandler that ingests the job's uploaded PDF and
// stores the outcome on the job.
func (s *Service) HandleJob(ctx context.Context, job *jobs.ExtractionJob) error {
	log := logger.FromContextOr(ctx, s.log).With().Str("job_id", job.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	out, err := s.Ingest(ctx, Statement{
		DocumentID: job.DocumentID,
		Filename:   job.Filename,
		Data:       job.PDF,
	})
	if err != nil {
		return err
	}

	job.ArchiveURI = out.ArchiveURI
	job.Result = out.Results
	job.Pages = len(out.Results)
	job.Transactions = len(pipeline.Transactions(out.Results))
	return nil
}
