// Package pipeline turns statement PDFs into per-page extraction results.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/inference"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/metrics"
	"github.com/dvloznov/statement-extractor/internal/render"
)

// PageResult is the extraction result of one page. Prediction is kept for
// callers that want the model signal but is not serialized.
type PageResult struct {
	Page         int                     `json:"page"`
	Transactions []domain.Transaction    `json:"transactions"`
	Metadata     domain.DocumentMetadata `json:"metadata"`
	Prediction   inference.Prediction    `json:"-"`
}

// Transactions flattens the transactions of all pages in page order.
func Transactions(results []PageResult) []domain.Transaction {
	var all []domain.Transaction
	for _, r := range results {
		all = append(all, r.Transactions...)
	}
	return all
}

// PageSource walks the pages of a document.
type PageSource interface {
	Walk(ctx context.Context, data []byte, fn render.PageFunc) error
}

// Processor runs the page chain over every page of a document.
type Processor struct {
	pages   PageSource
	chain   *PagePipeline
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewProcessor wires a processor. classifier is shared by all calls and must
// be safe for concurrent use; rec may be nil.
func NewProcessor(pages PageSource, classifier inference.Classifier, layout extract.Layout, rec *metrics.Recorder, log zerolog.Logger) *Processor {
	return &Processor{
		pages:   pages,
		chain:   NewStatementPagePipeline(classifier, layout, log),
		metrics: rec,
		log:     log,
	}
}

// Process extracts one result per page, in page order. Pages are processed
// one at a time. A document that cannot be parsed yields a
// *render.DocumentParseError; inference problems never fail the call.
func (p *Processor) Process(ctx context.Context, data []byte) ([]PageResult, error) {
	log := logger.FromContextOr(ctx, p.log)
	start := time.Now()

	var results []PageResult
	err := p.pages.Walk(ctx, data, func(ctx context.Context, page render.Page) error {
		state := &PageState{Page: page}
		if err := p.chain.Execute(ctx, state); err != nil {
			return err
		}

		res := state.Result()
		results = append(results, res)

		p.metrics.PageProcessed(len(res.Transactions), res.Prediction.Outcome())
		log.Debug().
			Int("page", res.Page).
			Int("blocks", len(page.Blocks)).
			Int("transactions", len(res.Transactions)).
			Str("inference", res.Prediction.Outcome()).
			Msg("Page processed")
		return nil
	})
	if err != nil {
		if render.IsDocumentParseError(err) {
			p.metrics.DocumentRejected("parse")
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info().Int("pages_done", len(results)).Msg("Document processing canceled")
		}
		return nil, err
	}

	if results == nil {
		results = []PageResult{}
	}

	elapsed := time.Since(start)
	p.metrics.ObserveDocument(elapsed)
	log.Info().
		Int("pages", len(results)).
		Int("transactions", len(Transactions(results))).
		Dur("duration", elapsed).
		Msg("Document processed")
	return results, nil
}
