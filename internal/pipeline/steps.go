package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/inference"
	"github.com/dvloznov/statement-extractor/internal/preprocess"
	"github.com/dvloznov/statement-extractor/internal/render"
)

// PageStep represents a single step in the per-page chain.
type PageStep interface {
	Execute(ctx context.Context, state *PageState) error
}

// PageState holds the shared state across all steps for one page.
type PageState struct {
	Page         render.Page
	Image        image.Image
	Prediction   inference.Prediction
	Text         string
	Transactions []domain.Transaction
	Metadata     domain.DocumentMetadata
}

// Result freezes the state into the page's result.
func (s *PageState) Result() PageResult {
	txs := s.Transactions
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return PageResult{
		Page:         s.Page.Number,
		Transactions: txs,
		Metadata:     s.Metadata,
		Prediction:   s.Prediction,
	}
}

// PreprocessStep prepares the page image for the classifier.
type PreprocessStep struct{}

func (s *PreprocessStep) Execute(ctx context.Context, state *PageState) error {
	state.Image = preprocess.Preprocess(state.Page.Image)
	return nil
}

// InferStep runs the token classifier. It never fails; a failed inference
// leaves a degraded prediction on the state.
type InferStep struct {
	Classifier inference.Classifier
	Log        zerolog.Logger
}

func (s *InferStep) Execute(ctx context.Context, state *PageState) error {
	in := inference.NewInput(state.Image, state.Page.Blocks, state.Page.Width, state.Page.Height)
	state.Prediction = inference.Infer(ctx, s.Classifier, in, s.Log.With().Int("page", state.Page.Number).Logger())
	return nil
}

// ExtractStep applies the statement layout to the page text. Model
// predictions are not consulted.
type ExtractStep struct {
	Layout extract.Layout
}

func (s *ExtractStep) Execute(ctx context.Context, state *PageState) error {
	state.Text = extract.JoinBlocks(state.Page.Texts())
	state.Transactions = s.Layout.Transactions(state.Text)
	state.Metadata = s.Layout.Metadata(state.Text)
	return nil
}

// PagePipeline executes a sequence of steps in order.
type PagePipeline struct {
	steps []PageStep
}

// NewPagePipeline creates a new pipeline with the given steps.
func NewPagePipeline(steps ...PageStep) *PagePipeline {
	return &PagePipeline{steps: steps}
}

// Execute runs all steps sequentially.
func (p *PagePipeline) Execute(ctx context.Context, state *PageState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("page %d: step %d failed: %w", state.Page.Number, i+1, err)
		}
	}
	return nil
}

// NewStatementPagePipeline creates the standard preprocess, infer, extract chain.
func NewStatementPagePipeline(classifier inference.Classifier, layout extract.Layout, log zerolog.Logger) *PagePipeline {
	return NewPagePipeline(
		&PreprocessStep{},
		&InferStep{Classifier: classifier, Log: log},
		&ExtractStep{Layout: layout},
	)
}
