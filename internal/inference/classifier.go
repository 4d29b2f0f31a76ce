package inference

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/render"
)

// Input is everything a classifier sees for one page.
type Input struct {
	Image  image.Image
	Tokens []Token
}

// NewInput builds the classifier input for a page from its preprocessed
// image and its text blocks.
func NewInput(img image.Image, blocks []render.TextBlock, width, height float64) Input {
	return Input{Image: img, Tokens: BuildTokens(blocks, width, height)}
}

// Classifier assigns a label id to each token of a page. Implementations must
// be safe for concurrent use.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, in Input) ([]int, error)
}

// ErrDisabled is returned by classifiers that never run a model.
var ErrDisabled = errors.New("inference disabled")

// InferenceError wraps a classifier failure.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference (%s): %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Outcome names of a Prediction, used in logs and metrics.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeSkipped  = "skipped"
)

// Prediction is the best-effort result of classifying one page. Labels is
// empty when the page was skipped or inference degraded; Err is set only
// when degraded.
type Prediction struct {
	Labels   []int
	Skipped  bool
	Degraded bool
	Err      *InferenceError
}

// Outcome returns one of OutcomeOK, OutcomeDegraded or OutcomeSkipped.
func (p Prediction) Outcome() string {
	switch {
	case p.Degraded:
		return OutcomeDegraded
	case p.Skipped:
		return OutcomeSkipped
	default:
		return OutcomeOK
	}
}

// Infer classifies one page and never fails: pages without tokens are
// skipped without calling the classifier, and classifier errors, panics or
// labels outside the schema yield a degraded prediction logged as a warning.
func Infer(ctx context.Context, c Classifier, in Input, log zerolog.Logger) Prediction {
	if c == nil || len(in.Tokens) == 0 {
		return Prediction{Skipped: true}
	}

	labels, err := classify(ctx, c, in)
	if errors.Is(err, ErrDisabled) {
		return Prediction{Skipped: true}
	}
	if err == nil {
		err = validateLabels(labels)
	}
	if err != nil {
		ierr := &InferenceError{Backend: c.Name(), Err: err}
		log.Warn().Err(ierr).Int("tokens", len(in.Tokens)).Msg("Model inference failed, continuing without predictions")
		return Prediction{Degraded: true, Err: ierr}
	}

	return Prediction{Labels: labels}
}

func classify(ctx context.Context, c Classifier, in Input) (labels []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels = nil
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return c.Classify(ctx, in)
}

func validateLabels(labels []int) error {
	for i, id := range labels {
		if id < 0 || id >= NumLabels {
			return fmt.Errorf("label id %d at position %d outside schema of %d labels", id, i, NumLabels)
		}
	}
	return nil
}

// Disabled is the classifier used when no model backend is configured.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Classify(context.Context, Input) ([]int, error) {
	return nil, ErrDisabled
}
