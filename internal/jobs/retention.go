package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically removes finished jobs older than a retention window.
type Sweeper struct {
	cron      *cron.Cron
	store     JobStore
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewSweeper creates a sweeper. It does nothing until Start is called.
func NewSweeper(store JobStore, retention time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:      cron.New(),
		store:     store,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Start schedules the sweep with a cron schedule such as "@every 10m".
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("schedule job sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Dur("retention", s.retention).Msg("Job retention sweeper started")
	return nil
}

// Stop halts scheduling and returns a context that is done once a running
// sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep removes expired jobs once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("Job retention sweep failed")
		return 0
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("Expired jobs removed")
	}
	return removed
}
