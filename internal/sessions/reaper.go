package sessions

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/researchagent/internal/observability"
)

// Reaper periodically evicts idle session engines so a long-running
// process does not accumulate one engine per session ever seen. It touches
// engines only; transcripts stay on disk.
type Reaper struct {
	registry *Registry
	logger   *observability.Logger
	maxIdle  time.Duration
	cron     *cron.Cron
}

// NewReaper builds a reaper over registry. maxIdle <= 0 falls back to 24h.
func NewReaper(registry *Registry, maxIdle time.Duration, logger *observability.Logger) *Reaper {
	if maxIdle <= 0 {
		maxIdle = 24 * time.Hour
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	return &Reaper{
		registry: registry,
		logger:   logger,
		maxIdle:  maxIdle,
		cron:     cron.New(),
	}
}

// Start schedules the sweep every ten minutes.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc("@every 10m", func() {
		if evicted := r.registry.EvictIdle(r.maxIdle); evicted > 0 {
			r.logger.Info(context.Background(), "evicted idle session engines", "count", evicted)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
