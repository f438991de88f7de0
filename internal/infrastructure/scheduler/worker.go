package scheduler

import (
	"context"
	"time"

	"mercata-core-vendor-layer/internal/application"

	"github.com/rs/zerolog"
)

// Worker runs the incremental sync sweep on a fixed interval. It exists so
// counters stay warm without any caller traffic; every sweep is bounded by
// the sync engine's own per-shop budgets and failure isolation.
type Worker struct {
	sync     *application.SyncService
	interval time.Duration
	timeout  time.Duration
	opts     application.SyncOptions
	stop     chan struct{}
	logger   zerolog.Logger
}

// NewWorker creates a sweep worker. interval <= 0 yields a worker whose
// Start is a no-op.
func NewWorker(sync *application.SyncService, interval time.Duration, opts application.SyncOptions, logger zerolog.Logger) *Worker {
	return &Worker{
		sync:     sync,
		interval: interval,
		timeout:  10 * time.Minute,
		opts:     opts,
		stop:     make(chan struct{}),
		logger:   logger,
	}
}

// Start launches the sweep loop in its own goroutine.
func (w *Worker) Start() {
	if w.interval <= 0 {
		w.logger.Info().Msg("Periodic sync disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.sweepOnce()
			}
		}
	}()
	w.logger.Info().Dur("interval", w.interval).Msg("Periodic sync started")
}

// Stop halts the sweep loop. A sweep already in flight completes.
func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	results, err := w.sync.RunIncrementalSync(ctx, nil, w.opts)
	if err != nil {
		w.logger.Error().Err(err).Msg("Periodic sync sweep failed")
		return
	}
	var processed, failed int
	for _, res := range results {
		processed += res.Processed
		if res.Error != "" {
			failed++
		}
	}
	w.logger.Info().
		Int("shops", len(results)).
		Int("processed", processed).
		Int("failed", failed).
		Msg("Periodic sync sweep completed")
}
