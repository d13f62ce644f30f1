package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes rooms that have been idle or finished for too long and
// reports how many it removed.
type Sweeper interface {
	CleanupStale(ctx context.Context) int
}

type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	log      zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewWorker(sweeper Sweeper, interval time.Duration, log zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Worker{
		sweeper:  sweeper,
		interval: interval,
		log:      log.With().Str("component", "cleanup").Logger(),
	}
}

// Start runs one sweep right away, then one per interval until Stop or ctx
// ends. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		w.runCleanup(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runCleanup(ctx)
			}
		}
	}()
	w.log.Info().Dur("interval", w.interval).Msg("background worker started")
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Worker) runCleanup(ctx context.Context) {
	removed := w.sweeper.CleanupStale(ctx)
	if removed > 0 {
		w.log.Info().Int("rooms", removed).Msg("removed stale rooms")
		return
	}
	w.log.Debug().Msg("nothing to clean up")
}
