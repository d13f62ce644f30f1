package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) CleanupStale(context.Context) int {
	s.calls.Add(1)
	return 1
}

func TestWorker_SweepsImmediatelyAndPeriodically(t *testing.T) {
	s := &countingSweeper{}
	w := NewWorker(s, 10*time.Millisecond, zerolog.Nop())
	w.Start(context.Background())
	w.Start(context.Background())

	assert.Eventually(t, func() bool { return s.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	n := s.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, s.calls.Load())
	w.Stop()
}

func TestWorker_StopsWithContext(t *testing.T) {
	s := &countingSweeper{}
	w := NewWorker(s, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	w.Stop()
	assert.Equal(t, int32(1), s.calls.Load())
}
