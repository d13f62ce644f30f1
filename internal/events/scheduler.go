package events

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Sink receives scheduler ticks. A nil selection means the roll missed and
// only expiry should run.
type Sink interface {
	TickRandomEvents(ctx context.Context, roomID string, sel *Selection) error
}

type Config struct {
	Interval    time.Duration
	Probability float64
	// Rand overrides the random source; tests pass a seeded one.
	Rand *rand.Rand
}

// Scheduler runs one goroutine per room with events enabled.
type Scheduler struct {
	cfg  Config
	sink Sink
	log  zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.Mutex
	rooms map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func NewScheduler(cfg Config, sink Sink, log zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Scheduler{
		cfg:   cfg,
		sink:  sink,
		rng:   rng,
		rooms: make(map[string]context.CancelFunc),
		log:   log.With().Str("component", "events").Logger(),
	}
}

// Start begins ticking roomID. Starting a running room is a no-op.
func (s *Scheduler) Start(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.rooms[roomID] = cancel
	s.wg.Add(1)
	go s.run(ctx, roomID)
	s.log.Debug().Str("room", roomID).Msg("scheduler started")
}

// Stop cancels roomID's loop. It does not wait for an in-flight tick.
func (s *Scheduler) Stop(roomID string) {
	s.mu.Lock()
	cancel, ok := s.rooms[roomID]
	delete(s.rooms, roomID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every loop and waits for them to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for id, cancel := range s.rooms {
		cancel()
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) Running(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Roll applies the configured probability and returns a selection, or nil
// when no event fires this tick.
func (s *Scheduler) Roll() *Selection {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	if s.rng.Float64() >= s.cfg.Probability {
		return nil
	}
	sel := Select(s.rng)
	return &sel
}

// nextDelay is the interval jittered by up to 25% either way.
func (s *Scheduler) nextDelay() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	factor := 0.75 + 0.5*s.rng.Float64()
	return time.Duration(float64(s.cfg.Interval) * factor)
}

func (s *Scheduler) run(ctx context.Context, roomID string) {
	defer s.wg.Done()

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		sel := s.Roll()
		err := s.sink.TickRandomEvents(ctx, roomID, sel)
		switch {
		case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrGameNotActive):
			s.Stop(roomID)
			return
		case err != nil:
			s.log.Warn().Err(err).Str("room", roomID).Msg("event tick failed")
		case sel != nil:
			s.log.Info().Str("room", roomID).Str("event", string(sel.Kind)).Msg("event rolled")
		}

		timer.Reset(s.nextDelay())
	}
}
