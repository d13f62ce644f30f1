package events

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

type recordingSink struct {
	mu    sync.Mutex
	ticks []*Selection
	err   error
}

func (r *recordingSink) TickRandomEvents(_ context.Context, _ string, sel *Selection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, sel)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestSelect_TargetsMatchKind(t *testing.T) {
	rng := seeded()
	seen := map[domain.EventKind]bool{}

	for range 2000 {
		sel := Select(rng)
		seen[sel.Kind] = true

		switch sel.Kind {
		case domain.EventEarthquake:
			assert.GreaterOrEqual(t, len(sel.Columns), 1)
			assert.LessOrEqual(t, len(sel.Columns), 3)
		case domain.EventColumnSwap:
			require.Len(t, sel.Columns, 2)
			assert.NotEqual(t, sel.Columns[0], sel.Columns[1])
		default:
			assert.Empty(t, sel.Columns)
		}
		for _, c := range sel.Columns {
			assert.True(t, domain.ValidColumn(c))
		}
	}

	for _, d := range Catalog {
		assert.True(t, seen[d.Kind], "%s never selected", d.Kind)
	}
}

func TestActivate(t *testing.T) {
	ev, ok := Activate(Selection{Kind: domain.EventSpeedRound}, 4)
	require.True(t, ok)
	assert.Equal(t, 7, ev.ExpiresAtTurn)
	assert.Equal(t, SpeedRoundLimit, ev.TurnLimit)
	assert.Equal(t, 3, ev.Remaining(4))

	ev, ok = Activate(Selection{Kind: domain.EventColumnSwap, Columns: []int{1, 5}}, 0)
	require.True(t, ok)
	assert.Equal(t, []int{1, 5}, ev.AffectedColumns)
	assert.Zero(t, ev.TurnLimit)

	_, ok = Activate(Selection{Kind: "meteor"}, 0)
	assert.False(t, ok)
}

func TestScheduler_RollProbability(t *testing.T) {
	never := NewScheduler(Config{Probability: 0, Rand: seeded()}, &recordingSink{}, zerolog.Nop())
	always := NewScheduler(Config{Probability: 1, Rand: seeded()}, &recordingSink{}, zerolog.Nop())

	for range 50 {
		assert.Nil(t, never.Roll())
		assert.NotNil(t, always.Roll())
	}
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	sink := &recordingSink{}
	s := NewScheduler(Config{Interval: 5 * time.Millisecond, Probability: 1, Rand: seeded()}, sink, zerolog.Nop())

	s.Start("room-1")
	s.Start("room-1")
	assert.True(t, s.Running("room-1"))

	assert.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, time.Millisecond)

	s.StopAll()
	assert.False(t, s.Running("room-1"))
	n := sink.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, sink.count())
}

func TestScheduler_StopsWhenRoomEnds(t *testing.T) {
	sink := &recordingSink{err: domain.ErrGameNotActive}
	s := NewScheduler(Config{Interval: 2 * time.Millisecond, Probability: 0, Rand: seeded()}, sink, zerolog.Nop())

	s.Start("room-1")
	assert.Eventually(t, func() bool { return !s.Running("room-1") }, time.Second, time.Millisecond)
	assert.Equal(t, 1, sink.count())
	s.StopAll()
}
