package coordinator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/shard"
)

type recorder struct {
	mu   sync.Mutex
	msgs map[string][]domain.ServerMessage
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]domain.ServerMessage)}
}

func (r *recorder) Send(playerID string, msg domain.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[playerID] = append(r.msgs[playerID], msg)
}

func (r *recorder) types(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs[playerID] {
		out = append(out, m.Type)
	}
	return out
}

func (r *recorder) last(playerID, typ string) (domain.ServerMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs[playerID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return domain.ServerMessage{}, false
}

var errConnRefused = errors.New("dial tcp: connection refused")

// flakyShard fails selected operations the way an unreachable node would.
type flakyShard struct {
	shard.ColumnShard
	failDrop    atomic.Bool
	failQuery   atomic.Bool
	failReplace atomic.Bool
	// dropFailures fails that many upcoming drops before they reach the
	// column.
	dropFailures atomic.Int32
	// lostReplies applies that many upcoming drops but reports them failed.
	lostReplies atomic.Int32
}

// take consumes one unit of n if any is left.
func take(n *atomic.Int32) bool {
	for {
		v := n.Load()
		if v <= 0 {
			return false
		}
		if n.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

func (f *flakyShard) Drop(ctx context.Context, playerID string) (int, error) {
	if f.failDrop.Load() || take(&f.dropFailures) {
		return -1, errConnRefused
	}
	row, err := f.ColumnShard.Drop(ctx, playerID)
	if err == nil && take(&f.lostReplies) {
		return -1, errConnRefused
	}
	return row, err
}

func (f *flakyShard) Replace(ctx context.Context, discs []domain.Disc) error {
	if f.failReplace.Load() {
		return errConnRefused
	}
	return f.ColumnShard.Replace(ctx, discs)
}

func (f *flakyShard) Query(ctx context.Context) (shard.State, error) {
	if f.failQuery.Load() {
		return shard.State{}, errConnRefused
	}
	return f.ColumnShard.Query(ctx)
}

type flakyProvider struct {
	*shard.LocalProvider
	flaky map[int]*flakyShard
}

func (p *flakyProvider) Open(roomID string) ([]shard.ColumnShard, error) {
	shards, err := p.LocalProvider.Open(roomID)
	if err != nil {
		return nil, err
	}
	for i, f := range p.flaky {
		f.ColumnShard = shards[i]
		shards[i] = f
	}
	return shards, nil
}

// cancelOnFinish cancels a context when a game ends, the way the event
// scheduler stops a room's ticker from inside a winning tick.
type cancelOnFinish struct {
	noopMetrics
	cancel context.CancelFunc
}

func (m cancelOnFinish) GameFinished(domain.WinType) {
	m.cancel()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type harness struct {
	c        *Coordinator
	rec      *recorder
	provider *flakyProvider
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TurnTimeLimit = 30 * time.Second
	cfg.EventInterval = time.Hour
	cfg.RetryAttempts = 2
	cfg.RetryBase = time.Millisecond
	cfg.Rand = rand.New(rand.NewPCG(7, 11))

	provider := &flakyProvider{LocalProvider: shard.NewLocalProvider(), flaky: map[int]*flakyShard{}}
	rec := newRecorder()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	c := New(cfg, provider, rec, zerolog.Nop())
	c.now = clock.Now
	t.Cleanup(c.Shutdown)
	return &harness{c: c, rec: rec, provider: provider, clock: clock}
}

// flaky makes column col of the next opened room controllable.
func (h *harness) flaky(col int) *flakyShard {
	f := &flakyShard{}
	h.provider.flaky[col] = f
	return f
}

// startRoom creates a room with n players and starts it.
func (h *harness) startRoom(t *testing.T, n int, randomEvents bool) (string, []string) {
	t.Helper()
	ctx := context.Background()
	room, err := h.c.CreateRoom(ctx, "test", n, randomEvents)
	require.NoError(t, err)

	ids := make([]string, n)
	for i := range n {
		p, err := h.c.JoinRoom(ctx, room.ID, "", "")
		require.NoError(t, err)
		ids[i] = p.ID
	}
	_, err = h.c.StartGame(ctx, room.ID)
	require.NoError(t, err)
	return room.ID, ids
}

func (h *harness) move(t *testing.T, roomID, playerID string, column int) *MoveResult {
	t.Helper()
	res, err := h.c.SubmitMove(context.Background(), roomID, playerID, column)
	require.NoError(t, err)
	return res
}

// preload writes stacks straight to the shards, then lets a snapshot pull
// them into the coordinator cache.
func (h *harness) preload(t *testing.T, roomID string, stacks map[int][]string) {
	t.Helper()
	ctx := context.Background()
	cols := h.provider.Columns(roomID)
	for col, owners := range stacks {
		discs := make([]domain.Disc, len(owners))
		for i, o := range owners {
			discs[i] = domain.Disc{PlayerID: o}
		}
		require.NoError(t, cols[col].Replace(ctx, discs))
	}
	_, err := h.c.Snapshot(ctx, roomID)
	require.NoError(t, err)
}

func (h *harness) room(t *testing.T, roomID string) *domain.Room {
	t.Helper()
	room, err := h.c.GetRoom(roomID)
	require.NoError(t, err)
	return room
}

func (h *harness) column(t *testing.T, roomID string, col int) []domain.Disc {
	t.Helper()
	st, err := h.provider.Columns(roomID)[col].Query(context.Background())
	require.NoError(t, err)
	return st.Discs
}
