package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/shard"
)

// Snapshot rebuilds the board from live shard queries and returns the full
// state a reconnecting client needs. Columns whose shard cannot be reached
// fall back to the cached stack and are listed in Stale.
func (c *Coordinator) Snapshot(ctx context.Context, roomID string) (*domain.Snapshot, error) {
	rs, err := c.lock(roomID)
	if errors.Is(err, domain.ErrRoomNotFound) && c.store != nil {
		return c.archivedSnapshot(ctx, roomID)
	}
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()

	stale := c.refreshBoard(ctx, rs)
	room := rs.room
	return &domain.Snapshot{
		Room:            room.Clone(),
		Board:           rs.board.Copy(),
		Grid:            rs.board.Grid(room.GravityFlipped),
		TimeRemainingMs: room.TimeRemaining(c.now()).Milliseconds(),
		Stale:           stale,
	}, nil
}

// archivedSnapshot serves a room that was cleaned up here but is still
// mirrored in the store, such as a finished game.
func (c *Coordinator) archivedSnapshot(ctx context.Context, roomID string) (*domain.Snapshot, error) {
	room, board, err := c.store.LoadRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			c.log.Warn().Err(err).Str("room", roomID).Msg("loading mirrored room failed")
		}
		return nil, domain.ErrRoomNotFound
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	return &domain.Snapshot{
		Room:     room,
		Board:    board,
		Grid:     board.Grid(room.GravityFlipped),
		Archived: true,
	}, nil
}

// refreshBoard queries every shard concurrently and overwrites the cache
// with what they report. It returns the columns that could not be queried.
func (c *Coordinator) refreshBoard(ctx context.Context, rs *roomSession) []int {
	var (
		mu     sync.Mutex
		stale  []int
		states = make([]*shard.State, len(rs.shards))
	)

	var g errgroup.Group
	for i, s := range rs.shards {
		g.Go(func() error {
			var st shard.State
			err := c.retry(ctx, s.Index(), func(ctx context.Context) error {
				var err error
				st, err = s.Query(ctx)
				return err
			})
			if err != nil {
				mu.Lock()
				stale = append(stale, s.Index())
				mu.Unlock()
				return nil
			}
			states[i] = &st
			return nil
		})
	}
	_ = g.Wait()

	for i, st := range states {
		if st == nil {
			continue
		}
		col := rs.shards[i].Index()
		rs.board.SetColumn(col, st.Discs)
		rs.blocked[col] = st.BlockedTurns
	}
	sort.Ints(stale)
	return stale
}

// resetShards empties all 7 columns of the room.
func (c *Coordinator) resetShards(ctx context.Context, rs *roomSession) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range rs.shards {
		g.Go(func() error {
			return c.retry(gctx, s.Index(), s.Reset)
		})
	}
	return g.Wait()
}
