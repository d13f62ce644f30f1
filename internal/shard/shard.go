// Package shard implements the per-column board service. A column shard owns
// the vertical stack of discs for one board column and knows nothing about
// turn order or win conditions; its only invariants are capacity (at most
// domain.Rows discs) and bottom-to-top ordering.
package shard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// State is what a shard reports about its column.
type State struct {
	Column       int           `json:"column"`
	Discs        []domain.Disc `json:"discs"`
	BlockedTurns int           `json:"blocked_turns"`
}

// ColumnShard is the protocol between the coordinator and one column.
// Implementations: Column (in process) and Client (HTTP column node).
type ColumnShard interface {
	Index() int
	// Drop appends a disc and returns its row, 0 being the bottom.
	Drop(ctx context.Context, playerID string) (int, error)
	// Bomb clears the stack and returns how many discs were removed.
	Bomb(ctx context.Context) (int, error)
	// UndoLast pops the top disc; false when the column was empty.
	UndoLast(ctx context.Context) (bool, error)
	// Block rejects drops for the given number of turn advances.
	Block(ctx context.Context, turns int) error
	// TickBlock decrements an active block and returns what is left.
	TickBlock(ctx context.Context) (int, error)
	Query(ctx context.Context) (State, error)
	// Replace overwrites the stack; rows are renumbered bottom to top.
	Replace(ctx context.Context, discs []domain.Disc) error
	// Reset empties the column and clears any block.
	Reset(ctx context.Context) error
}

// OperationStats counts the mutating and read calls a column has served.
type OperationStats struct {
	Drops   uint64 `json:"drops"`
	Bombs   uint64 `json:"bombs"`
	Undos   uint64 `json:"undos"`
	Blocks  uint64 `json:"blocks"`
	Queries uint64 `json:"queries"`
}

func (s *OperationStats) add(o OperationStats) {
	s.Drops += o.Drops
	s.Bombs += o.Bombs
	s.Undos += o.Undos
	s.Blocks += o.Blocks
	s.Queries += o.Queries
}

// Column is the in-process shard.
type Column struct {
	index   int
	discs   []domain.Disc
	blocked int
	stats   OperationStats
	mu      sync.Mutex
}

// NewColumn creates an empty column shard for the given board column.
func NewColumn(index int) *Column {
	return &Column{index: index, discs: make([]domain.Disc, 0, domain.Rows)}
}

func (c *Column) Index() int {
	return c.index
}

func (c *Column) Drop(_ context.Context, playerID string) (int, error) {
	atomic.AddUint64(&c.stats.Drops, 1)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blocked > 0 {
		return -1, domain.ErrColumnBlocked
	}
	if len(c.discs) >= domain.Rows {
		return -1, domain.ErrColumnFull
	}

	row := len(c.discs)
	c.discs = append(c.discs, domain.Disc{PlayerID: playerID, Row: row})
	return row, nil
}

func (c *Column) Bomb(_ context.Context) (int, error) {
	atomic.AddUint64(&c.stats.Bombs, 1)
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := len(c.discs)
	c.discs = c.discs[:0]
	return cleared, nil
}

func (c *Column) UndoLast(_ context.Context) (bool, error) {
	atomic.AddUint64(&c.stats.Undos, 1)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.discs) == 0 {
		return false, nil
	}
	c.discs = c.discs[:len(c.discs)-1]
	return true, nil
}

func (c *Column) Block(_ context.Context, turns int) error {
	atomic.AddUint64(&c.stats.Blocks, 1)
	if turns < 0 {
		turns = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocked = turns
	return nil
}

func (c *Column) TickBlock(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blocked > 0 {
		c.blocked--
	}
	return c.blocked, nil
}

func (c *Column) Query(_ context.Context) (State, error) {
	atomic.AddUint64(&c.stats.Queries, 1)
	c.mu.Lock()
	defer c.mu.Unlock()

	discs := make([]domain.Disc, len(c.discs))
	copy(discs, c.discs)
	return State{Column: c.index, Discs: discs, BlockedTurns: c.blocked}, nil
}

func (c *Column) Replace(_ context.Context, discs []domain.Disc) error {
	if len(discs) > domain.Rows {
		return domain.ErrColumnFull
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discs = c.discs[:0]
	for i, d := range discs {
		c.discs = append(c.discs, domain.Disc{PlayerID: d.PlayerID, Row: i})
	}
	return nil
}

func (c *Column) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discs = c.discs[:0]
	c.blocked = 0
	return nil
}

// Stats returns a copy of the operation counters.
func (c *Column) Stats() OperationStats {
	return OperationStats{
		Drops:   atomic.LoadUint64(&c.stats.Drops),
		Bombs:   atomic.LoadUint64(&c.stats.Bombs),
		Undos:   atomic.LoadUint64(&c.stats.Undos),
		Blocks:  atomic.LoadUint64(&c.stats.Blocks),
		Queries: atomic.LoadUint64(&c.stats.Queries),
	}
}
