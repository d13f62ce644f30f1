package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/powerup"
	"github.com/iamasit07/4-in-a-row-steroids/internal/shard"
)

type MoveResult struct {
	Column   int               `json:"column"`
	Row      int               `json:"row"`
	Win      *domain.WinRecord `json:"win,omitempty"`
	NextTurn string            `json:"next_turn,omitempty"`
}

type PowerUpResult struct {
	Kind          domain.PowerUpKind `json:"power_up_id"`
	Effect        domain.Effect      `json:"effect"`
	RemainingUses int                `json:"remaining_uses"`
	Win           *domain.WinRecord  `json:"win,omitempty"`
	NextTurn      string             `json:"next_turn,omitempty"`
}

// checkTurn validates that playerID may act in rs right now.
func checkTurn(rs *roomSession, playerID string) (*domain.Player, error) {
	room := rs.room
	if room.Status != domain.StatusInProgress {
		return nil, domain.ErrGameNotActive
	}
	p, ok := room.Player(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	if room.CurrentTurn != playerID {
		return nil, domain.ErrNotYourTurn
	}
	return p, nil
}

func (c *Coordinator) SubmitMove(ctx context.Context, roomID, playerID string, column int) (*MoveResult, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}

	if _, err := checkTurn(rs, playerID); err != nil {
		rs.mu.Unlock()
		return nil, err
	}
	if !domain.ValidColumn(column) {
		rs.mu.Unlock()
		return nil, domain.ErrInvalidColumn
	}
	if rs.blocked[column] > 0 {
		rs.mu.Unlock()
		return nil, domain.ErrColumnBlocked
	}

	row, err := c.drop(ctx, rs, column, playerID)
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}
	rs.lastColumn[playerID] = column
	c.metrics.MoveApplied()

	out := &outbox{roomID: roomID}
	res := &MoveResult{Column: column, Row: row}
	res.Win = domain.Evaluate(&rs.board, []domain.Position{{Column: column, Row: row}})
	if res.Win == nil {
		c.advanceTurn(ctx, rs, out)
		res.NextTurn = rs.room.CurrentTurn
	}

	board := rs.board.Copy()
	moved := domain.ServerMessage{
		Type:           domain.MsgMoveMade,
		RoomID:         roomID,
		PlayerID:       playerID,
		Column:         domain.IntPtr(column),
		Row:            domain.IntPtr(row),
		Board:          &board,
		NextTurn:       res.NextTurn,
		TurnSeq:        rs.room.TurnSeq,
		GravityFlipped: rs.room.GravityFlipped,
	}
	// move_made goes out before anything the advance produced.
	out.deliveries = append([]delivery{{to: rs.room.PlayerIDs(), msg: moved}}, out.deliveries...)
	if res.Win != nil {
		c.finish(rs, res.Win, out)
	}
	out.persist(rs)
	rs.mu.Unlock()

	c.log.Debug().Str("room", roomID).Str("player", playerID).Int("column", column).Int("row", row).Msg("move applied")
	c.flush(ctx, out)
	return res, nil
}

// drop places a disc through the shard and mirrors it in the cache.
func (c *Coordinator) drop(ctx context.Context, rs *roomSession, column int, playerID string) (int, error) {
	row, err := c.landDrop(ctx, rs.shards[column], len(rs.board[column]), playerID)
	if err != nil {
		if errors.Is(err, domain.ErrColumnBlocked) {
			rs.blocked[column] = max(rs.blocked[column], 1)
		}
		return -1, err
	}
	rs.board[column] = append(rs.board[column], domain.Disc{PlayerID: playerID, Row: row})
	return row, nil
}

// landDrop drops one disc onto a column expected to hold height discs,
// retrying transport failures. Before each retry the shard is queried: a
// disc of playerID at row height means the failed attempt landed, and that
// row is used instead of dropping again.
func (c *Coordinator) landDrop(ctx context.Context, s shard.ColumnShard, height int, playerID string) (int, error) {
	row, tried := -1, false
	err := c.retry(ctx, s.Index(), func(ctx context.Context) error {
		if tried {
			st, err := s.Query(ctx)
			if err != nil {
				return err
			}
			if len(st.Discs) > height && st.Discs[height].PlayerID == playerID {
				row = st.Discs[height].Row
				return nil
			}
		}
		tried = true
		r, err := s.Drop(ctx, playerID)
		if err != nil {
			return err
		}
		row = r
		return nil
	})
	if err != nil {
		return -1, err
	}
	return row, nil
}

func (c *Coordinator) SubmitPowerUp(ctx context.Context, roomID, playerID string, kind domain.PowerUpKind, targetData json.RawMessage) (*PowerUpResult, error) {
	if _, ok := powerup.Lookup(kind); !ok {
		return nil, domain.ErrUnknownPowerUp
	}

	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}

	player, err := checkTurn(rs, playerID)
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}
	if player.PowerUps[kind] <= 0 {
		rs.mu.Unlock()
		return nil, domain.ErrNoUsesRemaining
	}

	req, err := powerup.Parse(kind, targetData)
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}
	last, ok := rs.lastColumn[playerID]
	if !ok {
		last = -1
	}
	plan, err := powerup.Resolve(req, playerID, powerup.View{Board: &rs.board, Blocked: rs.blocked, LastColumn: last})
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}

	placed, err := c.applyPlan(ctx, rs, &plan, playerID)
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}

	player.PowerUps[kind]--
	c.metrics.PowerUpUsed(kind)

	out := &outbox{roomID: roomID}
	res := &PowerUpResult{Kind: kind, Effect: plan.Effect, RemainingUses: player.PowerUps[kind]}
	if len(placed) > 0 {
		res.Win = domain.Evaluate(&rs.board, placed)
	}
	if res.Win == nil && plan.EndsTurn {
		c.advanceTurn(ctx, rs, out)
		res.NextTurn = rs.room.CurrentTurn
	}

	board := rs.board.Copy()
	effect := plan.Effect
	used := domain.ServerMessage{
		Type:           domain.MsgPowerUpUsed,
		RoomID:         roomID,
		PlayerID:       playerID,
		PowerUpID:      kind,
		Effect:         &effect,
		RemainingUses:  domain.IntPtr(res.RemainingUses),
		Board:          &board,
		NextTurn:       res.NextTurn,
		CurrentTurn:    rs.room.CurrentTurn,
		TurnSeq:        rs.room.TurnSeq,
		GravityFlipped: rs.room.GravityFlipped,
	}
	out.deliveries = append([]delivery{{to: rs.room.PlayerIDs(), msg: used}}, out.deliveries...)
	if res.Win != nil {
		c.finish(rs, res.Win, out)
	}
	out.persist(rs)
	rs.mu.Unlock()

	c.log.Info().Str("room", roomID).Str("player", playerID).Str("power_up", string(kind)).Msg("power-up used")
	c.flush(ctx, out)
	return res, nil
}

// applyPlan executes the resolver's ops against the shards and the cache.
// It returns the cells where discs were placed.
func (c *Coordinator) applyPlan(ctx context.Context, rs *roomSession, plan *powerup.Plan, playerID string) ([]domain.Position, error) {
	var drops []powerup.Op
	for _, op := range plan.Ops {
		if op.Kind == powerup.OpDrop {
			drops = append(drops, op)
		}
	}
	if len(drops) > 0 {
		placed, err := c.applyDrops(ctx, rs, drops)
		if err != nil {
			return nil, err
		}
		plan.Effect.Placements = placed
		rs.lastColumn[playerID] = drops[len(drops)-1].Column
		return placed, nil
	}

	for _, op := range plan.Ops {
		switch op.Kind {
		case powerup.OpBomb:
			s := rs.shards[op.Column]
			var cleared int
			err := c.retry(ctx, op.Column, func(ctx context.Context) error {
				var err error
				cleared, err = s.Bomb(ctx)
				return err
			})
			if err != nil {
				return nil, err
			}
			rs.board.SetColumn(op.Column, nil)
			plan.Effect.Cleared = cleared

		case powerup.OpBlock:
			s := rs.shards[op.Column]
			err := c.retry(ctx, op.Column, func(ctx context.Context) error {
				return s.Block(ctx, op.Turns)
			})
			if err != nil {
				return nil, err
			}
			rs.blocked[op.Column] = op.Turns
			rs.freshBlocks[op.Column] = true

		case powerup.OpUndo:
			s := rs.shards[op.Column]
			var removed bool
			err := c.once(ctx, op.Column, func(ctx context.Context) error {
				var err error
				removed, err = s.UndoLast(ctx)
				return err
			})
			if err != nil {
				return nil, err
			}
			if removed {
				stack := rs.board[op.Column]
				rs.board.SetColumn(op.Column, stack[:len(stack)-1])
			}
			delete(rs.lastColumn, playerID)
			plan.Effect.Removed = removed

		case powerup.OpFlipGravity:
			rs.room.GravityFlipped = !rs.room.GravityFlipped
			plan.Effect.GravityFlipped = rs.room.GravityFlipped
		}
	}
	return nil, nil
}

// applyDrops places every disc or none. Drops into different columns run
// concurrently; drops into one column run in order. If any drop fails the
// ones that landed are taken back.
func (c *Coordinator) applyDrops(ctx context.Context, rs *roomSession, drops []powerup.Op) ([]domain.Position, error) {
	rows := make([]int, len(drops))
	for i := range rows {
		rows[i] = -1
	}

	sameColumn := len(drops) == 2 && drops[0].Column == drops[1].Column
	dropOne := func(ctx context.Context, i int) error {
		op := drops[i]
		height := len(rs.board[op.Column])
		if sameColumn {
			height += i
		}
		row, err := c.landDrop(ctx, rs.shards[op.Column], height, op.PlayerID)
		if err != nil {
			return err
		}
		rows[i] = row
		return nil
	}

	var err error
	if sameColumn {
		for i := range drops {
			if err = dropOne(ctx, i); err != nil {
				break
			}
		}
	} else {
		var g errgroup.Group
		for i := range drops {
			g.Go(func() error { return dropOne(ctx, i) })
		}
		err = g.Wait()
	}

	if err != nil {
		// undo in reverse so a same-column pair pops the right disc
		for i := len(drops) - 1; i >= 0; i-- {
			if rows[i] < 0 {
				continue
			}
			s := rs.shards[drops[i].Column]
			if uerr := c.retry(context.WithoutCancel(ctx), drops[i].Column, func(ctx context.Context) error {
				_, err := s.UndoLast(ctx)
				return err
			}); uerr != nil {
				c.log.Error().Err(uerr).Str("room", rs.room.ID).Int("column", drops[i].Column).Msg("compensating undo failed")
			}
		}
		return nil, err
	}

	placed := make([]domain.Position, len(drops))
	for i, op := range drops {
		rs.board[op.Column] = append(rs.board[op.Column], domain.Disc{PlayerID: op.PlayerID, Row: rows[i]})
		placed[i] = domain.Position{Column: op.Column, Row: rows[i]}
	}
	return placed, nil
}

// advanceTurn passes the turn to the next seated player. Caller holds rs.mu.
func (c *Coordinator) advanceTurn(ctx context.Context, rs *roomSession, out *outbox) {
	rs.room.CurrentTurn = rs.room.NextSeated(rs.room.CurrentTurn)
	c.endTurn(ctx, rs, out)
}

// endTurn closes the turn that just ended once CurrentTurn names the next
// player: it counts the turn, ticks column blocks, expires events and
// re-arms the turn timer. Caller holds rs.mu.
func (c *Coordinator) endTurn(ctx context.Context, rs *roomSession, out *outbox) {
	room := rs.room
	room.TurnIndex++
	room.TurnSeq++
	room.TurnStartTime = c.now()
	room.LastActivity = room.TurnStartTime

	for col := range domain.Columns {
		if rs.blocked[col] == 0 || rs.freshBlocks[col] {
			continue
		}
		s := rs.shards[col]
		var left int
		err := c.once(ctx, col, func(ctx context.Context) error {
			var err error
			left, err = s.TickBlock(ctx)
			return err
		})
		if err != nil {
			left = rs.blocked[col] - 1
		}
		rs.blocked[col] = left
	}
	clear(rs.freshBlocks)

	c.expireEvents(rs, out)
	c.armTimer(rs)
}

// finish moves the room to game_over. Caller holds rs.mu.
func (c *Coordinator) finish(rs *roomSession, win *domain.WinRecord, out *outbox) {
	room := rs.room
	room.Status = domain.StatusGameOver
	room.Active = false
	room.Win = win
	room.FinishedAt = c.now()
	room.LastActivity = room.FinishedAt
	rs.stopTimer()
	c.scheduler.Stop(room.ID)

	board := rs.board.Copy()
	out.add(room.PlayerIDs(), domain.ServerMessage{
		Type:      domain.MsgGameOver,
		RoomID:    room.ID,
		Winner:    win.Winner,
		WinType:   win.WinType,
		Positions: win.Positions,
		Board:     &board,
	})

	c.metrics.GameFinished(win.WinType)
	c.log.Info().Str("room", room.ID).Str("winner", win.Winner).Str("win_type", string(win.WinType)).Msg("game over")
}

// armTimer schedules the timeout of the current turn. Caller holds rs.mu.
func (c *Coordinator) armTimer(rs *roomSession) {
	rs.stopTimer()
	room := rs.room
	limit := room.EffectiveTurnLimit()
	if limit <= 0 || room.Status != domain.StatusInProgress {
		return
	}

	roomID, seq := room.ID, room.TurnSeq
	wait := limit - c.now().Sub(room.TurnStartTime)
	rs.timer = time.AfterFunc(wait, func() {
		if _, err := c.HandleTurnTimeout(context.Background(), roomID, seq); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			c.log.Warn().Err(err).Str("room", roomID).Msg("turn timeout failed")
		}
	})
}

// HandleTurnTimeout forces the turn on when turnSeq is still the current
// turn and its deadline has passed. It reports whether the turn moved.
func (c *Coordinator) HandleTurnTimeout(ctx context.Context, roomID string, turnSeq uint64) (bool, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return false, err
	}
	room := rs.room

	if room.Status != domain.StatusInProgress || room.TurnSeq != turnSeq {
		rs.mu.Unlock()
		return false, nil
	}
	if room.TimeRemaining(c.now()) > 0 {
		c.armTimer(rs)
		rs.mu.Unlock()
		return false, nil
	}

	timedOut := room.CurrentTurn
	out := &outbox{roomID: roomID}
	c.advanceTurn(ctx, rs, out)
	timeout := domain.ServerMessage{
		Type:            domain.MsgTurnTimeout,
		RoomID:          roomID,
		PlayerID:        timedOut,
		NextTurn:        room.CurrentTurn,
		CurrentTurn:     room.CurrentTurn,
		TurnSeq:         room.TurnSeq,
		TurnTimeLimitMs: room.EffectiveTurnLimit().Milliseconds(),
	}
	out.deliveries = append([]delivery{{to: room.PlayerIDs(), msg: timeout}}, out.deliveries...)
	out.persist(rs)
	rs.mu.Unlock()

	c.metrics.TurnTimedOut()
	c.log.Info().Str("room", roomID).Str("player", timedOut).Msg("turn timed out")
	c.flush(ctx, out)
	return true, nil
}
