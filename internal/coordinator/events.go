package coordinator

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/events"
)

// TickRandomEvents expires finished events and, when sel is non-nil and the
// room allows it, activates the selected event.
func (c *Coordinator) TickRandomEvents(ctx context.Context, roomID string, sel *events.Selection) error {
	rs, err := c.lock(roomID)
	if err != nil {
		return err
	}
	room := rs.room
	if room.Status != domain.StatusInProgress {
		rs.mu.Unlock()
		return domain.ErrGameNotActive
	}

	out := &outbox{roomID: roomID}
	c.expireEvents(rs, out)

	if sel != nil && room.RandomEventsEnabled && room.TurnIndex >= c.cfg.MinTurnsBeforeEvents && !eventActive(room, sel.Kind) {
		if err := c.injectEvent(ctx, rs, *sel, out); err != nil {
			if len(out.deliveries) > 0 {
				out.persist(rs)
			}
			rs.mu.Unlock()
			c.flush(ctx, out)
			return err
		}
	}

	if len(out.deliveries) == 0 {
		rs.mu.Unlock()
		return nil
	}
	out.persist(rs)
	rs.mu.Unlock()
	c.flush(ctx, out)
	return nil
}

func eventActive(room *domain.Room, kind domain.EventKind) bool {
	for _, e := range room.ActiveEvents {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (c *Coordinator) injectEvent(ctx context.Context, rs *roomSession, sel events.Selection, out *outbox) error {
	room := rs.room
	ev, ok := events.Activate(sel, room.TurnIndex)
	if !ok {
		return nil
	}

	effect := domain.Effect{Kind: string(ev.Kind), Description: ev.Description, Columns: ev.AffectedColumns}
	rng := rand.New(rand.NewPCG(sel.Seed, uint64(room.TurnIndex)))
	rearranged := false

	switch ev.Kind {
	case domain.EventEarthquake:
		for _, col := range ev.AffectedColumns {
			discs := append([]domain.Disc(nil), rs.board[col]...)
			rng.Shuffle(len(discs), func(i, j int) { discs[i], discs[j] = discs[j], discs[i] })
			if err := c.replaceColumn(ctx, rs, col, discs); err != nil {
				return err
			}
		}
		rearranged = true

	case domain.EventColumnSwap:
		a, b := ev.AffectedColumns[0], ev.AffectedColumns[1]
		left := append([]domain.Disc(nil), rs.board[a]...)
		right := append([]domain.Disc(nil), rs.board[b]...)
		if err := c.replaceColumn(ctx, rs, a, right); err != nil {
			return err
		}
		if err := c.replaceColumn(ctx, rs, b, left); err != nil {
			// put a back so no disc is lost or duplicated across the pair
			if rerr := c.replaceColumn(context.WithoutCancel(ctx), rs, a, left); rerr != nil {
				c.log.Error().Err(rerr).Str("room", room.ID).Int("column", a).Msg("swap rollback failed")
			}
			return err
		}
		rearranged = true

	case domain.EventReverseGravity:
		room.GravityFlipped = !room.GravityFlipped
		effect.GravityFlipped = room.GravityFlipped

	case domain.EventPowerSurge:
		kind := domain.PowerUpKinds[rng.IntN(len(domain.PowerUpKinds))]
		for _, p := range room.Players {
			p.PowerUps[kind]++
			effect.Grants = append(effect.Grants, fmt.Sprintf("%s:%s", p.ID, kind))
		}
	}

	room.ActiveEvents = append(room.ActiveEvents, ev)
	room.LastActivity = c.now()
	if ev.TurnLimit > 0 {
		c.armTimer(rs)
	}

	board := rs.board.Copy()
	started := ev
	out.add(room.PlayerIDs(), domain.ServerMessage{
		Type:            domain.MsgRandomEvent,
		RoomID:          room.ID,
		Event:           &started,
		EventStatus:     domain.EventStarted,
		Effect:          &effect,
		Board:           &board,
		GravityFlipped:  room.GravityFlipped,
		TimeRemainingMs: room.TimeRemaining(c.now()).Milliseconds(),
		TurnTimeLimitMs: room.EffectiveTurnLimit().Milliseconds(),
	})
	c.metrics.EventStarted(ev.Kind)
	c.log.Info().Str("room", room.ID).Str("event", string(ev.Kind)).Ints("columns", ev.AffectedColumns).Msg("event started")

	if rearranged {
		if win := domain.Evaluate(&rs.board, domain.ColumnPositions(&rs.board, ev.AffectedColumns)); win != nil {
			c.finish(rs, win, out)
		}
	}
	return nil
}

// replaceColumn overwrites a column on its shard and in the cache.
func (c *Coordinator) replaceColumn(ctx context.Context, rs *roomSession, col int, discs []domain.Disc) error {
	for i := range discs {
		discs[i].Row = i
	}
	s := rs.shards[col]
	if err := c.retry(ctx, col, func(ctx context.Context) error { return s.Replace(ctx, discs) }); err != nil {
		return err
	}
	rs.board.SetColumn(col, discs)
	return nil
}

// expireEvents drops events whose duration has run out and undoes their
// lasting effects. Caller holds rs.mu.
func (c *Coordinator) expireEvents(rs *roomSession, out *outbox) {
	room := rs.room
	kept := room.ActiveEvents[:0]
	var expired []domain.ActiveEvent
	for _, e := range room.ActiveEvents {
		if e.Remaining(room.TurnIndex) > 0 {
			kept = append(kept, e)
			continue
		}
		expired = append(expired, e)
	}
	room.ActiveEvents = kept

	for _, e := range expired {
		if e.Kind == domain.EventReverseGravity {
			room.GravityFlipped = !room.GravityFlipped
		}
		ev := e
		out.add(room.PlayerIDs(), domain.ServerMessage{
			Type:           domain.MsgRandomEvent,
			RoomID:         room.ID,
			Event:          &ev,
			EventStatus:    domain.EventExpired,
			GravityFlipped: room.GravityFlipped,
		})
		c.log.Debug().Str("room", room.ID).Str("event", string(e.Kind)).Msg("event expired")
	}
}
