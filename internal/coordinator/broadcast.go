package coordinator

import (
	"context"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

type delivery struct {
	to  []string
	msg domain.ServerMessage
}

// outbox collects what a locked operation wants to send and persist, so the
// room lock is released before any connection or store is touched.
type outbox struct {
	roomID     string
	deliveries []delivery
	room       *domain.Room
	board      domain.Board
	save       bool
}

func (o *outbox) add(to []string, msg domain.ServerMessage) {
	o.deliveries = append(o.deliveries, delivery{to: append([]string(nil), to...), msg: msg})
}

// persist records the room as it is now for mirroring. Call with the room
// lock held.
func (o *outbox) persist(rs *roomSession) {
	o.room = rs.room.Clone()
	o.board = rs.board.Copy()
	o.save = true
}

// flush runs after the change is committed, so the mirror writes do not
// follow ctx cancellation. A scheduler tick that ends the game cancels its
// own context on the way out.
func (c *Coordinator) flush(ctx context.Context, o *outbox) {
	for _, d := range o.deliveries {
		for _, playerID := range d.to {
			c.notifier.Send(playerID, d.msg)
		}
	}

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ShardTimeout)
	defer cancel()
	for _, d := range o.deliveries {
		if err := c.store.Publish(ctx, o.roomID, d.msg); err != nil {
			c.log.Warn().Err(err).Str("room", o.roomID).Str("type", d.msg.Type).Msg("publishing delta failed")
			break
		}
	}
	if o.save {
		if err := c.store.SaveRoom(ctx, o.room, o.board); err != nil {
			c.log.Warn().Err(err).Str("room", o.roomID).Msg("mirroring room failed")
		}
	}
}
