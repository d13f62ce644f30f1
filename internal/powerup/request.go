// Package powerup turns a power-up request into the shard operations that
// realise it. It is stateless: the coordinator supplies a read-only view of
// the room and applies the returned plan itself.
package powerup

import (
	"encoding/json"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Request is one of DoubleDrop, ColumnBomb, ColumnBlock, UndoMove or
// GravityFlip.
type Request interface {
	Kind() domain.PowerUpKind
	isRequest()
}

type DoubleDrop struct {
	Column1 int
	Column2 int
}

type ColumnBomb struct {
	Column int
}

type ColumnBlock struct {
	Column int
}

type UndoMove struct{}

type GravityFlip struct{}

func (DoubleDrop) Kind() domain.PowerUpKind  { return domain.PowerUpDoubleDrop }
func (ColumnBomb) Kind() domain.PowerUpKind  { return domain.PowerUpColumnBomb }
func (ColumnBlock) Kind() domain.PowerUpKind { return domain.PowerUpColumnBlock }
func (UndoMove) Kind() domain.PowerUpKind    { return domain.PowerUpUndoMove }
func (GravityFlip) Kind() domain.PowerUpKind { return domain.PowerUpGravityFlip }

func (DoubleDrop) isRequest()  {}
func (ColumnBomb) isRequest()  {}
func (ColumnBlock) isRequest() {}
func (UndoMove) isRequest()    {}
func (GravityFlip) isRequest() {}

// target is the loose target_data object clients send.
type target struct {
	Column  *int `json:"column"`
	Column1 *int `json:"column1"`
	Column2 *int `json:"column2"`
}

// Parse builds the typed request for kind from the client's target_data.
// Missing or out-of-range columns are rejected with ErrInvalidTarget.
func Parse(kind domain.PowerUpKind, targetData json.RawMessage) (Request, error) {
	var t target
	if len(targetData) > 0 && string(targetData) != "null" {
		if err := json.Unmarshal(targetData, &t); err != nil {
			return nil, domain.ErrInvalidTarget
		}
	}

	switch kind {
	case domain.PowerUpDoubleDrop:
		c1, ok1 := column(t.Column1)
		c2, ok2 := column(t.Column2)
		if !ok1 || !ok2 {
			return nil, domain.ErrInvalidTarget
		}
		return DoubleDrop{Column1: c1, Column2: c2}, nil
	case domain.PowerUpColumnBomb:
		c, ok := column(t.Column)
		if !ok {
			return nil, domain.ErrInvalidTarget
		}
		return ColumnBomb{Column: c}, nil
	case domain.PowerUpColumnBlock:
		c, ok := column(t.Column)
		if !ok {
			return nil, domain.ErrInvalidTarget
		}
		return ColumnBlock{Column: c}, nil
	case domain.PowerUpUndoMove:
		return UndoMove{}, nil
	case domain.PowerUpGravityFlip:
		return GravityFlip{}, nil
	}
	return nil, domain.ErrUnknownPowerUp
}

func column(v *int) (int, bool) {
	if v == nil || !domain.ValidColumn(*v) {
		return 0, false
	}
	return *v, true
}
