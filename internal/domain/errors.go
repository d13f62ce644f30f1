package domain

import "errors"

// basic error that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrorKind groups errors by how callers must react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation errors are rejected to the requester, state unchanged.
	KindValidation
	// KindCapacity errors leave the turn with the requester who may retry.
	KindCapacity
	// KindNotFound errors address a room or player that does not exist.
	KindNotFound
	// KindInfrastructure errors are recoverable and retryable by the client.
	KindInfrastructure
)

const (
	ErrRoomNotFound       Error = "room not found"
	ErrPlayerNotFound     Error = "player not found in room"
	ErrRoomFull           Error = "room is full"
	ErrGameAlreadyStarted Error = "game already started"
	ErrColorUnavailable   Error = "color unavailable"
	ErrInvalidMaxPlayers  Error = "max players must be between 2 and 4"
	ErrNotEnoughPlayers   Error = "need at least 2 players to start"
	ErrAlreadyStarted     Error = "game already started or finished"
	ErrGameNotActive      Error = "game is not in progress"
	ErrNotYourTurn        Error = "not your turn"
	ErrInvalidColumn      Error = "invalid column"
	ErrColumnBlocked      Error = "column is blocked"
	ErrColumnFull         Error = "column is full"
	ErrNoUsesRemaining    Error = "no uses remaining"
	ErrUnknownPowerUp     Error = "unknown power-up"
	ErrInvalidTarget      Error = "invalid power-up target"
	ErrInvalidMessage     Error = "invalid message"
	ErrShardUnavailable   Error = "column shard unavailable, please retry"
)

var errorKinds = map[Error]ErrorKind{
	ErrRoomNotFound:       KindNotFound,
	ErrPlayerNotFound:     KindNotFound,
	ErrRoomFull:           KindValidation,
	ErrGameAlreadyStarted: KindValidation,
	ErrColorUnavailable:   KindValidation,
	ErrInvalidMaxPlayers:  KindValidation,
	ErrNotEnoughPlayers:   KindValidation,
	ErrAlreadyStarted:     KindValidation,
	ErrGameNotActive:      KindValidation,
	ErrNotYourTurn:        KindValidation,
	ErrInvalidColumn:      KindValidation,
	ErrColumnBlocked:      KindValidation,
	ErrColumnFull:         KindCapacity,
	ErrNoUsesRemaining:    KindValidation,
	ErrUnknownPowerUp:     KindValidation,
	ErrInvalidTarget:      KindValidation,
	ErrInvalidMessage:     KindValidation,
	ErrShardUnavailable:   KindInfrastructure,
}

// KindOf classifies err, looking through wrapping.
func KindOf(err error) ErrorKind {
	var de Error
	if errors.As(err, &de) {
		if k, ok := errorKinds[de]; ok {
			return k
		}
	}
	return KindUnknown
}

// IsDomainError reports whether err is one of the sentinel game errors.
// Anything else coming back from a shard is treated as infrastructure failure.
func IsDomainError(err error) bool {
	var de Error
	return errors.As(err, &de)
}

// ErrorFromMessage maps an error string that crossed a process boundary back
// to its sentinel.
func ErrorFromMessage(msg string) (Error, bool) {
	e := Error(msg)
	_, ok := errorKinds[e]
	return e, ok
}
