package uid

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateRoomID returns a short room code that is easy to share.
func GenerateRoomID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// GeneratePlayerID returns an opaque player id.
func GeneratePlayerID() string {
	return uuid.NewString()
}
