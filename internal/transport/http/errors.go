package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// conflicts are validation failures caused by the room's current state
// rather than by the request itself.
var conflicts = map[domain.Error]bool{
	domain.ErrRoomFull:           true,
	domain.ErrGameAlreadyStarted: true,
	domain.ErrColorUnavailable:   true,
	domain.ErrAlreadyStarted:     true,
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		var de domain.Error
		if errors.As(err, &de) && conflicts[de] {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case domain.KindCapacity:
		return http.StatusConflict
	case domain.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
