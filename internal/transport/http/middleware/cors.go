package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CORSMiddleware admits cross-origin requests from allowedOrigins. A "*"
// entry admits every origin. Requests without an Origin header pass.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, "*")

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowAll || slices.Contains(allowedOrigins, origin) {
				return true
			}
			log.Warn().Str("origin", origin).Strs("allowed", allowedOrigins).Msg("cors: origin rejected")
			return false
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
