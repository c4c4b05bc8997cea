package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "pharmstock/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// ActorContext propagates the acting user from the gateway headers into the
// request context. Authentication happens upstream; the core only records
// who did what in the ledger.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID == "" {
			c.Next()
			return
		}

		ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
			ID:   actorID,
			Name: c.GetHeader(HeaderActorName),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
