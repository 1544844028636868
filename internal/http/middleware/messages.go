// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file attaches the per-request message storage chain, mirroring the
// request/response lifecycle the chain was designed around: the chain is
// built when the request arrives (scoped to the resolved actor) and flushed
// once the handler has run, so queued transient messages get their store
// pass exactly once per response.
package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/storage"
)

// messagesKey is the Gin context key under which the chain is stored.
const messagesKey = "messages"

// ErrNoMessages is returned by AddMessage when the request has no attached
// message chain, i.e. the Messages middleware is not installed on the route.
var ErrNoMessages = errors.New("cannot add messages without the messages middleware installed")

// Messages builds the storage chain for each request and flushes it after
// the handler chain completes. Must run after Identity so the chain is
// scoped to the right actor. Backend order comes from names (see
// storage.NewChain); level is the minimum reporting threshold.
func Messages(db *gorm.DB, names []string, level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := UserFrom(c)
		chain, err := storage.NewChain(names, db, storage.Scope{UserID: uid}, level)
		if err != nil {
			// Misconfigured backend list; fail the request loudly.
			_ = c.Error(err)
			c.AbortWithStatusJSON(500, gin.H{"code": "internal_error", "message": "message storage misconfigured"})
			return
		}
		c.Set(messagesKey, chain)

		c.Next()

		if _, err := chain.Update(c.Request.Context()); err != nil {
			LoggerFrom(c).Error().Err(err).Msg("message chain flush failed")
		}
	}
}

// MessagesFrom returns the request's message chain, or nil when the
// Messages middleware is not installed.
func MessagesFrom(c *gin.Context) *storage.Fallback {
	v, ok := c.Get(messagesKey)
	if !ok {
		return nil
	}
	chain, _ := v.(*storage.Fallback)
	return chain
}

// AddMessage queues a notification on the request's chain. It is the
// transport-level equivalent of the add-message API: failSilently swallows
// only the missing-chain configuration error, never storage errors.
func AddMessage(c *gin.Context, level int, body any, extraTags string, failSilently bool, opts storage.AddOptions) error {
	chain := MessagesFrom(c)
	if chain == nil {
		if failSilently {
			return nil
		}
		return ErrNoMessages
	}
	return chain.Add(c.Request.Context(), level, body, extraTags, opts)
}
