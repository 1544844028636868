// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for the add-message endpoint.
// Notification producers retry on timeouts; an Idempotency-Key header lets a
// retried POST be recognized and answered from the recorded outcome instead
// of inserting the same notification twice. The middleware validates the
// key, performs a caller-supplied lookup to detect completed requests, and
// stashes the result in the request context:
//
//   - GetIdempotencyKey reads the normalized key
//   - IsReplay reports whether a recorded outcome exists
//   - replayed requests additionally bypass the rate limiter
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header conveying the idempotency key.
// The value must be stable for a given semantic operation across retries.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// keyShape constrains accepted keys to a printable token alphabet.
var keyShape = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)

// IdempotencyLookup reports whether a completed request is already recorded
// for (userID, key) at the given instant.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (bool, error)

// IdempotencyOptions tunes validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; <= 0 means 200.
	MaxLen int
}

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request would replay a recorded operation.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// bypassRateLimit reports whether the rate limiter should skip this request.
func bypassRateLimit(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyValidator validates an Idempotency-Key header on unsafe methods
// and, when a lookup is supplied, flags replays so handlers can short-circuit
// to the recorded outcome. Requests without the header pass through
// untouched; malformed keys are rejected with 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !keyShape.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_request",
				"message": "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid, _ := UserFrom(c)
			if found, err := lookup(c.Request.Context(), uid, key, time.Now().UTC()); err == nil && found {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
