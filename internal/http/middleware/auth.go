// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the request actor. Authentication proper is provided by
// the surrounding deployment (gateway, session layer); this service only
// consumes an already-established identity via the X-User-ID header. A
// request without the header is anonymous, which matters here: anonymous
// actors cannot own persistent messages and cannot use the read-tracking
// endpoints.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// userIDKey is the Gin context key under which the actor is stored.
	userIDKey = "userID"
	// userIDHeader carries the established identity from the edge.
	userIDHeader = "X-User-ID"
)

// Identity resolves the request actor from the identity header and stashes
// it in the Gin context. Absent or blank header means anonymous.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(userIDHeader)); uid != "" {
			c.Set(userIDKey, uid)
		}
		c.Next()
	}
}

// UserFrom returns the actor's user ID and whether one is present.
func UserFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}
