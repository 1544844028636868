package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup, opts IdempotencyOptions) (*gin.Engine, *struct {
	key    string
	hasKey bool
	replay bool
	bypass bool
}) {
	state := &struct {
		key    string
		hasKey bool
		replay bool
		bypass bool
	}{}
	r := gin.New()
	r.Use(Identity(), IdempotencyValidator(opts, lookup))
	handler := func(c *gin.Context) {
		state.key, state.hasKey = GetIdempotencyKey(c)
		state.replay = IsReplay(c)
		state.bypass = bypassRateLimit(c)
		c.Status(http.StatusNoContent)
	}
	r.POST("/x", handler)
	r.GET("/x", handler)
	return r, state
}

func TestIdempotencyValidator_NoHeaderPassesThrough(t *testing.T) {
	r, state := idemRouter(nil, IdempotencyOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if state.hasKey || state.replay {
		t.Fatalf("state = %+v, want untouched", state)
	}
}

func TestIdempotencyValidator_SkipsSafeMethods(t *testing.T) {
	r, state := idemRouter(nil, IdempotencyOptions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if state.hasKey {
		t.Fatal("key validated on GET")
	}
}

func TestIdempotencyValidator_MalformedKeyRejected(t *testing.T) {
	r, _ := idemRouter(nil, IdempotencyOptions{MaxLen: 10})

	for _, key := range []string{"bad key with spaces", "emoji🎉", strings.Repeat("a", 11)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", key, w.Code)
		}
	}
}

func TestIdempotencyValidator_ValidKeyStored(t *testing.T) {
	r, state := idemRouter(nil, IdempotencyOptions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry_1:abc.DEF-2")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if !state.hasKey || state.key != "retry_1:abc.DEF-2" {
		t.Fatalf("key = %q hasKey = %v", state.key, state.hasKey)
	}
	if state.replay || state.bypass {
		t.Fatal("fresh key flagged as replay")
	}
}

func TestIdempotencyValidator_ReplayDetected(t *testing.T) {
	var sawUser, sawKey string
	lookup := func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
		sawUser, sawKey = userID, key
		return true, nil
	}
	r, state := idemRouter(lookup, IdempotencyOptions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	r.ServeHTTP(w, req)

	if sawUser != "u1" || sawKey != "key-1" {
		t.Fatalf("lookup saw (%q, %q)", sawUser, sawKey)
	}
	if !state.replay || !state.bypass {
		t.Fatalf("state = %+v, want replay with rate-limit bypass", state)
	}
}
