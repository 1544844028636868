// Message HTTP handlers.
//
// This file exposes the REST endpoints for notifications:
//   - POST /messages        (add a message at any severity variant)
//   - GET  /messages        (current actor's messages via the storage chain)
//   - GET  /mark_read/{id}  (mark one message read)
//   - GET  /mark_read/all   (mark everything read)
//
// Handlers are transport-thin: they validate input, delegate to the storage
// chain or the message service, and translate domain errors into HTTP
// results. The mark-read endpoints follow browser-navigation semantics: a
// plain request is redirected back to the referring page (or "/"), while an
// XHR-flagged request gets 204 No Content.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/domain"
	"github.com/akontos/go-messages-backend/internal/http/middleware"
	"github.com/akontos/go-messages-backend/internal/levels"
	"github.com/akontos/go-messages-backend/internal/repo"
	"github.com/akontos/go-messages-backend/internal/services"
	"github.com/akontos/go-messages-backend/internal/storage"
)

//
// Service contracts (context-aware)
//

// MessageService defines the read-tracking operations consumed by the HTTP
// handlers. Implementations must honor the provided context.
type MessageService interface {
	// MarkRead marks one message read for the actor.
	MarkRead(ctx context.Context, userID, messageID string) error
	// MarkAllRead silences every message visible to the actor.
	MarkAllRead(ctx context.Context, userID string) error
	// ListActive returns a page of the actor's active messages plus a total.
	ListActive(ctx context.Context, userID string, page, pageSize int) ([]domain.Message, int64, error)
	// ListAll returns a page over every stored message (admin surface).
	ListAll(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for notifications. It depends on the
// abstract service interface plus a DB handle for idempotency records, and
// carries the explicit level-tag and label configuration used for rendering.
type Handlers struct {
	svc    MessageService
	db     *gorm.DB
	tags   map[int]string
	labels levels.LabelConfig

	idemTTL time.Duration
}

// New constructs a Handlers instance.
func New(svc MessageService, db *gorm.DB, tags map[int]string, labels levels.LabelConfig, idemTTL time.Duration) *Handlers {
	if tags == nil {
		tags = levels.DefaultTags
	}
	return &Handlers{svc: svc, db: db, tags: tags, labels: labels, idemTTL: idemTTL}
}

//
// DTOs
//

// AddMessageRequest is the JSON payload for adding a notification.
//
// Level must be one of the fifteen enumerated severity values. A persistent
// level with neither user nor broadcast set targets the request actor; an
// anonymous actor in that position is a contract violation and fails with
// 400 rather than being silently dropped.
type AddMessageRequest struct {
	// Level is the severity variant (e.g. 28 for persistent warning).
	Level int `json:"level" binding:"required" example:"28"`
	// Message is the notification body. Empty bodies are dropped silently.
	Message string `json:"message" binding:"required,min=1" example:"Your export finished"`
	// ExtraTags are optional space-separated label words.
	ExtraTags string `json:"extra_tags,omitempty" example:"billing"`
	// User targets another user instead of the request actor.
	User string `json:"user,omitempty" example:"user456"`
	// Broadcast requests an ownerless message visible to all users.
	Broadcast bool `json:"broadcast,omitempty"`
	// Expires is an optional RFC 3339 expiry cutoff.
	Expires string `json:"expires,omitempty" example:"2026-12-31T00:00:00Z"`
	// DetailLink is an optional "see more" URL.
	DetailLink string `json:"detail_link,omitempty"`
	// FailSilently suppresses the missing-chain configuration error only.
	FailSilently bool `json:"fail_silently,omitempty"`
}

// MessageDTO is one notification as returned to clients, with tags rendered
// from the explicit level-tag configuration.
type MessageDTO struct {
	ID         string `json:"id,omitempty"`
	Level      int    `json:"level"`
	Message    string `json:"message"`
	ExtraTags  string `json:"extra_tags,omitempty"`
	DetailLink string `json:"detail_link,omitempty"`
	Tags       string `json:"tags"`
}

// ListMessagesResponse contains the actor's current messages.
type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}

// Pagination carries page metadata for listing endpoints.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Endpoints
//

// AddMessage godoc
// @ID          addMessage
// @Summary     Add a notification
// @Description Routes a notification through the storage chain: sticky levels are discarded after this response, persistent levels are stored durably, everything else stays transient.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Actor user ID (anonymous when absent)" example(user123)
// @Param       Idempotency-Key  header  string  false "Dedupe key for safe retries"
// @Param       body             body    handlers.AddMessageRequest true "Notification payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload or anonymous persistent target"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /messages [post]
func (h *Handlers) AddMessage(c *gin.Context) {
	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "level and message are required")
		return
	}
	if !levels.IsKnown(req.Level) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown message level")
		return
	}
	if req.Expires != "" {
		if _, err := time.Parse(time.RFC3339, req.Expires); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "expires must be RFC 3339")
			return
		}
	}

	// A recorded retry short-circuits to the original outcome.
	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
		noContent(c)
		return
	}

	opts := storage.AddOptions{
		User:       req.User,
		Broadcast:  req.Broadcast,
		Expires:    req.Expires,
		DetailLink: req.DetailLink,
	}
	err := middleware.AddMessage(c, req.Level, req.Message, req.ExtraTags, req.FailSilently, opts)
	switch {
	case err == nil:
	case err == storage.ErrAnonymousPersistent:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case err == middleware.ErrNoMessages:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAddFailed, err.Error())
		return
	}

	middleware.CountMessageAdded(levelVariant(req.Level))

	if key, has := middleware.GetIdempotencyKey(c); has {
		uid, _ := middleware.UserFrom(c)
		if _, err := repo.CreateIdempotency(c.Request.Context(), h.db, uid, key, "", http.StatusNoContent, h.idemTTL); err != nil && err != repo.ErrDuplicate {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
		}
	}

	noContent(c)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List the actor's current messages
// @Description Gathers messages from the storage chain in backend order: stored unread persistent messages plus anything transient queued this request.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Actor user ID (anonymous when absent)" example(user123)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chain := middleware.MessagesFrom(c)
	if chain == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, middleware.ErrNoMessages.Error())
		return
	}
	msgs, _, err := chain.Retrieve(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:         m.ID,
			Level:      m.Level,
			Message:    m.Body,
			ExtraTags:  m.ExtraTags,
			DetailLink: m.DetailLink,
			Tags:       m.Tags(h.tags),
		})
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: out})
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark one message read
// @Description Owned messages get read=true on the row; broadcast messages get a per-user read marker so other users still see them.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Actor user ID" example(user123)
// @Param       id         path    string  true  "Message ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content (XHR)"
// @Success     302  {string} string "Redirect to referring page"
// @Failure     403  {object} handlers.ErrorResponse "Anonymous actor or foreign owner"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /mark_read/{id} [get]
func (h *Handlers) MarkRead(c *gin.Context) {
	uid, authed := middleware.UserFrom(c)
	if !authed {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "authentication required")
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), uid, c.Param("id")); err != nil {
		switch err {
		case services.ErrMessageNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case services.ErrPermissionDenied:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "permission denied")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	h.readDone(c)
}

// MarkAllRead godoc
// @ID          markAllRead
// @Summary     Mark all messages read
// @Description Sets read=true on every owned message and inserts read markers for every unmarked broadcast.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Actor user ID" example(user123)
//
// @Success     204  {string} string "No Content (XHR)"
// @Success     302  {string} string "Redirect to referring page"
// @Failure     403  {object} handlers.ErrorResponse "Anonymous actor"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /mark_read/all [get]
func (h *Handlers) MarkAllRead(c *gin.Context) {
	uid, authed := middleware.UserFrom(c)
	if !authed {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "authentication required")
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), uid); err != nil {
		if err == services.ErrPermissionDenied {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "permission denied")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.readDone(c)
}

// readDone finishes a successful mark-read action: 204 for XHR callers,
// redirect back to the referring page (or "/") for plain navigation.
func (h *Handlers) readDone(c *gin.Context) {
	if isXHR(c) {
		noContent(c)
		return
	}
	target := c.Request.Referer()
	if target == "" {
		target = "/"
	}
	c.Redirect(http.StatusFound, target)
}

// isXHR reports whether the request is flagged as an XMLHttpRequest.
func isXHR(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// levelVariant names the severity variant for metrics labels.
func levelVariant(level int) string {
	switch {
	case levels.IsPersistent(level):
		return "persistent"
	case levels.IsSticky(level):
		return "sticky"
	default:
		return "transient"
	}
}
