// Admin HTTP handlers.
//
// This file exposes the read-only listing surface over stored message rows:
//   - GET /admin/messages (paginated table: level, user, body, created, read)
//
// The listing is informational tooling for operators; it is not part of the
// storage chain contract and never mutates rows.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akontos/go-messages-backend/internal/utils"
)

// AdminMessageRow is one row of the admin listing, including the rendered
// display label and tag string.
type AdminMessageRow struct {
	ID         string     `json:"id"`
	Level      int        `json:"level"`
	Label      string     `json:"label"`
	User       *string    `json:"user"`
	Message    string     `json:"message"`
	ExtraTags  string     `json:"extra_tags,omitempty"`
	DetailLink *string    `json:"detail_link,omitempty"`
	Created    time.Time  `json:"created"`
	Read       bool       `json:"read"`
	Expires    *time.Time `json:"expires,omitempty"`
	Tags       string     `json:"tags"`
}

// AdminListResponse wraps a page of message rows and pagination metadata.
type AdminListResponse struct {
	Messages   []AdminMessageRow `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

// clampPagination parses page/page_size query parameters with defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// AdminListMessages godoc
// @ID          adminListMessages
// @Summary     List all stored messages
// @Description Read-only paginated table over every stored notification, newest first.
// @Tags        Admin
// @Produce     json
//
// @Param       page       query  int  false "Page number (1-based)"  default(1)
// @Param       page_size  query  int  false "Rows per page (max 100)" default(20)
//
// @Success     200  {object} handlers.AdminListResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /admin/messages [get]
func (h *Handlers) AdminListMessages(c *gin.Context) {
	page, pageSize := clampPagination(c)

	rows, total, err := h.svc.ListAll(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	out := make([]AdminMessageRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, AdminMessageRow{
			ID:         r.ID,
			Level:      r.Level,
			Label:      h.labels.Label(r.Level),
			User:       r.UserID,
			Message:    r.Body,
			ExtraTags:  r.ExtraTags,
			DetailLink: r.DetailLink,
			Created:    r.CreatedAt,
			Read:       r.Read,
			Expires:    r.ExpiresAt,
			Tags:       r.Tags(h.tags),
		})
	}

	totalPages := utils.PageCount(total, pageSize)
	ok(c, http.StatusOK, AdminListResponse{
		Messages: out,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
