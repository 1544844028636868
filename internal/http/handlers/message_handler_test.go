package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akontos/go-messages-backend/internal/domain"
	"github.com/akontos/go-messages-backend/internal/http/middleware"
	"github.com/akontos/go-messages-backend/internal/levels"
	"github.com/akontos/go-messages-backend/internal/repo"
	"github.com/akontos/go-messages-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Message{}, &domain.ReadMarker{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newAPI wires an engine the way the router does, minus the outer
// protection layers that are irrelevant here.
func newAPI(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()

	svc := services.NewMessageService(db)
	h := New(svc, db, levels.NewTags(nil), levels.NewLabelConfig(language.English), time.Hour)

	lookup := func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, key, now)
		if err == repo.ErrNotFound {
			return false, nil
		}
		return err == nil, err
	}

	r := gin.New()
	r.Use(
		middleware.Identity(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup),
		middleware.Messages(db, nil, levels.DebugSticky),
	)
	r.POST("/messages", h.AddMessage)
	r.GET("/messages", h.ListMessages)
	r.GET("/mark_read/all", h.MarkAllRead)
	r.GET("/mark_read/:id", h.MarkRead)
	r.GET("/admin/messages", h.AdminListMessages)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, uid string, body AddMessageRequest, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, r *gin.Engine, uid, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestAddMessage_PersistentStoresRow(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	w := postJSON(t, r, "u1", AddMessageRequest{Level: levels.WarningPersistent, Message: "quota low"}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var rows []domain.Message
	db.Find(&rows)
	if len(rows) != 1 || rows[0].UserID == nil || *rows[0].UserID != "u1" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Level != levels.WarningPersistent || rows[0].Body != "quota low" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestAddMessage_StickyAndTransientNeverStored(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	for _, lvl := range []int{levels.ErrorSticky, levels.Info} {
		w := postJSON(t, r, "u1", AddMessageRequest{Level: lvl, Message: "ephemeral"}, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("level %d: status = %d", lvl, w.Code)
		}
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("%d rows persisted for non-persistent levels", n)
	}
}

func TestAddMessage_BroadcastHasNoOwner(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	w := postJSON(t, r, "admin", AddMessageRequest{
		Level:     levels.InfoPersistent,
		Message:   "maintenance at noon",
		Broadcast: true,
	}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	var rows []domain.Message
	db.Find(&rows)
	if len(rows) != 1 || rows[0].UserID != nil {
		t.Fatalf("rows = %+v, want one ownerless row", rows)
	}
}

func TestAddMessage_Validation(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	cases := []struct {
		name string
		body AddMessageRequest
	}{
		{"missing message", AddMessageRequest{Level: levels.Info}},
		{"missing level", AddMessageRequest{Message: "x"}},
		{"unknown level", AddMessageRequest{Level: 9, Message: "x"}},
		{"bad expires", AddMessageRequest{Level: levels.Info, Message: "x", Expires: "next tuesday"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, r, "u1", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
			}
		})
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("invalid requests persisted %d rows", n)
	}
}

func TestAddMessage_AnonymousPersistentRejected(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	w := postJSON(t, r, "", AddMessageRequest{Level: levels.ErrorPersistent, Message: "nobody owns this"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", resp.Code)
	}
	if n := countRows(t, db); n != 0 {
		t.Fatal("row persisted for anonymous target")
	}

	// Broadcast resolves the target, so anonymity is fine.
	w = postJSON(t, r, "", AddMessageRequest{Level: levels.ErrorPersistent, Message: "fine", Broadcast: true}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("broadcast status = %d", w.Code)
	}
}

func TestAddMessage_IdempotentRetry(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)
	hdr := map[string]string{"Idempotency-Key": "send-42"}
	body := AddMessageRequest{Level: levels.InfoPersistent, Message: "exactly once"}

	if w := postJSON(t, r, "u1", body, hdr); w.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", w.Code)
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("first send wrote %d rows", n)
	}

	w := postJSON(t, r, "u1", body, hdr)
	if w.Code != http.StatusNoContent {
		t.Fatalf("retry status = %d", w.Code)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Error("retry not flagged as replayed")
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("retry duplicated the notification: %d rows", n)
	}
}

func TestListMessages_ReturnsStoredWithTags(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	if w := postJSON(t, r, "u1", AddMessageRequest{
		Level:     levels.WarningPersistent,
		Message:   "check this",
		ExtraTags: "billing",
	}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed status = %d", w.Code)
	}

	w := get(t, r, "u1", "/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ListMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("messages = %+v", resp.Messages)
	}
	m := resp.Messages[0]
	if m.ID == "" {
		t.Error("stored message served without row ID")
	}
	if m.Message != "check this" || m.Level != levels.WarningPersistent {
		t.Errorf("message = %+v", m)
	}
	if m.Tags != "warning persistent billing" {
		t.Errorf("tags = %q", m.Tags)
	}

	// Another user sees nothing.
	w = get(t, r, "u2", "/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp = ListMessagesResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Messages) != 0 {
		t.Fatalf("u2 sees %+v", resp.Messages)
	}
}

func TestMarkRead_RedirectAndXHR(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	if w := postJSON(t, r, "u1", AddMessageRequest{Level: levels.InfoPersistent, Message: "dismiss me"}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed: %d", w.Code)
	}
	var row domain.Message
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}

	// Plain navigation bounces back to the referring page.
	w := get(t, r, "u1", "/mark_read/"+row.ID, map[string]string{"Referer": "https://app.example/inbox"})
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "https://app.example/inbox" {
		t.Fatalf("Location = %q", loc)
	}

	// Re-seed and mark via XHR: 204, no redirect.
	if w := postJSON(t, r, "u1", AddMessageRequest{Level: levels.InfoPersistent, Message: "again"}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed: %d", w.Code)
	}
	var rows []domain.Message
	db.Where("read = ?", false).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("unread rows = %+v", rows)
	}
	w = get(t, r, "u1", "/mark_read/"+rows[0].ID, map[string]string{"X-Requested-With": "XMLHttpRequest"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("XHR status = %d", w.Code)
	}

	// No referrer falls back to "/".
	if w := postJSON(t, r, "u1", AddMessageRequest{Level: levels.InfoPersistent, Message: "third"}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed: %d", w.Code)
	}
	rows = nil
	db.Where("read = ?", false).Find(&rows)
	w = get(t, r, "u1", "/mark_read/"+rows[0].ID, nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("status = %d Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestMarkRead_Errors(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	if w := postJSON(t, r, "owner", AddMessageRequest{Level: levels.InfoPersistent, Message: "private"}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed: %d", w.Code)
	}
	var row domain.Message
	db.First(&row)

	if w := get(t, r, "", "/mark_read/"+row.ID, nil); w.Code != http.StatusForbidden {
		t.Fatalf("anonymous status = %d", w.Code)
	}
	if w := get(t, r, "intruder", "/mark_read/"+row.ID, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign status = %d", w.Code)
	}
	if w := get(t, r, "owner", "/mark_read/does-not-exist", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
}

func TestMarkRead_BroadcastLeavesOthersUnaffected(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	if w := postJSON(t, r, "admin", AddMessageRequest{
		Level: levels.InfoPersistent, Message: "for all", Broadcast: true,
	}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("seed: %d", w.Code)
	}
	var row domain.Message
	db.First(&row)

	if w := get(t, r, "alpha", "/mark_read/"+row.ID, map[string]string{"X-Requested-With": "XMLHttpRequest"}); w.Code != http.StatusNoContent {
		t.Fatalf("mark status = %d", w.Code)
	}

	for uid, want := range map[string]int{"alpha": 0, "beta": 1} {
		w := get(t, r, uid, "/messages", nil)
		var resp ListMessagesResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Messages) != want {
			t.Errorf("%s sees %d messages, want %d", uid, len(resp.Messages), want)
		}
	}
}

func TestMarkAllRead(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPI(t, db)

	for _, req := range []AddMessageRequest{
		{Level: levels.InfoPersistent, Message: "one"},
		{Level: levels.WarningPersistent, Message: "two"},
		{Level: levels.InfoPersistent, Message: "everyone", Broadcast: true},
	} {
		if w := postJSON(t, r, "u1", req, nil); w.Code != http.StatusNoContent {
			t.Fatalf("seed: %d", w.Code)
		}
	}

	if w := get(t, r, "", "/mark_read/all", nil); w.Code != http.StatusForbidden {
		t.Fatalf("anonymous status = %d", w.Code)
	}

	w := get(t, r, "u1", "/mark_read/all", map[string]string{"X-Requested-With": "XMLHttpRequest"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	w = get(t, r, "u1", "/messages", nil)
	var resp ListMessagesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Messages) != 0 {
		t.Fatalf("u1 still sees %+v", resp.Messages)
	}

	// The broadcast stays active for everyone else.
	w = get(t, r, "u2", "/messages", nil)
	resp = ListMessagesResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Messages) != 1 {
		t.Fatalf("u2 sees %d messages, want the broadcast", len(resp.Messages))
	}
}
