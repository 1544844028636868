package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akontos/go-messages-backend/internal/domain"
	"github.com/akontos/go-messages-backend/internal/levels"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Release the file handle before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strptr(s string) *string { return &s }

func seedMessage(t *testing.T, db *gorm.DB, owner *string, body string, opts ...func(*domain.Message)) *domain.Message {
	t.Helper()
	m := &domain.Message{
		UserID: owner,
		Body:   body,
		Level:  levels.InfoPersistent,
	}
	for _, o := range opts {
		o(m)
	}
	if err := CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

func TestCreateMessage_AssignsIDAndTimestamp(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	start := time.Now().UTC().Add(-time.Second)
	m := seedMessage(t, db, strptr("u1"), "hello")
	if m.ID == "" {
		t.Fatal("ID not assigned")
	}
	if m.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt not set: %v", m.CreatedAt)
	}

	got, err := GetMessage(context.Background(), db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Body != "hello" || got.UserID == nil || *got.UserID != "u1" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestCreateMessage_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	err := CreateMessage(context.Background(), db, &domain.Message{Body: "x", Level: levels.InfoPersistent})
	if err == nil {
		t.Fatal("expected error without table")
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	_, err := GetMessage(context.Background(), db, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestActiveMessagesForUser_Visibility(t *testing.T) {
	db := newRepoDB(t, &domain.Message{}, &domain.ReadMarker{})
	ctx := context.Background()
	now := time.Now().UTC()

	owned := seedMessage(t, db, strptr("u1"), "owned")
	seedMessage(t, db, nil, "broadcast")
	seedMessage(t, db, strptr("u2"), "foreign")
	past := now.Add(-time.Hour)
	seedMessage(t, db, strptr("u1"), "lapsed", func(m *domain.Message) { m.ExpiresAt = &past })
	read := seedMessage(t, db, strptr("u1"), "consumed")
	if err := MarkMessageRead(ctx, db, read.ID); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}

	got, err := ActiveMessagesForUser(ctx, db, "u1", now)
	if err != nil {
		t.Fatalf("ActiveMessagesForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(got), got)
	}
	// Ordered by creation: owned first, broadcast second.
	if got[0].ID != owned.ID || got[0].Body != "owned" {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].Broadcast() || got[1].Body != "broadcast" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestActiveMessagesForUser_ExcludesMarkedBroadcasts(t *testing.T) {
	db := newRepoDB(t, &domain.Message{}, &domain.ReadMarker{})
	ctx := context.Background()
	now := time.Now().UTC()

	b := seedMessage(t, db, nil, "announce")
	if _, err := CreateReadMarker(ctx, db, "u1", b.ID); err != nil {
		t.Fatalf("CreateReadMarker: %v", err)
	}

	// u1 marked it; u2 did not.
	got, err := ActiveMessagesForUser(ctx, db, "u1", now)
	if err != nil {
		t.Fatalf("ActiveMessagesForUser(u1): %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("u1 still sees marked broadcast: %+v", got)
	}

	got, err = ActiveMessagesForUser(ctx, db, "u2", now)
	if err != nil {
		t.Fatalf("ActiveMessagesForUser(u2): %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("u2 lost the broadcast: %+v", got)
	}
}

func TestCountAndPageActiveMessages(t *testing.T) {
	db := newRepoDB(t, &domain.Message{}, &domain.ReadMarker{})
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedMessage(t, db, strptr("u1"), fmt.Sprintf("m%d", i))
	}

	total, err := CountActiveMessages(ctx, db, "u1", now)
	if err != nil {
		t.Fatalf("CountActiveMessages: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	page, err := ActiveMessagesPage(ctx, db, "u1", now, 2, 2)
	if err != nil {
		t.Fatalf("ActiveMessagesPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
}

func TestMarkMessageRead(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	ctx := context.Background()

	m := seedMessage(t, db, strptr("u1"), "note")
	if err := MarkMessageRead(ctx, db, m.ID); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	got, err := GetMessage(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !got.Read {
		t.Error("row not flagged read")
	}

	if err := MarkMessageRead(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: err = %v, want ErrNotFound", err)
	}
}

func TestMarkAllOwnedRead_LeavesBroadcastsAlone(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	ctx := context.Background()

	seedMessage(t, db, strptr("u1"), "a")
	seedMessage(t, db, strptr("u1"), "b")
	other := seedMessage(t, db, strptr("u2"), "c")
	bc := seedMessage(t, db, nil, "announce")

	if err := MarkAllOwnedRead(ctx, db, "u1"); err != nil {
		t.Fatalf("MarkAllOwnedRead: %v", err)
	}

	var unreadOwned int64
	db.Model(&domain.Message{}).Where("user_id = ? AND read = ?", "u1", false).Count(&unreadOwned)
	if unreadOwned != 0 {
		t.Errorf("%d owned rows left unread", unreadOwned)
	}
	for _, id := range []string{other.ID, bc.ID} {
		got, err := GetMessage(ctx, db, id)
		if err != nil {
			t.Fatalf("GetMessage(%s): %v", id, err)
		}
		if got.Read {
			t.Errorf("row %s flagged read by another user's mark-all", id)
		}
	}
}

func TestListMessagesPage_NewestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		m := seedMessage(t, db, strptr("u1"), fmt.Sprintf("m%d", i))
		// Spread creation times so ordering is deterministic.
		db.Model(m).Update("created_at", base.Add(time.Duration(i)*time.Minute))
	}

	total, err := CountMessages(ctx, db)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	rows, err := ListMessagesPage(ctx, db, 0, 10)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(rows) != 3 || rows[0].Body != "m2" || rows[2].Body != "m0" {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestCountMessages_NoTable(t *testing.T) {
	db := newRepoDB(t)
	if _, err := CountMessages(context.Background(), db); err == nil {
		t.Fatal("expected error without table")
	}
}
