// Package domain defines the persistence models for notifications and
// per-user read tracking. These types are mapped with GORM and form the
// core data layer of the messages backend.
package domain

import (
	"strings"
	"time"

	"github.com/akontos/go-messages-backend/internal/levels"
)

// Message represents one persistent notification. A nil UserID marks the
// message as a broadcast: it is visible to every authenticated user until
// each one individually records a ReadMarker for it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner reference; nil means broadcast.
//   - Body: notification text, always a concrete string (deferred values are
//     resolved before rows are built, see the storage package).
//   - DetailLink: optional URL for "see more" navigation.
//   - Level: one of the five persistent severity levels (levels package).
//   - ExtraTags: optional space-separated label words.
//   - CreatedAt: set once on insert, immutable thereafter.
//   - UpdatedAt: bumped by GORM on every save.
//   - Read: global consumption flag. For owned messages true means fully
//     consumed. For broadcasts this flag must stay false on individual read
//     actions; per-user state lives in ReadMarker instead.
//   - ExpiresAt: optional cutoff; a lapsed message is excluded from every
//     active query regardless of Read. Rows are never physically deleted by
//     the core flow.
type Message struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     *string    `json:"user_id"     gorm:"type:varchar(64);index:idx_user_messages"`
	Body       string     `json:"message"     gorm:"column:body;type:text;not null"`
	DetailLink *string    `json:"detail_link,omitempty" gorm:"type:varchar(512)"`
	Level      int        `json:"level"       gorm:"not null;check:level IN (8,18,23,28,38)"`
	ExtraTags  string     `json:"extra_tags"  gorm:"type:varchar(128);not null;default:''"`
	CreatedAt  time.Time  `json:"created"`
	UpdatedAt  time.Time  `json:"modified"`
	Read       bool       `json:"read"        gorm:"not null;default:false"`
	ExpiresAt  *time.Time `json:"expires,omitempty" gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Broadcast reports whether the message has no single owner.
func (m *Message) Broadcast() bool { return m.UserID == nil }

// ActiveAt reports whether the message has not lapsed at the given instant.
func (m *Message) ActiveAt(now time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

// Tags renders the space-separated tag string for the message: the level's
// tag words from the supplied map, any extra tags, and a trailing
// "read"/"unread" marker. The tag map is explicit configuration; callers
// typically pass levels.DefaultTags or a levels.NewTags result.
func (m *Message) Tags(tags map[int]string) string {
	readTag := "unread"
	if m.Read {
		readTag = "read"
	}

	parts := make([]string, 0, 3)
	if label := tags[m.Level]; label != "" {
		parts = append(parts, label)
	}
	if m.ExtraTags != "" {
		parts = append(parts, m.ExtraTags)
	}
	parts = append(parts, readTag)
	return strings.Join(parts, " ")
}

// IsPersistentLevel reports whether the row carries a persistent level.
// Rows are only ever created at persistent levels; this exists for the
// admin listing surface.
func (m *Message) IsPersistentLevel() bool { return levels.IsPersistent(m.Level) }

// ReadMarker records that a specific user has read a specific broadcast
// message without mutating the shared row. Conceptually at most one marker
// exists per (user, message) pair; duplicates are harmless for query
// purposes and the schema does not hard-enforce uniqueness.
//
// Markers are created only by mark-read actions against broadcasts and are
// never updated or deleted by core logic.
type ReadMarker struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_marker_user"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;index:idx_marker_message"`
	Read      bool      `json:"read"       gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created"`

	// Message is the broadcast this marker consumes. Markers are
	// cascade-deleted if the underlying message is removed by an operator.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReadMarker.
func (ReadMarker) TableName() string { return "message_reads" }
