// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a message is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The "active for user" predicate used throughout:
//
//	(user_id = U OR user_id IS NULL)
//	AND (expires_at IS NULL OR expires_at > now)
//	AND read = false
//	AND no ReadMarker row exists for (message, U)
//
// Ownership rules and the broadcast/ReadMarker distinction are enforced by
// the services layer (see services.MessageService).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so existing errors.Is checks keep working.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMessage inserts a new message row. The caller supplies a fully
// populated model except for ID and CreatedAt, which are assigned here.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID, without ownership scoping.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// activeScope composes the active-for-user predicate onto a query.
func activeScope(db *gorm.DB, userID string, now time.Time) *gorm.DB {
	return db.
		Where("(user_id = ? OR user_id IS NULL)", userID).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("read = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID)
}

// ActiveMessagesForUser returns every message active for the user at the
// given instant, ordered deterministically (CreatedAt ASC, ID ASC).
func ActiveMessagesForUser(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := activeScope(db.WithContext(ctx).Model(&domain.Message{}), userID, now).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountActiveMessages returns the number of active messages for the user.
func CountActiveMessages(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error) {
	var total int64
	err := activeScope(db.WithContext(ctx).Model(&domain.Message{}), userID, now).
		Count(&total).Error
	return total, err
}

// ActiveMessagesPage returns a paginated slice of active messages for the
// user, ordered (CreatedAt ASC, ID ASC).
func ActiveMessagesPage(ctx context.Context, db *gorm.DB, userID string, now time.Time, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := activeScope(db.WithContext(ctx).Model(&domain.Message{}), userID, now).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkMessageRead sets read=true on a single row. The caller has already
// verified ownership; this is a plain column update.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllOwnedRead sets read=true on every message owned by the user in one
// bulk update. Broadcast rows (user_id IS NULL) are deliberately untouched.
func MarkAllOwnedRead(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("user_id = ?", userID).
		Update("read", true).Error
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages").Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a page over all message rows, newest first.
// This backs the read-only admin listing surface.
func ListMessagesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
