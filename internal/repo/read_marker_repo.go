// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ReadMarker
// model: per-user consumption records for broadcast messages.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/domain"
)

// CreateReadMarker inserts a marker recording that userID has read the
// broadcast messageID. Markers are created read=true; no code path creates
// them false.
func CreateReadMarker(ctx context.Context, db *gorm.DB, userID, messageID string) (*domain.ReadMarker, error) {
	m := &domain.ReadMarker{
		ID:        uuid.NewString(),
		UserID:    userID,
		MessageID: messageID,
		Read:      true,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// HasReadMarker reports whether a marker exists for (userID, messageID).
func HasReadMarker(ctx context.Context, db *gorm.DB, userID, messageID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ReadMarker{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&n).Error
	return n > 0, err
}

// UnmarkedBroadcastIDs returns the IDs of every broadcast message that has
// no marker yet for userID. Lapsed or globally-read broadcasts are included
// on purpose: mark-all-read silences everything, matching the active-query
// exclusions the user already never sees.
func UnmarkedBroadcastIDs(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("user_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
