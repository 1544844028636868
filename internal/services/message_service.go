// Package services – MessageService
//
// This file implements the MessageService, which governs read tracking for
// persistent notifications. Owned messages are marked read by mutating the
// row; broadcast messages are marked read per user by inserting a ReadMarker
// so the shared row stays visible to everyone else. Service-level errors
// (ErrMessageNotFound, ErrPermissionDenied) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/domain"
	"github.com/akontos/go-messages-backend/internal/repo"
)

// MessageService implements the read-tracking use-cases for persistent
// notifications. It enforces ownership rules and persists state using the
// provided GORM handle.
type MessageService struct {
	// DB is the database handle used for all operations. It may be a plain
	// *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db}
}

// MarkRead records that userID has read messageID.
//
// Semantics:
//   - An empty userID (anonymous actor) yields ErrPermissionDenied.
//   - A missing message yields ErrMessageNotFound.
//   - A message owned by a different user yields ErrPermissionDenied; the
//     actor was never allowed to see it.
//   - An owned message gets read=true on the row itself.
//   - A broadcast message gets a ReadMarker(actor, message) instead; the
//     shared row is untouched so other users still see it as active.
//
// Marking an already-marked broadcast again inserts a second marker, which
// is harmless for query purposes; idempotence at that level is not enforced
// by the schema.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID string) error {
	if userID == "" {
		return ErrPermissionDenied
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetMessage(ctx, tx, messageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		if msg.Broadcast() {
			_, err := repo.CreateReadMarker(ctx, tx, userID, msg.ID)
			return err
		}

		if *msg.UserID != userID {
			return ErrPermissionDenied
		}
		return repo.MarkMessageRead(ctx, tx, msg.ID)
	})
}

// MarkAllRead silences every message visible to userID: one bulk update sets
// read=true on all owned rows, then a ReadMarker is inserted for each
// broadcast the user has not marked yet.
//
// The two phases are not wrapped in one transaction on purpose: the
// reference behavior accepts that a crash between them can leave some
// broadcasts unmarked even though the owned rows were flagged. Each phase
// individually inherits the row-level durability of the store.
func (s *MessageService) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrPermissionDenied
	}

	if err := repo.MarkAllOwnedRead(ctx, s.DB, userID); err != nil {
		return err
	}

	ids, err := repo.UnmarkedBroadcastIDs(ctx, s.DB, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := repo.CreateReadMarker(ctx, s.DB, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// ListActive returns a page of the user's active messages plus the total
// count. It applies defaults for invalid page/pageSize.
func (s *MessageService) ListActive(ctx context.Context, userID string, page, pageSize int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	now := time.Now().UTC()

	total, err := repo.CountActiveMessages(ctx, s.DB, userID, now)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ActiveMessagesPage(ctx, s.DB, userID, now, offset, pageSize)
	return items, total, err
}

// ListAll returns a page over every message row, newest first, plus the
// total count. This backs the read-only admin listing.
func (s *MessageService) ListAll(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}
