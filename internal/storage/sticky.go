package storage

import (
	"context"

	"github.com/akontos/go-messages-backend/internal/levels"
)

// Sticky is the pass-through backend that unconditionally discards
// sticky-leveled messages. Sticky messages exist only within the current
// add/store cycle; they are never written anywhere and never retrievable,
// which is what guarantees they cannot survive page navigation.
type Sticky struct{}

// NewSticky returns a Sticky backend.
func NewSticky() *Sticky { return &Sticky{} }

// Retrieve always reports no messages and non-exhaustive: sticky messages
// never reach any storage, so there is nothing to load.
func (s *Sticky) Retrieve(ctx context.Context) ([]Message, bool, error) {
	return []Message{}, false, nil
}

// Store drops every sticky-leveled message and passes the rest through
// unchanged. No side effects beyond the filtering.
func (s *Sticky) Store(ctx context.Context, msgs []Message) ([]Message, error) {
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !levels.IsSticky(m.Level) {
			rest = append(rest, m)
		}
	}
	return rest, nil
}
