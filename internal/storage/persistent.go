package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/akontos/go-messages-backend/internal/domain"
	"github.com/akontos/go-messages-backend/internal/levels"
	"github.com/akontos/go-messages-backend/internal/repo"
)

// Persistent claims persistent-leveled messages, converting them to durable
// rows, and serves previously stored unread rows back to the request.
//
// Persistence is eager: Process writes the row the moment the message is
// admitted, so the row has a stable ID inside the same response that first
// displays it and can be rendered with a working mark-read link. Deferring
// the write to response flush would make first-display messages
// non-dismissible until a second page load.
type Persistent struct {
	DB    *gorm.DB
	Scope Scope

	// Level is the minimum reporting threshold applied by Add.
	Level int

	// queued holds messages Add accepted but Process did not absorb; they
	// continue to the rest of a composite chain via Store.
	queued []Message
}

// NewPersistent returns a Persistent backend bound to the request scope.
func NewPersistent(db *gorm.DB, scope Scope, level int) *Persistent {
	return &Persistent{DB: db, Scope: scope, Level: level}
}

// Retrieve returns all active stored messages for the request actor.
// Anonymous actors own nothing, so they get an empty result immediately.
// The result is never exhaustive: this backend does not claim to be the
// sole source of messages for the request.
func (p *Persistent) Retrieve(ctx context.Context) ([]Message, bool, error) {
	if p.Scope.Anonymous() {
		return []Message{}, false, nil
	}
	rows, err := repo.ActiveMessagesForUser(ctx, p.DB, p.Scope.UserID, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, false, nil
}

// Store filters persistent-leveled messages out of the pass-through list.
// They were already persisted by Process, so nothing further is needed;
// everything else continues to the next backend.
func (p *Persistent) Store(ctx context.Context, msgs []Message) ([]Message, error) {
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !levels.IsPersistent(m.Level) {
			rest = append(rest, m)
		}
	}
	return rest, nil
}

// Process is the admission check. Non-persistent messages pass through
// untouched. Persistent messages are persisted immediately for the resolved
// target (explicit option, else the request actor; nil owner for broadcast)
// and absorbed. A persistent message with no resolvable authenticated target
// is a contract violation and fails loudly with ErrAnonymousPersistent.
func (p *Persistent) Process(ctx context.Context, m Message, opts AddOptions) (*Message, error) {
	if !levels.IsPersistent(m.Level) {
		return &m, nil
	}

	var owner *string
	switch {
	case opts.Broadcast:
		owner = nil
	case opts.User != "":
		u := opts.User
		owner = &u
	case !p.Scope.Anonymous():
		u := p.Scope.UserID
		owner = &u
	default:
		return nil, ErrAnonymousPersistent
	}

	row := &domain.Message{
		UserID:    owner,
		Body:      m.Body,
		Level:     m.Level,
		ExtraTags: m.ExtraTags,
	}
	if m.DetailLink != "" {
		link := m.DetailLink
		row.DetailLink = &link
	}
	if opts.Expires != "" {
		exp, err := time.Parse(time.RFC3339, opts.Expires)
		if err != nil {
			return nil, err
		}
		row.ExpiresAt = &exp
	}
	if err := repo.CreateMessage(ctx, p.DB, row); err != nil {
		return nil, err
	}
	return nil, nil
}

// Add mirrors the base storage contract for standalone use: empty bodies and
// below-threshold levels are dropped silently, persistent messages are
// absorbed by Process, and anything else is queued.
func (p *Persistent) Add(ctx context.Context, level int, body, extraTags any, opts AddOptions) error {
	m := NewMessage(level, body, extraTags)
	if m.Body == "" {
		return nil
	}
	if level < p.Level {
		return nil
	}
	m.DetailLink = opts.DetailLink
	got, err := p.Process(ctx, m, opts)
	if err != nil {
		return err
	}
	if got != nil {
		p.queued = append(p.queued, *got)
	}
	return nil
}

// Queued exposes the messages Add accepted but did not absorb.
func (p *Persistent) Queued() []Message { return p.queued }

// fromRow converts a stored row to its transient chain representation.
func fromRow(r domain.Message) Message {
	m := Message{
		ID:        r.ID,
		Level:     r.Level,
		Body:      r.Body,
		ExtraTags: r.ExtraTags,
	}
	if r.DetailLink != nil {
		m.DetailLink = *r.DetailLink
	}
	return m
}
