// Package storage implements the message storage chain: an ordered set of
// backends that each either claim an outbound notification or pass it on to
// the next backend. Three backends live here:
//
//   - Sticky: strips sticky-leveled messages so they never reach any store.
//   - Persistent: converts persistent-leveled messages into durable rows and
//     serves previously stored unread rows back to the request.
//   - Memory: request-scoped tail backend standing in for the surrounding
//     framework's transient session/cookie stores, whose encoding is out of
//     scope here.
//
// The Fallback type composes backends into a single one with the same
// contract. All chain state is request-scoped; a new chain is built per
// request and never shared across goroutines.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrAnonymousPersistent is returned when a persistent-level message is
// targeted at an anonymous recipient. This is a programmer error at the call
// site, never silently dropped or downgraded.
var ErrAnonymousPersistent = errors.New("persistent message levels cannot be used for anonymous users")

// Scope identifies the request actor the chain operates for.
type Scope struct {
	// UserID is the authenticated user's identifier; empty means anonymous.
	UserID string
}

// Anonymous reports whether the scope has no authenticated user.
func (s Scope) Anonymous() bool { return s.UserID == "" }

// Message is the transient notification value carried through the chain for
// the duration of one request/response cycle. Persisted messages surfaced by
// the Persistent backend additionally carry the row ID so clients can build
// mark-read links.
type Message struct {
	ID         string `json:"id,omitempty"`
	Level      int    `json:"level"`
	Body       string `json:"message"`
	ExtraTags  string `json:"extra_tags,omitempty"`
	DetailLink string `json:"detail_link,omitempty"`
}

// NewMessage builds a chain message. Body and extra tags accept deferred
// textual values and are forced to concrete strings here, before the value
// leaves the construction boundary.
func NewMessage(level int, body, extraTags any) Message {
	return Message{
		Level:     level,
		Body:      ForceText(body),
		ExtraTags: ForceText(extraTags),
	}
}

// Tags renders the space-separated tag words for the message from the given
// level-tag configuration map plus any extra tags.
func (m Message) Tags(tags map[int]string) string {
	label := tags[m.Level]
	switch {
	case label != "" && m.ExtraTags != "":
		return label + " " + m.ExtraTags
	case m.ExtraTags != "":
		return m.ExtraTags
	default:
		return label
	}
}

// ForceText resolves a possibly deferred textual value to a concrete string.
// Strings pass through; Stringers and thunks are evaluated; nil becomes the
// empty string; anything else is formatted with fmt.
func ForceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case func() string:
		return t()
	default:
		return fmt.Sprint(t)
	}
}

// AddOptions carries the optional parameters of an add-message call.
type AddOptions struct {
	// User targets the message at an explicit user instead of the actor.
	User string
	// Broadcast requests a message with no owner, visible to every
	// authenticated user. Takes precedence over User.
	Broadcast bool
	// Expires sets the optional expiry cutoff, in RFC 3339 form so the
	// option survives transport untouched; empty means never.
	Expires string
	// DetailLink is the optional "see more" URL.
	DetailLink string
}

// Backend is the capability shared by every storage in the chain.
//
// Retrieve returns the messages this backend holds for the request actor and
// whether the result is exhaustive (no later backend needs consulting). A
// nil message slice is the "never engaged" sentinel: the composite chain
// stops iterating entirely when it sees one. Backends that participated but
// hold nothing return an empty non-nil slice.
//
// Store offers the given messages to the backend and returns the remainder
// it did not claim, which the chain threads to the next backend.
type Backend interface {
	Retrieve(ctx context.Context) ([]Message, bool, error)
	Store(ctx context.Context, msgs []Message) ([]Message, error)
}

// Processor is the optional admission hook a backend may implement. Process
// either transforms the message, absorbs it entirely (nil result), or passes
// it through untouched. Absorbing short-circuits the remaining hooks and the
// generic store pass.
type Processor interface {
	Process(ctx context.Context, m Message, opts AddOptions) (*Message, error)
}
