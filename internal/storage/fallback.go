package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Backend names accepted by NewChain and the MESSAGE_STORAGES setting.
const (
	BackendSticky     = "sticky"
	BackendPersistent = "persistent"
	BackendMemory     = "memory"
)

// DefaultBackends is the default chain order. Sticky filtering must come
// before persistence so a sticky message is discarded rather than stored,
// and persistence must come before the transient tail so persistent
// messages never leak into transient storage.
var DefaultBackends = []string{BackendSticky, BackendPersistent, BackendMemory}

// Fallback composes an ordered list of backends into a single backend with
// the same contract. State (used-backend set, queued messages) is scoped to
// one request and must not be shared across requests.
type Fallback struct {
	// Level is the minimum reporting threshold; lower-leveled messages are
	// dropped silently before reaching any backend.
	Level int

	backends []Backend
	used     map[Backend]bool

	queued   []Message
	loaded   []Message
	fetched  bool
	addedNew bool
}

// NewFallback composes the given backends in order.
func NewFallback(level int, backends ...Backend) *Fallback {
	return &Fallback{
		Level:    level,
		backends: backends,
		used:     make(map[Backend]bool),
	}
}

// NewChain builds a Fallback from backend names, binding persistence to the
// given DB handle and request scope. Unknown names are a configuration
// error.
func NewChain(names []string, db *gorm.DB, scope Scope, level int) (*Fallback, error) {
	if len(names) == 0 {
		names = DefaultBackends
	}
	backends := make([]Backend, 0, len(names))
	for _, name := range names {
		switch name {
		case BackendSticky:
			backends = append(backends, NewSticky())
		case BackendPersistent:
			backends = append(backends, NewPersistent(db, scope, level))
		case BackendMemory:
			backends = append(backends, NewMemory())
		default:
			return nil, fmt.Errorf("unknown message storage backend %q", name)
		}
	}
	return NewFallback(level, backends...), nil
}

// Retrieve gathers messages from the backends in order. Iteration stops at
// the first backend reporting an exhaustive result, or at a backend that was
// never engaged (nil sentinel) — a declining backend blocks everything
// behind it, an accepted quirk of the layering. Backends that yielded
// messages are remembered so Update can flush them later.
func (f *Fallback) Retrieve(ctx context.Context) ([]Message, bool, error) {
	if f.fetched {
		out := make([]Message, len(f.loaded))
		copy(out, f.loaded)
		return out, true, nil
	}

	var all []Message
	for _, b := range f.backends {
		msgs, exhaustive, err := b.Retrieve(ctx)
		if err != nil {
			return nil, false, err
		}
		if msgs == nil {
			break
		}
		if len(msgs) > 0 {
			f.used[b] = true
		}
		all = append(all, msgs...)
		if exhaustive {
			break
		}
	}
	f.loaded = all
	f.fetched = true

	out := make([]Message, len(all))
	copy(out, all)
	return out, true, nil
}

// Store feeds the message list through each backend in order, threading the
// unclaimed remainder forward: backend i+1 only sees what backend i passed
// on. A backend that previously yielded messages still receives an explicit
// empty store so it can flush its own state. Whatever survives the last
// backend is returned and effectively dropped.
func (f *Fallback) Store(ctx context.Context, msgs []Message) ([]Message, error) {
	var err error
	for _, b := range f.backends {
		if len(msgs) > 0 {
			msgs, err = b.Store(ctx, msgs)
			if err != nil {
				return nil, err
			}
		} else if f.used[b] {
			if _, err = b.Store(ctx, []Message{}); err != nil {
				return nil, err
			}
			delete(f.used, b)
		}
	}
	return msgs, nil
}

// Add validates and queues a message for storage. Empty bodies and
// below-threshold levels are dropped silently. The constructed message is
// offered to every backend's Process hook in order; any hook may transform
// or fully absorb it, short-circuiting the rest. Only a message surviving
// all hooks is queued for the store pass at Update time.
func (f *Fallback) Add(ctx context.Context, level int, body, extraTags any, opts AddOptions) error {
	m := NewMessage(level, body, extraTags)
	if m.Body == "" {
		return nil
	}
	if level < f.Level {
		return nil
	}
	m.DetailLink = opts.DetailLink

	f.addedNew = true
	for _, b := range f.backends {
		p, ok := b.(Processor)
		if !ok {
			continue
		}
		got, err := p.Process(ctx, m, opts)
		if err != nil {
			return err
		}
		if got == nil {
			return nil
		}
		m = *got
	}
	f.queued = append(f.queued, m)
	return nil
}

// Update flushes the chain at the end of the request/response cycle. If the
// chain was read this request, only newly queued messages are stored;
// otherwise loaded-but-unread messages are carried forward alongside the
// queued ones. Returns the messages no backend claimed.
func (f *Fallback) Update(ctx context.Context) ([]Message, error) {
	switch {
	case len(f.used) > 0 || f.fetched:
		return f.Store(ctx, f.queued)
	case f.addedNew:
		return f.Store(ctx, append(f.loaded, f.queued...))
	default:
		return nil, nil
	}
}

// Queued exposes the messages currently awaiting the store pass.
func (f *Fallback) Queued() []Message { return f.queued }
