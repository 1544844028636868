package storage

import "context"

// Memory is the request-scoped tail backend. It stands in for the
// surrounding framework's transient cookie/session stores: it claims every
// message offered to it so nothing falls off the end of the chain within a
// request. Its contents die with the request, which is the transient
// contract this module deliberately leaves to the framework.
type Memory struct {
	msgs []Message
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory { return &Memory{msgs: []Message{}} }

// Retrieve returns whatever was stored during this request. The result is
// always exhaustive: nothing sits behind the tail backend.
func (m *Memory) Retrieve(ctx context.Context) ([]Message, bool, error) {
	out := make([]Message, len(m.msgs))
	copy(out, m.msgs)
	return out, true, nil
}

// Store claims every message and returns an empty remainder.
func (m *Memory) Store(ctx context.Context, msgs []Message) ([]Message, error) {
	m.msgs = make([]Message, len(msgs))
	copy(m.msgs, msgs)
	return []Message{}, nil
}
