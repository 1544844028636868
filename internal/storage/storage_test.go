package storage

import (
	"testing"

	"github.com/akontos/go-messages-backend/internal/levels"
)

type stamp struct{}

func (stamp) String() string { return "stamped" }

func TestForceText(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"stringer", stamp{}, "stamped"},
		{"thunk", func() string { return "lazy" }, "lazy"},
		{"fallback", 42, "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ForceText(tc.in); got != tc.want {
				t.Errorf("ForceText(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewMessage_ForcesDeferredValues(t *testing.T) {
	m := NewMessage(levels.Info, func() string { return "built later" }, stamp{})
	if m.Body != "built later" {
		t.Errorf("Body = %q", m.Body)
	}
	if m.ExtraTags != "stamped" {
		t.Errorf("ExtraTags = %q", m.ExtraTags)
	}
	if m.Level != levels.Info {
		t.Errorf("Level = %d", m.Level)
	}
}

func TestMessage_Tags(t *testing.T) {
	tags := levels.DefaultTags

	m := Message{Level: levels.Warning}
	if got := m.Tags(tags); got != "warning" {
		t.Errorf("Tags = %q", got)
	}

	m.ExtraTags = "urgent"
	if got := m.Tags(tags); got != "warning urgent" {
		t.Errorf("Tags = %q", got)
	}

	unknown := Message{Level: 99, ExtraTags: "only"}
	if got := unknown.Tags(tags); got != "only" {
		t.Errorf("Tags = %q", got)
	}

	if got := (Message{Level: 99}).Tags(tags); got != "" {
		t.Errorf("Tags = %q, want empty", got)
	}
}

func TestScope_Anonymous(t *testing.T) {
	if !(Scope{}).Anonymous() {
		t.Error("empty scope should be anonymous")
	}
	if (Scope{UserID: "u1"}).Anonymous() {
		t.Error("scoped user reported anonymous")
	}
}
