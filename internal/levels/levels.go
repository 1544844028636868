// Package levels defines the severity level protocol for notifications.
//
// Each of the five base severities (debug, info, success, warning, error)
// exists in three variants: the transient base value, a persistent variant
// (base - 2) and a sticky variant (base - 3). The ordinal shift keeps the
// variants adjacent to but distinct from their base, so a single minimum
// reporting threshold filters all three variants consistently: lowering the
// threshold below a base level admits that base's persistent and sticky
// variants as well.
package levels

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Base severity levels, matching the conventional transient message levels.
const (
	Debug   = 10
	Info    = 20
	Success = 25
	Warning = 30
	Error   = 40
)

// Persistent variants. Messages at these levels are stored durably and
// survive across requests until marked read or expired.
const (
	DebugPersistent   = Debug - 2
	InfoPersistent    = Info - 2
	SuccessPersistent = Success - 2
	WarningPersistent = Warning - 2
	ErrorPersistent   = Error - 2
)

// Sticky variants. Messages at these levels live for the current response
// only and are never written to any storage backend.
const (
	DebugSticky   = Debug - 3
	InfoSticky    = Info - 3
	SuccessSticky = Success - 3
	WarningSticky = Warning - 3
	ErrorSticky   = Error - 3
)

// Persistent lists the persistent variants in ascending order.
var Persistent = []int{
	DebugPersistent, InfoPersistent, SuccessPersistent, WarningPersistent, ErrorPersistent,
}

// Sticky lists the sticky variants in ascending order.
var Sticky = []int{
	DebugSticky, InfoSticky, SuccessSticky, WarningSticky, ErrorSticky,
}

// IsPersistent reports whether level is one of the persistent variants.
func IsPersistent(level int) bool {
	switch level {
	case DebugPersistent, InfoPersistent, SuccessPersistent, WarningPersistent, ErrorPersistent:
		return true
	}
	return false
}

// IsSticky reports whether level is one of the sticky variants.
func IsSticky(level int) bool {
	switch level {
	case DebugSticky, InfoSticky, SuccessSticky, WarningSticky, ErrorSticky:
		return true
	}
	return false
}

// IsKnown reports whether level is one of the fifteen enumerated values.
func IsKnown(level int) bool {
	switch level {
	case Debug, Info, Success, Warning, Error:
		return true
	}
	return IsPersistent(level) || IsSticky(level)
}

// DefaultTags maps every known level to its space-separated CSS-style tag
// words. Callers that need custom tags build their own map with NewTags
// instead of mutating this one.
var DefaultTags = map[int]string{
	Debug:   "debug",
	Info:    "info",
	Success: "success",
	Warning: "warning",
	Error:   "error",

	DebugPersistent:   "debug persistent",
	InfoPersistent:    "info persistent",
	SuccessPersistent: "success persistent",
	WarningPersistent: "warning persistent",
	ErrorPersistent:   "error persistent",

	DebugSticky:   "debug sticky",
	InfoSticky:    "info sticky",
	SuccessSticky: "success sticky",
	WarningSticky: "warning sticky",
	ErrorSticky:   "error sticky",
}

// NewTags returns a fresh tag map seeded from DefaultTags with overrides
// applied on top. The result is an explicit configuration value owned by the
// caller; nothing in this package holds mutable global state.
func NewTags(overrides map[int]string) map[int]string {
	tags := make(map[int]string, len(DefaultTags)+len(overrides))
	for k, v := range DefaultTags {
		tags[k] = v
	}
	for k, v := range overrides {
		tags[k] = v
	}
	return tags
}

// baseNames maps persistent variants to the severity word shown in display
// labels ("PERSISTENT WARNING" and friends).
var baseNames = map[int]string{
	DebugPersistent:   "debug",
	InfoPersistent:    "info",
	SuccessPersistent: "success",
	WarningPersistent: "warning",
	ErrorPersistent:   "error",
}

// LabelConfig renders human-readable display labels for persistent levels.
// The locale drives the casing rules used for the label text.
type LabelConfig struct {
	Locale language.Tag
}

// NewLabelConfig builds a LabelConfig for the given locale.
func NewLabelConfig(locale language.Tag) LabelConfig {
	return LabelConfig{Locale: locale}
}

// Label returns the display label for a persistent level, e.g.
// "PERSISTENT WARNING". Unknown levels yield an empty string.
// A caser is built per call; cases.Caser carries internal state and must
// not be shared between goroutines.
func (lc LabelConfig) Label(level int) string {
	name, ok := baseNames[level]
	if !ok {
		return ""
	}
	return cases.Upper(lc.Locale).String("persistent " + name)
}
