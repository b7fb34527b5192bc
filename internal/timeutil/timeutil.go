// Package timeutil anchors every exam timestamp to a single fixed offset
// (+05:30) so availability checks agree between client and server.
package timeutil

import (
	"errors"
	"strings"
	"time"
)

// Zone is the fixed +05:30 offset all civil timestamps are anchored to.
var Zone = time.FixedZone("+05:30", 5*60*60+30*60)

// CivilLayout is the minute-resolution civil layout accepted from forms.
const CivilLayout = "2006-01-02T15:04"

// TimestampLayout is used for instants in API metadata.
const TimestampLayout = time.RFC3339

var civilLayouts = []string{
	CivilLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ErrInvalidTimestamp is returned for values that match no accepted layout.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Now returns the current instant expressed in Zone.
func Now() time.Time {
	return time.Now().In(Zone)
}

// In expresses t in Zone.
func In(t time.Time) time.Time {
	return t.In(Zone)
}

// InPtr is In for optional timestamps.
func InPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(Zone)
	return &v
}

// ParseCivil parses a civil timestamp without offset as +05:30 wall time.
// RFC3339 input keeps its own offset and is converted to Zone.
// An empty string yields nil.
func ParseCivil(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(Zone)
		return &t, nil
	}
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, s, Zone); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidTimestamp
}

// FormatCivil renders t as +05:30 wall time in CivilLayout.
func FormatCivil(t time.Time) string {
	return t.In(Zone).Format(CivilLayout)
}

// Status of an availability window.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
)

// Window is an availability window. A nil bound is unbounded on that side.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports start <= now <= end.
func (w Window) Contains(now time.Time) bool {
	return w.Status(now) == StatusOpen
}

// Status classifies now against the window.
func (w Window) Status(now time.Time) Status {
	now = now.In(Zone)
	if w.Start != nil && now.Before(w.Start.In(Zone)) {
		return StatusUpcoming
	}
	if w.End != nil && now.After(w.End.In(Zone)) {
		return StatusClosed
	}
	return StatusOpen
}

// Valid reports whether the window is well-formed (start not after end).
func (w Window) Valid() bool {
	if w.Start == nil || w.End == nil {
		return true
	}
	return !w.Start.After(*w.End)
}
