// Package clock supplies the current time to the sync engine. It is injected
// everywhere timestamps are produced so tests can control time.
package clock

import (
	"sync"
	"time"
)

// ISOLayout is the textual timestamp format: RFC 3339, UTC, milliseconds.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
	NowISO() string
}

// FormatISO renders t in ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO accepts any RFC 3339 timestamp (with or without fractional seconds).
func ParseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// System is the wall clock truncated to milliseconds, matching the precision
// timestamps survive with through every store.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s System) NowISO() string {
	return FormatISO(s.Now())
}

// Manual is a settable clock for tests and replays. It is safe for
// concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) NowISO() string {
	return FormatISO(m.Now())
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
