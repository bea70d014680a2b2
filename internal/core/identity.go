package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// IDGenerator mints record identifiers. Ids are opaque and never reused.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID implements IDGenerator.
func (f IDGeneratorFunc) NewID() string { return f() }

// UUIDv7Generator returns time-ordered UUIDv7 ids.
func UUIDv7Generator() IDGenerator {
	return IDGeneratorFunc(func() string { return uuid.Must(uuid.NewV7()).String() })
}

// monotonicClock truncates to the wire resolution and never returns a time
// earlier than the last one it returned.
type monotonicClock struct {
	mu   sync.Mutex
	base func() time.Time
	last time.Time
}

func newMonotonicClock(base func() time.Time) *monotonicClock {
	if base == nil {
		base = time.Now
	}
	return &monotonicClock{base: base}
}

func (c *monotonicClock) Now() time.Time {
	now := truncateMillis(c.base())
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}

func truncateMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
