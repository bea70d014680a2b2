package core

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// stepClock returns t, then advances it by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func seqIDs() IDGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return IDGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(&stepClock{t: baseTime, step: time.Second}),
		WithIDGenerator(seqIDs()),
	}
	return NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
