package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMonotonicClockTruncatesAndNeverGoesBack(t *testing.T) {
	readings := []time.Time{
		baseTime.Add(1500 * time.Microsecond),
		baseTime.Add(-time.Hour),
		baseTime.Add(2 * time.Millisecond).In(time.FixedZone("JST", 9*3600)),
	}
	i := 0
	clock := newMonotonicClock(func() time.Time {
		r := readings[i]
		i++
		return r
	})
	first := clock.Now()
	if !first.Equal(baseTime.Add(time.Millisecond)) || first.Location() != time.UTC {
		t.Fatalf("expected ms-truncated UTC time, got %v", first)
	}
	if second := clock.Now(); !second.Equal(first) {
		t.Fatalf("clock stepped back: %v after %v", second, first)
	}
	if third := clock.Now(); !third.Equal(baseTime.Add(2 * time.Millisecond)) {
		t.Fatalf("expected forward progress, got %v", third)
	}
}

func TestUUIDv7GeneratorIsTimeOrdered(t *testing.T) {
	gen := UUIDv7Generator()
	a, b := gen.NewID(), gen.NewID()
	if a == b {
		t.Fatalf("ids must be unique")
	}
	for _, id := range []string{a, b} {
		parsed, err := uuid.Parse(id)
		if err != nil || parsed.Version() != 7 {
			t.Fatalf("expected UUIDv7, got %q (%v)", id, err)
		}
	}
	if a >= b {
		t.Fatalf("expected time-ordered ids, got %s then %s", a, b)
	}
}
