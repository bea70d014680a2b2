package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultBlockLabel is used when a block is added without a label.
const DefaultBlockLabel = "Incubate"

// Run is one dated execution of a protocol. ProtocolID and CellID are weak
// references: the pages they name may have been deleted since.
type Run struct {
	ID                    string
	ProtocolID            string
	ProtocolTitleSnapshot string
	ProtocolBodySnapshot  string
	StartedAt             time.Time
	FinishedAt            *time.Time
	Notes                 string
	CellID                string
	Plan                  Plan
}

// Plan is the ordered incubation schedule of a run.
type Plan struct {
	Blocks []Block
}

// Block is one scheduled incubation interval.
type Block struct {
	Label   string
	StartAt time.Time
	EndAt   time.Time
}

// Duration returns the planned length of the block.
func (b Block) Duration() time.Duration {
	return b.EndAt.Sub(b.StartAt)
}

// BlockInput carries the caller-provided parameters of a new block. A nil
// Start means the block chains from the schedule.
type BlockInput struct {
	Label string
	Hours float64
	Start *time.Time
}

// Finished reports whether the run has been marked finished.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// Clone returns a deep copy of the run.
func (r Run) Clone() Run {
	cp := r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	cp.Plan.Blocks = cloneSlice(r.Plan.Blocks)
	return cp
}

// NextBlockStart resolves where a block without an explicit start begins: at the
// end of the last block, else at the run start, else at now.
func (r Run) NextBlockStart(now time.Time) time.Time {
	if n := len(r.Plan.Blocks); n > 0 {
		return r.Plan.Blocks[n-1].EndAt
	}
	if !r.StartedAt.IsZero() {
		return r.StartedAt
	}
	return now
}

// AddBlock appends a block to the tail of the plan. Blocks are never re-sorted,
// so an explicit out-of-order start keeps its position.
func (r *Run) AddBlock(in BlockInput, now time.Time) (Block, error) {
	if err := ValidateHours(in.Hours); err != nil {
		return Block{}, err
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = DefaultBlockLabel
	}
	start := r.NextBlockStart(now)
	if in.Start != nil {
		start = *in.Start
	}
	block := Block{
		Label:   label,
		StartAt: start,
		EndAt:   start.Add(HoursToDuration(in.Hours)),
	}
	r.Plan.Blocks = append(r.Plan.Blocks, block)
	return block, nil
}

// RemoveBlock deletes the block at index.
func (r *Run) RemoveBlock(index int) (Block, error) {
	if index < 0 || index >= len(r.Plan.Blocks) {
		return Block{}, ValidationError{Field: "index", Message: "block index " + strconv.Itoa(index) + " out of range"}
	}
	removed := r.Plan.Blocks[index]
	blocks := append(r.Plan.Blocks[:index:index], r.Plan.Blocks[index+1:]...)
	r.Plan.Blocks = cloneSlice(blocks)
	return removed, nil
}

// ToggleFinished marks the run finished at now, or clears the mark if present.
func (r *Run) ToggleFinished(now time.Time) {
	if r.FinishedAt != nil {
		r.FinishedAt = nil
		return
	}
	t := now
	r.FinishedAt = &t
}

// maxBlockHours keeps block durations within time.Duration.
const maxBlockHours = float64(math.MaxInt64/int64(time.Millisecond)) / float64(time.Hour/time.Millisecond)

// ValidateHours rejects zero, negative and non-finite durations, and
// durations that round to less than one millisecond.
func ValidateHours(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return ValidationError{Field: "hours", Message: "hours must be a finite number"}
	}
	if hours <= 0 {
		return ValidationError{Field: "hours", Message: "hours must be greater than zero"}
	}
	if hours >= maxBlockHours {
		return ValidationError{Field: "hours", Message: "hours is too large"}
	}
	if HoursToDuration(hours) < time.Millisecond {
		return ValidationError{Field: "hours", Message: "hours must amount to at least one millisecond"}
	}
	return nil
}

// ParseHours parses a user-entered duration in hours.
func ParseHours(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ValidationError{Field: "hours", Message: "hours is required"}
	}
	hours, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, ValidationError{Field: "hours", Message: "hours must be numeric: " + raw}
	}
	if err := ValidateHours(hours); err != nil {
		return 0, err
	}
	return hours, nil
}

// HoursToDuration converts hours to a duration rounded to whole milliseconds.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours*float64(time.Hour/time.Millisecond))) * time.Millisecond
}
