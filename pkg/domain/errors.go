package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched through errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrFormat     = errors.New("invalid format")
	ErrNotFound   = errors.New("not found")
)

// ValidationError reports bad caller input. The operation that returned it
// changed nothing.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// FormatError reports an import payload that does not have the persisted shape.
type FormatError struct {
	Reason string
}

func (e FormatError) Error() string {
	return "invalid format: " + e.Reason
}

// Is matches ErrFormat.
func (e FormatError) Is(target error) bool { return target == ErrFormat }

// NotFoundError reports a mutation addressed to a missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// Is lets blocking rule violations be handled as validation failures.
func (e RuleViolationError) Is(target error) bool { return target == ErrValidation }
