package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors raised by entity constructors and mutators.
var (
	ErrInvalidName             = errors.New("invalid name")
	ErrActionableAfterDue      = errors.New("actionable date is after due date")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidTimezone         = errors.New("invalid timezone")
	ErrInvalidDateRange        = errors.New("invalid date range")
	ErrUnknownFilter           = errors.New("unknown filter")
)

const maxNameLength = 100

// ValidateName trims s and rejects empty, multi-line or over-long names.
func ValidateName(s string) (string, error) {
	name := strings.TrimSpace(s)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.ContainsAny(name, "\r\n"):
		return "", fmt.Errorf("%w: %q spans several lines", ErrInvalidName, name)
	case len([]rune(name)) > maxNameLength:
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	return name, nil
}

// ValidateKey accepts lower-case slugs used as natural keys.
func ValidateKey(s string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", fmt.Errorf("%w: key is empty", ErrInvalidName)
	}
	for _, r := range key {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
			return "", fmt.Errorf("%w: key %q may only hold a-z, 0-9, - and _", ErrInvalidName, key)
		}
	}
	return key, nil
}

func checkActionableDue(actionable, due *time.Time) error {
	if actionable == nil || due == nil {
		return nil
	}
	a := actionable.UTC().Truncate(24 * time.Hour)
	d := due.UTC().Truncate(24 * time.Hour)
	if a.After(d) {
		return fmt.Errorf(
			"%w: %s > %s",
			ErrActionableAfterDue, actionable.Format(time.DateOnly), due.Format(time.DateOnly),
		)
	}
	return nil
}
