package model

import (
	"fmt"

	"github.com/nhle/lifeplan/internal/schedule"
	"github.com/nhle/lifeplan/internal/timeline"
)

// Eisen is an Eisenhower matrix category.
type Eisen string

const (
	EisenImportantAndUrgent Eisen = "important_and_urgent"
	EisenImportant          Eisen = "important"
	EisenUrgent             Eisen = "urgent"
	EisenRegular            Eisen = "regular"
)

// Difficulty is a coarse effort estimate.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseEisen validates an Eisenhower category.
func ParseEisen(s string) (Eisen, error) {
	switch e := Eisen(s); e {
	case EisenImportantAndUrgent, EisenImportant, EisenUrgent, EisenRegular:
		return e, nil
	}
	return "", fmt.Errorf("unknown eisen %q", s)
}

// ParseDifficulty validates a difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// GenParams describes how a recurrence materializes inbox tasks.
type GenParams struct {
	Period     timeline.Period `json:"period" yaml:"period"`
	Eisen      []Eisen         `json:"eisen,omitempty" yaml:"eisen,omitempty"`
	Difficulty *Difficulty     `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`

	schedule.Offsets `yaml:",inline"`
}

// Validate checks the period and offsets.
func (p GenParams) Validate() error {
	return p.Offsets.Validate(p.Period)
}

func eisenEqual(a, b []Eisen) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func difficultyEqual(a, b *Difficulty) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
