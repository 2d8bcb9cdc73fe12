package model

import (
	"fmt"
	"time"
)

// DefaultBirthdayPreparationDays is how early a birthday task becomes actionable.
const DefaultBirthdayPreparationDays = 14

// Birthday is a month and day, without a year.
type Birthday struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// ParseBirthday reads "MM-DD".
func ParseBirthday(s string) (Birthday, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return Birthday{}, fmt.Errorf("birthday %q is not MM-DD: %w", s, err)
	}
	return Birthday{Month: t.Month(), Day: t.Day()}, nil
}

func (b Birthday) String() string {
	return fmt.Sprintf("%02d-%02d", int(b.Month), b.Day)
}

// Person is someone to keep in touch with.
type Person struct {
	Entity

	WorkspaceRefID string `json:"workspace_ref_id"`
	Name           string `json:"name"`

	// CatchUpParams drives a periodic "catch up" task; nil disables it.
	CatchUpParams *GenParams `json:"catch_up_params,omitempty"`

	Birthday                *Birthday `json:"birthday,omitempty"`
	BirthdayPreparationDays int       `json:"birthday_preparation_days"`
}

// NewPerson validates and builds a person.
func NewPerson(
	workspaceRefID, name string,
	catchUp *GenParams,
	birthday *Birthday,
	preparationDays int,
	src EventSource,
	now time.Time,
) (Person, error) {
	n, err := ValidateName(name)
	if err != nil {
		return Person{}, err
	}
	if catchUp != nil {
		if err := catchUp.Validate(); err != nil {
			return Person{}, err
		}
	}
	if birthday != nil {
		if birthday.Month < time.January || birthday.Month > time.December ||
			birthday.Day < 1 || birthday.Day > 31 {
			return Person{}, fmt.Errorf("invalid birthday %s", birthday)
		}
	}
	if preparationDays <= 0 {
		preparationDays = DefaultBirthdayPreparationDays
	}
	p := Person{
		WorkspaceRefID:          workspaceRefID,
		Name:                    n,
		CatchUpParams:           catchUp,
		Birthday:                birthday,
		BirthdayPreparationDays: preparationDays,
	}
	p.Entity = newEntity(EntityPerson, src, now, p)
	return p, nil
}

// Archive marks the person archived.
func (p Person) Archive(src EventSource, now time.Time) Person {
	p.Entity = p.archive(src, now)
	return p
}
