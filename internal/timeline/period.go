package timeline

import (
	"fmt"
	"strings"
)

// Period is the cadence of a recurrence or a report.
type Period string

const (
	Daily     Period = "daily"
	Weekly    Period = "weekly"
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Yearly    Period = "yearly"
)

// AllPeriods lists the periods from finest to coarsest.
var AllPeriods = []Period{Daily, Weekly, Monthly, Quarterly, Yearly}

// ParsePeriod converts a user supplied string into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	return p.order() >= 0
}

func (p Period) order() int {
	for i, candidate := range AllPeriods {
		if candidate == p {
			return i
		}
	}
	return -1
}

// FinerThan reports whether p is strictly finer than other.
func (p Period) FinerThan(other Period) bool {
	return p.Valid() && other.Valid() && p.order() < other.order()
}

// Larger returns every period strictly coarser than p, finest first.
func (p Period) Larger() []Period {
	o := p.order()
	if o < 0 {
		return nil
	}
	return append([]Period(nil), AllPeriods[o+1:]...)
}
