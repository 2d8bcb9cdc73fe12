package timeline

import (
	"strconv"
	"strings"
	"time"
)

const (
	SkipEven = "even"
	SkipOdd  = "odd"
)

// SkipParameter is the integer a skip rule is matched against for day in
// period p: weekday for daily, ISO week for weekly, month for monthly and
// quarter for quarterly. Yearly windows have no parameter.
func SkipParameter(p Period, day time.Time) (int, bool) {
	switch p {
	case Daily:
		return Weekday(day), true
	case Weekly:
		_, week := day.ISOWeek()
		return week, true
	case Monthly:
		return int(day.Month()), true
	case Quarterly:
		return Quarter(day.Month()), true
	default:
		return 0, false
	}
}

// ShouldSkip evaluates rule for the window of period p containing day.
// An empty rule never skips.
func ShouldSkip(rule string, p Period, day time.Time) bool {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return false
	}
	param, ok := SkipParameter(p, day)
	if !ok {
		return false
	}
	switch rule {
	case SkipEven:
		return param%2 == 0
	case SkipOdd:
		return param%2 == 1
	default:
		return strings.Contains(rule, strconv.Itoa(param))
	}
}

// ValidSkipRule accepts "even", "odd" or a non-empty string of digits,
// optionally separated by commas or spaces.
func ValidSkipRule(rule string) bool {
	rule = strings.TrimSpace(rule)
	if rule == SkipEven || rule == SkipOdd {
		return true
	}
	digits := 0
	for _, r := range rule {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ',' || r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}
