package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
)

// Row fields are strings; these helpers own their format.

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", s, err)
	}
	return &t, nil
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func parseBool(s string) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("checkbox %q: %w", s, err)
	}
	return b, nil
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("number %q: %w", s, err)
	}
	return &v, nil
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func formatEisen(es []model.Eisen) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = string(e)
	}
	return strings.Join(parts, ",")
}

func parseEisen(s string) ([]model.Eisen, error) {
	var out []model.Eisen
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		e, err := model.ParseEisen(part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func formatDifficulty(d *model.Difficulty) string {
	if d == nil {
		return ""
	}
	return string(*d)
}

func parseDifficulty(s string) (*model.Difficulty, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDifficulty(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func options[T ~string](values ...T) []mirror.Option {
	out := make([]mirror.Option, len(values))
	for i, v := range values {
		out[i] = mirror.Option{Name: string(v)}
	}
	return out
}

// fieldParser collects the first parse error so converters read linearly.
type fieldParser struct {
	row mirror.Row
	err error
}

func (p *fieldParser) fail(name string, err error) {
	if p.err == nil && err != nil {
		p.err = fmt.Errorf("field %s: %w", name, err)
	}
}

func (p *fieldParser) text(name string) string {
	return strings.TrimSpace(p.row.Fields[name])
}

func (p *fieldParser) optText(name string) *string {
	return parseString(p.row.Fields[name])
}

func (p *fieldParser) date(name string) *time.Time {
	t, err := parseDate(p.row.Fields[name])
	p.fail(name, err)
	return t
}

func (p *fieldParser) boolean(name string) bool {
	b, err := parseBool(p.row.Fields[name])
	p.fail(name, err)
	return b
}

func (p *fieldParser) integer(name string) *int {
	v, err := parseInt(p.row.Fields[name])
	p.fail(name, err)
	return v
}

func (p *fieldParser) eisen(name string) []model.Eisen {
	es, err := parseEisen(p.row.Fields[name])
	p.fail(name, err)
	return es
}

func (p *fieldParser) difficulty(name string) *model.Difficulty {
	d, err := parseDifficulty(p.row.Fields[name])
	p.fail(name, err)
	return d
}

func (p *fieldParser) status(name string) model.InboxTaskStatus {
	raw := p.text(name)
	if raw == "" {
		return model.StatusNotStarted
	}
	s, err := model.ParseInboxTaskStatus(raw)
	p.fail(name, err)
	return s
}
