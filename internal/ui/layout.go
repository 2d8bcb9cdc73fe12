package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lifeplan/internal/theme"
)

// chromeHeight is the header line plus the status bar line.
const chromeHeight = 2

// Layout is the size of a full-screen view made of a header bar, a
// scrollable body of lines and a status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// BodyHeight is the number of body lines that fit between the bars.
func (l Layout) BodyHeight() int {
	return max(l.Height-chromeHeight, 0)
}

// Window returns the [from, to) range of n lines that fits the body when
// the view is scrolled offset lines up from the bottom.
func (l Layout) Window(n, offset int) (from, to int) {
	h := l.BodyHeight()
	if h == 0 || n <= h {
		return 0, n
	}
	offset = min(max(offset, 0), n-h)
	to = n - offset
	return to - h, to
}

// Frame renders the whole view. The body shows the tail of lines, moved up
// by offset, padded to BodyHeight so the status bar stays at the bottom.
func (l Layout) Frame(title, state string, lines []string, offset int, hints string) string {
	from, to := l.Window(len(lines), offset)
	body := lipgloss.NewStyle().
		Height(l.BodyHeight()).
		Render(strings.Join(lines[from:to], "\n"))

	return lipgloss.JoinVertical(lipgloss.Left,
		l.bar(theme.HeaderStyle, title, state),
		body,
		l.bar(theme.StatusBarStyle, hints, ""),
	)
}

// bar renders left and right aligned text on one full-width line.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Align(lipgloss.Right).Render(right)
	}
	gap := max(l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}
