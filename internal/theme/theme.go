package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers and report titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// SubHeaderStyle is used for nested sections.
var SubHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// StatusBarStyle is used for the bottom status bar of the progress view.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a block of report output.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// StatusStyle returns a color-coded style for an inbox task or big plan status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case "not_started":
		return base.Foreground(ColorGray)
	case "accepted", "recurring":
		return base.Foreground(ColorBlue)
	case "in_progress":
		return base.Foreground(ColorYellow)
	case "blocked":
		return base.Foreground(ColorOrange)
	case "not_done":
		return base.Foreground(ColorRed)
	case "done":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// EisenStyle returns a color-coded style for an Eisenhower category.
func EisenStyle(eisen string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch eisen {
	case "important_and_urgent":
		return base.Foreground(ColorRed)
	case "important":
		return base.Foreground(ColorOrange)
	case "urgent":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// ChangeStyle colors the local or external change marker of a progress scope.
func ChangeStyle(action string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch action {
	case "creating":
		return base.Foreground(ColorGreen)
	case "updating":
		return base.Foreground(ColorBlue)
	case "archiving":
		return base.Foreground(ColorMagenta)
	case "removing":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// StreakStyle colors one cell of a habit streak plot.
func StreakStyle(mark rune) lipgloss.Style {
	switch mark {
	case 'X':
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case 'x':
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case '.':
		return lipgloss.NewStyle().Foreground(ColorRed)
	default:
		return lipgloss.NewStyle().Foreground(ColorGray)
	}
}
