package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/chfctl/internal/characters"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple
	Secondary = lipgloss.Color("#FF79C6") // Pink accent
	Success   = lipgloss.Color("#50FA7B") // Green
	Warning   = lipgloss.Color("#FFB86C") // Orange
	Error     = lipgloss.Color("#FF5555") // Red
	Muted     = lipgloss.Color("#6272A4") // Muted blue-gray
	Text      = lipgloss.Color("#F8F8F2") // Light text
	Subtle    = lipgloss.Color("#44475A") // Dark background accent
)

// Base styles
var (
	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	NormalText = lipgloss.NewStyle().
			Foreground(Text)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	SuccessText = lipgloss.NewStyle().
			Foreground(Success)

	WarningText = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error)

	Selected = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Highlighted = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	App = lipgloss.NewStyle().
		Padding(1, 2)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Subtle).
		Padding(0, 1)

	Help = lipgloss.NewStyle().
		Foreground(Muted)

	Spinner = lipgloss.NewStyle().
		Foreground(Primary)
)

// Status bar, split in a highlighted left part and a muted right part
var (
	StatusBarBg = Subtle

	StatusBarLeft = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(Primary).
			Bold(true)

	StatusBarRight = lipgloss.NewStyle().
			Foreground(Text).
			Background(Subtle)
)

// Symbols
var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
	Bullet    = lipgloss.NewStyle().Foreground(Primary).SetString("•")
	Arrow     = lipgloss.NewStyle().Foreground(Primary).SetString("→")
)

// Character list styles
var (
	CharacterName = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	CharacterAuthor = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	StatusInstalled = lipgloss.NewStyle().
			Foreground(Success)

	StatusDownloading = lipgloss.NewStyle().
				Foreground(Primary)

	StatusError = lipgloss.NewStyle().
			Foreground(Error)

	StatusNotInstalled = lipgloss.NewStyle().
				Foreground(Muted)

	Counter = lipgloss.NewStyle().
		Foreground(Warning)

	TagBadge = lipgloss.NewStyle().
			Foreground(Primary)

	NewBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(Success).
			Bold(true).
			Padding(0, 1)

	InstalledBadge = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)
)

// FormatStatus returns a styled label for a character status
func FormatStatus(s characters.Status) string {
	switch s {
	case characters.StatusInstalled:
		return StatusInstalled.Render("installed")
	case characters.StatusDownloading:
		return StatusDownloading.Render("downloading")
	case characters.StatusError:
		return StatusError.Render("error")
	default:
		return StatusNotInstalled.Render("not installed")
	}
}

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningText.Render("! " + msg)
}

// FormatNewBadge returns a styled "NEW" badge
func FormatNewBadge() string {
	return NewBadge.Render("NEW")
}

// FormatInstalledBadge returns a styled "installed" indicator
func FormatInstalledBadge() string {
	return InstalledBadge.Render("installed")
}

// CompactCount shortens large counters: 950, 1.2k, 3.4M
func CompactCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatDownloads formats a download counter with its icon
func FormatDownloads(n int) string {
	if n <= 0 {
		return ""
	}
	return Counter.Render("↓ " + CompactCount(n))
}

// FormatLikes formats a like counter with its icon
func FormatLikes(n int) string {
	if n <= 0 {
		return ""
	}
	return Counter.Render("♥ " + CompactCount(n))
}

// FormatTags renders tags as bracketed badges
func FormatTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += " "
		}
		out += TagBadge.Render("[" + t + "]")
	}
	return out
}
