package chat

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	brandBlue  = lipgloss.Color("#101F38")
	brandLime  = lipgloss.Color("#8BC34A")
	lightText  = lipgloss.Color("#f2f2f2")
	mutedLight = lipgloss.Color("#6b7280")
	mutedDark  = lipgloss.Color("#9ca3af")
	errorRed   = lipgloss.Color("#e53935")
	warnYellow = lipgloss.Color("#FFC107")
)

// Styles groups the lipgloss styles used by the chat view.
type Styles struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Bot       lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Prompt    lipgloss.Style
	UserInput lipgloss.Style
	IsDark    bool
}

// NewStyles builds the palette for a light or dark terminal.
func NewStyles(dark bool) Styles {
	primary, muted, fg := brandBlue, mutedLight, brandBlue
	if dark {
		primary, muted, fg = brandLime, mutedDark, lightText
	}
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
		User:      lipgloss.NewStyle().Bold(true).Foreground(primary),
		Bot:       lipgloss.NewStyle().Bold(true).Foreground(brandLime),
		Status:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		Error:     lipgloss.NewStyle().Foreground(errorRed).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(warnYellow),
		Prompt:    lipgloss.NewStyle().Foreground(primary).Bold(true),
		UserInput: lipgloss.NewStyle().Foreground(fg),
		IsDark:    dark,
	}
}

// DetectDark guesses the terminal background from COLORFGBG, then
// CONTRACTBOT_THEME. Light is the default.
func DetectDark() bool {
	if v := os.Getenv("CONTRACTBOT_THEME"); v != "" {
		return strings.EqualFold(v, "dark")
	}
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil {
			return (bg >= 0 && bg <= 6) || bg == 8
		}
	}
	return false
}
