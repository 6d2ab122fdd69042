// Package ui renders command results for the terminal with lipgloss.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and styles for terminal output
type Theme struct {
	Name string

	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Text colors
	Text      lipgloss.Color
	TextMuted lipgloss.Color

	Border lipgloss.Color

	// Bar colors
	BarBG lipgloss.Color
	BarFG lipgloss.Color

	Styles ThemeStyles
}

// ThemeStyles contains pre-configured lipgloss styles
type ThemeStyles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Panel   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Code    lipgloss.Style
	Link    lipgloss.Style
	Bar     lipgloss.Style
	BarRest lipgloss.Style

	StatusInfo    lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style

	DiffAdd  lipgloss.Style
	DiffDel  lipgloss.Style
	DiffHunk lipgloss.Style
}

// StatusType selects a status style
type StatusType int

const (
	StatusInfo StatusType = iota
	StatusSuccess
	StatusWarning
	StatusError
)

// NewDarkTheme creates a dark theme bound to r
func NewDarkTheme(r *lipgloss.Renderer) Theme {
	theme := Theme{
		Name:      "dark",
		Primary:   lipgloss.Color("#7c3aed"), // Purple
		Secondary: lipgloss.Color("#10b981"), // Green
		Accent:    lipgloss.Color("#f59e0b"), // Amber

		Success: lipgloss.Color("#10b981"),
		Warning: lipgloss.Color("#f59e0b"),
		Error:   lipgloss.Color("#ef4444"),
		Info:    lipgloss.Color("#3b82f6"),

		Text:      lipgloss.Color("#f9fafb"),
		TextMuted: lipgloss.Color("#9ca3af"),
		Border:    lipgloss.Color("#4b5563"),

		BarBG: lipgloss.Color("#374151"),
		BarFG: lipgloss.Color("#7c3aed"),
	}

	theme.Styles = createThemeStyles(r, theme)
	return theme
}

// NewLightTheme creates a light theme bound to r
func NewLightTheme(r *lipgloss.Renderer) Theme {
	theme := Theme{
		Name:      "light",
		Primary:   lipgloss.Color("#5b21b6"),
		Secondary: lipgloss.Color("#059669"),
		Accent:    lipgloss.Color("#d97706"),

		Success: lipgloss.Color("#059669"),
		Warning: lipgloss.Color("#d97706"),
		Error:   lipgloss.Color("#dc2626"),
		Info:    lipgloss.Color("#2563eb"),

		Text:      lipgloss.Color("#111827"),
		TextMuted: lipgloss.Color("#6b7280"),
		Border:    lipgloss.Color("#d1d5db"),

		BarBG: lipgloss.Color("#e5e7eb"),
		BarFG: lipgloss.Color("#5b21b6"),
	}

	theme.Styles = createThemeStyles(r, theme)
	return theme
}

// ThemeByName returns the light theme for "light" and the dark theme otherwise
func ThemeByName(r *lipgloss.Renderer, name string) Theme {
	if name == "light" {
		return NewLightTheme(r)
	}
	return NewDarkTheme(r)
}

func createThemeStyles(r *lipgloss.Renderer, theme Theme) ThemeStyles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return ThemeStyles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			MarginBottom(1),

		Section: r.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Panel: r.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		Label: r.NewStyle().
			Foreground(theme.TextMuted).
			Width(16),

		Value: r.NewStyle().
			Foreground(theme.Text),

		Muted: r.NewStyle().
			Foreground(theme.TextMuted).
			Italic(true),

		Code: r.NewStyle().
			Foreground(theme.Accent),

		Link: r.NewStyle().
			Foreground(theme.Primary).
			Underline(true),

		Bar: r.NewStyle().
			Foreground(theme.BarFG),

		BarRest: r.NewStyle().
			Foreground(theme.BarBG),

		StatusInfo:    r.NewStyle().Foreground(theme.Info).Bold(true),
		StatusSuccess: r.NewStyle().Foreground(theme.Success).Bold(true),
		StatusWarning: r.NewStyle().Foreground(theme.Warning).Bold(true),
		StatusError:   r.NewStyle().Foreground(theme.Error).Bold(true),

		DiffAdd:  r.NewStyle().Foreground(theme.Success),
		DiffDel:  r.NewStyle().Foreground(theme.Error),
		DiffHunk: r.NewStyle().Foreground(theme.Info),
	}
}

// GetStatusStyle returns the appropriate style for a status type
func (t Theme) GetStatusStyle(statusType StatusType) lipgloss.Style {
	switch statusType {
	case StatusSuccess:
		return t.Styles.StatusSuccess
	case StatusWarning:
		return t.Styles.StatusWarning
	case StatusError:
		return t.Styles.StatusError
	default:
		return t.Styles.StatusInfo
	}
}

// StatusIcon returns the marker printed before a status line
func StatusIcon(statusType StatusType) string {
	switch statusType {
	case StatusSuccess:
		return "✓"
	case StatusWarning:
		return "!"
	case StatusError:
		return "✗"
	default:
		return "•"
	}
}
