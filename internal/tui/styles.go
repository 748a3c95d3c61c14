// Package tui provides terminal styling and the interactive commit browser.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDanger    = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("240") // Dark gray
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	// File and operation states
	StatusAdded = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StatusModified = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StatusDeleted = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StatusUntracked = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StatusConflict = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	ActiveBranchStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Bold(true)

	HashStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Padding(1, 0)

	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary).
			Width(10)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)
)

// GetStatusStyle returns the style for a file, diff or operation status.
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case "added", "succeeded":
		return StatusAdded
	case "modified", "renamed", "copied", "running":
		return StatusModified
	case "deleted", "failed":
		return StatusDeleted
	case "untracked":
		return StatusUntracked
	case "conflict":
		return StatusConflict
	default:
		return NormalStyle
	}
}

// GetStatusIcon returns the short marker printed before a path or operation.
func GetStatusIcon(status string) string {
	switch status {
	case "added":
		return "+"
	case "modified":
		return "~"
	case "deleted":
		return "-"
	case "renamed", "copied":
		return "→"
	case "untracked":
		return "?"
	case "conflict":
		return "!"
	case "succeeded":
		return "✓"
	case "failed":
		return "✗"
	case "running":
		return "◐"
	default:
		return " "
	}
}

// BranchMarker returns the prefix for a branch listing entry.
func BranchMarker(active bool) string {
	if active {
		return ActiveBranchStyle.Render("*")
	}
	return " "
}
