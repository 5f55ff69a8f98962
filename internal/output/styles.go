// Package output renders CLI text with lipgloss styles.
package output

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the CLI.
var (
	ColorRed    = lipgloss.Color("#FF5F5F")
	ColorGreen  = lipgloss.Color("#5FD75F")
	ColorYellow = lipgloss.Color("#FFD75F")
	ColorCyan   = lipgloss.Color("#5FD7FF")
	ColorGray   = lipgloss.Color("#808080")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	OKStyle = lipgloss.NewStyle().
		Foreground(ColorGreen)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)
)
