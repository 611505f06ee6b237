package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7C3AED")
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	yellow = lipgloss.Color("#F59E0B")

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingTop(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginBottom(1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(yellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)

	okStyle = lipgloss.NewStyle().
			Foreground(green)

	checkedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)
)
