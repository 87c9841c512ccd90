package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	Container lipgloss.Style
	Divider   lipgloss.Style

	// Header
	ModeActive   lipgloss.Style
	ModeInactive lipgloss.Style
	Activity     lipgloss.Style

	// Clock
	Clock  lipgloss.Style
	Detail lipgloss.Style

	// State colors
	Idle    lipgloss.Style
	Running lipgloss.Style
	Paused  lipgloss.Style
	Done    lipgloss.Style
	Break   lipgloss.Style

	// Notices
	Info  lipgloss.Style
	Error lipgloss.Style

	Footer lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	ModeActive: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Underline(true),

	ModeInactive: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Activity: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Clock: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		Padding(1, 0),

	Detail: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Idle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Running: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	Paused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Done: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Break: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Info: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),
}
