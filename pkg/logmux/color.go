package logmux

import "github.com/charmbracelet/lipgloss"

// palette is the fixed prefix color table: cyan, magenta, red, green,
// yellow as standard ANSI foregrounds.
var palette = [5]lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
}

// Pick returns the style for the process launched at the given index,
// cycling through the palette. The index must be non-negative.
func Pick(index int) lipgloss.Style {
	return palette[index%len(palette)]
}
