// Package styles defines the visual styling for bob's terminal output.
//
// All styles use semantic names and adaptive colors that automatically
// adjust to light and dark terminal themes.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var colors = map[string]lipgloss.AdaptiveColor{
	"red":    {Light: "#D70000", Dark: "#FF5F5F"},
	"green":  {Light: "#008700", Dark: "#5FD75F"},
	"yellow": {Light: "#AF8700", Dark: "#FFD75F"},
	"blue":   {Light: "#0057D8", Dark: "#5FAFFF"},
	"dim":    {Light: "#6C6C6C", Dark: "#8A8A8A"},
}

var registry = map[string]lipgloss.Style{
	"Error":   lipgloss.NewStyle().Bold(true).Foreground(colors["red"]),
	"Warning": lipgloss.NewStyle().Foreground(colors["yellow"]),
	"Success": lipgloss.NewStyle().Foreground(colors["green"]),
	"Active":  lipgloss.NewStyle().Bold(true).Foreground(colors["green"]),
	"Version": lipgloss.NewStyle().Foreground(colors["blue"]),
	"Dim":     lipgloss.NewStyle().Foreground(colors["dim"]),
}

// GetStyle returns the style registered under the given semantic name.
// Unknown names return a zero style so callers can render unconditionally.
func GetStyle(name string) lipgloss.Style {
	if s, ok := registry[name]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
