package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/v2"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))  // green
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	addrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")) // purple
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // gray
)

// Status renders a one-line result for a kind: the mark, the kind name and
// either the function address or the reason it was skipped.
func Status(kind, addr, reason string, color bool) string {
	mark, style := "✓", okStyle
	switch {
	case addr == "":
		mark, style = "✗", warnStyle
	case reason != "":
		mark, style = "!", errStyle
	}
	if !color {
		if addr == "" {
			return fmt.Sprintf("%s %s: %s", mark, kind, reason)
		}
		if reason != "" {
			return fmt.Sprintf("%s %s @ %s: %s", mark, kind, addr, reason)
		}
		return fmt.Sprintf("%s %s @ %s", mark, kind, addr)
	}

	line := style.Render(mark) + " " + kind
	if addr != "" {
		line += " @ " + addrStyle.Render(addr)
	}
	if reason != "" {
		line += ": " + mutedStyle.Render(reason)
	}
	return line
}
