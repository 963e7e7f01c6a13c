// Package styles holds the terminal styling for fwhelper reports.
package styles

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/x/exp/charmtone"
)

// palette names the colors a report uses.
type palette struct {
	text, title, titleBg, addr, rule, grid string
}

var reportPalette = palette{
	text:    charmtone.Smoke.Hex(),
	title:   charmtone.Zest.Hex(),
	titleBg: charmtone.Charple.Hex(),
	addr:    charmtone.Malibu.Hex(),
	rule:    charmtone.Charcoal.Hex(),
	grid:    charmtone.Squid.Hex(),
}

func ptr[T any](v T) *T { return &v }

// GetMarkdownRenderer returns a glamour TermRenderer for run reports.
func GetMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStyles(GetMarkdownStyle()),
		glamour.WithWordWrap(width),
	)
}

// GetMarkdownStyle returns the style for run reports: a title bar, one
// paragraph and the counters table. Inline code carries addresses.
func GetMarkdownStyle() ansi.StyleConfig {
	p := reportPalette
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: ptr(p.text)},
			Margin:         ptr[uint](1),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockSuffix: "\n", Bold: ptr(true)},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix:          " ",
				Suffix:          " ",
				Color:           ptr(p.title),
				BackgroundColor: ptr(p.titleBg),
				Bold:            ptr(true),
			},
		},
		Strong: ansi.StylePrimitive{Bold: ptr(true)},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: ptr(p.addr)},
		},
		Table: ansi.StyleTable{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: ptr(p.grid)},
			},
			CenterSeparator: ptr("┼"),
			ColumnSeparator: ptr("│"),
			RowSeparator:    ptr("─"),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  ptr(p.rule),
			Format: "\n--------\n",
		},
	}
}
