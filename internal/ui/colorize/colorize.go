// Package colorize highlights 8051 listings for the terminal.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Enabled reports whether colors are on. FWHELPER_NO_COLOR or NO_COLOR
// turn them off.
func Enabled() bool {
	return os.Getenv("FWHELPER_NO_COLOR") == "" && os.Getenv("NO_COLOR") == ""
}

// getAssemblyLexer returns the closest available lexer. Chroma has no 8051
// lexer; the Intel-syntax ones tokenize MOV A,#0x12 well enough.
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"nasm", "gas"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getDisasmStyle() *chroma.Style {
	for _, name := range []string{"i8051-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights a block of assembly text.
func Assembly(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// ListingLine highlights one listing line of the form
// "CODE:0003  12 00 40   LCALL 0x0040   ; comment". The address and raw
// bytes are grayed, the rest goes through the lexer.
func ListingLine(line string) string {
	if !Enabled() {
		return line
	}
	if strings.HasPrefix(strings.TrimSpace(line), ";") {
		return fmt.Sprintf("\033[38;2;235;194;237m%s\033[0m", line)
	}

	addr, rest, ok := strings.Cut(line, "  ")
	if !ok || !strings.Contains(addr, ":") {
		return colorizeFullLine(line)
	}

	var comment string
	if i := strings.Index(rest, ";"); i >= 0 {
		rest, comment = rest[:i], rest[i:]
	}
	body := colorizeFullLine(rest)
	if comment != "" {
		body += fmt.Sprintf("\033[38;2;106;153;85m%s\033[0m", comment)
	}
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m  %s", addr, body)
}

func colorizeFullLine(line string) string {
	out, err := Assembly(line)
	if err != nil {
		return line
	}
	return strings.TrimRight(out, "\n")
}
