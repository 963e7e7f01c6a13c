package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"fwhelper/internal/analysis"
	"fwhelper/internal/fwhelper/styles"
	"fwhelper/internal/program"
	"fwhelper/internal/program/memdb"
	"fwhelper/internal/ui/colorize"
)

// Report is the outcome of one analyze run.
type Report struct {
	Image        string             `json:"image"`
	Base         string             `json:"base"`
	CodeSize     uint64             `json:"code_size"`
	Instructions int                `json:"instructions"`
	Cancelled    bool               `json:"cancelled,omitempty"`
	Kinds        []analysis.Summary `json:"kinds"`
}

func writeJSON(w io.Writer, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// summaryMarkdown renders the counters as a markdown table.
func summaryMarkdown(rep *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rep.Image)
	fmt.Fprintf(&b, "Code at `%s`, %d bytes, %d instructions after auto-analysis.\n\n",
		rep.Base, rep.CodeSize, rep.Instructions)
	b.WriteString("| kind | function | sites | recovered | refs | data | skipped | disasm | tables | mismatches | conflicts |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, s := range rep.Kinds {
		fn := s.FunctionAddr
		if !s.Found {
			fn = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %d | %d | %d | %d | %d |\n",
			s.Kind, fn, s.SitesExamined, s.Recovered, s.ReferencesCreated, s.DataDefined,
			s.DataSkipped, s.Disassembled, s.TablesFound, s.Mismatches, s.Conflicts)
	}
	return b.String()
}

// writeSummary prints the run summary. On a terminal the table goes through
// glamour and the status lines are colored.
func writeSummary(w io.Writer, rep *Report, tty bool) error {
	if tty {
		r, err := styles.GetMarkdownRenderer(100)
		if err != nil {
			return fmt.Errorf("markdown renderer: %w", err)
		}
		out, err := r.Render(summaryMarkdown(rep))
		if err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
		fmt.Fprint(w, out)
	} else {
		fmt.Fprintf(w, "%s: %s, %d bytes, %d instructions\n", rep.Image, rep.Base, rep.CodeSize, rep.Instructions)
	}

	for _, s := range rep.Kinds {
		fmt.Fprintln(w, styles.Status(string(s.Kind), s.FunctionAddr, s.Aborted, tty))
		if !tty && s.Found {
			fmt.Fprintf(w, "  sites=%d recovered=%d refs=%d data=%d skipped=%d disasm=%d tables=%d mismatches=%d conflicts=%d\n",
				s.SitesExamined, s.Recovered, s.ReferencesCreated, s.DataDefined, s.DataSkipped,
				s.Disassembled, s.TablesFound, s.Mismatches, s.Conflicts)
		}
	}
	if rep.Cancelled {
		fmt.Fprintln(w, "cancelled before every kind ran")
	}
	return nil
}

// listingLines formats every code unit with its raw bytes and the
// references the tool added.
func listingLines(db *memdb.DB) []string {
	var lines []string
	for _, u := range db.Units() {
		var raw []byte
		var text string
		switch {
		case u.Inst != nil:
			raw, text = u.Inst.Raw, u.Inst.Text()
		case u.Data != nil:
			raw, text = u.Data.Bytes, dataText(*u.Data)
		}

		line := fmt.Sprintf("%s  %-12s %s", u.Addr, hexBytes(raw, 4), text)
		var notes []string
		for _, r := range db.ReferencesFrom(u.Addr) {
			if r.Source == program.SourceUserDefined {
				notes = append(notes, fmt.Sprintf("%s %s", r.Type, r.To))
			}
		}
		if len(notes) > 0 {
			line += "   ; " + strings.Join(notes, ", ")
		}
		lines = append(lines, line)
	}
	return lines
}

func writeListing(w io.Writer, db *memdb.DB, color bool) {
	fmt.Fprintln(w)
	for _, line := range listingLines(db) {
		if color {
			line = colorize.ListingLine(line)
		}
		fmt.Fprintln(w, line)
	}
}

// dataText renders a data unit as an assembler directive.
func dataText(d program.Data) string {
	if d.Type.IsArray() {
		return fmt.Sprintf("DS %d ; %s", d.Type.Length(), d.Type.Name)
	}
	v, ok := d.Value()
	if !ok {
		return fmt.Sprintf("DS %d ; %s", d.Type.Length(), d.Type.Name)
	}
	switch d.Type.Size {
	case 1:
		return fmt.Sprintf("DB 0x%02x ; %s", v, d.Type.Name)
	case 2:
		return fmt.Sprintf("DW 0x%04x ; %s", v, d.Type.Name)
	}
	return fmt.Sprintf("DD 0x%08x ; %s", v, d.Type.Name)
}

// hexBytes formats at most limit bytes, adding ".." when there are more.
func hexBytes(b []byte, limit int) string {
	var parts []string
	for i, c := range b {
		if i == limit {
			parts = append(parts, "..")
			break
		}
		parts = append(parts, fmt.Sprintf("%02x", c))
	}
	return strings.Join(parts, " ")
}
