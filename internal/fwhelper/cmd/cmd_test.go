package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fwhelper/internal/analysis"
	"fwhelper/internal/config"
	"fwhelper/internal/fwimage"
	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

var u32WriteBody = []byte{0xec, 0xf0, 0xa3, 0xed, 0xf0, 0xa3, 0xee, 0xf0, 0xa3, 0xef, 0xf0, 0x22}

// writeImage writes a 0x80-byte image that stores to EXTMEM:1234 through
// the u32-write routine at 0x40, preceded by header bytes of padding.
func writeImage(t *testing.T, header int) string {
	t.Helper()
	code := make([]byte, 0x80)
	copy(code[0x00:], []byte{0x90, 0x12, 0x34}) // MOV DPTR,#0x1234
	copy(code[0x03:], []byte{0x12, 0x00, 0x40}) // LCALL 0x0040
	copy(code[0x06:], []byte{0x80, 0xfe})       // SJMP $
	copy(code[0x40:], u32WriteBody)

	data := append(make([]byte, header), code...)
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScan(t *testing.T) {
	path := writeImage(t, 0)

	tests := []struct {
		name     string
		pattern  string
		offset   int
		expected []string
	}{
		{"routine", "ec f0 a3 ed f0 a3 ee f0 a3 ef f0 22", 0, []string{"CODE:0040"}},
		{"wildcards", "f0 a3 ?? f0", 0, []string{"CODE:0041", "CODE:0044", "CODE:0047"}},
		{"offset", "ec f0 a3", -2, []string{"CODE:003e"}},
		{"no match", "a5 a5", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := sigscan.Parse(tt.name, tt.pattern, tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			if err := runScan(&out, path, sig, fwimage.Options{}); err != nil {
				t.Fatalf("runScan() error = %v", err)
			}

			var got []string
			if s := strings.TrimSpace(out.String()); s != "" {
				got = strings.Split(s, "\n")
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("match %d = %s, want %s", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestScanHeaderOffset(t *testing.T) {
	path := writeImage(t, 0x10)
	sig := analysis.DefaultSignatures[analysis.KindU32Write]

	var out bytes.Buffer
	if err := runScan(&out, path, sig, fwimage.Options{Offset: 0x10, Base: 0x100}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "CODE:0140" {
		t.Errorf("runScan() = %q, want CODE:0140", got)
	}
}

func TestSessionRun(t *testing.T) {
	path := writeImage(t, 0)
	cfg := config.Default()
	cfg.Kinds = []string{string(analysis.KindU32Write), string(analysis.KindDwordCopy)}

	sess, err := openSession(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	rep, err := sess.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Kinds) != 2 {
		t.Fatalf("got %d summaries, want 2", len(rep.Kinds))
	}

	u32 := rep.Kinds[0]
	if !u32.Found || u32.FunctionAddr != "CODE:0040" {
		t.Errorf("u32-write function = %q (found %v), want CODE:0040", u32.FunctionAddr, u32.Found)
	}
	if u32.SitesExamined != 1 || u32.ReferencesCreated != 2 || u32.DataDefined != 1 {
		t.Errorf("u32-write summary = %+v", u32)
	}
	if dc := rep.Kinds[1]; dc.Found || dc.Aborted == "" {
		t.Errorf("dword-copy summary = %+v, want not found", dc)
	}

	if d, ok := sess.db.DataAt(program.ExtMem(0x1234)); !ok || d.Type.Name != "uint32_t" {
		t.Errorf("no uint32_t at EXTMEM:1234")
	}

	var summary bytes.Buffer
	if err := writeSummary(&summary, rep, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"✓ u32-write @ CODE:0040", "✗ dword-copy:", "refs=2"} {
		if !strings.Contains(summary.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, summary.String())
		}
	}

	var write, data bool
	for _, line := range listingLines(sess.db) {
		if strings.HasPrefix(line, "CODE:0003") && strings.Contains(line, "WRITE EXTMEM:1234") {
			write = true
		}
		if strings.HasPrefix(line, "EXTMEM:1234") && strings.Contains(line, "uint32_t") {
			data = true
		}
	}
	if !write || !data {
		t.Errorf("listing lacks annotations (write %v, data %v):\n%s",
			write, data, strings.Join(listingLines(sess.db), "\n"))
	}
}

func TestSessionRunDeadline(t *testing.T) {
	path := writeImage(t, 0)
	cfg := config.Default()
	cfg.Kinds = []string{string(analysis.KindU32Write)}

	sess, err := openSession(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	rep, err := sess.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v, want a partial report", err)
	}
	if !rep.Cancelled || len(rep.Kinds) != 0 {
		t.Errorf("report = %+v, want cancelled with no summaries", rep)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	t.Setenv("FWHELPER_KINDS", "")
	t.Setenv("FWHELPER_BASE", "")
	t.Setenv("FWHELPER_SWITCH_LAYOUT", "")
	path := writeImage(t, 0)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"analyze", "--json", "--kinds", "u32-write", path})
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var rep Report
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if rep.Image != path || rep.Base != "CODE:0000" || rep.CodeSize != 0x80 {
		t.Errorf("report header = %+v", rep)
	}
	if len(rep.Kinds) != 1 || rep.Kinds[0].Kind != analysis.KindU32Write || rep.Kinds[0].ReferencesCreated != 2 {
		t.Errorf("report kinds = %+v", rep.Kinds)
	}
}

func TestConfigSchema(t *testing.T) {
	bts, err := configSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"kinds"`, `"switch_layout"`, `"signatures"`, `"entry_points"`, `"log_level"`} {
		if !bytes.Contains(bts, []byte(want)) {
			t.Errorf("schema missing %s", want)
		}
	}
}

func TestDataText(t *testing.T) {
	tests := []struct {
		name string
		data program.Data
		want string
	}{
		{"dword", program.Data{Type: program.DataType{Name: "uint32_t", Size: 4}, Bytes: []byte{0, 0, 1, 2}}, "DD 0x00000102 ; uint32_t"},
		{"pointer", program.Data{Type: program.DataType{Name: "pointer", Size: 2}, Bytes: []byte{0x12, 0x34}}, "DW 0x1234 ; pointer"},
		{"byte", program.Data{Type: program.DataType{Name: "byte", Size: 1}, Bytes: []byte{7}}, "DB 0x07 ; byte"},
		{"uninitialized", program.Data{Type: program.DataType{Name: "uint32_t", Size: 4}}, "DS 4 ; uint32_t"},
		{"array", program.Data{Type: program.ArrayOf(program.DataType{Name: "byte", Size: 1}, 6), Bytes: make([]byte, 6)}, "DS 6 ; byte[6]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dataText(tt.data); got != tt.want {
				t.Errorf("dataText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHexBytes(t *testing.T) {
	if got := hexBytes([]byte{0x12, 0x00, 0x40}, 4); got != "12 00 40" {
		t.Errorf("hexBytes() = %q", got)
	}
	if got := hexBytes([]byte{1, 2, 3, 4, 5}, 4); got != "01 02 03 04 .." {
		t.Errorf("hexBytes() = %q", got)
	}
}
