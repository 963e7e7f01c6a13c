package styles

import (
	"strings"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		addr   string
		reason string
		want   string
	}{
		{"found", "CODE:0040", "", "✓ u32-write @ CODE:0040"},
		{"not found", "", "u32-write: function not found", "✗ u32-write: u32-write: function not found"},
		{"aborted", "CODE:0040", "missing type", "! u32-write @ CODE:0040: missing type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status("u32-write", tt.addr, tt.reason, false); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
			if got := Status("u32-write", tt.addr, tt.reason, true); !strings.Contains(got, "u32-write") {
				t.Errorf("colored Status() = %q lacks the kind", got)
			}
		})
	}
}

func TestMarkdownRenderer(t *testing.T) {
	r, err := GetMarkdownRenderer(80)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render("# fw.bin\n\n| kind | sites |\n|---|---|\n| dword-copy | 3 |\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"fw.bin", "dword-copy", "│"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report lacks %q:\n%s", want, out)
		}
	}
}
