package colorize

import (
	"strings"
	"testing"
)

func TestDisabled(t *testing.T) {
	t.Setenv("FWHELPER_NO_COLOR", "1")
	line := "CODE:0003  12 00 40   LCALL 0x0040   ; dword-copy"
	if got := ListingLine(line); got != line {
		t.Errorf("ListingLine with colors off = %q, want input", got)
	}
	if got, _ := Assembly("MOV A,R4"); got != "MOV A,R4" {
		t.Errorf("Assembly with colors off = %q", got)
	}
}

func TestListingLine(t *testing.T) {
	t.Setenv("FWHELPER_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")

	tests := []struct {
		name string
		line string
		want []string
	}{
		{"instruction", "CODE:0003  12 00 40   LCALL 0x0040", []string{"CODE:0003", "LCALL", "\033["}},
		{"with comment", "CODE:0007  DD 0x00000001   ; literal", []string{"; literal", "\033[38;2;106;153;85m"}},
		{"comment only", "; switch table", []string{"\033[38;2;235;194;237m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ListingLine(tt.line)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("ListingLine(%q) = %q, missing %q", tt.line, got, w)
				}
			}
		})
	}
}

func TestStyleRegistered(t *testing.T) {
	if getDisasmStyle().Name != "i8051-dark" {
		t.Errorf("style = %s, want i8051-dark", getDisasmStyle().Name)
	}
}
