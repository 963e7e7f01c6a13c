package analysis

import (
	"fwhelper/internal/sigscan"
)

// DefaultSignatures holds the signature of each kind as emitted by the
// ASM236x vendor toolchain. Builds from other toolchain versions may not
// match; that is reported, not fatal.
var DefaultSignatures = map[Kind]sigscan.Signature{
	// MOV R0,DPL; MOV B,DPH; POP DPH; POP DPL; four LCALLs with
	// link-time targets; CLR A; JMP @A+DPTR
	KindDwordCopy: sigscan.MustParse(string(KindDwordCopy),
		"a8 82 85 83 f0 d0 83 d0 82 12 ?? ?? 12 ?? ?? 12 ?? ?? 12 ?? ?? e4 73", 0),

	// POP DPH; POP DPL; MOV R0,A; CLR A; MOVC A,@A+DPTR
	KindSwitchCase: sigscan.MustParse(string(KindSwitchCase),
		"d0 83 d0 82 f8 e4 93", 0),

	// MOV A,R4; MOVX @DPTR,A; INC DPTR; ... MOV A,R7; MOVX @DPTR,A; RET
	KindU32Write: sigscan.MustParse(string(KindU32Write),
		"ec f0 a3 ed f0 a3 ee f0 a3 ef f0 22", 0),
}
