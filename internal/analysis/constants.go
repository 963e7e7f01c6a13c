// Package analysis recovers the operands of ASM236x firmware utility
// routines. It locates each routine by byte signature, walks the call
// sites in the reference index and turns what it learns into references
// and data definitions.
package analysis

// Constants for call-site decoding
const (
	// LiteralOffset is where a dword-copy literal starts, after the
	// 3-byte LCALL.
	LiteralOffset = 3

	// LiteralSize is the size of an inline dword literal.
	LiteralSize = 4

	// ResumeWindow is the span cleared ahead of re-disassembling the code
	// that follows an inline literal.
	ResumeWindow = 3

	// MaxTableEntries bounds a switch table; longer tables are treated as
	// a misparse.
	MaxTableEntries = 256

	// ExtMemMask folds a 16-bit DPTR value into the external data space.
	ExtMemMask = 0xffff
)
