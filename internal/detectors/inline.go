package detectors

import (
	"fwhelper/internal/analysis"
	"fwhelper/internal/program"
)

// insideInlineData reports whether site falls in the inline operand of an
// earlier call to fn, and returns that call. extent gives the operand length
// behind a call. A call that itself sits in inline data owns no operand.
func insideInlineData(refs program.References, site, fn program.Address, extent func(program.Address) (int, bool)) (program.Address, bool) {
	for _, r := range refs.ReferencesTo(fn) {
		if r.Type != program.RefCall || r.From.Space != site.Space || !r.From.Less(site) {
			continue
		}
		n, ok := extent(r.From)
		if !ok {
			continue
		}
		start := r.From.Offset + analysis.LiteralOffset
		if site.Offset < start || site.Offset >= start+uint32(n) {
			continue
		}
		if _, nested := insideInlineData(refs, r.From, fn, extent); !nested {
			return r.From, true
		}
	}
	return program.Address{}, false
}
