package analysis

import (
	"fmt"

	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

// Locate scans the executable blocks for sig and returns the first match
// plus the signature offset. Later matches are ignored.
func Locate(mem program.Memory, sig sigscan.Signature) (program.Address, error) {
	for _, b := range mem.ExecutableBlocks() {
		if off, ok := sigscan.First(b.Data, sig); ok {
			return b.Start.Add(off + sig.Offset), nil
		}
	}
	return program.Address{}, fmt.Errorf("%s: %w", sig.Name, ErrNotFound)
}

// LocateAll returns every match of sig in the executable blocks.
func LocateAll(mem program.Memory, sig sigscan.Signature) []program.Address {
	var out []program.Address
	for _, b := range mem.ExecutableBlocks() {
		for off := range sigscan.Scan(b.Data, sig) {
			out = append(out, b.Start.Add(off+sig.Offset))
		}
	}
	return out
}

// CallSites returns the source of every reference to fn. Every reference
// type counts.
func CallSites(refs program.References, fn program.Address) []program.Address {
	in := refs.ReferencesTo(fn)
	out := make([]program.Address, 0, len(in))
	for _, r := range in {
		out = append(out, r.From)
	}
	return out
}
