// Package sigscan finds byte signatures in raw code images.
// A signature is a byte pattern with a per-byte mask; mask bits that are
// zero are ignored, which lets a signature match function bodies whose
// embedded call targets or immediates change from build to build.
package sigscan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrInvalidSignature is returned for malformed patterns or masks.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is a masked byte pattern. Offset is added to a match position
// to get the address the caller is interested in (usually the function entry).
type Signature struct {
	Name    string
	Pattern []byte
	Mask    []byte
	Offset  int
}

// New validates and builds a signature.
func New(name string, pattern, mask []byte, offset int) (Signature, error) {
	if len(pattern) == 0 {
		return Signature{}, fmt.Errorf("%w: %s: empty pattern", ErrInvalidSignature, name)
	}
	if len(pattern) != len(mask) {
		return Signature{}, fmt.Errorf("%w: %s: pattern length %d != mask length %d",
			ErrInvalidSignature, name, len(pattern), len(mask))
	}
	return Signature{
		Name:    name,
		Pattern: append([]byte(nil), pattern...),
		Mask:    append([]byte(nil), mask...),
		Offset:  offset,
	}, nil
}

// Parse builds a signature from a hex string such as "12 ?? ?? e4 73".
// Whitespace is ignored and "??" marks a don't-care byte.
func Parse(name, text string, offset int) (Signature, error) {
	fields := strings.Fields(text)
	if len(fields) == 1 && len(fields[0]) > 2 {
		// Compact form without separators.
		s := fields[0]
		if len(s)%2 != 0 {
			return Signature{}, fmt.Errorf("%w: %s: odd number of hex digits", ErrInvalidSignature, name)
		}
		fields = fields[:0]
		for i := 0; i < len(s); i += 2 {
			fields = append(fields, s[i:i+2])
		}
	}

	pattern := make([]byte, 0, len(fields))
	mask := make([]byte, 0, len(fields))
	for _, f := range fields {
		if f == "??" {
			pattern = append(pattern, 0x00)
			mask = append(mask, 0x00)
			continue
		}
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return Signature{}, fmt.Errorf("%w: %s: bad byte %q", ErrInvalidSignature, name, f)
		}
		pattern = append(pattern, b[0])
		mask = append(mask, 0xff)
	}
	return New(name, pattern, mask, offset)
}

// MustParse is like Parse but panics on error. Use it for built-in tables.
func MustParse(name, text string, offset int) Signature {
	sig, err := Parse(name, text, offset)
	if err != nil {
		panic(err)
	}
	return sig
}

// Len returns the pattern length in bytes.
func (s Signature) Len() int { return len(s.Pattern) }

// Match reports whether b starts with the signature.
func (s Signature) Match(b []byte) bool {
	if len(b) < len(s.Pattern) {
		return false
	}
	for i, p := range s.Pattern {
		m := s.Mask[i]
		if b[i]&m != p&m {
			return false
		}
	}
	return true
}

// String renders the signature in the format accepted by Parse.
func (s Signature) String() string {
	var sb strings.Builder
	for i, p := range s.Pattern {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if s.Mask[i] == 0 {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02x", p)
	}
	return sb.String()
}

// Scan yields every offset in data at which sig matches, in ascending order.
// The scan is lazy; stopping the iteration stops the search.
func Scan(data []byte, sig Signature) iter.Seq[int] {
	return func(yield func(int) bool) {
		n := len(sig.Pattern)
		if n == 0 {
			return
		}
		for off := 0; off+n <= len(data); off++ {
			if sig.Match(data[off:]) && !yield(off) {
				return
			}
		}
	}
}

// ScanAll yields (offset, signature index) pairs for every signature that
// matches at every offset. Offsets ascend; for a single offset signatures
// are reported in argument order.
func ScanAll(data []byte, sigs ...Signature) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for off := range data {
			for i, sig := range sigs {
				if len(sig.Pattern) == 0 || off+len(sig.Pattern) > len(data) {
					continue
				}
				if sig.Match(data[off:]) && !yield(off, i) {
					return
				}
			}
		}
	}
}

// First returns the first match of sig in data.
func First(data []byte, sig Signature) (int, bool) {
	for off := range Scan(data, sig) {
		return off, true
	}
	return 0, false
}

// Count returns the number of matches of sig in data.
func Count(data []byte, sig Signature) int {
	n := 0
	for range Scan(data, sig) {
		n++
	}
	return n
}
