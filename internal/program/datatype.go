package program

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Catalog paths of the built-in types the helpers look up.
const (
	PathUint32  = "/stdint.h/uint32_t"
	PathPointer = "/pointer"
	PathByte    = "/byte"
	PathUshort  = "/ushort"
)

// DataType describes a fixed-size value, or an array of them when Count > 0.
type DataType struct {
	Name  string
	Size  int // element size in bytes
	Count int // number of elements; 0 for a scalar
}

// Length returns the total byte length of the type.
func (t DataType) Length() int {
	if t.Count > 0 {
		return t.Size * t.Count
	}
	return t.Size
}

// IsArray reports whether t is an array type.
func (t DataType) IsArray() bool { return t.Count > 0 }

// IsPlaceholder reports whether t is one of the "undefinedN" types that
// only reserve space without asserting a meaning.
func (t DataType) IsPlaceholder() bool {
	return !t.IsArray() && strings.HasPrefix(t.Name, "undefined")
}

// ArrayOf returns an array type of n elements of t.
func ArrayOf(t DataType, n int) DataType {
	return DataType{Name: fmt.Sprintf("%s[%d]", t.Name, n), Size: t.Size, Count: n}
}

func (t DataType) String() string { return t.Name }

// Data is a typed value placed in the listing.
type Data struct {
	Addr  Address
	Type  DataType
	Bytes []byte // nil for uninitialized memory
}

// End returns the last address covered by d.
func (d Data) End() Address { return d.Addr.Add(d.Type.Length() - 1) }

// Contains reports whether a falls within d.
func (d Data) Contains(a Address) bool {
	return a.Space == d.Addr.Space && a.Offset >= d.Addr.Offset && a.Offset <= d.End().Offset
}

// Value decodes a scalar value big-endian, as the 8051 toolchains store
// multi-byte integers and code pointers. ok is false for arrays and
// uninitialized memory.
func (d Data) Value() (v uint64, ok bool) {
	if d.Type.IsArray() || len(d.Bytes) < d.Type.Size {
		return 0, false
	}
	switch d.Type.Size {
	case 1:
		return uint64(d.Bytes[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(d.Bytes)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(d.Bytes)), true
	}
	return 0, false
}

// BuiltinTypes returns the default type catalog keyed by path.
func BuiltinTypes() map[string]DataType {
	types := map[string]DataType{
		PathUint32:  {Name: "uint32_t", Size: 4},
		PathPointer: {Name: "pointer", Size: 2},
		PathByte:    {Name: "byte", Size: 1},
		PathUshort:  {Name: "ushort", Size: 2},
	}
	for n := 1; n <= 4; n++ {
		name := fmt.Sprintf("undefined%d", n)
		types["/"+name] = DataType{Name: name, Size: n}
	}
	return types
}
