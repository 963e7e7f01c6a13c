// Package program defines the narrow view of an analysis database that the
// firmware helpers need: byte access, instruction lookup, the reference
// index, the data-type catalog and a disassembly trigger.
package program

import (
	"errors"
	"fmt"

	"fwhelper/internal/disasm"
)

var (
	// ErrConflict is returned when data cannot be created because the
	// target span overlaps an existing code unit.
	ErrConflict = errors.New("code unit conflict")
	// ErrOutOfBounds is returned for addresses outside the loaded image.
	ErrOutOfBounds = errors.New("address out of bounds")
)

// Space is an 8051 address space.
type Space uint8

const (
	SpaceCode   Space = iota // program memory (MOVC, instruction fetch)
	SpaceExtMem              // external data memory (MOVX @DPTR)
)

func (s Space) String() string {
	switch s {
	case SpaceCode:
		return "CODE"
	case SpaceExtMem:
		return "EXTMEM"
	}
	return fmt.Sprintf("SPACE%d", uint8(s))
}

// Address is a location in one address space.
type Address struct {
	Space  Space
	Offset uint32
}

// Code returns a CODE-space address.
func Code(off uint32) Address { return Address{Space: SpaceCode, Offset: off} }

// ExtMem returns an EXTMEM-space address.
func ExtMem(off uint32) Address { return Address{Space: SpaceExtMem, Offset: off} }

// Add returns the address n bytes after a in the same space.
func (a Address) Add(n int) Address {
	return Address{Space: a.Space, Offset: uint32(int64(a.Offset) + int64(n))}
}

// Less orders addresses by space, then offset.
func (a Address) Less(b Address) bool {
	if a.Space != b.Space {
		return a.Space < b.Space
	}
	return a.Offset < b.Offset
}

func (a Address) String() string { return fmt.Sprintf("%s:%04x", a.Space, a.Offset) }

// RefType classifies a reference.
type RefType uint8

const (
	RefData RefType = iota
	RefRead
	RefWrite
	RefCall
	RefJump
)

func (t RefType) String() string {
	switch t {
	case RefData:
		return "DATA"
	case RefRead:
		return "READ"
	case RefWrite:
		return "WRITE"
	case RefCall:
		return "CALL"
	case RefJump:
		return "JUMP"
	}
	return fmt.Sprintf("REF%d", uint8(t))
}

// SourceType records who inferred a fact.
type SourceType uint8

const (
	SourceAnalysis    SourceType = iota // inferred by the database's own analysis
	SourceUserDefined                   // added by a user or a helper
)

func (s SourceType) String() string {
	if s == SourceUserDefined {
		return "USER_DEFINED"
	}
	return "ANALYSIS"
}

// Reference is an edge in the reference index.
type Reference struct {
	From         Address
	To           Address
	Type         RefType
	Source       SourceType
	OperandIndex int
}

// Block is a contiguous initialized memory region.
type Block struct {
	Name       string
	Start      Address
	Data       []byte
	Executable bool
}

// End returns the address just past the block.
func (b Block) End() Address { return b.Start.Add(len(b.Data)) }

// Contains reports whether a falls inside the block.
func (b Block) Contains(a Address) bool {
	return a.Space == b.Start.Space && a.Offset >= b.Start.Offset &&
		int64(a.Offset) < int64(b.Start.Offset)+int64(len(b.Data))
}

// Memory gives byte-level read access to the loaded image.
type Memory interface {
	Bytes(a Address, n int) ([]byte, error)
	ExecutableBlocks() []Block
}

// Listing is the code-unit view: instructions and typed data.
type Listing interface {
	InstructionAt(a Address) (disasm.Inst, bool)
	// InstructionBefore returns the instruction whose last byte is at a-1.
	InstructionBefore(a Address) (disasm.Inst, bool)
	// DataAt returns data starting exactly at a. Addresses inside an array
	// or a multi-byte value have no Data of their own.
	DataAt(a Address) (Data, bool)
	// DataContaining returns the data unit whose span covers a.
	DataContaining(a Address) (Data, bool)
	// CodeUnitStartsAt reports whether a is not in the middle of a code
	// unit: either nothing covers it or a unit starts exactly there.
	CodeUnitStartsAt(a Address) bool
	// IsUndefined reports whether no instruction and no defined data
	// (other than placeholder types) intersects [start, end].
	IsUndefined(start, end Address) bool
	ClearCodeUnits(start, end Address) error
	// ClearInstructions clears instructions and placeholder data only.
	ClearInstructions(start, end Address) error
	CreateData(a Address, t DataType) (Data, error)
}

// References is the reference index.
type References interface {
	ReferencesTo(a Address) []Reference
	ReferencesFrom(a Address) []Reference
	RemoveAllReferencesFrom(a Address)
	AddMemoryReference(from, to Address, t RefType, src SourceType, opIndex int) (Reference, error)
}

// Types is the data-type catalog.
type Types interface {
	DataType(path string) (DataType, bool)
}

// Disassembler starts flow-following disassembly at an address.
type Disassembler interface {
	Disassemble(a Address) (int, error)
}

// Program is everything the helpers consume from the analysis database.
type Program interface {
	Memory
	Listing
	References
	Types
	Disassembler
}
