// Package memdb is an in-memory program database for 8051 images. It keeps
// a listing of instructions and typed data, a reference index and a small
// type catalog, and implements program.Program on top of them.
package memdb

import (
	"fmt"
	"slices"

	"fwhelper/internal/disasm"
	"fwhelper/internal/program"
)

// extMemSize is the size of the 8051 external data space.
const extMemSize = 0x10000

// CodeUnit is an instruction or a data item placed in the listing.
type CodeUnit struct {
	Addr program.Address
	Len  int
	Inst *disasm.Inst
	Data *program.Data
}

// DB is an in-memory program database.
type DB struct {
	blocks   []program.Block
	units    map[program.Address]*CodeUnit
	cover    map[program.Address]program.Address
	refsFrom map[program.Address][]program.Reference
	refsTo   map[program.Address][]program.Reference
	types    map[string]program.DataType
}

// Option configures a DB.
type Option func(*DB)

// WithTypes replaces the built-in type catalog.
func WithTypes(types map[string]program.DataType) Option {
	return func(db *DB) { db.types = types }
}

// WithoutType removes one path from the type catalog.
func WithoutType(path string) Option {
	return func(db *DB) { delete(db.types, path) }
}

// New creates a database over the given memory blocks.
func New(blocks []program.Block, opts ...Option) *DB {
	db := &DB{
		blocks:   blocks,
		units:    make(map[program.Address]*CodeUnit),
		cover:    make(map[program.Address]program.Address),
		refsFrom: make(map[program.Address][]program.Reference),
		refsTo:   make(map[program.Address][]program.Reference),
		types:    program.BuiltinTypes(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewCode is a shorthand for a database holding a single executable CODE
// block starting at base.
func NewCode(code []byte, base uint32, opts ...Option) *DB {
	return New([]program.Block{{
		Name:       "CODE",
		Start:      program.Code(base),
		Data:       code,
		Executable: true,
	}}, opts...)
}

func (db *DB) blockFor(a program.Address) (program.Block, bool) {
	for _, b := range db.blocks {
		if b.Contains(a) {
			return b, true
		}
	}
	return program.Block{}, false
}

// inBounds reports whether every address of [a, a+n) is addressable.
func (db *DB) inBounds(a program.Address, n int) bool {
	if n <= 0 {
		return false
	}
	switch a.Space {
	case program.SpaceExtMem:
		return int64(a.Offset)+int64(n) <= extMemSize
	case program.SpaceCode:
		b, ok := db.blockFor(a)
		return ok && b.Contains(a.Add(n-1))
	}
	return false
}

// Bytes returns a copy of n initialized bytes at a.
func (db *DB) Bytes(a program.Address, n int) ([]byte, error) {
	b, ok := db.blockFor(a)
	if !ok || n <= 0 || !b.Contains(a.Add(n-1)) {
		return nil, fmt.Errorf("read %d bytes at %s: %w", n, a, program.ErrOutOfBounds)
	}
	off := a.Offset - b.Start.Offset
	return slices.Clone(b.Data[off : int(off)+n]), nil
}

// ExecutableBlocks returns the blocks holding code.
func (db *DB) ExecutableBlocks() []program.Block {
	var out []program.Block
	for _, b := range db.blocks {
		if b.Executable {
			out = append(out, b)
		}
	}
	return out
}

// DataType looks up a type by catalog path.
func (db *DB) DataType(path string) (program.DataType, bool) {
	t, ok := db.types[path]
	return t, ok
}

// InstructionAt returns the instruction starting at a.
func (db *DB) InstructionAt(a program.Address) (disasm.Inst, bool) {
	u, ok := db.units[a]
	if !ok || u.Inst == nil {
		return disasm.Inst{}, false
	}
	return *u.Inst, true
}

// InstructionBefore returns the instruction that ends right before a.
func (db *DB) InstructionBefore(a program.Address) (disasm.Inst, bool) {
	if a.Offset == 0 {
		return disasm.Inst{}, false
	}
	start, ok := db.cover[a.Add(-1)]
	if !ok {
		return disasm.Inst{}, false
	}
	return db.InstructionAt(start)
}

// DataAt returns the data unit starting at a.
func (db *DB) DataAt(a program.Address) (program.Data, bool) {
	u, ok := db.units[a]
	if !ok || u.Data == nil {
		return program.Data{}, false
	}
	return *u.Data, true
}

// DataContaining returns the data unit covering a.
func (db *DB) DataContaining(a program.Address) (program.Data, bool) {
	start, ok := db.cover[a]
	if !ok {
		return program.Data{}, false
	}
	return db.DataAt(start)
}

// CodeUnitStartsAt reports whether a is not inside another unit.
func (db *DB) CodeUnitStartsAt(a program.Address) bool {
	start, ok := db.cover[a]
	return !ok || start == a
}

// IsUndefined reports whether [start, end] holds no instruction and no
// non-placeholder data.
func (db *DB) IsUndefined(start, end program.Address) bool {
	for a := start; !end.Less(a); a = a.Add(1) {
		s, ok := db.cover[a]
		if !ok {
			continue
		}
		u := db.units[s]
		if u.Inst != nil || !u.Data.Type.IsPlaceholder() {
			return false
		}
	}
	return true
}

// unitsIn returns the starts of all units intersecting [start, end].
func (db *DB) unitsIn(start, end program.Address) []program.Address {
	var out []program.Address
	for a := start; !end.Less(a); a = a.Add(1) {
		s, ok := db.cover[a]
		if ok && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func (db *DB) removeUnit(start program.Address) {
	u, ok := db.units[start]
	if !ok {
		return
	}
	for i := 0; i < u.Len; i++ {
		delete(db.cover, start.Add(i))
	}
	delete(db.units, start)
	// References the database inferred from the unit go with it; facts a
	// user or helper recorded stay.
	for i := 0; i < u.Len; i++ {
		db.removeRefsFrom(start.Add(i), func(r program.Reference) bool {
			return r.Source == program.SourceAnalysis
		})
	}
}

// ClearCodeUnits removes every unit intersecting [start, end].
func (db *DB) ClearCodeUnits(start, end program.Address) error {
	for _, s := range db.unitsIn(start, end) {
		db.removeUnit(s)
	}
	return nil
}

// ClearInstructions removes instructions and placeholder data intersecting
// [start, end] and leaves typed data alone.
func (db *DB) ClearInstructions(start, end program.Address) error {
	for _, s := range db.unitsIn(start, end) {
		u := db.units[s]
		if u.Inst != nil || u.Data.Type.IsPlaceholder() {
			db.removeUnit(s)
		}
	}
	return nil
}

func (db *DB) place(u *CodeUnit) {
	db.units[u.Addr] = u
	for i := 0; i < u.Len; i++ {
		db.cover[u.Addr.Add(i)] = u.Addr
	}
}

// CreateData defines a value of type t at a. The span must be free.
func (db *DB) CreateData(a program.Address, t program.DataType) (program.Data, error) {
	n := t.Length()
	if !db.inBounds(a, n) {
		return program.Data{}, fmt.Errorf("create %s at %s: %w", t, a, program.ErrOutOfBounds)
	}
	for i := 0; i < n; i++ {
		if s, ok := db.cover[a.Add(i)]; ok {
			return program.Data{}, fmt.Errorf("create %s at %s: overlaps unit at %s: %w",
				t, a, s, program.ErrConflict)
		}
	}
	d := program.Data{Addr: a, Type: t}
	if a.Space == program.SpaceCode {
		d.Bytes, _ = db.Bytes(a, n)
	}
	db.place(&CodeUnit{Addr: a, Len: n, Data: &d})
	return d, nil
}

// Units returns every code unit in address order.
func (db *DB) Units() []CodeUnit {
	out := make([]CodeUnit, 0, len(db.units))
	for _, u := range db.units {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(x, y CodeUnit) int {
		switch {
		case x.Addr.Less(y.Addr):
			return -1
		case y.Addr.Less(x.Addr):
			return 1
		}
		return 0
	})
	return out
}

// Layout renders the listing and the reference index as a map keyed by
// address, suitable for comparing two states of the database.
func (db *DB) Layout() map[program.Address]string {
	out := make(map[program.Address]string, len(db.units))
	for _, u := range db.Units() {
		var s string
		if u.Inst != nil {
			s = "inst " + u.Inst.Text()
		} else {
			s = "data " + u.Data.Type.Name
		}
		for _, r := range db.refsFrom[u.Addr] {
			s += fmt.Sprintf(" ->%s:%s:%s", r.Type, r.To, r.Source)
		}
		out[u.Addr] = s
	}
	return out
}
