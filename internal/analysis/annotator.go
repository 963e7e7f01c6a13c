package analysis

import (
	"fmt"

	"fwhelper/internal/program"
)

// Annotator applies requests to a program database. It never replaces
// typed data and never lands a definition inside an array.
type Annotator struct {
	prog program.Program
	// cleared holds the references a clear request removed, by source
	// address. Re-adding one of them is not a new reference.
	cleared map[program.Address][]program.Reference
}

// NewAnnotator returns an annotator writing to prog.
func NewAnnotator(prog program.Program) *Annotator {
	return &Annotator{prog: prog, cleared: make(map[program.Address][]program.Reference)}
}

// Apply performs one request. Errors come from the database and wrap
// program.ErrConflict or program.ErrOutOfBounds.
func (an *Annotator) Apply(r Request) (Outcome, error) {
	switch r.Kind {
	case ReqClearReferencesFrom:
		refs := an.prog.ReferencesFrom(r.Addr)
		if len(refs) == 0 {
			return AlreadyPresent, nil
		}
		an.cleared[r.Addr] = append(an.cleared[r.Addr], refs...)
		an.prog.RemoveAllReferencesFrom(r.Addr)
		return Applied, nil
	case ReqAddReference:
		return an.addReference(r)
	case ReqDefineData:
		return an.define(r)
	case ReqDisassemble:
		return an.disassemble(r)
	}
	return Skipped, fmt.Errorf("unknown request kind %s", r.Kind)
}

func (an *Annotator) addReference(r Request) (Outcome, error) {
	for _, ref := range an.prog.ReferencesFrom(r.From) {
		if ref.To == r.To && ref.Type == r.RefType && ref.Source == r.Source {
			return AlreadyPresent, nil
		}
	}
	if _, err := an.prog.AddMemoryReference(r.From, r.To, r.RefType, r.Source, r.OperandIndex); err != nil {
		return Skipped, fmt.Errorf("add %s reference %s->%s: %w", r.RefType, r.From, r.To, err)
	}
	for _, ref := range an.cleared[r.From] {
		if ref.To == r.To && ref.Type == r.RefType && ref.Source == r.Source && ref.OperandIndex == r.OperandIndex {
			return AlreadyPresent, nil
		}
	}
	return Applied, nil
}

func (an *Annotator) define(r Request) (Outcome, error) {
	l := an.prog
	a, t := r.Addr, r.Type
	end := a.Add(t.Length() - 1)

	existing, hasData := l.DataAt(a)
	if hasData {
		if existing.Type == t {
			return AlreadyPresent, nil
		}
		if !existing.Type.IsPlaceholder() {
			return Skipped, nil
		}
	}
	for x := a; !end.Less(x); x = x.Add(1) {
		if d, ok := l.DataContaining(x); ok && !d.Type.IsPlaceholder() {
			return Skipped, nil
		}
	}

	if !hasData && !l.IsUndefined(a, end) {
		switch r.Policy {
		case DefineIfUndefined:
			return Skipped, nil
		case DefineAtUnitBoundary:
			if !l.CodeUnitStartsAt(a) {
				return Skipped, nil
			}
		case DefineOverCode:
		}
	}

	if err := l.ClearCodeUnits(a, end); err != nil {
		return Skipped, fmt.Errorf("clear %s..%s: %w", a, end, err)
	}
	if _, err := l.CreateData(a, t); err != nil {
		return Skipped, err
	}
	return Applied, nil
}

func (an *Annotator) disassemble(r Request) (Outcome, error) {
	a := r.Addr
	if !an.prog.IsUndefined(a, a) {
		return AlreadyPresent, nil
	}
	span := max(r.Span, 1)
	if err := an.prog.ClearInstructions(a, a.Add(span-1)); err != nil {
		return Skipped, fmt.Errorf("clear %s: %w", a, err)
	}
	n, err := an.prog.Disassemble(a)
	if err != nil {
		return Skipped, err
	}
	if n == 0 {
		return Skipped, nil
	}
	return Applied, nil
}
