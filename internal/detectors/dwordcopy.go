package detectors

import (
	"fmt"

	"fwhelper/internal/analysis"
	"fwhelper/internal/disasm"
	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

// DwordCopy handles the routine that copies a 4-byte literal stored right
// after the LCALL and returns past it. The literal is typed as uint32_t
// and the caller's code after it is disassembled.
type DwordCopy struct{}

// NewDwordCopy creates a dword-copy helper.
func NewDwordCopy() *DwordCopy {
	return &DwordCopy{}
}

func (d *DwordCopy) Kind() analysis.Kind { return analysis.KindDwordCopy }

func (d *DwordCopy) Signature() sigscan.Signature {
	return analysis.DefaultSignatures[analysis.KindDwordCopy]
}

func (d *DwordCopy) RequiredTypes() []string { return []string{program.PathUint32} }

func (d *DwordCopy) Recover(prog program.Program, types analysis.TypeSet, site program.Address) (analysis.Recovery, error) {
	call, err := checkLongCall(prog, site)
	if err != nil {
		return analysis.Recovery{}, err
	}
	fn := program.Code(uint32(call.Target))
	if owner, ok := insideInlineData(prog, site, fn, literalExtent); ok {
		return analysis.Recovery{}, fmt.Errorf("%w: %s lies in the literal of the call at %s",
			analysis.ErrPatternMismatch, site, owner)
	}
	literal := site.Add(analysis.LiteralOffset)
	code := literal.Add(analysis.LiteralSize)
	return analysis.Recovery{
		Site:    site,
		Operand: literal,
		Requests: []analysis.Request{
			analysis.Define(literal, types.Get(program.PathUint32), analysis.DefineAtUnitBoundary),
			analysis.DisassembleAt(code, analysis.ResumeWindow),
		},
	}, nil
}

func literalExtent(program.Address) (int, bool) { return analysis.LiteralSize, true }

// checkLongCall verifies site holds a 3-byte call, which places inline
// operands at site+3.
func checkLongCall(prog program.Listing, site program.Address) (disasm.Inst, error) {
	inst, ok := prog.InstructionAt(site)
	if !ok {
		return inst, fmt.Errorf("%w: no instruction at %s", analysis.ErrPatternMismatch, site)
	}
	if inst.Flow != disasm.FlowCall || inst.Len != analysis.LiteralOffset {
		return inst, fmt.Errorf("%w: %q is not LCALL", analysis.ErrPatternMismatch, inst.Text())
	}
	return inst, nil
}
