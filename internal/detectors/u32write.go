// Package detectors recovers call-site operands for the ASM236x utility
// routines. Each helper turns one call site into a list of annotation
// requests for the analysis pass.
package detectors

import (
	"fmt"

	"fwhelper/internal/analysis"
	"fwhelper/internal/disasm"
	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

// U32Write recovers the external-memory target of calls to the routine
// that stores R4-R7 at @DPTR. Callers load DPTR with an immediate right
// before the call.
type U32Write struct{}

// NewU32Write creates a u32-write helper.
func NewU32Write() *U32Write {
	return &U32Write{}
}

func (d *U32Write) Kind() analysis.Kind { return analysis.KindU32Write }

func (d *U32Write) Signature() sigscan.Signature {
	return analysis.DefaultSignatures[analysis.KindU32Write]
}

func (d *U32Write) RequiredTypes() []string { return []string{program.PathUint32} }

func (d *U32Write) Recover(prog program.Program, types analysis.TypeSet, site program.Address) (analysis.Recovery, error) {
	if _, ok := prog.InstructionAt(site); !ok {
		return analysis.Recovery{}, fmt.Errorf("%w: no instruction at %s", analysis.ErrPatternMismatch, site)
	}
	mov, ok := prog.InstructionBefore(site)
	if !ok {
		return analysis.Recovery{}, fmt.Errorf("%w: no instruction before %s", analysis.ErrPatternMismatch, site)
	}
	imm, ok := dptrImmediate(mov)
	if !ok {
		return analysis.Recovery{}, fmt.Errorf("%w: %q is not MOV DPTR,#imm", analysis.ErrPatternMismatch, mov.Text())
	}

	from := program.Code(uint32(mov.VA))
	target := program.ExtMem(imm & analysis.ExtMemMask)
	return analysis.Recovery{
		Site:    site,
		Operand: target,
		Requests: []analysis.Request{
			analysis.ClearRefs(from),
			analysis.AddRef(from, target, program.RefData, 1),
			analysis.AddRef(site, target, program.RefWrite, 1),
			analysis.Define(target, types.Get(program.PathUint32), analysis.DefineIfUndefined),
		},
	}, nil
}

// dptrImmediate returns the value loaded by a MOV with exactly one
// register result, DPTR, and one immediate input.
func dptrImmediate(inst disasm.Inst) (uint32, bool) {
	if inst.Op != "MOV" || len(inst.Results) != 1 || len(inst.Inputs) != 1 {
		return 0, false
	}
	reg, ok := inst.Results[0].(disasm.Register)
	if !ok || reg.Name != disasm.RegDPTR.Name {
		return 0, false
	}
	imm, ok := inst.Inputs[0].(disasm.Scalar)
	if !ok {
		return 0, false
	}
	return imm.Unsigned(), true
}
