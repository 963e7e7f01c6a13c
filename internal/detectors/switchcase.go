package detectors

import (
	"fmt"

	"fwhelper/internal/analysis"
	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

// SwitchCase types the jump table that follows each call to the switch
// dispatcher and links every case pointer to its code.
type SwitchCase struct {
	layout Layout
}

// NewSwitchCase creates a switch-case helper for the given table layout.
func NewSwitchCase(layout Layout) *SwitchCase {
	return &SwitchCase{layout: layout}
}

func (d *SwitchCase) Kind() analysis.Kind { return analysis.KindSwitchCase }

func (d *SwitchCase) Signature() sigscan.Signature {
	return analysis.DefaultSignatures[analysis.KindSwitchCase]
}

func (d *SwitchCase) RequiredTypes() []string {
	return []string{program.PathPointer, program.PathByte, program.PathUshort}
}

func (d *SwitchCase) Recover(prog program.Program, types analysis.TypeSet, site program.Address) (analysis.Recovery, error) {
	call, err := checkLongCall(prog, site)
	if err != nil {
		return analysis.Recovery{}, err
	}
	fn := program.Code(uint32(call.Target))
	if owner, ok := insideInlineData(prog, site, fn, d.tableExtent(prog)); ok {
		return analysis.Recovery{}, fmt.Errorf("%w: %s lies in the jump table of the call at %s",
			analysis.ErrPatternMismatch, site, owner)
	}
	table, err := ParseJumpTable(prog, site.Add(analysis.LiteralOffset), d.layout)
	if err != nil {
		return analysis.Recovery{}, err
	}

	ptr := types.Get(program.PathPointer)
	var reqs []analysis.Request
	define := func(a program.Address, t program.DataType) {
		reqs = append(reqs, analysis.Define(a, t, analysis.DefineOverCode))
	}
	for _, c := range table.Cases {
		if d.layout == LayoutKeyed {
			define(c.KeyAddr, types.Get(program.PathUshort))
		}
		define(c.TargetAddr, ptr)
		define(c.TagAddr, types.Get(program.PathByte))
	}
	define(table.TerminatorAddr, types.Get(program.PathUshort))
	define(table.DefaultAddr, ptr)

	// Targets come after the table so code is never decoded over it.
	for _, c := range table.Cases {
		reqs = append(reqs, caseTarget(prog, c.TargetAddr, c.Target)...)
	}
	reqs = append(reqs, caseTarget(prog, table.DefaultAddr, table.Default)...)

	return analysis.Recovery{
		Site:     site,
		Operand:  table.Start,
		Table:    true,
		Requests: reqs,
	}, nil
}

// tableExtent measures the table that follows a call at from.
func (d *SwitchCase) tableExtent(mem program.Memory) func(program.Address) (int, bool) {
	return func(from program.Address) (int, bool) {
		t, err := ParseJumpTable(mem, from.Add(analysis.LiteralOffset), d.layout)
		if err != nil {
			return 0, false
		}
		return t.Len(), true
	}
}

// caseTarget links a table pointer to its code, skipping pointers that
// leave the executable image.
func caseTarget(mem program.Memory, from program.Address, target uint16) []analysis.Request {
	to := program.Code(uint32(target))
	if !executable(mem, to) {
		return nil
	}
	return []analysis.Request{
		analysis.AddRef(from, to, program.RefData, 0),
		analysis.DisassembleAt(to, 1),
	}
}

func executable(mem program.Memory, a program.Address) bool {
	for _, b := range mem.ExecutableBlocks() {
		if b.Contains(a) {
			return true
		}
	}
	return false
}
