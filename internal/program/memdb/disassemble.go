package memdb

import (
	"fmt"

	"fwhelper/internal/disasm"
	"fwhelper/internal/program"
)

// Interrupt vectors of the standard 8051 core, reset first.
var vectors = []uint32{0x0000, 0x0003, 0x000b, 0x0013, 0x001b, 0x0023, 0x002b}

// Disassemble follows control flow from a, placing instructions until every
// path hits a return, an indirect jump, an existing code unit or bytes that
// do not decode. Call and jump targets are followed too and recorded as
// CALL / JUMP references. It returns the number of instructions created.
func (db *DB) Disassemble(a program.Address) (int, error) {
	if a.Space != program.SpaceCode {
		return 0, fmt.Errorf("disassemble at %s: %w", a, program.ErrOutOfBounds)
	}
	if b, ok := db.blockFor(a); !ok || !b.Executable {
		return 0, fmt.Errorf("disassemble at %s: %w", a, program.ErrOutOfBounds)
	}

	created := 0
	work := []program.Address{a}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]

		for {
			inst, ok := db.decodeFree(pc)
			if !ok {
				break
			}
			db.place(&CodeUnit{Addr: pc, Len: inst.Len, Inst: &inst})
			created++

			target := program.Code(uint32(inst.Target))
			switch inst.Flow {
			case disasm.FlowCall:
				db.addFlowRef(pc, target, program.RefCall)
				work = append(work, target)
			case disasm.FlowJump, disasm.FlowBranch:
				db.addFlowRef(pc, target, program.RefJump)
				work = append(work, target)
			}
			if inst.Flow == disasm.FlowJump || inst.Flow == disasm.FlowReturn || inst.Flow == disasm.FlowIndirect {
				break
			}
			pc = pc.Add(inst.Len)
		}
	}
	return created, nil
}

// decodeFree decodes the instruction at pc if every byte it occupies is
// inside an executable block and not yet claimed by another unit.
func (db *DB) decodeFree(pc program.Address) (disasm.Inst, bool) {
	b, ok := db.blockFor(pc)
	if !ok || !b.Executable {
		return disasm.Inst{}, false
	}
	if _, taken := db.cover[pc]; taken {
		return disasm.Inst{}, false
	}
	off := pc.Offset - b.Start.Offset
	inst, err := disasm.Decode(b.Data[off:], uint64(pc.Offset))
	if err != nil {
		return disasm.Inst{}, false
	}
	for i := 1; i < inst.Len; i++ {
		if _, taken := db.cover[pc.Add(i)]; taken {
			return disasm.Inst{}, false
		}
	}
	return inst, true
}

func (db *DB) addFlowRef(from, to program.Address, t program.RefType) {
	if _, ok := db.blockFor(to); !ok {
		return
	}
	_, _ = db.AddMemoryReference(from, to, t, program.SourceAnalysis, 0)
}

// EntryPoints returns the reset vector and every interrupt vector that
// holds a jump, which is where the platform's auto-analysis starts.
func (db *DB) EntryPoints() []program.Address {
	var out []program.Address
	for i, v := range vectors {
		a := program.Code(v)
		raw, err := db.Bytes(a, 1)
		if err != nil {
			continue
		}
		if i == 0 || raw[0] == 0x02 || raw[0]&0x1f == 0x01 {
			out = append(out, a)
		}
	}
	return out
}

// AutoAnalyze disassembles from every entry point and returns the number of
// instructions created.
func (db *DB) AutoAnalyze(entries []program.Address) (int, error) {
	total := 0
	for _, e := range entries {
		n, err := db.Disassemble(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
