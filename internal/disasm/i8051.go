package disasm

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the code slice ends inside an instruction.
	ErrTruncated = errors.New("truncated instruction")
	// ErrReserved is returned for the undefined opcode 0xA5.
	ErrReserved = errors.New("reserved opcode")
)

var sfrNames = map[uint8]string{
	0x80: "P0", 0x81: "SP", 0x82: "DPL", 0x83: "DPH", 0x87: "PCON",
	0x88: "TCON", 0x89: "TMOD", 0x8a: "TL0", 0x8b: "TL1", 0x8c: "TH0",
	0x8d: "TH1", 0x90: "P1", 0x98: "SCON", 0x99: "SBUF", 0xa0: "P2",
	0xa8: "IE", 0xb0: "P3", 0xb8: "IP", 0xd0: "PSW", 0xe0: "ACC", 0xf0: "B",
}

// Registers shared by all decoded instructions. DPTR is the only 16-bit
// pointer register and the base of every external-memory access.
var (
	RegA    = Register{Name: "A", Width: 8}
	RegB    = Register{Name: "B", Width: 8}
	RegAB   = Register{Name: "AB", Width: 16}
	RegC    = Register{Name: "C", Width: 1}
	RegDPTR = Register{Name: "DPTR", Width: 16}
)

// R returns working register Rn.
func R(n int) Register { return Register{Name: fmt.Sprintf("R%d", n&7), Width: 8} }

// aluOps maps the high nibble of the "A, src" instruction family to its mnemonic.
var aluOps = map[uint8]string{
	0x2: "ADD", 0x3: "ADDC", 0x4: "ORL", 0x5: "ANL", 0x6: "XRL", 0x9: "SUBB",
}

type decoder struct {
	code []byte
	va   uint64
	n    int
	err  error
}

func (d *decoder) at(i int) uint8 {
	if i >= d.n {
		d.n = i + 1
	}
	if i >= len(d.code) {
		d.err = ErrTruncated
		return 0
	}
	return d.code[i]
}

func (d *decoder) rel(i int) uint16 {
	r := int8(d.at(i))
	return uint16(int(d.va) + d.n + int(r))
}

func (d *decoder) imm8(i int) Scalar   { return Scalar{Value: uint32(d.at(i)), Bits: 8} }
func (d *decoder) direct(i int) Direct { return Direct{Addr: d.at(i)} }

// Decode decodes one 8051 instruction from the start of code, located at va.
func Decode(code []byte, va uint64) (Inst, error) {
	d := &decoder{code: code, va: va, n: 1}
	if len(code) == 0 {
		return Inst{}, ErrTruncated
	}
	op := code[0]
	hi, lo := op>>4, op&0x0f
	inst := Inst{VA: va}

	set := func(mn string, args, results, inputs []Operand) {
		inst.Op, inst.Args, inst.Results, inst.Inputs = mn, args, results, inputs
	}
	ops := func(o ...Operand) []Operand { return o }

	// Rn and @Ri source/destination for the regular columns.
	var col Operand
	switch {
	case lo >= 8:
		col = R(int(lo - 8))
	case lo == 6 || lo == 7:
		col = Indirect{Base: R(int(lo - 6)).Name}
	}

	switch {
	case lo == 1:
		// AJMP / ACALL addr11
		target := uint16((int(va)+2)&0xf800) | uint16(op>>5)<<8 | uint16(d.at(1))
		d.n = 2
		inst.Target = target
		if hi&1 == 0 {
			set("AJMP", ops(CodeAddr{target}), nil, nil)
			inst.Flow = FlowJump
		} else {
			set("ACALL", ops(CodeAddr{target}), nil, nil)
			inst.Flow = FlowCall
		}

	case lo >= 4 && aluOps[hi] != "":
		mn := aluOps[hi]
		var src Operand
		switch lo {
		case 4:
			src = d.imm8(1)
		case 5:
			src = d.direct(1)
		default:
			src = col
		}
		set(mn, ops(RegA, src), ops(RegA), ops(RegA, src))

	case lo >= 5 && (hi == 0x0 || hi == 0x1):
		mn := "INC"
		if hi == 1 {
			mn = "DEC"
		}
		dst := col
		if lo == 5 {
			dst = d.direct(1)
		}
		set(mn, ops(dst), ops(dst), ops(dst))

	case lo >= 6 && hi == 0x7:
		// MOV @Ri,#imm / MOV Rn,#imm
		src := d.imm8(1)
		set("MOV", ops(col, src), ops(col), ops(src))

	case lo >= 6 && hi == 0x8:
		// MOV dir,@Ri / MOV dir,Rn
		dst := d.direct(1)
		set("MOV", ops(dst, col), ops(dst), ops(col))

	case lo >= 6 && hi == 0xa:
		// MOV @Ri,dir / MOV Rn,dir
		src := d.direct(1)
		set("MOV", ops(col, src), ops(col), ops(src))

	case lo >= 6 && hi == 0xb:
		// CJNE @Ri,#imm,rel / CJNE Rn,#imm,rel
		imm := d.imm8(1)
		target := d.rel(2)
		inst.Target, inst.Flow = target, FlowBranch
		set("CJNE", ops(col, imm, CodeAddr{target}), nil, ops(col, imm))

	case lo >= 6 && hi == 0xc:
		set("XCH", ops(RegA, col), ops(RegA, col), ops(RegA, col))

	case lo >= 6 && hi == 0xd:
		if lo >= 8 {
			target := d.rel(1)
			inst.Target, inst.Flow = target, FlowBranch
			set("DJNZ", ops(col, CodeAddr{target}), ops(col), ops(col))
		} else {
			set("XCHD", ops(RegA, col), ops(RegA, col), ops(RegA, col))
		}

	case lo >= 6 && hi == 0xe:
		set("MOV", ops(RegA, col), ops(RegA), ops(col))

	case lo >= 6 && hi == 0xf:
		set("MOV", ops(col, RegA), ops(col), ops(RegA))

	default:
		decodeSpecial(d, op, &inst)
	}

	if d.err != nil {
		return Inst{}, fmt.Errorf("decode 0x%02x at 0x%04x: %w", op, va, d.err)
	}
	if inst.Op == "" {
		return Inst{}, fmt.Errorf("decode 0x%02x at 0x%04x: %w", op, va, ErrReserved)
	}
	inst.Len = d.n
	inst.Raw = append([]byte(nil), code[:d.n]...)
	return inst, nil
}

// decodeSpecial handles the irregular columns 0, 2-5 and the accumulator ops.
func decodeSpecial(d *decoder, op uint8, inst *Inst) {
	set := func(mn string, args, results, inputs []Operand) {
		inst.Op, inst.Args, inst.Results, inst.Inputs = mn, args, results, inputs
	}
	ops := func(o ...Operand) []Operand { return o }
	branch := func(mn string, args ...Operand) {
		target := d.rel(d.n)
		inst.Target, inst.Flow = target, FlowBranch
		set(mn, append(args, CodeAddr{target}), nil, args)
	}
	bitBranch := func(mn string) {
		b := Bit{Addr: d.at(1)}
		d.n = 2
		branch(mn, b)
	}
	logicDirA := func(mn string) {
		dst := d.direct(1)
		set(mn, ops(dst, RegA), ops(dst), ops(dst, RegA))
	}
	logicDirImm := func(mn string) {
		dst := d.direct(1)
		imm := d.imm8(2)
		set(mn, ops(dst, imm), ops(dst), ops(dst, imm))
	}
	bitC := func(mn string, invert bool) {
		b := Bit{Addr: d.at(1), Invert: invert}
		set(mn, ops(RegC, b), ops(RegC), ops(RegC, b))
	}

	switch op {
	case 0x00:
		set("NOP", nil, nil, nil)
	case 0x02, 0x12:
		target := uint16(d.at(1))<<8 | uint16(d.at(2))
		inst.Target = target
		if op == 0x02 {
			set("LJMP", ops(CodeAddr{target}), nil, nil)
			inst.Flow = FlowJump
		} else {
			set("LCALL", ops(CodeAddr{target}), nil, nil)
			inst.Flow = FlowCall
		}
	case 0x03:
		set("RR", ops(RegA), ops(RegA), ops(RegA))
	case 0x13:
		set("RRC", ops(RegA), ops(RegA), ops(RegA, RegC))
	case 0x23:
		set("RL", ops(RegA), ops(RegA), ops(RegA))
	case 0x33:
		set("RLC", ops(RegA), ops(RegA), ops(RegA, RegC))
	case 0x04:
		set("INC", ops(RegA), ops(RegA), ops(RegA))
	case 0x14:
		set("DEC", ops(RegA), ops(RegA), ops(RegA))
	case 0x10:
		bitBranch("JBC")
	case 0x20:
		bitBranch("JB")
	case 0x30:
		bitBranch("JNB")
	case 0x22, 0x32:
		mn := "RET"
		if op == 0x32 {
			mn = "RETI"
		}
		set(mn, nil, nil, nil)
		inst.Flow = FlowReturn
	case 0x40:
		branch("JC")
	case 0x50:
		branch("JNC")
	case 0x60:
		branch("JZ")
	case 0x70:
		branch("JNZ")
	case 0x80:
		target := d.rel(1)
		inst.Target, inst.Flow = target, FlowJump
		set("SJMP", ops(CodeAddr{target}), nil, nil)
	case 0x42:
		logicDirA("ORL")
	case 0x43:
		logicDirImm("ORL")
	case 0x52:
		logicDirA("ANL")
	case 0x53:
		logicDirImm("ANL")
	case 0x62:
		logicDirA("XRL")
	case 0x63:
		logicDirImm("XRL")
	case 0x72:
		bitC("ORL", false)
	case 0x82:
		bitC("ANL", false)
	case 0xa0:
		bitC("ORL", true)
	case 0xb0:
		bitC("ANL", true)
	case 0x73:
		set("JMP", ops(Indirect{Base: "A+DPTR"}), nil, ops(RegA, RegDPTR))
		inst.Flow = FlowIndirect
	case 0x74:
		src := d.imm8(1)
		set("MOV", ops(RegA, src), ops(RegA), ops(src))
	case 0x75:
		dst := d.direct(1)
		src := d.imm8(2)
		set("MOV", ops(dst, src), ops(dst), ops(src))
	case 0x83:
		src := Indirect{Base: "A+PC", Code: true}
		set("MOVC", ops(RegA, src), ops(RegA), ops(src))
	case 0x93:
		src := Indirect{Base: "A+DPTR", Code: true}
		set("MOVC", ops(RegA, src), ops(RegA), ops(src))
	case 0x84:
		set("DIV", ops(RegAB), ops(RegA, RegB), ops(RegA, RegB))
	case 0xa4:
		set("MUL", ops(RegAB), ops(RegA, RegB), ops(RegA, RegB))
	case 0x85:
		// Encoded source first: 85 src dst.
		src := d.direct(1)
		dst := d.direct(2)
		set("MOV", ops(dst, src), ops(dst), ops(src))
	case 0x90:
		imm := Scalar{Value: uint32(d.at(1))<<8 | uint32(d.at(2)), Bits: 16}
		set("MOV", ops(RegDPTR, imm), ops(RegDPTR), ops(imm))
	case 0x92:
		b := Bit{Addr: d.at(1)}
		set("MOV", ops(b, RegC), ops(b), ops(RegC))
	case 0xa2:
		b := Bit{Addr: d.at(1)}
		set("MOV", ops(RegC, b), ops(RegC), ops(b))
	case 0xa3:
		set("INC", ops(RegDPTR), ops(RegDPTR), ops(RegDPTR))
	case 0xb2, 0xc2, 0xd2:
		mn := map[uint8]string{0xb2: "CPL", 0xc2: "CLR", 0xd2: "SETB"}[op]
		b := Bit{Addr: d.at(1)}
		set(mn, ops(b), ops(b), ops(b))
	case 0xb3, 0xc3, 0xd3:
		mn := map[uint8]string{0xb3: "CPL", 0xc3: "CLR", 0xd3: "SETB"}[op]
		set(mn, ops(RegC), ops(RegC), nil)
	case 0xb4:
		imm := d.imm8(1)
		d.n = 2
		branch("CJNE", RegA, imm)
	case 0xb5:
		dir := d.direct(1)
		d.n = 2
		branch("CJNE", RegA, dir)
	case 0xc0:
		src := d.direct(1)
		set("PUSH", ops(src), nil, ops(src))
	case 0xd0:
		dst := d.direct(1)
		set("POP", ops(dst), ops(dst), nil)
	case 0xc4:
		set("SWAP", ops(RegA), ops(RegA), ops(RegA))
	case 0xd4:
		set("DA", ops(RegA), ops(RegA), ops(RegA))
	case 0xc5:
		dir := d.direct(1)
		set("XCH", ops(RegA, dir), ops(RegA, dir), ops(RegA, dir))
	case 0xd5:
		dir := d.direct(1)
		d.n = 2
		target := d.rel(2)
		inst.Target, inst.Flow = target, FlowBranch
		set("DJNZ", ops(dir, CodeAddr{target}), ops(dir), ops(dir))
	case 0xe0:
		src := Indirect{Base: "DPTR", External: true}
		set("MOVX", ops(RegA, src), ops(RegA), ops(src))
	case 0xe2, 0xe3:
		src := Indirect{Base: R(int(op & 1)).Name, External: true}
		set("MOVX", ops(RegA, src), ops(RegA), ops(src))
	case 0xf0:
		dst := Indirect{Base: "DPTR", External: true}
		set("MOVX", ops(dst, RegA), ops(dst), ops(RegA))
	case 0xf2, 0xf3:
		dst := Indirect{Base: R(int(op & 1)).Name, External: true}
		set("MOVX", ops(dst, RegA), ops(dst), ops(RegA))
	case 0xe4:
		set("CLR", ops(RegA), ops(RegA), nil)
	case 0xf4:
		set("CPL", ops(RegA), ops(RegA), ops(RegA))
	case 0xe5:
		src := d.direct(1)
		set("MOV", ops(RegA, src), ops(RegA), ops(src))
	case 0xf5:
		dst := d.direct(1)
		set("MOV", ops(dst, RegA), ops(dst), ops(RegA))
	}
}

// Linear decodes code sequentially from va until the slice is exhausted or
// an undecodable byte is hit.
func Linear(code []byte, va uint64) (Stream, error) {
	var out Stream
	for off := 0; off < len(code); {
		inst, err := Decode(code[off:], va+uint64(off))
		if err != nil {
			return out, err
		}
		out = append(out, inst)
		off += inst.Len
	}
	return out, nil
}
