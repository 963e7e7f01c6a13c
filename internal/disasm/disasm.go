// Package disasm defines the decoded 8051 instruction representation used
// by the program database and the call-site helpers.
package disasm

import (
	"fmt"
	"strings"
)

// Flow describes how an instruction transfers control.
type Flow int

const (
	FlowNext     Flow = iota // falls through to the next instruction
	FlowCall                 // calls Target, then falls through
	FlowJump                 // unconditional jump to Target
	FlowBranch               // conditional branch to Target or fall through
	FlowReturn               // RET / RETI
	FlowIndirect             // JMP @A+DPTR
)

func (f Flow) String() string {
	switch f {
	case FlowNext:
		return "next"
	case FlowCall:
		return "call"
	case FlowJump:
		return "jump"
	case FlowBranch:
		return "branch"
	case FlowReturn:
		return "return"
	case FlowIndirect:
		return "indirect"
	}
	return fmt.Sprintf("flow(%d)", int(f))
}

// Operand is a decoded instruction operand.
type Operand interface {
	fmt.Stringer
	isOperand()
}

// Register is a named CPU register (A, B, DPTR, R0-R7, C, AB).
type Register struct {
	Name  string
	Width int // bits
}

func (Register) isOperand()       {}
func (r Register) String() string { return r.Name }

// Scalar is an immediate value.
type Scalar struct {
	Value uint32
	Bits  int
}

func (Scalar) isOperand() {}

// Unsigned returns the value truncated to its width.
func (s Scalar) Unsigned() uint32 {
	if s.Bits >= 32 || s.Bits == 0 {
		return s.Value
	}
	return s.Value & (1<<uint(s.Bits) - 1)
}

func (s Scalar) String() string {
	if s.Bits > 8 {
		return fmt.Sprintf("#0x%04x", s.Unsigned())
	}
	return fmt.Sprintf("#0x%02x", s.Unsigned())
}

// Direct is an internal RAM / SFR address.
type Direct struct {
	Addr uint8
}

func (Direct) isOperand() {}

func (d Direct) String() string {
	if name, ok := sfrNames[d.Addr]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", d.Addr)
}

// Bit is a bit address.
type Bit struct {
	Addr   uint8
	Invert bool
}

func (Bit) isOperand() {}

func (b Bit) String() string {
	s := fmt.Sprintf("0x%02x", b.Addr)
	if b.Addr >= 0x80 {
		if name, ok := sfrNames[b.Addr&0xf8]; ok {
			s = fmt.Sprintf("%s.%d", name, b.Addr&7)
		}
	}
	if b.Invert {
		return "/" + s
	}
	return s
}

// Indirect is a register-indirect memory operand (@R0, @DPTR, @A+DPTR).
type Indirect struct {
	Base     string
	External bool // MOVX
	Code     bool // MOVC
}

func (Indirect) isOperand()       {}
func (i Indirect) String() string { return "@" + i.Base }

// CodeAddr is a code-space target of a call or jump.
type CodeAddr struct {
	Addr uint16
}

func (CodeAddr) isOperand()       {}
func (c CodeAddr) String() string { return fmt.Sprintf("0x%04x", c.Addr) }

// Inst is a decoded instruction.
type Inst struct {
	VA      uint64    // address of the instruction in code space
	Raw     []byte    // raw encoding
	Len     int       // encoded length in bytes
	Op      string    // mnemonic in upper case, e.g. "MOV"
	Args    []Operand // operands in assembly order
	Results []Operand // operands written by the instruction
	Inputs  []Operand // operands read by the instruction
	Flow    Flow
	Target  uint16 // call / jump target when Flow is Call, Jump or Branch
}

// Text returns the formatted assembly for the instruction.
func (i Inst) Text() string {
	if len(i.Args) == 0 {
		return i.Op
	}
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.String()
	}
	return i.Op + " " + strings.Join(args, ", ")
}

// End returns the address just past the instruction.
func (i Inst) End() uint64 { return i.VA + uint64(i.Len) }

// Stream is a linear sequence of instructions.
type Stream []Inst
