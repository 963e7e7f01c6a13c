package detectors

import (
	"encoding/binary"
	"fmt"

	"fwhelper/internal/analysis"
	"fwhelper/internal/program"
)

// Layout selects the encoding of switch tables.
type Layout int

const (
	// LayoutKeyed tables hold (u16 key, u16 target, u8 tag) entries.
	LayoutKeyed Layout = iota
	// LayoutOverlaid tables hold (u16 target, u8 case) entries. The target
	// word doubles as the terminator probe.
	LayoutOverlaid
)

// ParseLayout maps a configuration name to a Layout; empty means keyed.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "keyed":
		return LayoutKeyed, nil
	case "overlaid":
		return LayoutOverlaid, nil
	}
	return 0, fmt.Errorf("unknown switch table layout %q", s)
}

func (l Layout) String() string {
	if l == LayoutOverlaid {
		return "overlaid"
	}
	return "keyed"
}

// Case is one non-default table entry. In the overlaid layout KeyAddr
// equals TargetAddr and Key equals Target.
type Case struct {
	Key        uint16
	KeyAddr    program.Address
	Target     uint16
	TargetAddr program.Address
	Tag        byte
	TagAddr    program.Address
}

// JumpTable is a parsed switch table.
type JumpTable struct {
	Start          program.Address
	Layout         Layout
	Cases          []Case
	TerminatorAddr program.Address // the zero word
	Default        uint16
	DefaultAddr    program.Address
	End            program.Address // first address past the table
}

// Len returns the number of bytes the table occupies.
func (t JumpTable) Len() int { return int(t.End.Offset - t.Start.Offset) }

type tableState int

const (
	stateKey tableState = iota
	stateTarget
	stateTag
	stateDefault
	stateDone
)

func (s tableState) String() string {
	return [...]string{"key", "target", "tag", "default", "done"}[s]
}

// ParseJumpTable reads the table at start. Parsing stops right after the
// default pointer that follows the zero key. A table that runs out of
// memory or grows past analysis.MaxTableEntries yields an error wrapping
// program.ErrConflict or program.ErrOutOfBounds.
func ParseJumpTable(mem program.Memory, start program.Address, layout Layout) (JumpTable, error) {
	t := JumpTable{Start: start, Layout: layout}
	pc := start
	state := stateKey
	var cur Case

	for state != stateDone {
		switch state {
		case stateKey:
			if len(t.Cases) >= analysis.MaxTableEntries {
				return t, fmt.Errorf("jump table at %s: more than %d entries: %w",
					start, analysis.MaxTableEntries, program.ErrConflict)
			}
			w, err := readWord(mem, pc)
			if err != nil {
				return t, fmt.Errorf("jump table at %s: %w", start, err)
			}
			if w == 0 {
				t.TerminatorAddr = pc
				pc = pc.Add(2)
				state = stateDefault
				continue
			}
			cur = Case{Key: w, KeyAddr: pc}
			if layout == LayoutKeyed {
				pc = pc.Add(2)
			}
			state = stateTarget

		case stateTarget:
			w, err := readWord(mem, pc)
			if err != nil {
				return t, fmt.Errorf("jump table at %s: %w", start, err)
			}
			cur.Target, cur.TargetAddr = w, pc
			pc = pc.Add(2)
			state = stateTag

		case stateTag:
			b, err := mem.Bytes(pc, 1)
			if err != nil {
				return t, fmt.Errorf("jump table at %s: %w", start, err)
			}
			cur.Tag, cur.TagAddr = b[0], pc
			pc = pc.Add(1)
			t.Cases = append(t.Cases, cur)
			state = stateKey

		case stateDefault:
			w, err := readWord(mem, pc)
			if err != nil {
				return t, fmt.Errorf("jump table at %s: default: %w", start, err)
			}
			t.Default, t.DefaultAddr = w, pc
			pc = pc.Add(2)
			state = stateDone
		}
	}
	t.End = pc
	return t, nil
}

func readWord(mem program.Memory, a program.Address) (uint16, error) {
	b, err := mem.Bytes(a, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}
