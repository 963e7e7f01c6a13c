package analysis

import (
	"fmt"

	"fwhelper/internal/program"
)

// Kind names a known utility routine.
type Kind string

const (
	KindDwordCopy  Kind = "dword-copy"  // copies a 4-byte literal stored after the call
	KindSwitchCase Kind = "switch-case" // dispatches through a table stored after the call
	KindU32Write   Kind = "u32-write"   // writes R4-R7 to @DPTR
)

// Kinds lists every known kind in processing order.
var Kinds = []Kind{KindDwordCopy, KindSwitchCase, KindU32Write}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown function kind %q", s)
}

// RequestKind is the kind of database mutation a Request describes.
type RequestKind int

const (
	ReqClearReferencesFrom RequestKind = iota
	ReqAddReference
	ReqDefineData
	ReqDisassemble
)

func (k RequestKind) String() string {
	switch k {
	case ReqClearReferencesFrom:
		return "clear-refs"
	case ReqAddReference:
		return "add-ref"
	case ReqDefineData:
		return "define"
	case ReqDisassemble:
		return "disassemble"
	}
	return fmt.Sprintf("request(%d)", int(k))
}

// DefinePolicy decides when a DefineData request may replace what is there.
type DefinePolicy int

const (
	// DefineIfUndefined defines only over free space or placeholder data.
	DefineIfUndefined DefinePolicy = iota
	// DefineAtUnitBoundary also replaces code when a code unit starts
	// exactly at the address, but never lands inside one.
	DefineAtUnitBoundary
	// DefineOverCode replaces any instructions in the span.
	DefineOverCode
)

// Request is a planned mutation of the program database.
type Request struct {
	Kind RequestKind

	// Addr is the target of ReqDefineData, ReqDisassemble and the origin
	// for ReqClearReferencesFrom.
	Addr program.Address

	// Reference fields.
	From         program.Address
	To           program.Address
	RefType      program.RefType
	Source       program.SourceType
	OperandIndex int

	// Data fields.
	Type   program.DataType
	Policy DefinePolicy

	// Span is the number of bytes cleared ahead of disassembly.
	Span int
}

// ClearRefs builds a request removing every reference from a.
func ClearRefs(a program.Address) Request {
	return Request{Kind: ReqClearReferencesFrom, Addr: a}
}

// AddRef builds a helper-sourced reference request.
func AddRef(from, to program.Address, t program.RefType, opIndex int) Request {
	return Request{Kind: ReqAddReference, From: from, To: to, RefType: t,
		Source: program.SourceUserDefined, OperandIndex: opIndex}
}

// Define builds a data definition request.
func Define(a program.Address, t program.DataType, policy DefinePolicy) Request {
	return Request{Kind: ReqDefineData, Addr: a, Type: t, Policy: policy}
}

// DisassembleAt builds a disassembly request clearing span bytes first.
func DisassembleAt(a program.Address, span int) Request {
	return Request{Kind: ReqDisassemble, Addr: a, Span: span}
}

func (r Request) String() string {
	switch r.Kind {
	case ReqAddReference:
		return fmt.Sprintf("%s %s %s->%s", r.Kind, r.RefType, r.From, r.To)
	case ReqDefineData:
		return fmt.Sprintf("%s %s at %s", r.Kind, r.Type, r.Addr)
	}
	return fmt.Sprintf("%s at %s", r.Kind, r.Addr)
}

// Recovery is what a helper learned from one call site.
type Recovery struct {
	Site     program.Address
	Operand  program.Address // the recovered data address or table start
	Table    bool            // a jump table was parsed at Operand
	Requests []Request
}

// Outcome is the result of applying one request.
type Outcome int

const (
	Applied Outcome = iota
	AlreadyPresent
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyPresent:
		return "present"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// TypeSet holds the catalog types a helper asked for, keyed by path.
type TypeSet map[string]program.DataType

// Get returns the type at path; helpers only ask for paths they declared.
func (ts TypeSet) Get(path string) program.DataType { return ts[path] }

// Stage is a step of the per-kind pass.
type Stage int

const (
	StageIdle Stage = iota
	StageLocate
	StageEnumerate
	StageRecover
	StageAnnotate
	StageDone
)

func (s Stage) String() string {
	return [...]string{"idle", "locate", "enumerate", "recover", "annotate", "done"}[s]
}

// Summary holds the run counters for one kind.
type Summary struct {
	Kind              Kind            `json:"kind"`
	Function          program.Address `json:"-"`
	FunctionAddr      string          `json:"function,omitempty"`
	Found             bool            `json:"found"`
	Stage             Stage           `json:"-"`
	Aborted           string          `json:"aborted,omitempty"`
	SitesExamined     int             `json:"sites_examined"`
	Recovered         int             `json:"recovered"`
	Mismatches        int             `json:"mismatches"`
	Conflicts         int             `json:"conflicts"`
	ReferencesCreated int             `json:"references_created"`
	DataDefined       int             `json:"data_defined"`
	DataSkipped       int             `json:"data_skipped"`
	Disassembled      int             `json:"disassembled"`
	TablesFound       int             `json:"tables_found"`
}
