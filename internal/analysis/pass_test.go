package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fwhelper/internal/program"
	"fwhelper/internal/program/memdb"
	"fwhelper/internal/sigscan"
)

type stubHelper struct {
	kind    Kind
	sig     sigscan.Signature
	types   []string
	recover func(prog program.Program, types TypeSet, site program.Address) (Recovery, error)
}

func (s stubHelper) Kind() Kind                   { return s.kind }
func (s stubHelper) Signature() sigscan.Signature { return s.sig }
func (s stubHelper) RequiredTypes() []string      { return s.types }
func (s stubHelper) Recover(prog program.Program, types TypeSet, site program.Address) (Recovery, error) {
	return s.recover(prog, types, site)
}

// newCallerDB returns an image with two calls to a CLR A; RET routine at 0x10.
func newCallerDB(t *testing.T, opts ...memdb.Option) *memdb.DB {
	t.Helper()
	code := make([]byte, 0x20)
	copy(code, []byte{
		0x12, 0x00, 0x10, // LCALL 0x0010
		0x12, 0x00, 0x10, // LCALL 0x0010
		0x80, 0xfe, // SJMP $
	})
	code[0x10], code[0x11] = 0xe4, 0x22
	db := memdb.NewCode(code, 0, opts...)
	if _, err := db.Disassemble(program.Code(0)); err != nil {
		t.Fatal(err)
	}
	return db
}

func writeHelper() stubHelper {
	return stubHelper{
		kind:  KindU32Write,
		sig:   sigscan.MustParse("stub", "e4 22", 0),
		types: []string{program.PathUint32},
		recover: func(_ program.Program, types TypeSet, site program.Address) (Recovery, error) {
			if site == program.Code(0) {
				return Recovery{}, ErrPatternMismatch
			}
			to := program.ExtMem(0x100)
			return Recovery{Site: site, Operand: to, Requests: []Request{
				AddRef(site, to, program.RefWrite, 0),
				Define(to, types.Get(program.PathUint32), DefineIfUndefined),
			}}, nil
		},
	}
}

func TestPassRun(t *testing.T) {
	db := newCallerDB(t)
	sums, err := NewPass([]Helper{writeHelper()}).Run(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("got %d summaries, want 1", len(sums))
	}
	got := sums[0]
	want := Summary{
		Kind: KindU32Write, Function: program.Code(0x10), FunctionAddr: "CODE:0010",
		Found: true, Stage: StageDone,
		SitesExamined: 2, Recovered: 1, Mismatches: 1,
		ReferencesCreated: 1, DataDefined: 1,
	}
	if got != want {
		t.Errorf("summary = %+v, want %+v", got, want)
	}
	if refs := db.ReferencesTo(program.ExtMem(0x100)); len(refs) != 1 {
		t.Errorf("ReferencesTo(EXTMEM:0100) = %v, want one", refs)
	}
}

func TestPassContinuesAfterMissingFunction(t *testing.T) {
	db := newCallerDB(t)
	missing := writeHelper()
	missing.kind = KindDwordCopy
	missing.sig = sigscan.MustParse("missing", "a5 a5 a5", 0)

	sums, err := NewPass([]Helper{missing, writeHelper()}).Run(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	if sums[0].Found || sums[0].Aborted == "" {
		t.Errorf("missing kind summary = %+v, want not found", sums[0])
	}
	if !sums[1].Found || sums[1].ReferencesCreated != 1 {
		t.Errorf("second kind summary = %+v, want one reference", sums[1])
	}
}

func TestPassMissingType(t *testing.T) {
	db := newCallerDB(t, memdb.WithoutType(program.PathUint32))
	h := writeHelper()

	sum, err := NewPass(nil).RunKind(context.Background(), db, h)
	if !errors.Is(err, ErrTypeMissing) {
		t.Fatalf("RunKind error = %v, want ErrTypeMissing", err)
	}
	if !strings.Contains(sum.Aborted, program.PathUint32) {
		t.Errorf("Aborted = %q, want the missing path", sum.Aborted)
	}
	if sum.SitesExamined != 0 || db.RefCount() != 3 {
		t.Errorf("database touched: sites %d, refs %d", sum.SitesExamined, db.RefCount())
	}
}

func TestPassSignatureOverride(t *testing.T) {
	db := newCallerDB(t)
	h := writeHelper()
	h.sig = sigscan.MustParse("stale", "a5 a5 a5", 0)

	p := NewPass([]Helper{h}, WithSignature(KindU32Write, sigscan.MustParse("override", "e4 ??", 0)))
	sums, err := p.Run(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if !sums[0].Found || sums[0].Function != program.Code(0x10) {
		t.Errorf("summary = %+v, want function at CODE:0010", sums[0])
	}
}

func TestPassConflictIsCounted(t *testing.T) {
	db := newCallerDB(t)
	h := writeHelper()
	h.recover = func(_ program.Program, types TypeSet, site program.Address) (Recovery, error) {
		return Recovery{Site: site, Requests: []Request{
			Define(program.Code(0x1e), types.Get(program.PathUint32), DefineOverCode),
		}}, nil
	}

	sum, err := NewPass(nil).RunKind(context.Background(), db, h)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Conflicts != 2 || sum.DataDefined != 0 {
		t.Errorf("summary = %+v, want two conflicts", sum)
	}
}

func TestPassCancelled(t *testing.T) {
	db := newCallerDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sums, err := NewPass([]Helper{writeHelper()}).Run(ctx, db)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if len(sums) != 0 {
		t.Errorf("got %d summaries after cancel, want 0", len(sums))
	}
}

func TestLocate(t *testing.T) {
	db := newCallerDB(t)

	got, err := Locate(db, sigscan.MustParse("ret", "e4 22", 1))
	if err != nil || got != program.Code(0x11) {
		t.Errorf("Locate = %s, %v, want CODE:0011", got, err)
	}
	if _, err := Locate(db, sigscan.MustParse("none", "a5", 0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate error = %v, want ErrNotFound", err)
	}
	if sites := CallSites(db, program.Code(0x10)); len(sites) != 2 {
		t.Errorf("CallSites = %v, want two", sites)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		if got, err := ParseKind(string(k)); err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("memcpy"); err == nil {
		t.Error("ParseKind accepted an unknown kind")
	}
}
