package analysis

import (
	"errors"

	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

var (
	// ErrNotFound means a function signature is absent from the image.
	ErrNotFound = errors.New("function signature not found")
	// ErrPatternMismatch means a call site does not follow the idiom the
	// helper decodes; the site is skipped.
	ErrPatternMismatch = errors.New("call site does not match pattern")
	// ErrTypeMissing means a required type is absent from the catalog.
	ErrTypeMissing = errors.New("data type missing from catalog")
)

// Helper recovers operands at the call sites of one kind of utility routine.
type Helper interface {
	Kind() Kind
	// Signature locates the routine in the image.
	Signature() sigscan.Signature
	// RequiredTypes lists catalog paths the helper's requests use.
	RequiredTypes() []string
	// Recover decodes one call site. ErrPatternMismatch marks a site that
	// does not follow the idiom.
	Recover(prog program.Program, types TypeSet, site program.Address) (Recovery, error)
}

// ResolveTypes looks up every path in the catalog.
func ResolveTypes(cat program.Types, paths []string) (TypeSet, error) {
	ts := make(TypeSet, len(paths))
	for _, p := range paths {
		t, ok := cat.DataType(p)
		if !ok {
			return nil, &TypeError{Path: p}
		}
		ts[p] = t
	}
	return ts, nil
}

// TypeError reports the missing catalog path.
type TypeError struct {
	Path string
}

func (e *TypeError) Error() string { return "failed to find data type \"" + e.Path + "\"" }

func (e *TypeError) Unwrap() error { return ErrTypeMissing }
