package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"fwhelper/internal/program"
	"fwhelper/internal/sigscan"
)

// Pass runs helpers one kind at a time: locate the routine, enumerate its
// call sites, recover each site and annotate the database.
type Pass struct {
	helpers    []Helper
	signatures map[Kind]sigscan.Signature
	log        *log.Logger
}

// PassOption configures a Pass.
type PassOption func(*Pass)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *log.Logger) PassOption {
	return func(p *Pass) { p.log = l }
}

// WithSignature overrides the signature used to locate one kind.
func WithSignature(k Kind, sig sigscan.Signature) PassOption {
	return func(p *Pass) { p.signatures[k] = sig }
}

// NewPass creates a pass over the given helpers, run in order.
func NewPass(helpers []Helper, opts ...PassOption) *Pass {
	p := &Pass{
		helpers:    helpers,
		signatures: make(map[Kind]sigscan.Signature),
		log:        log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every helper and returns one summary per kind. A kind that
// cannot be located or lacks a catalog type is reported in its summary and
// does not stop the others. Only cancellation ends the run early.
func (p *Pass) Run(ctx context.Context, prog program.Program) ([]Summary, error) {
	sums := make([]Summary, 0, len(p.helpers))
	for _, h := range p.helpers {
		if err := ctx.Err(); err != nil {
			return sums, err
		}
		sum, err := p.RunKind(ctx, prog, h)
		sums = append(sums, sum)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return sums, err
		}
	}
	return sums, nil
}

// RunKind processes a single helper.
func (p *Pass) RunKind(ctx context.Context, prog program.Program, h Helper) (Summary, error) {
	sum := Summary{Kind: h.Kind(), Stage: StageLocate}
	lg := p.log.With("kind", h.Kind())

	sig := h.Signature()
	if s, ok := p.signatures[h.Kind()]; ok {
		sig = s
	}
	fn, err := Locate(prog, sig)
	if err != nil {
		sum.Aborted = err.Error()
		lg.Warn("Function not found", "signature", sig.String())
		return sum, err
	}
	sum.Found, sum.Function, sum.FunctionAddr = true, fn, fn.String()
	lg.Info("Located function", "addr", fn)

	types, err := ResolveTypes(prog, h.RequiredTypes())
	if err != nil {
		sum.Aborted = err.Error()
		lg.Error("Aborting kind", "err", err)
		return sum, err
	}

	sum.Stage = StageEnumerate
	sites := CallSites(prog, fn)
	lg.Debug("Enumerated call sites", "count", len(sites))

	an := NewAnnotator(prog)
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			sum.Aborted = err.Error()
			return sum, err
		}
		sum.SitesExamined++

		sum.Stage = StageRecover
		rec, err := h.Recover(prog, types, site)
		switch {
		case errors.Is(err, ErrPatternMismatch):
			sum.Mismatches++
			lg.Debug("Skipping call site", "site", site, "reason", err)
			continue
		case err != nil:
			sum.Conflicts++
			lg.Warn("Recovery failed", "site", site, "err", err)
			continue
		}
		sum.Recovered++

		sum.Stage = StageAnnotate
		if err := p.annotate(an, &sum, rec); err != nil {
			sum.Conflicts++
			lg.Warn("Annotation stopped", "site", site, "err", err)
			continue
		}
		if rec.Table {
			sum.TablesFound++
		}
		lg.Debug("Recovered operand", "site", site, "operand", rec.Operand, "requests", len(rec.Requests))
	}

	sum.Stage = StageDone
	lg.Info("Finished",
		"sites", sum.SitesExamined,
		"refs", sum.ReferencesCreated,
		"data", sum.DataDefined,
		"mismatches", sum.Mismatches,
		"conflicts", sum.Conflicts)
	return sum, nil
}

// annotate applies a recovery's requests in order and stops at the first
// database error.
func (p *Pass) annotate(an *Annotator, sum *Summary, rec Recovery) error {
	for _, r := range rec.Requests {
		out, err := an.Apply(r)
		if err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
		tally(sum, r, out)
	}
	return nil
}

func tally(sum *Summary, r Request, out Outcome) {
	switch r.Kind {
	case ReqAddReference:
		if out == Applied {
			sum.ReferencesCreated++
		}
	case ReqDefineData:
		switch out {
		case Applied:
			sum.DataDefined++
		case Skipped:
			sum.DataSkipped++
		}
	case ReqDisassemble:
		if out == Applied {
			sum.Disassembled++
		}
	}
}
