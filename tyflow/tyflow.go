// Package tyflow runs narrowing and exhaustiveness checking over analysis
// units, one at a time or many in parallel.
package tyflow

import (
	"context"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/exhaust"
	"github.com/cottand/tyflow/internal/log"
	"github.com/cottand/tyflow/narrow"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"runtime"
	"slices"
)

var logger = log.DefaultLogger.With("section", "tyflow")

type Options struct {
	Narrow narrow.Options
	// Parallelism bounds how many units AnalyzeUnits checks at once.
	// Zero means runtime.GOMAXPROCS
	Parallelism int
}

// Result is everything found about a single unit
type Result struct {
	Unit *cfg.Unit
	// RunID tells apart the log lines of concurrent runs
	RunID     uuid.UUID
	Narrowing *narrow.Result
	Verdicts  []exhaust.Verdict
	// Findings holds invalid assignments and non-exhaustive branches, in
	// graph order
	Findings *diag.Findings
}

// Analyze narrows unit and checks its multi-way branches.
// It fails only if the unit is malformed
func Analyze(unit *cfg.Unit, opts Options) (*Result, error) {
	id := uuid.New()
	runLogger := logger.With("run", id.String(), "unit", unit.Name())
	runLogger.Debug("starting analysis")

	narrowing, err := narrow.Analyze(unit.Graph, unit.Decls, unit.Symbols, opts.Narrow)
	if err != nil {
		return nil, err
	}
	if narrowing.Exhausted {
		runLogger.Warn("ran out of fuel, falling back to declared types", "visits", narrowing.Visits)
	}
	verdicts := exhaust.Check(narrowing, unit.Symbols)

	var findings *diag.Findings
	findings = findings.With(slices.Clone(narrowing.Findings().All())...)
	for _, v := range verdicts {
		if f := v.Finding(); f != nil {
			findings = findings.With(f)
		}
	}
	order := make(map[cfg.NodeID]int)
	for i, n := range unit.Graph.Nodes() {
		order[n.ID] = i
	}
	findings.Sort(order)

	runLogger.Debug("finished analysis", "visits", narrowing.Visits, "branches", len(verdicts), "findings", findings)
	return &Result{
		Unit:      unit,
		RunID:     id,
		Narrowing: narrowing,
		Verdicts:  verdicts,
		Findings:  findings,
	}, nil
}

// AnalyzeUnits runs Analyze on every unit with at most opts.Parallelism
// units in flight. Results are in the order of units. The first malformed
// unit stops the remaining ones and its error is returned
func AnalyzeUnits(ctx context.Context, units []*cfg.Unit, opts Options) ([]*Result, error) {
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(units))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, unit := range units {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Analyze(unit, opts)
			if err != nil {
				return errors.Wrapf(err, "unit %q", unit.Name())
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// HasFindings is true if any of results has a finding
func HasFindings(results []*Result) bool {
	return slices.ContainsFunc(results, func(r *Result) bool {
		return r.Findings.HasError()
	})
}
