// Package report renders analysis results as plain text
package report

import (
	"fmt"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/exhaust"
	"github.com/cottand/tyflow/tyflow"
	"github.com/pkg/errors"
	"io"
	"strings"
)

type Options struct {
	// Types adds the narrowed type of every binding on entry to every node
	Types bool
}

// Render writes one section per result, in order, followed by a summary line.
// The output does not depend on run ids or scheduling
func Render(w io.Writer, results []*tyflow.Result, opts Options) error {
	var sb strings.Builder
	findings := 0
	for _, res := range results {
		renderUnit(&sb, res, opts)
		findings += res.Findings.Len()
	}
	fmt.Fprintf(&sb, "%s, %s\n", plural(len(results), "unit"), plural(findings, "finding"))
	_, err := io.WriteString(w, sb.String())
	return errors.Wrap(err, "writing report")
}

func renderUnit(sb *strings.Builder, res *tyflow.Result, opts Options) {
	fmt.Fprintf(sb, "unit %s\n", res.Unit.Name())
	if res.Narrowing.Exhausted {
		fmt.Fprintf(sb, "  ran out of fuel after %d visits\n", res.Narrowing.Visits)
	}
	for _, v := range res.Verdicts {
		renderVerdict(sb, v)
	}
	if opts.Types {
		sb.WriteString("  types:\n")
		for _, n := range res.Unit.Graph.Nodes() {
			env, ok := res.Narrowing.EnvAt(n.ID)
			if !ok {
				fmt.Fprintf(sb, "    %s: unreachable\n", n.ID)
				continue
			}
			fmt.Fprintf(sb, "    %s: %s\n", n.ID, env)
		}
	}
	for _, f := range res.Findings.All() {
		fmt.Fprintf(sb, "  %s: %s\n", f.At(), diag.FormatWithCode(f))
	}
}

func renderVerdict(sb *strings.Builder, v exhaust.Verdict) {
	subjects := strings.Join(v.Subjects, ", ")
	fmt.Fprintf(sb, "  branch %s over %s: %s\n", v.Branch, subjects, v.Status)
	for _, m := range v.Missing {
		fmt.Fprintf(sb, "    missing %s\n", m)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
