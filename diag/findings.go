package diag

import (
	"fmt"
	"github.com/cottand/tyflow/cfg"
	"log/slog"
	"slices"
)

type Findings struct {
	findings []Finding
}

func (r *Findings) With(f ...Finding) *Findings {
	if r == nil {
		return &Findings{findings: f}
	}
	r.findings = append(r.findings, f...)
	return r
}

func (r *Findings) Merge(other *Findings) *Findings {
	if r == nil {
		return other
	}
	if other == nil || len(other.findings) == 0 {
		return r
	}
	return r.With(other.findings...)
}

func (r *Findings) All() []Finding {
	if r == nil {
		return nil
	}
	return r.findings
}

func (r *Findings) Len() int {
	if r == nil {
		return 0
	}
	return len(r.findings)
}

func (r *Findings) HasError() bool {
	return r.Len() > 0
}

// Of returns the findings with code
func (r *Findings) Of(code Code) []Finding {
	var of []Finding
	for _, f := range r.All() {
		if f.Code() == code {
			of = append(of, f)
		}
	}
	return of
}

// Sort orders findings by the position of their node in order, stably
func (r *Findings) Sort(order map[cfg.NodeID]int) {
	if r == nil {
		return
	}
	slices.SortStableFunc(r.findings, func(a, b Finding) int {
		return order[a.At()] - order[b.At()]
	})
}

func (r *Findings) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.All() {
		attrs := []slog.Attr{
			slog.String("msg", FormatWithCode(v)),
			slog.String("at", v.At().String()),
		}
		if o := origin(v); o != "" {
			attrs = append(attrs, slog.String("origin", o))
		}
		vals = append(vals, slog.Attr{
			Key:   fmt.Sprint("f", i),
			Value: slog.GroupValue(attrs...),
		})
	}
	return slog.GroupValue(vals...)
}
