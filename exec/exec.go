// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package exec is the streaming main loop: it drives
// a compiled Plan over an input Source (and an optional join Source),
// routing each row through WHERE, SELECT/UPDATE, UNNEST fan-out, and
// the writer stack, annotating every per-row failure with the
// triggering record number.
package exec

import (
	"github.com/rbql-go/rbql/agg"
	"github.com/rbql-go/rbql/clause"
	"github.com/rbql-go/rbql/compile"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/join"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/rewrite"
	"github.com/rbql-go/rbql/source"
	"github.com/rbql-go/rbql/value"
	"github.com/rbql-go/rbql/writer"
)

// Run executes plan against srcA (and srcB, the JOIN table, nil when
// plan has no JOIN), writing output to sink. funcs is the plugin
// function table compiled expressions may call. It returns once the
// input is exhausted, the writer stack stops accepting rows, or a
// per-row or setup error occurs.
func Run(plan *compile.Plan, srcA source.Source, srcB source.Source, sink source.Sink, funcs map[string]hostexpr.Func) error {
	sink.SetHeader(plan.OutputHeader)

	strategy := joinStrategy(plan.JoinKind)
	var rhsKeys []hostexpr.Node
	for _, k := range plan.JoinKeys {
		rhsKeys = append(rhsKeys, k.RHS)
	}
	var rhsSrc join.RecordSource
	if srcB != nil {
		rhsSrc = recordSourceAdapter{srcB}
	}
	if strategy != join.None && rhsSrc == nil {
		return rerr.Syntaxf("JOIN_TABLE_MISSING: plan has a %s clause but no join iterator was bound", plan.JoinKind)
	}
	ix := join.New(strategy, rhsKeys, rhsSrc, funcs)

	opt, err := writerOptions(plan, funcs)
	if err != nil {
		return err
	}
	stack, err := writer.Compose(sink, opt)
	if err != nil {
		return err
	}

	var nr int64
	for {
		recA, err := srcA.GetRecord()
		if err != nil {
			return rerr.IOf("input iterator failed: %v", err)
		}
		if recA == nil {
			break
		}
		nr++
		nf := int64(len(recA))

		lhsVals, err := evalLHSKeys(plan.JoinKeys, recA, nr, nf, funcs)
		if err != nil {
			return annotate(nr, err)
		}
		matches, err := ix.GetRHS(lhsVals)
		if err != nil {
			return annotate(nr, err)
		}

		if plan.Kind == clause.Update {
			stop, err := runUpdateRow(plan, recA, matches, nr, nf, funcs, stack)
			if err != nil {
				return annotate(nr, err)
			}
			if stop {
				break
			}
			continue
		}

		stop, err := runSelectRow(plan, recA, matches, nr, nf, funcs, stack)
		if err != nil {
			return annotate(nr, err)
		}
		if stop {
			break
		}
	}

	if err := stack.Finish(); err != nil {
		return err
	}
	return nil
}

// recordSourceAdapter satisfies join.RecordSource for any Source,
// since the host-facing interface is spelled GetRecord rather than
// the bare Next the join index needs.
type recordSourceAdapter struct{ source.Source }

func (a recordSourceAdapter) Next() (value.Record, error) { return a.GetRecord() }

func annotate(nr int64, err error) error {
	if re, ok := err.(*rerr.RuntimeError); ok && re.At == 0 {
		re.At = int(nr)
		return re
	}
	return err
}

func joinStrategy(k clause.JoinKind) join.Strategy {
	switch k {
	case clause.Inner:
		return join.Inner
	case clause.Left:
		return join.Left
	case clause.StrictLeft:
		return join.StrictLeft
	default:
		return join.None
	}
}

// evalLHSKeys evaluates the input-table side of every join key pair
// against the current record; the RHS halves are evaluated by the
// index itself while it builds (package join).
func evalLHSKeys(keys []rewrite.JoinKeyPair, recA value.Record, nr, nf int64, funcs map[string]hostexpr.Func) ([]value.Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx := &hostexpr.EvalContext{A: recA, NR: nr, NF: nf, Funcs: funcs}
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		v, err := hostexpr.Eval(k.LHS, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// aggKindOf maps rewrite's SELECT-list aggregate tag onto the agg
// package's Kind, picking SUBKEY for any non-aggregate projected
// column.
func aggKindOf(k rewrite.AggKind) agg.Kind {
	switch k {
	case rewrite.AggMin:
		return agg.Min
	case rewrite.AggMax:
		return agg.Max
	case rewrite.AggSum:
		return agg.Sum
	case rewrite.AggCount:
		return agg.Count
	case rewrite.AggAvg:
		return agg.Avg
	case rewrite.AggVariance:
		return agg.Variance
	case rewrite.AggMedian:
		return agg.Median
	case rewrite.AggArray:
		return agg.ArrayAgg
	case rewrite.AggFold:
		return agg.Fold
	default:
		return agg.Subkey
	}
}

// writerOptions translates a Plan's row-cap/ordering/aggregate flags
// into writer.Options. FOLD's separator argument is evaluated once,
// up front, against an empty row context: it names a constant
// separator, not a per-row transform.
func writerOptions(plan *compile.Plan, funcs map[string]hostexpr.Func) (writer.Options, error) {
	rowCap := plan.TopCount
	if plan.Limit != nil && (rowCap == nil || *plan.Limit < *rowCap) {
		rowCap = plan.Limit
	}
	opt := writer.Options{
		TopCount:      rowCap,
		Distinct:      plan.Distinct,
		DistinctCount: plan.DistinctCount,
		HasOrderBy:    plan.HasOrderBy,
		OrderDesc:     plan.OrderDesc,
	}
	if plan.Kind != clause.Select || plan.Select == nil || !plan.Select.HasAggregate {
		return opt, nil
	}
	opt.Aggregate = true
	emptyCtx := &hostexpr.EvalContext{Funcs: funcs}
	for _, it := range plan.Select.Items {
		opt.SlotKinds = append(opt.SlotKinds, aggKindOf(it.Agg))
		opt.SlotDistinct = append(opt.SlotDistinct, it.AggDistinct)
		sep := ""
		if it.Agg == rewrite.AggFold && it.AggPost != nil {
			v, err := hostexpr.Eval(it.AggPost, emptyCtx)
			if err != nil {
				return writer.Options{}, rerr.Parsef("FOLD post-processor must be a constant separator expression: %v", err)
			}
			sep = value.AsText(v)
		}
		opt.SlotSep = append(opt.SlotSep, sep)
	}
	return opt, nil
}
