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

package exec

import (
	"github.com/rbql-go/rbql/compile"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/join"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/rewrite"
	"github.com/rbql-go/rbql/value"
	"github.com/rbql-go/rbql/writer"
)

// runSelectRow evaluates WHERE and then the SELECT list for every
// join match of one input row, routing each resulting row through the
// writer stack. It returns stop=true once a writer has signaled it
// wants no more rows.
func runSelectRow(plan *compile.Plan, recA value.Record, matches []join.Match, nr, nf int64, funcs map[string]hostexpr.Func, stack *writer.Stack) (bool, error) {
	for _, m := range matches {
		recB := m.Record
		ctx := &hostexpr.EvalContext{A: recA, B: recB, NR: nr, NF: nf, Funcs: funcs}

		if plan.Where != nil {
			wv, err := hostexpr.Eval(plan.Where, ctx)
			if err != nil {
				return false, err
			}
			if !hostexpr.Truthy(wv) {
				continue
			}
		}

		sel := plan.Select
		switch {
		case sel.HasAggregate:
			groupKey, err := evalNodes(plan.GroupBy, ctx)
			if err != nil {
				return false, err
			}
			slotValues, err := evalAggSlots(sel.Items, ctx)
			if err != nil {
				return false, err
			}
			if len(plan.GroupBy) == 0 {
				groupKey = implicitGroupKey(sel.Items, slotValues)
			}
			if ok, err := stack.WriteRow(nil, value.Value{}, groupKey, slotValues); err != nil {
				return false, err
			} else if !ok {
				return true, nil
			}
		case sel.UnnestIndex != -1:
			fanVals, err := hostexpr.EvalList(sel.Items[sel.UnnestIndex].UnnestExpr, ctx)
			if err != nil {
				return false, err
			}
			for _, fv := range fanVals {
				rec, err := buildRow(sel.Items, ctx, recA, recB, sel.UnnestIndex, &fv)
				if err != nil {
					return false, err
				}
				ok, err := writeSelected(plan, stack, rec, ctx)
				if err != nil {
					return false, err
				}
				if !ok {
					return true, nil
				}
			}
		default:
			rec, err := buildRow(sel.Items, ctx, recA, recB, -1, nil)
			if err != nil {
				return false, err
			}
			ok, err := writeSelected(plan, stack, rec, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// writeSelected evaluates ORDER BY's sort key (when present) and
// writes one finished row to the stack.
func writeSelected(plan *compile.Plan, stack *writer.Stack, rec value.Record, ctx *hostexpr.EvalContext) (bool, error) {
	var sortKey value.Value
	if plan.HasOrderBy {
		v, err := hostexpr.Eval(plan.OrderBy, ctx)
		if err != nil {
			return false, err
		}
		sortKey = v
	}
	return stack.WriteRow(rec, sortKey, nil, nil)
}

// buildRow evaluates a non-aggregate SELECT list into one output
// record, splicing star expansions from the matching side's raw
// record. When unnestIndex >= 0, that item's value is overridden with
// unnestVal rather than re-evaluated.
func buildRow(items []rewrite.SelectItem, ctx *hostexpr.EvalContext, recA, recB value.Record, unnestIndex int, unnestVal *value.Value) (value.Record, error) {
	var out value.Record
	for i, item := range items {
		switch {
		case item.IsExcept:
			for k, v := range recA {
				if !item.ExceptIndices[k] {
					out = append(out, v)
				}
			}
		case item.Info.IsStarExpansion:
			switch item.Info.StarTable {
			case "a":
				out = append(out, recA...)
			case "b":
				out = append(out, recB...)
			default:
				out = append(out, recA...)
				out = append(out, recB...)
			}
		case i == unnestIndex && unnestVal != nil:
			out = append(out, *unnestVal)
		default:
			v, err := hostexpr.Eval(item.Expr, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// implicitGroupKey derives the group key for an aggregate query with
// no explicit GROUP BY clause: the tuple of non-aggregate projected
// values. An all-aggregate projection yields the empty key, i.e. one
// global group.
func implicitGroupKey(items []rewrite.SelectItem, slotValues []value.Value) []value.Value {
	var key []value.Value
	for i, item := range items {
		if item.Agg == rewrite.AggNone {
			key = append(key, slotValues[i])
		}
	}
	return key
}

// evalNodes evaluates a GROUP BY expression list into its key tuple.
func evalNodes(nodes []hostexpr.Node, ctx *hostexpr.EvalContext) ([]value.Value, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]value.Value, len(nodes))
	for i, n := range nodes {
		v, err := hostexpr.Eval(n, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalAggSlots evaluates one row's contribution to every projected
// slot: the aggregate's argument for an aggregate item (COUNT(*)'s
// missing argument is rewritten to the literal 1), or the plain
// expression for a SubkeyChecker-guarded column.
func evalAggSlots(items []rewrite.SelectItem, ctx *hostexpr.EvalContext) ([]value.Value, error) {
	out := make([]value.Value, len(items))
	for i, item := range items {
		var n hostexpr.Node
		switch {
		case item.Agg == rewrite.AggCount && item.AggArg == nil:
			out[i] = value.FromInt(1)
			continue
		case item.Agg != rewrite.AggNone:
			n = item.AggArg
		default:
			n = item.Expr
		}
		v, err := hostexpr.Eval(n, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// runUpdateRow applies an UPDATE's SET assignments to one input row.
// A JOIN paired with UPDATE must match
// at most one RHS row, else UPDATE_AMBIGUOUS_JOIN.
func runUpdateRow(plan *compile.Plan, recA value.Record, matches []join.Match, nr, nf int64, funcs map[string]hostexpr.Func, stack *writer.Stack) (bool, error) {
	if len(matches) > 1 {
		return false, rerr.Runtimef(0, "UPDATE_AMBIGUOUS_JOIN: row matched %d join partners, expected at most one", len(matches))
	}
	var recB value.Record
	if len(matches) == 1 {
		recB = matches[0].Record
	}

	updated := recA.Clone()
	ctx := &hostexpr.EvalContext{A: recA, B: recB, NR: nr, NF: nf, Funcs: funcs}

	if plan.Where != nil {
		wv, err := hostexpr.Eval(plan.Where, ctx)
		if err != nil {
			return false, err
		}
		if !hostexpr.Truthy(wv) {
			ok, err := stack.WriteRow(updated, value.Value{}, nil, nil)
			return !ok, err
		}
	}

	for _, assign := range plan.Update {
		v, err := hostexpr.Eval(assign.Value, ctx)
		if err != nil {
			return false, err
		}
		updated = value.SafeSet(updated, assign.TargetIndex+1, v)
	}
	ok, err := stack.WriteRow(updated, value.Value{}, nil, nil)
	return !ok, err
}
