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

// Package compile assembles the output of lex/clause/resolve/rewrite
// into a single Plan, raising parse/syntax errors for anything the
// earlier passes couldn't already catch on their own.
package compile

import (
	"strconv"
	"strings"

	"github.com/rbql-go/rbql/clause"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/rewrite"
)

// Plan is the fully rewritten, ready-to-execute form of a query.
type Plan struct {
	Kind clause.Kind

	TopCount      *uint64
	Distinct      bool
	DistinctCount bool

	Select *rewrite.RewriteSelectResult
	Update []rewrite.UpdateAssign

	Where hostexpr.Node

	FromTable string

	JoinKind   clause.JoinKind
	JoinSource string
	JoinKeys   []rewrite.JoinKeyPair

	GroupBy   []hostexpr.Node
	OrderBy   hostexpr.Node
	OrderDesc bool
	HasOrderBy bool

	Limit *uint64

	OutputHeader []string

	HeaderA, HeaderB []string
}

// Options bundles the bits of the calling host's configuration that
// affect compilation but aren't part of the query text itself.
type Options struct {
	HeaderA, HeaderB     []string
	NormalizeColumnNames bool
}

// TableRefs runs just enough of the front end (lexical pre-pass +
// statement split) to discover which tables a query names in its
// FROM and JOIN clauses, without requiring either table's header to
// be known yet. A caller that doesn't already have a bound input (or
// join) iterator uses this to resolve one from a TableRegistry before
// calling Compile, which does need both headers up front for the
// variable-resolution passes.
func TableRefs(query string) (from string, join string, hasJoin bool, err error) {
	lr, err := lex.Preprocess(query)
	if err != nil {
		return "", "", false, err
	}
	st, err := clause.Split(lr.Code)
	if err != nil {
		return "", "", false, err
	}
	if st.Join != nil {
		return st.From, st.Join.Source, true, nil
	}
	return st.From, "", false, nil
}

// Compile runs the full front-end pipeline over raw query text and
// produces a Plan.
func Compile(query string, opt Options) (*Plan, error) {
	lr, err := lex.Preprocess(query)
	if err != nil {
		return nil, err
	}
	st, err := clause.Split(lr.Code)
	if err != nil {
		return nil, err
	}

	hasJoin := st.Join != nil
	onRaw := ""
	if hasJoin {
		onRaw = st.Join.OnRaw
	}
	combined := strings.Join([]string{
		st.SelectList, st.UpdateTarget, st.UpdateSet, st.Where,
		onRaw, st.GroupBy, st.OrderBy,
	}, " ")

	vmA, err := resolve.Resolve("a", combined, opt.HeaderA, lr)
	if err != nil {
		return nil, err
	}
	var vmB resolve.VariableMap
	if hasJoin {
		vmB, err = resolve.Resolve("b", combined, opt.HeaderB, lr)
		if err != nil {
			return nil, err
		}
	}
	if err := resolve.CheckAmbiguous(combined, opt.HeaderA, opt.HeaderB, opt.NormalizeColumnNames); err != nil {
		return nil, err
	}
	resolve.ResolveBare(combined, opt.HeaderA, opt.HeaderB, vmA, vmB)

	p := &Plan{
		Kind:          st.Kind,
		TopCount:      st.Top,
		Distinct:      st.Distinct,
		DistinctCount: st.DistinctCount,
		JoinKind:      clause.NoJoin,
		Limit:         st.Limit,
		HasOrderBy:    st.HasOrderBy,
		OrderDesc:     st.OrderDesc,
		HeaderA:       opt.HeaderA,
		HeaderB:       opt.HeaderB,
		FromTable:     st.From,
	}

	if st.Where != "" {
		p.Where, err = rewrite.RewriteWhere(st.Where, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
	}

	if hasJoin {
		p.JoinKind = st.Join.Kind
		p.JoinSource = st.Join.Source
		p.JoinKeys, err = rewrite.RewriteJoin(st.Join.OnRaw, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
	}

	if st.GroupBy != "" {
		p.GroupBy, err = rewrite.RewriteGroupBy(st.GroupBy, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
	}

	if st.HasOrderBy {
		p.OrderBy, err = rewrite.RewriteOrderBy(st.OrderBy, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
	}

	switch st.Kind {
	case clause.Select:
		p.Select, err = rewrite.RewriteSelect(st.SelectList, vmA, vmB, opt.HeaderA, opt.HeaderB, lr)
		if err != nil {
			return nil, err
		}
		if p.Select.HasAggregate && (p.HasOrderBy || p.Distinct || p.DistinctCount) {
			return nil, rerr.Parsef("PARSE_ERROR(aggregate_with_sort_or_distinct): aggregate queries cannot also use ORDER BY or DISTINCT")
		}
		if p.Select.UnnestIndex != -1 && (p.HasOrderBy || p.Distinct || p.DistinctCount) {
			return nil, rerr.Parsef("UNNEST cannot be combined with ORDER BY or DISTINCT")
		}
		if p.Select.HasAggregate {
			if p.Select.UnnestIndex != -1 {
				return nil, rerr.Parsef("UNNEST cannot be combined with aggregate functions")
			}
			for _, it := range p.Select.Items {
				if it.Info.IsStarExpansion || it.IsExcept {
					return nil, rerr.Parsef("star expansion and EXCEPT cannot be combined with aggregate functions")
				}
			}
		}
		p.OutputHeader = outputHeader(p.Select, opt.HeaderA, opt.HeaderB)
	case clause.Update:
		p.Update, err = rewrite.RewriteUpdate(st.UpdateSet, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		p.OutputHeader = opt.HeaderA
	}

	return p, nil
}

// outputHeader derives the output header from the rewritten SELECT
// list: star expansions splice in the corresponding table's header
// names, EXCEPT splices in the input header minus the excluded
// columns, and everything else contributes one name (alias, the
// lowercased aggregate name, resolved column name, or col<n>).
func outputHeader(sel *rewrite.RewriteSelectResult, headerA, headerB []string) []string {
	var out []string
	for i, it := range sel.Items {
		switch {
		case it.IsExcept:
			for k, name := range headerA {
				if !it.ExceptIndices[k] {
					out = append(out, name)
				}
			}
		case it.Info.IsStarExpansion:
			switch it.Info.StarTable {
			case "a":
				out = append(out, headerA...)
			case "b":
				out = append(out, headerB...)
			default:
				out = append(out, headerA...)
				out = append(out, headerB...)
			}
		case it.Info.Alias != "":
			out = append(out, it.Info.Alias)
		case it.Agg != rewrite.AggNone:
			out = append(out, strings.ToLower(string(it.Agg)))
		case it.Info.ColumnName != "":
			out = append(out, it.Info.ColumnName)
		default:
			out = append(out, "col"+strconv.Itoa(i+1))
		}
	}
	return out
}
