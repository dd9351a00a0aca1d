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

package rewrite

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
)

var (
	aggRe    = regexp.MustCompile(`(?i)^(MIN|MAX|SUM|AVG|VARIANCE|MEDIAN|ARRAY_AGG)\s*\((.*)\)$`)
	countRe  = regexp.MustCompile(`(?i)^COUNT\s*\(\s*(DISTINCT\s+)?(.*?)\s*\)$`)
	countStar = regexp.MustCompile(`(?i)^\*\s*$`)
	foldRe   = regexp.MustCompile(`(?i)^FOLD\s*\((.*)\)$`)
	unnestRe = regexp.MustCompile(`(?i)^(UNNEST|UNFOLD)\s*\((.*)\)$`)
	asRe     = regexp.MustCompile(`(?i)^(.*)\bAS\b\s*([A-Za-z_][A-Za-z0-9_]*)\s*$`)
)

// RewriteSelectResult is the full rewritten SELECT list plus the
// bookkeeping needed by the compiler: whether any
// aggregate appeared, and the index of the at-most-one UNNEST/UNFOLD
// item.
type RewriteSelectResult struct {
	Items       []SelectItem
	HasAggregate bool
	UnnestIndex int // -1 if none
}

// RewriteSelect rewrites a SELECT list: split on
// top-level commas, detect EXCEPT/UNNEST/star/aggregate forms, parse
// everything else as a plain hostexpr expression, and attach
// `AS alias` when present.
func RewriteSelect(list string, vmA, vmB resolve.VariableMap, headerA, headerB []string, lr *lex.Result) (*RewriteSelectResult, error) {
	if strings.TrimSpace(list) == "" {
		return nil, rerr.Parsef("SELECT list must not be empty")
	}
	parts := SplitTopLevel(list)
	res := &RewriteSelectResult{UnnestIndex: -1}

	for _, raw := range parts {
		item := strings.TrimSpace(raw)
		if item == "" {
			return nil, rerr.Parsef("empty item in SELECT list")
		}

		if strings.HasPrefix(strings.ToUpper(item), "EXCEPT") && !identByte(byteAt(item, len("EXCEPT"))) {
			si, err := rewriteExcept(item, vmA)
			if err != nil {
				return nil, err
			}
			res.Items = append(res.Items, *si)
			continue
		}

		alias := ""
		body := item
		if m := asRe.FindStringSubmatch(item); m != nil {
			body = strings.TrimSpace(m[1])
			alias = m[2]
		}

		si, err := rewriteSelectItem(body, alias, len(res.Items), vmA, vmB, headerA, headerB, lr)
		if err != nil {
			return nil, err
		}
		if si.IsUnnest {
			if res.UnnestIndex != -1 {
				return nil, rerr.Parsef("only one UNNEST is allowed per query")
			}
			res.UnnestIndex = len(res.Items)
		}
		if si.Agg != AggNone {
			res.HasAggregate = true
		}
		res.Items = append(res.Items, *si)
	}
	return res, nil
}

func rewriteSelectItem(body, alias string, pos int, vmA, vmB resolve.VariableMap, headerA, headerB []string, lr *lex.Result) (*SelectItem, error) {
	switch strings.TrimSpace(body) {
	case "*":
		return &SelectItem{Info: QueryColumnInfo{IsStarExpansion: true, Alias: alias}}, nil
	case "a.*":
		return &SelectItem{Info: QueryColumnInfo{IsStarExpansion: true, StarTable: "a", Alias: alias}}, nil
	case "b.*":
		return &SelectItem{Info: QueryColumnInfo{IsStarExpansion: true, StarTable: "b", Alias: alias}}, nil
	}

	if m := unnestRe.FindStringSubmatch(body); m != nil {
		inner := m[2]
		expr, err := parseExpr(inner, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		return &SelectItem{
			Info:       QueryColumnInfo{ColumnName: defaultAlias(alias, pos), Alias: alias},
			IsUnnest:   true,
			UnnestExpr: expr,
		}, nil
	}

	if m := countRe.FindStringSubmatch(body); m != nil {
		distinct := m[1] != ""
		arg := strings.TrimSpace(m[2])
		si := &SelectItem{Agg: AggCount, AggDistinct: distinct, Info: QueryColumnInfo{Alias: alias}}
		if arg != "" && !countStar.MatchString(arg) {
			expr, err := parseExpr(arg, vmA, vmB, lr)
			if err != nil {
				return nil, err
			}
			si.AggArg = expr
		}
		return si, nil
	}

	if m := aggRe.FindStringSubmatch(body); m != nil {
		kind := AggKind(strings.ToUpper(m[1]))
		expr, err := parseExpr(m[2], vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		return &SelectItem{Agg: kind, AggArg: expr, Info: QueryColumnInfo{Alias: alias}}, nil
	}

	if m := foldRe.FindStringSubmatch(body); m != nil {
		args := SplitTopLevel(m[1])
		if len(args) != 2 {
			return nil, rerr.Parsef("FOLD(...) takes exactly two arguments: %s", body)
		}
		argExpr, err := parseExpr(args[0], vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		postExpr, err := parseExpr(args[1], vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		return &SelectItem{Agg: AggFold, AggArg: argExpr, AggPost: postExpr, Info: QueryColumnInfo{Alias: alias}}, nil
	}

	info := columnInfo(body, vmA, vmB, headerA, headerB)
	info.Alias = alias
	expr, err := parseExpr(body, vmA, vmB, lr)
	if err != nil {
		return nil, err
	}
	return &SelectItem{Info: info, Expr: expr}, nil
}

// columnInfo computes the QueryColumnInfo a plain (non-aggregate,
// non-star) SELECT item gets: if the whole item is a single resolved
// column reference, the table/index carries through to the output
// header; otherwise it is empty, and the compiler's output header
// falls back to col<n> for that item.
func columnInfo(body string, vmA, vmB resolve.VariableMap, headerA, headerB []string) QueryColumnInfo {
	trimmed := strings.TrimSpace(body)
	if info, ok := vmA[trimmed]; ok && info.Index != nil {
		return QueryColumnInfo{TableName: "a", FieldIndex: *info.Index, ColumnName: headerName(headerA, *info.Index, trimmed)}
	}
	if vmB != nil {
		if info, ok := vmB[trimmed]; ok && info.Index != nil {
			return QueryColumnInfo{TableName: "b", FieldIndex: *info.Index, ColumnName: headerName(headerB, *info.Index, trimmed)}
		}
	}
	return QueryColumnInfo{}
}

// headerName returns header[idx] when present, falling back to the
// raw occurrence text for positional/array-style references that
// have no header name (e.g. "a3" against a headerless input).
func headerName(header []string, idx int, fallback string) string {
	if idx >= 0 && idx < len(header) {
		return header[idx]
	}
	return fallback
}

func defaultAlias(alias string, n int) string {
	if alias != "" {
		return alias
	}
	return "col" + strconv.Itoa(n+1)
}
