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

import "github.com/rbql-go/rbql/hostexpr"

// QueryColumnInfo is the display metadata every SELECT-list item
// carries alongside its rewritten expression, used to compute the
// output header.
type QueryColumnInfo struct {
	TableName       string // "a", "b", or "" when not a direct column reference
	FieldIndex      int    // 0-based, meaningful only when TableName != ""
	ColumnName      string
	IsStarExpansion bool
	StarTable       string // "" (full "*"), "a", or "b"
	Alias           string
}

// AggKind names one of the supported aggregate functions.
type AggKind string

const (
	AggNone       AggKind = ""
	AggMin        AggKind = "MIN"
	AggMax        AggKind = "MAX"
	AggSum        AggKind = "SUM"
	AggCount      AggKind = "COUNT"
	AggAvg        AggKind = "AVG"
	AggVariance   AggKind = "VARIANCE"
	AggMedian     AggKind = "MEDIAN"
	AggArray      AggKind = "ARRAY_AGG"
	AggFold       AggKind = "FOLD"
)

// SelectItem is one rewritten, comma-separated entry of a SELECT
// list.
type SelectItem struct {
	Info QueryColumnInfo

	// Expr is the rewritten value expression. Nil when IsStarExpansion
	// is set (the star splice is handled structurally, not via Eval)
	// or when Agg != AggNone (the aggregate's own Arg carries the
	// per-row expression instead).
	Expr hostexpr.Node

	IsUnnest   bool
	UnnestExpr hostexpr.Node

	// IsExcept marks an `EXCEPT <col-list>` item: at row time every
	// field of record_a whose index is not in ExceptIndices is spliced
	// into the output, so the projection works on headerless inputs
	// and on records wider than the declared header.
	IsExcept      bool
	ExceptIndices map[int]bool

	Agg         AggKind
	AggDistinct bool
	// AggArg is nil for COUNT(*); for FOLD it is the first argument
	// and AggPost the second.
	AggArg  hostexpr.Node
	AggPost hostexpr.Node
}

// JoinKeyPair is one equality of a JOIN ON clause, normalized so LHS
// always evaluates against table "a" and RHS against table "b".
type JoinKeyPair struct {
	LHS hostexpr.Node
	RHS hostexpr.Node
}

// UpdateAssign is one `a.col = expr` entry of an UPDATE SET list.
type UpdateAssign struct {
	TargetIndex int // 0-based index into record_a
	Value       hostexpr.Node
}
