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
	"testing"

	"github.com/rbql-go/rbql/clause"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
)

func mustPrep(t *testing.T, q string) (*clause.Statement, *lex.Result) {
	t.Helper()
	lr, err := lex.Preprocess(q)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	st, err := clause.Split(lr.Code)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	return st, lr
}

func TestSplitTopLevelRespectsParens(t *testing.T) {
	parts := SplitTopLevel("a1, f(a2, a3), a4")
	if len(parts) != 3 || parts[1] != "f(a2, a3)" {
		t.Fatalf("got %v", parts)
	}
}

func TestRewriteSelectStarAndPlain(t *testing.T) {
	st, lr := mustPrep(t, "SELECT *, a1 AS first")
	vmA, err := resolve.Resolve("a", st.SelectList, []string{"name", "age"}, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := RewriteSelect(st.SelectList, vmA, nil, []string{"name", "age"}, nil, lr)
	if err != nil {
		t.Fatalf("RewriteSelect: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(res.Items), res.Items)
	}
	if !res.Items[0].Info.IsStarExpansion {
		t.Fatalf("expected first item to be a star expansion")
	}
	if res.Items[1].Info.Alias != "first" {
		t.Fatalf("expected alias %q, got %q", "first", res.Items[1].Info.Alias)
	}
}

func TestRewriteSelectCountDistinctAndAggregate(t *testing.T) {
	st, lr := mustPrep(t, "SELECT a1, COUNT(DISTINCT a2), SUM(a2)")
	vmA, err := resolve.Resolve("a", st.SelectList, []string{"name", "age"}, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := RewriteSelect(st.SelectList, vmA, nil, []string{"name", "age"}, nil, lr)
	if err != nil {
		t.Fatalf("RewriteSelect: %v", err)
	}
	if !res.HasAggregate {
		t.Fatalf("expected HasAggregate")
	}
	if res.Items[1].Agg != AggCount || !res.Items[1].AggDistinct {
		t.Fatalf("expected COUNT DISTINCT, got %+v", res.Items[1])
	}
	if res.Items[2].Agg != AggSum {
		t.Fatalf("expected SUM, got %+v", res.Items[2])
	}
}

func TestRewriteSelectUnnestKeepsPosition(t *testing.T) {
	st, lr := mustPrep(t, `SELECT a1, UNNEST(a2.split(","))`)
	vmA, err := resolve.Resolve("a", st.SelectList, nil, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := RewriteSelect(st.SelectList, vmA, nil, nil, nil, lr)
	if err != nil {
		t.Fatalf("RewriteSelect: %v", err)
	}
	if res.UnnestIndex != 1 {
		t.Fatalf("expected UnnestIndex 1, got %d", res.UnnestIndex)
	}
	if res.Items[1].Info.ColumnName != "col2" {
		t.Fatalf("expected fallback name col2 for the second item, got %q", res.Items[1].Info.ColumnName)
	}
}

func TestRewriteWhere(t *testing.T) {
	st, lr := mustPrep(t, `SELECT a1 WHERE a2 > 10 and a1 == "x"`)
	header := []string{"name", "age"}
	vmA, err := resolve.Resolve("a", st.SelectList+" "+st.Where, header, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	n, err := RewriteWhere(st.Where, vmA, nil, lr)
	if err != nil {
		t.Fatalf("RewriteWhere: %v", err)
	}
	if n == nil {
		t.Fatalf("expected non-nil WHERE expression")
	}
}

func TestRewriteJoinNormalizesDirection(t *testing.T) {
	st, lr := mustPrep(t, "SELECT a1 JOIN B.txt ON b.id == a.id")
	headerA := []string{"id", "name"}
	headerB := []string{"id", "score"}
	text := st.SelectList + " " + st.Join.OnRaw
	vmA, err := resolve.Resolve("a", text, headerA, lr)
	if err != nil {
		t.Fatalf("Resolve a: %v", err)
	}
	vmB, err := resolve.Resolve("b", text, headerB, lr)
	if err != nil {
		t.Fatalf("Resolve b: %v", err)
	}
	pairs, err := RewriteJoin(st.Join.OnRaw, vmA, vmB, lr)
	if err != nil {
		t.Fatalf("RewriteJoin: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 key pair, got %d", len(pairs))
	}
	lhs, ok := pairs[0].LHS.(*hostexpr.ColumnRef)
	if !ok || lhs.Table != "a" {
		t.Fatalf("expected LHS to be normalized to table a, got %+v", pairs[0].LHS)
	}
	rhs, ok := pairs[0].RHS.(*hostexpr.ColumnRef)
	if !ok || rhs.Table != "b" {
		t.Fatalf("expected RHS to be normalized to table b, got %+v", pairs[0].RHS)
	}
}

func TestRewriteUpdate(t *testing.T) {
	st, lr := mustPrep(t, `UPDATE SET a1 = a1 + 1, a.name = "bob"`)
	header := []string{"age", "name"}
	vmA, err := resolve.Resolve("a", st.UpdateSet, header, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assigns, err := RewriteUpdate(st.UpdateSet, vmA, nil, lr)
	if err != nil {
		t.Fatalf("RewriteUpdate: %v", err)
	}
	if len(assigns) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assigns))
	}
	if assigns[0].TargetIndex != 0 || assigns[1].TargetIndex != 1 {
		t.Fatalf("unexpected target indices: %+v", assigns)
	}
}

func TestRewriteExceptProjectsRemainingColumns(t *testing.T) {
	st, lr := mustPrep(t, "SELECT EXCEPT(a2)")
	header := []string{"name", "age", "city"}
	vmA, err := resolve.Resolve("a", st.SelectList, header, lr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := RewriteSelect(st.SelectList, vmA, nil, header, nil, lr)
	if err != nil {
		t.Fatalf("RewriteSelect: %v", err)
	}
	if len(res.Items) != 1 || !res.Items[0].IsExcept {
		t.Fatalf("expected a single EXCEPT item, got %+v", res.Items)
	}
	if !res.Items[0].ExceptIndices[1] || len(res.Items[0].ExceptIndices) != 1 {
		t.Fatalf("expected only index 1 excluded, got %+v", res.Items[0].ExceptIndices)
	}
}
