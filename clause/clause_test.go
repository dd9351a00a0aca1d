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

package clause

import "testing"

func TestSplitBasicSelect(t *testing.T) {
	st, err := Split(`SELECT a1, a2 WHERE a1 == 1`)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != Select {
		t.Fatalf("expected Select kind")
	}
	if st.SelectList != "a1, a2" {
		t.Fatalf("unexpected select list: %q", st.SelectList)
	}
	if st.Where != "a1 == 1" {
		t.Fatalf("unexpected where: %q", st.Where)
	}
}

func TestSplitTopDistinct(t *testing.T) {
	st, err := Split(`SELECT TOP 10 DISTINCT COUNT a1`)
	if err != nil {
		t.Fatal(err)
	}
	if st.Top == nil || *st.Top != 10 {
		t.Fatalf("expected TOP 10, got %v", st.Top)
	}
	if !st.Distinct || !st.DistinctCount {
		t.Fatalf("expected DISTINCT COUNT")
	}
	if st.SelectList != "a1" {
		t.Fatalf("unexpected select list: %q", st.SelectList)
	}
}

func TestSplitOrderByDesc(t *testing.T) {
	st, err := Split(`SELECT * ORDER BY a2 DESC`)
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasOrderBy || st.OrderBy != "a2" || !st.OrderDesc {
		t.Fatalf("unexpected order by: %+v", st)
	}
}

func TestSplitJoinVariants(t *testing.T) {
	cases := []struct {
		q    string
		kind JoinKind
	}{
		{`SELECT a1 JOIN B ON a1 == b1`, Inner},
		{`SELECT a1 INNER JOIN B ON a1 == b1`, Inner},
		{`SELECT a1 LEFT JOIN B ON a1 == b1`, Left},
		{`SELECT a1 STRICT LEFT JOIN B ON a1 == b1`, StrictLeft},
	}
	for _, c := range cases {
		st, err := Split(c.q)
		if err != nil {
			t.Fatalf("%s: %v", c.q, err)
		}
		if st.Join == nil || st.Join.Kind != c.kind {
			t.Fatalf("%s: expected join kind %v, got %+v", c.q, c.kind, st.Join)
		}
		if st.Join.Source != "B" {
			t.Fatalf("%s: expected source B, got %q", c.q, st.Join.Source)
		}
	}
}

func TestSplitGroupByAndLimit(t *testing.T) {
	st, err := Split(`SELECT a2, COUNT(*) GROUP BY a2 LIMIT 5`)
	if err != nil {
		t.Fatal(err)
	}
	if st.GroupBy != "a2" {
		t.Fatalf("unexpected group by: %q", st.GroupBy)
	}
	if st.Limit == nil || *st.Limit != 5 {
		t.Fatalf("unexpected limit: %v", st.Limit)
	}
}

func TestSplitUpdate(t *testing.T) {
	st, err := Split(`UPDATE SET a1 = a1 + 1 WHERE a2 > 0`)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != Update {
		t.Fatalf("expected Update kind")
	}
	if st.UpdateSet != "a1 = a1 + 1" {
		t.Fatalf("unexpected update set: %q", st.UpdateSet)
	}
	if st.Where != "a2 > 0" {
		t.Fatalf("unexpected where: %q", st.Where)
	}
}

func TestSplitDuplicateClause(t *testing.T) {
	_, err := Split(`SELECT a1 WHERE a1 > 0 WHERE a2 > 0`)
	if err == nil {
		t.Fatal("expected duplicate clause error")
	}
}

func TestSplitEmptySelect(t *testing.T) {
	_, err := Split(`SELECT WHERE a1 > 0`)
	if err == nil {
		t.Fatal("expected empty SELECT error")
	}
}

func TestSplitMustStartWithSelectOrUpdate(t *testing.T) {
	_, err := Split(`FROM foo SELECT a1`)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSplitUpdateRejectsOrderBy(t *testing.T) {
	_, err := Split(`UPDATE SET a1 = 1 ORDER BY a1`)
	if err == nil {
		t.Fatal("expected error rejecting ORDER BY in UPDATE")
	}
}
