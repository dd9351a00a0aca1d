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

package join

import (
	"testing"

	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/value"
)

// sliceSource adapts a fixed slice of records to RecordSource.
type sliceSource struct {
	rows []value.Record
	pos  int
}

func (s *sliceSource) Next() (value.Record, error) {
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func b1Key() []hostexpr.Node {
	return []hostexpr.Node{&hostexpr.ColumnRef{Table: "b", Index: 0, Safe: false}}
}

func keyOf(s string) []value.Value { return []value.Value{value.FromText(s)} }

func TestInnerJoinMatchesAndDrops(t *testing.T) {
	src := &sliceSource{rows: []value.Record{
		{value.FromText("China"), value.FromInt(1386)},
		{value.FromText("France"), value.FromInt(67)},
	}}
	ix := New(Inner, b1Key(), src, nil)

	got, err := ix.GetRHS(keyOf("France"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 match, got %v err %v", got, err)
	}
	got, err = ix.GetRHS(keyOf("Russia"))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no match for missing key, got %v err %v", got, err)
	}
}

func TestLeftJoinNullPads(t *testing.T) {
	src := &sliceSource{rows: []value.Record{
		{value.FromText("X"), value.FromText("foo")},
	}}
	ix := New(Left, b1Key(), src, nil)

	got, err := ix.GetRHS(keyOf("X"))
	if err != nil || len(got) != 1 || got[0].Record[1].S != "foo" {
		t.Fatalf("expected match row, got %v err %v", got, err)
	}
	got, err = ix.GetRHS(keyOf("Y"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one null-padded row, got %v err %v", got, err)
	}
	if len(got[0].Record) != 2 || !got[0].Record[0].IsNull() || !got[0].Record[1].IsNull() {
		t.Fatalf("expected an all-null placeholder row, got %+v", got[0].Record)
	}
}

func TestStrictLeftJoinFailsOnAmbiguity(t *testing.T) {
	src := &sliceSource{rows: []value.Record{
		{value.FromText("X"), value.FromInt(1)},
		{value.FromText("X"), value.FromInt(2)},
	}}
	ix := New(StrictLeft, b1Key(), src, nil)
	if _, err := ix.GetRHS(keyOf("X")); err == nil {
		t.Fatalf("expected JOIN_STRICT_AMBIGUOUS error")
	}

	src2 := &sliceSource{rows: []value.Record{
		{value.FromText("X"), value.FromInt(1)},
	}}
	ix2 := New(StrictLeft, b1Key(), src2, nil)
	got, err := ix2.GetRHS(keyOf("X"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected single match, got %v err %v", got, err)
	}
	if _, err := ix2.GetRHS(keyOf("Y")); err == nil {
		t.Fatalf("expected JOIN_STRICT_AMBIGUOUS on zero matches")
	}
}

func TestAntiJoin(t *testing.T) {
	src := &sliceSource{rows: []value.Record{
		{value.FromText("X")},
	}}
	ix := New(Anti, b1Key(), src, nil)

	got, err := ix.GetRHS(keyOf("Y"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one empty match for unmatched key, got %v err %v", got, err)
	}
	got, err = ix.GetRHS(keyOf("X"))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no rows for a matched key, got %v err %v", got, err)
	}
}

func TestNullKeyNeverMatches(t *testing.T) {
	src := &sliceSource{rows: []value.Record{
		{value.NullValue()},
		{value.FromText("X")},
	}}
	ix := New(Inner, b1Key(), src, nil)
	got, err := ix.GetRHS(keyOf("X"))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 match, got %v err %v", got, err)
	}
}

func TestNoneStrategyYieldsSingleEmptyMatch(t *testing.T) {
	ix := New(None, nil, nil, nil)
	got, err := ix.GetRHS(nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected exactly one empty match, got %v err %v", got, err)
	}
}
