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

package agg

import (
	"testing"

	"github.com/rbql-go/rbql/value"
)

func finalOf(t *testing.T, a Aggregator) value.Value {
	t.Helper()
	v, err := a.Final()
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	return v
}

func TestCountAndCountStar(t *testing.T) {
	c := New(Count, false, ",")
	for i := 0; i < 3; i++ {
		if err := c.Increment(value.FromInt(1)); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if v := finalOf(t, c); v.I != 3 {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestCountDistinct(t *testing.T) {
	c := New(Count, true, ",")
	for _, s := range []string{"x", "x", "y"} {
		if err := c.Increment(value.FromText(s)); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if v := finalOf(t, c); v.I != 2 {
		t.Fatalf("expected 2 distinct, got %v", v)
	}
}

func TestSumSkipsNullsAndLiftsToFloat(t *testing.T) {
	s := New(Sum, false, ",")
	for _, v := range []value.Value{value.FromInt(1), value.NullValue(), value.FromFloat(2.5)} {
		if err := s.Increment(v); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	got := finalOf(t, s)
	if got.K != value.Float || got.F != 3.5 {
		t.Fatalf("expected float 3.5, got %+v", got)
	}
}

func TestMinMax(t *testing.T) {
	mn := New(Min, false, ",")
	mx := New(Max, false, ",")
	for _, v := range []value.Value{value.FromInt(5), value.FromInt(1), value.FromInt(3)} {
		mn.Increment(v)
		mx.Increment(v)
	}
	if got := finalOf(t, mn); got.I != 1 {
		t.Fatalf("expected min 1, got %v", got)
	}
	if got := finalOf(t, mx); got.I != 5 {
		t.Fatalf("expected max 5, got %v", got)
	}
}

func TestAvgAndVariance(t *testing.T) {
	a := New(Avg, false, ",")
	v := New(Variance, false, ",")
	for _, x := range []int64{1, 2, 3} {
		a.Increment(value.FromInt(x))
		v.Increment(value.FromInt(x))
	}
	if got := finalOf(t, a); got.F != 2 {
		t.Fatalf("expected avg 2, got %v", got)
	}
	if got := finalOf(t, v); got.F != 2.0/3.0 {
		t.Fatalf("expected variance 2/3, got %v", got)
	}
}

func TestMedianOddAndEven(t *testing.T) {
	odd := New(Median, false, ",")
	for _, x := range []int64{3, 1, 2} {
		odd.Increment(value.FromInt(x))
	}
	if got := finalOf(t, odd); got.F != 2 {
		t.Fatalf("expected median 2, got %v", got)
	}

	even := New(Median, false, ",")
	for _, x := range []int64{1, 2, 3, 4} {
		even.Increment(value.FromInt(x))
	}
	if got := finalOf(t, even); got.F != 2.5 {
		t.Fatalf("expected median 2.5, got %v", got)
	}
}

func TestSubkeyCheckerRaisesOnDivergence(t *testing.T) {
	s := New(Subkey, false, ",")
	if err := s.Increment(value.FromText("x")); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := s.Increment(value.FromText("x")); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := s.Increment(value.FromText("y")); err == nil {
		t.Fatalf("expected GROUP_BY_VIOLATION error")
	}
}

func TestGroupTableSortedEmission(t *testing.T) {
	gt := NewGroupTable(func() []Aggregator { return []Aggregator{New(Count, false, ",")} })
	rows := []struct {
		key string
		v   int64
	}{
		{"y", 1}, {"x", 1}, {"y", 1}, {"x", 1}, {"y", 1},
	}
	for _, r := range rows {
		err := gt.Increment([]value.Value{value.FromText(r.key)}, []value.Value{value.FromInt(r.v)})
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	out, err := gt.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out))
	}
	if out[0].Values[0].I != 2 || out[1].Values[0].I != 3 {
		t.Fatalf("unexpected counts: %+v", out)
	}
}
