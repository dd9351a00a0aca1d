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

package writer

import (
	"testing"

	"github.com/rbql-go/rbql/agg"
	"github.com/rbql-go/rbql/value"
)

type collectSink struct {
	rows   []value.Record
	header []string
}

func (c *collectSink) Write(rec value.Record) (bool, error) {
	c.rows = append(c.rows, rec)
	return true, nil
}
func (c *collectSink) SetHeader(h []string) { c.header = h }
func (c *collectSink) Finish() error         { return nil }

func rec(vs ...any) value.Record {
	r := make(value.Record, len(vs))
	for i, v := range vs {
		r[i] = value.FromAny(v)
	}
	return r
}

func TestComposePlainPassthrough(t *testing.T) {
	sink := &collectSink{}
	st, err := Compose(sink, Options{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, r := range []value.Record{rec("a", 1), rec("b", 2)} {
		if _, err := st.WriteRow(r, value.Value{}, nil, nil); err != nil {
			t.Fatalf("WriteRow: %v", err)
		}
	}
	if err := st.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(sink.rows))
	}
}

func TestComposeLimitStopsEarly(t *testing.T) {
	n := uint64(2)
	sink := &collectSink{}
	st, err := Compose(sink, Options{TopCount: &n})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for i := 0; i < 5; i++ {
		ok, err := st.WriteRow(rec(i), value.Value{}, nil, nil)
		if err != nil {
			t.Fatalf("WriteRow: %v", err)
		}
		if !ok {
			break
		}
	}
	st.Finish()
	if len(sink.rows) != 2 {
		t.Fatalf("expected limit to cap at 2 rows, got %d", len(sink.rows))
	}
}

func TestComposeDistinctDedupes(t *testing.T) {
	sink := &collectSink{}
	st, _ := Compose(sink, Options{Distinct: true})
	rows := []value.Record{rec("x", 1), rec("x", 1), rec("y", 2)}
	for _, r := range rows {
		st.WriteRow(r, value.Value{}, nil, nil)
	}
	st.Finish()
	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", len(sink.rows))
	}
}

func TestComposeUniqCountPrefixesCount(t *testing.T) {
	sink := &collectSink{}
	st, _ := Compose(sink, Options{DistinctCount: true})
	rows := []value.Record{rec("x"), rec("x"), rec("y")}
	for _, r := range rows {
		st.WriteRow(r, value.Value{}, nil, nil)
	}
	st.Finish()
	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", len(sink.rows))
	}
	if sink.rows[0][0].I != 2 || sink.rows[1][0].I != 1 {
		t.Fatalf("unexpected counts: %+v", sink.rows)
	}
}

func TestComposeSortDescending(t *testing.T) {
	sink := &collectSink{}
	st, _ := Compose(sink, Options{HasOrderBy: true, OrderDesc: true})
	rows := []struct {
		r value.Record
		k value.Value
	}{
		{rec("a"), value.FromInt(1)},
		{rec("b"), value.FromInt(3)},
		{rec("c"), value.FromInt(2)},
	}
	for _, x := range rows {
		st.WriteRow(x.r, x.k, nil, nil)
	}
	st.Finish()
	got := []string{sink.rows[0][0].S, sink.rows[1][0].S, sink.rows[2][0].S}
	if got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Fatalf("expected descending order b,c,a; got %v", got)
	}
}

func TestComposeAggregate(t *testing.T) {
	sink := &collectSink{}
	st, err := Compose(sink, Options{
		Aggregate:    true,
		SlotKinds:    []agg.Kind{agg.Subkey, agg.Count},
		SlotDistinct: []bool{false, false},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	data := []struct {
		key string
		v   int64
	}{{"x", 1}, {"x", 1}, {"y", 1}}
	for _, d := range data {
		_, err := st.WriteRow(nil, value.Value{}, []value.Value{value.FromText(d.key)}, []value.Value{value.FromText(d.key), value.FromInt(d.v)})
		if err != nil {
			t.Fatalf("WriteRow: %v", err)
		}
	}
	if err := st.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(sink.rows))
	}
	if sink.rows[0][0].S != "x" || sink.rows[0][1].I != 2 {
		t.Fatalf("unexpected group x: %+v", sink.rows[0])
	}
	if sink.rows[1][0].S != "y" || sink.rows[1][1].I != 1 {
		t.Fatalf("unexpected group y: %+v", sink.rows[1])
	}
}
