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

// Package agg implements the aggregator state machines
// (MIN/MAX/SUM/COUNT/COUNT DISTINCT/AVG/VARIANCE/MEDIAN/ARRAY_AGG/
// FOLD/SUBKEY_CHECKER) and the GroupTable that drives them per group
// key.
package agg

import (
	"sort"

	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Aggregator is one running aggregate computation for a single group
// key.
type Aggregator interface {
	Increment(v value.Value) error
	Final() (value.Value, error)
}

// New constructs a fresh Aggregator instance for kind. distinct only
// applies to COUNT. sep is the join separator ARRAY_AGG/FOLD uses on
// Final; ARRAY_AGG always joins with ",", so sep only matters for
// Fold.
func New(kind Kind, distinct bool, sep string) Aggregator {
	switch kind {
	case Min:
		return &minMax{wantMax: false}
	case Max:
		return &minMax{wantMax: true}
	case Sum:
		return &sum{}
	case Count:
		if distinct {
			return &countDistinct{seen: map[string]bool{}}
		}
		return &count{}
	case Avg:
		return &avg{}
	case Variance:
		return &variance{}
	case Median:
		return &median{}
	case ArrayAgg:
		return &arrayAgg{sep: ","}
	case Fold:
		return &arrayAgg{sep: sep}
	default:
		return &subkeyChecker{}
	}
}

// Kind names an aggregator variant; mirrors rewrite.AggKind but lives
// in this package so agg doesn't import rewrite (which already
// imports hostexpr, and would otherwise create a cycle through exec).
type Kind string

const (
	Min      Kind = "MIN"
	Max      Kind = "MAX"
	Sum      Kind = "SUM"
	Count    Kind = "COUNT"
	Avg      Kind = "AVG"
	Variance Kind = "VARIANCE"
	Median   Kind = "MEDIAN"
	ArrayAgg Kind = "ARRAY_AGG"
	Fold     Kind = "FOLD"
	Subkey   Kind = "SUBKEY"
)

// minMax implements both MIN and MAX: numeric-typed running best,
// lifted to float on a mixed int/float comparison.
type minMax struct {
	wantMax bool
	has     bool
	best    value.Value
}

func (m *minMax) Increment(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !m.has {
		m.best, m.has = v, true
		return nil
	}
	c := value.Compare(m.best, v)
	if (m.wantMax && c < 0) || (!m.wantMax && c > 0) {
		m.best = v
	}
	return nil
}

func (m *minMax) Final() (value.Value, error) {
	if !m.has {
		return value.NullValue(), nil
	}
	return m.best, nil
}

// sum is a running numeric accumulator; mixed int/float lifts to
// float, matching MIN/MAX's lifting rule.
type sum struct {
	isFloat bool
	i       int64
	f       float64
}

func (s *sum) Increment(v value.Value) error {
	switch v.K {
	case value.Int:
		if s.isFloat {
			s.f += float64(v.I)
		} else {
			s.i += v.I
		}
	case value.Float:
		if !s.isFloat {
			s.f = float64(s.i)
			s.isFloat = true
		}
		s.f += v.F
	case value.Null:
		// SUM skips nulls.
	default:
		return rerr.Runtimef(0, "SUM() requires a numeric value, got %q", v.String())
	}
	return nil
}

func (s *sum) Final() (value.Value, error) {
	if s.isFloat {
		return value.FromFloat(s.f), nil
	}
	return value.FromInt(s.i), nil
}

// count implements COUNT(*)/COUNT(x): every non-null increment bumps
// the counter; COUNT(*) is rewritten to an always-present literal so
// every row counts.
type count struct {
	n int64
}

func (c *count) Increment(v value.Value) error {
	if !v.IsNull() {
		c.n++
	}
	return nil
}

func (c *count) Final() (value.Value, error) { return value.FromInt(c.n), nil }

// countDistinct implements COUNT(DISTINCT x).
type countDistinct struct {
	seen map[string]bool
}

func (c *countDistinct) Increment(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	c.seen[value.KeyTuple([]value.Value{v})] = true
	return nil
}

func (c *countDistinct) Final() (value.Value, error) {
	return value.FromInt(int64(len(c.seen))), nil
}

// avg accumulates (sum, count) as floats; final = sum/count.
type avg struct {
	sum   float64
	count int64
}

func (a *avg) Increment(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	f, err := value.AsFloat(v)
	if err != nil {
		return err
	}
	a.sum += f
	a.count++
	return nil
}

func (a *avg) Final() (value.Value, error) {
	if a.count == 0 {
		return value.NullValue(), nil
	}
	return value.FromFloat(a.sum / float64(a.count)), nil
}

// variance accumulates (sum, sum-of-squares, count); final = E[x^2] -
// E[x]^2.
type variance struct {
	sum   float64
	sumSq float64
	count int64
}

func (v *variance) Increment(x value.Value) error {
	if x.IsNull() {
		return nil
	}
	f, err := value.AsFloat(x)
	if err != nil {
		return err
	}
	v.sum += f
	v.sumSq += f * f
	v.count++
	return nil
}

func (v *variance) Final() (value.Value, error) {
	if v.count == 0 {
		return value.NullValue(), nil
	}
	n := float64(v.count)
	// E[x^2] - E[x]^2 computed as (sumSq - sum^2/n) / n, dividing
	// once at the end so exact inputs keep an exact result.
	return value.FromFloat((v.sumSq - v.sum*v.sum/n) / n), nil
}

// median buffers every non-null value and sorts on Final; even-sized
// groups average the middle two.
type median struct {
	vals []float64
}

func (m *median) Increment(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	f, err := value.AsFloat(v)
	if err != nil {
		return err
	}
	m.vals = append(m.vals, f)
	return nil
}

func (m *median) Final() (value.Value, error) {
	n := len(m.vals)
	if n == 0 {
		return value.NullValue(), nil
	}
	sorted := append([]float64(nil), m.vals...)
	sort.Float64s(sorted)
	mid := n / 2
	if n%2 == 1 {
		return value.FromFloat(sorted[mid]), nil
	}
	return value.FromFloat((sorted[mid-1] + sorted[mid]) / 2), nil
}

// arrayAgg buffers every value in arrival order and joins them with
// sep on Final; FOLD's post-processor expression is evaluated once by
// the caller (it names a separator, not a per-row transform) and
// threaded in as sep.
type arrayAgg struct {
	sep  string
	vals []value.Value
}

func (a *arrayAgg) Increment(v value.Value) error {
	a.vals = append(a.vals, v)
	return nil
}

func (a *arrayAgg) Final() (value.Value, error) {
	out := make([]string, len(a.vals))
	for i, v := range a.vals {
		out[i] = v.String()
	}
	return value.FromText(joinStrings(out, a.sep)), nil
}

// Values exposes the buffered list so a FOLD post-processor can
// iterate the raw values rather than their stringified Final form.
func (a *arrayAgg) Values() []value.Value { return a.vals }

func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += sep + s
	}
	return out
}

// subkeyChecker is the implicit aggregator attached to every
// projected column that isn't itself an aggregate call in a grouped
// query: it requires every row in the group to agree on that column's
// value.
type subkeyChecker struct {
	has   bool
	first value.Value
}

func (s *subkeyChecker) Increment(v value.Value) error {
	if !s.has {
		s.first, s.has = v, true
		return nil
	}
	if !value.Equal(s.first, v) {
		return rerr.Runtimef(0, "GROUP_BY_VIOLATION: group disagrees on a non-grouped column (%q vs %q)", s.first.String(), v.String())
	}
	return nil
}

func (s *subkeyChecker) Final() (value.Value, error) {
	if !s.has {
		return value.NullValue(), nil
	}
	return s.first, nil
}

// GroupTable drives one Aggregator per projected slot per group key.
// Keys are rendered with value.KeyTuple and emitted in sorted order
// on Finish, so group emission is lexicographic on the key tuple.
type GroupTable struct {
	newSlot func() []Aggregator
	groups  map[string][]Aggregator
}

// NewGroupTable builds a table whose per-group state is one
// Aggregator per slot, produced fresh by newSlot for every new key.
func NewGroupTable(newSlot func() []Aggregator) *GroupTable {
	return &GroupTable{newSlot: newSlot, groups: map[string][]Aggregator{}}
}

// Increment feeds one row's projected values into the group named by
// key.
func (g *GroupTable) Increment(key []value.Value, values []value.Value) error {
	k := value.KeyTuple(key)
	slot, ok := g.groups[k]
	if !ok {
		slot = g.newSlot()
		g.groups[k] = slot
	}
	for i, v := range values {
		if i >= len(slot) {
			break
		}
		if err := slot[i].Increment(v); err != nil {
			return err
		}
	}
	return nil
}

// Emission is one finalized group: its key's canonical encoding (for
// ordering) plus the per-slot final values.
type Emission struct {
	Key    string
	Values []value.Value
}

// Finish finalizes every group and returns them in sorted key
// order.
func (g *GroupTable) Finish() ([]Emission, error) {
	keys := maps.Keys(g.groups)
	slices.Sort(keys)

	out := make([]Emission, 0, len(keys))
	for _, k := range keys {
		slot := g.groups[k]
		vals := make([]value.Value, len(slot))
		for i, a := range slot {
			v, err := a.Final()
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		out = append(out, Emission{Key: k, Values: vals})
	}
	return out, nil
}
