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

// Package writer implements the chain-of-responsibility output
// stack: each stage wraps an inner Writer and the two-method contract
// (Write/Finish) is the only thing a stage needs to know about its
// neighbor.
package writer

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slices"

	"github.com/rbql-go/rbql/agg"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
)

// Writer is the common contract every stage of the output stack
// implements, specialized to the in-process Record form rather than
// the host-facing bytes.
type Writer interface {
	// Write pushes one record downstream. A false return means the
	// producer should stop calling Write.
	Write(rec value.Record) (bool, error)
	// Finish flushes any buffered state (Sort, Aggregate) and
	// finalizes the chain in top-down order.
	Finish() error
}

// Sink adapts a host-supplied terminal consumer (package source's
// Sink) into the Writer chain; it is always stage 1 of Compose.
type Sink interface {
	Write(rec value.Record) (bool, error)
	SetHeader(header []string)
	Finish() error
}

type sinkWriter struct{ sink Sink }

func (w *sinkWriter) Write(rec value.Record) (bool, error) { return w.sink.Write(rec) }
func (w *sinkWriter) Finish() error                         { return w.sink.Finish() }

// Limit stops accepting rows after N have been written.
type Limit struct {
	Inner Writer
	N     uint64
	count uint64
}

func (l *Limit) Write(rec value.Record) (bool, error) {
	if l.count >= l.N {
		return false, nil
	}
	ok, err := l.Inner.Write(rec)
	if err != nil {
		return false, err
	}
	l.count++
	return ok && l.count < l.N, nil
}

func (l *Limit) Finish() error { return l.Inner.Finish() }

// Distinct dedupes on full-row tuple equality, fingerprinted with
// BLAKE2b; first-seen order is preserved since rows are forwarded
// immediately rather than buffered.
type Distinct struct {
	Inner Writer
	seen  map[[32]byte]bool
}

func NewDistinct(inner Writer) *Distinct {
	return &Distinct{Inner: inner, seen: map[[32]byte]bool{}}
}

func rowFingerprint(rec value.Record) [32]byte {
	return blake2b.Sum256([]byte(value.KeyTuple(rec)))
}

func (d *Distinct) Write(rec value.Record) (bool, error) {
	fp := rowFingerprint(rec)
	if d.seen[fp] {
		return true, nil
	}
	d.seen[fp] = true
	return d.Inner.Write(rec)
}

func (d *Distinct) Finish() error { return d.Inner.Finish() }

// UniqCount groups by full-row tuple, preserving first-seen order,
// and on Finish emits each distinct row prefixed with its occurrence
// count.
type UniqCount struct {
	Inner  Writer
	counts map[[32]byte]int64
	order  []value.Record
	seen   map[[32]byte]bool
}

func NewUniqCount(inner Writer) *UniqCount {
	return &UniqCount{Inner: inner, counts: map[[32]byte]int64{}, seen: map[[32]byte]bool{}}
}

func (u *UniqCount) Write(rec value.Record) (bool, error) {
	fp := rowFingerprint(rec)
	u.counts[fp]++
	if !u.seen[fp] {
		u.seen[fp] = true
		u.order = append(u.order, rec)
	}
	return true, nil
}

func (u *UniqCount) Finish() error {
	for _, rec := range u.order {
		fp := rowFingerprint(rec)
		out := make(value.Record, 0, len(rec)+1)
		out = append(out, value.FromInt(u.counts[fp]))
		out = append(out, rec...)
		ok, err := u.Inner.Write(out)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return u.Inner.Finish()
}

// sortEntry pairs a buffered row with its computed sort key and
// discovery order for the stable tie-break.
type sortEntry struct {
	key   value.Value
	rec   value.Record
	index int
}

// Sort buffers every row and sorts on Finish; reverse flips
// ascending to descending, and ties fall back to first-seen order.
type Sort struct {
	Inner   Writer
	Reverse bool
	rows    []sortEntry
}

func NewSort(inner Writer, reverse bool) *Sort {
	return &Sort{Inner: inner, Reverse: reverse}
}

func (s *Sort) Write(rec value.Record, key value.Value) (bool, error) {
	s.rows = append(s.rows, sortEntry{key: key, rec: rec, index: len(s.rows)})
	return true, nil
}

func (s *Sort) Finish() error {
	slices.SortStableFunc(s.rows, func(a, b sortEntry) bool {
		c := value.Compare(a.key, b.key)
		if c == 0 {
			return a.index < b.index
		}
		if s.Reverse {
			return c > 0
		}
		return c < 0
	})
	for _, e := range s.rows {
		ok, err := s.Inner.Write(e.rec)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return s.Inner.Finish()
}

// Aggregate wraps agg.GroupTable. Write receives the
// already-evaluated group key and
// the per-slot projected values (aggregator markers have already been
// resolved to real values by the caller in package exec); slotKinds
// and slotDistinct describe each projected column's aggregator
// (Subkey for a plain, non-aggregate column).
type Aggregate struct {
	Inner     Writer
	slotKinds []agg.Kind
	slotDist  []bool
	table     *agg.GroupTable
}

// NewAggregate builds the Aggregate stage. slotSep supplies the FOLD
// join separator for each slot (ignored by every other kind); pass ""
// for slots that aren't FOLD.
func NewAggregate(inner Writer, slotKinds []agg.Kind, slotDistinct []bool, slotSep []string) *Aggregate {
	a := &Aggregate{Inner: inner, slotKinds: slotKinds, slotDist: slotDistinct}
	a.table = agg.NewGroupTable(func() []agg.Aggregator {
		out := make([]agg.Aggregator, len(slotKinds))
		for i, k := range slotKinds {
			sep := ""
			if i < len(slotSep) {
				sep = slotSep[i]
			}
			out[i] = agg.New(k, slotDistinct[i], sep)
		}
		return out
	})
	return a
}

func (a *Aggregate) Write(groupKey []value.Value, slotValues []value.Value) error {
	return a.table.Increment(groupKey, slotValues)
}

func (a *Aggregate) Finish() error {
	emissions, err := a.table.Finish()
	if err != nil {
		return err
	}
	for _, e := range emissions {
		ok, err := a.Inner.Write(value.Record(e.Values))
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return a.Inner.Finish()
}

// Stack is the fully composed writer chain plus handles to whichever
// special stages (Sort, Aggregate) need a richer Write signature than
// the plain Writer interface offers; the executor routes differently
// depending on which stage is present.
type Stack struct {
	Head      Writer // the plain-Write entry point (nil if Sort/Aggregate present)
	SortStage *Sort
	AggStage  *Aggregate
}

// Options configures Compose; it mirrors the query-level flags
// compile.Plan carries.
type Options struct {
	TopCount      *uint64
	Distinct      bool
	DistinctCount bool
	HasOrderBy    bool
	OrderDesc     bool
	Aggregate     bool
	SlotKinds     []agg.Kind
	SlotDistinct  []bool
	SlotSep       []string
}

// Compose builds the writer stack bottom-up: terminal sink, then
// LIMIT, then (Aggregate xor Distinct/UniqCount), then Sort wrapping
// whatever remains. Aggregate is mutually
// exclusive with ORDER BY/DISTINCT (compile already rejects that
// combination, so Compose does not need to).
func Compose(sink Sink, opt Options) (*Stack, error) {
	var w Writer = &sinkWriter{sink: sink}

	if opt.TopCount != nil {
		w = &Limit{Inner: w, N: *opt.TopCount}
	}

	st := &Stack{}

	switch {
	case opt.Aggregate:
		st.AggStage = NewAggregate(w, opt.SlotKinds, opt.SlotDistinct, opt.SlotSep)
		return st, nil
	case opt.DistinctCount:
		// DISTINCT COUNT implies DISTINCT at the clause level, so this
		// case must win over the plain Distinct one below.
		w = NewUniqCount(w)
	case opt.Distinct:
		w = NewDistinct(w)
	}

	if opt.HasOrderBy {
		st.SortStage = NewSort(w, opt.OrderDesc)
		return st, nil
	}

	st.Head = w
	return st, nil
}

// WriteRow routes one row through whichever stage is active. sortKey
// is used only when SortStage is set; groupKey/slotValues only when
// AggStage is set.
func (s *Stack) WriteRow(rec value.Record, sortKey value.Value, groupKey []value.Value, slotValues []value.Value) (bool, error) {
	switch {
	case s.AggStage != nil:
		return true, s.AggStage.Write(groupKey, slotValues)
	case s.SortStage != nil:
		return s.SortStage.Write(rec, sortKey)
	case s.Head != nil:
		return s.Head.Write(rec)
	default:
		return false, rerr.Runtimef(0, "writer stack not composed")
	}
}

// Finish finalizes whichever stage is active.
func (s *Stack) Finish() error {
	switch {
	case s.AggStage != nil:
		return s.AggStage.Finish()
	case s.SortStage != nil:
		return s.SortStage.Finish()
	case s.Head != nil:
		return s.Head.Finish()
	default:
		return nil
	}
}
