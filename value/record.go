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

package value

import "github.com/rbql-go/rbql/rerr"

// Record is an ordered sequence of field values. Records produced by
// an input iterator are treated as immutable; the executor allocates
// a fresh Record per emission.
type Record []Value

// Get returns the field at the 1-based position k ("a{k}"/"b{k}").
// Field access past the end of the record fails with a runtime
// BAD_FIELD error unless accessed through SafeGet.
func (r Record) Get(k int) (Value, error) {
	idx := k - 1
	if idx < 0 || idx >= len(r) {
		return Value{}, rerr.Runtimef(0, "BAD_FIELD(%d): record has %d fields", idx, len(r))
	}
	return r[idx], nil
}

// SafeGet returns null instead of failing when k is out of range.
func (r Record) SafeGet(k int) Value {
	idx := k - 1
	if idx < 0 || idx >= len(r) {
		return NullValue()
	}
	return r[idx]
}

// Clone returns a copy of r safe for in-place mutation by UPDATE SET
// statements.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// SafeSet assigns a value at the 1-based position k, growing the
// record with nulls if necessary. Used by the compiled UPDATE SET
// statements.
func SafeSet(r Record, k int, v Value) Record {
	idx := k - 1
	if idx < 0 {
		return r
	}
	if idx >= len(r) {
		grown := make(Record, idx+1)
		copy(grown, r)
		r = grown
	}
	r[idx] = v
	return r
}

// Concat splices two records together, used to build the
// star-expansion fields (the input record followed by the join
// record).
func Concat(a, b Record) Record {
	out := make(Record, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// KeyTuple renders a slice of Values as a canonical, type-tagged byte
// encoding suitable for hashing or use as a map key (join keys,
// group-by keys, DISTINCT rows). Tagging by Kind avoids the
// int64(3)/float64(3.0)/"3" collision a naive fmt.Sprint would admit.
func KeyTuple(vs []Value) string {
	buf := make([]byte, 0, 16*len(vs))
	for _, v := range vs {
		buf = append(buf, byte(v.K), 0)
		buf = append(buf, v.String()...)
		buf = append(buf, 0)
	}
	return string(buf)
}
