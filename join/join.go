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

// Package join implements the lazy hash join index and the five join
// strategies. The index is built on first demand by
// draining the RHS record source to exhaustion; after that every
// GetRHS call is a map lookup.
package join

import (
	"github.com/dchest/siphash"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
)

// Strategy names one of the five join behaviors. None is the no-JOIN
// case: the main loop still routes through
// the index so the executor has one code path regardless of whether
// a JOIN clause was present.
type Strategy int

const (
	None Strategy = iota
	Inner
	Left
	StrictLeft
	Anti
)

// Match is one right-hand-side row discovered while building the
// index, tagged with the input position it was read at.
type Match struct {
	NR     int64
	NF     int64
	Record value.Record
}

// RecordSource is the minimal pull contract the index needs over the
// join table; package source's Source satisfies it.
type RecordSource interface {
	Next() (value.Record, error)
}

// bucketGroup holds every distinct key tuple that hashes into the
// same slot, each with its own ordered match list. Almost always a
// single entry; a second only appears on a genuine 128-bit siphash
// collision, at which point the stored key is used to tell the
// groups apart instead of trusting the hash alone.
type bucketGroup struct {
	key     string
	matches []Match
}

// RHSIndex is a hash map from join-key tuple to the ordered bucket of
// RHS rows sharing that key. It is built lazily, on the first GetRHS
// call; the None strategy never builds it.
type RHSIndex struct {
	strategy Strategy
	keys     []hostexpr.Node // RHS side of each key pair, evaluated against table b
	src      RecordSource
	funcs    map[string]hostexpr.Func

	built        bool
	buckets      map[uint64][]bucketGroup
	maxRecordLen int
}

// New constructs an index over src using the RHS halves of keys.
// Building is deferred until the first GetRHS call.
func New(strategy Strategy, keys []hostexpr.Node, src RecordSource, funcs map[string]hostexpr.Func) *RHSIndex {
	return &RHSIndex{strategy: strategy, keys: keys, src: src, funcs: funcs}
}

const siphashKey0, siphashKey1 = 0x5253514c5f4a4f49, 0x4e5f696e6465785f

// bucketKey hashes the canonical key-tuple encoding with the full
// 128-bit siphash digest; the low word selects the map slot, and the
// complete encoded string is stored alongside each match group so a
// digest collision can never merge two distinct key tuples.
func bucketKey(vs []value.Value) (slot uint64, key string) {
	key = value.KeyTuple(vs)
	lo, _ := siphash.Hash128(siphashKey0, siphashKey1, []byte(key))
	return lo, key
}

// build drains src to exhaustion, computing each row's key tuple from
// the RHS key expressions. A key tuple containing any null never
// matches, so such rows are read (to keep MaxRecordLen and iterator
// exhaustion intact) but not indexed.
func (ix *RHSIndex) build() error {
	ix.buckets = make(map[uint64][]bucketGroup)
	var nr int64
	for {
		rec, err := ix.src.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		nr++
		if len(rec) > ix.maxRecordLen {
			ix.maxRecordLen = len(rec)
		}
		keyVals, hasNull, err := ix.evalKey(rec)
		if err != nil {
			return err
		}
		if hasNull {
			continue
		}
		slot, key := bucketKey(keyVals)
		match := Match{NR: nr, NF: int64(len(rec)), Record: rec}
		groups := ix.buckets[slot]
		found := false
		for i := range groups {
			if groups[i].key == key {
				groups[i].matches = append(groups[i].matches, match)
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, bucketGroup{key: key, matches: []Match{match}})
		}
		ix.buckets[slot] = groups
	}
	ix.built = true
	return nil
}

func (ix *RHSIndex) evalKey(rec value.Record) (vals []value.Value, hasNull bool, err error) {
	ctx := &hostexpr.EvalContext{B: rec, Funcs: ix.funcs}
	vals = make([]value.Value, len(ix.keys))
	for i, k := range ix.keys {
		v, err := hostexpr.Eval(k, ctx)
		if err != nil {
			return nil, false, err
		}
		if v.IsNull() {
			hasNull = true
		}
		vals[i] = v
	}
	return vals, hasNull, nil
}

// GetRHS returns the matches for a left-hand key tuple (already
// evaluated against the input record), one behavior per strategy.
// The returned slice must not be mutated.
func (ix *RHSIndex) GetRHS(lhsKey []value.Value) ([]Match, error) {
	if ix.strategy == None {
		return []Match{{}}, nil
	}
	if !ix.built {
		if err := ix.build(); err != nil {
			return nil, err
		}
	}
	slot, key := bucketKey(lhsKey)
	var bucket []Match
	for _, g := range ix.buckets[slot] {
		if g.key == key {
			bucket = g.matches
			break
		}
	}

	switch ix.strategy {
	case Inner:
		return bucket, nil
	case Left:
		if len(bucket) == 0 {
			return []Match{{Record: make(value.Record, ix.maxRecordLen)}}, nil
		}
		return bucket, nil
	case StrictLeft:
		if len(bucket) != 1 {
			return nil, rerr.Runtimef(0, "JOIN_STRICT_AMBIGUOUS: expected exactly one match, found %d", len(bucket))
		}
		return bucket, nil
	case Anti:
		if len(bucket) == 0 {
			return []Match{{}}, nil
		}
		return nil, nil
	default:
		return bucket, nil
	}
}

// MaxRecordLen reports the widest RHS row seen while building the
// index; zero before the index is built. LEFT JOIN null padding uses
// this to size its placeholder row.
func (ix *RHSIndex) MaxRecordLen() int { return ix.maxRecordLen }
