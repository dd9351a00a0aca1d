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

// Package value implements the small field sum type that every
// Record's cells are built from: text, integer, floating-point, or
// null.
package value

import (
	"fmt"
	"strconv"

	"github.com/rbql-go/rbql/rerr"
)

// Kind tags which arm of the Value union is populated.
type Kind uint8

const (
	Null Kind = iota
	Text
	Int
	Float
)

// Value is a single field of a Record. The zero Value is Null.
type Value struct {
	K Kind
	S string
	I int64
	F float64
}

func NullValue() Value        { return Value{K: Null} }
func FromText(s string) Value { return Value{K: Text, S: s} }
func FromInt(i int64) Value   { return Value{K: Int, I: i} }
func FromFloat(f float64) Value { return Value{K: Float, F: f} }

// FromAny lifts a host scalar (as produced by evaluating a rewritten
// expression snippet) into a Value.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case string:
		return FromText(x)
	case int:
		return FromInt(int64(x))
	case int64:
		return FromInt(x)
	case float64:
		return FromFloat(x)
	case bool:
		if x {
			return FromInt(1)
		}
		return FromInt(0)
	default:
		return FromText(fmt.Sprint(x))
	}
}

func (v Value) IsNull() bool { return v.K == Null }

// Any unwraps the Value back to a plain Go scalar for handing to
// host expression evaluation.
func (v Value) Any() any {
	switch v.K {
	case Text:
		return v.S
	case Int:
		return v.I
	case Float:
		return v.F
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.K {
	case Null:
		return ""
	case Text:
		return v.S
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Float:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	}
	return ""
}

// AsInt coerces v to an integer the way the `int()` cast does:
// numerics convert directly (floats truncate), text is parsed, null
// fails. A failed parse is a row-scoped runtime error rather than a
// crash.
func AsInt(v Value) (int64, error) {
	switch v.K {
	case Int:
		return v.I, nil
	case Float:
		return int64(v.F), nil
	case Text:
		i, err := strconv.ParseInt(v.S, 10, 64)
		if err != nil {
			return 0, rerr.Runtimef(0, "cannot convert %q to int", v.S)
		}
		return i, nil
	default:
		return 0, rerr.Runtimef(0, "cannot convert null to int")
	}
}

// AsFloat is AsInt's floating-point counterpart.
func AsFloat(v Value) (float64, error) {
	switch v.K {
	case Int:
		return float64(v.I), nil
	case Float:
		return v.F, nil
	case Text:
		f, err := strconv.ParseFloat(v.S, 64)
		if err != nil {
			return 0, rerr.Runtimef(0, "cannot convert %q to float", v.S)
		}
		return f, nil
	default:
		return 0, rerr.Runtimef(0, "cannot convert null to float")
	}
}

// AsText stringifies v unconditionally; null becomes the empty string,
// matching the original's str() cast.
func AsText(v Value) string { return v.String() }

// IsNumeric reports whether v is an Int or a Float.
func (v Value) IsNumeric() bool { return v.K == Int || v.K == Float }

// Equal implements structural equality over the sum type, used by the
// ==/!= operators and the SubkeyChecker. DISTINCT, UNIQ COUNT, group
// and join keys compare KeyTuple encodings instead, which keep 3 and
// 3.0 apart.
func Equal(a, b Value) bool {
	if a.K != b.K {
		// Cross-kind numeric equality: 3 == 3.0
		if a.IsNumeric() && b.IsNumeric() {
			af, _ := AsFloat(a)
			bf, _ := AsFloat(b)
			return af == bf
		}
		return false
	}
	switch a.K {
	case Null:
		return true
	case Text:
		return a.S == b.S
	case Int:
		return a.I == b.I
	case Float:
		return a.F == b.F
	}
	return false
}

// Compare implements a stable total order: numerics order
// numerically and sort before text; text orders lexicographically;
// null sorts before everything. Mixed int/float lifts to float,
// matching the MIN/MAX lifting rule.
func Compare(a, b Value) int {
	rank := func(v Value) int {
		switch v.K {
		case Null:
			return 0
		case Int, Float:
			return 1
		default:
			return 2
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		af, _ := AsFloat(a)
		bf, _ := AsFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	}
}
