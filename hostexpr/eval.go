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

package hostexpr

import (
	"strings"

	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
)

// Func is a registered plugin function, the sub-language's equivalent
// of the host functions a query's init-time UDFs would have exposed.
type Func func(args []value.Value) (value.Value, error)

// EvalContext carries everything a Node tree needs to evaluate
// against one (possibly joined) row: the two input records (B is the
// zero Record when there is no join, or in an UPDATE with no join
// match; an unmatched LEFT JOIN row gets an all-null B), the 1-based row
// number and field count of A, and the registered function table.
type EvalContext struct {
	A, B  value.Record
	NR    int64
	NF    int64
	Funcs map[string]Func
}

// Eval walks a Node tree and produces its value against ctx.
func Eval(n Node, ctx *EvalContext) (value.Value, error) {
	switch x := n.(type) {
	case *Literal:
		return x.Value, nil
	case *ColumnRef:
		rec := ctx.A
		if x.Table == "b" {
			rec = ctx.B
		}
		if x.Safe {
			return rec.SafeGet(x.Index + 1), nil
		}
		return rec.Get(x.Index + 1)
	case *Special:
		switch x.Name {
		case "NR":
			return value.FromInt(ctx.NR), nil
		case "NF":
			return value.FromInt(ctx.NF), nil
		}
		return value.Value{}, rerr.Runtimef(0, "unknown pseudo-variable %q", x.Name)
	case *UnaryOp:
		return evalUnary(x, ctx)
	case *BinaryOp:
		return evalBinary(x, ctx)
	case *Call:
		return evalCall(x, ctx)
	}
	return value.Value{}, rerr.Runtimef(0, "unhandled expression node %T", n)
}

// Truthy implements the sub-language's boolean coercion: used both
// internally (&&/||/! operands) and by package exec to interpret a
// WHERE clause's result.
func Truthy(v value.Value) bool {
	switch v.K {
	case value.Null:
		return false
	case value.Int:
		return v.I != 0
	case value.Float:
		return v.F != 0
	case value.Text:
		return v.S != ""
	}
	return false
}

func boolValue(b bool) value.Value {
	if b {
		return value.FromInt(1)
	}
	return value.FromInt(0)
}

func evalUnary(x *UnaryOp, ctx *EvalContext) (value.Value, error) {
	v, err := Eval(x.X, ctx)
	if err != nil {
		return value.Value{}, err
	}
	switch x.Op {
	case "!":
		return boolValue(!Truthy(v)), nil
	case "-":
		if v.K == value.Float {
			return value.FromFloat(-v.F), nil
		}
		i, err := value.AsInt(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromInt(-i), nil
	}
	return value.Value{}, rerr.Runtimef(0, "unknown unary operator %q", x.Op)
}

func evalBinary(x *BinaryOp, ctx *EvalContext) (value.Value, error) {
	switch x.Op {
	case "&&":
		l, err := Eval(x.L, ctx)
		if err != nil {
			return value.Value{}, err
		}
		if !Truthy(l) {
			return boolValue(false), nil
		}
		r, err := Eval(x.R, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return boolValue(Truthy(r)), nil
	case "||":
		l, err := Eval(x.L, ctx)
		if err != nil {
			return value.Value{}, err
		}
		if Truthy(l) {
			return boolValue(true), nil
		}
		r, err := Eval(x.R, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return boolValue(Truthy(r)), nil
	}

	l, err := Eval(x.L, ctx)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Eval(x.R, ctx)
	if err != nil {
		return value.Value{}, err
	}

	switch x.Op {
	case "==":
		return boolValue(value.Equal(l, r)), nil
	case "!=":
		return boolValue(!value.Equal(l, r)), nil
	case "<":
		return boolValue(value.Compare(l, r) < 0), nil
	case "<=":
		return boolValue(value.Compare(l, r) <= 0), nil
	case ">":
		return boolValue(value.Compare(l, r) > 0), nil
	case ">=":
		return boolValue(value.Compare(l, r) >= 0), nil
	case "like":
		ok, err := Like(value.AsText(l), value.AsText(r))
		if err != nil {
			return value.Value{}, rerr.Runtimef(0, "invalid LIKE pattern %q: %v", value.AsText(r), err)
		}
		return boolValue(ok), nil
	case "+":
		return arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }, true)
	case "-":
		return arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }, false)
	case "*":
		return arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }, false)
	case "/":
		lf, err := value.AsFloat(l)
		if err != nil {
			return value.Value{}, err
		}
		rf, err := value.AsFloat(r)
		if err != nil {
			return value.Value{}, err
		}
		if rf == 0 {
			return value.Value{}, rerr.Runtimef(0, "division by zero")
		}
		return value.FromFloat(lf / rf), nil
	case "//":
		li, err := value.AsInt(l)
		if err != nil {
			return value.Value{}, err
		}
		ri, err := value.AsInt(r)
		if err != nil {
			return value.Value{}, err
		}
		if ri == 0 {
			return value.Value{}, rerr.Runtimef(0, "division by zero")
		}
		return value.FromInt(floorDiv(li, ri)), nil
	case "%":
		li, err := value.AsInt(l)
		if err != nil {
			return value.Value{}, err
		}
		ri, err := value.AsInt(r)
		if err != nil {
			return value.Value{}, err
		}
		if ri == 0 {
			return value.Value{}, rerr.Runtimef(0, "division by zero")
		}
		return value.FromInt(floorMod(li, ri)), nil
	}
	return value.Value{}, rerr.Runtimef(0, "unknown binary operator %q", x.Op)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// arith implements +, -, *: string '+' means concatenation, and any
// operand kind combination involving a float lifts the whole
// operation to float.
func arith(l, r value.Value, iop func(a, b int64) int64, fop func(a, b float64) float64, allowConcat bool) (value.Value, error) {
	if allowConcat && l.K == value.Text && r.K == value.Text {
		return value.FromText(l.S + r.S), nil
	}
	if l.K == value.Float || r.K == value.Float {
		lf, err := value.AsFloat(l)
		if err != nil {
			return value.Value{}, err
		}
		rf, err := value.AsFloat(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromFloat(fop(lf, rf)), nil
	}
	li, err := value.AsInt(l)
	if err != nil {
		return value.Value{}, err
	}
	ri, err := value.AsInt(r)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromInt(iop(li, ri)), nil
}

func evalCall(x *Call, ctx *EvalContext) (value.Value, error) {
	switch strings.ToLower(x.Name) {
	case "int":
		v, err := arg1(x, ctx)
		if err != nil {
			return value.Value{}, err
		}
		i, err := value.AsInt(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromInt(i), nil
	case "float":
		v, err := arg1(x, ctx)
		if err != nil {
			return value.Value{}, err
		}
		f, err := value.AsFloat(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromFloat(f), nil
	case "str":
		v, err := arg1(x, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromText(value.AsText(v)), nil
	case "len":
		v, err := arg1(x, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromInt(int64(len(value.AsText(v)))), nil
	}

	fn, ok := ctx.Funcs[x.Name]
	if !ok {
		return value.Value{}, rerr.Runtimef(0, "unknown function %q", x.Name)
	}
	args := make([]value.Value, len(x.Args))
	for i, a := range x.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

func arg1(x *Call, ctx *EvalContext) (value.Value, error) {
	if len(x.Args) != 1 {
		return value.Value{}, rerr.Runtimef(0, "%s() takes exactly one argument", x.Name)
	}
	return Eval(x.Args[0], ctx)
}
