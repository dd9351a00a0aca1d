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
	"testing"

	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/value"
)

// testResolver resolves "a1", "a2" and "b1" into 0-based ColumnRefs
// and "NR"/"NF" into Specials; anything else fails, mirroring what the
// rewrite package would install from a resolve.VariableMap.
func testResolver(occ string) (Node, error) {
	switch occ {
	case "a1":
		return &ColumnRef{Table: "a", Index: 0}, nil
	case "a2":
		return &ColumnRef{Table: "a", Index: 1}, nil
	case "b1":
		return &ColumnRef{Table: "b", Index: 0}, nil
	case "NR":
		return &Special{Name: "NR"}, nil
	case "NF":
		return &Special{Name: "NF"}, nil
	}
	return nil, errUnresolved(occ)
}

type unresolvedErr string

func (e unresolvedErr) Error() string { return "unresolved: " + string(e) }
func errUnresolved(s string) error    { return unresolvedErr(s) }

func vars(keys ...string) Vars {
	v := Vars{}
	for _, k := range keys {
		v[k] = true
	}
	return v
}

func evalText(t *testing.T, expr string, vs Vars, ctx *EvalContext, lr *lex.Result) value.Value {
	t.Helper()
	n, err := Parse(expr, vs, testResolver, lr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	v, err := Eval(n, ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", expr, err)
	}
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(2), value.FromInt(3)}}
	v := evalText(t, "a1 + a2 * 2", vars("a1", "a2"), ctx, nil)
	if got, _ := value.AsInt(v); got != 8 {
		t.Fatalf("got %v, want 8", got)
	}
}

func TestComparisonAndBoolean(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(5)}}
	v := evalText(t, "a1 > 3 and a1 < 10", vars("a1"), ctx, nil)
	if !Truthy(v) {
		t.Fatalf("expected true")
	}
}

func TestStringConcat(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromText("foo"), value.FromText("bar")}}
	v := evalText(t, "a1 + a2", vars("a1", "a2"), ctx, nil)
	if v.String() != "foobar" {
		t.Fatalf("got %q", v.String())
	}
}

func TestFloorDivAndMod(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(-7), value.FromInt(2)}}
	v := evalText(t, "a1 // a2", vars("a1", "a2"), ctx, nil)
	if got, _ := value.AsInt(v); got != -4 {
		t.Fatalf("floor div: got %v, want -4", got)
	}
	v = evalText(t, "a1 % a2", vars("a1", "a2"), ctx, nil)
	if got, _ := value.AsInt(v); got != 1 {
		t.Fatalf("floor mod: got %v, want 1", got)
	}
}

func TestNRAndNFSpecials(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(1)}, NR: 3, NF: 1}
	v := evalText(t, "NR == 3 and NF == 1", vars("NR", "NF"), ctx, nil)
	if !Truthy(v) {
		t.Fatalf("expected NR==3 and NF==1 to hold")
	}
}

func TestLikePattern(t *testing.T) {
	ok, err := Like("hello.go", "%.go")
	if err != nil || !ok {
		t.Fatalf("expected %%.go to match hello.go, got ok=%v err=%v", ok, err)
	}
	ok, err = Like("hello.go", "h_llo.go")
	if err != nil || !ok {
		t.Fatalf("expected h_llo.go to match hello.go, got ok=%v err=%v", ok, err)
	}
	ok, _ = Like("hello.txt", "%.go")
	if ok {
		t.Fatalf("did not expect hello.txt to match %%.go")
	}
}

func TestUnaryMinusAndNot(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(4)}}
	v := evalText(t, "-a1", vars("a1"), ctx, nil)
	if got, _ := value.AsInt(v); got != -4 {
		t.Fatalf("got %v, want -4", got)
	}
	v = evalText(t, "not (a1 == 4)", vars("a1"), ctx, nil)
	if Truthy(v) {
		t.Fatalf("expected not(a1==4) to be false")
	}
}

func TestCastFunctions(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromText("42")}}
	v := evalText(t, "int(a1) + 1", vars("a1"), ctx, nil)
	if got, _ := value.AsInt(v); got != 43 {
		t.Fatalf("got %v, want 43", got)
	}
	v = evalText(t, "len(str(a1))", vars("a1"), ctx, nil)
	if got, _ := value.AsInt(v); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestStringLiteralViaPlaceholder(t *testing.T) {
	lr, err := lex.Preprocess(`a1 == "needle"`)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	ctx := &EvalContext{A: value.Record{value.FromText("needle")}}
	v := evalText(t, lr.Code, vars("a1"), ctx, lr)
	if !Truthy(v) {
		t.Fatalf("expected a1 == \"needle\" to hold, code=%q", lr.Code)
	}
}

func TestDivisionByZero(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromInt(1), value.FromInt(0)}}
	n, err := Parse("a1 / a2", vars("a1", "a2"), testResolver, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Eval(n, ctx); err == nil {
		t.Fatalf("expected division by zero error")
	}
}

func TestPluginFunction(t *testing.T) {
	ctx := &EvalContext{
		A:     value.Record{value.FromInt(10)},
		Funcs: map[string]Func{"double": func(args []value.Value) (value.Value, error) {
			i, _ := value.AsInt(args[0])
			return value.FromInt(i * 2), nil
		}},
	}
	v := evalText(t, "double(a1)", vars("a1"), ctx, nil)
	if got, _ := value.AsInt(v); got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestMethodCallDesugarsToFunctionCall(t *testing.T) {
	ctx := &EvalContext{A: value.Record{value.FromText("abc")}}
	n, err := Parse("a1.len()", vars("a1"), testResolver, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, err := Eval(n, ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got, _ := value.AsInt(v); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
}

func TestEvalListSplit(t *testing.T) {
	lr, err := lex.Preprocess(`a1.split(",")`)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	n, err := Parse(lr.Code, vars("a1"), testResolver, lr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := &EvalContext{A: value.Record{value.FromText("a,b,c")}}
	vals, err := EvalList(n, ctx)
	if err != nil {
		t.Fatalf("EvalList: %v", err)
	}
	if len(vals) != 3 || vals[0].S != "a" || vals[1].S != "b" || vals[2].S != "c" {
		t.Fatalf("unexpected split result: %+v", vals)
	}
}

