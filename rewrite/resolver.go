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

package rewrite

import (
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
)

// vars builds the hostexpr.Vars set the tokenizer should recognize
// from one or two resolve.VariableMaps, excluding the star forms
// ("*", "a.*", "b.*") since those are handled structurally by this
// package rather than by hostexpr's tokenizer.
func vars(maps ...resolve.VariableMap) hostexpr.Vars {
	out := hostexpr.Vars{}
	for _, vm := range maps {
		for k := range vm {
			if k == "*" || k == "a.*" || k == "b.*" {
				continue
			}
			out[k] = true
		}
	}
	return out
}

// resolver builds a hostexpr.VarResolver that looks an occurrence up
// in vmA (table "a", safe_get semantics: out-of-range reads null)
// then vmB (table "b", safe_join_get semantics: out-of-range raises
// BAD_FIELD).
func resolver(vmA, vmB resolve.VariableMap) hostexpr.VarResolver {
	return func(occ string) (hostexpr.Node, error) {
		switch occ {
		case "NR":
			return &hostexpr.Special{Name: "NR"}, nil
		case "NF":
			return &hostexpr.Special{Name: "NF"}, nil
		}
		if info, ok := vmA[occ]; ok && info.Index != nil {
			return &hostexpr.ColumnRef{Table: "a", Index: *info.Index, Safe: true}, nil
		}
		if vmB != nil {
			if info, ok := vmB[occ]; ok && info.Index != nil {
				return &hostexpr.ColumnRef{Table: "b", Index: *info.Index, Safe: false}, nil
			}
		}
		return nil, rerr.Syntaxf("unresolved variable %q", occ)
	}
}

// parseExpr is the one entry point every sub-rewriter uses to turn a
// raw text snippet into a hostexpr.Node.
func parseExpr(text string, vmA, vmB resolve.VariableMap, lr *lex.Result) (hostexpr.Node, error) {
	return hostexpr.Parse(text, vars(vmA, vmB), resolver(vmA, vmB), lr)
}
