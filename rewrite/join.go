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
	"strings"

	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
)

// RewriteJoin parses "lhs == rhs [AND lhs == rhs]..." into key
// pairs, each normalized so
// LHS always evaluates against table "a" and RHS against table "b"
// (direction in the query text is inferred, not fixed).
func RewriteJoin(onRaw string, vmA, vmB resolve.VariableMap, lr *lex.Result) ([]JoinKeyPair, error) {
	onRaw = strings.TrimSpace(onRaw)
	if onRaw == "" {
		return nil, rerr.Parsef("JOIN requires an ON clause")
	}
	var pairs []JoinKeyPair
	for _, eq := range splitTopLevelWord(onRaw, "AND") {
		sides := splitTopLevelOn(eq, '=')
		// "==" splits on '=' into three parts: lhs, "", rhs; anything
		// else is a malformed equality.
		sides = collapseDoubleEquals(sides)
		if len(sides) != 2 {
			return nil, rerr.Syntaxf("JOIN_SYNTAX: expected 'a.x == b.y', got %q", eq)
		}
		lhsText, rhsText := strings.TrimSpace(sides[0]), strings.TrimSpace(sides[1])

		lhs, err := parseExpr(lhsText, vmA, vmB, lr)
		if err != nil {
			return nil, rerr.Syntaxf("JOIN_SYNTAX: %v", err)
		}
		rhs, err := parseExpr(rhsText, vmA, vmB, lr)
		if err != nil {
			return nil, rerr.Syntaxf("JOIN_SYNTAX: %v", err)
		}

		lhsSide, err := joinSide(lhs)
		if err != nil {
			return nil, err
		}
		rhsSide, err := joinSide(rhs)
		if err != nil {
			return nil, err
		}
		switch {
		case lhsSide == "a" && rhsSide == "b":
			pairs = append(pairs, JoinKeyPair{LHS: lhs, RHS: rhs})
		case lhsSide == "b" && rhsSide == "a":
			pairs = append(pairs, JoinKeyPair{LHS: rhs, RHS: lhs})
		default:
			return nil, rerr.Syntaxf("JOIN_SYNTAX: equality %q must reference exactly one input-table and one join-table variable", eq)
		}
	}
	return pairs, nil
}

// joinSide reports which table ("a" or "b") a JOIN key expression
// exclusively references; an expression touching both or neither is
// a JOIN_SYNTAX error by the caller.
func joinSide(n hostexpr.Node) (string, error) {
	seen := map[string]bool{}
	hostexpr.Walk(n, func(x hostexpr.Node) {
		if c, ok := x.(*hostexpr.ColumnRef); ok {
			seen[c.Table] = true
		}
	})
	switch {
	case seen["a"] && !seen["b"]:
		return "a", nil
	case seen["b"] && !seen["a"]:
		return "b", nil
	default:
		return "", rerr.Syntaxf("JOIN_SYNTAX: join key expression must reference exactly one table")
	}
}

// collapseDoubleEquals turns the 3-way split a '=' rune-split produces
// for "lhs==rhs" (["lhs", "", "rhs"]) back into a 2-way
// ["lhs", "rhs"]; any other shape (a bare "=" or more than one "==")
// is left alone so the caller can reject it.
func collapseDoubleEquals(parts []string) []string {
	if len(parts) == 3 && strings.TrimSpace(parts[1]) == "" {
		return []string{parts[0], parts[2]}
	}
	return parts
}

// splitTopLevelWord splits text on a case-insensitive, word-bounded
// keyword at paren/bracket depth 0 (e.g. "AND" between JOIN
// equalities).
func splitTopLevelWord(text, word string) []string {
	var parts []string
	for {
		idx := findTopLevelWord(text, word)
		if idx == -1 {
			parts = append(parts, text)
			return parts
		}
		parts = append(parts, text[:idx])
		text = text[idx+len(word):]
	}
}
