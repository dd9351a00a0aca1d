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

	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
)

// RewriteUpdate rewrites an UPDATE SET list: each top-level
// comma-separated item must begin with an assignable table-"a" column
// reference; the rewritten form is a sequence of safe_set(up_fields,
// index, value) calls, represented here as UpdateAssign values.
func RewriteUpdate(text string, vmA, vmB resolve.VariableMap, lr *lex.Result) ([]UpdateAssign, error) {
	if strings.TrimSpace(text) == "" {
		return nil, rerr.Parsef("UPDATE SET must not be empty")
	}
	var out []UpdateAssign
	for _, item := range SplitTopLevel(text) {
		lhsText, rhsText, err := splitAssignment(item)
		if err != nil {
			return nil, err
		}
		info, ok := vmA[lhsText]
		if !ok || info.Index == nil {
			return nil, rerr.Syntaxf("UPDATE_UNKNOWN_FIELD: %q is not a valid input column", lhsText)
		}
		rhs, err := parseExpr(rhsText, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		out = append(out, UpdateAssign{TargetIndex: *info.Index, Value: rhs})
	}
	return out, nil
}

// splitAssignment finds the top-level '=' that separates an UPDATE
// SET item's target column from its value expression, rejecting
// "==", "!=", "<=", ">=" which are comparisons, not assignments.
func splitAssignment(item string) (lhs, rhs string, err error) {
	depth := 0
	for i := 0; i < len(item); i++ {
		switch item[i] {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if item[i] != '=' || depth != 0 {
			continue
		}
		if i+1 < len(item) && item[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && (item[i-1] == '!' || item[i-1] == '<' || item[i-1] == '>' || item[i-1] == '=') {
			continue
		}
		return strings.TrimSpace(item[:i]), strings.TrimSpace(item[i+1:]), nil
	}
	return "", "", rerr.Parsef("malformed UPDATE SET item (expected 'a.col = expr'): %s", item)
}
