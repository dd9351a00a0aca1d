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
)

// RewriteWhere rewrites a WHERE clause: only column
// references are rewritten, everything else (arithmetic, function
// calls) passes through to hostexpr's own grammar unchanged.
func RewriteWhere(text string, vmA, vmB resolve.VariableMap, lr *lex.Result) (hostexpr.Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return parseExpr(text, vmA, vmB, lr)
}

// RewriteOrderBy parses the ORDER BY key expression. Direction
// (ASC/DESC) has already been split out by package clause.
func RewriteOrderBy(text string, vmA, vmB resolve.VariableMap, lr *lex.Result) (hostexpr.Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return parseExpr(text, vmA, vmB, lr)
}

// RewriteGroupBy splits a GROUP BY expression list on top-level
// commas and parses each.
func RewriteGroupBy(text string, vmA, vmB resolve.VariableMap, lr *lex.Result) ([]hostexpr.Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out []hostexpr.Node
	for _, part := range SplitTopLevel(text) {
		n, err := parseExpr(part, vmA, vmB, lr)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
