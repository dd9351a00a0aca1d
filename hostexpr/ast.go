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

// Package hostexpr is the small expression sub-language embedded
// query snippets compile into instead of being eval'd as arbitrary
// host code: arithmetic,
// string concatenation, comparisons, int/float/str coercions,
// LIKE/regex matching, field access, and a plugin function table.
// The column references a query embeds have already been resolved
// to table/index pairs by package resolve before a Node tree is
// built, so evaluation never re-parses text.
package hostexpr

import "github.com/rbql-go/rbql/value"

// Node is any node in a parsed expression tree: a closed set of
// concrete types dispatched by a type switch in Eval, rather than a
// deep class hierarchy.
type Node interface {
	isNode()
}

// ColumnRef is a resolved field access: Table is "a" or "b", Index
// is 0-based. Safe controls whether out-of-range access returns
// null (safe_get) or fails with BAD_FIELD.
type ColumnRef struct {
	Table string
	Index int
	Safe  bool
}

// Special names a row-scoped pseudo-variable: NR or NF.
type Special struct {
	Name string // "NR" or "NF"
}

// Literal is a constant value baked in at rewrite time (a numeric
// literal in the query text, or a restored string literal).
type Literal struct {
	Value value.Value
}

// BinaryOp is an infix operator application.
type BinaryOp struct {
	Op   string
	L, R Node
}

// UnaryOp is a prefix operator application (-x, NOT x).
type UnaryOp struct {
	Op string
	X  Node
}

// Call is a function application: a builtin cast (int/float/str),
// len(), or a name registered in a plugin function table. LIKE is not
// a Call; it parses to a BinaryOp with Op "like".
type Call struct {
	Name string
	Args []Node
}

func (*ColumnRef) isNode() {}
func (*Special) isNode()   {}
func (*Literal) isNode()   {}
func (*BinaryOp) isNode()  {}
func (*UnaryOp) isNode()   {}
func (*Call) isNode()      {}

// Walk visits every node in the tree in depth-first order, calling
// visit on each.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch x := n.(type) {
	case *BinaryOp:
		Walk(x.L, visit)
		Walk(x.R, visit)
	case *UnaryOp:
		Walk(x.X, visit)
	case *Call:
		for _, a := range x.Args {
			Walk(a, visit)
		}
	}
}
