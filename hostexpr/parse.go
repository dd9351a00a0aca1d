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
	"regexp"
	"strconv"
	"strings"

	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/rerr"
)

// VarResolver turns a recognized column-variable occurrence (as
// matched verbatim against the preprocessed query text, e.g. "a3",
// "a.name", or the placeholder-embedded "a[___RBQL_STRING_LITERAL_
// ...]") into a Node. Supplied by package rewrite, which owns the
// VariableMap built by package resolve.
type VarResolver func(occurrence string) (Node, error)

// Vars is the set of variable-map keys a parse should recognize as
// a single token (built from resolve.VariableMap by the caller,
// excluding star forms).
type Vars map[string]bool

type parser struct {
	toks    []token
	pos     int
	resolve VarResolver
	litRe   *regexp.Regexp
	lr      *lex.Result
}

// Parse parses a single expression (no top-level commas; split those
// out first with SplitTopLevel) into a Node tree. lr is the lexical
// result that produced text, used to turn a placeholder token back
// into a Literal; it may be nil if text is known to carry no string
// literals.
func Parse(text string, vars Vars, resolve VarResolver, lr *lex.Result) (Node, error) {
	vs := newVarSet(vars)
	toks, err := tokenize(text, vs)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, resolve: resolve, lr: lr}
	if lr != nil {
		p.litRe = regexp.MustCompile(`^` + lr.PlaceholderPattern() + `$`)
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tEOF {
		return nil, rerr.Parsef("unexpected token %q in expression %q", p.cur().text, text)
	}
	return n, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && p.cur().text == "||" {
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &BinaryOp{Op: "||", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Node, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && p.cur().text == "&&" {
		p.advance()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &BinaryOp{Op: "&&", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.cur().kind == tOp && p.cur().text == "!" {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "!", X: x}, nil
	}
	return p.parseCompare()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseCompare() (Node, error) {
	l, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tOp && compareOps[p.cur().text] {
		op := p.advance().text
		r, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: op, L: l, R: r}, nil
	}
	if p.cur().kind == tOp && p.cur().text == "like" {
		p.advance()
		r, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: "like", L: l, R: r}, nil
	}
	return l, nil
}

func (p *parser) parseAdd() (Node, error) {
	l, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.advance().text
		r, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		l = &BinaryOp{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseMul() (Node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && (p.cur().text == "*" || p.cur().text == "/" || p.cur().text == "//" || p.cur().text == "%") {
		op := p.advance().text
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &BinaryOp{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.cur().kind == tOp && p.cur().text == "-" {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", X: x}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles `recv.method(args)` method-call sugar, e.g.
// `a1.split(",")` inside UNNEST: it desugars to a Call whose first
// argument is the receiver, so evalCall's existing dispatch handles
// it uniformly with a plain function call.
func (p *parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tPunct && p.cur().text == "." {
		p.advance()
		if p.cur().kind != tIdent {
			return nil, rerr.Parsef("expected method name after '.'")
		}
		name := p.advance().text
		if !(p.cur().kind == tPunct && p.cur().text == "(") {
			return nil, rerr.Parsef("expected '(' after .%s", name)
		}
		p.advance()
		args := []Node{n}
		if !(p.cur().kind == tPunct && p.cur().text == ")") {
			for {
				a, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur().kind == tPunct && p.cur().text == "," {
					p.advance()
					continue
				}
				break
			}
		}
		if !(p.cur().kind == tPunct && p.cur().text == ")") {
			return nil, rerr.Parsef("expected ')' after arguments to .%s(...)", name)
		}
		p.advance()
		n = &Call{Name: name, Args: args}
	}
	return n, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tNumber:
		p.advance()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, rerr.Parsef("invalid number %q", t.text)
			}
			return litFloat(f), nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, rerr.Parsef("invalid number %q", t.text)
		}
		return litInt(i), nil
	case tColumn:
		p.advance()
		return p.resolve(t.varKey)
	case tPunct:
		if t.text == "(" {
			p.advance()
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if p.cur().kind != tPunct || p.cur().text != ")" {
				return nil, rerr.Parsef("expected ')'")
			}
			p.advance()
			return n, nil
		}
	case tIdent:
		p.advance()
		name := t.text
		switch strings.ToLower(name) {
		case "true":
			return litInt(1), nil
		case "false":
			return litInt(0), nil
		case "null", "none":
			return &Literal{}, nil
		}
		if p.litRe != nil {
			if m := p.litRe.FindStringSubmatch(name); m != nil {
				idx, err := strconv.Atoi(m[1])
				if err != nil {
					return nil, rerr.Parsef("invalid literal reference %q", name)
				}
				s, err := p.lr.LiteralAt(idx)
				if err != nil {
					return nil, err
				}
				return litText(s), nil
			}
		}
		if p.cur().kind == tPunct && p.cur().text == "(" {
			p.advance()
			var args []Node
			if !(p.cur().kind == tPunct && p.cur().text == ")") {
				for {
					// DISTINCT inside COUNT(DISTINCT x) is not a
					// general expression; rewrite handles that
					// specially before calling Parse on the rest.
					a, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.cur().kind == tPunct && p.cur().text == "," {
						p.advance()
						continue
					}
					break
				}
			}
			if !(p.cur().kind == tPunct && p.cur().text == ")") {
				return nil, rerr.Parsef("expected ')' after arguments to %s(...)", name)
			}
			p.advance()
			return &Call{Name: name, Args: args}, nil
		}
		// a bare identifier with no call parens and no column
		// resolution is not part of this sub-language: only field
		// access, casts, and registered functions are supported
		return nil, rerr.Parsef("unresolved identifier %q", name)
	}
	return nil, rerr.Parsef("unexpected token %q", t.text)
}
