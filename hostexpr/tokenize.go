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
	"sort"
	"strings"

	"github.com/rbql-go/rbql/rerr"
)

type tokKind int

const (
	tEOF tokKind = iota
	tNumber
	tIdent
	tColumn // a pre-resolved column-variable token, e.g. `a["name"]`, `a.name`, `a3`
	tPunct  // ( ) , .
	tOp     // operators, including word-operators AND/OR/NOT/LIKE
)

type token struct {
	kind tokKind
	text string
	// for tColumn: which VarKey it refers to (looked up by the
	// parser in its variable table)
	varKey string
}

// varSet is the set of variable-map keys (from package resolve) the
// tokenizer should recognize as a single token, longest match first.
// Star forms ("*", "a.*", "b.*") are deliberately excluded by the
// caller (package rewrite) before tokenizing a non-star expression,
// since '*' is also the multiplication operator.
type varSet struct {
	keys []string // sorted longest-first
}

func newVarSet(keys map[string]bool) *varSet {
	vs := &varSet{}
	for k := range keys {
		vs.keys = append(vs.keys, k)
	}
	sort.Slice(vs.keys, func(i, j int) bool { return len(vs.keys[i]) > len(vs.keys[j]) })
	return vs
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// matchAt returns the longest registered variable key that matches
// text starting at pos and is word-bounded on both sides, or "".
func (vs *varSet) matchAt(text string, pos int) string {
	if pos > 0 && isIdentByte(text[pos-1]) {
		return ""
	}
	for _, k := range vs.keys {
		if pos+len(k) > len(text) {
			continue
		}
		if text[pos:pos+len(k)] != k {
			continue
		}
		end := pos + len(k)
		if end < len(text) && isIdentByte(text[end]) {
			continue
		}
		return k
	}
	return ""
}

var wordOps = map[string]string{
	"and":  "&&",
	"or":   "||",
	"not":  "!",
	"like": "like",
}

func tokenize(text string, vars *varSet) ([]token, error) {
	var toks []token
	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case vars != nil && vars.matchAt(text, i) != "":
			k := vars.matchAt(text, i)
			toks = append(toks, token{kind: tColumn, text: k, varKey: k})
			i += len(k)
		case c >= '0' && c <= '9':
			j := i
			for j < n && (text[j] >= '0' && text[j] <= '9') {
				j++
			}
			if j < n && text[j] == '.' && j+1 < n && text[j+1] >= '0' && text[j+1] <= '9' {
				j++
				for j < n && text[j] >= '0' && text[j] <= '9' {
					j++
				}
			}
			toks = append(toks, token{kind: tNumber, text: text[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentByte(text[j]) {
				j++
			}
			word := text[i:j]
			lower := strings.ToLower(word)
			if op, ok := wordOps[lower]; ok {
				toks = append(toks, token{kind: tOp, text: op})
			} else {
				toks = append(toks, token{kind: tIdent, text: word})
			}
			i = j
		case strings.HasPrefix(text[i:], "=="):
			toks = append(toks, token{kind: tOp, text: "=="})
			i += 2
		case strings.HasPrefix(text[i:], "!="):
			toks = append(toks, token{kind: tOp, text: "!="})
			i += 2
		case strings.HasPrefix(text[i:], "<>"):
			toks = append(toks, token{kind: tOp, text: "!="})
			i += 2
		case strings.HasPrefix(text[i:], "<="):
			toks = append(toks, token{kind: tOp, text: "<="})
			i += 2
		case strings.HasPrefix(text[i:], ">="):
			toks = append(toks, token{kind: tOp, text: ">="})
			i += 2
		case strings.HasPrefix(text[i:], "//"):
			toks = append(toks, token{kind: tOp, text: "//"})
			i += 2
		case strings.HasPrefix(text[i:], "&&"):
			toks = append(toks, token{kind: tOp, text: "&&"})
			i += 2
		case strings.HasPrefix(text[i:], "||"):
			toks = append(toks, token{kind: tOp, text: "||"})
			i += 2
		case c == '<' || c == '>' || c == '+' || c == '-' || c == '*' || c == '/' || c == '%' || c == '!':
			toks = append(toks, token{kind: tOp, text: string(c)})
			i++
		case c == '(' || c == ')' || c == ',' || c == '.':
			toks = append(toks, token{kind: tPunct, text: string(c)})
			i++
		default:
			return nil, rerr.Parsef("unexpected character %q in expression %q", c, text)
		}
	}
	toks = append(toks, token{kind: tEOF})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
