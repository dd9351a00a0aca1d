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

// Package lex implements the lexical pre-pass over raw query text:
// comment stripping, string-literal extraction with placeholder
// substitution, and whitespace normalization.
package lex

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rbql-go/rbql/rerr"
)

const eof = -1

// Result is the output of Preprocess: Code has every string literal
// replaced by a unique placeholder, and Literals holds the original
// literal text (including its quotes) indexed by placeholder number.
type Result struct {
	Code     string
	Literals []string
	prefix   string
}

// placeholder returns the placeholder token for literal index i.
// The prefix is derived from a random UUID so placeholders from two
// concurrently-compiled queries (or a query and a host identifier
// that happens to look like one) can never collide.
func (r *Result) placeholder(i int) string {
	return fmt.Sprintf("___RBQL_STRING_LITERAL_%s_%d___", r.prefix, i)
}

// scanner walks the raw query text one byte at a time, producing
// placeholders instead of feeding a grammar.
type scanner struct {
	from []byte
	pos  int
}

func (s *scanner) cur() int {
	if s.pos >= len(s.from) {
		return eof
	}
	return int(s.from[s.pos])
}

func (s *scanner) peek(n int) int {
	if s.pos+n >= len(s.from) {
		return eof
	}
	return int(s.from[s.pos+n])
}

// Preprocess runs the lexical pre-pass over raw query text.
func Preprocess(query string) (*Result, error) {
	// Strip hyphens so the placeholder is made up entirely of
	// identifier characters; downstream tokenizers (package hostexpr)
	// scan placeholders as ordinary identifiers and would otherwise
	// misread a hyphen as a minus operator.
	r := &Result{prefix: strings.ReplaceAll(uuid.NewString(), "-", "")}
	s := &scanner{from: []byte(query)}

	var out strings.Builder
	for s.pos < len(s.from) {
		c := s.cur()
		switch {
		case c == '#':
			// comment: strip to end of line, outside of literals
			// (string literals are stripped before we ever see
			// a '#' inside one, since we extract literals as we
			// encounter their opening quote).
			for s.pos < len(s.from) && s.from[s.pos] != '\n' {
				s.pos++
			}
		case c == '\'' || c == '"':
			lit, err := s.readLiteral()
			if err != nil {
				return nil, err
			}
			out.WriteString(r.placeholder(len(r.Literals)))
			r.Literals = append(r.Literals, lit)
		default:
			out.WriteByte(byte(c))
			s.pos++
		}
	}

	r.Code = normalizeWhitespace(out.String())
	return r, nil
}

// readLiteral consumes a quoted string literal starting at the
// current position (s.cur() is the opening quote) and returns its
// full text including both quotes. Escape handling: a quote
// preceded by an odd number of backslashes is escaped; \\ is a
// literal backslash.
func (s *scanner) readLiteral() (string, error) {
	quote := byte(s.cur())
	start := s.pos
	s.pos++
	for {
		if s.pos >= len(s.from) {
			return "", rerr.Parsef("unterminated string literal starting at byte %d", start)
		}
		c := s.from[s.pos]
		if c == '\n' {
			return "", rerr.Parsef("multiline string literal in query starting at byte %d", start)
		}
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == quote {
			s.pos++
			break
		}
		s.pos++
	}
	return string(s.from[start:s.pos]), nil
}

// normalizeWhitespace collapses runs of whitespace into a single
// space; literal placeholders contain no whitespace so this never
// touches literal content.
func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inWS {
				b.WriteByte(' ')
				inWS = true
			}
			continue
		}
		inWS = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Combine reinjects literals into code that still contains
// placeholders, for final code emission or error reporting.
func (r *Result) Combine(code string) string {
	for i, lit := range r.Literals {
		code = strings.ReplaceAll(code, r.placeholder(i), lit)
	}
	return code
}

// IsPlaceholder reports whether s is exactly the placeholder for
// literal index i.
func (r *Result) IsPlaceholder(s string, i int) bool {
	return s == r.placeholder(i)
}

// PlaceholderPattern returns a regexp fragment matching any
// placeholder produced by this Result, with the literal index
// captured in submatch group 1. Consumers (resolve, rewrite) splice
// this into larger patterns, e.g. to recognize `a["name"]` where
// "name" has already been replaced by a placeholder.
func (r *Result) PlaceholderPattern() string {
	return `___RBQL_STRING_LITERAL_` + regexpQuoteMeta(r.prefix) + `_(\d+)___`
}

// regexpQuoteMeta escapes s for literal inclusion in a regexp; UUIDs
// only contain hex digits and hyphens, neither of which are regexp
// metacharacters, but this keeps the function correct regardless.
func regexpQuoteMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LiteralAt returns the literal content (without quotes) for
// placeholder index i, with backslash escapes resolved.
func (r *Result) LiteralAt(i int) (string, error) {
	if i < 0 || i >= len(r.Literals) {
		return "", rerr.Parsef("invalid literal reference %d", i)
	}
	raw := r.Literals[i]
	if len(raw) < 2 {
		return "", rerr.Parsef("malformed literal %q", raw)
	}
	inner := raw[1 : len(raw)-1]
	return unescape(inner), nil
}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
