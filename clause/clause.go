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

// Package clause implements the statement splitter: it locates the
// top-level clause keywords in a lexically pre-processed query and
// slices the text into a Statement.
package clause

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rbql-go/rbql/rerr"
)

// Kind distinguishes SELECT from UPDATE statements.
type Kind int

const (
	Select Kind = iota
	Update
)

// JoinKind names the JOIN strategy requested in the query text.
type JoinKind int

const (
	NoJoin JoinKind = iota
	Inner
	Left
	StrictLeft
)

func (k JoinKind) String() string {
	switch k {
	case Inner:
		return "INNER JOIN"
	case Left:
		return "LEFT JOIN"
	case StrictLeft:
		return "STRICT LEFT JOIN"
	default:
		return "NONE"
	}
}

// Join carries the raw (unparsed) pieces of a JOIN clause; rewrite
// parses OnRaw into lhs/rhs key expression pairs.
type Join struct {
	Kind   JoinKind
	Source string
	OnRaw  string
}

// Statement is the result of splitting a query: clause text is raw
// (still containing literal placeholders and host-expression syntax);
// resolve/rewrite operate on it next.
type Statement struct {
	Kind Kind

	Top           *uint64
	Distinct      bool
	DistinctCount bool
	SelectList    string // raw, comma-separated (rewrite.SplitTopLevel)

	UpdateTarget string
	UpdateSet    string

	From string
	Join *Join

	Where string

	GroupBy string

	OrderBy    string
	OrderDesc  bool
	HasOrderBy bool

	Limit *uint64
}

type keyword struct {
	name string
	re   *regexp.Regexp
}

func kw(name string) keyword {
	return keyword{name: name, re: regexp.MustCompile(`(?i)\b` + name + `\b`)}
}

var (
	kwSelect     = kw("SELECT")
	kwUpdate     = kw("UPDATE")
	kwFrom       = kw("FROM")
	kwStrictLeft = regexp.MustCompile(`(?i)\bSTRICT\s+LEFT\s+JOIN\b`)
	kwLeftJoin   = regexp.MustCompile(`(?i)\bLEFT\s+JOIN\b`)
	kwInnerJoin  = regexp.MustCompile(`(?i)\bINNER\s+JOIN\b`)
	kwJoinBare   = kw("JOIN")
	kwOn         = kw("ON")
	kwWhere      = kw("WHERE")
	kwGroupBy    = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	kwOrderBy    = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	kwLimit      = kw("LIMIT")
	kwSet        = kw("SET")
	kwTop        = kw("TOP")
	kwDistinct   = kw("DISTINCT")
	kwCount      = kw("COUNT")
	kwAsc        = regexp.MustCompile(`(?i)\s+ASC\s*$`)
	kwDesc       = regexp.MustCompile(`(?i)\s+DESC\s*$`)
)

type boundaryKind int

const (
	bFrom boundaryKind = iota
	bJoin
	bWhere
	bGroupBy
	bOrderBy
	bLimit
)

// boundary is the earliest top-level clause keyword found in s.
type boundary struct {
	kind    boundaryKind
	matched string // exact text matched, e.g. "STRICT LEFT JOIN"
	start   int
	end     int
}

// nextBoundary finds the earliest-starting of FROM/JOIN(+variants)/
// WHERE/GROUP BY/ORDER BY/LIMIT in s, or nil if none occur.
func nextBoundary(s string) *boundary {
	type cand struct {
		loc  []int
		kind boundaryKind
	}
	candidates := []cand{
		{kwFrom.re.FindStringIndex(s), bFrom},
		{firstJoinIndex(s), bJoin},
		{kwWhere.re.FindStringIndex(s), bWhere},
		{kwGroupBy.FindStringIndex(s), bGroupBy},
		{kwOrderBy.FindStringIndex(s), bOrderBy},
		{kwLimit.re.FindStringIndex(s), bLimit},
	}
	var best *boundary
	for _, c := range candidates {
		if c.loc == nil {
			continue
		}
		if best == nil || c.loc[0] < best.start {
			best = &boundary{kind: c.kind, matched: s[c.loc[0]:c.loc[1]], start: c.loc[0], end: c.loc[1]}
		}
	}
	return best
}

func firstJoinIndex(s string) []int {
	var best []int
	for _, re := range []*regexp.Regexp{kwStrictLeft, kwLeftJoin, kwInnerJoin, kwJoinBare.re} {
		if loc := re.FindStringIndex(s); loc != nil {
			if best == nil || loc[0] < best[0] {
				best = loc
			}
		}
	}
	return best
}

// Split slices lexically-normalized query text into its clauses.
func Split(code string) (*Statement, error) {
	code = strings.TrimSpace(code)
	st := &Statement{}
	upper := strings.ToUpper(code)

	var rest string
	switch {
	case strings.HasPrefix(upper, "SELECT") && boundaryOK(code, 0, len("SELECT")):
		st.Kind = Select
		rest = strings.TrimSpace(code[len("SELECT"):])

		if boundaryOK(rest, 0, len("TOP")) && strings.HasPrefix(strings.ToUpper(rest), "TOP") {
			after := strings.TrimSpace(rest[len("TOP"):])
			numEnd := 0
			for numEnd < len(after) && after[numEnd] >= '0' && after[numEnd] <= '9' {
				numEnd++
			}
			if numEnd == 0 {
				return nil, rerr.Parsef("TOP must be followed by a number")
			}
			n, err := strconv.ParseUint(after[:numEnd], 10, 64)
			if err != nil {
				return nil, rerr.Parsef("invalid TOP count: %v", err)
			}
			st.Top = &n
			rest = strings.TrimSpace(after[numEnd:])
		}
		if strings.HasPrefix(strings.ToUpper(rest), "DISTINCT") && boundaryOK(rest, 0, len("DISTINCT")) {
			st.Distinct = true
			rest = strings.TrimSpace(rest[len("DISTINCT"):])
			// "DISTINCT COUNT a1" is the uniq-count modifier, but
			// "DISTINCT COUNT(a1)" is an aggregate call in SELECT-list
			// position, so a trailing '(' keeps COUNT in the list.
			if strings.HasPrefix(strings.ToUpper(rest), "COUNT") && boundaryOK(rest, 0, len("COUNT")) &&
				!strings.HasPrefix(strings.TrimSpace(rest[len("COUNT"):]), "(") {
				st.DistinctCount = true
				rest = strings.TrimSpace(rest[len("COUNT"):])
			}
		}
	case strings.HasPrefix(upper, "UPDATE") && boundaryOK(code, 0, len("UPDATE")):
		st.Kind = Update
		rest = strings.TrimSpace(code[len("UPDATE"):])
	default:
		return nil, rerr.Parsef("query must start with SELECT or UPDATE")
	}

	if st.Kind == Select {
		b := nextBoundary(rest)
		if b == nil {
			st.SelectList = strings.TrimSpace(rest)
			rest = ""
		} else {
			st.SelectList = strings.TrimSpace(rest[:b.start])
			rest = strings.TrimSpace(rest[b.end:])
			rest = tagPrefix(b) + rest
		}
		if st.SelectList == "" {
			return nil, rerr.Parsef("SELECT expression is empty")
		}
	} else {
		setIdx := kwSet.re.FindStringIndex(rest)
		if setIdx == nil {
			return nil, rerr.Parsef("UPDATE query is missing SET")
		}
		st.UpdateTarget = strings.TrimSpace(rest[:setIdx[0]])
		rest = strings.TrimSpace(rest[setIdx[1]:])
		b := nextBoundary(rest)
		if b == nil {
			st.UpdateSet = strings.TrimSpace(rest)
			rest = ""
		} else {
			st.UpdateSet = strings.TrimSpace(rest[:b.start])
			rest = strings.TrimSpace(rest[b.end:])
			rest = tagPrefix(b) + rest
		}
		if st.UpdateSet == "" {
			return nil, rerr.Parsef("UPDATE SET expression is empty")
		}
	}

	seen := map[boundaryKind]bool{}
	for rest != "" {
		if rest[0] != 0 {
			return nil, rerr.Parsef("unexpected trailing query text: %q", rest)
		}
		kindByte := rest[1]
		matchedLen := int(rest[2])
		remainder := rest[3:]
		matched := remainder[:matchedLen]
		remainder = remainder[matchedLen:]

		k := boundaryKind(kindByte)
		if seen[k] {
			return nil, rerr.Parsef("duplicate clause: %s", clauseName(k))
		}
		seen[k] = true

		b2 := nextBoundary(remainder)
		var body string
		if b2 == nil {
			body = strings.TrimSpace(remainder)
			rest = ""
		} else {
			body = strings.TrimSpace(remainder[:b2.start])
			rest = tagPrefix(b2) + strings.TrimSpace(remainder[b2.end:])
		}

		if err := st.assign(k, matched, body); err != nil {
			return nil, err
		}
	}

	if st.Kind == Update && (st.HasOrderBy || st.Distinct || st.GroupBy != "" || st.Limit != nil) {
		return nil, rerr.Parsef("ORDER BY/DISTINCT/GROUP BY/LIMIT are not valid in an UPDATE query")
	}
	return st, nil
}

// boundaryOK reports whether the keyword occupying code[start:end]
// is followed by a word boundary (end of string, or a non-identifier
// byte), so e.g. "SELECTION" is never mistaken for "SELECT".
func boundaryOK(code string, start, end int) bool {
	if end > len(code) {
		return false
	}
	if end == len(code) {
		return true
	}
	c := code[end]
	return !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
}

// tagPrefix encodes a boundary marker as a 3-byte header
// (\x00, kind, matchedLen) followed by the matched text itself, so
// the main loop can recover which keyword introduced the next clause
// (needed to tell JOIN variants apart) without re-scanning.
func tagPrefix(b *boundary) string {
	return string([]byte{0, byte(b.kind), byte(len(b.matched))}) + b.matched
}

func clauseName(k boundaryKind) string {
	switch k {
	case bFrom:
		return "FROM"
	case bJoin:
		return "JOIN"
	case bWhere:
		return "WHERE"
	case bGroupBy:
		return "GROUP BY"
	case bOrderBy:
		return "ORDER BY"
	case bLimit:
		return "LIMIT"
	}
	return "?"
}

func (st *Statement) assign(k boundaryKind, matched, body string) error {
	switch k {
	case bFrom:
		st.From = body
	case bJoin:
		j, err := parseJoin(matched, body)
		if err != nil {
			return err
		}
		st.Join = j
	case bWhere:
		st.Where = body
	case bGroupBy:
		st.GroupBy = body
	case bOrderBy:
		desc := false
		if kwDesc.MatchString(body) {
			desc = true
			body = kwDesc.ReplaceAllString(body, "")
		} else if kwAsc.MatchString(body) {
			body = kwAsc.ReplaceAllString(body, "")
		}
		st.OrderBy = strings.TrimSpace(body)
		st.OrderDesc = desc
		st.HasOrderBy = true
	case bLimit:
		n, err := strconv.ParseUint(strings.TrimSpace(body), 10, 64)
		if err != nil {
			return rerr.Parsef("invalid LIMIT count: %v", err)
		}
		st.Limit = &n
	}
	return nil
}

// parseJoin splits "<source> ON <cond>" (matched is the JOIN keyword
// variant that was consumed ahead of body, e.g. "STRICT LEFT JOIN").
func parseJoin(matched, body string) (*Join, error) {
	onIdx := kwOn.re.FindStringIndex(body)
	if onIdx == nil {
		return nil, rerr.Syntaxf("JOIN_SYNTAX: missing ON in JOIN clause")
	}
	source := strings.TrimSpace(body[:onIdx[0]])
	onRaw := strings.TrimSpace(body[onIdx[1]:])
	if source == "" {
		return nil, rerr.Syntaxf("JOIN_SYNTAX: missing join table name")
	}
	if onRaw == "" {
		return nil, rerr.Syntaxf("JOIN_SYNTAX: empty ON condition")
	}
	var k JoinKind
	switch strings.ToUpper(matched) {
	case "STRICT LEFT JOIN":
		k = StrictLeft
	case "LEFT JOIN":
		k = Left
	default:
		k = Inner
	}
	return &Join{Kind: k, Source: source, OnRaw: onRaw}, nil
}
