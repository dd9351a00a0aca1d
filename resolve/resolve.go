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

// Package resolve implements the variable resolver: it maps every
// column reference a query can use ("a1", "a.name", `a["x"]`, "b3",
// "NR", "NF", "*") to a typed VariableInfo, given the column metadata
// exposed by the primary and join iterators.
package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rbql-go/rbql/lex"
	"github.com/rbql-go/rbql/rerr"
)

// VariableInfo describes one resolved (or reserved-but-unused)
// variable. Index is nil for the row-scoped pseudo-variables (NR, NF)
// and for the star entries ("*", "<prefix>.*").
type VariableInfo struct {
	Initialize bool
	Index      *int
}

func idx(i int) *int { return &i }

// VariableMap maps a column-variable string to its resolved info,
// keyed as it appears in the preprocessed query text, e.g. "a3",
// "a.name", or an `a[...]` occurrence with its literal placeholder
// still embedded; the restored `a["name"]` forms are registered too.
type VariableMap map[string]VariableInfo

var reserved = map[string]bool{"NR": true, "NF": true}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Resolve runs the prefixed resolution passes for one input (prefix
// "a" or "b") against the raw clause text that may reference it
// (SELECT list + WHERE + JOIN + ORDER BY + UPDATE SET, already
// concatenated by the caller) and that input's header (nil if the
// input has no header). Bare (unprefixed) header names span both
// inputs and are registered separately by ResolveBare.
func Resolve(prefix, text string, header []string, lr *lex.Result) (VariableMap, error) {
	vm := VariableMap{}

	if err := basicPositional(vm, prefix, text); err != nil {
		return nil, err
	}
	if err := arrayStyle(vm, prefix, text, header, lr); err != nil {
		return nil, err
	}
	dictionaryStyle(vm, prefix, text, header)
	if err := attributeStyle(vm, prefix, text, header); err != nil {
		return nil, err
	}

	if prefix == "a" {
		vm["NR"] = VariableInfo{Initialize: strings.Contains(text, "NR"), Index: nil}
		vm["NF"] = VariableInfo{Initialize: strings.Contains(text, "NF"), Index: nil}
	}
	vm["*"] = VariableInfo{Initialize: false, Index: nil}
	vm[prefix+".*"] = VariableInfo{Initialize: false, Index: nil}

	return vm, nil
}

// basicPositional implements pass 1: `a1`, `a23`, ... -> index n-1.
// Go's RE2 engine has no lookbehind, so instead of a lookaround
// pattern we match the word-bounded form `\ba([1-9][0-9]*)\b` (which
// already excludes a preceding/following identifier character) and
// separately reject a match immediately followed by '[', which
// belongs to the array-style pass. A following '.' stays a match:
// `a1.split(",")` is a method call on the a1 field, not an
// attribute-style reference (those only ever hang off the bare
// prefix, `a.name`).
func basicPositional(vm VariableMap, prefix, text string) error {
	re := regexp.MustCompile(`\b` + prefix + `([1-9][0-9]*)\b`)
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		end := m[1]
		if end < len(text) && text[end] == '[' {
			continue
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			return rerr.Parsef("invalid positional column reference: %s", text[m[0]:m[1]])
		}
		vm[prefix+strconv.Itoa(n)] = VariableInfo{Initialize: true, Index: idx(n - 1)}
	}
	return nil
}

// arrayStyle implements pass 2: `a[<int>]` and `a["<literal>"]` /
// `a['<literal>']`.
func arrayStyle(vm VariableMap, prefix, text string, header []string, lr *lex.Result) error {
	intRe := regexp.MustCompile(`\b` + prefix + `\[\s*([0-9]+)\s*\]`)
	for _, m := range intRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return rerr.Parsef("invalid array index in %q", m[0])
		}
		vm[m[0]] = VariableInfo{Initialize: true, Index: idx(n)}
	}

	if lr == nil {
		return nil
	}
	strRe := regexp.MustCompile(`\b` + prefix + `\[\s*` + lr.PlaceholderPattern() + `\s*\]`)
	for _, m := range strRe.FindAllStringSubmatch(text, -1) {
		litIdx, err := strconv.Atoi(m[1])
		if err != nil {
			return rerr.Parsef("invalid literal reference in %q", m[0])
		}
		name, err := lr.LiteralAt(litIdx)
		if err != nil {
			return err
		}
		col := headerIndex(header, name)
		if col == -1 {
			return rerr.Syntaxf("unknown field name %q for table %q", name, prefix)
		}
		// Key by the exact occurrence text (placeholder still
		// embedded) so the expression tokenizer can match it
		// verbatim against the preprocessed query text; also
		// register the human-readable "a[\"name\"]" / "a['name']"
		// forms as aliases for display/EXCEPT lookups that build
		// the key from a resolved name rather than scanning text.
		vm[m[0]] = VariableInfo{Initialize: true, Index: idx(col)}
		vm[prefix+`["`+escapeName(name)+`"]`] = VariableInfo{Initialize: true, Index: idx(col)}
		vm[prefix+`['`+escapeName(name)+`']`] = VariableInfo{Initialize: true, Index: idx(col)}
	}
	return nil
}

// dictionaryStyle implements pass 3: register `a["name"]`/`a['name']`
// for every header name. An entry pass 2 already registered (the
// query references it) keeps its Initialize=true info; every other
// name is registered with Initialize=false. text is not consulted.
func dictionaryStyle(vm VariableMap, prefix string, text string, header []string) {
	for i, name := range header {
		dq := prefix + `["` + escapeName(name) + `"]`
		sq := prefix + `['` + escapeName(name) + `']`
		if _, ok := vm[dq]; !ok {
			vm[dq] = VariableInfo{Initialize: false, Index: idx(i)}
		}
		if _, ok := vm[sq]; !ok {
			vm[sq] = VariableInfo{Initialize: false, Index: idx(i)}
		}
	}
}

// attributeStyle implements pass 4: register `a.name` for every
// identifier-valid header name, rejecting reserved names.
func attributeStyle(vm VariableMap, prefix, text string, header []string) error {
	for i, name := range header {
		if !identifierRe.MatchString(name) {
			continue
		}
		if reserved[name] {
			return rerr.Syntaxf("column name %q collides with a reserved variable", name)
		}
		key := prefix + "." + name
		init := false
		if re := regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`); re.MatchString(text) {
			init = true
		}
		vm[key] = VariableInfo{Initialize: init, Index: idx(i)}
	}
	return nil
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func escapeName(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	name = strings.ReplaceAll(name, `"`, `\"`)
	name = strings.ReplaceAll(name, `'`, `\'`)
	return name
}

// CheckAmbiguous fails when both iterators expose headers and a bare
// (non-prefixed) header name used in text matches a column present in
// both, unless the caller opted into normalizeColumnNames=false.
func CheckAmbiguous(text string, headerA, headerB []string, normalizeColumnNames bool) error {
	if !normalizeColumnNames || len(headerA) == 0 || len(headerB) == 0 {
		return nil
	}
	common := map[string]bool{}
	for _, a := range headerA {
		for _, b := range headerB {
			if a == b && identifierRe.MatchString(a) {
				common[a] = true
			}
		}
	}
	for name := range common {
		if referencedBare(text, name) {
			return rerr.Syntaxf("AMBIGUOUS_COLUMN(%s): column name is present in both input and join tables", name)
		}
	}
	return nil
}

// ResolveBare is the final resolution pass: every header name the
// query references bare (unprefixed and unqualified) is registered
// under the name itself, so `SELECT name WHERE age > 30` works against
// a headered input. A name present in both headers is claimed for the
// input table; when the ambiguity check is enabled, CheckAmbiguous has
// already rejected that query, so the claim is only ever reached with
// the check turned off. Runs after CheckAmbiguous.
func ResolveBare(text string, headerA, headerB []string, vmA, vmB VariableMap) {
	inA := map[string]bool{}
	for i, name := range headerA {
		if !bareEligible(name) {
			continue
		}
		inA[name] = true
		if vmA != nil && referencedBare(text, name) {
			if _, taken := vmA[name]; !taken {
				vmA[name] = VariableInfo{Initialize: true, Index: idx(i)}
			}
		}
	}
	if vmB == nil {
		return
	}
	for i, name := range headerB {
		if !bareEligible(name) || inA[name] {
			continue
		}
		if referencedBare(text, name) {
			if _, taken := vmB[name]; !taken {
				vmB[name] = VariableInfo{Initialize: true, Index: idx(i)}
			}
		}
	}
}

// bareEligible reports whether a header name may be registered as a
// bare variable: it must be identifier-shaped and must not shadow a
// reserved pseudo-variable.
func bareEligible(name string) bool {
	return identifierRe.MatchString(name) && !reserved[name]
}

// referencedBare reports whether name occurs in text as a bare
// reference: word-bounded, not reached through an `a.`/`b.` qualifier,
// and not the head of a call (a name followed by '(' is a function,
// not a column).
func referencedBare(text, name string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if !isBareReference(text, loc[0]) {
			continue
		}
		rest := strings.TrimLeft(text[loc[1]:], " ")
		if strings.HasPrefix(rest, "(") {
			continue
		}
		return true
	}
	return false
}

// isBareReference reports whether the match starting at pos is not
// immediately preceded by "a." / "b." (i.e. it is a bare reference,
// not an already-qualified attribute access).
func isBareReference(text string, pos int) bool {
	if pos < 2 {
		return true
	}
	if text[pos-1] != '.' {
		return true
	}
	prev := rune(text[pos-2])
	return !(unicode.IsLetter(prev) || unicode.IsDigit(prev))
}
