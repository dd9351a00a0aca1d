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

package lex

import (
	"strings"
	"testing"
)

func TestPreprocessStripsComments(t *testing.T) {
	r, err := Preprocess("SELECT a1 # this is a comment\nWHERE a2 > 1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(r.Code, "comment") {
		t.Fatalf("comment not stripped: %q", r.Code)
	}
}

func TestPreprocessExtractsLiterals(t *testing.T) {
	r, err := Preprocess(`SELECT a1 WHERE a1 == "abc"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Literals) != 1 {
		t.Fatalf("expected 1 literal, got %d: %v", len(r.Literals), r.Literals)
	}
	if strings.Contains(r.Code, "abc") {
		t.Fatalf("literal not replaced: %q", r.Code)
	}
	back := r.Combine(r.Code)
	if back != `SELECT a1 WHERE a1 == "abc"` {
		t.Fatalf("combine mismatch: %q", back)
	}
}

func TestPreprocessEscapedQuote(t *testing.T) {
	r, err := Preprocess(`SELECT "a\"b"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Literals) != 1 {
		t.Fatalf("expected 1 literal, got %d", len(r.Literals))
	}
	lit, err := r.LiteralAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if lit != `a"b` {
		t.Fatalf("unexpected literal content: %q", lit)
	}
}

func TestPreprocessUnterminatedLiteral(t *testing.T) {
	_, err := Preprocess(`SELECT "abc`)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	r, err := Preprocess("SELECT   a1,\t\ta2\nWHERE a1>1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(r.Code, "  ") {
		t.Fatalf("whitespace not collapsed: %q", r.Code)
	}
}
