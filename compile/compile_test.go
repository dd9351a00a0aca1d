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

package compile

import (
	"testing"

	"github.com/rbql-go/rbql/clause"
)

func TestCompileSimpleSelect(t *testing.T) {
	p, err := Compile(`SELECT a1, a2 WHERE a2 > 10`, Options{
		HeaderA:              []string{"name", "age"},
		NormalizeColumnNames: true,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Kind != clause.Select {
		t.Fatalf("expected Select kind")
	}
	if len(p.OutputHeader) != 2 || p.OutputHeader[0] != "name" || p.OutputHeader[1] != "age" {
		t.Fatalf("unexpected output header: %v", p.OutputHeader)
	}
	if p.Where == nil {
		t.Fatalf("expected WHERE expression")
	}
}

func TestCompileJoinQuery(t *testing.T) {
	p, err := Compile(`SELECT a.id, b.score LEFT JOIN B.txt ON a.id == b.id`, Options{
		HeaderA:              []string{"id", "name"},
		HeaderB:              []string{"id", "score"},
		NormalizeColumnNames: true,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.JoinKind != clause.Left {
		t.Fatalf("expected LEFT JOIN, got %v", p.JoinKind)
	}
	if len(p.JoinKeys) != 1 {
		t.Fatalf("expected 1 join key pair, got %d", len(p.JoinKeys))
	}
	if len(p.OutputHeader) != 2 || p.OutputHeader[0] != "id" || p.OutputHeader[1] != "score" {
		t.Fatalf("unexpected output header: %v", p.OutputHeader)
	}
}

func TestCompileUpdate(t *testing.T) {
	p, err := Compile(`UPDATE SET a1 = a1 + 1 WHERE a2 > 0`, Options{
		HeaderA: []string{"count", "age"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Kind != clause.Update {
		t.Fatalf("expected Update kind")
	}
	if len(p.Update) != 1 || p.Update[0].TargetIndex != 0 {
		t.Fatalf("unexpected update plan: %+v", p.Update)
	}
}

func TestCompileAggregateWithOrderByFails(t *testing.T) {
	_, err := Compile(`SELECT a1, SUM(a2) ORDER BY a1`, Options{
		HeaderA: []string{"name", "age"},
	})
	if err == nil {
		t.Fatalf("expected aggregate_with_sort_or_distinct error")
	}
}

func TestCompileStarExpansionHeader(t *testing.T) {
	p, err := Compile(`SELECT *`, Options{
		HeaderA: []string{"name", "age"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(p.OutputHeader) != 2 {
		t.Fatalf("expected full header passthrough, got %v", p.OutputHeader)
	}
}
