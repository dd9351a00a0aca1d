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

// Package source defines the host-facing collaborator contracts
// (input iterator, output writer, table registry) and provides a
// minimal in-memory reference implementation used by tests and
// cmd/rbql. Concrete adapters (CSV, a database driver, etc.) live
// outside this module.
package source

import "github.com/rbql-go/rbql/value"

// Source is the input iterator contract.
type Source interface {
	// GetVariablesMap may inspect the query text to register only
	// the header columns the query actually references; a source
	// that doesn't support sparse resolution can ignore queryText
	// and return nil.
	GetVariablesMap(queryText string) map[string]bool
	// GetHeader returns the column names, or nil if the source has
	// no header row.
	GetHeader() []string
	// GetRecord returns the next record, or nil with a nil error at
	// end of stream.
	GetRecord() (value.Record, error)
	// GetWarnings returns any non-fatal warnings accumulated so far
	// (inconsistent field counts, BOM removal, etc).
	GetWarnings() []string
	// Finish releases resources; idempotent.
	Finish() error
}

// Next adapts TableSource to join.RecordSource so the same in-memory table
// can serve as a JOIN's right-hand side without an import cycle
// (package join only depends on a bare Next() method).
func (t *TableSource) Next() (value.Record, error) { return t.GetRecord() }

// Sink is the output writer contract.
type Sink interface {
	Write(rec value.Record) (bool, error)
	SetHeader(header []string)
	Finish() error
	GetWarnings() []string
}

// TableRegistry resolves a table identifier named in FROM/JOIN to a
// Source.
type TableRegistry interface {
	GetIteratorByTableID(id string, alias string) (Source, error)
}
