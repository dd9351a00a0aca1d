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

package source

import (
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
)

// TableSource is a reference Source backed by a fixed in-memory
// table. It supports neither sparse variable resolution nor genuine
// I/O warnings; GetVariablesMap always returns nil. The resolver does
// not call GetVariablesMap and always scans the whole header.
type TableSource struct {
	Header []string
	Rows   []value.Record

	pos int
}

func NewTableSource(header []string, rows []value.Record) *TableSource {
	return &TableSource{Header: header, Rows: rows}
}

func (t *TableSource) GetVariablesMap(queryText string) map[string]bool { return nil }

func (t *TableSource) GetHeader() []string { return t.Header }

func (t *TableSource) GetRecord() (value.Record, error) {
	if t.pos >= len(t.Rows) {
		return nil, nil
	}
	r := t.Rows[t.pos]
	t.pos++
	return r, nil
}

func (t *TableSource) GetWarnings() []string { return nil }

func (t *TableSource) Finish() error { t.pos = len(t.Rows); return nil }

// MemorySink is a reference Sink that accumulates every written row;
// used by cmd/rbql and tests that want the whole result materialized.
type MemorySink struct {
	Header []string
	Rows   []value.Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(rec value.Record) (bool, error) {
	s.Rows = append(s.Rows, rec)
	return true, nil
}

func (s *MemorySink) SetHeader(header []string) { s.Header = header }

func (s *MemorySink) Finish() error { return nil }

func (s *MemorySink) GetWarnings() []string { return nil }

// StaticRegistry is a reference TableRegistry backed by a fixed name
// -> Source map, suitable for tests and cmd/rbql where the JOIN
// table is supplied directly rather than looked up from a file path
// or database.
type StaticRegistry struct {
	Tables map[string]Source
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{Tables: map[string]Source{}}
}

func (r *StaticRegistry) GetIteratorByTableID(id string, alias string) (Source, error) {
	src, ok := r.Tables[id]
	if !ok {
		return nil, rerr.Syntaxf("JOIN_TABLE_MISSING: no table registered for %q", id)
	}
	return src, nil
}
