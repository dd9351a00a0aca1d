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

// Package rbql is an embeddable query engine: a SQL-like surface
// language with host-language scalar expressions embedded verbatim,
// compiled into a streaming row processor and run as a single pass
// over an input iterator. Run is the one entry point that ties the
// front end (lex/clause/resolve/rewrite/compile) to the back end
// (join/agg/writer/exec); everything else in this module is a
// collaborator reached through the Source/Sink/TableRegistry
// contracts.
package rbql

import (
	"github.com/google/uuid"

	"github.com/rbql-go/rbql/compile"
	"github.com/rbql-go/rbql/exec"
	"github.com/rbql-go/rbql/hostexpr"
	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/source"
)

// Options bundles the host-supplied configuration that shapes how a
// query is compiled and run but is never part of the query text
// itself.
type Options struct {
	// NormalizeColumnNames enables the AMBIGUOUS_COLUMN check
	// whenever both the primary and join inputs expose a header. Defaults to true in DefaultOptions; a caller may turn
	// it off to allow a bare header name that happens to collide
	// across both tables.
	NormalizeColumnNames bool `yaml:"normalize_column_names"`
	// Debug controls whether internal errors surface raw or get
	// wrapped into the rerr taxonomy before reaching the caller.
	Debug bool `yaml:"debug"`
	// Funcs is the plugin function table consulted by any call in a
	// compiled expression that isn't one of the sub-language's
	// built-ins (int/float/str/len).
	Funcs map[string]hostexpr.Func `yaml:"-"`
}

// DefaultOptions returns the engine's defaults: column-name
// normalization on, debug mode off, no registered plugin functions.
func DefaultOptions() Options {
	return Options{NormalizeColumnNames: true}
}

// Result is returned alongside a successful query: a correlation id
// for log/error cross-referencing and every non-fatal warning
// accumulated by the primary input, the join input (if any), and the
// output sink. When Run fails, the returned Result carries only the
// RunID; Warnings stays empty.
type Result struct {
	RunID    string
	Warnings []string
}

// Run compiles query against primary's (and, if the query has a JOIN
// clause, the join table's) declared column metadata, then executes
// the compiled plan as a single streaming pass, pushing rows to sink.
//
// primary may be nil only if query has a FROM clause and registry is
// non-nil. The JOIN table is always looked up in registry, so registry
// is required whenever the query has a JOIN clause; when primary is
// non-nil, a FROM clause is not looked up.
func Run(query string, opt Options, primary source.Source, registry source.TableRegistry, sink source.Sink) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}

	fromTable, joinTable, hasJoin, err := compile.TableRefs(query)
	if err != nil {
		return res, unwrap(opt, err)
	}

	if primary == nil {
		if fromTable == "" {
			return res, unwrap(opt, rerr.Parsef("no input iterator bound and query has no FROM clause"))
		}
		primary, err = resolveTable(registry, fromTable, "a")
		if err != nil {
			return res, unwrap(opt, err)
		}
	}

	var joinSrc source.Source
	if hasJoin && joinTable != "" {
		joinSrc, err = resolveTable(registry, joinTable, "b")
		if err != nil {
			return res, unwrap(opt, err)
		}
	}

	copt := compile.Options{
		HeaderA:              primary.GetHeader(),
		NormalizeColumnNames: opt.NormalizeColumnNames,
	}
	if joinSrc != nil {
		copt.HeaderB = joinSrc.GetHeader()
	}

	plan, err := compile.Compile(query, copt)
	if err != nil {
		return res, unwrap(opt, err)
	}

	if err := exec.Run(plan, primary, joinSrc, sink, opt.Funcs); err != nil {
		return res, unwrap(opt, err)
	}

	res.Warnings = append(res.Warnings, primary.GetWarnings()...)
	if joinSrc != nil {
		res.Warnings = append(res.Warnings, joinSrc.GetWarnings()...)
	}
	res.Warnings = append(res.Warnings, sink.GetWarnings()...)
	return res, nil
}

func resolveTable(registry source.TableRegistry, table, alias string) (source.Source, error) {
	if registry == nil {
		return nil, rerr.Syntaxf("JOIN_TABLE_MISSING: no table registry configured for table %q", table)
	}
	return registry.GetIteratorByTableID(table, alias)
}

// unwrap implements the debug-mode switch: in debug mode the
// original error is returned untouched (useful for host-side stack
// traces during development); otherwise every error is normalized
// into the rerr taxonomy's {type, message} shape via rerr.ToHost
// before being handed back, so a caller can always type-switch on
// rerr.Typed regardless of which internal package raised it.
func unwrap(opt Options, err error) error {
	if err == nil {
		return nil
	}
	if opt.Debug {
		return err
	}
	if _, ok := err.(rerr.Typed); ok {
		return err
	}
	host := rerr.ToHost(err)
	return rerr.Runtimef(0, "%s", host.Message)
}
