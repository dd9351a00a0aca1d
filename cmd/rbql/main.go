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

// Command rbql is a thin example driver over the rbql package: it
// reads a naive comma-split table from a file (just enough splitting
// to run a query against a real file by hand) and writes the query
// result the same way. It exists for manual testing and
// documentation, not as a deliverable input/output adapter.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rbql-go/rbql"
	"github.com/rbql-go/rbql/source"
	"github.com/rbql-go/rbql/value"
)

func main() {
	cmd := flag.NewFlagSet("rbql", flag.ExitOnError)
	query := cmd.String("q", "", "query text (required)")
	input := cmd.String("input", "", "path to the primary comma-split table, '-' for stdin")
	hasHeader := cmd.Bool("header", false, "treat the input's first line as a header row")
	joinName := cmd.String("join-table", "", "table name the query's JOIN clause refers to")
	joinPath := cmd.String("join-input", "", "path to the comma-split table backing -join-table")
	debug := cmd.Bool("debug", false, "surface internal errors unwrapped")

	if err := cmd.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	logger := log.New(os.Stderr, "", log.Lshortfile)

	if *query == "" {
		logger.Fatal("missing required -q query flag")
	}
	if *input == "" {
		logger.Fatal("missing required -input flag")
	}

	primary, err := loadTable(*input, *hasHeader)
	if err != nil {
		logger.Fatalf("reading -input: %v", err)
	}

	registry := source.NewStaticRegistry()
	if *joinName != "" {
		if *joinPath == "" {
			logger.Fatal("-join-table given without -join-input")
		}
		joinSrc, err := loadTable(*joinPath, *hasHeader)
		if err != nil {
			logger.Fatalf("reading -join-input: %v", err)
		}
		registry.Tables[*joinName] = joinSrc
	}

	opt := rbql.DefaultOptions()
	opt.Debug = *debug

	sink := source.NewMemorySink()
	result, err := rbql.Run(*query, opt, primary, registry, sink)
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}
	for _, w := range result.Warnings {
		logger.Printf("warning: %s", w)
	}

	writeCSV(os.Stdout, sink)
}

// loadTable reads path (or stdin when path is "-") as comma-separated
// lines into an in-memory source.TableSource. This is a manual-testing
// convenience, not a dialect-aware record source.
func loadTable(path string, hasHeader bool) (*source.TableSource, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}

	var header []string
	var rows []value.Record
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if first && hasHeader {
			header = fields
			first = false
			continue
		}
		first = false
		rows = append(rows, toRecord(fields))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return source.NewTableSource(header, rows), nil
}

func toRecord(fields []string) value.Record {
	out := make(value.Record, len(fields))
	for i, f := range fields {
		out[i] = value.FromText(f)
	}
	return out
}

func writeCSV(w *os.File, sink *source.MemorySink) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	if sink.Header != nil {
		fmt.Fprintln(bw, strings.Join(sink.Header, ","))
	}
	for _, row := range sink.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = value.AsText(v)
		}
		fmt.Fprintln(bw, strings.Join(cells, ","))
	}
}
