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

package rewrite

import (
	"regexp"
	"strings"

	"github.com/rbql-go/rbql/resolve"
	"github.com/rbql-go/rbql/rerr"
)

var exceptHead = regexp.MustCompile(`(?i)^EXCEPT\s*\(?\s*(.*?)\s*\)?$`)

// rewriteExcept parses an EXCEPT item's comma-separated list of
// input column references into the set of excluded indices. The surviving columns are spliced from the actual
// record at row time (package exec), so EXCEPT works against
// headerless inputs too; the output header is derived symmetrically
// by the compiler.
func rewriteExcept(item string, vmA resolve.VariableMap) (*SelectItem, error) {
	m := exceptHead.FindStringSubmatch(item)
	if m == nil {
		return nil, rerr.Parsef("malformed EXCEPT clause: %s", item)
	}
	excluded := map[int]bool{}
	for _, col := range SplitTopLevel(m[1]) {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		info, ok := vmA[col]
		if !ok || info.Index == nil {
			return nil, rerr.Syntaxf("unknown column %q in EXCEPT", col)
		}
		excluded[*info.Index] = true
	}
	if len(excluded) == 0 {
		return nil, rerr.Parsef("EXCEPT requires at least one column reference: %s", item)
	}
	return &SelectItem{IsExcept: true, ExceptIndices: excluded}, nil
}
