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

package hostexpr

import (
	"strings"

	"github.com/rbql-go/rbql/rerr"
	"github.com/rbql-go/rbql/value"
)

// EvalList evaluates an UNNEST/UNFOLD argument. Unlike Eval, it may
// produce more than one Value: the sub-language has no first-class
// list type, so the only list-producing forms are the built-ins
// below; anything else is wrapped as a single-element list, matching
// a degenerate UNNEST over a scalar.
func EvalList(n Node, ctx *EvalContext) ([]value.Value, error) {
	if call, ok := n.(*Call); ok {
		switch strings.ToLower(call.Name) {
		case "split":
			return evalSplit(call, ctx)
		}
	}
	v, err := Eval(n, ctx)
	if err != nil {
		return nil, err
	}
	return []value.Value{v}, nil
}

func evalSplit(call *Call, ctx *EvalContext) ([]value.Value, error) {
	if len(call.Args) != 2 {
		return nil, rerr.Parsef("split(...) takes exactly two arguments (receiver, separator)")
	}
	recv, err := Eval(call.Args[0], ctx)
	if err != nil {
		return nil, err
	}
	sepV, err := Eval(call.Args[1], ctx)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(value.AsText(recv), value.AsText(sepV))
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.FromText(p)
	}
	return out, nil
}
