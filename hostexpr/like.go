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
	"regexp"
	"strings"
	"sync"
)

// likeCache memoizes the LIKE->regexp translation, since the same
// pattern is typically evaluated once per input record.
var likeCache sync.Map // string -> *regexp.Regexp

// likeRegexp compiles a SQL LIKE pattern ('%' matches any run of
// characters, '_' matches exactly one, every other character matches
// itself) into an anchored regexp.
func likeRegexp(pattern string) (*regexp.Regexp, error) {
	if v, ok := likeCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile("(?s)" + b.String())
	if err != nil {
		return nil, err
	}
	likeCache.Store(pattern, re)
	return re, nil
}

// Like reports whether s matches the SQL LIKE pattern.
func Like(s, pattern string) (bool, error) {
	re, err := likeRegexp(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}
