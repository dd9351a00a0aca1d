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

package rbql

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/rbql-go/rbql/rerr"
)

// LoadOptions reads a YAML file of the form
//
//	normalize_column_names: true
//	debug: false
//
// into an Options value, starting from DefaultOptions so an absent
// key keeps its default. Funcs holds Go closures and can't come from
// YAML; set it on the returned value directly if the embedder needs
// plugin functions.
func LoadOptions(path string) (Options, error) {
	opt := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opt, rerr.IOf("reading options file %q: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return opt, rerr.IOf("parsing options file %q: %v", path, err)
	}
	return opt, nil
}
