// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package pathresolve turns configured input locations into local files the
// Avro reader can open.
package pathresolve

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

// Substitute expands ${VAR} and $VAR references in s. Variables are looked up
// in env first and then in the process environment. "$$" yields a literal "$".
// Any undefined variable is a ConfigError naming all of them.
func Substitute(s string, env map[string]string) (string, error) {
	missing := map[string]struct{}{}
	out := os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		if v, ok := env[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		missing[name] = struct{}{}
		return ""
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", dataset.NewConfigError("path", fmt.Sprintf("undefined variable(s) %s in %q", strings.Join(names, ", "), s))
	}
	return out, nil
}
