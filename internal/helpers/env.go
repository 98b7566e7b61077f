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

// Package helpers holds small process-level utilities shared by the CLI and
// its configuration layer.
package helpers

import (
	"os"
	"strings"
)

// EnvFlag reports whether the first of names that is set to a non-empty value
// is truthy. "false", "0", "no", "off", "disable" and "disabled" are false,
// case insensitive; any other non-empty value is true. When none of names is
// set, defaultValue is returned.
func EnvFlag(defaultValue bool, names ...string) bool {
	for _, name := range names {
		v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
		if v == "" {
			continue
		}
		switch v {
		case "false", "0", "no", "off", "disable", "disabled":
			return false
		default:
			return true
		}
	}
	return defaultValue
}
