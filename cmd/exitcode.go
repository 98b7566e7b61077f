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

package cmd

import "github.com/cardinalhq/avroingest/internal/dataset"

// Process exit codes by error kind.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitSourceRead     = 3
	ExitSchemaMismatch = 4
	ExitQuery          = 5
)

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case dataset.IsConfig(err):
		return ExitConfig
	case dataset.IsSourceRead(err):
		return ExitSourceRead
	case dataset.IsSchemaMismatch(err):
		return ExitSchemaMismatch
	case dataset.IsQuery(err):
		return ExitQuery
	default:
		return ExitFailure
	}
}
