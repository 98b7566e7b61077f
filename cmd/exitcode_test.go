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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", dataset.NewConfigError("input_path", "is required"), ExitConfig},
		{"aggregated config", multierror.Append(nil, dataset.NewConfigError("a", "b")), ExitConfig},
		{"source", dataset.NewSourceReadError("/x", errors.New("missing")), ExitSourceRead},
		{"wrapped source", fmt.Errorf("run: %w", dataset.NewSourceReadError("/x", nil)), ExitSourceRead},
		{"schema", dataset.NewSchemaMismatch("3 names for 2 columns"), ExitSchemaMismatch},
		{"query", dataset.NewQueryError("SELECT", errors.New("bad")), ExitQuery},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
