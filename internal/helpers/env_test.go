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

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFlag(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		def      bool
		expected bool
	}{
		{"unset uses default true", nil, true, true},
		{"unset uses default false", nil, false, false},
		{"true", map[string]string{"AVROINGEST_TEST_A": "true"}, false, true},
		{"mixed case yes", map[string]string{"AVROINGEST_TEST_A": "Yes"}, false, true},
		{"any other value", map[string]string{"AVROINGEST_TEST_A": "verbose"}, false, true},
		{"zero", map[string]string{"AVROINGEST_TEST_A": "0"}, true, false},
		{"disabled with spaces", map[string]string{"AVROINGEST_TEST_A": " disabled\t"}, true, false},
		{"blank is unset", map[string]string{"AVROINGEST_TEST_A": "   "}, true, true},
		{"first set name wins", map[string]string{"AVROINGEST_TEST_A": "off", "AVROINGEST_TEST_B": "on"}, true, false},
		{"falls through to second", map[string]string{"AVROINGEST_TEST_B": "1"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AVROINGEST_TEST_A", "")
			t.Setenv("AVROINGEST_TEST_B", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, EnvFlag(tt.def, "AVROINGEST_TEST_A", "AVROINGEST_TEST_B"))
		})
	}
}
