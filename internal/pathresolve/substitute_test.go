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

package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

func TestSubstitute(t *testing.T) {
	t.Setenv("AVROINGEST_TEST_ROOT", "/data")
	t.Setenv("AVROINGEST_TEST_DAY", "from-process")

	tests := []struct {
		name string
		in   string
		env  map[string]string
		want string
	}{
		{"no variables", "/tmp/in.avro", nil, "/tmp/in.avro"},
		{"braced process env", "${AVROINGEST_TEST_ROOT}/in.avro", nil, "/data/in.avro"},
		{"bare process env", "$AVROINGEST_TEST_ROOT/in.avro", nil, "/data/in.avro"},
		{"stage env wins", "/x/${AVROINGEST_TEST_DAY}", map[string]string{"AVROINGEST_TEST_DAY": "2024-01-01"}, "/x/2024-01-01"},
		{"stage env only", "s3://${bucket}/p", map[string]string{"bucket": "b"}, "s3://b/p"},
		{"escaped dollar", "/x/$$y", nil, "/x/$y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.in, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubstitute_Undefined(t *testing.T) {
	_, err := Substitute("/x/${AVROINGEST_NOPE_B}/${AVROINGEST_NOPE_A}", nil)
	require.Error(t, err)
	assert.True(t, dataset.IsConfig(err))
	assert.Contains(t, err.Error(), "AVROINGEST_NOPE_A, AVROINGEST_NOPE_B")
}
