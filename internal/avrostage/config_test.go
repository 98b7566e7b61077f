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

package avrostage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Config{InputPath: "/x.avro"}.Validate())

	err := Config{
		StorageLevel:   "tape",
		UnionMissing:   "maybe",
		PartitionCount: -1,
		DebugRows:      -2,
		ColumnNames:    []string{"a", " "},
		Sink:           SinkConfig{Destination: "/out", Compression: "lzma"},
	}.Validate()
	require.Error(t, err)
	assert.True(t, dataset.IsConfig(err))
	for _, field := range []string{"input_path", "storage_level", "union_missing", "partition_count", "debug_rows", "column_names", "sink.compression"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{InputPath: "/x", StorageLevel: "MEMORY_ONLY", UnionMissing: "FAIL"}.WithDefaults()
	assert.Equal(t, dataset.StorageMemory, c.StorageLevel)
	assert.Equal(t, UnionMissingFail, c.UnionMissing)
	assert.Equal(t, dataset.DefaultOutputName, c.OutputName)
	assert.Equal(t, "source", c.SQLViewName)
	assert.Equal(t, DefaultDebugRows, c.DebugRows)

	d := Config{}.WithDefaults()
	assert.Equal(t, dataset.DefaultStorageLevel, d.StorageLevel)
	assert.Equal(t, UnionMissingSkip, d.UnionMissing)
}

func TestConfig_UnionTargets(t *testing.T) {
	assert.Empty(t, Config{OutputName: "main"}.unionTargets())
	assert.Equal(t, []string{"a"}, Config{UnionWith: "a", OutputName: "main"}.unionTargets())
	assert.Equal(t, []string{"a", "main"}, Config{UnionWith: "a", UnionWithExisting: true, OutputName: "main"}.unionTargets())
	assert.Equal(t, []string{"main"}, Config{UnionWith: "main", UnionWithExisting: true, OutputName: "main"}.unionTargets())
}
