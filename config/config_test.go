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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dataset.DefaultOutputName, cfg.Ingest.OutputName)
	assert.Equal(t, dataset.DefaultStorageLevel, cfg.Ingest.StorageLevel)
	assert.Equal(t, "source", cfg.Ingest.SQLViewName)
	assert.Empty(t, cfg.Ingest.InputPath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AVROINGEST_INGEST_INPUT_PATH", "s3://bucket/in/")
	t.Setenv("AVROINGEST_INGEST_COLUMN_NAMES", "a,b,c")
	t.Setenv("AVROINGEST_INGEST_DEBUG", "true")
	t.Setenv("AVROINGEST_INGEST_SINK_DESTINATION", "/out")
	t.Setenv("AVROINGEST_DUCKDB_MEMORY_LIMIT", "512")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/in/", cfg.Ingest.InputPath)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Ingest.ColumnNames)
	assert.True(t, cfg.Ingest.Debug)
	assert.Equal(t, "/out", cfg.Ingest.Sink.Destination)
	assert.Equal(t, int64(512), cfg.DuckDB.MemoryLimit)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
ingest:
  input_path: /data/in.avro
  partition_columns: [id]
  partition_count: 4
  storage_level: disk
  env:
    day: "2024-01-01"
duckdb:
  threads: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avroingest.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/in.avro", cfg.Ingest.InputPath)
	assert.Equal(t, []string{"id"}, cfg.Ingest.PartitionColumns)
	assert.Equal(t, 4, cfg.Ingest.PartitionCount)
	assert.Equal(t, dataset.StorageDisk, cfg.Ingest.StorageLevel)
	assert.Equal(t, map[string]string{"day": "2024-01-01"}, cfg.Ingest.Env)
	assert.Equal(t, 2, cfg.DuckDB.Threads)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, dataset.IsConfig(err))
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AVROINGEST_INGEST_OUTPUT_NAME", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("output-name", "", "")
	require.NoError(t, fs.Parse([]string{"--output-name", "from-flag"}))

	cfg, err := Load("", func(v *viper.Viper) error {
		return v.BindPFlag("ingest.output_name", fs.Lookup("output-name"))
	})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Ingest.OutputName)
}

func TestDuckDBSettings(t *testing.T) {
	c := DuckDBConfig{MemoryLimit: 100, MaxTempDirectorySize: "5GB", Threads: 3, TempDirectory: "/spill"}
	s := c.Settings()
	assert.Equal(t, int64(100), s.MemoryLimitMB)
	assert.Equal(t, "5GB", s.MaxTempDirectorySize)
	assert.Equal(t, 3, s.Threads)
	assert.Equal(t, "/spill", s.TempDirectory)
	assert.Len(t, c.DBOptions(), 1)

	c.DatabasePath = "/tmp/x.ddb"
	assert.Len(t, c.DBOptions(), 2)
}

func TestGetTempDirectory(t *testing.T) {
	t.Setenv("TMPDIR", "/custom-tmp")
	c := DuckDBConfig{}
	assert.Equal(t, "/custom-tmp", c.GetTempDirectory())
	c.TempDirectory = "/x"
	assert.Equal(t, "/x", c.GetTempDirectory())
}
