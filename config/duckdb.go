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
	"fmt"
	"os"

	"github.com/cardinalhq/avroingest/internal/duckdbx"
	"github.com/cardinalhq/avroingest/internal/helpers"
)

// DuckDBConfig holds DuckDB-specific configuration
type DuckDBConfig struct {
	MemoryLimit          int64  `mapstructure:"memory_limit"`            // Memory limit in MB (0 = unlimited)
	TempDirectory        string `mapstructure:"temp_directory"`          // Directory for spill files
	MaxTempDirectorySize string `mapstructure:"max_temp_directory_size"` // Max size for temp directory
	Threads              int    `mapstructure:"threads"`                 // 0 = GOMAXPROCS
	DatabasePath         string `mapstructure:"database_path"`           // empty = private temp file
}

// DefaultDuckDBConfig returns default DuckDB configuration
func DefaultDuckDBConfig() DuckDBConfig {
	return DuckDBConfig{}
}

// GetTempDirectory returns the configured temp directory
// Defaults to TMPDIR environment variable if not configured
func (c *DuckDBConfig) GetTempDirectory() string {
	if c.TempDirectory != "" {
		return c.TempDirectory
	}
	if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
		return tmpdir
	}
	return "/tmp"
}

// GetMaxTempDirectorySize returns the configured max temp directory size.
// Defaults to 90% of the temp directory's volume size if not configured.
func (c *DuckDBConfig) GetMaxTempDirectorySize() string {
	if c.MaxTempDirectorySize != "" {
		return c.MaxTempDirectorySize
	}
	if usage, err := helpers.StatVolume(c.GetTempDirectory()); err == nil {
		// DuckDB wants a formatted value
		maxSizeGB := uint64(float64(usage.TotalBytes) * 0.9 / (1024 * 1024 * 1024))
		if maxSizeGB > 0 {
			return fmt.Sprintf("%dGB", maxSizeGB)
		}
	}
	return ""
}

// Settings converts the configuration into DSN settings for duckdbx.
func (c *DuckDBConfig) Settings() duckdbx.DuckDBSettings {
	return duckdbx.DuckDBSettings{
		MemoryLimitMB:        c.MemoryLimit,
		TempDirectory:        c.TempDirectory,
		MaxTempDirectorySize: c.GetMaxTempDirectorySize(),
		Threads:              c.Threads,
	}
}

// DBOptions returns the duckdbx options for this configuration.
func (c *DuckDBConfig) DBOptions() []duckdbx.DBOption {
	opts := []duckdbx.DBOption{duckdbx.WithDuckDBSettings(c.Settings())}
	if c.DatabasePath != "" {
		opts = append(opts, duckdbx.WithDatabasePath(c.DatabasePath))
	}
	return opts
}
