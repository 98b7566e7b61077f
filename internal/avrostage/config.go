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
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/sink"
	"github.com/cardinalhq/avroingest/internal/transform"
)

// UnionMissingPolicy decides what happens when a union target is not registered.
type UnionMissingPolicy string

const (
	UnionMissingSkip UnionMissingPolicy = "skip"
	UnionMissingFail UnionMissingPolicy = "fail"
)

// DefaultDebugRows is the number of sample rows logged in debug mode.
const DefaultDebugRows = 5

// Config describes one ingestion run.
type Config struct {
	// InputPath is a local path, file:// URL, or object store URL. ${VAR}
	// references are substituted from Env and the process environment.
	InputPath string `mapstructure:"input_path" yaml:"input_path"`

	// ColumnNames renames columns by position. It takes precedence over
	// ColumnNamesFile.
	ColumnNames     []string `mapstructure:"column_names" yaml:"column_names"`
	ColumnNamesFile string   `mapstructure:"column_names_file" yaml:"column_names_file"`

	SQL         string `mapstructure:"sql" yaml:"sql"`
	SQLViewName string `mapstructure:"sql_view_name" yaml:"sql_view_name"`

	// UnionWith names a registered dataset to append. UnionWithExisting
	// appends whatever is registered under OutputName.
	UnionWith         string             `mapstructure:"union_with" yaml:"union_with"`
	UnionWithExisting bool               `mapstructure:"union_with_existing" yaml:"union_with_existing"`
	UnionMissing      UnionMissingPolicy `mapstructure:"union_missing" yaml:"union_missing"`

	PartitionColumns []string `mapstructure:"partition_columns" yaml:"partition_columns"`
	PartitionCount   int      `mapstructure:"partition_count" yaml:"partition_count"`

	StorageLevel dataset.StorageLevel `mapstructure:"storage_level" yaml:"storage_level"`
	OutputName   string               `mapstructure:"output_name" yaml:"output_name"`

	Debug     bool `mapstructure:"debug" yaml:"debug"`
	DebugRows int  `mapstructure:"debug_rows" yaml:"debug_rows"`

	Env map[string]string `mapstructure:"env" yaml:"env"`

	Sink SinkConfig `mapstructure:"sink" yaml:"sink"`
}

// SinkConfig configures the Parquet sink. An empty Destination disables it.
type SinkConfig struct {
	Dataset     string `mapstructure:"dataset" yaml:"dataset"`
	Destination string `mapstructure:"destination" yaml:"destination"`
	Compression string `mapstructure:"compression" yaml:"compression"`
}

// Enabled reports whether a destination is configured.
func (c SinkConfig) Enabled() bool {
	return c.Destination != ""
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		SQLViewName:  transform.DefaultViewName,
		UnionMissing: UnionMissingSkip,
		StorageLevel: dataset.DefaultStorageLevel,
		OutputName:   dataset.DefaultOutputName,
		DebugRows:    DefaultDebugRows,
	}
}

// WithDefaults returns a copy of c with unset fields defaulted and the
// storage level and union policy normalized. Invalid values are left for
// Validate to report.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SQLViewName == "" {
		c.SQLViewName = d.SQLViewName
	}
	c.UnionMissing = UnionMissingPolicy(strings.ToLower(strings.TrimSpace(string(c.UnionMissing))))
	if c.UnionMissing == "" {
		c.UnionMissing = d.UnionMissing
	}
	if level, err := dataset.ParseStorageLevel(string(c.StorageLevel)); err == nil {
		c.StorageLevel = level
	}
	if c.OutputName == "" {
		c.OutputName = d.OutputName
	}
	if c.DebugRows == 0 {
		c.DebugRows = d.DebugRows
	}
	return c
}

// Validate reports every problem with c at once. Each one is a ConfigError.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...any) {
		result = multierror.Append(result, dataset.NewConfigError(field, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(c.InputPath) == "" {
		add("input_path", "is required")
	}
	for i, name := range c.ColumnNames {
		if strings.TrimSpace(name) == "" {
			add("column_names", "entry %d is empty", i+1)
		}
	}
	if _, err := dataset.ParseStorageLevel(string(c.StorageLevel)); err != nil {
		add("storage_level", "%v", err)
	}
	switch UnionMissingPolicy(strings.ToLower(string(c.UnionMissing))) {
	case "", UnionMissingSkip, UnionMissingFail:
	default:
		add("union_missing", "must be %q or %q, got %q", UnionMissingSkip, UnionMissingFail, c.UnionMissing)
	}
	if c.PartitionCount < 0 {
		add("partition_count", "must not be negative, got %d", c.PartitionCount)
	}
	for i, col := range c.PartitionColumns {
		if strings.TrimSpace(col) == "" {
			add("partition_columns", "entry %d is empty", i+1)
		}
	}
	if c.DebugRows < 0 {
		add("debug_rows", "must not be negative, got %d", c.DebugRows)
	}
	if c.Sink.Enabled() {
		ps := &sink.ParquetSink{Destination: c.Sink.Destination, Compression: c.Sink.Compression}
		if err := ps.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// unionTargets lists the registry names to union with, in order.
func (c Config) unionTargets() []string {
	var targets []string
	if c.UnionWith != "" {
		targets = append(targets, c.UnionWith)
	}
	if c.UnionWithExisting && c.OutputName != c.UnionWith {
		targets = append(targets, c.OutputName)
	}
	return targets
}
