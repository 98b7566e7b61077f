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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/avroingest/config"
	"github.com/cardinalhq/avroingest/internal/avrostage"
	"github.com/cardinalhq/avroingest/internal/cloudstorage"
	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/duckdbx"
	"github.com/cardinalhq/avroingest/internal/engine"
	"github.com/cardinalhq/avroingest/internal/pathresolve"
	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

// ingestFlagKeys maps ingest-avro flags to config keys.
var ingestFlagKeys = map[string]string{
	"input":                "ingest.input_path",
	"column-names":         "ingest.column_names",
	"column-names-file":    "ingest.column_names_file",
	"sql":                  "ingest.sql",
	"sql-view-name":        "ingest.sql_view_name",
	"union-with":           "ingest.union_with",
	"union-with-existing":  "ingest.union_with_existing",
	"union-missing":        "ingest.union_missing",
	"partition-columns":    "ingest.partition_columns",
	"partition-count":      "ingest.partition_count",
	"storage-level":        "ingest.storage_level",
	"output-name":          "ingest.output_name",
	"debug":                "ingest.debug",
	"debug-rows":           "ingest.debug_rows",
	"env":                  "ingest.env",
	"sink-destination":     "ingest.sink.destination",
	"sink-dataset":         "ingest.sink.dataset",
	"sink-compression":     "ingest.sink.compression",
	"storage-profile-file": "storage_profile_file",
	"duckdb-memory-limit":  "duckdb.memory_limit",
	"duckdb-threads":       "duckdb.threads",
}

func init() {
	cmd := &cobra.Command{
		Use:   "ingest-avro",
		Short: "Load an Avro dataset and register it under a logical name",
		Long: `Resolve the input path, read every Avro part file, apply the configured
rename, SQL, union, partitioning and persistence steps, and register the
result. Optionally write the registered dataset as Parquet.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, bindFlags(c.Flags(), ingestFlagKeys))
			if err != nil {
				return err
			}

			ctx, doneFx, err := setupTelemetry(config.ServiceName)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			return runIngestAvro(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.String("input", "", "Avro file, directory, glob, or s3://, gs://, az:// URL; ${VAR} is substituted")
	f.StringSlice("column-names", nil, "Rename columns by position")
	f.String("column-names-file", "", "File with column names, one per line or comma separated")
	f.String("sql", "", "SQL to apply; the dataset is visible as the view named by --sql-view-name")
	f.String("sql-view-name", "", "View name the SQL reads from (default \"source\")")
	f.String("union-with", "", "Registered dataset to union with, by column name")
	f.Bool("union-with-existing", false, "Union with the dataset already registered under the output name")
	f.String("union-missing", "", "What to do when the union target is not registered: skip or fail (default skip)")
	f.StringSlice("partition-columns", nil, "Columns to cluster rows by")
	f.Int("partition-count", 0, "Number of partitions")
	f.String("storage-level", "", "none, memory, disk, or memory_and_disk (default memory_and_disk)")
	f.String("output-name", "", "Logical name to register the dataset under (default \"trainingData\")")
	f.Bool("debug", false, "Log the schema, row count, and sample rows of the result")
	f.Int("debug-rows", 0, "Sample rows logged in debug mode (default 5)")
	f.StringToString("env", nil, "Extra variables for ${VAR} substitution")
	f.String("sink-destination", "", "Write the registered dataset as Parquet to this path or URL")
	f.String("sink-dataset", "", "Registered dataset the sink writes (default the output name)")
	f.String("sink-compression", "", "Parquet compression codec (default snappy)")
	f.String("storage-profile-file", "", "Storage profile YAML (default $STORAGE_PROFILE_FILE)")
	f.Int64("duckdb-memory-limit", 0, "DuckDB memory limit in MB (0 = unlimited)")
	f.Int("duckdb-threads", 0, "DuckDB threads (0 = GOMAXPROCS)")

	rootCmd.AddCommand(cmd)
}

// bindFlags binds each flag in keys to its config key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) config.Binder {
	return func(v *viper.Viper) error {
		for name, key := range keys {
			flag := fs.Lookup(name)
			if flag == nil {
				return fmt.Errorf("unknown flag %q", name)
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
		return nil
	}
}

func runIngestAvro(ctx context.Context, cfg *config.Config) error {
	ctx, span := tracer.Start(ctx, "ingestAvro", trace.WithAttributes(
		attribute.Int64("instanceID", myInstanceID),
	))
	defer span.End()

	profiles, err := storageprofile.SetupStorageProfiles(cfg.StorageProfileFile)
	if err != nil {
		return dataset.NewConfigError("storage_profile_file", err.Error())
	}

	managers := cloudstorage.NewCloudManagers()
	defer func() {
		if err := managers.Close(); err != nil {
			slog.Warn("Failed to close cloud storage clients", slog.Any("error", err))
		}
	}()

	dbOpts := append(cfg.DuckDB.DBOptions(),
		duckdbx.WithMetrics(10*time.Second),
		duckdbx.WithMetricsContext(ctx))
	sess, err := engine.Open(ctx, engine.WithDBOptions(dbOpts...))
	if err != nil {
		return fmt.Errorf("open engine session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("Failed to close engine session", slog.Any("error", err))
		}
	}()

	reg := dataset.NewRegistry()
	stage := avrostage.New(avrostage.WithResolver(pathresolve.NewResolver(profiles, managers)))
	if err := stage.Run(ctx, cfg.Ingest, sess, reg); err != nil {
		return err
	}

	for _, name := range reg.Names() {
		h, _ := reg.Get(name)
		slog.Info("Dataset available", slog.String("name", name), slog.String("dataset", h.String()))
	}
	return nil
}
