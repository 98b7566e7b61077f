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

package sink

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/duckdbx"
	"github.com/cardinalhq/avroingest/internal/engine"
	"github.com/cardinalhq/avroingest/internal/pathresolve"
)

// DefaultCompression is used when ParquetSink.Compression is empty.
const DefaultCompression = "snappy"

// SingleFileName is the file written into a directory destination when the
// dataset has no partition columns.
const SingleFileName = "part-00000.parquet"

var compressions = map[string]bool{
	"uncompressed": true,
	"snappy":       true,
	"gzip":         true,
	"zstd":         true,
	"brotli":       true,
	"lz4":          true,
}

var (
	meter       = otel.Meter("github.com/cardinalhq/avroingest/internal/sink")
	rowsWritten metric.Int64Counter
	filesOut    metric.Int64Counter
)

func init() {
	var err error
	rowsWritten, err = meter.Int64Counter("avroingest.sink.rows_written",
		metric.WithDescription("Rows written by sinks"))
	if err != nil {
		panic(fmt.Errorf("failed to create rows_written counter: %w", err))
	}
	filesOut, err = meter.Int64Counter("avroingest.sink.files_written",
		metric.WithDescription("Files written by sinks"))
	if err != nil {
		panic(fmt.Errorf("failed to create files_written counter: %w", err))
	}
}

// ParquetSink writes a registered dataset as Parquet. Destination is a local
// path or an object store URL. A destination ending in .parquet is written as
// one file; anything else is a directory, which gets one file per partition
// value when the dataset carries partition columns. Remote destinations are
// staged in the session scratch directory and uploaded.
type ParquetSink struct {
	DatasetName string
	Destination string
	Compression string
	Env         map[string]string
	Resolver    *pathresolve.Resolver
}

var _ Sink = (*ParquetSink)(nil)

func (s *ParquetSink) Name() string {
	return "parquet"
}

// Validate checks the static configuration.
func (s *ParquetSink) Validate() error {
	if s.Destination == "" {
		return dataset.NewConfigError("sink.destination", "must not be empty")
	}
	if c := strings.ToLower(s.Compression); c != "" && !compressions[c] {
		return dataset.NewConfigError("sink.compression", fmt.Sprintf("unsupported codec %q", s.Compression))
	}
	return nil
}

func (s *ParquetSink) Run(ctx context.Context, sess *engine.Session, reg *dataset.Registry) error {
	if err := s.Validate(); err != nil {
		return err
	}
	name := s.DatasetName
	if name == "" {
		name = dataset.DefaultOutputName
	}
	h, ok := reg.Get(name)
	if !ok {
		return dataset.NewConfigError("sink.dataset", fmt.Sprintf("no dataset registered as %q", name))
	}

	dest, err := pathresolve.Substitute(s.Destination, s.Env)
	if err != nil {
		return err
	}
	loc, remote, err := pathresolve.ParseLocation(dest)
	if err != nil {
		return dataset.NewConfigError("sink.destination", err.Error())
	}

	target := pathresolve.LocalPath(dest)
	if remote {
		staging, err := os.MkdirTemp(sess.ScratchDir(), "sink-")
		if err != nil {
			return fmt.Errorf("create sink staging dir: %w", err)
		}
		target = staging
		if loc.IsObject() && isParquetFile(loc.Key) {
			if len(h.Partitioning.Columns) > 0 {
				loc.Key = strings.TrimSuffix(loc.Key, path.Ext(loc.Key))
			} else {
				target = filepath.Join(staging, path.Base(loc.Key))
			}
		}
	}

	written, err := s.write(ctx, sess, h, target)
	if err != nil {
		return err
	}

	if remote {
		if err := s.upload(ctx, loc, target, written); err != nil {
			return err
		}
	}

	rows, err := sess.Count(ctx, h.Relation)
	if err != nil {
		slog.Warn("Failed to count sink rows", slog.String("dataset", name), slog.Any("error", err))
	}
	attrs := metric.WithAttributes(attribute.String("sink", s.Name()))
	rowsWritten.Add(ctx, rows, attrs)
	filesOut.Add(ctx, int64(len(written)), attrs)

	slog.Info("Wrote dataset as Parquet",
		slog.String("dataset", name),
		slog.String("destination", dest),
		slog.Int("files", len(written)),
		slog.Int64("rows", rows))
	return nil
}

// write runs the COPY and returns the files it produced.
func (s *ParquetSink) write(ctx context.Context, sess *engine.Session, h dataset.Handle, target string) ([]string, error) {
	codec := strings.ToLower(s.Compression)
	if codec == "" {
		codec = DefaultCompression
	}
	opts := []string{"FORMAT PARQUET", "COMPRESSION " + engine.QuoteLiteral(codec)}

	var out string
	partitioned := len(h.Partitioning.Columns) > 0
	switch {
	case isParquetFile(target) && !partitioned:
		out = target
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, fmt.Errorf("create sink dir: %w", err)
		}
	case partitioned:
		out = strings.TrimSuffix(target, filepath.Ext(target))
		if !isParquetFile(target) {
			out = target
		}
		opts = append(opts,
			"PARTITION_BY ("+engine.QuoteIdentifiers(h.Partitioning.Columns)+")",
			"OVERWRITE_OR_IGNORE true")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, fmt.Errorf("create sink dir: %w", err)
		}
	default:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("create sink dir: %w", err)
		}
		out = filepath.Join(target, SingleFileName)
	}

	query := fmt.Sprintf("COPY (SELECT * FROM %s) TO '%s' (%s)",
		engine.QuoteIdentifier(h.Relation), duckdbx.EscapeSingle(out), strings.Join(opts, ", "))
	if err := sess.Exec(ctx, query); err != nil {
		return nil, dataset.NewQueryError(query, err)
	}

	if !partitioned {
		return []string{out}, nil
	}
	var files []string
	err := filepath.WalkDir(out, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isParquetFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sink output: %w", err)
	}
	return files, nil
}

func (s *ParquetSink) upload(ctx context.Context, loc pathresolve.Location, staged string, files []string) error {
	client, err := s.Resolver.Client(ctx, loc)
	if err != nil {
		return err
	}
	for _, f := range files {
		key := loc.Key
		if staged != f {
			rel, err := filepath.Rel(staged, f)
			if err != nil {
				return err
			}
			key = loc.Join(filepath.ToSlash(rel)).Key
		}
		if err := client.UploadObject(ctx, loc.Bucket, key, f); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

func isParquetFile(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".parquet")
}
