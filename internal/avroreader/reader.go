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

// Package avroreader loads Avro object container files into engine tables.
package avroreader

import (
	"bufio"
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/linkedin/goavro/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

// Format is the only format tag Read accepts.
const Format = "avro"

// Session is the part of engine.Session the reader needs.
type Session interface {
	NewRelationName(prefix string) string
	Exec(ctx context.Context, query string, args ...any) error
	Describe(ctx context.Context, relation string) (dataset.Schema, error)
	DropTable(ctx context.Context, name string) error
	WithAppender(ctx context.Context, table string, fn func(engine.RowAppender) error) error
}

// FileInfo describes one part file without loading it.
type FileInfo struct {
	Path         string
	WriterSchema string
	Schema       dataset.Schema
	Compression  string
}

// Inspect reads the OCF header of path and maps its writer schema.
func Inspect(path string) (FileInfo, error) {
	f, err := openPart(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = f.Close() }()

	ocf, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return FileInfo{}, dataset.NewSourceReadError(path, fmt.Errorf("not an Avro object container file: %w", err))
	}
	layout, err := layoutFromSchema(ocf.Codec().Schema())
	if err != nil {
		return FileInfo{}, dataset.NewSourceReadError(path, err)
	}
	return FileInfo{
		Path:         path,
		WriterSchema: ocf.Codec().Schema(),
		Schema:       layout.schema(),
		Compression:  ocf.CompressionName(),
	}, nil
}

// Read loads every part file into one new table and returns its handle.
// All parts must map to the same schema. On failure nothing is left behind.
func Read(ctx context.Context, sess Session, format string, files []string) (dataset.Handle, error) {
	if !strings.EqualFold(format, Format) {
		return dataset.Handle{}, dataset.NewConfigError("format", fmt.Sprintf("unsupported format %q", format))
	}
	if len(files) == 0 {
		return dataset.Handle{}, dataset.NewSourceReadError("", fmt.Errorf("no input files"))
	}

	layout, err := commonLayout(files)
	if err != nil {
		return dataset.Handle{}, err
	}

	relation := sess.NewRelationName("avro")
	if err := sess.Exec(ctx, createTableSQL(relation, layout)); err != nil {
		return dataset.Handle{}, fmt.Errorf("create table for %s: %w", files[0], err)
	}

	var total int64
	err = sess.WithAppender(ctx, relation, func(app engine.RowAppender) error {
		for _, path := range files {
			n, err := loadPart(ctx, app, path, layout)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		if derr := sess.DropTable(context.WithoutCancel(ctx), relation); derr != nil {
			slog.Warn("Failed to drop partially loaded table", slog.String("relation", relation), slog.Any("error", derr))
		}
		return dataset.Handle{}, err
	}

	schema, err := sess.Describe(ctx, relation)
	if err != nil {
		return dataset.Handle{}, err
	}

	recordsRead.Add(ctx, total, metric.WithAttributes(attribute.String("record", layout.fullName)))
	filesRead.Add(ctx, int64(len(files)))

	slog.Debug("Loaded Avro dataset",
		slog.String("relation", relation),
		slog.Int("files", len(files)),
		slog.Int64("rows", total),
	)

	return dataset.Handle{Relation: relation, Schema: schema}, nil
}

// commonLayout reads every header up front so schema drift between parts
// fails before any rows are loaded.
func commonLayout(files []string) (recordLayout, error) {
	var first recordLayout
	for i, path := range files {
		f, err := openPart(path)
		if err != nil {
			return recordLayout{}, err
		}
		ocf, err := goavro.NewOCFReader(bufio.NewReader(f))
		if err != nil {
			_ = f.Close()
			return recordLayout{}, dataset.NewSourceReadError(path, fmt.Errorf("not an Avro object container file: %w", err))
		}
		layout, err := layoutFromSchema(ocf.Codec().Schema())
		_ = f.Close()
		if err != nil {
			return recordLayout{}, dataset.NewSourceReadError(path, err)
		}
		if i == 0 {
			first = layout
			continue
		}
		if !layout.schema().Equal(first.schema()) {
			return recordLayout{}, dataset.NewSourceReadError(path,
				fmt.Errorf("schema differs from %s: got %v, want %v", files[0], layout.schema().Names(), first.schema().Names()))
		}
	}
	return first, nil
}

func loadPart(ctx context.Context, app engine.RowAppender, path string, layout recordLayout) (int64, error) {
	f, err := openPart(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	ocf, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return 0, dataset.NewSourceReadError(path, err)
	}

	var n int64
	row := make([]driver.Value, len(layout.columns))
	for ocf.Scan() {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		datum, err := ocf.Read()
		if err != nil {
			return n, dataset.NewSourceReadError(path, fmt.Errorf("record %d: %w", n, err))
		}
		rec, ok := datum.(map[string]any)
		if !ok {
			return n, dataset.NewSourceReadError(path, fmt.Errorf("record %d: unexpected datum %T", n, datum))
		}
		for i, col := range layout.columns {
			v, err := col.convert(rec[col.name])
			if err != nil {
				return n, dataset.NewSourceReadError(path, fmt.Errorf("record %d field %s: %w", n, col.name, err))
			}
			row[i] = v
		}
		if err := app.AppendRow(row...); err != nil {
			return n, fmt.Errorf("append record %d of %s: %w", n, path, err)
		}
		n++
	}
	if err := ocf.Err(); err != nil {
		return n, dataset.NewSourceReadError(path, err)
	}
	return n, nil
}

func openPart(path string) (*os.File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, dataset.NewSourceReadError(path, err)
	}
	if st.IsDir() {
		return nil, dataset.NewSourceReadError(path, fmt.Errorf("is a directory"))
	}
	if st.Size() == 0 {
		return nil, dataset.NewSourceReadError(path, fmt.Errorf("file is empty"))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, dataset.NewSourceReadError(path, err)
	}
	return f, nil
}

func createTableSQL(relation string, layout recordLayout) string {
	defs := make([]string, len(layout.columns))
	for i, c := range layout.columns {
		defs[i] = engine.QuoteIdentifier(c.name) + " " + c.sqlType
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", engine.QuoteIdentifier(relation), strings.Join(defs, ", "))
}
