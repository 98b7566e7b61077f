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

package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/spf13/cobra"
)

func getParquetArrowSchemaSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrow-schema",
		Short: "Print the Arrow schema of a parquet file and count its rows through Arrow",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			if filename == "" {
				return errors.New("file is required")
			}
			return runParquetArrowSchema(c.Context(), filename)
		},
	}

	cmd.Flags().String("file", "", "The parquet file to read")

	return cmd
}

func runParquetArrowSchema(ctx context.Context, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer func() { _ = f.Close() }()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = pf.Close() }()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 1000}, memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("failed to create arrow file reader: %w", err)
	}

	schema, err := fr.Schema()
	if err != nil {
		return fmt.Errorf("failed to get arrow schema: %w", err)
	}
	fmt.Printf("Schema has %d fields:\n", len(schema.Fields()))
	for i, field := range schema.Fields() {
		fmt.Printf("  [%d] %s: %s (nullable=%t)\n", i, field.Name, field.Type, field.Nullable)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create record reader: %w", err)
	}
	defer rr.Release()

	var total int64
	for {
		rec, err := rr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("arrow read error: %w", err)
		}
		if rec == nil {
			break
		}
		total += rec.NumRows()
		rec.Release()
	}
	fmt.Printf("Total rows read: %d (metadata: %d)\n", total, pf.NumRows())
	return nil
}
