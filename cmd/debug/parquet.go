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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
)

func GetParquetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parquet",
		Short: "Parquet file debugging utilities",
		Long:  `Utilities for inspecting Parquet files written by the sink.`,
	}

	cmd.AddCommand(getParquetCatSubCmd())
	cmd.AddCommand(getParquetSchemaSubCmd())
	cmd.AddCommand(getParquetSchemaRawSubCmd())
	cmd.AddCommand(getParquetArrowSchemaSubCmd())

	return cmd
}

func getParquetCatSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Output parquet file contents as JSON lines",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}

			limit, err := c.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}

			keepByteSlices, err := c.Flags().GetBool("keep-byte-slices")
			if err != nil {
				return fmt.Errorf("failed to get keep-byte-slices flag: %w", err)
			}

			return runParquetCat(filename, limit, keepByteSlices)
		},
	}

	cmd.Flags().String("file", "", "Parquet file to read")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	cmd.Flags().Int("limit", 0, "Maximum number of rows to output (0 for unlimited)")
	cmd.Flags().Bool("keep-byte-slices", false, "Keep literal byte slice values instead of converting to '[size]byte'")

	return cmd
}

func getParquetSchemaSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Scan parquet rows and report the Go type found in each column",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}

			return runParquetSchemaFromData(filename)
		},
	}

	cmd.Flags().String("file", "", "Parquet file to analyze")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	return cmd
}

func getParquetSchemaRawSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema-raw",
		Short: "Print out the raw metadata schema of a Parquet file",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}

			return runParquetSchemaFromMetadata(filename)
		},
	}

	cmd.Flags().String("file", "", "Parquet file to read")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	return cmd
}

func openParquet(filename string) (*os.File, *parquet.File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return file, pf, nil
}

func runParquetCat(filename string, limit int, keepByteSlices bool) error {
	file, pf, err := openParquet(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = reader.Close() }()

	rowsOutput := 0
	batchSize := 1000
	if limit > 0 && limit < batchSize {
		batchSize = limit
	}

	for limit <= 0 || rowsOutput < limit {
		currentBatchSize := batchSize
		if limit > 0 && rowsOutput+batchSize > limit {
			currentBatchSize = limit - rowsOutput
		}

		rows := make([]map[string]any, currentBatchSize)
		for i := range rows {
			rows[i] = make(map[string]any)
		}

		n, err := reader.Read(rows)
		if err != nil && err != io.EOF {
			return fmt.Errorf("error reading parquet rows: %w", err)
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i++ {
			row := rows[i]
			if !keepByteSlices {
				row = convertByteSlices(row)
			}
			jsonBytes, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("error marshaling row to JSON: %w", err)
			}
			fmt.Println(string(jsonBytes))
			rowsOutput++

			if limit > 0 && rowsOutput >= limit {
				return nil
			}
		}

		if err == io.EOF {
			break
		}
	}

	return nil
}

func convertByteSlices(row map[string]any) map[string]any {
	converted := make(map[string]any, len(row))
	for key, value := range row {
		if byteSlice, ok := value.([]byte); ok {
			converted[key] = fmt.Sprintf("[%d]byte", len(byteSlice))
		} else {
			converted[key] = value
		}
	}
	return converted
}

func runParquetSchemaFromMetadata(filename string) error {
	file, pf, err := openParquet(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	fmt.Println(pf.Schema().String())
	fmt.Printf("rows: %d, row groups: %d\n", pf.NumRows(), len(pf.RowGroups()))
	return nil
}

type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ParquetSchema struct {
	Columns []ColumnSchema `json:"columns"`
}

func runParquetSchemaFromData(filename string) error {
	file, pf, err := openParquet(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = reader.Close() }()

	seenColumns := make(map[string]string)
	allColumns := make(map[string]bool)
	batchSize := 1000

	for {
		rows := make([]map[string]any, batchSize)
		for i := range rows {
			rows[i] = make(map[string]any)
		}

		n, err := reader.Read(rows)
		if err != nil && err != io.EOF {
			return fmt.Errorf("error reading parquet rows: %w", err)
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i++ {
			for columnName, value := range rows[i] {
				allColumns[columnName] = true
				if _, exists := seenColumns[columnName]; !exists && value != nil {
					seenColumns[columnName] = getGoTypeName(value)
				}
			}
		}

		if err == io.EOF || len(seenColumns) == len(pf.Schema().Fields()) {
			break
		}
	}

	columnNames := make([]string, 0, len(allColumns))
	for columnName := range allColumns {
		columnNames = append(columnNames, columnName)
	}
	sort.Strings(columnNames)

	var columns []ColumnSchema
	for _, columnName := range columnNames {
		typeName := seenColumns[columnName]
		if typeName == "" {
			typeName = "null"
		}
		columns = append(columns, ColumnSchema{Name: columnName, Type: typeName})
	}

	jsonBytes, err := json.MarshalIndent(ParquetSchema{Columns: columns}, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling schema to JSON: %w", err)
	}

	fmt.Println(string(jsonBytes))
	return nil
}

func getGoTypeName(value any) string {
	if value == nil {
		return "nil"
	}

	t := reflect.TypeOf(value)
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "[]byte"
		}
		return fmt.Sprintf("[]%s", t.Elem().Kind().String())
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return t.Kind().String()
	default:
		return t.String()
	}
}
