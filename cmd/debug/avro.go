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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/avroingest/internal/avroreader"
)

func GetAvroCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avro",
		Short: "Avro file debugging utilities",
		Long:  `Utilities for inspecting Avro object container files before ingestion.`,
	}

	cmd.AddCommand(getAvroSchemaSubCmd())
	cmd.AddCommand(getAvroCatSubCmd())

	return cmd
}

func getAvroSchemaSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the writer schema and the table schema it maps to",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			return runAvroSchema(filename)
		},
	}

	cmd.Flags().String("file", "", "Avro file to read")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	return cmd
}

func getAvroCatSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Output Avro records as JSON lines",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}

			limit, err := c.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}

			return runAvroCat(filename, limit)
		},
	}

	cmd.Flags().String("file", "", "Avro file to read")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
	cmd.Flags().Int("limit", 0, "Maximum number of records to output (0 for unlimited)")

	return cmd
}

func runAvroSchema(filename string) error {
	info, err := avroreader.Inspect(filename)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(info.WriterSchema), "", "  "); err != nil {
		pretty.Reset()
		pretty.WriteString(info.WriterSchema)
	}

	fmt.Printf("compression: %s\n", info.Compression)
	fmt.Println("writer schema:")
	fmt.Println(pretty.String())
	fmt.Println("table schema:")
	fmt.Print(info.Schema.String())
	return nil
}

func runAvroCat(filename string, limit int) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer func() { _ = file.Close() }()

	ocf, err := goavro.NewOCFReader(bufio.NewReader(file))
	if err != nil {
		return fmt.Errorf("failed to open Avro container: %w", err)
	}
	codec := ocf.Codec()

	rowsOutput := 0
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return fmt.Errorf("error reading record %d: %w", rowsOutput, err)
		}
		textual, err := codec.TextualFromNative(nil, datum)
		if err != nil {
			return fmt.Errorf("error encoding record %d as JSON: %w", rowsOutput, err)
		}
		fmt.Println(string(textual))
		rowsOutput++

		if limit > 0 && rowsOutput >= limit {
			return nil
		}
	}
	return ocf.Err()
}
