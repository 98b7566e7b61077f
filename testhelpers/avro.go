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

// Package testhelpers writes Avro object container fixtures for tests.
package testhelpers

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/linkedin/goavro/v2"
)

// PeopleSchema is a two column record used by most ingestion tests.
const PeopleSchema = `{
  "type": "record",
  "name": "Person",
  "namespace": "test.avroingest",
  "fields": [
    {"name": "id", "type": "int"},
    {"name": "name", "type": "string"}
  ]
}`

// PeopleRecords returns n records for PeopleSchema with ids starting at first.
func PeopleRecords(first, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range n {
		id := first + i
		out[i] = map[string]any{
			"id":   int32(id),
			"name": fmt.Sprintf("person-%d", id),
		}
	}
	return out
}

// WriteAvroFile writes records to path as an Avro OCF using the given schema
// and the "null" compression codec. Parent directories are created.
func WriteAvroFile(t testing.TB, path, schema string, records []map[string]any) string {
	t.Helper()
	return WriteAvroFileCompressed(t, path, schema, goavro.CompressionNullLabel, records)
}

// WriteAvroFileCompressed is WriteAvroFile with an explicit compression codec,
// for example goavro.CompressionDeflateLabel or goavro.CompressionSnappyLabel.
func WriteAvroFileCompressed(t testing.TB, path, schema, compression string, records []map[string]any) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               f,
		Schema:          schema,
		CompressionName: compression,
	})
	if err != nil {
		t.Fatalf("create OCF writer: %v", err)
	}

	data := make([]any, len(records))
	for i, r := range records {
		data[i] = r
	}
	if len(data) > 0 {
		if err := w.Append(data); err != nil {
			t.Fatalf("append fixture records: %v", err)
		}
	}
	return path
}
