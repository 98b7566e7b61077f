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

package avroreader

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

const wideSchema = `{
  "type": "record", "name": "Wide", "namespace": "t",
  "fields": [
    {"name": "b", "type": "boolean"},
    {"name": "i", "type": "int"},
    {"name": "l", "type": "long"},
    {"name": "f", "type": "float"},
    {"name": "d", "type": "double"},
    {"name": "raw", "type": "bytes"},
    {"name": "s", "type": ["null", "string"]},
    {"name": "color", "type": {"type": "enum", "name": "Color", "symbols": ["RED", "GREEN"]}},
    {"name": "again", "type": "Color"},
    {"name": "day", "type": {"type": "int", "logicalType": "date"}},
    {"name": "ts", "type": {"type": "long", "logicalType": "timestamp-millis"}},
    {"name": "tod", "type": {"type": "long", "logicalType": "time-micros"}},
    {"name": "amount", "type": {"type": "bytes", "logicalType": "decimal", "precision": 10, "scale": 2}},
    {"name": "tags", "type": {"type": "array", "items": "string"}},
    {"name": "attrs", "type": {"type": "map", "values": "long"}},
    {"name": "either", "type": ["int", "string"]}
  ]
}`

func TestLayoutFromSchema(t *testing.T) {
	layout, err := layoutFromSchema(wideSchema)
	require.NoError(t, err)

	assert.Equal(t, "t.Wide", layout.fullName)
	assert.Equal(t, dataset.Schema{
		{Name: "b", Type: "BOOLEAN"},
		{Name: "i", Type: "INTEGER"},
		{Name: "l", Type: "BIGINT"},
		{Name: "f", Type: "FLOAT"},
		{Name: "d", Type: "DOUBLE"},
		{Name: "raw", Type: "BLOB"},
		{Name: "s", Type: "VARCHAR"},
		{Name: "color", Type: "VARCHAR"},
		{Name: "again", Type: "VARCHAR"},
		{Name: "day", Type: "DATE"},
		{Name: "ts", Type: "TIMESTAMP"},
		{Name: "tod", Type: "BIGINT"},
		{Name: "amount", Type: "DOUBLE"},
		{Name: "tags", Type: "VARCHAR"},
		{Name: "attrs", Type: "VARCHAR"},
		{Name: "either", Type: "VARCHAR"},
	}, layout.schema())
}

func TestLayoutFromSchema_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":      `{`,
		"not a record":  `"string"`,
		"no fields":     `{"type": "record", "name": "E", "fields": []}`,
		"unknown named": `{"type": "record", "name": "R", "fields": [{"name": "x", "type": "Missing"}]}`,
	}
	for name, schema := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := layoutFromSchema(schema)
			assert.Error(t, err)
		})
	}
}

func TestConverters(t *testing.T) {
	layout, err := layoutFromSchema(wideSchema)
	require.NoError(t, err)
	byName := map[string]column{}
	for _, c := range layout.columns {
		byName[c.name] = c
	}

	v, err := byName["s"].convert(map[string]any{"string": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = byName["s"].convert(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = byName["tod"].convert(90 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(90_000_000), v)

	v, err = byName["amount"].convert(big.NewRat(1234, 100))
	require.NoError(t, err)
	assert.InDelta(t, 12.34, v, 1e-9)

	v, err = byName["tags"].convert([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	v, err = byName["either"].convert(map[string]any{"int": int32(3)})
	require.NoError(t, err)
	assert.Equal(t, `{"int":3}`, v)
}
