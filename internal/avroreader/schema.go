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
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

// converter turns a goavro native value into what the DuckDB appender expects.
type converter func(v any) (driver.Value, error)

type column struct {
	name    string
	sqlType string
	convert converter
}

type recordLayout struct {
	fullName string
	columns  []column
}

func (l recordLayout) schema() dataset.Schema {
	s := make(dataset.Schema, len(l.columns))
	for i, c := range l.columns {
		s[i] = dataset.Column{Name: c.name, Type: c.sqlType}
	}
	return s
}

var errNotRecord = errors.New("top-level Avro schema must be a record")

func identity(v any) (driver.Value, error) { return v, nil }

func alwaysNull(any) (driver.Value, error) { return nil, nil }

func toJSON(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func durationMicros(v any) (driver.Value, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case time.Duration:
		return tv.Microseconds(), nil
	case int32:
		return int64(tv), nil
	case int64:
		return tv, nil
	default:
		return nil, fmt.Errorf("unexpected time value %T", v)
	}
}

func decimalFloat(v any) (driver.Value, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case *big.Rat:
		f, _ := tv.Float64()
		return f, nil
	default:
		return nil, fmt.Errorf("unexpected decimal value %T", v)
	}
}

func bytesValue(v any) (driver.Value, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return tv, nil
	case string:
		return []byte(tv), nil
	default:
		return nil, fmt.Errorf("unexpected bytes value %T", v)
	}
}

var primitives = map[string]column{
	"null":    {sqlType: "VARCHAR", convert: alwaysNull},
	"boolean": {sqlType: "BOOLEAN", convert: identity},
	"int":     {sqlType: "INTEGER", convert: identity},
	"long":    {sqlType: "BIGINT", convert: identity},
	"float":   {sqlType: "FLOAT", convert: identity},
	"double":  {sqlType: "DOUBLE", convert: identity},
	"bytes":   {sqlType: "BLOB", convert: bytesValue},
	"string":  {sqlType: "VARCHAR", convert: identity},
}

// layoutFromSchema maps an Avro writer schema to engine columns.
// Records, arrays, maps and non-nullable unions become JSON text columns.
func layoutFromSchema(schemaJSON string) (recordLayout, error) {
	var root any
	if err := json.Unmarshal([]byte(schemaJSON), &root); err != nil {
		return recordLayout{}, fmt.Errorf("parse writer schema: %w", err)
	}

	obj, ok := root.(map[string]any)
	if !ok || obj["type"] != "record" {
		return recordLayout{}, errNotRecord
	}

	m := &mapper{named: map[string]any{}}
	m.collect(root, "")

	ns, _ := obj["namespace"].(string)
	fullName := qualify(stringField(obj, "name"), ns)
	fields, _ := obj["fields"].([]any)
	if len(fields) == 0 {
		return recordLayout{}, fmt.Errorf("record %s has no fields", fullName)
	}

	layout := recordLayout{fullName: fullName}
	for _, f := range fields {
		fobj, ok := f.(map[string]any)
		if !ok {
			return recordLayout{}, fmt.Errorf("record %s: malformed field", fullName)
		}
		name := stringField(fobj, "name")
		if name == "" {
			return recordLayout{}, fmt.Errorf("record %s: field without name", fullName)
		}
		col, err := m.column(fobj["type"], namespaceOf(fullName))
		if err != nil {
			return recordLayout{}, fmt.Errorf("field %s: %w", name, err)
		}
		col.name = name
		layout.columns = append(layout.columns, col)
	}
	return layout, nil
}

type mapper struct {
	named map[string]any
}

// collect registers every named type (record, enum, fixed) so later
// references by name resolve.
func (m *mapper) collect(t any, ns string) {
	switch tv := t.(type) {
	case []any:
		for _, b := range tv {
			m.collect(b, ns)
		}
	case map[string]any:
		typ, _ := tv["type"].(string)
		switch typ {
		case "record", "error", "enum", "fixed":
			if n, _ := tv["namespace"].(string); n != "" {
				ns = n
			}
			full := qualify(stringField(tv, "name"), ns)
			m.named[full] = tv
			if short := shortName(full); short != full {
				if _, exists := m.named[short]; !exists {
					m.named[short] = tv
				}
			}
			if fields, ok := tv["fields"].([]any); ok {
				for _, f := range fields {
					if fobj, ok := f.(map[string]any); ok {
						m.collect(fobj["type"], namespaceOf(full))
					}
				}
			}
		case "array":
			m.collect(tv["items"], ns)
		case "map":
			m.collect(tv["values"], ns)
		default:
			m.collect(tv["type"], ns)
		}
	}
}

func (m *mapper) column(t any, ns string) (column, error) {
	switch tv := t.(type) {
	case string:
		if c, ok := primitives[tv]; ok {
			return c, nil
		}
		def, ok := m.named[qualify(tv, ns)]
		if !ok {
			def, ok = m.named[tv]
		}
		if !ok {
			return column{}, fmt.Errorf("unknown type %q", tv)
		}
		return m.column(def, ns)
	case []any:
		return m.union(tv, ns)
	case map[string]any:
		if lt, ok := tv["logicalType"].(string); ok {
			if c, ok := logicalColumn(lt, tv); ok {
				return c, nil
			}
		}
		typ, _ := tv["type"].(string)
		switch typ {
		case "record", "error", "array", "map":
			return column{sqlType: "VARCHAR", convert: toJSON}, nil
		case "enum":
			return column{sqlType: "VARCHAR", convert: identity}, nil
		case "fixed":
			return column{sqlType: "BLOB", convert: bytesValue}, nil
		default:
			return m.column(tv["type"], ns)
		}
	default:
		return column{}, fmt.Errorf("malformed type %v", t)
	}
}

// union maps ["null", X] to a nullable X. Any other union is JSON text
// keyed by branch name, the way goavro represents it.
func (m *mapper) union(branches []any, ns string) (column, error) {
	var nonNull []any
	for _, b := range branches {
		if s, ok := b.(string); ok && s == "null" {
			continue
		}
		nonNull = append(nonNull, b)
	}

	switch len(nonNull) {
	case 0:
		return primitives["null"], nil
	case 1:
		inner, err := m.column(nonNull[0], ns)
		if err != nil {
			return column{}, err
		}
		innerConvert := inner.convert
		inner.convert = func(v any) (driver.Value, error) {
			if v == nil {
				return nil, nil
			}
			if wrapped, ok := v.(map[string]any); ok && len(wrapped) == 1 {
				for _, bv := range wrapped {
					return innerConvert(bv)
				}
			}
			return innerConvert(v)
		}
		return inner, nil
	default:
		return column{sqlType: "VARCHAR", convert: toJSON}, nil
	}
}

func logicalColumn(logicalType string, t map[string]any) (column, bool) {
	switch logicalType {
	case "date":
		return column{sqlType: "DATE", convert: identity}, true
	case "timestamp-millis", "timestamp-micros":
		return column{sqlType: "TIMESTAMP", convert: identity}, true
	case "time-millis", "time-micros":
		return column{sqlType: "BIGINT", convert: durationMicros}, true
	case "decimal":
		if _, ok := t["precision"]; ok {
			return column{sqlType: "DOUBLE", convert: decimalFloat}, true
		}
	case "uuid":
		return column{sqlType: "VARCHAR", convert: identity}, true
	}
	return column{}, false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func qualify(name, ns string) string {
	if name == "" || strings.Contains(name, ".") || ns == "" {
		return name
	}
	return ns + "." + name
}

func namespaceOf(fullName string) string {
	if i := strings.LastIndex(fullName, "."); i >= 0 {
		return fullName[:i]
	}
	return ""
}

func shortName(fullName string) string {
	if i := strings.LastIndex(fullName, "."); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}
