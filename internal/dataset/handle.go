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

// Package dataset holds the engine-independent description of a dataset
// handle, the registry that publishes handles under logical names, and the
// error kinds shared by every ingestion step.
package dataset

import (
	"fmt"
	"slices"
	"strings"
)

// Column is one (name, type) pair of a schema. Type is the engine's type
// name, for example INTEGER or VARCHAR.
type Column struct {
	Name string
	Type string
}

// Schema is an ordered list of columns.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1. Names match case
// insensitively, as identifiers do in the engine.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	return slices.Equal(s, other)
}

// String renders the schema as an indented tree, one column per line.
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("root\n")
	for _, c := range s {
		fmt.Fprintf(&b, " |-- %s: %s\n", c.Name, c.Type)
	}
	return b.String()
}

// Partitioning describes how rows of a handle are clustered.
// The zero value means no partitioning was applied.
type Partitioning struct {
	Columns []string
	Count   int
}

// IsZero reports whether no partitioning is set.
func (p Partitioning) IsZero() bool {
	return len(p.Columns) == 0 && p.Count <= 0
}

func (p Partitioning) String() string {
	if p.IsZero() {
		return "none"
	}
	var parts []string
	if len(p.Columns) > 0 {
		parts = append(parts, "columns="+strings.Join(p.Columns, ","))
	}
	if p.Count > 0 {
		parts = append(parts, fmt.Sprintf("count=%d", p.Count))
	}
	return strings.Join(parts, " ")
}

// Handle references a schematized relation owned by an engine session.
// Handles are values; every transform returns a new one and never modifies
// its input. The relation stays valid until the owning session closes.
type Handle struct {
	Relation     string
	Schema       Schema
	Partitioning Partitioning
	StorageLevel StorageLevel
}

// WithRelation returns a copy of h pointing at another relation with the given schema.
func (h Handle) WithRelation(relation string, schema Schema) Handle {
	out := h
	out.Relation = relation
	out.Schema = slices.Clone(schema)
	return out
}

func (h Handle) String() string {
	return fmt.Sprintf("%s(%d columns, partitioning=%s, storage=%s)",
		h.Relation, len(h.Schema), h.Partitioning, h.StorageLevel.OrNone())
}
