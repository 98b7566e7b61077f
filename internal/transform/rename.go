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

package transform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

// Rename assigns names to the columns of h by position. The number of names
// must match the number of columns; types are kept.
func Rename(ctx context.Context, sess Session, h dataset.Handle, names []string) (dataset.Handle, error) {
	if len(names) != len(h.Schema) {
		return dataset.Handle{}, dataset.NewSchemaMismatch(
			"%d column names given for %d columns (%s)", len(names), len(h.Schema), strings.Join(h.Schema.Names(), ", "))
	}

	seen := make(map[string]int, len(names))
	schema := make(dataset.Schema, len(names))
	exprs := make([]string, len(names))
	for i, name := range names {
		if name == "" {
			return dataset.Handle{}, dataset.NewSchemaMismatch("column name %d is empty", i+1)
		}
		// DuckDB identifiers are case insensitive
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return dataset.Handle{}, dataset.NewSchemaMismatch("column name %q given for columns %d and %d", name, prev+1, i+1)
		}
		seen[key] = i

		src := h.Schema[i]
		schema[i] = dataset.Column{Name: name, Type: src.Type}
		exprs[i] = engine.QuoteIdentifier(src.Name) + " AS " + engine.QuoteIdentifier(name)
	}

	relation := sess.NewRelationName("renamed")
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), engine.QuoteIdentifier(h.Relation))
	if err := sess.CreateView(ctx, relation, query); err != nil {
		return dataset.Handle{}, fmt.Errorf("rename columns of %s: %w", h.Relation, err)
	}

	out := h.WithRelation(relation, schema)
	out.Partitioning = renamePartitioning(h, names)
	return out, nil
}

func renamePartitioning(h dataset.Handle, names []string) dataset.Partitioning {
	if len(h.Partitioning.Columns) == 0 {
		return h.Partitioning
	}
	p := dataset.Partitioning{Count: h.Partitioning.Count}
	for _, c := range h.Partitioning.Columns {
		if i := h.Schema.Index(c); i >= 0 {
			p.Columns = append(p.Columns, names[i])
		}
	}
	return p
}

// ParseNamesFile reads column names from path. See ParseNames.
func ParseNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dataset.NewSourceReadError(path, err)
	}
	defer func() { _ = f.Close() }()

	names, err := ParseNames(f)
	if err != nil {
		return nil, dataset.NewSourceReadError(path, err)
	}
	return names, nil
}

// ParseNames reads one name per line or comma separated names. Surrounding
// whitespace is trimmed; blank lines and lines starting with '#' are skipped.
func ParseNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, part := range strings.Split(line, ",") {
			if name := strings.TrimSpace(part); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, scanner.Err()
}
