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
	"context"
	"fmt"
	"strings"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

const rowNumberColumn = "__avroingest_rn"

// Repartition clusters the rows of h so rows of one partition are contiguous.
// With columns and a count, rows are bucketed by hash of the columns modulo
// count; with columns only, they are sorted by the columns; with a count only,
// rows are dealt round-robin into count buckets. The schema and row count are
// unchanged. With neither set, h is returned as is.
func Repartition(ctx context.Context, sess Session, h dataset.Handle, columns []string, count int) (dataset.Handle, error) {
	if count < 0 {
		return dataset.Handle{}, dataset.NewConfigError("partition_count", fmt.Sprintf("must not be negative, got %d", count))
	}
	if len(columns) == 0 && count == 0 {
		return h, nil
	}
	// Columns are recorded with the schema's spelling.
	var resolved []string
	for _, c := range columns {
		idx := h.Schema.Index(c)
		if idx < 0 {
			return dataset.Handle{}, dataset.NewConfigError("partition_columns",
				fmt.Sprintf("unknown column %q, have %s", c, strings.Join(h.Schema.Names(), ", ")))
		}
		resolved = append(resolved, h.Schema[idx].Name)
	}
	columns = resolved

	src := engine.QuoteIdentifier(h.Relation)
	keys := engine.QuoteIdentifiers(columns)
	var query string
	switch {
	case len(columns) > 0 && count > 0:
		query = fmt.Sprintf("SELECT * FROM %s ORDER BY hash(%s) %% %d, %s", src, keys, count, keys)
	case len(columns) > 0:
		query = fmt.Sprintf("SELECT * FROM %s ORDER BY %s", src, keys)
	default:
		rn := engine.QuoteIdentifier(rowNumberColumn)
		query = fmt.Sprintf("SELECT %s FROM (SELECT *, row_number() OVER () AS %s FROM %s) ORDER BY %s %% %d, %s",
			engine.QuoteIdentifiers(h.Schema.Names()), rn, src, rn, count, rn)
	}

	relation := sess.NewRelationName("part")
	if err := sess.CreateTableAs(ctx, relation, query, false); err != nil {
		return dataset.Handle{}, fmt.Errorf("partition %s: %w", h.Relation, err)
	}

	out := h.WithRelation(relation, h.Schema)
	out.Partitioning = dataset.Partitioning{Columns: columns, Count: count}
	out.StorageLevel = ""
	return out, nil
}
