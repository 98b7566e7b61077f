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

// Union appends the rows of other to h, matching columns by name. Both must
// have the same column names with the same types; the result keeps the column
// order of h.
func Union(ctx context.Context, sess Session, h, other dataset.Handle) (dataset.Handle, error) {
	if err := checkUnionSchemas(h.Schema, other.Schema); err != nil {
		return dataset.Handle{}, err
	}

	cols := engine.QuoteIdentifiers(h.Schema.Names())
	query := fmt.Sprintf("SELECT %s FROM %s UNION ALL SELECT %s FROM %s",
		cols, engine.QuoteIdentifier(h.Relation),
		cols, engine.QuoteIdentifier(other.Relation))

	relation := sess.NewRelationName("union")
	if err := sess.CreateView(ctx, relation, query); err != nil {
		return dataset.Handle{}, fmt.Errorf("union %s with %s: %w", h.Relation, other.Relation, err)
	}

	out := h.WithRelation(relation, h.Schema)
	out.Partitioning = dataset.Partitioning{}
	out.StorageLevel = ""
	return out, nil
}

func checkUnionSchemas(left, right dataset.Schema) error {
	var missing, extra, mismatched []string
	for _, c := range left {
		i := right.Index(c.Name)
		if i < 0 {
			missing = append(missing, c.Name)
			continue
		}
		if right[i].Type != c.Type {
			mismatched = append(mismatched, fmt.Sprintf("%s (%s vs %s)", c.Name, c.Type, right[i].Type))
		}
	}
	for _, c := range right {
		if left.Index(c.Name) < 0 {
			extra = append(extra, c.Name)
		}
	}

	var reasons []string
	if len(missing) > 0 {
		reasons = append(reasons, "union target lacks "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		reasons = append(reasons, "union target has extra "+strings.Join(extra, ", "))
	}
	if len(mismatched) > 0 {
		reasons = append(reasons, "type differs for "+strings.Join(mismatched, ", "))
	}
	if len(reasons) > 0 {
		return dataset.NewSchemaMismatch("%s", strings.Join(reasons, "; "))
	}
	return nil
}
