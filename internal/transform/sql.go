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
	"log/slog"
	"strings"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

// DefaultViewName is the name the SQL sees the current dataset under.
const DefaultViewName = "source"

// ExecuteSQL exposes h as viewName, runs query, and materializes its result
// into a new relation. The view is dropped afterwards. Any engine failure is a
// QueryError. An empty query returns h unchanged.
func ExecuteSQL(ctx context.Context, sess Session, h dataset.Handle, viewName, query string) (dataset.Handle, error) {
	query = strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	if query == "" {
		return h, nil
	}
	if viewName == "" {
		viewName = DefaultViewName
	}

	if err := sess.CreateView(ctx, viewName, "SELECT * FROM "+engine.QuoteIdentifier(h.Relation)); err != nil {
		return dataset.Handle{}, dataset.NewQueryError(query, err)
	}
	defer func() {
		if err := sess.DropView(context.WithoutCancel(ctx), viewName); err != nil {
			slog.Warn("Failed to drop SQL view", slog.String("view", viewName), slog.Any("error", err))
		}
	}()

	relation := sess.NewRelationName("sql")
	if err := sess.CreateTableAs(ctx, relation, query, false); err != nil {
		return dataset.Handle{}, dataset.NewQueryError(query, err)
	}
	schema, err := sess.Describe(ctx, relation)
	if err != nil {
		return dataset.Handle{}, dataset.NewQueryError(query, err)
	}

	out := h.WithRelation(relation, schema)
	out.Partitioning = dataset.Partitioning{}
	out.StorageLevel = ""
	return out, nil
}
