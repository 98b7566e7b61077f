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

// Package transform holds the dataset transforms applied between reading and
// registering: rename, SQL, union, partition, and persist. Each takes a handle
// and returns a new one; inputs are never modified or dropped.
package transform

import (
	"context"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

// Session is the part of engine.Session the transforms need.
type Session interface {
	NewRelationName(prefix string) string
	Describe(ctx context.Context, relation string) (dataset.Schema, error)
	CreateView(ctx context.Context, name, selectSQL string) error
	CreateTableAs(ctx context.Context, name, selectSQL string, temp bool) error
	DropView(ctx context.Context, name string) error
	Checkpoint(ctx context.Context) error
}

var _ Session = (*engine.Session)(nil)
