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

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

// Persist materializes h at the given storage level:
//
//	none             h is returned unchanged
//	memory           temporary table
//	disk             table, checkpointed to the database file
//	memory_and_disk  table, left to the buffer manager
//
// On failure h is returned together with a PersistenceWarning, so callers can
// log and keep going.
func Persist(ctx context.Context, sess Session, h dataset.Handle, level dataset.StorageLevel) (dataset.Handle, error) {
	switch level {
	case "", dataset.StorageNone:
		return h, nil
	case dataset.StorageMemory, dataset.StorageDisk, dataset.StorageMemoryAndDisk:
	default:
		return h, dataset.PersistenceWarning{Level: level, Err: fmt.Errorf("unknown storage level")}
	}

	relation := sess.NewRelationName("persist")
	query := "SELECT * FROM " + engine.QuoteIdentifier(h.Relation)
	if err := sess.CreateTableAs(ctx, relation, query, level == dataset.StorageMemory); err != nil {
		return h, dataset.PersistenceWarning{Level: level, Err: err}
	}
	if level == dataset.StorageDisk {
		if err := sess.Checkpoint(ctx); err != nil {
			return h, dataset.PersistenceWarning{Level: level, Err: err}
		}
	}

	out := h.WithRelation(relation, h.Schema)
	out.StorageLevel = level
	return out, nil
}
