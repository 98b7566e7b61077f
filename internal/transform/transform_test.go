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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
)

func openSession(t *testing.T) *engine.Session {
	t.Helper()
	sess, err := engine.Open(context.Background(), engine.WithScratchBase(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// people creates a table of n rows with columns id INTEGER, name VARCHAR.
func people(t *testing.T, sess *engine.Session, first, n int) dataset.Handle {
	t.Helper()
	ctx := context.Background()
	rel := sess.NewRelationName("fixture")
	query := fmt.Sprintf("SELECT (i + %d)::INTEGER AS id, 'person-' || CAST(i + %d AS VARCHAR) AS name FROM range(%d) t(i)", first, first, n)
	require.NoError(t, sess.CreateTableAs(ctx, rel, query, false))
	schema, err := sess.Describe(ctx, rel)
	require.NoError(t, err)
	return dataset.Handle{Relation: rel, Schema: schema}
}

func count(t *testing.T, sess *engine.Session, h dataset.Handle) int64 {
	t.Helper()
	n, err := sess.Count(context.Background(), h.Relation)
	require.NoError(t, err)
	return n
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	out, err := Rename(ctx, sess, h, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, dataset.Schema{{Name: "a", Type: "INTEGER"}, {Name: "b", Type: "VARCHAR"}}, out.Schema)
	assert.NotEqual(t, h.Relation, out.Relation)
	assert.Equal(t, []string{"id", "name"}, h.Schema.Names(), "input handle unchanged")

	described, err := sess.Describe(ctx, out.Relation)
	require.NoError(t, err)
	assert.Equal(t, out.Schema, described)
	assert.Equal(t, int64(3), count(t, sess, out))
}

func TestRename_Mismatch(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	_, err := Rename(ctx, sess, h, []string{"a", "b", "c"})
	assert.True(t, dataset.IsSchemaMismatch(err))

	_, err = Rename(ctx, sess, h, []string{"a"})
	assert.True(t, dataset.IsSchemaMismatch(err))

	_, err = Rename(ctx, sess, h, []string{"a", "A"})
	assert.True(t, dataset.IsSchemaMismatch(err))
}

func TestRename_CarriesPartitionColumns(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)
	h.Partitioning = dataset.Partitioning{Columns: []string{"name"}, Count: 2}

	out, err := Rename(ctx, sess, h, []string{"key", "label"})
	require.NoError(t, err)
	assert.Equal(t, dataset.Partitioning{Columns: []string{"label"}, Count: 2}, out.Partitioning)
}

func TestParseNames(t *testing.T) {
	in := "# header\nid\n\n  name , age\n,\n"
	names, err := ParseNames(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age"}, names)
}

func TestParseNamesFile_Missing(t *testing.T) {
	_, err := ParseNamesFile(t.TempDir() + "/nope.txt")
	assert.True(t, dataset.IsSourceRead(err))
}

func TestExecuteSQL(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 10)

	out, err := ExecuteSQL(ctx, sess, h, "", "SELECT id, upper(name) AS shout FROM source WHERE id < 4;")
	require.NoError(t, err)
	assert.Equal(t, dataset.Schema{{Name: "id", Type: "INTEGER"}, {Name: "shout", Type: "VARCHAR"}}, out.Schema)
	assert.Equal(t, int64(4), count(t, sess, out))

	exists, err := sess.RelationExists(ctx, DefaultViewName)
	require.NoError(t, err)
	assert.False(t, exists, "helper view is dropped")
}

func TestExecuteSQL_CustomView(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 5)

	out, err := ExecuteSQL(ctx, sess, h, "people", "SELECT count(*) AS n FROM people")
	require.NoError(t, err)
	rows, err := sess.Sample(ctx, out.Relation, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5"}}, rows)
}

func TestExecuteSQL_Empty(t *testing.T) {
	sess := openSession(t)
	h := people(t, sess, 0, 1)
	out, err := ExecuteSQL(context.Background(), sess, h, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, h, out)
}

func TestExecuteSQL_Failure(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 1)

	_, err := ExecuteSQL(ctx, sess, h, "", "SELECT nope FROM source")
	require.Error(t, err)
	assert.True(t, dataset.IsQuery(err))
	assert.Contains(t, err.Error(), "SELECT nope FROM source")
}

func TestUnion(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	// same columns, different order
	rel := sess.NewRelationName("other")
	require.NoError(t, sess.CreateTableAs(ctx, rel, "SELECT 'x' AS name, 99::INTEGER AS id", false))
	schema, err := sess.Describe(ctx, rel)
	require.NoError(t, err)
	other := dataset.Handle{Relation: rel, Schema: schema}

	out, err := Union(ctx, sess, h, other)
	require.NoError(t, err)
	assert.Equal(t, h.Schema, out.Schema)
	assert.Equal(t, int64(4), count(t, sess, out))

	rows, err := sess.Sample(ctx, out.Relation, 10)
	require.NoError(t, err)
	assert.Contains(t, rows, []string{"99", "x"})
}

func TestUnion_MatchesNamesIgnoringCase(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 2)

	rel := sess.NewRelationName("other")
	require.NoError(t, sess.CreateTableAs(ctx, rel, "SELECT 7::INTEGER AS \"ID\", 'y' AS \"Name\"", false))
	schema, err := sess.Describe(ctx, rel)
	require.NoError(t, err)

	out, err := Union(ctx, sess, h, dataset.Handle{Relation: rel, Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, h.Schema, out.Schema)
	assert.Equal(t, int64(3), count(t, sess, out))

	described, err := sess.Describe(ctx, out.Relation)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, described.Names())
}

func TestUnion_Mismatch(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	tests := map[string]string{
		"missing column": "SELECT 1::INTEGER AS id",
		"extra column":   "SELECT 1::INTEGER AS id, 'a' AS name, 2 AS extra",
		"type differs":   "SELECT 'one' AS id, 'a' AS name",
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			rel := sess.NewRelationName("other")
			require.NoError(t, sess.CreateTableAs(ctx, rel, query, false))
			schema, err := sess.Describe(ctx, rel)
			require.NoError(t, err)

			_, err = Union(ctx, sess, h, dataset.Handle{Relation: rel, Schema: schema})
			assert.True(t, dataset.IsSchemaMismatch(err))
		})
	}
}

func TestRepartition(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 20)

	tests := []struct {
		name    string
		columns []string
		count   int
	}{
		{"columns and count", []string{"name"}, 4},
		{"columns only", []string{"id", "name"}, 0},
		{"count only", nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Repartition(ctx, sess, h, tt.columns, tt.count)
			require.NoError(t, err)
			assert.Equal(t, h.Schema, out.Schema)
			assert.Equal(t, int64(20), count(t, sess, out))
			assert.Equal(t, tt.count, out.Partitioning.Count)
			assert.Equal(t, tt.columns, out.Partitioning.Columns)

			described, err := sess.Describe(ctx, out.Relation)
			require.NoError(t, err)
			assert.Equal(t, h.Schema, described)
		})
	}
}

func TestRepartition_ColumnsOnlySorts(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	out, err := Repartition(ctx, sess, h, []string{"id"}, 0)
	require.NoError(t, err)
	rows, err := sess.Sample(ctx, out.Relation, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0", "person-0"}, {"1", "person-1"}, {"2", "person-2"}}, rows)
}

func TestRepartition_ColumnsIgnoreCase(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 6)

	out, err := Repartition(ctx, sess, h, []string{"ID"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, out.Partitioning.Columns)
	assert.Equal(t, int64(6), count(t, sess, out))
}

func TestRepartition_Errors(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 3)

	_, err := Repartition(ctx, sess, h, []string{"nope"}, 2)
	assert.True(t, dataset.IsConfig(err))

	_, err = Repartition(ctx, sess, h, nil, -1)
	assert.True(t, dataset.IsConfig(err))

	out, err := Repartition(ctx, sess, h, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, h, out)
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	h := people(t, sess, 0, 5)

	for _, level := range []dataset.StorageLevel{dataset.StorageMemory, dataset.StorageDisk, dataset.StorageMemoryAndDisk} {
		t.Run(string(level), func(t *testing.T) {
			out, err := Persist(ctx, sess, h, level)
			require.NoError(t, err)
			assert.Equal(t, level, out.StorageLevel)
			assert.NotEqual(t, h.Relation, out.Relation)
			assert.Equal(t, int64(5), count(t, sess, out))
		})
	}

	out, err := Persist(ctx, sess, h, dataset.StorageNone)
	require.NoError(t, err)
	assert.Equal(t, h, out)
}

type failingSession struct {
	*engine.Session
}

func (failingSession) CreateTableAs(context.Context, string, string, bool) error {
	return fmt.Errorf("out of disk")
}

func TestPersist_FailureIsWarning(t *testing.T) {
	sess := openSession(t)
	h := people(t, sess, 0, 2)

	out, err := Persist(context.Background(), failingSession{sess}, h, dataset.StorageDisk)
	require.Error(t, err)
	assert.True(t, dataset.IsPersistenceWarning(err))
	assert.Equal(t, h, out)
}
