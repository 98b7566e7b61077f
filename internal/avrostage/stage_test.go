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

package avrostage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/avroingest/internal/cloudstorage"
	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
	"github.com/cardinalhq/avroingest/internal/pathresolve"
	"github.com/cardinalhq/avroingest/testhelpers"
)

func openSession(t *testing.T) *engine.Session {
	t.Helper()
	sess, err := engine.Open(context.Background(), engine.WithScratchBase(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func peopleFile(t *testing.T, first, n int) string {
	t.Helper()
	return testhelpers.WriteAvroFile(t, filepath.Join(t.TempDir(), "people.avro"),
		testhelpers.PeopleSchema, testhelpers.PeopleRecords(first, n))
}

func registeredRows(t *testing.T, sess *engine.Session, reg *dataset.Registry, name string) int64 {
	t.Helper()
	h, ok := reg.Get(name)
	require.True(t, ok, "dataset %q registered", name)
	n, err := sess.Count(context.Background(), h.Relation)
	require.NoError(t, err)
	return n
}

func TestRun_Basic(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()

	cfg := Config{InputPath: peopleFile(t, 0, 10), OutputName: "main"}
	require.NoError(t, New().Run(context.Background(), cfg, sess, reg))

	assert.Equal(t, []string{"main"}, reg.Names())
	h, _ := reg.Get("main")
	assert.Equal(t, dataset.Schema{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "VARCHAR"}}, h.Schema)
	assert.Equal(t, dataset.StorageMemoryAndDisk, h.StorageLevel)
	assert.True(t, h.Partitioning.IsZero())
	assert.Equal(t, int64(10), registeredRows(t, sess, reg, "main"))
}

func TestRun_DefaultOutputName(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()

	require.NoError(t, New().Run(context.Background(), Config{InputPath: peopleFile(t, 0, 2)}, sess, reg))
	assert.Equal(t, []string{dataset.DefaultOutputName}, reg.Names())
}

func TestRun_AllTransforms(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()

	require.NoError(t, New().Run(ctx, Config{InputPath: peopleFile(t, 100, 2), OutputName: "extra"}, sess, reg))

	cfg := Config{
		InputPath:        peopleFile(t, 0, 10),
		ColumnNames:      []string{"user_id", "user_name"},
		SQL:              "SELECT user_id AS id, user_name AS name FROM people WHERE user_id % 2 = 0",
		SQLViewName:      "people",
		UnionWith:        "extra",
		PartitionColumns: []string{"id"},
		PartitionCount:   2,
		StorageLevel:     "DISK_ONLY",
		OutputName:       "main",
	}
	require.NoError(t, New().Run(ctx, cfg, sess, reg))

	h, ok := reg.Get("main")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, h.Schema.Names())
	assert.Equal(t, dataset.StorageDisk, h.StorageLevel)
	assert.Equal(t, dataset.Partitioning{Columns: []string{"id"}, Count: 2}, h.Partitioning)
	assert.Equal(t, int64(7), registeredRows(t, sess, reg, "main"))
}

func TestRun_RenameMismatchLeavesRegistry(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()
	require.NoError(t, New().Run(ctx, Config{InputPath: peopleFile(t, 0, 3), OutputName: "main"}, sess, reg))
	before, _ := reg.Get("main")

	cfg := Config{InputPath: peopleFile(t, 0, 10), ColumnNames: []string{"a", "b", "c"}, OutputName: "main"}
	err := New().Run(ctx, cfg, sess, reg)
	require.Error(t, err)
	assert.True(t, dataset.IsSchemaMismatch(err))

	after, _ := reg.Get("main")
	assert.Equal(t, before, after)
	assert.Equal(t, 1, reg.Len())
}

func TestRun_ColumnNamesFile(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()
	names := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(names, []byte("# columns\nkey\nlabel\n"), 0o644))

	cfg := Config{InputPath: peopleFile(t, 0, 3), ColumnNamesFile: names, OutputName: "main"}
	require.NoError(t, New().Run(context.Background(), cfg, sess, reg))

	h, _ := reg.Get("main")
	assert.Equal(t, []string{"key", "label"}, h.Schema.Names())
}

func TestRun_UnionMissing(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		sess := openSession(t)
		reg := dataset.NewRegistry()
		input := peopleFile(t, 0, 4)
		require.NoError(t, New().Run(ctx, Config{InputPath: input, OutputName: "baseline"}, sess, reg))
		cfg := Config{InputPath: input, UnionWith: "absent", OutputName: "main"}
		require.NoError(t, New().Run(ctx, cfg, sess, reg))
		assert.Equal(t, int64(4), registeredRows(t, sess, reg, "main"))

		baseline, _ := reg.Get("baseline")
		skipped, _ := reg.Get("main")
		assert.Equal(t, baseline.Schema, skipped.Schema)
		want, err := sess.Sample(ctx, baseline.Relation, 10)
		require.NoError(t, err)
		got, err := sess.Sample(ctx, skipped.Relation, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("fail", func(t *testing.T) {
		sess := openSession(t)
		reg := dataset.NewRegistry()
		cfg := Config{InputPath: peopleFile(t, 0, 4), UnionWith: "absent", UnionMissing: "fail", OutputName: "main"}
		err := New().Run(ctx, cfg, sess, reg)
		assert.True(t, dataset.IsConfig(err))
		assert.Equal(t, 0, reg.Len())
	})
}

func TestRun_UnionWithExisting(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()
	cfg := Config{InputPath: peopleFile(t, 0, 5), UnionWithExisting: true, OutputName: "main"}

	require.NoError(t, New().Run(ctx, cfg, sess, reg))
	assert.Equal(t, int64(5), registeredRows(t, sess, reg, "main"))

	require.NoError(t, New().Run(ctx, cfg, sess, reg))
	assert.Equal(t, int64(10), registeredRows(t, sess, reg, "main"))
}

func TestRun_UnionSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()
	require.NoError(t, New().Run(ctx, Config{InputPath: peopleFile(t, 0, 2), ColumnNames: []string{"a", "b"}, OutputName: "other"}, sess, reg))

	err := New().Run(ctx, Config{InputPath: peopleFile(t, 0, 2), UnionWith: "other", OutputName: "main"}, sess, reg)
	assert.True(t, dataset.IsSchemaMismatch(err))
	_, ok := reg.Get("main")
	assert.False(t, ok)
}

func TestRun_RerunOverwrites(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()

	require.NoError(t, New().Run(ctx, Config{InputPath: peopleFile(t, 0, 10), OutputName: "main"}, sess, reg))
	require.NoError(t, New().Run(ctx, Config{InputPath: peopleFile(t, 0, 3), OutputName: "main"}, sess, reg))
	assert.Equal(t, int64(3), registeredRows(t, sess, reg, "main"))
	assert.Equal(t, 1, reg.Len())
}

func TestRun_DebugDoesNotChangeResult(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()
	input := peopleFile(t, 0, 8)

	require.NoError(t, New().Run(ctx, Config{InputPath: input, OutputName: "plain"}, sess, reg))
	require.NoError(t, New().Run(ctx, Config{InputPath: input, OutputName: "debug", Debug: true, DebugRows: 2}, sess, reg))

	plain, _ := reg.Get("plain")
	debug, _ := reg.Get("debug")
	assert.Equal(t, plain.Schema, debug.Schema)

	a, err := sess.Sample(ctx, plain.Relation, 100)
	require.NoError(t, err)
	b, err := sess.Sample(ctx, debug.Relation, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_Failures(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()

	err := New().Run(ctx, Config{InputPath: filepath.Join(t.TempDir(), "missing.avro")}, sess, reg)
	assert.True(t, dataset.IsSourceRead(err))

	notAvro := filepath.Join(t.TempDir(), "bad.avro")
	require.NoError(t, os.WriteFile(notAvro, []byte("definitely not avro"), 0o644))
	err = New().Run(ctx, Config{InputPath: notAvro}, sess, reg)
	assert.True(t, dataset.IsSourceRead(err))

	err = New().Run(ctx, Config{InputPath: peopleFile(t, 0, 1), SQL: "SELECT missing_column FROM source"}, sess, reg)
	assert.True(t, dataset.IsQuery(err))

	err = New().Run(ctx, Config{InputPath: peopleFile(t, 0, 1), PartitionColumns: []string{"nope"}}, sess, reg)
	assert.True(t, dataset.IsConfig(err))

	assert.Equal(t, 0, reg.Len())
}

func TestRun_MixedPartSchemas(t *testing.T) {
	sess := openSession(t)
	dir := t.TempDir()
	testhelpers.WriteAvroFile(t, filepath.Join(dir, "part-0.avro"), testhelpers.PeopleSchema, testhelpers.PeopleRecords(0, 1))
	testhelpers.WriteAvroFile(t, filepath.Join(dir, "part-1.avro"),
		`{"type":"record","name":"Other","fields":[{"name":"x","type":"long"}]}`,
		[]map[string]any{{"x": int64(1)}})

	err := New().Run(context.Background(), Config{InputPath: dir}, sess, dataset.NewRegistry())
	assert.True(t, dataset.IsSourceRead(err))
}

func TestRun_Directory(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()
	dir := t.TempDir()
	testhelpers.WriteAvroFile(t, filepath.Join(dir, "part-0.avro"), testhelpers.PeopleSchema, testhelpers.PeopleRecords(0, 4))
	testhelpers.WriteAvroFile(t, filepath.Join(dir, "part-1.avro"), testhelpers.PeopleSchema, testhelpers.PeopleRecords(4, 6))

	t.Setenv("AVROINGEST_STAGE_TEST_DIR", dir)
	require.NoError(t, New().Run(context.Background(), Config{InputPath: "${AVROINGEST_STAGE_TEST_DIR}"}, sess, reg))
	assert.Equal(t, int64(10), registeredRows(t, sess, reg, dataset.DefaultOutputName))
}

func TestRun_RemoteInputAndSink(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()
	base := t.TempDir()
	testhelpers.WriteAvroFile(t, filepath.Join(base, "lake", "in", "part-0.avro"), testhelpers.PeopleSchema, testhelpers.PeopleRecords(0, 3))

	stage := New(WithResolver(pathresolve.NewResolver(nil, cloudstorage.NewFileClientProvider(base))))
	cfg := Config{
		InputPath: "s3://lake/in/",
		Sink:      SinkConfig{Destination: "s3://lake/out/"},
	}
	require.NoError(t, stage.Run(context.Background(), cfg, sess, reg))
	assert.FileExists(t, filepath.Join(base, "lake", "out", "part-00000.parquet"))
}

func TestRun_LocalSink(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()
	out := filepath.Join(t.TempDir(), "training.parquet")

	cfg := Config{InputPath: peopleFile(t, 0, 3), Sink: SinkConfig{Destination: out, Compression: "gzip"}}
	require.NoError(t, New().Run(context.Background(), cfg, sess, reg))
	assert.FileExists(t, out)
}

type recordingSink struct {
	names []string
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Run(_ context.Context, _ *engine.Session, reg *dataset.Registry) error {
	r.names = reg.Names()
	return r.err
}

func TestRun_SinkSeesRegistryAndPropagatesError(t *testing.T) {
	sess := openSession(t)
	reg := dataset.NewRegistry()
	sk := &recordingSink{err: errors.New("sink broke")}

	err := New(WithSink(sk)).Run(context.Background(), Config{InputPath: peopleFile(t, 0, 1), OutputName: "main"}, sess, reg)
	require.Error(t, err)
	assert.Equal(t, "sink broke", err.Error())
	assert.Equal(t, []string{"main"}, sk.names)
}

func TestRun_NilArguments(t *testing.T) {
	err := New().Run(context.Background(), Config{InputPath: "x"}, nil, dataset.NewRegistry())
	assert.True(t, dataset.IsConfig(err))
	err = New().Run(context.Background(), Config{InputPath: "x"}, openSession(t), nil)
	assert.True(t, dataset.IsConfig(err))
}

func TestRun_RegisterDoesNotExecuteDataset(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)
	reg := dataset.NewRegistry()

	// Executing the view fails; describing it does not.
	require.NoError(t, sess.CreateView(ctx, "exploding",
		"SELECT error('materialized')::INTEGER AS id, 'x' AS name"))
	schema, err := sess.Describe(ctx, "exploding")
	require.NoError(t, err)
	reg.Set("other", dataset.Handle{Relation: "exploding", Schema: schema})

	cfg := Config{InputPath: peopleFile(t, 0, 3), UnionWith: "other", StorageLevel: dataset.StorageNone, OutputName: "main"}

	var logs bytes.Buffer
	ll := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	require.NoError(t, New(WithLogger(ll)).Run(ctx, cfg, sess, reg))
	assert.NotContains(t, logs.String(), "materialized")
	_, ok := reg.Get("main")
	assert.True(t, ok)

	logs.Reset()
	cfg.Debug = true
	require.NoError(t, New(WithLogger(ll)).Run(ctx, cfg, sess, reg))
	assert.Contains(t, logs.String(), "materialized")
}
