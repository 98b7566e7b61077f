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

// Package avrostage implements the Avro ingestion stage: resolve an input,
// load it, apply the configured transforms in a fixed order, and register the
// result under a logical name.
package avrostage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/avroingest/internal/avroreader"
	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/engine"
	"github.com/cardinalhq/avroingest/internal/idgen"
	"github.com/cardinalhq/avroingest/internal/pathresolve"
	"github.com/cardinalhq/avroingest/internal/sink"
	"github.com/cardinalhq/avroingest/internal/transform"
)

// Stage runs ingestion. A Stage holds no per-run state and may be reused.
type Stage struct {
	resolver *pathresolve.Resolver
	sink     sink.Sink
	ids      idgen.IDGenerator
	ll       *slog.Logger
}

// Option configures a Stage.
type Option func(*Stage)

// WithResolver sets the resolver used for remote inputs, names files, and
// remote sink destinations. Without one only local paths work.
func WithResolver(r *pathresolve.Resolver) Option {
	return func(s *Stage) {
		s.resolver = r
	}
}

// WithSink replaces the sink built from Config.Sink.
func WithSink(sk sink.Sink) Option {
	return func(s *Stage) {
		s.sink = sk
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(ll *slog.Logger) Option {
	return func(s *Stage) {
		s.ll = ll
	}
}

// WithIDGenerator sets the generator for run IDs.
func WithIDGenerator(g idgen.IDGenerator) Option {
	return func(s *Stage) {
		s.ids = g
	}
}

func New(opts ...Option) *Stage {
	s := &Stage{}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = pathresolve.NewResolver(nil, nil)
	}
	if s.ids == nil {
		s.ids = idgen.NewULIDGenerator()
	}
	if s.ll == nil {
		s.ll = slog.Default()
	}
	return s
}

// Run performs one ingestion against sess and registers the result in reg
// under cfg.OutputName. Steps run in a fixed order and the first failure
// aborts the run; the registry is only written once every transform has
// succeeded. A failed persist is logged and the unpersisted dataset is
// registered instead.
func (s *Stage) Run(ctx context.Context, cfg Config, sess *engine.Session, reg *dataset.Registry) error {
	if sess == nil {
		return dataset.NewConfigError("session", "must not be nil")
	}
	if reg == nil {
		return dataset.NewConfigError("registry", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	runID := s.ids.Make(time.Now())
	ll := s.ll.With(slog.String("runID", runID), slog.String("output", cfg.OutputName))

	ctx, span := tracer.Start(ctx, "avrostage.Run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("output", cfg.OutputName),
	))
	defer span.End()

	t0 := time.Now()
	err := s.run(ctx, ll, cfg, sess, reg)
	runDuration.Record(ctx, time.Since(t0).Seconds(), metric.WithAttributes(
		attribute.Bool("hasError", err != nil),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ll.Error("Avro ingestion failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(t0)))
		return err
	}
	ll.Info("Avro ingestion finished", slog.Duration("elapsed", time.Since(t0)))
	return nil
}

func (s *Stage) run(ctx context.Context, ll *slog.Logger, cfg Config, sess *engine.Session, reg *dataset.Registry) error {
	var resolved pathresolve.Resolved
	err := step(ctx, "resolve", func(ctx context.Context) error {
		var err error
		resolved, err = s.resolver.Resolve(ctx, cfg.InputPath, cfg.Env, sess.ScratchDir())
		return err
	})
	if err != nil {
		return err
	}
	ll.Info("Resolved input",
		slog.String("source", resolved.Source),
		slog.Int("files", len(resolved.Files)),
		slog.Bool("remote", resolved.Remote))

	var h dataset.Handle
	err = step(ctx, "read", func(ctx context.Context) error {
		var err error
		h, err = avroreader.Read(ctx, sess, avroreader.Format, resolved.Files)
		return err
	})
	if err != nil {
		return err
	}

	if err := step(ctx, "rename", func(ctx context.Context) error {
		names, err := s.columnNames(ctx, cfg, sess)
		if err != nil || names == nil {
			return err
		}
		h, err = transform.Rename(ctx, sess, h, names)
		return err
	}); err != nil {
		return err
	}

	if cfg.SQL != "" {
		if err := step(ctx, "sql", func(ctx context.Context) error {
			var err error
			h, err = transform.ExecuteSQL(ctx, sess, h, cfg.SQLViewName, cfg.SQL)
			return err
		}); err != nil {
			return err
		}
	}

	for _, target := range cfg.unionTargets() {
		if err := step(ctx, "union", func(ctx context.Context) error {
			other, ok := reg.Get(target)
			if !ok {
				if cfg.UnionMissing == UnionMissingFail {
					return dataset.NewConfigError("union_with", fmt.Sprintf("no dataset registered as %q", target))
				}
				ll.Info("Union target not registered, skipping", slog.String("target", target))
				return nil
			}
			var err error
			h, err = transform.Union(ctx, sess, h, other)
			return err
		}); err != nil {
			return err
		}
	}

	if len(cfg.PartitionColumns) > 0 || cfg.PartitionCount > 0 {
		if err := step(ctx, "partition", func(ctx context.Context) error {
			var err error
			h, err = transform.Repartition(ctx, sess, h, cfg.PartitionColumns, cfg.PartitionCount)
			return err
		}); err != nil {
			return err
		}
	}

	_ = step(ctx, "persist", func(ctx context.Context) error {
		persisted, err := transform.Persist(ctx, sess, h, cfg.StorageLevel)
		if err != nil {
			persistFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("level", string(cfg.StorageLevel))))
			ll.Warn("Persist failed, registering unpersisted dataset",
				slog.String("level", string(cfg.StorageLevel)),
				slog.Any("error", err))
		}
		h = persisted
		return err
	})

	if replaced := reg.Set(cfg.OutputName, h); replaced {
		ll.Info("Replaced registered dataset", slog.String("relation", h.Relation))
	}
	// Counting rows executes the whole relation chain, so it only happens in debug.
	datasetsRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("output", cfg.OutputName)))
	ll.Info("Registered dataset", slog.String("dataset", h.String()))

	if cfg.Debug {
		_ = step(ctx, "debug", func(ctx context.Context) error {
			s.debug(ctx, ll, sess, h, cfg.DebugRows)
			return nil
		})
	}

	sk := s.sinkFor(cfg)
	if sk == nil {
		return nil
	}
	return step(ctx, "sink", func(ctx context.Context) error {
		return sk.Run(ctx, sess, reg)
	})
}

// columnNames returns the configured rename list, or nil when none is set.
func (s *Stage) columnNames(ctx context.Context, cfg Config, sess *engine.Session) ([]string, error) {
	if len(cfg.ColumnNames) > 0 {
		names := make([]string, len(cfg.ColumnNames))
		for i, n := range cfg.ColumnNames {
			names[i] = strings.TrimSpace(n)
		}
		return names, nil
	}
	if cfg.ColumnNamesFile == "" {
		return nil, nil
	}
	local, err := s.resolver.ResolveFile(ctx, cfg.ColumnNamesFile, cfg.Env, sess.ScratchDir())
	if err != nil {
		return nil, err
	}
	names, err := transform.ParseNamesFile(local)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Stage) sinkFor(cfg Config) sink.Sink {
	if s.sink != nil {
		return s.sink
	}
	if !cfg.Sink.Enabled() {
		return nil
	}
	name := cfg.Sink.Dataset
	if name == "" {
		name = cfg.OutputName
	}
	return &sink.ParquetSink{
		DatasetName: name,
		Destination: cfg.Sink.Destination,
		Compression: cfg.Sink.Compression,
		Env:         cfg.Env,
		Resolver:    s.resolver,
	}
}

// debug logs the schema, row count, and the first rows of h. Failures are
// logged and never fail the run.
func (s *Stage) debug(ctx context.Context, ll *slog.Logger, sess *engine.Session, h dataset.Handle, rows int) {
	ll.Info("Debug: dataset schema", slog.String("schema", h.Schema.String()))

	n, err := sess.Count(ctx, h.Relation)
	if err != nil {
		ll.Warn("Debug: count failed", slog.Any("error", err))
	} else {
		ll.Info("Debug: dataset row count", slog.Int64("rows", n))
	}

	sample, err := sess.Sample(ctx, h.Relation, rows)
	if err != nil {
		ll.Warn("Debug: sample failed", slog.Any("error", err))
		return
	}
	header := strings.Join(h.Schema.Names(), " | ")
	for i, row := range sample {
		ll.Info("Debug: sample row",
			slog.Int("row", i),
			slog.String("columns", header),
			slog.String("values", strings.Join(row, " | ")))
	}
}

// step runs fn inside a child span named after the step.
func step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "avrostage."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
