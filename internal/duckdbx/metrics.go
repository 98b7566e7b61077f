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

package duckdbx

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/cardinalhq/avroingest/internal/duckdbx")

type memoryGauges struct {
	databaseSize metric.Int64Gauge
	blockSize    metric.Int64Gauge
	totalBlocks  metric.Int64Gauge
	usedBlocks   metric.Int64Gauge
	freeBlocks   metric.Int64Gauge
	walSize      metric.Int64Gauge
	memoryUsage  metric.Int64Gauge
	memoryLimit  metric.Int64Gauge
}

func newMemoryGauges() (*memoryGauges, error) {
	g := &memoryGauges{}
	defs := []struct {
		target *metric.Int64Gauge
		name   string
		desc   string
		unit   string
	}{
		{&g.databaseSize, "avroingest.duckdb.memory.database_size", "DuckDB database size", "By"},
		{&g.blockSize, "avroingest.duckdb.memory.block_size", "DuckDB block size", "By"},
		{&g.totalBlocks, "avroingest.duckdb.memory.total_blocks", "DuckDB total blocks", "1"},
		{&g.usedBlocks, "avroingest.duckdb.memory.used_blocks", "DuckDB used blocks", "1"},
		{&g.freeBlocks, "avroingest.duckdb.memory.free_blocks", "DuckDB free blocks", "1"},
		{&g.walSize, "avroingest.duckdb.memory.wal_size", "DuckDB WAL size", "By"},
		{&g.memoryUsage, "avroingest.duckdb.memory.memory_usage", "DuckDB memory usage", "By"},
		{&g.memoryLimit, "avroingest.duckdb.memory.memory_limit", "DuckDB memory limit", "By"},
	}
	for _, def := range defs {
		gauge, err := meter.Int64Gauge(def.name,
			metric.WithDescription(def.desc),
			metric.WithUnit(def.unit),
		)
		if err != nil {
			return nil, err
		}
		*def.target = gauge
	}
	return g, nil
}

func (g *memoryGauges) record(ctx context.Context, stat MemoryStats) {
	attr := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("database_name", stat.DatabaseName),
		attribute.String("database_type", "duckdb"),
	))
	g.databaseSize.Record(ctx, stat.DatabaseSize, attr)
	g.blockSize.Record(ctx, stat.BlockSize, attr)
	g.totalBlocks.Record(ctx, stat.TotalBlocks, attr)
	g.usedBlocks.Record(ctx, stat.UsedBlocks, attr)
	g.freeBlocks.Record(ctx, stat.FreeBlocks, attr)
	g.walSize.Record(ctx, stat.WALSize, attr)
	g.memoryUsage.Record(ctx, stat.MemoryUsage, attr)
	g.memoryLimit.Record(ctx, stat.MemoryLimit, attr)
}

// pollMemoryMetrics records PRAGMA database_size as gauges until ctx is done.
func (d *DB) pollMemoryMetrics(ctx context.Context) {
	gauges, err := newMemoryGauges()
	if err != nil {
		slog.Error("failed to create duckdb memory metrics", slog.Any("error", err))
		return
	}

	for {
		d.recordMemoryOnce(ctx, gauges)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.metricsPeriod):
		}
	}
}

func (d *DB) recordMemoryOnce(ctx context.Context, gauges *memoryGauges) {
	conn, release, err := d.GetConnection(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to get connection for memory metrics", slog.Any("error", err))
		}
		return
	}
	defer release()

	stats, err := GetDuckDBMemoryStats(ctx, conn)
	if err != nil {
		slog.Error("failed to get memory stats", slog.Any("error", err))
		return
	}
	for _, stat := range stats {
		gauges.record(ctx, stat)
	}
}
