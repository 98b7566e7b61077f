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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter  = otel.Meter("github.com/cardinalhq/avroingest/internal/avrostage")
	tracer = otel.Tracer("github.com/cardinalhq/avroingest/internal/avrostage")

	runDuration        metric.Float64Histogram
	datasetsRegistered metric.Int64Counter
	persistFailed      metric.Int64Counter
)

func init() {
	var err error
	runDuration, err = meter.Float64Histogram(
		"avroingest.stage.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of one ingestion run"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create run.duration histogram: %w", err))
	}

	datasetsRegistered, err = meter.Int64Counter(
		"avroingest.stage.datasets_registered",
		metric.WithDescription("Datasets registered by ingestion runs"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create datasets_registered counter: %w", err))
	}

	persistFailed, err = meter.Int64Counter(
		"avroingest.stage.persist_failed",
		metric.WithDescription("Datasets registered unpersisted because persisting failed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create persist_failed counter: %w", err))
	}
}
