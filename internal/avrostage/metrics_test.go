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
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

var (
	readerOnce sync.Once
	reader     *sdkmetric.ManualReader
)

// testReader installs a global meter provider once; instruments created at
// package init delegate to the first provider set.
func testReader() *sdkmetric.ManualReader {
	readerOnce.Do(func() {
		reader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	})
	return reader
}

func registrations(t *testing.T, r *sdkmetric.ManualReader, output string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "avroingest.stage.datasets_registered" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("output")); ok && v.AsString() == output {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRun_RecordsDatasetsRegistered(t *testing.T) {
	r := testReader()
	sess := openSession(t)
	reg := dataset.NewRegistry()

	before := registrations(t, r, "metered")
	require.NoError(t, New().Run(context.Background(), Config{InputPath: peopleFile(t, 0, 4), OutputName: "metered"}, sess, reg))
	require.NoError(t, New().Run(context.Background(), Config{InputPath: peopleFile(t, 0, 3), OutputName: "metered"}, sess, reg))

	assert.Equal(t, int64(2), registrations(t, r, "metered")-before)
}
