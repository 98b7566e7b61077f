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

package avroreader

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	recordsRead metric.Int64Counter
	filesRead   metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/avroingest/internal/avroreader")

	var err error
	recordsRead, err = meter.Int64Counter(
		"avroingest.avro.records_read",
		metric.WithDescription("Number of Avro records loaded into the engine"),
	)
	if err != nil {
		panic(err)
	}

	filesRead, err = meter.Int64Counter(
		"avroingest.avro.files_read",
		metric.WithDescription("Number of Avro part files loaded"),
	)
	if err != nil {
		panic(err)
	}
}
