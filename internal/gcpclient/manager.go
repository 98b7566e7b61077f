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

// Package gcpclient builds Google Cloud Storage clients for storage profiles
// using Application Default Credentials.
package gcpclient

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager caches one storage client per (service account, endpoint).
type Manager struct {
	sync.RWMutex
	storageClients map[storageClientKey]*StorageClient
	tracer         trace.Tracer
}

func NewManager(ctx context.Context) (*Manager, error) {
	return &Manager{
		storageClients: make(map[storageClientKey]*StorageClient),
		tracer:         otel.Tracer("github.com/cardinalhq/avroingest/internal/gcpclient"),
	}, nil
}

// Close closes every cached client.
func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()

	var result *multierror.Error
	for key, c := range m.storageClients {
		if err := c.Client.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(m.storageClients, key)
	}
	return result.ErrorOrNil()
}
