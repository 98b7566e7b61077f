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

package azureclient

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

type blobConfig struct {
	StorageAccount string
	Endpoint       string
}

type BlobOption func(*blobConfig)

func WithBlobStorageAccount(storageAccount string) BlobOption {
	return func(c *blobConfig) {
		c.StorageAccount = storageAccount
	}
}

func WithBlobEndpoint(endpoint string) BlobOption {
	return func(c *blobConfig) {
		c.Endpoint = endpoint
	}
}

type blobClientKey struct {
	StorageAccount string
	Endpoint       string
}

func (m *Manager) GetBlob(ctx context.Context, opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}

	if bc.Endpoint == "" && bc.StorageAccount != "" {
		bc.Endpoint = DefaultEndpoint(bc.StorageAccount)
	}
	if bc.Endpoint == "" {
		return nil, fmt.Errorf("storage account or endpoint is required")
	}

	key := blobClientKey(bc)
	m.RLock()
	client, ok := m.blobClients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.blobClients[key]; ok {
		return client, nil
	}

	blobClient, err := azblob.NewClient(bc.Endpoint, m.baseCred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	client = &BlobClient{
		Client: blobClient,
		Tracer: m.tracer,
	}
	m.blobClients[key] = client
	return client, nil
}

// GetBlobForProfile returns a client for the profile's storage account.
func (m *Manager) GetBlobForProfile(ctx context.Context, p storageprofile.StorageProfile) (*BlobClient, error) {
	var opts []BlobOption
	if p.StorageAccount != "" {
		opts = append(opts, WithBlobStorageAccount(p.StorageAccount))
	}
	if p.Endpoint != "" {
		opts = append(opts, WithBlobEndpoint(p.Endpoint))
	}
	return m.GetBlob(ctx, opts...)
}

// DefaultEndpoint is the public blob endpoint of a storage account.
func DefaultEndpoint(storageAccount string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
}
