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

package cloudstorage

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardinalhq/avroingest/internal/awsclient"
	"github.com/cardinalhq/avroingest/internal/azureclient"
	"github.com/cardinalhq/avroingest/internal/gcpclient"
	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

// CloudManagers holds all cloud provider managers. Each manager is created on
// first use, so a run that only touches one provider never loads the others'
// credentials.
type CloudManagers struct {
	mu    sync.Mutex
	aws   *awsclient.Manager
	azure *azureclient.Manager
	gcp   *gcpclient.Manager
}

var _ ClientProvider = (*CloudManagers)(nil)

func NewCloudManagers() *CloudManagers {
	return &CloudManagers{}
}

func (m *CloudManagers) awsManager(ctx context.Context) (*awsclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aws == nil {
		mgr, err := awsclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		m.aws = mgr
	}
	return m.aws, nil
}

func (m *CloudManagers) azureManager(ctx context.Context) (*azureclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.azure == nil {
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		m.azure = mgr
	}
	return m.azure, nil
}

func (m *CloudManagers) gcpManager(ctx context.Context) (*gcpclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gcp == nil {
		mgr, err := gcpclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP manager: %w", err)
		}
		m.gcp = mgr
	}
	return m.gcp, nil
}

// NewClient creates a storage Client for the given profile.
func (m *CloudManagers) NewClient(ctx context.Context, profile storageprofile.StorageProfile) (Client, error) {
	switch profile.CloudProvider {
	case storageprofile.ProviderAWS, "":
		mgr, err := m.awsManager(ctx)
		if err != nil {
			return nil, err
		}
		c, err := mgr.GetS3ForProfile(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{awsS3Client: c}, nil
	case storageprofile.ProviderGCP:
		mgr, err := m.gcpManager(ctx)
		if err != nil {
			return nil, err
		}
		c, err := mgr.GetStorageForProfile(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		return &gcsClient{storageClient: c}, nil
	case storageprofile.ProviderAzure:
		mgr, err := m.azureManager(ctx)
		if err != nil {
			return nil, err
		}
		c, err := mgr.GetBlobForProfile(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: c}, nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", profile.CloudProvider)
	}
}

// Close releases clients that hold connections.
func (m *CloudManagers) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gcp != nil {
		return m.gcp.Close()
	}
	return nil
}
