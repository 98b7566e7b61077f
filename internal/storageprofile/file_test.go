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

package storageprofile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v1YAML = `
- bucket: raw-events
  cloud_provider: aws
  region: us-east-2
  role: arn:aws:iam::123456789012:role/reader
- bucket: minio-bucket
  cloud_provider: aws
  endpoint: http://localhost:9000
  use_path_style: true
`

const v2YAML = `
version: 2
buckets:
  - name: training
    cloud_provider: azure
    storage_account: acct
    endpoint: https://acct.blob.core.windows.net
  - name: features
    cloud_provider: gcp
    role: reader@project.iam.gserviceaccount.com
`

func TestFileProvider_V1(t *testing.T) {
	p, err := newFileProviderFromContents("inline", []byte(v1YAML))
	require.NoError(t, err)

	sp, err := p.GetStorageProfileForBucket(context.Background(), "raw-events")
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", sp.Region)
	assert.Equal(t, "arn:aws:iam::123456789012:role/reader", sp.Role)

	sp, err = p.GetStorageProfileForBucket(context.Background(), "minio-bucket")
	require.NoError(t, err)
	assert.True(t, sp.UsePathStyle)

	_, err = p.GetStorageProfileForBucket(context.Background(), "other")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFileProvider_V2(t *testing.T) {
	p, err := newFileProviderFromContents("inline", []byte(v2YAML))
	require.NoError(t, err)

	sp, err := p.GetStorageProfileForBucket(context.Background(), "training")
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, sp.CloudProvider)
	assert.Equal(t, "acct", sp.StorageAccount)
	assert.Equal(t, "training", sp.Bucket)
}

func TestFileProvider_UnknownFieldRejected(t *testing.T) {
	_, err := newFileProviderFromContents("inline", []byte("- bucket: x\n  organization_id: y\n"))
	assert.Error(t, err)
}

func TestNewFileProvider_FromEnv(t *testing.T) {
	t.Setenv("AVROINGEST_TEST_PROFILES", v2YAML)
	p, err := NewFileProvider("env:AVROINGEST_TEST_PROFILES")
	require.NoError(t, err)

	_, err = p.GetStorageProfileForBucket(context.Background(), "features")
	assert.NoError(t, err)

	_, err = NewFileProvider("env:AVROINGEST_TEST_UNSET_PROFILES")
	assert.Error(t, err)
}

func TestSetupStorageProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(v1YAML), 0o644))

	p, err := SetupStorageProfiles(path)
	require.NoError(t, err)
	_, err = p.GetStorageProfileForBucket(context.Background(), "raw-events")
	assert.NoError(t, err)

	t.Setenv("STORAGE_PROFILE_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = SetupStorageProfiles("")
	assert.Error(t, err, "an explicitly configured file must exist")
}

func TestProfileForScheme(t *testing.T) {
	sp, err := ProfileForScheme("s3", "b")
	require.NoError(t, err)
	assert.Equal(t, StorageProfile{CloudProvider: ProviderAWS, Bucket: "b"}, sp)

	sp, err = ProfileForScheme("gs", "b")
	require.NoError(t, err)
	assert.Equal(t, ProviderGCP, sp.CloudProvider)

	sp, err = ProfileForScheme("az", "b")
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, sp.CloudProvider)

	_, err = ProfileForScheme("ftp", "b")
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(StorageProfile{Bucket: "a", CloudProvider: ProviderAWS})
	_, err := p.GetStorageProfileForBucket(context.Background(), "a")
	assert.NoError(t, err)
	_, err = p.GetStorageProfileForBucket(context.Background(), "b")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
