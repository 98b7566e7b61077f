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

// Package cloudstorage gives the ingest path one interface over S3, GCS and
// Azure Blob Storage, plus a local directory client for tests.
package cloudstorage

import (
	"context"
	"path"
	"strings"

	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Client provides a unified interface for cloud storage operations across different providers
type Client interface {
	// DownloadObject downloads an object to a new file in tmpdir.
	// Returns the temp filename, size, whether object was not found, and error
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file to cloud storage
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// ListObjects returns every object under prefix, sorted by key.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// ClientProvider creates storage clients for profiles.
type ClientProvider interface {
	NewClient(ctx context.Context, profile storageprofile.StorageProfile) (Client, error)
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".avro":
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}

const writerMetadata = "avroingest"
