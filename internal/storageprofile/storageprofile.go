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

// Package storageprofile maps bucket names to the credentials and endpoints
// used to reach them.
package storageprofile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Cloud provider names.
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
)

type StorageProfile struct {
	CloudProvider  string `json:"cloud_provider" yaml:"cloud_provider"`
	Region         string `json:"region" yaml:"region"`
	Role           string `json:"role,omitempty" yaml:"role,omitempty"`
	Bucket         string `json:"bucket" yaml:"bucket"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	StorageAccount string `json:"storage_account,omitempty" yaml:"storage_account,omitempty"`
	InsecureTLS    bool   `json:"insecure_tls,omitempty" yaml:"insecure_tls,omitempty"`
	UsePathStyle   bool   `json:"use_path_style,omitempty" yaml:"use_path_style,omitempty"`
}

// ErrProfileNotFound is returned when no profile is configured for a bucket.
var ErrProfileNotFound = errors.New("storage profile not found")

type StorageProfileProvider interface {
	GetStorageProfileForBucket(ctx context.Context, bucketName string) (StorageProfile, error)
}

// DefaultProfileFile is used when STORAGE_PROFILE_FILE is unset.
const DefaultProfileFile = "/app/config/storage_profiles.yaml"

// SetupStorageProfiles loads profiles from filename, or from STORAGE_PROFILE_FILE
// when filename is empty. A missing default file is not an error: every bucket
// then gets a profile derived from its URL scheme.
func SetupStorageProfiles(filename string) (StorageProfileProvider, error) {
	explicit := filename != ""
	if filename == "" {
		filename = os.Getenv("STORAGE_PROFILE_FILE")
		explicit = filename != ""
	}
	if filename == "" {
		filename = DefaultProfileFile
	}

	if !explicit {
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			slog.Debug("No storage profile file, using scheme defaults", slog.String("path", filename))
			return NewStaticProvider(), nil
		}
	}

	slog.Info("Using file storage profile provider", slog.String("path", filename))
	return NewFileProvider(filename)
}

// ProfileForScheme builds the profile used for a bucket nobody configured.
func ProfileForScheme(scheme, bucket string) (StorageProfile, error) {
	switch scheme {
	case "s3", "s3a":
		return StorageProfile{CloudProvider: ProviderAWS, Bucket: bucket}, nil
	case "gs", "gcs":
		return StorageProfile{CloudProvider: ProviderGCP, Bucket: bucket}, nil
	case "az", "azure", "abfs", "abfss":
		return StorageProfile{CloudProvider: ProviderAzure, Bucket: bucket}, nil
	default:
		return StorageProfile{}, fmt.Errorf("no cloud provider for scheme %q", scheme)
	}
}

type staticProvider struct {
	profiles map[string]StorageProfile
}

var _ StorageProfileProvider = (*staticProvider)(nil)

// NewStaticProvider serves a fixed set of profiles keyed by bucket.
func NewStaticProvider(profiles ...StorageProfile) StorageProfileProvider {
	p := &staticProvider{profiles: make(map[string]StorageProfile, len(profiles))}
	for _, sp := range profiles {
		p.profiles[sp.Bucket] = sp
	}
	return p
}

func (p *staticProvider) GetStorageProfileForBucket(_ context.Context, bucketName string) (StorageProfile, error) {
	if sp, ok := p.profiles[bucketName]; ok {
		return sp, nil
	}
	return StorageProfile{}, fmt.Errorf("%w for bucket %s", ErrProfileNotFound, bucketName)
}
