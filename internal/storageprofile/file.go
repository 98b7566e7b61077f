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
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// V2 YAML structures
type configV2 struct {
	Version int              `yaml:"version"`
	Buckets []bucketConfigV2 `yaml:"buckets"`
}

type bucketConfigV2 struct {
	Name           string `yaml:"name"`
	CloudProvider  string `yaml:"cloud_provider"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	Role           string `yaml:"role,omitempty"`
	StorageAccount string `yaml:"storage_account,omitempty"`
	InsecureTLS    bool   `yaml:"insecure_tls,omitempty"`
	UsePathStyle   bool   `yaml:"use_path_style,omitempty"`
}

type fileProvider struct {
	profiles map[string]StorageProfile
}

var _ StorageProfileProvider = (*fileProvider)(nil)

// NewFileProvider reads profiles from a YAML file. A filename of the form
// "env:NAME" reads the YAML from environment variable NAME instead.
func NewFileProvider(filename string) (StorageProfileProvider, error) {
	if envVar, ok := strings.CutPrefix(filename, "env:"); ok {
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return newFileProviderFromContents(filename, []byte(contents))
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage profiles from file %s: %w", filename, err)
	}

	return newFileProviderFromContents(filename, contents)
}

func newFileProviderFromContents(filename string, contents []byte) (StorageProfileProvider, error) {
	var versionCheck struct {
		Version int `yaml:"version"`
	}

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	if err := dec.Decode(&versionCheck); err == nil && versionCheck.Version == 2 {
		return parseV2Config(filename, contents)
	}

	return parseV1Config(filename, contents)
}

// v1 is a plain list of profiles.
func parseV1Config(filename string, contents []byte) (StorageProfileProvider, error) {
	var profiles []StorageProfile

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v1 storage profiles from file %s: %w", filename, err)
	}

	p := &fileProvider{profiles: make(map[string]StorageProfile, len(profiles))}
	for _, sp := range profiles {
		if sp.Bucket == "" {
			return nil, fmt.Errorf("storage profile in %s has no bucket", filename)
		}
		p.profiles[sp.Bucket] = sp
	}
	return p, nil
}

func parseV2Config(filename string, contents []byte) (StorageProfileProvider, error) {
	var config configV2

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v2 storage profiles from file %s: %w", filename, err)
	}

	p := &fileProvider{profiles: make(map[string]StorageProfile, len(config.Buckets))}
	for _, bucket := range config.Buckets {
		if bucket.Name == "" {
			return nil, fmt.Errorf("bucket entry in %s has no name", filename)
		}
		p.profiles[bucket.Name] = StorageProfile{
			CloudProvider:  bucket.CloudProvider,
			Region:         bucket.Region,
			Role:           bucket.Role,
			Bucket:         bucket.Name,
			Endpoint:       bucket.Endpoint,
			StorageAccount: bucket.StorageAccount,
			InsecureTLS:    bucket.InsecureTLS,
			UsePathStyle:   bucket.UsePathStyle,
		}
	}
	return p, nil
}

func (p *fileProvider) GetStorageProfileForBucket(_ context.Context, bucketName string) (StorageProfile, error) {
	if sp, ok := p.profiles[bucketName]; ok {
		return sp, nil
	}
	return StorageProfile{}, fmt.Errorf("%w for bucket %s", ErrProfileNotFound, bucketName)
}
