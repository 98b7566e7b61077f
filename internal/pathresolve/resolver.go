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

package pathresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cardinalhq/avroingest/internal/cloudstorage"
	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

const avroExt = ".avro"

// Resolved is the outcome of resolving one configured input.
type Resolved struct {
	// Source is the input after variable substitution.
	Source string
	// Files are local paths in read order.
	Files []string
	// Remote is set when the files were downloaded.
	Remote bool
}

// Resolver resolves local paths and object store URLs. Profiles and Clients
// are only consulted for remote locations.
type Resolver struct {
	Profiles storageprofile.StorageProfileProvider
	Clients  cloudstorage.ClientProvider
}

// NewResolver returns a Resolver using the given profile and client providers.
func NewResolver(profiles storageprofile.StorageProfileProvider, clients cloudstorage.ClientProvider) *Resolver {
	return &Resolver{Profiles: profiles, Clients: clients}
}

// Resolve substitutes variables in raw and expands it to the Avro part files
// it names. A directory or prefix yields its *.avro files, skipping names that
// start with "." or "_", sorted by name. Remote objects are downloaded below
// scratchDir. Resolving to no files is a SourceReadError.
func (r *Resolver) Resolve(ctx context.Context, raw string, env map[string]string, scratchDir string) (Resolved, error) {
	if strings.TrimSpace(raw) == "" {
		return Resolved{}, dataset.NewConfigError("input_path", "must not be empty")
	}
	source, err := Substitute(raw, env)
	if err != nil {
		return Resolved{}, err
	}

	loc, remote, err := ParseLocation(source)
	if err != nil {
		return Resolved{}, dataset.NewConfigError("input_path", err.Error())
	}

	var files []string
	if remote {
		files, err = r.resolveRemote(ctx, loc, scratchDir)
	} else {
		files, err = resolveLocal(LocalPath(source))
	}
	if err != nil {
		return Resolved{}, err
	}
	if len(files) == 0 {
		return Resolved{}, dataset.NewSourceReadError(source, errors.New("no Avro files found"))
	}
	return Resolved{Source: source, Files: files, Remote: remote}, nil
}

// ResolveFile substitutes variables in raw and returns a local path for the
// single file it names, downloading it when remote.
func (r *Resolver) ResolveFile(ctx context.Context, raw string, env map[string]string, scratchDir string) (string, error) {
	source, err := Substitute(raw, env)
	if err != nil {
		return "", err
	}
	loc, remote, err := ParseLocation(source)
	if err != nil {
		return "", dataset.NewConfigError("path", err.Error())
	}
	if !remote {
		p := LocalPath(source)
		info, err := os.Stat(p)
		if err != nil {
			return "", dataset.NewSourceReadError(p, err)
		}
		if info.IsDir() {
			return "", dataset.NewSourceReadError(p, errors.New("is a directory"))
		}
		return p, nil
	}
	client, err := r.Client(ctx, loc)
	if err != nil {
		return "", err
	}
	return download(ctx, client, loc, scratchDir)
}

// Client returns a storage client for the location's bucket. Buckets without a
// configured profile get one derived from the URL scheme.
func (r *Resolver) Client(ctx context.Context, loc Location) (cloudstorage.Client, error) {
	if r == nil || r.Clients == nil {
		return nil, dataset.NewConfigError("path", fmt.Sprintf("no object store access configured for %s", loc))
	}

	var profile storageprofile.StorageProfile
	var err error
	if r.Profiles != nil {
		profile, err = r.Profiles.GetStorageProfileForBucket(ctx, loc.Bucket)
	} else {
		err = storageprofile.ErrProfileNotFound
	}
	if errors.Is(err, storageprofile.ErrProfileNotFound) {
		profile, err = loc.Profile()
	}
	if err != nil {
		return nil, dataset.NewConfigError("path", fmt.Sprintf("storage profile for %s: %v", loc.Bucket, err))
	}

	client, err := r.Clients.NewClient(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("storage client for %s: %w", loc.Bucket, err)
	}
	return client, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, loc Location, scratchDir string) ([]string, error) {
	client, err := r.Client(ctx, loc)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(scratchDir, "input-")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	if loc.IsObject() && strings.EqualFold(path.Ext(loc.Key), avroExt) {
		f, err := download(ctx, client, loc, dir)
		if err != nil {
			return nil, err
		}
		return []string{f}, nil
	}

	prefix := loc.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := client.ListObjects(ctx, loc.Bucket, prefix)
	if err != nil {
		return nil, dataset.NewSourceReadError(loc.String(), err)
	}

	var files []string
	for _, obj := range objects {
		// Only direct children, matching local directory expansion.
		if strings.Contains(strings.TrimPrefix(obj.Key, prefix), "/") || !isPartFile(path.Base(obj.Key)) {
			continue
		}
		f, err := download(ctx, client, Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: obj.Key}, dir)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	slog.Info("Downloaded Avro parts",
		slog.String("location", loc.String()),
		slog.Int("files", len(files)))
	return files, nil
}

func download(ctx context.Context, client cloudstorage.Client, loc Location, dir string) (string, error) {
	name, _, notFound, err := client.DownloadObject(ctx, dir, loc.Bucket, loc.Key)
	if err != nil {
		return "", dataset.NewSourceReadError(loc.String(), err)
	}
	if notFound {
		return "", dataset.NewSourceReadError(loc.String(), os.ErrNotExist)
	}
	return name, nil
}

func resolveLocal(p string) ([]string, error) {
	if strings.ContainsAny(p, "*?[") {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, dataset.NewConfigError("input_path", err.Error())
		}
		var files []string
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			files = append(files, m)
		}
		sort.Strings(files)
		return files, nil
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, dataset.NewSourceReadError(p, err)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, dataset.NewSourceReadError(p, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isPartFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(p, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// isPartFile skips hidden and bookkeeping files such as _SUCCESS.
func isPartFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), avroExt)
}
