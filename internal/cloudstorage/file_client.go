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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

// FileClientProvider creates clients that operate on the local filesystem.
// Bucket names become subdirectories of base. Intended for tests.
type FileClientProvider struct {
	base string
}

// NewFileClientProvider returns a new provider rooted at base.
func NewFileClientProvider(base string) ClientProvider {
	return &FileClientProvider{base: base}
}

func (p *FileClientProvider) NewClient(_ context.Context, _ storageprofile.StorageProfile) (Client, error) {
	return &fileClient{base: p.base}, nil
}

type fileClient struct {
	base string
}

func (c *fileClient) path(bucket, key string) string {
	return filepath.Join(c.base, bucket, filepath.FromSlash(key))
}

func (c *fileClient) DownloadObject(_ context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	src, err := os.Open(c.path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, true, nil
		}
		return "", 0, false, err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(tmpdir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, false, err
	}
	defer func() { _ = dst.Close() }()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", 0, false, err
	}
	return dst.Name(), n, false, nil
}

func (c *fileClient) UploadObject(_ context.Context, bucket, key, sourceFilename string) error {
	dst := c.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (c *fileClient) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	root := filepath.Join(c.base, bucket)
	var out []ObjectInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
