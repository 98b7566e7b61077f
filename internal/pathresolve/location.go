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
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cardinalhq/avroingest/internal/storageprofile"
)

// Location is a parsed object store URL.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	// StorageAccount is set for abfs(s)://container@account.dfs.core.windows.net URLs.
	StorageAccount string
}

func (l Location) String() string {
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}

// IsObject reports whether the key names a single file rather than a prefix.
func (l Location) IsObject() bool {
	return l.Key != "" && !strings.HasSuffix(l.Key, "/")
}

// Join returns the location of name below the key.
func (l Location) Join(name string) Location {
	out := l
	out.Key = path.Join(l.Key, name)
	return out
}

// Profile returns the fallback storage profile for the location's scheme.
func (l Location) Profile() (storageprofile.StorageProfile, error) {
	p, err := storageprofile.ProfileForScheme(l.Scheme, l.Bucket)
	if err != nil {
		return p, err
	}
	p.StorageAccount = l.StorageAccount
	return p, nil
}

var remoteSchemes = map[string]bool{
	"s3": true, "s3a": true,
	"gs": true, "gcs": true,
	"az": true, "azure": true, "abfs": true, "abfss": true,
}

// ParseLocation parses s as an object store URL. It reports false for local
// paths, including file:// URLs.
func ParseLocation(s string) (Location, bool, error) {
	scheme, _, found := strings.Cut(s, "://")
	if !found {
		return Location{}, false, nil
	}
	scheme = strings.ToLower(scheme)
	if scheme == "file" {
		return Location{}, false, nil
	}
	if !remoteSchemes[scheme] {
		return Location{}, false, fmt.Errorf("unsupported scheme %q", scheme)
	}

	u, err := url.Parse(s)
	if err != nil {
		return Location{}, false, fmt.Errorf("parse %q: %w", s, err)
	}

	loc := Location{
		Scheme: scheme,
		Bucket: u.Host,
		Key:    strings.TrimPrefix(u.Path, "/"),
	}
	if u.User != nil {
		loc.Bucket = u.User.Username()
		loc.StorageAccount, _, _ = strings.Cut(u.Hostname(), ".")
	}
	if loc.Bucket == "" {
		return Location{}, false, fmt.Errorf("missing bucket in %q", s)
	}
	return loc, true, nil
}

// LocalPath strips a file:// prefix.
func LocalPath(s string) string {
	if rest, ok := strings.CutPrefix(s, "file://"); ok {
		return rest
	}
	return s
}
