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

package helpers

import (
	"golang.org/x/sys/unix"
)

// VolumeSize holds the byte capacity of the filesystem containing a path.
type VolumeSize struct {
	TotalBytes uint64
	FreeBytes  uint64 // available to non-root users
}

// UsedBytes is TotalBytes minus FreeBytes.
func (v VolumeSize) UsedBytes() uint64 {
	return v.TotalBytes - v.FreeBytes
}

// StatVolume returns the size of the filesystem that contains path.
func StatVolume(path string) (VolumeSize, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return VolumeSize{}, err
	}
	return VolumeSize{
		TotalBytes: st.Blocks * uint64(st.Bsize),
		FreeBytes:  st.Bavail * uint64(st.Bsize),
	}, nil
}
