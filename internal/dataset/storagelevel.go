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

package dataset

import (
	"fmt"
	"strings"
)

// StorageLevel is the persistence hint applied to a dataset before it is registered.
type StorageLevel string

const (
	StorageNone          StorageLevel = "none"
	StorageMemory        StorageLevel = "memory"
	StorageDisk          StorageLevel = "disk"
	StorageMemoryAndDisk StorageLevel = "memory_and_disk"

	// DefaultStorageLevel is used when no level is configured.
	DefaultStorageLevel = StorageMemoryAndDisk
)

// ParseStorageLevel accepts the level names above, case insensitive, as well
// as the MEMORY_ONLY / DISK_ONLY spellings. An empty string yields the default.
func ParseStorageLevel(s string) (StorageLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultStorageLevel, nil
	case "none", "off":
		return StorageNone, nil
	case "memory", "memory_only":
		return StorageMemory, nil
	case "disk", "disk_only":
		return StorageDisk, nil
	case "memory_and_disk":
		return StorageMemoryAndDisk, nil
	default:
		return "", fmt.Errorf("unknown storage level %q", s)
	}
}

// OrNone returns the level, or "none" for the zero value.
func (l StorageLevel) OrNone() StorageLevel {
	if l == "" {
		return StorageNone
	}
	return l
}
