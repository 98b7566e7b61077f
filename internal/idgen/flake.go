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

package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sony/sonyflake"
)

var DefaultFlakeGenerator *SonyFlakeGenerator

func init() {
	var err error
	// sonyflake's default machine ID needs a private IPv4 address, which
	// laptops and sandboxes often lack.
	DefaultFlakeGenerator, err = newFlakeGenerator(nil, hostnameMachineID)
	if err != nil {
		panic(err)
	}
}

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// newFlakeGenerator tries each machine ID source in order and keeps the first
// that works. A nil source means sonyflake's private IP default.
func newFlakeGenerator(machineIDs ...func() (uint16, error)) (*SonyFlakeGenerator, error) {
	if len(machineIDs) == 0 {
		machineIDs = []func() (uint16, error){nil}
	}
	var errs error
	for _, machineID := range machineIDs {
		sf, err := sonyflake.New(sonyflake.Settings{
			StartTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			MachineID: machineID,
		})
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if sf == nil {
			errs = multierror.Append(errs, errors.New("failed to create Sonyflake instance"))
			continue
		}
		return &SonyFlakeGenerator{sf: sf}, nil
	}
	return nil, errs
}

// hostnameMachineID derives a machine ID from the low 16 bits of an FNV hash
// of the hostname.
func hostnameMachineID() (uint16, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return uint16(h.Sum32()), nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
func (sf *SonyFlakeGenerator) NextID() int64 {
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// NextBase32ID returns the next ID as lowercase, unpadded base32.
// The result only contains [a-z2-7], so it is safe inside SQL identifiers.
func (sf *SonyFlakeGenerator) NextBase32ID() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(sf.NextID()))
	return strings.TrimLeft(lowerBase32.EncodeToString(b[:]), "a")
}

// NextBase32ID returns the next base32 ID from the default generator.
func NextBase32ID() string {
	return DefaultFlakeGenerator.NextBase32ID()
}
