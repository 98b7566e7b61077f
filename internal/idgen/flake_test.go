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
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyFlakeGenerator_NextID(t *testing.T) {
	gen, err := newFlakeGenerator(hostnameMachineID)
	require.NoError(t, err, "failed to create SonyFlakeGenerator")

	// Check that subsequent IDs are increasing
	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id, "NextID() did not return increasing id")
}

func TestSonyFlakeGenerator_NextBase32ID(t *testing.T) {
	gen, err := newFlakeGenerator(hostnameMachineID)
	require.NoError(t, err, "failed to create SonyFlakeGenerator")

	id1 := gen.NextBase32ID()
	id2 := gen.NextBase32ID()
	assert.NotEqual(t, id1, id2, "NextBase32ID() returned duplicate IDs")

	valid := regexp.MustCompile(`^[a-z2-7]+$`)
	assert.Regexp(t, valid, id1)
	assert.Regexp(t, valid, id2)

	id3 := NextBase32ID()
	assert.Regexp(t, valid, id3)
}

func TestNewFlakeGenerator_FallsBackToNextMachineID(t *testing.T) {
	noAddress := func() (uint16, error) { return 0, errors.New("no private ip address") }

	gen, err := newFlakeGenerator(noAddress, hostnameMachineID)
	require.NoError(t, err)
	assert.Positive(t, gen.NextID())

	_, err = newFlakeGenerator(noAddress)
	assert.Error(t, err)
}

func TestHostnameMachineID_Stable(t *testing.T) {
	a, err := hostnameMachineID()
	require.NoError(t, err)
	b, err := hostnameMachineID()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
