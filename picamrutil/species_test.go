/*
Copyright © 2019 the picamr authors.
This file is part of picamr.

picamr is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

picamr is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with picamr.  If not, see <http://www.gnu.org/licenses/>.
*/

package picamrutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/phys"
)

const deck = `
; Electron-proton plasma.
[species "protons"]
charge = 1
mass = 1836.15267343
density = 1e25
ppc = 1 1 1
donotpush = true

[species "electrons"]
charge = -1
mass = 1
pusher = higuera
density = "1e25 * step(x)"
ppc = 2 2 1
momentum = 0.01 0 -0.02
`

func TestReadSpeciesDeck(t *testing.T) {
	sp, err := readSpeciesDeckString(deck)
	require.NoError(t, err)
	require.Len(t, sp, 2)

	e, p := sp[0], sp[1]
	assert.Equal(t, "electrons", e.Name)
	assert.Equal(t, -phys.Q, e.Charge)
	assert.Equal(t, phys.Me, e.Mass)
	assert.Equal(t, particles.HigueraCary, e.Pusher)
	assert.Equal(t, "1e25 * step(x)", e.Density)
	assert.Equal(t, mesh.IntVect{2, 2, 1}, e.PPC)
	assert.InDelta(t, 0.01*phys.C, e.Momentum[0], 1e-6)
	assert.InDelta(t, -0.02*phys.C, e.Momentum[2], 1e-6)
	assert.False(t, e.DoNotPush)

	assert.Equal(t, "protons", p.Name)
	assert.InEpsilon(t, phys.Mp, p.Mass, 1e-9)
	assert.Equal(t, particles.Boris, p.Pusher)
	assert.Equal(t, mesh.Uniform(1), p.PPC)
	assert.True(t, p.DoNotPush)
}

func TestReadSpeciesDeckErrors(t *testing.T) {
	for _, tc := range []struct {
		name, deck string
	}{
		{name: "no mass", deck: "[species \"e\"]\ncharge = -1\n"},
		{name: "bad pusher", deck: "[species \"e\"]\nmass = 1\npusher = leapfrog\n"},
		{name: "bad ppc", deck: "[species \"e\"]\nmass = 1\nppc = 2 2\n"},
		{name: "unknown variable", deck: "[species \"e\"]\nmass = 1\ncolor = blue\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readSpeciesDeckString(tc.deck)
			assert.Error(t, err)
		})
	}
}

func TestReadSpeciesDeckMissing(t *testing.T) {
	_, err := ReadSpeciesDeck("does_not_exist.ini")
	assert.Error(t, err)
}
