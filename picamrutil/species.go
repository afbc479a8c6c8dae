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
	"fmt"
	"sort"

	"gopkg.in/gcfg.v1"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/phys"
)

// speciesSection is one [species "name"] section of a species deck.
type speciesSection struct {
	// Charge is in units of the elementary charge and Mass in units of
	// the electron mass.
	Charge float64
	Mass   float64
	Pusher string

	// Density is an expression of x, y and z [1/m³].
	Density string
	// PPC is the number of particles per cell along each axis, e.g. "2 2 2".
	PPC string
	// Momentum is γv in units of the speed of light, e.g. "0.1 0 0".
	Momentum string

	DoNotPush    bool
	DoNotDeposit bool
	DoNotGather  bool
}

type speciesDeck struct {
	Species map[string]*speciesSection
}

// ReadSpeciesDeck reads particle species from an INI-style file with one
// section per species:
//
//	[species "electrons"]
//	charge = -1
//	mass = 1
//	density = 1e25 * step(x - 2e-6)
//	ppc = 2 2 2
//	momentum = 0.01 0 0
//
// Species are returned in order of name.
func ReadSpeciesDeck(path string) ([]picamr.SpeciesConfig, error) {
	var d speciesDeck
	if err := gcfg.ReadFileInto(&d, path); err != nil {
		return nil, fmt.Errorf("picamr: reading species deck: %v", err)
	}
	return d.species()
}

func readSpeciesDeckString(s string) ([]picamr.SpeciesConfig, error) {
	var d speciesDeck
	if err := gcfg.ReadStringInto(&d, s); err != nil {
		return nil, fmt.Errorf("picamr: reading species deck: %v", err)
	}
	return d.species()
}

func (d speciesDeck) species() ([]picamr.SpeciesConfig, error) {
	names := make([]string, 0, len(d.Species))
	for name := range d.Species {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []picamr.SpeciesConfig
	for _, name := range names {
		sec := d.Species[name]
		if sec.Mass <= 0 {
			return nil, fmt.Errorf("picamr: species %s: mass must be positive", name)
		}
		sc := picamr.SpeciesConfig{
			Name:         name,
			Charge:       sec.Charge * phys.Q,
			Mass:         sec.Mass * phys.Me,
			Density:      sec.Density,
			DoNotPush:    sec.DoNotPush,
			DoNotDeposit: sec.DoNotDeposit,
			DoNotGather:  sec.DoNotGather,
		}
		if sec.Pusher != "" {
			var err error
			if sc.Pusher, err = particles.ParsePusher(sec.Pusher); err != nil {
				return nil, fmt.Errorf("picamr: species %s: %v", name, err)
			}
		}
		sc.PPC = mesh.Uniform(1)
		if sec.PPC != "" {
			if _, err := fmt.Sscan(sec.PPC, &sc.PPC[0], &sc.PPC[1], &sc.PPC[2]); err != nil {
				return nil, fmt.Errorf("picamr: species %s: invalid ppc %q: %v", name, sec.PPC, err)
			}
		}
		if sec.Momentum != "" {
			if _, err := fmt.Sscan(sec.Momentum, &sc.Momentum[0], &sc.Momentum[1], &sc.Momentum[2]); err != nil {
				return nil, fmt.Errorf("picamr: species %s: invalid momentum %q: %v", name, sec.Momentum, err)
			}
			for i := range sc.Momentum {
				sc.Momentum[i] *= phys.C
			}
		}
		out = append(out, sc)
	}
	return out, nil
}
