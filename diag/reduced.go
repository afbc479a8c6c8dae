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

package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/spatialmodel/picamr"
)

// SpeciesStats holds reduced statistics of one particle species.
type SpeciesStats struct {
	Name          string
	N             int
	Charge        float64    // [C]
	KineticEnergy float64    // [J]
	MeanVelocity  [3]float64 // [m/s]
	MaxSpeed      float64    // [m/s]
}

// Row is one line of reduced diagnostics.
type Row struct {
	Step        int
	Time        float64 // [s]
	FieldEnergy float64 // [J]
	MaxDivB     float64 // [T/m]
	Species     []SpeciesStats
}

// Reduced returns reduced diagnostics of the current state of s. Field
// quantities are computed on level 0, which finer levels are synchronized
// to after every step.
func Reduced(s *picamr.Simulation) Row {
	r := Row{Step: s.Step, Time: s.Time}
	if len(s.Levels) > 0 {
		g := s.Levels[0].Geom
		b := s.Arena.Vector(0, picamr.BField)
		r.FieldEnergy = FieldEnergy(s.Arena.Vector(0, picamr.EField), b, g)
		if b[0] != nil {
			_, r.MaxDivB = DivB(b, g)
		}
	}
	for _, sp := range s.Species {
		r.Species = append(r.Species, SpeciesStats{
			Name:          sp.Name,
			N:             sp.NumParticles(),
			Charge:        sp.TotalCharge(),
			KineticEnergy: sp.KineticEnergy(),
			MeanVelocity:  sp.MeanVelocity(),
			MaxSpeed:      sp.MaxSpeed(),
		})
	}
	return r
}

func (r Row) header() string {
	cols := []string{"step", "time", "field_energy", "max_divb"}
	for _, sp := range r.Species {
		for _, c := range []string{"n", "charge", "kinetic_energy", "vx", "vy", "vz", "max_speed"} {
			cols = append(cols, sp.Name+"_"+c)
		}
	}
	return strings.Join(cols, "\t")
}

func (r Row) String() string {
	cols := []string{
		fmt.Sprint(r.Step),
		fmt.Sprintf("%.9g", r.Time),
		fmt.Sprintf("%.9g", r.FieldEnergy),
		fmt.Sprintf("%.9g", r.MaxDivB),
	}
	for _, sp := range r.Species {
		cols = append(cols, fmt.Sprint(sp.N))
		for _, v := range []float64{sp.Charge, sp.KineticEnergy, sp.MeanVelocity[0],
			sp.MeanVelocity[1], sp.MeanVelocity[2], sp.MaxSpeed} {
			cols = append(cols, fmt.Sprintf("%.9g", v))
		}
	}
	return strings.Join(cols, "\t")
}

// WriteReduced returns a function that writes a tab-separated row of
// reduced diagnostics to w each time it is called, preceded by a header
// line the first time.
func WriteReduced(w io.Writer) picamr.DomainManipulator {
	first := true
	return func(s *picamr.Simulation) error {
		r := Reduced(s)
		if first {
			if _, err := fmt.Fprintln(w, r.header()); err != nil {
				return fmt.Errorf("diag.WriteReduced: %v", err)
			}
			first = false
		}
		if _, err := fmt.Fprintln(w, r); err != nil {
			return fmt.Errorf("diag.WriteReduced: %v", err)
		}
		return nil
	}
}
