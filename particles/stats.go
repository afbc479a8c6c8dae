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

package particles

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/spatialmodel/picamr/phys"
)

// column returns real attribute comp of every particle on every level.
func (c *Container) column(comp int) []float64 {
	var v []float64
	for _, l := range c.levels {
		for _, t := range l.tiles {
			v = append(v, t.Real[comp]...)
		}
	}
	return v
}

// TotalCharge returns the charge carried by all particles [C].
func (c *Container) TotalCharge() float64 {
	return c.Charge * floats.Sum(c.column(W))
}

func (c *Container) velocities() (v [3][]float64) {
	u := [3][]float64{c.column(UX), c.column(UY), c.column(UZ)}
	for a := range v {
		v[a] = make([]float64, len(u[0]))
	}
	for p := range u[0] {
		ig := invGamma(u[0][p], u[1][p], u[2][p])
		for a := range v {
			v[a][p] = u[a][p] * ig
		}
	}
	return v
}

// MeanVelocity returns the weight-averaged velocity [m/s].
func (c *Container) MeanVelocity() [3]float64 {
	w := c.column(W)
	var m [3]float64
	if len(w) == 0 {
		return m
	}
	v := c.velocities()
	for a := range m {
		m[a] = stat.Mean(v[a], w)
	}
	return m
}

// MaxSpeed returns the largest particle speed [m/s].
func (c *Container) MaxSpeed() float64 {
	v := c.velocities()
	if len(v[0]) == 0 {
		return 0
	}
	s := make([]float64, len(v[0]))
	for p := range s {
		s[p] = math.Sqrt(v[0][p]*v[0][p] + v[1][p]*v[1][p] + v[2][p]*v[2][p])
	}
	return floats.Max(s)
}

// KineticEnergy returns the total kinetic energy of the particles [J].
func (c *Container) KineticEnergy() float64 {
	ux, uy, uz, w := c.column(UX), c.column(UY), c.column(UZ), c.column(W)
	e := make([]float64, len(w))
	for p := range e {
		// γ-1 written to avoid cancellation at low speed.
		u2 := (ux[p]*ux[p] + uy[p]*uy[p] + uz[p]*uz[p]) / (phys.C * phys.C)
		g := math.Sqrt(1 + u2)
		e[p] = w[p] * c.Mass * phys.C * phys.C * u2 / (g + 1)
	}
	return floats.Sum(e)
}
