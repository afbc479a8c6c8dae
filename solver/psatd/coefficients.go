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

package psatd

import (
	"math"

	"github.com/spatialmodel/picamr/phys"
)

// coefficients holds the per-mode update factors for one timestep.
// Factors that always multiply a wave vector are left at zero for the
// k = 0 mode.
type coefficients struct {
	dt float64

	c  []float64 // cos(ckΔt)
	s  []float64 // sin(ckΔt)/(ck)
	x1 []float64 // (1-C)/(ε0c²k²)
	x2 []float64 // (1-S/Δt)/(ε0k²)
	x3 []float64 // (C-S/Δt)/(ε0k²)
	x5 []float64 // (1-C)/k²
	x6 []float64 // (S-Δt)/(ε0k²)

	// Averages of the above over the step.
	y1 []float64 // S/Δt
	y2 []float64 // (1-C)/(c²k²Δt)
	y4 []float64 // (1-S/Δt)/(ε0c²k²)
	z5 []float64 // (1-Y1)/k²
	z6 []float64 // (Y2-Δt/2)/(ε0k²)
}

func newCoefficients(g *spectralGrid, dt float64) *coefficients {
	const (
		c  = phys.C
		c2 = c * c
		e0 = phys.Epsilon0
	)
	n := g.size()
	co := &coefficients{dt: dt}
	for _, s := range []*[]float64{&co.c, &co.s, &co.x1, &co.x2, &co.x3, &co.x5, &co.x6, &co.y1, &co.y2, &co.y4, &co.z5, &co.z6} {
		*s = make([]float64, n)
	}
	g.each(func(m int, kv [3]float64) {
		k2 := kv[0]*kv[0] + kv[1]*kv[1] + kv[2]*kv[2]
		if k2 == 0 {
			co.c[m] = 1
			co.s[m] = dt
			co.y1[m] = 1
			co.y2[m] = dt / 2
			return
		}
		k := math.Sqrt(k2)
		C := math.Cos(c * k * dt)
		S := math.Sin(c*k*dt) / (c * k)
		co.c[m] = C
		co.s[m] = S
		co.x1[m] = (1 - C) / (e0 * c2 * k2)
		co.x2[m] = (1 - S/dt) / (e0 * k2)
		co.x3[m] = (C - S/dt) / (e0 * k2)
		co.x5[m] = (1 - C) / k2
		co.x6[m] = (S - dt) / (e0 * k2)
		co.y1[m] = S / dt
		co.y2[m] = (1 - C) / (c2 * k2 * dt)
		co.y4[m] = (1 - S/dt) / (e0 * c2 * k2)
		co.z5[m] = (1 - co.y1[m]) / k2
		co.z6[m] = (co.y2[m] - dt/2) / (e0 * k2)
	})
	return co
}
