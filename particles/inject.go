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
	"github.com/spatialmodel/picamr/mesh"
)

// Profile returns a number density [1/m³] at a position.
type Profile func(x, y, z float64) float64

// AddPlasma fills the boxes of level lev with ppc particles per cell per
// axis, evenly spaced, carrying momentum per unit mass u and weighted so
// that they represent density. Cells where density is not positive are
// left empty.
func (c *Container) AddPlasma(lev int, density Profile, ppc mesh.IntVect, u [3]float64) error {
	l := c.levels[lev]
	g := l.geom
	dx := g.CellSize()
	n := ppc
	for a := 0; a < 3; a++ {
		if !c.Dim.Active(a) || n[a] < 1 {
			n[a] = 1
		}
	}
	nppc := float64(n[0] * n[1] * n[2])
	vol := g.CellVolume()
	var x, y, z, ux, uy, uz, w []float64
	for _, b := range l.ba {
		b.Loop(func(cell mesh.IntVect) {
			var k mesh.IntVect
			for k[0] = 0; k[0] < n[0]; k[0]++ {
				for k[1] = 0; k[1] < n[1]; k[1]++ {
					for k[2] = 0; k[2] < n[2]; k[2]++ {
						var pos [3]float64
						for a := 0; a < 3; a++ {
							if c.Dim.Active(a) {
								pos[a] = g.ProbLo[a] + (float64(cell[a])+(float64(k[a])+0.5)/float64(n[a]))*dx[a]
							}
						}
						d := density(pos[0], pos[1], pos[2])
						if d <= 0 {
							continue
						}
						x, y, z = append(x, pos[0]), append(y, pos[1]), append(z, pos[2])
						ux, uy, uz = append(ux, u[0]), append(uy, u[1]), append(uz, u[2])
						w = append(w, d*vol/nppc)
					}
				}
			}
		})
	}
	return c.AddNParticles(lev, x, y, z, ux, uy, uz, w, nil)
}
