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

	"github.com/spatialmodel/picamr/mesh"
)

// maxShape is the largest number of points a shape function of the
// supported orders touches along one axis.
const maxShape = 4

// shape returns the index of the first grid point touched by a particle
// at normalized position xn and the weights of the order+1 points
// starting there. xn is measured in cells from grid point 0.
func shape(order int, xn float64) (int, [maxShape]float64) {
	var w [maxShape]float64
	switch order {
	case 0:
		w[0] = 1
		return int(math.Floor(xn + 0.5)), w
	case 1:
		i := math.Floor(xn)
		f := xn - i
		w[0], w[1] = 1-f, f
		return int(i), w
	case 2:
		i := math.Floor(xn + 0.5)
		d := xn - i
		w[0] = 0.5 * (0.5 - d) * (0.5 - d)
		w[1] = 0.75 - d*d
		w[2] = 0.5 * (0.5 + d) * (0.5 + d)
		return int(i) - 1, w
	case 3:
		i := math.Floor(xn)
		f := xn - i
		f2 := f * f
		f3 := f2 * f
		w[0] = (1 - f) * (1 - f) * (1 - f) / 6
		w[1] = (4 - 6*f2 + 3*f3) / 6
		w[2] = (1 + 3*f + 3*f2 - 3*f3) / 6
		w[3] = f3 / 6
		return int(i) - 1, w
	default:
		panic("particles: unsupported shape order")
	}
}

// stencil holds the shape weights of one particle along the three axes
// for one staggering. Inactive axes have a single point with weight 1.
type stencil struct {
	lo mesh.IntVect
	n  mesh.IntVect
	w  [3][maxShape]float64
}

func newStencil(order int, pos [3]float64, g *mesh.Geometry, t mesh.IndexType, dim mesh.Dimensionality) stencil {
	var s stencil
	dx := g.CellSize()
	for a := 0; a < 3; a++ {
		if !dim.Active(a) {
			s.n[a] = 1
			s.w[a][0] = 1
			continue
		}
		xn := (pos[a]-g.ProbLo[a])/dx[a] - 0.5*float64(1-t[a])
		s.lo[a], s.w[a] = shape(order, xn)
		s.n[a] = order + 1
	}
	return s
}

// box returns the points touched by the stencil.
func (s stencil) box(t mesh.IndexType) mesh.Box {
	return mesh.NewBox(s.lo, s.lo.Add(s.n).Sub(mesh.Uniform(1)), t)
}

// each calls f for every touched point with the product weight.
func (s stencil) each(f func(p mesh.IntVect, w float64)) {
	for i := 0; i < s.n[0]; i++ {
		for j := 0; j < s.n[1]; j++ {
			wij := s.w[0][i] * s.w[1][j]
			for k := 0; k < s.n[2]; k++ {
				f(mesh.IntVect{s.lo[0] + i, s.lo[1] + j, s.lo[2] + k}, wij*s.w[2][k])
			}
		}
	}
}
