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

package mesh

import (
	"fmt"
)

// Dimensionality selects which axes are simulated. Reduced
// dimensionalities keep all three axes in the data layout; inactive axes
// are one cell thick, cell-centered and carry no guard cells.
type Dimensionality int

const (
	// Dim1 simulates the z axis only.
	Dim1 Dimensionality = 1
	// Dim2 simulates the x and z axes.
	Dim2 Dimensionality = 2
	// Dim3 simulates all axes.
	Dim3 Dimensionality = 3
)

// Active reports whether axis is simulated.
func (d Dimensionality) Active(axis int) bool {
	switch d {
	case Dim1:
		return axis == 2
	case Dim2:
		return axis == 0 || axis == 2
	default:
		return true
	}
}

// Mask returns 1 on active axes and 0 elsewhere.
func (d Dimensionality) Mask() IntVect {
	var m IntVect
	for a := 0; a < 3; a++ {
		if d.Active(a) {
			m[a] = 1
		}
	}
	return m
}

// Guards returns an IntVect holding n on every active axis.
func (d Dimensionality) Guards(n int) IntVect {
	return d.Mask().Mul(Uniform(n))
}

// Geometry describes the physical extent and index domain of one
// refinement level.
type Geometry struct {
	Dim      Dimensionality
	Domain   Box // cell-centered
	ProbLo   [3]float64
	ProbHi   [3]float64
	Periodic [3]bool
}

// NewGeometry returns the geometry of a domain with nCell cells per axis.
// Inactive axes are collapsed to a single non-periodic cell.
func NewGeometry(dim Dimensionality, nCell IntVect, probLo, probHi [3]float64, periodic [3]bool) (*Geometry, error) {
	g := &Geometry{Dim: dim, ProbLo: probLo, ProbHi: probHi}
	for a := 0; a < 3; a++ {
		if !dim.Active(a) {
			nCell[a] = 1
			continue
		}
		if nCell[a] < 1 {
			return nil, fmt.Errorf("mesh.NewGeometry: axis %d has %d cells but should be >0", a, nCell[a])
		}
		if probHi[a] <= probLo[a] {
			return nil, fmt.Errorf("mesh.NewGeometry: axis %d has ProbHi=%g <= ProbLo=%g", a, probHi[a], probLo[a])
		}
		g.Periodic[a] = periodic[a]
	}
	g.Domain = NewBox(IntVect{}, nCell.Sub(Uniform(1)), CellType)
	return g, nil
}

// CellSize returns the cell size along each axis; inactive axes have
// unit size so volumes reduce to areas and lengths.
func (g *Geometry) CellSize() [3]float64 {
	var dx [3]float64
	n := g.Domain.Size()
	for a := 0; a < 3; a++ {
		if !g.Dim.Active(a) {
			dx[a] = 1
			continue
		}
		dx[a] = (g.ProbHi[a] - g.ProbLo[a]) / float64(n[a])
	}
	return dx
}

// CellVolume returns the volume (or area, or length) of one cell.
func (g *Geometry) CellVolume() float64 {
	dx := g.CellSize()
	return dx[0] * dx[1] * dx[2]
}

// Refine returns the geometry of the same physical region refined by r.
func (g *Geometry) Refine(r IntVect) *Geometry {
	f := *g
	f.Domain = g.Domain.Refine(r)
	return &f
}

// AllPeriodic reports whether every active axis is periodic.
func (g *Geometry) AllPeriodic() bool {
	for a := 0; a < 3; a++ {
		if g.Dim.Active(a) && !g.Periodic[a] {
			return false
		}
	}
	return true
}

// canonical maps p onto its periodic image inside the domain.
func (g *Geometry) canonical(p IntVect) IntVect {
	if g == nil {
		return p
	}
	n := g.Domain.Size()
	for a := 0; a < 3; a++ {
		if g.Periodic[a] {
			p[a] = g.Domain.Lo[a] + modPos(p[a]-g.Domain.Lo[a], n[a])
		}
	}
	return p
}

// shifts returns the periodic translations to test, the zero shift first.
func (g *Geometry) shifts() []IntVect {
	s := []IntVect{{}}
	if g == nil {
		return s
	}
	n := g.Domain.Size()
	for a := 0; a < 3; a++ {
		if !g.Periodic[a] {
			continue
		}
		cur := len(s)
		for i := 0; i < cur; i++ {
			for _, sign := range []int{-1, 1} {
				v := s[i]
				v[a] += sign * n[a]
				s = append(s, v)
			}
		}
	}
	return s
}
