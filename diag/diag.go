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

// Package diag computes and writes diagnostics of a picamr simulation.
package diag

import (
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/spatialmodel/picamr/coarsen"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
)

// CellCentered returns component comp of f interpolated to the cell
// centers of geom's domain as an array with shape (nx, ny, nz). Cells
// that f does not cover are zero.
func CellCentered(f *mesh.Field, comp int, geom *mesh.Geometry) (*sparse.DenseArray, error) {
	cc := mesh.NewField(f.Name+"_cc", f.BA.Convert(mesh.CellType), f.DM, 1, mesh.IntVect{})
	if err := coarsen.Coarsen(cc, f, comp, 0, 1, mesh.IntVect{}, mesh.Uniform(1)); err != nil {
		return nil, err
	}
	return dense(cc, 0, geom), nil
}

// dense copies component comp of the cell-centered field f into an array
// spanning geom's domain.
func dense(f *mesh.Field, comp int, geom *mesh.Geometry) *sparse.DenseArray {
	d := geom.Domain
	n := d.Size()
	out := sparse.ZerosDense(n[0], n[1], n[2])
	for i := 0; i < f.NumFabs(); i++ {
		fab := f.Fab(i)
		b, ok := f.ValidBox(i).Intersect(d)
		if !ok {
			continue
		}
		b.Loop(func(p mesh.IntVect) {
			q := p.Sub(d.Lo)
			out.Set(fab.Get(p, comp), q[0], q[1], q[2])
		})
	}
	return out
}

// DivB returns the cell-centered divergence of the Yee-staggered magnetic
// field b and the largest absolute value of it [T/m].
func DivB(b [3]*mesh.Field, geom *mesh.Geometry) (*mesh.Field, float64) {
	dx := geom.CellSize()
	div := mesh.NewField("divB", b[0].BA.Convert(mesh.CellType), b[0].DM, 1, mesh.IntVect{})
	for i := 0; i < div.NumFabs(); i++ {
		out := div.Fab(i)
		div.ValidBox(i).Loop(func(p mesh.IntVect) {
			var v float64
			for a := 0; a < 3; a++ {
				if !geom.Dim.Active(a) {
					continue
				}
				fab := b[a].Fab(i)
				q := p
				q[a]++
				v += (fab.Get(q, 0) - fab.Get(p, 0)) / dx[a]
			}
			out.Set(p, 0, v)
		})
	}
	return div, div.NormInf(0)
}

// FieldEnergy returns the electromagnetic energy stored in e and b over
// geom's domain [J].
func FieldEnergy(e, b [3]*mesh.Field, geom *mesh.Geometry) float64 {
	var we, wb float64
	for c := 0; c < 3; c++ {
		we += sumSquares(e[c], geom)
		wb += sumSquares(b[c], geom)
	}
	return 0.5 * geom.CellVolume() * (phys.Epsilon0*we + wb/phys.Mu0)
}

// sumSquares returns the sum of the squares of the first component of f
// over unique points.
func sumSquares(f *mesh.Field, geom *mesh.Geometry) float64 {
	if f == nil {
		return 0
	}
	sq := f.Clone(f.Name + "_sq")
	for i := 0; i < sq.NumFabs(); i++ {
		v := sq.Fab(i).Component(0)
		floats.Mul(v, v)
	}
	return sq.Sum(0, geom)
}
