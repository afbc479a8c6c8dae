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

package coarsen

import (
	"github.com/spatialmodel/picamr/mesh"
)

// Restrict adds the fine density src, components [scomp, scomp+ncomp),
// onto components [dcomp, dcomp+ncomp) of the coarse field dst with the
// Average stencil. Besides the valid points of src it carries the guard
// points that no valid box of src covers, which is where particles near
// the edge of a refined patch leave part of their deposit. Each box's
// copy of such a point is a separate contribution, so the integral of
// src over all of its deposits is preserved on dst wherever dst has
// valid points. src must have been merged with SumBoundary. dst is not
// synchronized; call FillBoundary afterwards.
func Restrict(dst, src *mesh.Field, scomp, dcomp, ncomp int, crse mesh.IntVect, fineGeom, crseGeom *mesh.Geometry, lev int) error {
	o := options{mode: Average, add: true, geom: crseGeom, level: lev}
	if err := check(dst, src, mesh.IntVect{}, crse, o); err != nil {
		return err
	}
	uncovered := make([][]mesh.IntVect, src.NumFabs())
	covered := src.Clone(src.Name + "_covered")
	for i := 0; i < src.NumFabs(); i++ {
		fab := covered.Fab(i)
		src.GrownBox(i).Loop(func(p mesh.IntVect) {
			if src.Covered(p, fineGeom) {
				return
			}
			uncovered[i] = append(uncovered[i], p)
			for c := 0; c < ncomp; c++ {
				fab.Set(p, scomp+c, 0)
			}
		})
	}
	if err := Coarsen(dst, covered, scomp, dcomp, ncomp, mesh.IntVect{}, crse,
		WithMode(Average), Accumulate(crseGeom), AtLevel(lev)); err != nil {
		return err
	}
	for i, pts := range uncovered {
		fab := src.Fab(i)
		for _, p := range pts {
			for c := 0; c < ncomp; c++ {
				v := fab.Get(p, scomp+c)
				if v == 0 {
					continue
				}
				scatter(p, src.Type, crse, func(q mesh.IntVect, w float64) {
					dst.AddAt(q, dcomp+c, w*v, crseGeom)
				})
			}
		}
	}
	return nil
}

// scatter calls f for every coarse point whose Average stencil includes
// the fine point p, with the weight p has in it.
func scatter(p mesh.IntVect, t mesh.IndexType, crse mesh.IntVect, f func(q mesh.IntVect, w float64)) {
	var idx [3][2]int
	var wt [3][2]float64
	var n [3]int
	for d := 0; d < 3; d++ {
		cr := crse[d]
		i := floorDiv(p[d], cr)
		if t[d] == 0 {
			idx[d][0], wt[d][0], n[d] = i, 1/float64(cr), 1
			continue
		}
		off := p[d] - i*cr
		idx[d][0], wt[d][0], n[d] = i, float64(cr-off)/float64(cr*cr), 1
		if off > 0 {
			idx[d][1], wt[d][1], n[d] = i+1, float64(off)/float64(cr*cr), 2
		}
	}
	for a := 0; a < n[0]; a++ {
		for b := 0; b < n[1]; b++ {
			for e := 0; e < n[2]; e++ {
				f(mesh.IntVect{idx[0][a], idx[1][b], idx[2][e]}, wt[0][a]*wt[1][b]*wt[2][e])
			}
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
