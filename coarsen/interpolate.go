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
	"fmt"
	"math"

	"github.com/spatialmodel/picamr/mesh"
)

// FillFineGuards sets the guard cells of fine that do not correspond to a
// valid point of fine by linear interpolation of crse, which is coarser
// by ratio and has the same staggering. Guard cells that do map onto fine
// valid points are refreshed with fine.FillBoundary. Both fields must have
// current guard values where the interpolation stencil needs them.
func FillFineGuards(fine, crse *mesh.Field, ratio mesh.IntVect, fineGeom, crseGeom *mesh.Geometry) error {
	if fine.Type != crse.Type {
		return fmt.Errorf("coarsen.FillFineGuards: %s has staggering %v but %s has %v",
			fine.Name, fine.Type, crse.Name, crse.Type)
	}
	fine.FillBoundary(fineGeom)
	for i := 0; i < fine.NumFabs(); i++ {
		fab := fine.Fab(i)
		var err error
		fab.Box.Loop(func(p mesh.IntVect) {
			if err != nil || fine.ValidBox(i).Contains(p) || fine.Covered(p, fineGeom) {
				return
			}
			for c := 0; c < fine.NComp; c++ {
				v, e := interpolate(crse, p, c, fine.Type, ratio, crseGeom)
				if e != nil {
					err = fmt.Errorf("coarsen.FillFineGuards: %s point %v: %v", fine.Name, p, e)
					return
				}
				fab.Set(p, c, v)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// interpolate returns the value of crse, with staggering t, at fine index
// p by linear interpolation along each axis.
func interpolate(crse *mesh.Field, p mesh.IntVect, comp int, t mesh.IndexType, ratio mesh.IntVect, geom *mesh.Geometry) (float64, error) {
	var i0 mesh.IntVect
	var w [3][2]float64
	for d := 0; d < 3; d++ {
		half := 0.5 * float64(1-t[d])
		x := (float64(p[d])+half)/float64(ratio[d]) - half
		f := math.Floor(x)
		i0[d] = int(f)
		w[d] = [2]float64{1 - (x - f), x - f}
	}
	var v float64
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for e := 0; e < 2; e++ {
				wt := w[0][a] * w[1][b] * w[2][e]
				if wt == 0 {
					continue
				}
				q := i0.Add(mesh.IntVect{a, b, e})
				cv, ok := crse.Lookup(q, comp, geom)
				if !ok {
					return 0, fmt.Errorf("coarse field %s does not cover %v", crse.Name, q)
				}
				v += wt * cv
			}
		}
	}
	return v, nil
}
