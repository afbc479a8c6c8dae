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

// FieldSet holds the electric and magnetic field components a level's
// particles are pushed in. The fields share the level's box layout.
type FieldSet struct {
	E, B [3]*mesh.Field
}

// gather interpolates E and B to pos using the fabs of box i.
func (fs FieldSet) gather(i int, pos [3]float64, order int, g *mesh.Geometry, dim mesh.Dimensionality) (e, b [3]float64, err error) {
	for c := 0; c < 3; c++ {
		if e[c], err = gatherComp(fs.E[c], i, pos, order, g, dim); err != nil {
			return
		}
		if b[c], err = gatherComp(fs.B[c], i, pos, order, g, dim); err != nil {
			return
		}
	}
	return
}

func gatherComp(f *mesh.Field, i int, pos [3]float64, order int, g *mesh.Geometry, dim mesh.Dimensionality) (float64, error) {
	if f == nil {
		return 0, nil
	}
	s := newStencil(order, pos, g, f.Type, dim)
	fab := f.Fab(i)
	if err := checkStencil(fab, s, f); err != nil {
		return 0, err
	}
	var v float64
	s.each(func(p mesh.IntVect, w float64) {
		v += w * fab.Get(p, 0)
	})
	return v, nil
}

// checkStencil returns a configuration error if the stencil reaches
// outside the guard cells of fab.
func checkStencil(fab *mesh.FArrayBox, s stencil, f *mesh.Field) error {
	if fab.Box.ContainsBox(s.box(f.Type)) {
		return nil
	}
	return mesh.NewConfigError("guard-cells", f.Name,
		"particle shape stencil %v reaches outside grown box %v", s.box(f.Type), fab.Box)
}
