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
	"github.com/ctessum/sparse"
)

// FArrayBox holds the values of a field on one box, guard cells included.
// Data has shape (NComp, nx, ny, nz).
type FArrayBox struct {
	Box   Box
	NComp int
	Data  *sparse.DenseArray

	size   IntVect
	stride int // number of points per component
}

// NewFArrayBox allocates a zeroed FArrayBox over b.
func NewFArrayBox(b Box, ncomp int) *FArrayBox {
	s := b.Size()
	return &FArrayBox{
		Box:    b,
		NComp:  ncomp,
		Data:   sparse.ZerosDense(ncomp, s[0], s[1], s[2]),
		size:   s,
		stride: s[0] * s[1] * s[2],
	}
}

// Index returns the position of point p, component c in Data.Elements.
// It matches Data.Index1d(c, ...).
func (f *FArrayBox) Index(p IntVect, c int) int {
	return c*f.stride + ((p[0]-f.Box.Lo[0])*f.size[1]+(p[1]-f.Box.Lo[1]))*f.size[2] + (p[2] - f.Box.Lo[2])
}

// Get returns the value at p, component c.
func (f *FArrayBox) Get(p IntVect, c int) float64 {
	return f.Data.Elements[f.Index(p, c)]
}

// Set sets the value at p, component c.
func (f *FArrayBox) Set(p IntVect, c int, v float64) {
	f.Data.Elements[f.Index(p, c)] = v
}

// Add adds v to the value at p, component c.
func (f *FArrayBox) Add(p IntVect, c int, v float64) {
	f.Data.Elements[f.Index(p, c)] += v
}

// Contains reports whether p is stored in f.
func (f *FArrayBox) Contains(p IntVect) bool { return f.Box.Contains(p) }

// SetVal sets components [comp, comp+ncomp) to v over the part of b
// that f stores.
func (f *FArrayBox) SetVal(v float64, b Box, comp, ncomp int) {
	ov, ok := f.Box.Intersect(b)
	if !ok {
		return
	}
	for c := comp; c < comp+ncomp; c++ {
		ov.Loop(func(p IntVect) {
			f.Data.Elements[f.Index(p, c)] = v
		})
	}
}

// Component returns the slice of Data.Elements holding component c.
func (f *FArrayBox) Component(c int) []float64 {
	return f.Data.Elements[c*f.stride : (c+1)*f.stride]
}

// Copy returns a deep copy of f.
func (f *FArrayBox) Copy() *FArrayBox {
	o := *f
	o.Data = f.Data.Copy()
	return &o
}
