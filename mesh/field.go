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
	"math"
	"sync"
)

// Field is a distributed array of values over the boxes of a BoxArray.
// Each box is padded with NGrow guard cells holding copies of data owned
// by neighboring boxes or periodic images.
type Field struct {
	Name  string
	BA    BoxArray
	DM    DistributionMapping
	Type  IndexType
	NComp int
	NGrow IntVect

	fabs []*FArrayBox

	mu       sync.Mutex
	maskGeom *Geometry
	mask     [][]bool // mask[i][k] is true if box i holds the representative copy of its k-th valid point
}

// NewField allocates a zeroed field.
func NewField(name string, ba BoxArray, dm DistributionMapping, ncomp int, ngrow IntVect) *Field {
	f := &Field{
		Name:  name,
		BA:    ba,
		DM:    dm,
		Type:  ba.Type(),
		NComp: ncomp,
		NGrow: ngrow,
		fabs:  make([]*FArrayBox, len(ba)),
	}
	for i, b := range ba {
		f.fabs[i] = NewFArrayBox(b.Grow(ngrow), ncomp)
	}
	return f
}

// NumFabs returns the number of boxes.
func (f *Field) NumFabs() int { return len(f.fabs) }

// Fab returns the data of box i.
func (f *Field) Fab(i int) *FArrayBox { return f.fabs[i] }

// ValidBox returns box i without guard cells.
func (f *Field) ValidBox(i int) Box { return f.BA[i] }

// GrownBox returns box i including guard cells.
func (f *Field) GrownBox(i int) Box { return f.fabs[i].Box }

// SameLayout reports whether o has the same boxes, owners and guard width.
func (f *Field) SameLayout(o *Field) bool {
	return f.BA.Equal(o.BA) && f.DM.Equal(o.DM) && f.NGrow == o.NGrow
}

// SetVal sets every component of every point, guards included, to v.
func (f *Field) SetVal(v float64) {
	for _, fab := range f.fabs {
		for i := range fab.Data.Elements {
			fab.Data.Elements[i] = v
		}
	}
}

// SetValComp sets component comp to v, guards included.
func (f *Field) SetValComp(v float64, comp int) {
	for _, fab := range f.fabs {
		e := fab.Component(comp)
		for i := range e {
			e[i] = v
		}
	}
}

// Clone returns a deep copy of f under a new name.
func (f *Field) Clone(name string) *Field {
	o := &Field{
		Name:  name,
		BA:    f.BA,
		DM:    f.DM,
		Type:  f.Type,
		NComp: f.NComp,
		NGrow: f.NGrow,
		fabs:  make([]*FArrayBox, len(f.fabs)),
	}
	for i, fab := range f.fabs {
		o.fabs[i] = fab.Copy()
	}
	return o
}

// Copy copies ncomp components of src starting at scomp into f starting
// at dcomp, over the valid region grown by ngrow. The layouts must match.
func (f *Field) Copy(src *Field, scomp, dcomp, ncomp int, ngrow IntVect) error {
	return f.combine(src, scomp, dcomp, ncomp, ngrow, func(d, s float64) float64 { return s })
}

// Saxpy adds a*src to f over the valid region grown by ngrow.
func (f *Field) Saxpy(a float64, src *Field, scomp, dcomp, ncomp int, ngrow IntVect) error {
	return f.combine(src, scomp, dcomp, ncomp, ngrow, func(d, s float64) float64 { return d + a*s })
}

func (f *Field) combine(src *Field, scomp, dcomp, ncomp int, ngrow IntVect, op func(d, s float64) float64) error {
	if !f.BA.Equal(src.BA) {
		return fmt.Errorf("mesh.Field: %s and %s have different box arrays", f.Name, src.Name)
	}
	for i := range f.fabs {
		b := f.BA[i].Grow(ngrow)
		df, sf := f.fabs[i], src.fabs[i]
		for c := 0; c < ncomp; c++ {
			b.Loop(func(p IntVect) {
				k := df.Index(p, dcomp+c)
				df.Data.Elements[k] = op(df.Data.Elements[k], sf.Get(p, scomp+c))
			})
		}
	}
	return nil
}

// Mult multiplies components [comp, comp+ncomp) by a, guards included.
func (f *Field) Mult(a float64, comp, ncomp int) {
	for _, fab := range f.fabs {
		for c := comp; c < comp+ncomp; c++ {
			e := fab.Component(c)
			for i := range e {
				e[i] *= a
			}
		}
	}
}

// representative returns the box and point holding the reference copy of
// the global point p, trying boxes in order and periodic images with the
// zero shift first.
func (f *Field) representative(p IntVect, geom *Geometry) (int, IntVect, bool) {
	c := geom.canonical(p)
	shifts := geom.shifts()
	for j, b := range f.BA {
		for _, s := range shifts {
			q := c.Add(s)
			if b.Contains(q) {
				return j, q, true
			}
		}
	}
	return -1, p, false
}

// ownerMask returns, for each box, whether each valid point is the
// representative copy. The result is cached per geometry.
func (f *Field) ownerMask(geom *Geometry) [][]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mask != nil && f.maskGeom == geom {
		return f.mask
	}
	mask := make([][]bool, len(f.BA))
	for i, b := range f.BA {
		mask[i] = make([]bool, b.NumPts())
		k := 0
		b.Loop(func(p IntVect) {
			j, q, ok := f.representative(p, geom)
			mask[i][k] = ok && j == i && q == p
			k++
		})
	}
	f.mask, f.maskGeom = mask, geom
	return mask
}

// owns reports whether box i holds the representative copy of valid
// point p.
func (f *Field) owns(mask [][]bool, i int, p IntVect) bool {
	b := f.BA[i]
	s := b.Size()
	k := ((p[0]-b.Lo[0])*s[1]+(p[1]-b.Lo[1]))*s[2] + (p[2] - b.Lo[2])
	return mask[i][k]
}

// overlap describes the points of fab Dst (shifted by Shift) that
// coincide with representative points of box Src.
type overlap struct {
	Dst, Src int
	Region   Box // in the index space of Dst
	Shift    IntVect
}

func (f *Field) overlaps(dstBoxes []Box, geom *Geometry) []overlap {
	var o []overlap
	for i, db := range dstBoxes {
		for _, s := range geom.shifts() {
			for j, sb := range f.BA {
				r, ok := db.Intersect(sb.Shift(s))
				if ok {
					o = append(o, overlap{Dst: i, Src: j, Region: r, Shift: s})
				}
			}
		}
	}
	return o
}

// FillBoundary sets every guard cell and every non-representative copy
// of a shared point to the value held by the representative copy.
// Guard cells with no corresponding valid point are left unchanged.
func (f *Field) FillBoundary(geom *Geometry) {
	mask := f.ownerMask(geom)
	grown := make([]Box, len(f.fabs))
	for i, fab := range f.fabs {
		grown[i] = fab.Box
	}
	ovs := f.overlaps(grown, geom)
	var wg sync.WaitGroup
	wg.Add(len(f.fabs))
	for i := range f.fabs {
		go func(i int) {
			defer wg.Done()
			df := f.fabs[i]
			for _, ov := range ovs {
				if ov.Dst != i {
					continue
				}
				sf := f.fabs[ov.Src]
				ov.Region.Loop(func(p IntVect) {
					q := p.Sub(ov.Shift)
					if !f.owns(mask, ov.Src, q) || (ov.Src == i && q == p) {
						return
					}
					for c := 0; c < f.NComp; c++ {
						df.Set(p, c, sf.Get(q, c))
					}
				})
			}
		}(i)
	}
	wg.Wait()
}

// SumBoundary adds the value of every copy of a point (guard cells,
// shared nodal points and periodic images) into its representative copy
// and then broadcasts the total with FillBoundary. It merges per-box
// accumulation buffers after deposition.
func (f *Field) SumBoundary(geom *Geometry) {
	mask := f.ownerMask(geom)
	grown := make([]Box, len(f.fabs))
	acc := make([]*FArrayBox, len(f.fabs))
	for i, fab := range f.fabs {
		grown[i] = fab.Box
		acc[i] = NewFArrayBox(fab.Box, f.NComp)
	}
	for _, ov := range f.overlaps(grown, geom) {
		df, af := f.fabs[ov.Dst], acc[ov.Src]
		ov.Region.Loop(func(p IntVect) {
			q := p.Sub(ov.Shift)
			if !f.owns(mask, ov.Src, q) {
				return
			}
			for c := 0; c < f.NComp; c++ {
				af.Add(q, c, df.Get(p, c))
			}
		})
	}
	for i, b := range f.BA {
		df, af := f.fabs[i], acc[i]
		b.Loop(func(p IntVect) {
			if !f.owns(mask, i, p) {
				return
			}
			for c := 0; c < f.NComp; c++ {
				df.Set(p, c, af.Get(p, c))
			}
		})
	}
	f.FillBoundary(geom)
}

// CopyOp selects how ParallelCopy combines values.
type CopyOp int

const (
	// Overwrite replaces destination values.
	Overwrite CopyOp = iota
	// Add accumulates source values into the destination, counting each
	// global source point once.
	Add
)

// ParallelCopy copies ncomp components of src (starting at scomp) into f
// (starting at dcomp) wherever the two overlap, allowing for different
// box arrays and distribution maps. Destination points within dstGrow of
// the valid region are filled from source points within srcGrow of
// theirs. With Add, srcGrow must be zero. geom may be nil if periodic
// images should be ignored.
func (f *Field) ParallelCopy(src *Field, scomp, dcomp, ncomp int, srcGrow, dstGrow IntVect, geom *Geometry, op CopyOp) error {
	if src.Type != f.Type {
		return fmt.Errorf("mesh.Field.ParallelCopy: %s has index type %v but %s has %v", src.Name, src.Type, f.Name, f.Type)
	}
	if op == Add && srcGrow != (IntVect{}) {
		return fmt.Errorf("mesh.Field.ParallelCopy: accumulating from guard cells of %s is not supported", src.Name)
	}
	if !src.NGrow.AllGE(srcGrow) || !f.NGrow.AllGE(dstGrow) {
		return fmt.Errorf("mesh.Field.ParallelCopy: requested guard cells exceed those of %s or %s", src.Name, f.Name)
	}
	var mask [][]bool
	if op == Add {
		mask = src.ownerMask(geom)
	}
	for i := range f.fabs {
		db := f.BA[i].Grow(dstGrow)
		df := f.fabs[i]
		for _, s := range geom.shifts() {
			for j, sb := range src.BA {
				r, ok := db.Intersect(sb.Grow(srcGrow).Shift(s))
				if !ok {
					continue
				}
				sf := src.fabs[j]
				r.Loop(func(p IntVect) {
					q := p.Sub(s)
					if op == Add {
						if !src.owns(mask, j, q) {
							return
						}
						for c := 0; c < ncomp; c++ {
							df.Add(p, dcomp+c, sf.Get(q, scomp+c))
						}
						return
					}
					for c := 0; c < ncomp; c++ {
						df.Set(p, dcomp+c, sf.Get(q, scomp+c))
					}
				})
			}
		}
	}
	return nil
}

// Lookup returns component comp at global point p, using the
// representative copy if one exists and otherwise any guard cell that
// stores p.
func (f *Field) Lookup(p IntVect, comp int, geom *Geometry) (float64, bool) {
	if j, q, ok := f.representative(p, geom); ok {
		return f.fabs[j].Get(q, comp), true
	}
	for _, fab := range f.fabs {
		if fab.Contains(p) {
			return fab.Get(p, comp), true
		}
	}
	return 0, false
}

// AddAt adds v to component comp of the representative copy of the
// global point p. It reports false, and changes nothing, if no valid box
// holds p. FillBoundary propagates the result to the other copies.
func (f *Field) AddAt(p IntVect, comp int, v float64, geom *Geometry) bool {
	j, q, ok := f.representative(p, geom)
	if !ok {
		return false
	}
	f.fabs[j].Add(q, comp, v)
	return true
}

// Covered reports whether the global point p (or a periodic image of
// it) lies in a valid box.
func (f *Field) Covered(p IntVect, geom *Geometry) bool {
	_, _, ok := f.representative(p, geom)
	return ok
}

// Sum returns the sum of component comp over unique global points.
func (f *Field) Sum(comp int, geom *Geometry) float64 {
	mask := f.ownerMask(geom)
	var sum float64
	for i, b := range f.BA {
		fab := f.fabs[i]
		b.Loop(func(p IntVect) {
			if f.owns(mask, i, p) {
				sum += fab.Get(p, comp)
			}
		})
	}
	return sum
}

// NormInf returns the largest absolute value of component comp over the
// valid region.
func (f *Field) NormInf(comp int) float64 {
	var m float64
	for i, b := range f.BA {
		fab := f.fabs[i]
		b.Loop(func(p IntVect) {
			m = math.Max(m, math.Abs(fab.Get(p, comp)))
		})
	}
	return m
}

// Max returns the largest value of component comp over the valid region.
func (f *Field) Max(comp int) float64 {
	m := math.Inf(-1)
	for i, b := range f.BA {
		fab := f.fabs[i]
		b.Loop(func(p IntVect) {
			m = math.Max(m, fab.Get(p, comp))
		})
	}
	return m
}

// Min returns the smallest value of component comp over the valid region.
func (f *Field) Min(comp int) float64 {
	m := math.Inf(1)
	for i, b := range f.BA {
		fab := f.fabs[i]
		b.Loop(func(p IntVect) {
			m = math.Min(m, fab.Get(p, comp))
		})
	}
	return m
}
