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
	"runtime"
)

// BoxArray is an ordered list of disjoint boxes sharing one index type.
type BoxArray []Box

// NewBoxArray chops the cell-centered domain into boxes no larger than
// maxGrid along each axis.
func NewBoxArray(domain Box, maxGrid IntVect) BoxArray {
	var cuts [3][][2]int
	for d := 0; d < 3; d++ {
		m := maxGrid[d]
		if m < 1 {
			m = domain.Size()[d]
		}
		for lo := domain.Lo[d]; lo <= domain.Hi[d]; lo += m {
			cuts[d] = append(cuts[d], [2]int{lo, minInt(lo+m-1, domain.Hi[d])})
		}
	}
	var ba BoxArray
	for _, cx := range cuts[0] {
		for _, cy := range cuts[1] {
			for _, cz := range cuts[2] {
				ba = append(ba, Box{
					Lo:   IntVect{cx[0], cy[0], cz[0]},
					Hi:   IntVect{cx[1], cy[1], cz[1]},
					Type: domain.Type,
				})
			}
		}
	}
	return ba
}

// Type returns the index type of the boxes.
func (ba BoxArray) Type() IndexType {
	if len(ba) == 0 {
		return CellType
	}
	return ba[0].Type
}

// Convert returns the box array with every box converted to type t.
func (ba BoxArray) Convert(t IndexType) BoxArray {
	o := make(BoxArray, len(ba))
	for i, b := range ba {
		o[i] = b.Convert(t)
	}
	return o
}

// Coarsen returns the box array coarsened by r.
func (ba BoxArray) Coarsen(r IntVect) BoxArray {
	o := make(BoxArray, len(ba))
	for i, b := range ba {
		o[i] = b.Coarsen(r)
	}
	return o
}

// Refine returns the box array refined by r.
func (ba BoxArray) Refine(r IntVect) BoxArray {
	o := make(BoxArray, len(ba))
	for i, b := range ba {
		o[i] = b.Refine(r)
	}
	return o
}

// Coarsenable reports whether every box can be coarsened by r.
func (ba BoxArray) Coarsenable(r IntVect) bool {
	for _, b := range ba {
		if !b.Coarsenable(r) {
			return false
		}
	}
	return true
}

// Equal reports whether the two box arrays hold the same boxes in the
// same order.
func (ba BoxArray) Equal(o BoxArray) bool {
	if len(ba) != len(o) {
		return false
	}
	for i := range ba {
		if ba[i] != o[i] {
			return false
		}
	}
	return true
}

// NumPts returns the total number of points in all boxes.
func (ba BoxArray) NumPts() int {
	n := 0
	for _, b := range ba {
		n += b.NumPts()
	}
	return n
}

// Find returns the index of the first box containing p.
func (ba BoxArray) Find(p IntVect) (int, bool) {
	for i, b := range ba {
		if b.Contains(p) {
			return i, true
		}
	}
	return -1, false
}

// MinimalBox returns the smallest box containing every box in ba.
func (ba BoxArray) MinimalBox() Box {
	if len(ba) == 0 {
		return Box{Hi: Uniform(-1)}
	}
	m := ba[0]
	for _, b := range ba[1:] {
		for d := 0; d < 3; d++ {
			m.Lo[d] = minInt(m.Lo[d], b.Lo[d])
			m.Hi[d] = maxInt(m.Hi[d], b.Hi[d])
		}
	}
	return m
}

// DistributionMapping assigns each box of a BoxArray to a worker.
type DistributionMapping []int

// NewDistributionMapping deals nBoxes out to nWorkers round-robin. If
// nWorkers < 1 the number of available processors is used.
func NewDistributionMapping(nBoxes, nWorkers int) DistributionMapping {
	if nWorkers < 1 {
		nWorkers = runtime.GOMAXPROCS(0)
	}
	dm := make(DistributionMapping, nBoxes)
	for i := range dm {
		dm[i] = i % nWorkers
	}
	return dm
}

// Equal reports whether the two maps are identical.
func (dm DistributionMapping) Equal(o DistributionMapping) bool {
	if len(dm) != len(o) {
		return false
	}
	for i := range dm {
		if dm[i] != o[i] {
			return false
		}
	}
	return true
}

// NumWorkers returns one more than the largest worker index.
func (dm DistributionMapping) NumWorkers() int {
	n := 0
	for _, w := range dm {
		if w+1 > n {
			n = w + 1
		}
	}
	return n
}

// Owned returns the indices of the boxes assigned to worker w.
func (dm DistributionMapping) Owned(w int) []int {
	var o []int
	for i, ww := range dm {
		if ww == w {
			o = append(o, i)
		}
	}
	return o
}
