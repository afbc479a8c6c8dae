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

// Package mesh holds the block-structured mesh that fields and particles
// live on: integer index boxes, their arrays and owners, the physical
// geometry of a refinement level, and distributed fields with guard cells.
package mesh

import (
	"fmt"
)

// IntVect is an integer index or extent with one entry per axis.
type IntVect [3]int

// Uniform returns an IntVect with every entry set to n.
func Uniform(n int) IntVect { return IntVect{n, n, n} }

// Add returns v+o.
func (v IntVect) Add(o IntVect) IntVect {
	return IntVect{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v-o.
func (v IntVect) Sub(o IntVect) IntVect {
	return IntVect{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Mul returns the element-wise product of v and o.
func (v IntVect) Mul(o IntVect) IntVect {
	return IntVect{v[0] * o[0], v[1] * o[1], v[2] * o[2]}
}

// Max returns the largest entry of v.
func (v IntVect) Max() int {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// AllGE reports whether every entry of v is at least the corresponding
// entry of o.
func (v IntVect) AllGE(o IntVect) bool {
	return v[0] >= o[0] && v[1] >= o[1] && v[2] >= o[2]
}

func (v IntVect) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v[0], v[1], v[2])
}

// IndexType gives the staggering of data along each axis:
// 0 means cell-centered and 1 means nodal.
type IndexType [3]int

// CellType and NodeType are the fully cell-centered and fully nodal
// index types.
var (
	CellType = IndexType{0, 0, 0}
	NodeType = IndexType{1, 1, 1}
)

// Box is a rectangular region of index space with inclusive bounds.
type Box struct {
	Lo, Hi IntVect
	Type   IndexType
}

// NewBox returns a new box.
func NewBox(lo, hi IntVect, t IndexType) Box {
	return Box{Lo: lo, Hi: hi, Type: t}
}

// Ok reports whether the box is non-empty.
func (b Box) Ok() bool {
	return b.Hi[0] >= b.Lo[0] && b.Hi[1] >= b.Lo[1] && b.Hi[2] >= b.Lo[2]
}

// Size returns the number of points along each axis.
func (b Box) Size() IntVect {
	return b.Hi.Sub(b.Lo).Add(Uniform(1))
}

// NumPts returns the number of points in the box.
func (b Box) NumPts() int {
	if !b.Ok() {
		return 0
	}
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Contains reports whether p is inside the box.
func (b Box) Contains(p IntVect) bool {
	for d := 0; d < 3; d++ {
		if p[d] < b.Lo[d] || p[d] > b.Hi[d] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether o lies entirely within b.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Lo) && b.Contains(o.Hi)
}

// Grow returns the box grown by n points on each side.
func (b Box) Grow(n IntVect) Box {
	return Box{Lo: b.Lo.Sub(n), Hi: b.Hi.Add(n), Type: b.Type}
}

// Shift returns the box translated by s.
func (b Box) Shift(s IntVect) Box {
	return Box{Lo: b.Lo.Add(s), Hi: b.Hi.Add(s), Type: b.Type}
}

// Intersect returns the overlap of b and o and whether it is non-empty.
func (b Box) Intersect(o Box) (Box, bool) {
	var r Box
	r.Type = b.Type
	for d := 0; d < 3; d++ {
		r.Lo[d] = maxInt(b.Lo[d], o.Lo[d])
		r.Hi[d] = minInt(b.Hi[d], o.Hi[d])
	}
	return r, r.Ok()
}

// Convert returns the box holding the same cells with index type t.
// Switching an axis from cell-centered to nodal adds the upper node.
func (b Box) Convert(t IndexType) Box {
	r := b
	for d := 0; d < 3; d++ {
		switch {
		case b.Type[d] == 0 && t[d] == 1:
			r.Hi[d]++
		case b.Type[d] == 1 && t[d] == 0:
			r.Hi[d]--
		}
	}
	r.Type = t
	return r
}

// Coarsen returns the box coarsened by ratio r. Lower bounds are
// floor-divided; nodal upper bounds round up so that every fine node is
// covered.
func (b Box) Coarsen(r IntVect) Box {
	c := b
	for d := 0; d < 3; d++ {
		c.Lo[d] = floorDiv(b.Lo[d], r[d])
		c.Hi[d] = floorDiv(b.Hi[d], r[d])
		if b.Type[d] == 1 && modPos(b.Hi[d], r[d]) != 0 {
			c.Hi[d]++
		}
	}
	return c
}

// Refine returns the box refined by ratio r.
func (b Box) Refine(r IntVect) Box {
	f := b
	for d := 0; d < 3; d++ {
		f.Lo[d] = b.Lo[d] * r[d]
		if b.Type[d] == 1 {
			f.Hi[d] = b.Hi[d] * r[d]
		} else {
			f.Hi[d] = (b.Hi[d]+1)*r[d] - 1
		}
	}
	return f
}

// Coarsenable reports whether the box can be coarsened by r without
// losing or inventing points.
func (b Box) Coarsenable(r IntVect) bool {
	s := b.Size()
	for d := 0; d < 3; d++ {
		if r[d] < 1 {
			return false
		}
		if r[d] > 1 && s[d] < r[d] {
			return false
		}
	}
	return b.Coarsen(r).Refine(r) == b
}

// Loop calls f for every point of the box, with the last axis varying
// fastest.
func (b Box) Loop(f func(p IntVect)) {
	var p IntVect
	for p[0] = b.Lo[0]; p[0] <= b.Hi[0]; p[0]++ {
		for p[1] = b.Lo[1]; p[1] <= b.Hi[1]; p[1]++ {
			for p[2] = b.Lo[2]; p[2] <= b.Hi[2]; p[2]++ {
				f(p)
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%v %v %v]", b.Lo, b.Hi, b.Type)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func modPos(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
