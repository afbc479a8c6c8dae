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
	"fmt"
	"math"
)

// Boundary is the treatment of particles that cross a domain face.
type Boundary int

// Particle boundary policies.
const (
	Absorbing Boundary = iota
	Reflecting
	Periodic
	// Open boundaries remove particles from the simulation but keep them
	// in the escaped buffer for diagnostics.
	Open
)

func (b Boundary) String() string {
	switch b {
	case Absorbing:
		return "absorbing"
	case Reflecting:
		return "reflecting"
	case Periodic:
		return "periodic"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("Boundary(%d)", int(b))
	}
}

// ParseBoundary converts a boundary name to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	for _, b := range []Boundary{Absorbing, Reflecting, Periodic, Open} {
		if b.String() == s {
			return b, nil
		}
	}
	return Absorbing, fmt.Errorf("particles: invalid boundary %q", s)
}

// Boundaries holds the policy for the lower and upper face of each axis.
type Boundaries [3][2]Boundary

// ApplyBoundaryConditions applies bc to the particles of level lev that
// have left the problem domain and returns the number removed.
func (c *Container) ApplyBoundaryConditions(lev int, bc Boundaries) (int, error) {
	g := c.levels[lev].geom
	removed := make([]int, len(c.levels[lev].tiles))
	escaped := make([]*Tile, len(c.levels[lev].tiles))
	err := c.forTiles(lev, func(i int, t *Tile) error {
		dead := make([]bool, t.Len())
		for p := 0; p < t.Len(); p++ {
			for a := 0; a < 3; a++ {
				if !c.Dim.Active(a) {
					continue
				}
				lo, hi := g.ProbLo[a], g.ProbHi[a]
				x := t.Real[X+a][p]
				var side int
				switch {
				case x < lo:
					side = 0
				case x >= hi:
					side = 1
				default:
					continue
				}
				switch bc[a][side] {
				case Periodic:
					l := hi - lo
					x = lo + math.Mod(x-lo, l)
					if x < lo {
						x += l
					}
					if x >= hi {
						x -= l
					}
					t.Real[X+a][p] = x
				case Reflecting:
					if side == 0 {
						x = 2*lo - x
					} else {
						x = 2*hi - x
						// Keep the particle strictly inside.
						if x >= hi {
							x = math.Nextafter(hi, lo)
						}
					}
					t.Real[X+a][p] = x
					t.Real[UX+a][p] = -t.Real[UX+a][p]
				case Open:
					if !dead[p] {
						if escaped[i] == nil {
							escaped[i] = newTile(len(t.Real), len(t.Int))
						}
						escaped[i].appendFrom(t, p)
					}
					dead[p] = true
				default:
					dead[p] = true
				}
			}
		}
		t.filter(func(p int) bool { return !dead[p] })
		for _, d := range dead {
			if d {
				removed[i]++
			}
		}
		return nil
	})
	n := 0
	for i, r := range removed {
		n += r
		if escaped[i] != nil {
			for p := 0; p < escaped[i].Len(); p++ {
				c.escaped.appendFrom(escaped[i], p)
			}
		}
	}
	return n, err
}

// Escaped returns the particles that have left through open boundaries
// since the last call and empties the buffer.
func (c *Container) Escaped() *Tile {
	e := c.escaped
	c.escaped = newTile(len(c.reg.RealNames), len(c.reg.IntNames))
	return e
}
