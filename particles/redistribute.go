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

// RedistributeLevel moves the particles of level lev into the tiles of
// the boxes that now contain them. Particles that have left every box of
// lev move to the finest coarser level that contains them.
func (c *Container) RedistributeLevel(lev int) error {
	return c.redistribute(lev, 0, lev)
}

// Redistribute moves every particle to the finest level whose boxes
// contain it.
func (c *Container) Redistribute() error {
	top := len(c.levels) - 1
	for lev := 0; lev <= top; lev++ {
		if err := c.redistribute(lev, 0, top); err != nil {
			return err
		}
	}
	return nil
}

// redistribute re-places the particles of level lev onto levels minLev
// through maxLev. Particles already in the right tile are not moved.
func (c *Container) redistribute(lev, minLev, maxLev int) error {
	l := c.levels[lev]
	for i, t := range l.tiles {
		var moving []int
		for p := 0; p < t.Len(); p++ {
			if c.belongs(lev, i, t, p, maxLev) {
				continue
			}
			moving = append(moving, p)
		}
		if len(moving) == 0 {
			continue
		}
		out := newTile(len(t.Real), len(t.Int))
		move := make([]bool, t.Len())
		for _, p := range moving {
			out.appendFrom(t, p)
			move[p] = true
		}
		t.filter(func(p int) bool { return !move[p] })
		for p := 0; p < out.Len(); p++ {
			if err := c.place(out, p, minLev, maxLev); err != nil {
				return err
			}
		}
	}
	return nil
}

// belongs reports whether particle p of tile i at level lev is in box i
// and not covered by a finer level up to maxLev.
func (c *Container) belongs(lev, i int, t *Tile, p, maxLev int) bool {
	pos := [3]float64{t.Real[X][p], t.Real[Y][p], t.Real[Z][p]}
	if !c.levels[lev].ba[i].Contains(c.cellIndex(lev, pos)) {
		return false
	}
	for f := lev + 1; f <= maxLev; f++ {
		if fl := c.levels[f]; fl != nil {
			if _, ok := fl.ba.Find(c.cellIndex(f, pos)); ok {
				return false
			}
		}
	}
	return true
}
