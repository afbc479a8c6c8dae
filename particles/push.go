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
	"math"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
)

// borisPush advances the momentum per unit mass u = γv over dt in
// fields e and b.
func borisPush(u *[3]float64, e, b [3]float64, qm, dt float64) {
	h := 0.5 * qm * dt
	var um [3]float64
	for a := range um {
		um[a] = u[a] + h*e[a]
	}
	ig := invGamma(um[0], um[1], um[2])
	var t [3]float64
	for a := range t {
		t[a] = h * b[a] * ig
	}
	up := add(um, cross(um, t))
	s := 2 / (1 + dot(t, t))
	upl := add(um, scale(cross(up, t), s))
	for a := range u {
		u[a] = upl[a] + h*e[a]
	}
}

// higueraCaryPush is the volume-preserving pusher of Higuera and Cary
// (2017), which keeps E + v×B = 0 drifts exact.
func higueraCaryPush(u *[3]float64, e, b [3]float64, qm, dt float64) {
	const c2 = phys.C * phys.C
	h := 0.5 * qm * dt
	var um [3]float64
	for a := range um {
		um[a] = u[a] + h*e[a]
	}
	gm2 := 1 + dot(um, um)/c2
	var tau [3]float64
	for a := range tau {
		tau[a] = h * b[a]
	}
	tau2 := dot(tau, tau)
	ustar := dot(um, tau) / phys.C
	sigma := gm2 - tau2
	gp := math.Sqrt(0.5 * (sigma + math.Sqrt(sigma*sigma+4*(tau2+ustar*ustar))))
	t := scale(tau, 1/gp)
	s := 1 / (1 + dot(t, t))
	up := scale(add(add(um, scale(t, dot(um, t))), cross(um, t)), s)
	upt := cross(up, t)
	for a := range u {
		u[a] = up[a] + h*e[a] + upt[a]
	}
}

// updatePosition moves a particle over dt with momentum per unit mass u.
// Inactive axes do not move.
func updatePosition(pos *[3]float64, u [3]float64, dt float64, dim mesh.Dimensionality) {
	ig := invGamma(u[0], u[1], u[2])
	for a := range pos {
		if dim.Active(a) {
			pos[a] += u[a] * ig * dt
		}
	}
}

// PushPX gathers fields, pushes momenta and then positions of the
// particles at level lev over dt. Positions at the start of the push
// are kept in the xold, yold and zold attributes.
func (c *Container) PushPX(lev int, fs FieldSet, dt float64) error {
	if c.DoNotPush {
		return c.forTiles(lev, func(_ int, t *Tile) error {
			c.saveOld(t)
			return nil
		})
	}
	qm := c.Charge / c.Mass
	g := c.levels[lev].geom
	return c.forTiles(lev, func(i int, t *Tile) error {
		c.saveOld(t)
		for p := 0; p < t.Len(); p++ {
			pos := [3]float64{t.Real[X][p], t.Real[Y][p], t.Real[Z][p]}
			u := [3]float64{t.Real[UX][p], t.Real[UY][p], t.Real[UZ][p]}
			var e, b [3]float64
			if !c.DoNotGather {
				var err error
				if e, b, err = fs.gather(i, pos, c.ShapeOrder, g, c.Dim); err != nil {
					return err
				}
			}
			switch c.Pusher {
			case HigueraCary:
				higueraCaryPush(&u, e, b, qm, dt)
			default:
				borisPush(&u, e, b, qm, dt)
			}
			updatePosition(&pos, u, dt, c.Dim)
			t.Real[X][p], t.Real[Y][p], t.Real[Z][p] = pos[0], pos[1], pos[2]
			t.Real[UX][p], t.Real[UY][p], t.Real[UZ][p] = u[0], u[1], u[2]
		}
		return nil
	})
}

func (c *Container) saveOld(t *Tile) {
	copy(t.Real[c.xold], t.Real[X])
	copy(t.Real[c.yold], t.Real[Y])
	copy(t.Real[c.zold], t.Real[Z])
}

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

func add(a, b [3]float64) [3]float64 { return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func scale(a [3]float64, s float64) [3]float64 { return [3]float64{a[0] * s, a[1] * s, a[2] * s} }
