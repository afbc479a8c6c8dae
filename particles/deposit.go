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

	"github.com/spatialmodel/picamr/mesh"
)

// Scheme selects how current is scattered to the mesh.
type Scheme int

// Current deposition schemes.
const (
	// Direct deposits qwv at the mid-step position with the staggering
	// of each current component.
	Direct Scheme = iota
	// Esirkepov deposits a current that satisfies the discrete
	// continuity equation exactly on the Yee grid.
	Esirkepov
	// Vay deposits the nodal quantities D whose sum over axes is the
	// rate of change of charge density. The current is recovered in
	// Fourier space by the spectral solver.
	Vay
)

func (s Scheme) String() string {
	switch s {
	case Direct:
		return "direct"
	case Esirkepov:
		return "esirkepov"
	case Vay:
		return "vay"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme converts a deposition scheme name to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "direct", "Direct":
		return Direct, nil
	case "esirkepov", "Esirkepov":
		return Esirkepov, nil
	case "vay", "Vay":
		return Vay, nil
	default:
		return Direct, fmt.Errorf("particles: invalid current deposition scheme %q", s)
	}
}

// GuardCells returns the guard cell width deposition and gathering with
// shapes of the given order need along each active axis, assuming no
// particle moves more than one cell per step.
func GuardCells(order int) int { return order/2 + 2 }

// position returns the position of particle p a fraction f of the way
// from its old to its current position.
func (c *Container) position(t *Tile, p int, f float64) [3]float64 {
	cur := [3]float64{t.Real[X][p], t.Real[Y][p], t.Real[Z][p]}
	if f == 1 {
		return cur
	}
	old := [3]float64{t.Real[c.xold][p], t.Real[c.yold][p], t.Real[c.zold][p]}
	var pos [3]float64
	for a := range pos {
		pos[a] = old[a] + f*(cur[a]-old[a])
	}
	return pos
}

// DepositCharge adds the charge density of the particles at level lev
// to rho, evaluated at the fraction frac of the last push (0 is the
// position before the push, 1 the current position). Contributions are
// added to the per-box arrays, guard cells included; call SumBoundary
// on rho once every species has deposited.
func (c *Container) DepositCharge(lev int, rho *mesh.Field, frac float64) error {
	if c.DoNotDeposit {
		return nil
	}
	g := c.levels[lev].geom
	invVol := 1 / g.CellVolume()
	return c.forTiles(lev, func(i int, t *Tile) error {
		fab := rho.Fab(i)
		for p := 0; p < t.Len(); p++ {
			s := newStencil(c.ShapeOrder, c.position(t, p, frac), g, rho.Type, c.Dim)
			if err := checkStencil(fab, s, rho); err != nil {
				return err
			}
			qw := c.Charge * t.Real[W][p] * invVol
			s.each(func(pt mesh.IntVect, w float64) {
				fab.Add(pt, 0, qw*w)
			})
		}
		return nil
	})
}

// DepositCurrent adds the current of the particles at level lev to j
// for motion between fractions f0 and f1 of the last push, which spans
// dt. With the Vay scheme, j receives the nodal D quantities instead.
// As with DepositCharge, call SumBoundary on each component afterwards.
func (c *Container) DepositCurrent(lev int, j [3]*mesh.Field, dt float64, scheme Scheme, f0, f1 float64) error {
	if c.DoNotDeposit {
		return nil
	}
	if scheme != Direct && c.ShapeOrder < 1 {
		return mesh.NewConfigError("deposition-order", c.Name,
			"%s deposition requires a shape order of at least 1, have %d", scheme, c.ShapeOrder)
	}
	g := c.levels[lev].geom
	return c.forTiles(lev, func(i int, t *Tile) error {
		fabs := [3]*mesh.FArrayBox{j[0].Fab(i), j[1].Fab(i), j[2].Fab(i)}
		for p := 0; p < t.Len(); p++ {
			p0 := c.position(t, p, f0)
			p1 := c.position(t, p, f1)
			ig := invGamma(t.Real[UX][p], t.Real[UY][p], t.Real[UZ][p])
			v := [3]float64{t.Real[UX][p] * ig, t.Real[UY][p] * ig, t.Real[UZ][p] * ig}
			q := c.Charge * t.Real[W][p]
			var err error
			switch scheme {
			case Direct:
				err = c.depositDirect(fabs, j, g, p0, p1, v, q)
			case Esirkepov, Vay:
				err = c.depositConserving(fabs, j, g, p0, p1, v, q, dt, scheme == Vay)
			default:
				err = fmt.Errorf("particles: invalid deposition scheme %v", scheme)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Container) depositDirect(fabs [3]*mesh.FArrayBox, j [3]*mesh.Field, g *mesh.Geometry, p0, p1, v [3]float64, q float64) error {
	var mid [3]float64
	for a := range mid {
		mid[a] = 0.5 * (p0[a] + p1[a])
	}
	invVol := 1 / g.CellVolume()
	for comp := 0; comp < 3; comp++ {
		s := newStencil(c.ShapeOrder, mid, g, j[comp].Type, c.Dim)
		if err := checkStencil(fabs[comp], s, j[comp]); err != nil {
			return err
		}
		jv := q * v[comp] * invVol
		fab := fabs[comp]
		s.each(func(pt mesh.IntVect, w float64) {
			fab.Add(pt, 0, jv*w)
		})
	}
	return nil
}

// pair holds nodal shape weights at the old and new positions on a
// common index range along each axis.
type pair struct {
	lo     mesh.IntVect
	n      mesh.IntVect
	s0, ds [3][maxShape + 1]float64
}

func (c *Container) newPair(g *mesh.Geometry, p0, p1 [3]float64) (pair, error) {
	var pr pair
	dx := g.CellSize()
	for a := 0; a < 3; a++ {
		if !c.Dim.Active(a) {
			pr.n[a] = 1
			pr.s0[a][0] = 1
			continue
		}
		i0, w0 := shape(c.ShapeOrder, (p0[a]-g.ProbLo[a])/dx[a])
		i1, w1 := shape(c.ShapeOrder, (p1[a]-g.ProbLo[a])/dx[a])
		lo := i0
		if i1 < lo {
			lo = i1
		}
		hi := i0
		if i1 > hi {
			hi = i1
		}
		if hi-lo > 1 {
			return pr, fmt.Errorf("particles: %s particle moved more than one cell along axis %d in one step", c.Name, a)
		}
		pr.lo[a] = lo
		pr.n[a] = hi - lo + c.ShapeOrder + 1
		for k := 0; k <= c.ShapeOrder; k++ {
			pr.s0[a][k+i0-lo] = w0[k]
			pr.ds[a][k+i1-lo] += w1[k]
		}
		for k := 0; k < pr.n[a]; k++ {
			pr.ds[a][k] -= pr.s0[a][k]
		}
	}
	return pr, nil
}

// weight returns the Esirkepov decomposition weight W_a at offsets k,
// excluding the ds factor along a itself.
func (pr *pair) weight(a int, k mesh.IntVect) float64 {
	b, cc := (a+1)%3, (a+2)%3
	s0b, dsb := pr.s0[b][k[b]], pr.ds[b][k[b]]
	s0c, dsc := pr.s0[cc][k[cc]], pr.ds[cc][k[cc]]
	return s0b*s0c + 0.5*dsb*s0c + 0.5*s0b*dsc + dsb*dsc/3
}

// depositConserving deposits the Esirkepov current, or with vay set the
// Vay D quantities, for a particle moving from p0 to p1 over dt.
func (c *Container) depositConserving(fabs [3]*mesh.FArrayBox, j [3]*mesh.Field, g *mesh.Geometry, p0, p1, v [3]float64, q, dt float64, vay bool) error {
	pr, err := c.newPair(g, p0, p1)
	if err != nil {
		return err
	}
	dx := g.CellSize()
	invVol := 1 / g.CellVolume()
	for a := 0; a < 3; a++ {
		fab := fabs[a]
		active := c.Dim.Active(a)
		n := pr.n
		if active && !vay {
			n[a]-- // the running sum vanishes at the last node
		}
		box := mesh.NewBox(pr.lo, pr.lo.Add(n).Sub(mesh.Uniform(1)), j[a].Type)
		if !fab.Box.ContainsBox(box) {
			return mesh.NewConfigError("guard-cells", j[a].Name,
				"particle deposition stencil %v reaches outside grown box %v", box, fab.Box)
		}
		var coef float64
		switch {
		case !active:
			coef = q * v[a] * invVol
		case vay:
			coef = q * invVol / dt
		default:
			coef = -q * dx[a] * invVol / dt
		}
		var k mesh.IntVect
		for k[0] = 0; k[0] < n[0]; k[0]++ {
			for k[1] = 0; k[1] < n[1]; k[1]++ {
				for k[2] = 0; k[2] < n[2]; k[2]++ {
					pt := pr.lo.Add(k)
					switch {
					case !active:
						fab.Add(pt, 0, coef*pr.weight(a, k))
					case vay:
						fab.Add(pt, 0, coef*pr.ds[a][k[a]]*pr.weight(a, k))
					default:
						// Running sum along a up to and including k[a].
						var sum float64
						kk := k
						for kk[a] = 0; kk[a] <= k[a]; kk[a]++ {
							sum += pr.ds[a][kk[a]] * pr.weight(a, kk)
						}
						fab.Add(pt, 0, coef*sum)
					}
				}
			}
		}
	}
	return nil
}
