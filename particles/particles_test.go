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
	"testing"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
)

const cellSize = 1e-6

func setup(t *testing.T, dim mesh.Dimensionality, order int) (*Container, *mesh.Geometry) {
	g, err := mesh.NewGeometry(dim, mesh.Uniform(8), [3]float64{},
		[3]float64{8 * cellSize, 8 * cellSize, 8 * cellSize}, [3]bool{true, true, true})
	if err != nil {
		t.Fatal(err)
	}
	ba := mesh.NewBoxArray(g.Domain, mesh.IntVect{4, 8, 4})
	dm := mesh.NewDistributionMapping(len(ba), 2)
	c, err := NewContainer(Species{Name: "electrons", Charge: -phys.Q, Mass: phys.Me}, dim, order)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Define(0, g, ba, dm); err != nil {
		t.Fatal(err)
	}
	return c, g
}

func levelField(c *Container, kind mesh.Kind, comp int) *mesh.Field {
	l := c.levels[0]
	return mesh.NewField("f", l.ba.Convert(mesh.YeeType(kind, comp, c.Dim)), l.dm, 1,
		c.Dim.Guards(GuardCells(c.ShapeOrder)))
}

// moveParticles adds two particles and then displaces them by the given
// number of cells, leaving the old positions in place.
func moveParticles(t *testing.T, c *Container, dt float64) {
	start := [][3]float64{{3.8, 2.3, 5.5}, {1.2, 6.9, 0.4}}
	delta := [][3]float64{{0.7, -0.6, 0.9}, {-0.5, 0.8, -0.9}}
	id := c.AddRealComp("id")
	var x, y, z, ux, uy, uz, w []float64
	for _, s := range start {
		x, y, z = append(x, s[0]*cellSize), append(y, s[1]*cellSize), append(z, s[2]*cellSize)
		w = append(w, 1e5)
	}
	for _, d := range delta {
		ux = append(ux, d[0]*cellSize/dt)
		uy = append(uy, d[1]*cellSize/dt)
		uz = append(uz, d[2]*cellSize/dt)
	}
	if err := c.AddNParticles(0, x, y, z, ux, uy, uz, w, map[string][]float64{"id": {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if n := c.NumParticles(); n != 2 {
		t.Fatalf("have %d particles, want 2", n)
	}
	for _, tile := range c.Tiles(0) {
		for p := 0; p < tile.Len(); p++ {
			d := delta[int(tile.Real[id][p])]
			for a := 0; a < 3; a++ {
				if c.Dim.Active(a) {
					tile.Real[X+a][p] += d[a] * cellSize
				}
			}
		}
	}
}

func nodes(g *mesh.Geometry, f func(p mesh.IntVect)) {
	g.Domain.Loop(f)
}

func TestNewContainerShapeOrder(t *testing.T) {
	for _, order := range []int{-1, MaxShapeOrder + 1, 7} {
		c, err := NewContainer(Species{Name: "electrons", Charge: -phys.Q, Mass: phys.Me}, mesh.Dim3, order)
		if !mesh.IsConfigError(err) || c != nil {
			t.Errorf("order %d: got %v, want a configuration error", order, err)
		}
	}
	for order := 0; order <= MaxShapeOrder; order++ {
		if _, err := NewContainer(Species{Name: "electrons", Charge: -phys.Q, Mass: phys.Me}, mesh.Dim3, order); err != nil {
			t.Errorf("order %d: %v", order, err)
		}
	}
}

func TestShapeMoments(t *testing.T) {
	for order := 0; order <= 3; order++ {
		for _, xn := range []float64{0, 0.25, 0.5, 0.99, 3.3, -1.7} {
			i0, w := shape(order, xn)
			var sum, mom float64
			for k := 0; k <= order; k++ {
				sum += w[k]
				mom += w[k] * float64(i0+k)
			}
			if math.Abs(sum-1) > 1e-14 {
				t.Errorf("order %d, x=%g: weights sum to %g", order, xn, sum)
			}
			if order > 0 && math.Abs(mom-xn) > 1e-13 {
				t.Errorf("order %d, x=%g: first moment %g", order, xn, mom)
			}
		}
	}
}

func TestEsirkepovContinuity(t *testing.T) {
	const dt = 1e-15
	for _, dim := range []mesh.Dimensionality{mesh.Dim1, mesh.Dim2, mesh.Dim3} {
		for order := 1; order <= 3; order++ {
			c, g := setup(t, dim, order)
			moveParticles(t, c, dt)
			rho0, rho1 := levelField(c, mesh.KindRho, 0), levelField(c, mesh.KindRho, 0)
			j := [3]*mesh.Field{levelField(c, mesh.KindJ, 0), levelField(c, mesh.KindJ, 1), levelField(c, mesh.KindJ, 2)}
			if err := c.DepositCharge(0, rho0, 0); err != nil {
				t.Fatal(err)
			}
			if err := c.DepositCharge(0, rho1, 1); err != nil {
				t.Fatal(err)
			}
			if err := c.DepositCurrent(0, j, dt, Esirkepov, 0, 1); err != nil {
				t.Fatal(err)
			}
			rho0.SumBoundary(g)
			rho1.SumBoundary(g)
			for _, f := range j {
				f.SumBoundary(g)
			}

			q := c.TotalCharge()
			if got := rho1.Sum(0, g) * g.CellVolume(); math.Abs(got-q) > 1e-12*math.Abs(q) {
				t.Errorf("%v order %d: deposited charge %g, want %g", dim, order, got, q)
			}

			dx := g.CellSize()
			scale := math.Max(rho0.NormInf(0), rho1.NormInf(0)) / dt
			nodes(g, func(p mesh.IntVect) {
				r0, _ := rho0.Lookup(p, 0, g)
				r1, _ := rho1.Lookup(p, 0, g)
				res := (r1 - r0) / dt
				for a := 0; a < 3; a++ {
					if !dim.Active(a) {
						continue
					}
					m := p
					m[a]--
					jp, _ := j[a].Lookup(p, 0, g)
					jm, _ := j[a].Lookup(m, 0, g)
					res += (jp - jm) / dx[a]
				}
				if math.Abs(res) > 1e-10*scale {
					t.Errorf("%v order %d: continuity residual %g at %v (scale %g)", dim, order, res, p, scale)
				}
			})
		}
	}
}

func TestVayIdentity(t *testing.T) {
	const dt = 1e-15
	for _, dim := range []mesh.Dimensionality{mesh.Dim2, mesh.Dim3} {
		for order := 1; order <= 3; order++ {
			c, g := setup(t, dim, order)
			moveParticles(t, c, dt)
			rho0, rho1 := levelField(c, mesh.KindRho, 0), levelField(c, mesh.KindRho, 0)
			d := [3]*mesh.Field{levelField(c, mesh.KindJ, 0), levelField(c, mesh.KindJ, 1), levelField(c, mesh.KindJ, 2)}
			if err := c.DepositCharge(0, rho0, 0); err != nil {
				t.Fatal(err)
			}
			if err := c.DepositCharge(0, rho1, 1); err != nil {
				t.Fatal(err)
			}
			if err := c.DepositCurrent(0, d, dt, Vay, 0, 1); err != nil {
				t.Fatal(err)
			}
			rho0.SumBoundary(g)
			rho1.SumBoundary(g)
			for _, f := range d {
				f.SumBoundary(g)
			}
			scale := math.Max(rho0.NormInf(0), rho1.NormInf(0)) / dt
			nodes(g, func(p mesh.IntVect) {
				r0, _ := rho0.Lookup(p, 0, g)
				r1, _ := rho1.Lookup(p, 0, g)
				var sum float64
				for a := 0; a < 3; a++ {
					if dim.Active(a) {
						v, _ := d[a].Lookup(p, 0, g)
						sum += v
					}
				}
				if res := sum - (r1-r0)/dt; math.Abs(res) > 1e-10*scale {
					t.Errorf("%v order %d: sum of D differs from charge change by %g at %v", dim, order, res, p)
				}
			})
		}
	}
}

func TestDirectDepositTotalCurrent(t *testing.T) {
	const dt = 1e-15
	c, g := setup(t, mesh.Dim3, 2)
	u := [3]float64{1e6, -2e6, 3e6}
	if err := c.AddNParticles(0, []float64{4.5 * cellSize}, []float64{4.1 * cellSize}, []float64{3.9 * cellSize},
		[]float64{u[0]}, []float64{u[1]}, []float64{u[2]}, []float64{10}, nil); err != nil {
		t.Fatal(err)
	}
	j := [3]*mesh.Field{levelField(c, mesh.KindJ, 0), levelField(c, mesh.KindJ, 1), levelField(c, mesh.KindJ, 2)}
	if err := c.DepositCurrent(0, j, dt, Direct, 0, 1); err != nil {
		t.Fatal(err)
	}
	ig := invGamma(u[0], u[1], u[2])
	for a := 0; a < 3; a++ {
		j[a].SumBoundary(g)
		want := c.Charge * 10 * u[a] * ig
		if got := j[a].Sum(0, g) * g.CellVolume(); math.Abs(got-want) > 1e-12*math.Abs(want) {
			t.Errorf("component %d: total current %g, want %g", a, got, want)
		}
	}
}

func TestDepositOutsideGuardsFails(t *testing.T) {
	c, _ := setup(t, mesh.Dim3, 1)
	if err := c.AddNParticles(0, []float64{1.5 * cellSize}, []float64{1.5 * cellSize}, []float64{1.5 * cellSize},
		[]float64{0}, []float64{0}, []float64{0}, []float64{1}, nil); err != nil {
		t.Fatal(err)
	}
	rho := mesh.NewField("rho", c.levels[0].ba.Convert(mesh.NodeType), c.levels[0].dm, 1, mesh.IntVect{})
	// Put the particle deep in the guard region of box 0.
	c.Tiles(0)[0].Real[X][0] = -2.5 * cellSize
	err := c.DepositCharge(0, rho, 1)
	if !mesh.IsConfigError(err) {
		t.Fatalf("want a configuration error, have %v", err)
	}
}

func TestGatherPolynomial(t *testing.T) {
	for order := 0; order <= 3; order++ {
		c, g := setup(t, mesh.Dim3, order)
		var fs FieldSet
		for a := 0; a < 3; a++ {
			fs.E[a] = levelField(c, mesh.KindE, a)
			fs.B[a] = levelField(c, mesh.KindB, a)
		}
		// E_x varies linearly with x; all other components are constant.
		ex := fs.E[0]
		for i := 0; i < ex.NumFabs(); i++ {
			fab := ex.Fab(i)
			fab.Box.Loop(func(p mesh.IntVect) {
				fab.Set(p, 0, (float64(p[0])+0.5)*cellSize)
			})
		}
		for a := 1; a < 3; a++ {
			fs.E[a].SetVal(2)
		}
		for a := 0; a < 3; a++ {
			fs.B[a].SetVal(-1)
		}
		pos := [3]float64{2.3 * cellSize, 4.4 * cellSize, 1.9 * cellSize}
		e, b, err := fs.gather(0, pos, order, g, c.Dim)
		if err != nil {
			t.Fatal(err)
		}
		if order > 0 && math.Abs(e[0]-pos[0]) > 1e-12*cellSize {
			t.Errorf("order %d: E_x = %g, want %g", order, e[0], pos[0])
		}
		for a := 1; a < 3; a++ {
			if math.Abs(e[a]-2) > 1e-13 {
				t.Errorf("order %d: E_%d = %g, want 2", order, a, e[a])
			}
		}
		for a := 0; a < 3; a++ {
			if math.Abs(b[a]+1) > 1e-13 {
				t.Errorf("order %d: B_%d = %g, want -1", order, a, b[a])
			}
		}
	}
}

func TestPushers(t *testing.T) {
	const (
		qm = -phys.Q / phys.Me
		dt = 1e-13
	)
	for _, push := range []func(*[3]float64, [3]float64, [3]float64, float64, float64){borisPush, higueraCaryPush} {
		// Gyration in a uniform magnetic field conserves |u|.
		u := [3]float64{1e7, 2e7, 5e6}
		u0 := math.Sqrt(dot(u, u))
		for i := 0; i < 1000; i++ {
			push(&u, [3]float64{}, [3]float64{0, 0, 2}, qm, dt)
		}
		if got := math.Sqrt(dot(u, u)); math.Abs(got-u0) > 1e-10*u0 {
			t.Errorf("|u| changed from %g to %g", u0, got)
		}
		if math.Abs(u[2]-5e6) > 1e-3 {
			t.Errorf("parallel momentum changed to %g", u[2])
		}

		// A pure electric field accelerates exactly.
		u = [3]float64{1, 2, 3}
		push(&u, [3]float64{1e3, 0, -1e3}, [3]float64{}, qm, dt)
		want := [3]float64{1 + qm*dt*1e3, 2, 3 - qm*dt*1e3}
		for a := range u {
			if math.Abs(u[a]-want[a]) > 1e-12*math.Abs(want[a]) {
				t.Errorf("u[%d] = %g, want %g", a, u[a], want[a])
			}
		}
	}
}

func TestPushPXStationary(t *testing.T) {
	c, _ := setup(t, mesh.Dim3, 1)
	if err := c.AddNParticles(0, []float64{1.5 * cellSize}, []float64{2.5 * cellSize}, []float64{3.5 * cellSize},
		[]float64{0}, []float64{0}, []float64{0}, []float64{1}, nil); err != nil {
		t.Fatal(err)
	}
	var fs FieldSet
	for a := 0; a < 3; a++ {
		fs.E[a] = levelField(c, mesh.KindE, a)
		fs.B[a] = levelField(c, mesh.KindB, a)
	}
	for i := 0; i < 10; i++ {
		if err := c.PushPX(0, fs, 1e-15); err != nil {
			t.Fatal(err)
		}
	}
	tile := c.Tiles(0)[0]
	if tile.Real[X][0] != 1.5*cellSize || tile.Real[c.xold][0] != 1.5*cellSize {
		t.Errorf("particle moved to %g", tile.Real[X][0])
	}
}

func TestBoundaries(t *testing.T) {
	c, _ := setup(t, mesh.Dim3, 1)
	x := []float64{1.5, 2.5, 3.5, 0.5}
	for i := range x {
		x[i] *= cellSize
	}
	z := []float64{cellSize, cellSize, cellSize, cellSize}
	zero := []float64{0, 0, 0, 0}
	if err := c.AddNParticles(0, x, z, z, []float64{-1, 1, 0, 0}, zero, zero, []float64{1, 1, 1, 1}, nil); err != nil {
		t.Fatal(err)
	}
	tile := c.Tiles(0)[0]
	tile.Real[X][0] = -0.5 * cellSize // lower x face: periodic
	tile.Real[X][1] = 8.5 * cellSize  // upper x face: reflecting
	tile.Real[Y][2] = -1 * cellSize   // lower y face: absorbing
	tile.Real[Z][3] = 9 * cellSize    // upper z face: open
	bc := Boundaries{{Periodic, Reflecting}, {Absorbing, Absorbing}, {Open, Open}}
	removed, err := c.ApplyBoundaryConditions(0, bc)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed %d particles, want 2", removed)
	}
	if n := c.NumParticles(); n != 2 {
		t.Fatalf("have %d particles, want 2", n)
	}
	if got := tile.Real[X][0]; math.Abs(got-7.5*cellSize) > 1e-18 {
		t.Errorf("periodic particle at %g", got)
	}
	if got := tile.Real[X][1]; math.Abs(got-7.5*cellSize) > 1e-18 || tile.Real[UX][1] != -1 {
		t.Errorf("reflected particle at %g with ux %g", got, tile.Real[UX][1])
	}
	if e := c.Escaped(); e.Len() != 1 {
		t.Errorf("%d escaped particles, want 1", e.Len())
	}
	if err := c.RedistributeLevel(0); err != nil {
		t.Fatal(err)
	}
	if n := c.Tiles(0)[2].Len(); n != 2 {
		t.Errorf("box 2 holds %d particles after redistribution, want 2", n)
	}
}

func TestRedistributeAcrossLevels(t *testing.T) {
	c, g := setup(t, mesh.Dim3, 1)
	if err := c.AddPlasma(0, func(x, y, z float64) float64 { return 1e24 }, mesh.Uniform(1), [3]float64{}); err != nil {
		t.Fatal(err)
	}
	if n := c.NumParticles(); n != 512 {
		t.Fatalf("have %d particles, want 512", n)
	}
	q := c.TotalCharge()
	want := -phys.Q * 1e24 * 512 * g.CellVolume()
	if math.Abs(q-want) > 1e-12*math.Abs(want) {
		t.Errorf("total charge %g, want %g", q, want)
	}

	r := mesh.Uniform(2)
	fg := g.Refine(r)
	patch := mesh.NewBox(mesh.Uniform(2), mesh.Uniform(5), mesh.CellType).Refine(r)
	fba := mesh.NewBoxArray(patch, mesh.Uniform(4))
	if err := c.Define(1, fg, fba, mesh.NewDistributionMapping(len(fba), 2)); err != nil {
		t.Fatal(err)
	}
	if err := c.Redistribute(); err != nil {
		t.Fatal(err)
	}
	if n := c.NumParticlesAt(1); n != 64 {
		t.Errorf("fine level holds %d particles, want 64", n)
	}
	if n := c.NumParticles(); n != 512 {
		t.Errorf("have %d particles after redistribution, want 512", n)
	}

	// A fine particle that leaves the patch falls back to level 0.
	for _, tile := range c.Tiles(1) {
		if tile.Len() > 0 {
			tile.Real[X][0] = 0.5 * cellSize
			break
		}
	}
	if err := c.RedistributeLevel(1); err != nil {
		t.Fatal(err)
	}
	if n := c.NumParticlesAt(1); n != 63 {
		t.Errorf("fine level holds %d particles, want 63", n)
	}
	if err := c.Release(1); err != nil {
		t.Fatal(err)
	}
	if n := c.NumParticlesAt(0); n != 512 {
		t.Errorf("level 0 holds %d particles after release, want 512", n)
	}
}

func TestMeanVelocity(t *testing.T) {
	c, _ := setup(t, mesh.Dim3, 1)
	if err := c.AddNParticles(0, []float64{cellSize, 2 * cellSize}, []float64{cellSize, cellSize}, []float64{cellSize, cellSize},
		[]float64{1e3, 3e3}, []float64{0, 0}, []float64{0, 0}, []float64{3, 1}, nil); err != nil {
		t.Fatal(err)
	}
	v := c.MeanVelocity()
	if math.Abs(v[0]-1.5e3) > 1e-6 {
		t.Errorf("mean velocity %g, want 1500", v[0])
	}
	if s := c.MaxSpeed(); math.Abs(s-3e3) > 1e-6 {
		t.Errorf("max speed %g, want 3000", s)
	}
	ke := c.KineticEnergy()
	want := 0.5 * phys.Me * (3*1e6 + 9e6)
	if math.Abs(ke-want) > 1e-8*want {
		t.Errorf("kinetic energy %g, want %g", ke, want)
	}
}
