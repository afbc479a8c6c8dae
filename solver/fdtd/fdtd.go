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

// Package fdtd implements the Yee finite-difference time-domain field
// solver with centered staggered derivatives of any even order.
package fdtd

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
	"github.com/spatialmodel/picamr/solver"
)

// Solver is a Yee FDTD solver.
type Solver struct {
	solver.Lifecycle

	geom  *mesh.Geometry
	order int

	// coef[a][k] is the weight of the k-th difference pair along axis a,
	// divided by the cell size.
	coef [3][]float64
}

// New returns a solver of the given even order for a level with
// geometry geom.
func New(geom *mesh.Geometry, order int) (*Solver, error) {
	if order < 2 || order%2 != 0 {
		return nil, mesh.NewConfigError("stencil-order", "E,B",
			"finite-difference order must be even and at least 2, have %d", order)
	}
	s := &Solver{geom: geom, order: order}
	w := StencilCoefficients(order)
	dx := geom.CellSize()
	for a := 0; a < 3; a++ {
		if !geom.Dim.Active(a) {
			continue
		}
		s.coef[a] = make([]float64, len(w))
		for k, c := range w {
			s.coef[a][k] = c / dx[a]
		}
	}
	return s, nil
}

// StencilCoefficients returns the weights c_1..c_{order/2} of the
// centered staggered difference of the given even order:
//
//	df/dx(x) ≈ Σ_k c_k (f(x+(k-1/2)h) - f(x-(k-1/2)h)) / h.
func StencilCoefficients(order int) []float64 {
	m := order / 2
	// ((2m-1)!!)² / 2^(2m-2)
	num := 1.0
	for i := 1; i <= 2*m-1; i += 2 {
		num *= float64(i)
	}
	num *= num
	for i := 0; i < 2*m-2; i++ {
		num /= 2
	}
	c := make([]float64, m)
	for k := 1; k <= m; k++ {
		d := factorial(m+k-1) * factorial(m-k) * float64((2*k-1)*(2*k-1))
		c[k-1] = num / d
		if k%2 == 0 {
			c[k-1] = -c[k-1]
		}
	}
	return c
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Name returns the solver name.
func (s *Solver) Name() string { return fmt.Sprintf("FDTD(order %d)", s.order) }

// GuardCellsRequired returns order/2 on every active axis.
func (s *Solver) GuardCellsRequired() mesh.IntVect {
	return s.geom.Dim.Guards(s.order / 2)
}

// BuildCoefficients records dt. The stencil weights depend only on the
// mesh and are computed by New.
func (s *Solver) BuildCoefficients(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("fdtd: invalid timestep %g", dt)
	}
	s.Built(dt)
	return nil
}

// AdvanceFields performs one leapfrog step: B by dt/2, E by dt, and B by
// dt/2 again, filling guard cells after each update.
func (s *Solver) AdvanceFields(f *solver.Fields, dt float64) error {
	if err := f.Check(s.GuardCellsRequired()); err != nil {
		return err
	}
	if s.Stale(dt) {
		if err := s.BuildCoefficients(dt); err != nil {
			return err
		}
	}
	s.pushB(f, 0.5*dt)
	s.pushE(f, dt)
	s.pushB(f, 0.5*dt)
	s.Advanced()
	return nil
}

// pushB advances B by dt using the curl of E.
func (s *Solver) pushB(f *solver.Fields, dt float64) {
	for c := 0; c < 3; c++ {
		a1, a2 := (c+1)%3, (c+2)%3
		b, e1, e2 := f.B[c], f.E[a1], f.E[a2]
		// (curl E)_c = ∂_{a1} E_{a2} - ∂_{a2} E_{a1}
		s.update(b, func(i int, p mesh.IntVect) float64 {
			return -dt * (s.deriv(e2.Fab(i), e2.Type, p, a1) - s.deriv(e1.Fab(i), e1.Type, p, a2))
		})
		b.FillBoundary(f.Geom)
	}
}

func (s *Solver) pushE(f *solver.Fields, dt float64) {
	const c2 = phys.C * phys.C
	for c := 0; c < 3; c++ {
		a1, a2 := (c+1)%3, (c+2)%3
		e, b1, b2, j := f.E[c], f.B[a1], f.B[a2], f.J[c]
		s.update(e, func(i int, p mesh.IntVect) float64 {
			curl := s.deriv(b2.Fab(i), b2.Type, p, a1) - s.deriv(b1.Fab(i), b1.Type, p, a2)
			return dt * (c2*curl - j.Fab(i).Get(p, 0)/phys.Epsilon0)
		})
		e.FillBoundary(f.Geom)
	}
}

// update adds delta(i, p) to every valid point of every box of dst. The
// increments are computed for a whole box before any is applied, so
// delta may read dst.
func (s *Solver) update(dst *mesh.Field, delta func(i int, p mesh.IntVect) float64) {
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for i := pp; i < dst.NumFabs(); i += nprocs {
				fab := dst.Fab(i)
				b := dst.ValidBox(i)
				d := make([]float64, 0, b.NumPts())
				b.Loop(func(p mesh.IntVect) { d = append(d, delta(i, p)) })
				k := 0
				b.Loop(func(p mesh.IntVect) {
					fab.Add(p, 0, d[k])
					k++
				})
			}
		}(pp)
	}
	wg.Wait()
}

// deriv returns the staggered derivative along axis a, at point p of the
// opposite staggering, of the field stored in fab with index type t.
func (s *Solver) deriv(fab *mesh.FArrayBox, t mesh.IndexType, p mesh.IntVect, a int) float64 {
	if !s.geom.Dim.Active(a) {
		return 0
	}
	var d float64
	for k, c := range s.coef[a] {
		hi, lo := p, p
		if t[a] == 1 {
			// nodal source, cell-centered result
			hi[a] += k + 1
			lo[a] -= k
		} else {
			hi[a] += k
			lo[a] -= k + 1
		}
		d += c * (fab.Get(hi, 0) - fab.Get(lo, 0))
	}
	return d
}
