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

// Package psatd implements a pseudo-spectral analytical time-domain field
// solver on a fully periodic level.
package psatd

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
	"github.com/spatialmodel/picamr/solver"
)

// Config holds the options of a spectral solver.
type Config struct {
	// Order is the order of the finite-difference stencil whose
	// modified wavenumbers are used. Order <= 0 uses exact wavenumbers.
	Order int

	// UpdateWithRho selects the formulation that uses the charge
	// density at the start and end of the step.
	UpdateWithRho bool

	// TimeAveraging writes E and B averaged over each step into the
	// EAvg and BAvg fields. It requires UpdateWithRho to be false.
	TimeAveraging bool

	// CacheSize is the number of coefficient sets kept. It defaults to 4.
	CacheSize int
}

// Solver is a spectral solver for one level.
type Solver struct {
	solver.Lifecycle

	cfg  Config
	geom *mesh.Geometry
	ba   mesh.BoxArray
	grid *spectralGrid

	mu     sync.Mutex
	cache  *lru.Cache
	coef   *coefficients
	builds int
}

// New returns a solver for the level with geometry geom decomposed into
// the cell-centered boxes ba. The level must be periodic along every
// active axis and ba must tile the whole domain.
func New(geom *mesh.Geometry, ba mesh.BoxArray, cfg Config) (*Solver, error) {
	if err := checkLayout(geom, ba); err != nil {
		return nil, err
	}
	if cfg.TimeAveraging && cfg.UpdateWithRho {
		return nil, mesh.NewConfigError("time-averaging", "Eavg,Bavg",
			"time-averaged fields require the formulation without charge density")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4
	}
	return &Solver{
		cfg:   cfg,
		geom:  geom,
		ba:    ba,
		grid:  newSpectralGrid(geom, cfg.Order),
		cache: lru.New(cfg.CacheSize),
	}, nil
}

func checkLayout(geom *mesh.Geometry, ba mesh.BoxArray) error {
	if !geom.AllPeriodic() {
		return mesh.NewConfigError("spectral-layout", "E,B",
			"the spectral solver needs a domain that is periodic along every active axis")
	}
	n := 0
	for i, b := range ba {
		b = b.Convert(mesh.CellType)
		if !geom.Domain.ContainsBox(b) {
			return mesh.NewConfigError("spectral-layout", "E,B",
				"box %d %v lies outside the domain %v", i, b, geom.Domain)
		}
		for j := 0; j < i; j++ {
			if _, ok := b.Intersect(ba[j].Convert(mesh.CellType)); ok {
				return mesh.NewConfigError("spectral-layout", "E,B", "boxes %d and %d overlap", j, i)
			}
		}
		n += b.NumPts()
	}
	if n != geom.Domain.NumPts() {
		return mesh.NewConfigError("spectral-layout", "E,B",
			"boxes cover %d of the %d cells of the domain", n, geom.Domain.NumPts())
	}
	return nil
}

// Name returns the solver name.
func (s *Solver) Name() string {
	if s.cfg.Order <= 0 {
		return "PSATD(exact)"
	}
	return fmt.Sprintf("PSATD(order %d)", s.cfg.Order)
}

// GuardCellsRequired returns zero: the update is global.
func (s *Solver) GuardCellsRequired() mesh.IntVect { return mesh.IntVect{} }

// TimeAveraging reports whether averaged fields are produced.
func (s *Solver) TimeAveraging() bool { return s.cfg.TimeAveraging }

// BuildCoefficients makes the coefficients for dt current, computing
// them only if they are not cached.
func (s *Solver) BuildCoefficients(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("psatd: invalid timestep %g", dt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache.Get(dt); ok {
		s.coef = c.(*coefficients)
	} else {
		s.coef = newCoefficients(s.grid, dt)
		s.cache.Add(dt, s.coef)
		s.builds++
	}
	s.Built(dt)
	return nil
}

// CoefficientBuilds returns how many coefficient sets have been computed
// rather than taken from the cache.
func (s *Solver) CoefficientBuilds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

func (s *Solver) checkFields(f *solver.Fields) error {
	if err := f.Check(s.GuardCellsRequired()); err != nil {
		return err
	}
	if !f.E[0].BA.Convert(mesh.CellType).Equal(s.ba.Convert(mesh.CellType)) {
		return mesh.NewConfigError("spectral-layout", f.E[0].Name,
			"level %d fields are not on the decomposition the solver was built for", f.Level)
	}
	return nil
}

func (s *Solver) needRho(f *solver.Fields, what string) error {
	if f.Rho == nil || f.RhoOld == nil {
		err := mesh.NewConfigError("charge-density", "rho", "%s needs the charge density at both ends of the step", what)
		err.Level = f.Level
		return err
	}
	return nil
}

// AdvanceFields advances E and B by dt.
func (s *Solver) AdvanceFields(f *solver.Fields, dt float64) error {
	if err := s.checkFields(f); err != nil {
		return err
	}
	if s.cfg.UpdateWithRho {
		if err := s.needRho(f, "the charge-density formulation"); err != nil {
			return err
		}
	}
	if s.cfg.TimeAveraging {
		for c := 0; c < 3; c++ {
			if f.EAvg[c] == nil || f.BAvg[c] == nil {
				return mesh.NewConfigError("time-averaging", "Eavg,Bavg", "level %d has no averaged field arrays", f.Level)
			}
		}
	}
	if s.Stale(dt) {
		if err := s.BuildCoefficients(dt); err != nil {
			return err
		}
	}
	g := s.grid
	var e, b, j [3][]complex128
	for c := 0; c < 3; c++ {
		e[c] = g.forward(f.E[c], false)
		b[c] = g.forward(f.B[c], false)
		j[c] = g.forward(f.J[c], false)
	}
	var rho, rhoOld []complex128
	if s.cfg.UpdateWithRho {
		rho = g.forward(f.Rho, false)
		rhoOld = g.forward(f.RhoOld, false)
	}
	var eAvg, bAvg [3][]complex128
	if s.cfg.TimeAveraging {
		for c := 0; c < 3; c++ {
			eAvg[c] = make([]complex128, g.size())
			bAvg[c] = make([]complex128, g.size())
		}
	}

	const (
		c2 = phys.C * phys.C
		e0 = phys.Epsilon0
	)
	co := s.coef
	I := complex(0, 1)
	g.each(func(m int, kv [3]float64) {
		em := [3]complex128{e[0][m], e[1][m], e[2][m]}
		bm := [3]complex128{b[0][m], b[1][m], b[2][m]}
		jm := [3]complex128{j[0][m], j[1][m], j[2][m]}
		kxE, kxB, kxJ := cross(kv, em), cross(kv, bm), cross(kv, jm)
		kE, kJ := dot(kv, em), dot(kv, jm)
		C, S := complex(co.c[m], 0), complex(co.s[m], 0)
		X1 := complex(co.x1[m], 0)
		X4 := -S / e0

		if s.cfg.TimeAveraging {
			Y1, Y2 := complex(co.y1[m], 0), complex(co.y2[m], 0)
			Y4, Z5, Z6 := complex(co.y4[m], 0), complex(co.z5[m], 0), complex(co.z6[m], 0)
			for a := 0; a < 3; a++ {
				k := complex(kv[a], 0)
				eAvg[a][m] = Y1*em[a] + I*c2*Y2*kxB[a] - Y2/e0*jm[a] + k*(Z5*kE+Z6*kJ)
				bAvg[a][m] = Y1*bm[a] - I*Y2*kxE[a] + I*Y4*kxJ[a]
			}
		}

		for a := 0; a < 3; a++ {
			k := complex(kv[a], 0)
			en := C*em[a] + I*c2*S*kxB[a] + X4*jm[a]
			if s.cfg.UpdateWithRho {
				X2, X3 := complex(co.x2[m], 0), complex(co.x3[m], 0)
				en -= I * (X2*rho[m] - X3*rhoOld[m]) * k
			} else {
				X5, X6 := complex(co.x5[m], 0), complex(co.x6[m], 0)
				en += k * (X5*kE + X6*kJ)
			}
			e[a][m] = en
			b[a][m] = C*bm[a] - I*S*kxE[a] + I*X1*kxJ[a]
		}
	})

	for c := 0; c < 3; c++ {
		g.backward(e[c], f.E[c], f.Geom)
		g.backward(b[c], f.B[c], f.Geom)
		if s.cfg.TimeAveraging {
			g.backward(eAvg[c], f.EAvg[c], f.Geom)
			g.backward(bAvg[c], f.BAvg[c], f.Geom)
		}
	}
	s.Advanced()
	return nil
}

// CorrectCurrent projects J so that, with the modified wavenumbers of
// the solver, it satisfies (ρ-ρold)/dt + ∇·J = 0 exactly. The uniform
// part of J is left unchanged.
func (s *Solver) CorrectCurrent(f *solver.Fields, dt float64) error {
	if err := s.checkFields(f); err != nil {
		return err
	}
	if err := s.needRho(f, "current correction"); err != nil {
		return err
	}
	g := s.grid
	var j [3][]complex128
	for c := 0; c < 3; c++ {
		j[c] = g.forward(f.J[c], false)
	}
	rho := g.forward(f.Rho, false)
	rhoOld := g.forward(f.RhoOld, false)
	I := complex(0, 1)
	g.each(func(m int, kv [3]float64) {
		k2 := kv[0]*kv[0] + kv[1]*kv[1] + kv[2]*kv[2]
		if k2 == 0 {
			return
		}
		jm := [3]complex128{j[0][m], j[1][m], j[2][m]}
		r := (dot(kv, jm) - I*(rho[m]-rhoOld[m])/complex(dt, 0)) / complex(k2, 0)
		for a := 0; a < 3; a++ {
			j[a][m] -= complex(kv[a], 0) * r
		}
	})
	for c := 0; c < 3; c++ {
		g.backward(j[c], f.J[c], f.Geom)
	}
	return nil
}

// VayDeposition replaces the nodal D quantities that Vay deposition
// wrote into f.J along active axes with the current they imply,
// J_a = i D_a / k_a. Components along inactive axes already hold the
// current and are left unchanged.
func (s *Solver) VayDeposition(f *solver.Fields) error {
	if err := s.checkFields(f); err != nil {
		return err
	}
	g := s.grid
	I := complex(0, 1)
	for a := 0; a < 3; a++ {
		if !s.geom.Dim.Active(a) {
			continue
		}
		d := g.forward(f.J[a], true)
		g.each(func(m int, kv [3]float64) {
			if kv[a] == 0 {
				d[m] = 0
				return
			}
			d[m] = I * d[m] / complex(kv[a], 0)
		})
		g.backward(d, f.J[a], f.Geom)
	}
	return nil
}

func cross(k [3]float64, v [3]complex128) [3]complex128 {
	kx, ky, kz := complex(k[0], 0), complex(k[1], 0), complex(k[2], 0)
	return [3]complex128{ky*v[2] - kz*v[1], kz*v[0] - kx*v[2], kx*v[1] - ky*v[0]}
}

func dot(k [3]float64, v [3]complex128) complex128 {
	return complex(k[0], 0)*v[0] + complex(k[1], 0)*v[1] + complex(k[2], 0)*v[2]
}
