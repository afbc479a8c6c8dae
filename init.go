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

package picamr

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spatialmodel/picamr/coarsen"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/solver"
	"github.com/spatialmodel/picamr/solver/fdtd"
	"github.com/spatialmodel/picamr/solver/psatd"
)

// BuildLevels returns a function that creates the level hierarchy and
// an empty particle container per species.
func BuildLevels() DomainManipulator {
	return func(s *Simulation) error {
		cfg := s.Config
		geom, err := mesh.NewGeometry(cfg.Dim, cfg.NCell, cfg.ProbLo, cfg.ProbHi, cfg.Periodic)
		if err != nil {
			return fmt.Errorf("picamr.BuildLevels: %v", err)
		}
		ng := s.guardWidth()
		ba := mesh.NewBoxArray(geom.Domain, cfg.MaxGridSize)
		s.Levels = []*Level{{
			Geom:  geom,
			BA:    ba,
			DM:    mesh.NewDistributionMapping(len(ba), s.numWorkers()),
			NGrow: ng,
		}}
		for l, p := range cfg.Patches {
			geom = geom.Refine(cfg.RefineRatio)
			// Chopping before refining keeps every fine box coarsenable.
			fba := mesh.NewBoxArray(p, cfg.MaxGridSize).Refine(cfg.RefineRatio)
			s.Levels = append(s.Levels, &Level{
				Index: l + 1,
				Geom:  geom,
				BA:    fba,
				DM:    mesh.NewDistributionMapping(len(fba), s.numWorkers()),
				Ratio: cfg.RefineRatio,
				NGrow: ng,
			})
		}
		s.Species = nil
		for _, sc := range cfg.Species {
			c, err := particles.NewContainer(particles.Species{
				Name:         sc.Name,
				Charge:       sc.Charge,
				Mass:         sc.Mass,
				Pusher:       sc.Pusher,
				DoNotPush:    sc.DoNotPush,
				DoNotDeposit: sc.DoNotDeposit,
				DoNotGather:  sc.DoNotGather,
			}, cfg.Dim, cfg.ShapeOrder)
			if err != nil {
				return fmt.Errorf("picamr.BuildLevels: %v", err)
			}
			for _, l := range s.Levels {
				if err := c.Define(l.Index, l.Geom, l.BA, l.DM); err != nil {
					return fmt.Errorf("picamr.BuildLevels: %v", err)
				}
			}
			s.Species = append(s.Species, c)
		}
		return nil
	}
}

func (s *Simulation) numWorkers() int {
	if s.Config.NumWorkers > 0 {
		return s.Config.NumWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// guardWidth returns the guard cells every field carries: enough for
// the particle shape, the FDTD stencil and restriction from a finer
// level.
func (s *Simulation) guardWidth() mesh.IntVect {
	cfg := s.Config
	n := particles.GuardCells(cfg.ShapeOrder)
	if cfg.Solver == FDTD && cfg.FDTDOrder/2 > n {
		n = cfg.FDTDOrder / 2
	}
	if len(cfg.Patches) > 0 && cfg.RefineRatio.Max()-1 > n {
		n = cfg.RefineRatio.Max() - 1
	}
	return cfg.Dim.Guards(n)
}

// AllocateFields returns a function that creates the mesh fields of
// every level in the arena.
func AllocateFields() DomainManipulator {
	return func(s *Simulation) error {
		if len(s.Levels) == 0 {
			return fmt.Errorf("picamr.AllocateFields: called before BuildLevels")
		}
		for _, l := range s.Levels {
			s.Arena.Release(l.Index)
			s.allocateLevel(l)
		}
		return nil
	}
}

func (s *Simulation) allocateLevel(l *Level) {
	a, dim := s.Arena, s.Config.Dim
	qs := []Quantity{EField, BField, Current}
	if s.Config.TimeAveraging {
		qs = append(qs, EAverage, BAverage)
	}
	if l.Index > 0 {
		qs = append(qs, CurrentAverage)
	}
	for _, q := range qs {
		a.AllocVector(l.Index, q, l.BA, l.DM, dim, l.NGrow)
	}
	a.Alloc(l.Index, Charge, 0, l.BA, l.DM, dim, l.NGrow)
	a.Alloc(l.Index, ChargeOld, 0, l.BA, l.DM, dim, l.NGrow)
}

// BuildSolvers returns a function that creates the field solver of every
// level and builds its coefficients for the level timestep. It must run
// after SetTimestepCFL.
func BuildSolvers() DomainManipulator {
	return func(s *Simulation) error {
		s.Solvers = make([]solver.Solver, len(s.Levels))
		for _, l := range s.Levels {
			sv, err := s.newSolver(l)
			if err != nil {
				return err
			}
			if l.Dt > 0 {
				if err := sv.BuildCoefficients(s.solveDt(l)); err != nil {
					return fmt.Errorf("picamr.BuildSolvers: level %d: %v", l.Index, err)
				}
			}
			s.Solvers[l.Index] = sv
		}
		return nil
	}
}

func (s *Simulation) newSolver(l *Level) (solver.Solver, error) {
	cfg := s.Config
	switch cfg.Solver {
	case PSATD:
		return psatd.New(l.Geom, l.BA, psatd.Config{
			Order:         cfg.SpectralOrder,
			UpdateWithRho: cfg.UpdateWithRho,
			TimeAveraging: cfg.TimeAveraging,
		})
	default:
		return fdtd.New(l.Geom, cfg.FDTDOrder)
	}
}

// CheckGuardCells returns a function that verifies that every field has
// the guard cells its solver and the particle shape need.
func CheckGuardCells() DomainManipulator {
	return func(s *Simulation) error {
		pg := s.Config.Dim.Guards(particles.GuardCells(s.Config.ShapeOrder))
		for _, k := range s.Arena.Keys() {
			req := pg
			if k.Level < len(s.Solvers) && s.Solvers[k.Level] != nil {
				sg := s.Solvers[k.Level].GuardCellsRequired()
				for a := 0; a < 3; a++ {
					if sg[a] > req[a] {
						req[a] = sg[a]
					}
				}
			}
			if err := mesh.CheckGuardCells(s.Arena.Get(k.Level, k.Q, k.Comp), req, k.Level); err != nil {
				return err
			}
		}
		return nil
	}
}

// pointPosition returns the physical position of index p of a field
// with staggering t.
func pointPosition(g *mesh.Geometry, t mesh.IndexType, p mesh.IntVect) [3]float64 {
	dx := g.CellSize()
	var x [3]float64
	for a := 0; a < 3; a++ {
		if g.Dim.Active(a) {
			x[a] = g.ProbLo[a] + (float64(p[a])+0.5*float64(1-t[a]))*dx[a]
		}
	}
	return x
}

// InitFieldsFromExpressions returns a function that sets E and B on
// every level from Config.InitE and Config.InitB. Fine level guard cells
// outside the fine boxes are interpolated from the parent level.
func InitFieldsFromExpressions() DomainManipulator {
	return func(s *Simulation) error {
		for _, q := range []Quantity{EField, BField} {
			exprs := s.Config.InitE
			if q == BField {
				exprs = s.Config.InitB
			}
			for c, expr := range exprs {
				prof, err := NewProfile(expr)
				if err != nil {
					return fmt.Errorf("picamr.InitFieldsFromExpressions: %v%c: %v", q, "xyz"[c], err)
				}
				for _, l := range s.Levels {
					fld := s.Arena.Get(l.Index, q, c)
					for i := 0; i < fld.NumFabs(); i++ {
						fab := fld.Fab(i)
						fld.ValidBox(i).Loop(func(p mesh.IntVect) {
							x := pointPosition(l.Geom, fld.Type, p)
							fab.Set(p, 0, prof(x[0], x[1], x[2]))
						})
					}
				}
			}
		}
		return s.syncGuards(EField, BField)
	}
}

// InitExternalFields returns a function that adds the uniform external
// fields Config.ExternalE and Config.ExternalB to E and B on every
// level, guard cells included.
func InitExternalFields() DomainManipulator {
	return func(s *Simulation) error {
		for _, l := range s.Levels {
			for c := 0; c < 3; c++ {
				for q, v := range map[Quantity]float64{EField: s.Config.ExternalE[c], BField: s.Config.ExternalB[c]} {
					if v == 0 {
						continue
					}
					fld := s.Arena.Get(l.Index, q, c)
					for i := 0; i < fld.NumFabs(); i++ {
						data := fld.Fab(i).Component(0)
						for k := range data {
							data[k] += v
						}
					}
				}
			}
		}
		return nil
	}
}

// syncGuards fills the guard cells of the quantities qs on every level,
// interpolating fine guards that lie outside the fine boxes from the
// parent level.
func (s *Simulation) syncGuards(qs ...Quantity) error {
	for _, l := range s.Levels {
		for _, q := range qs {
			for c := 0; c < 3; c++ {
				fld := s.Arena.Get(l.Index, q, c)
				if l.Index == 0 {
					fld.FillBoundary(l.Geom)
					continue
				}
				parent := s.Levels[l.Index-1]
				crse := s.Arena.Get(parent.Index, q, c)
				if err := coarsen.FillFineGuards(fld, crse, l.Ratio, l.Geom, parent.Geom); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// InjectPlasma returns a function that loads every species with a
// density expression onto level 0 and moves the particles to the finest
// level containing them.
func InjectPlasma() DomainManipulator {
	return func(s *Simulation) error {
		for i, sc := range s.Config.Species {
			if sc.Density == "" {
				continue
			}
			prof, err := NewProfile(sc.Density)
			if err != nil {
				return fmt.Errorf("picamr.InjectPlasma: species %s: %v", sc.Name, err)
			}
			c := s.Species[i]
			if err := c.AddPlasma(0, prof, sc.PPC, sc.Momentum); err != nil {
				return fmt.Errorf("picamr.InjectPlasma: species %s: %v", sc.Name, err)
			}
			if err := c.Redistribute(); err != nil {
				return fmt.Errorf("picamr.InjectPlasma: species %s: %v", sc.Name, err)
			}
		}
		return nil
	}
}

// PrintParameters returns a function that writes a summary of the
// simulation layout to w.
func PrintParameters(w io.Writer) DomainManipulator {
	return func(s *Simulation) error {
		cfg := s.Config
		fmt.Fprintf(w, "picamr: %dD, %v solver, %v deposition, shape order %d\n",
			int(cfg.Dim), cfg.Solver, cfg.Deposition, cfg.ShapeOrder)
		for i, l := range s.Levels {
			name := "-"
			if i < len(s.Solvers) && s.Solvers[i] != nil {
				name = s.Solvers[i].Name()
			}
			fmt.Fprintf(w, "level %d: domain %v, %d boxes, %d cells, dx=%v, dt=%.4g s, guards %v, solver %s\n",
				l.Index, l.Geom.Domain, len(l.BA), l.BA.NumPts(), l.Geom.CellSize(), l.Dt, l.NGrow, name)
		}
		for _, c := range s.Species {
			fmt.Fprintf(w, "species %s: q=%.4g C, m=%.4g kg, pusher %v, %d particles\n",
				c.Name, c.Charge, c.Mass, c.Pusher, c.NumParticles())
		}
		return nil
	}
}
