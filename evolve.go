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

	"github.com/spatialmodel/picamr/coarsen"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/solver"
)

// Ordering invariants checked by the level phase machine.
const (
	orderDeposit = "deposition starts from a completed step"
	orderSources = "sources are coarsened after deposition"
	orderSolve   = "source coarsening precedes field solve"
	orderSync    = "fine fields are synchronized after the field solve"
)

// Evolve returns a function that advances every level by one level-0
// timestep. Finer levels are advanced recursively within the step of
// their parent.
func Evolve() DomainManipulator {
	return func(s *Simulation) error {
		l0 := s.Levels[0]
		var err error
		if s.Config.MultiJ > 1 {
			err = s.advanceMultiJ(l0)
		} else {
			err = s.advanceLevel(0)
		}
		if err != nil {
			return err
		}
		for _, c := range s.Species {
			if err := c.Redistribute(); err != nil {
				return fmt.Errorf("picamr.Evolve: %v", err)
			}
		}
		s.Time = l0.Time
		s.Step = l0.Step
		return nil
	}
}

// advanceLevel runs one timestep of level lev: push and deposit, advance
// the finer levels and restrict their sources, solve, and synchronize
// the finer levels with the new fields.
func (s *Simulation) advanceLevel(lev int) error {
	l := s.Levels[lev]
	if err := s.pushAndDeposit(l); err != nil {
		return err
	}
	if err := s.advanceFiner(l); err != nil {
		return err
	}
	if err := s.solve(l, l.Dt); err != nil {
		return err
	}
	if err := s.syncFiner(l); err != nil {
		return err
	}
	l.Time += l.Dt
	l.Step++
	return nil
}

// pushAndDeposit moves the particles of level l over its timestep,
// deposits their charge and current and applies the particle boundary
// conditions.
func (s *Simulation) pushAndDeposit(l *Level) error {
	if err := l.advance(Idle, Deposited, orderDeposit); err != nil {
		return err
	}
	fs := s.fieldSet(l.Index)
	for _, c := range s.Species {
		if err := c.PushPX(l.Index, fs, l.Dt); err != nil {
			return fmt.Errorf("picamr: level %d: pushing %s: %v", l.Index, c.Name, err)
		}
	}
	s.zeroSources(l, true)
	if err := s.deposit(l, 0, 1, l.Dt, true); err != nil {
		return err
	}
	return s.applyBoundaries(l)
}

func (s *Simulation) zeroSources(l *Level, withOld bool) {
	for _, f := range s.Arena.Vector(l.Index, Current) {
		f.SetVal(0)
	}
	s.Arena.Get(l.Index, Charge, 0).SetVal(0)
	if withOld {
		s.Arena.Get(l.Index, ChargeOld, 0).SetVal(0)
	}
}

// deposit adds the current of every species for motion between
// fractions f0 and f1 of the last push, spanning dt, and the charge
// density at f1 (and at f0 into the old charge if withOld is set), then
// merges the per-box buffers.
func (s *Simulation) deposit(l *Level, f0, f1, dt float64, withOld bool) error {
	j := s.Arena.Vector(l.Index, Current)
	rho := s.Arena.Get(l.Index, Charge, 0)
	rhoOld := s.Arena.Get(l.Index, ChargeOld, 0)
	for _, c := range s.Species {
		if withOld {
			if err := c.DepositCharge(l.Index, rhoOld, f0); err != nil {
				return err
			}
		}
		if err := c.DepositCharge(l.Index, rho, f1); err != nil {
			return err
		}
		if err := c.DepositCurrent(l.Index, j, dt, s.Config.Deposition, f0, f1); err != nil {
			return err
		}
	}
	for _, f := range j {
		f.SumBoundary(l.Geom)
	}
	rho.SumBoundary(l.Geom)
	if withOld {
		rhoOld.SumBoundary(l.Geom)
	}
	return nil
}

func (s *Simulation) applyBoundaries(l *Level) error {
	for _, c := range s.Species {
		if _, err := c.ApplyBoundaryConditions(l.Index, s.Config.ParticleBoundaries); err != nil {
			return fmt.Errorf("picamr: level %d: %v", l.Index, err)
		}
		if err := c.RedistributeLevel(l.Index); err != nil {
			return fmt.Errorf("picamr: level %d: %v", l.Index, err)
		}
	}
	return nil
}

// advanceFiner advances the level above l through the subcycles of one
// step of l and restricts its sources onto l. The fine current is
// averaged over the subcycles; the fine charge at the start of the step
// is restricted after the first subcycle and the charge at the end after
// the last. Deposits in fine guard cells outside the patch are restricted
// too.
func (s *Simulation) advanceFiner(l *Level) error {
	if l.Index == s.finest() {
		return l.advance(Deposited, SourcesCoarsened, orderSources)
	}
	fine := s.Levels[l.Index+1]
	a := s.Arena
	nsub := 1
	if s.Config.Subcycling {
		nsub = fine.Ratio.Max()
	}
	jf := a.Vector(fine.Index, Current)
	avg := a.Vector(fine.Index, CurrentAverage)
	for _, f := range avg {
		f.SetVal(0)
	}
	for k := 0; k < nsub; k++ {
		if err := s.advanceLevel(fine.Index); err != nil {
			return err
		}
		for c := range avg {
			if err := avg[c].Saxpy(1/float64(nsub), jf[c], 0, 0, 1, fine.NGrow); err != nil {
				return err
			}
		}
		if k == 0 {
			if err := coarsen.Restrict(a.Get(l.Index, ChargeOld, 0), a.Get(fine.Index, ChargeOld, 0), 0, 0, 1, fine.Ratio, fine.Geom, l.Geom, l.Index); err != nil {
				return err
			}
		}
	}
	if err := coarsen.Restrict(a.Get(l.Index, Charge, 0), a.Get(fine.Index, Charge, 0), 0, 0, 1, fine.Ratio, fine.Geom, l.Geom, l.Index); err != nil {
		return err
	}
	j := a.Vector(l.Index, Current)
	for c := range j {
		if err := coarsen.Restrict(j[c], avg[c], 0, 0, 1, fine.Ratio, fine.Geom, l.Geom, l.Index); err != nil {
			return err
		}
		j[c].FillBoundary(l.Geom)
	}
	a.Get(l.Index, Charge, 0).FillBoundary(l.Geom)
	a.Get(l.Index, ChargeOld, 0).FillBoundary(l.Geom)
	return l.advance(Deposited, SourcesCoarsened, orderSources)
}

// solve advances the fields of level l by dt. The sources of l must have
// been restricted from every finer level.
func (s *Simulation) solve(l *Level, dt float64) error {
	if err := l.advance(SourcesCoarsened, Solved, orderSolve); err != nil {
		return err
	}
	sv := s.Solvers[l.Index]
	f := s.Fields(l.Index)
	switch {
	case s.Config.Deposition == particles.Vay:
		vd, ok := sv.(solver.VayDepositor)
		if !ok {
			return &mesh.ConfigError{Invariant: "Vay deposition needs a solver that converts D to J", Field: "J", Level: l.Index,
				Detail: sv.Name()}
		}
		if err := vd.VayDeposition(f); err != nil {
			return err
		}
	case s.Config.CurrentCorrection:
		cc, ok := sv.(solver.CurrentCorrector)
		if !ok {
			return &mesh.ConfigError{Invariant: "current correction needs a solver that supports it", Field: "J", Level: l.Index,
				Detail: sv.Name()}
		}
		if err := cc.CorrectCurrent(f, dt); err != nil {
			return err
		}
	}
	if err := sv.AdvanceFields(f, dt); err != nil {
		return fmt.Errorf("picamr: level %d: %v", l.Index, err)
	}
	return nil
}

// syncFiner overwrites the fields of l where the next finer level covers
// it and interpolates the new fields of l into the guard cells of the
// finer level.
func (s *Simulation) syncFiner(l *Level) error {
	if err := l.advance(Solved, Idle, orderSync); err != nil {
		return err
	}
	if l.Index == s.finest() {
		return nil
	}
	fine := s.Levels[l.Index+1]
	for _, q := range []Quantity{EField, BField} {
		crse := s.Arena.Vector(l.Index, q)
		fv := s.Arena.Vector(fine.Index, q)
		for c := range crse {
			if err := coarsen.Coarsen(crse[c], fv[c], 0, 0, 1, mesh.IntVect{}, fine.Ratio, coarsen.AtLevel(l.Index)); err != nil {
				return err
			}
			crse[c].FillBoundary(l.Geom)
			if err := coarsen.FillFineGuards(fv[c], crse[c], fine.Ratio, fine.Geom, l.Geom); err != nil {
				return err
			}
		}
	}
	return nil
}

// advanceMultiJ advances level 0 by one step with a single particle
// push and MultiJ current depositions, each followed by a field advance
// over its share of the step.
func (s *Simulation) advanceMultiJ(l *Level) error {
	if l.phase != Idle {
		return &mesh.ConfigError{Invariant: orderDeposit, Level: l.Index,
			Detail: fmt.Sprintf("level is %v", l.phase)}
	}
	m := s.Config.MultiJ
	fs := s.fieldSet(l.Index)
	for _, c := range s.Species {
		if err := c.PushPX(l.Index, fs, l.Dt); err != nil {
			return fmt.Errorf("picamr: level %d: pushing %s: %v", l.Index, c.Name, err)
		}
	}
	sdt := l.Dt / float64(m)
	rho := s.Arena.Get(l.Index, Charge, 0)
	rhoOld := s.Arena.Get(l.Index, ChargeOld, 0)
	for k := 0; k < m; k++ {
		if err := l.advance(Idle, Deposited, orderDeposit); err != nil {
			return err
		}
		s.zeroSources(l, k == 0)
		if err := s.deposit(l, float64(k)/float64(m), float64(k+1)/float64(m), sdt, k == 0); err != nil {
			return err
		}
		if err := l.advance(Deposited, SourcesCoarsened, orderSources); err != nil {
			return err
		}
		if err := s.solve(l, sdt); err != nil {
			return err
		}
		if err := l.advance(Solved, Idle, orderSync); err != nil {
			return err
		}
		if err := rhoOld.Copy(rho, 0, 0, 1, l.NGrow); err != nil {
			return err
		}
	}
	if err := s.applyBoundaries(l); err != nil {
		return err
	}
	l.Time += l.Dt
	l.Step++
	return nil
}

// solveDt returns the timestep the solver of level l advances by.
func (s *Simulation) solveDt(l *Level) float64 {
	if s.Config.MultiJ > 1 {
		return l.Dt / float64(s.Config.MultiJ)
	}
	return l.Dt
}
