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

// Package picamr advances the fields and particles of an adaptive-mesh
// electromagnetic particle-in-cell simulation.
package picamr

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/solver"
)

// Version is the version of picamr.
const Version = "0.1.0"

// DomainManipulator is a function that operates on a simulation.
type DomainManipulator func(s *Simulation) error

// Phase is the progress of a level through one of its timesteps.
type Phase int

// Level phases, in the order a step moves through them.
const (
	Idle Phase = iota
	Deposited
	SourcesCoarsened
	Solved
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Deposited:
		return "deposited"
	case SourcesCoarsened:
		return "sources coarsened"
	case Solved:
		return "solved"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Level holds the layout and clock of one refinement level.
type Level struct {
	Index int
	Geom  *mesh.Geometry
	BA    mesh.BoxArray // cell-centered
	DM    mesh.DistributionMapping

	// Ratio is the refinement ratio relative to the next coarser level.
	// It is zero on level 0.
	Ratio mesh.IntVect

	// NGrow is the guard cell width of the level's fields.
	NGrow mesh.IntVect

	Dt   float64 // [s]
	Time float64 // [s]
	Step int

	phase Phase
}

// Phase returns the current phase of the level.
func (l *Level) Phase() Phase { return l.phase }

// advance moves the level from phase from to phase to, or returns an
// ordering error if the level is not in phase from.
func (l *Level) advance(from, to Phase, invariant string) error {
	if l.phase != from {
		return &mesh.ConfigError{
			Invariant: invariant,
			Level:     l.Index,
			Detail:    fmt.Sprintf("level is %v but must be %v to become %v", l.phase, from, to),
		}
	}
	l.phase = to
	return nil
}

// Simulation holds the state of a run and the functions that act on it.
type Simulation struct {
	Config *Config

	Levels  []*Level
	Arena   *FieldArena
	Species []*particles.Container
	Solvers []solver.Solver

	// Time and Step are those of level 0.
	Time float64
	Step int

	// Done is set by a RunFunc to stop the run loop.
	Done bool

	// InitFuncs are run once, in order, by Init.
	InitFuncs []DomainManipulator
	// RunFuncs are run in order on every iteration of Run.
	RunFuncs []DomainManipulator
	// CleanupFuncs are run once by Cleanup.
	CleanupFuncs []DomainManipulator

	Log logrus.FieldLogger
}

// NewSimulation returns a simulation of the validated configuration cfg.
func NewSimulation(cfg *Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulation{
		Config: cfg,
		Arena:  NewFieldArena(),
		Log:    logrus.StandardLogger(),
	}, nil
}

// Init runs the InitFuncs.
func (s *Simulation) Init() error {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	if s.Arena == nil {
		s.Arena = NewFieldArena()
	}
	for _, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Run calls the RunFuncs until one of them sets Done.
func (s *Simulation) Run() error {
	for !s.Done {
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup runs the CleanupFuncs.
func (s *Simulation) Cleanup() error {
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns the solver view of the fields of level lev.
func (s *Simulation) Fields(lev int) *solver.Fields {
	a := s.Arena
	f := &solver.Fields{
		Level:  lev,
		Geom:   s.Levels[lev].Geom,
		E:      a.Vector(lev, EField),
		B:      a.Vector(lev, BField),
		J:      a.Vector(lev, Current),
		Rho:    a.Get(lev, Charge, 0),
		RhoOld: a.Get(lev, ChargeOld, 0),
	}
	if s.Config.TimeAveraging {
		f.EAvg = a.Vector(lev, EAverage)
		f.BAvg = a.Vector(lev, BAverage)
	}
	return f
}

// fieldSet returns the fields particles of level lev gather from. With
// time averaging, particles see the fields averaged over the last step.
func (s *Simulation) fieldSet(lev int) particles.FieldSet {
	if s.Config.TimeAveraging && s.Levels[lev].Step > 0 {
		return particles.FieldSet{E: s.Arena.Vector(lev, EAverage), B: s.Arena.Vector(lev, BAverage)}
	}
	return particles.FieldSet{E: s.Arena.Vector(lev, EField), B: s.Arena.Vector(lev, BField)}
}

// NumParticles returns the number of particles of every species.
func (s *Simulation) NumParticles() int {
	var n int
	for _, c := range s.Species {
		n += c.NumParticles()
	}
	return n
}

func (s *Simulation) finest() int { return len(s.Levels) - 1 }
