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
	"strings"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
)

// SolverKind selects the field solver.
type SolverKind int

const (
	// FDTD is the Yee finite-difference solver.
	FDTD SolverKind = iota
	// PSATD is the global spectral solver.
	PSATD
)

func (k SolverKind) String() string {
	switch k {
	case FDTD:
		return "fdtd"
	case PSATD:
		return "psatd"
	default:
		return fmt.Sprintf("SolverKind(%d)", int(k))
	}
}

// ParseSolverKind returns the solver named s.
func ParseSolverKind(s string) (SolverKind, error) {
	switch strings.ToLower(s) {
	case "fdtd", "yee":
		return FDTD, nil
	case "psatd", "spectral":
		return PSATD, nil
	default:
		return FDTD, fmt.Errorf("picamr: invalid field solver %q", s)
	}
}

// SpeciesConfig describes one particle species and how it is loaded.
type SpeciesConfig struct {
	Name   string
	Charge float64 // [C]
	Mass   float64 // [kg]
	Pusher particles.Pusher

	// Density is an expression of x, y and z giving the initial number
	// density [1/m³]. An empty expression loads no particles.
	Density string

	// PPC is the number of particles per cell along each axis.
	PPC mesh.IntVect

	// Momentum is the initial momentum per unit mass, γv [m/s].
	Momentum [3]float64

	DoNotPush, DoNotDeposit, DoNotGather bool
}

// Config holds the parameters of a simulation. A Config is not modified
// after it is validated; every component receives the pieces it needs.
type Config struct {
	Dim    mesh.Dimensionality
	NCell  mesh.IntVect
	ProbLo [3]float64 // [m]
	ProbHi [3]float64 // [m]

	// Periodic selects periodic field boundaries per axis. Particle
	// boundaries must be Periodic on exactly these axes.
	Periodic [3]bool

	// MaxGridSize is the largest box size on level 0.
	MaxGridSize mesh.IntVect

	// NumWorkers is the number of owners boxes are distributed over.
	// Zero means one per CPU.
	NumWorkers int

	// RefineRatio is the refinement ratio between consecutive levels.
	RefineRatio mesh.IntVect

	// Patches[l] is the region of level l, in level-l cell indices, that
	// is refined into level l+1.
	Patches []mesh.Box

	// Subcycling advances finer levels with a timestep divided by the
	// refinement ratio. Without it every level uses the finest timestep.
	Subcycling bool

	Solver SolverKind

	// FDTDOrder is the order of the finite-difference stencil (even).
	FDTDOrder int

	// SpectralOrder is the stencil order whose modified wavenumbers the
	// spectral solver uses; zero or less means exact wavenumbers.
	SpectralOrder     int
	UpdateWithRho     bool
	TimeAveraging     bool
	CurrentCorrection bool

	// MultiJ is the number of current depositions and field advances per
	// step with the spectral solver. Values below 2 disable it.
	MultiJ int

	Deposition particles.Scheme
	ShapeOrder int

	ParticleBoundaries particles.Boundaries

	// CFL sets the timestep as a fraction of the vacuum light-crossing
	// time of the finest cell. Dt, if positive, is used instead.
	CFL float64
	Dt  float64 // [s]

	MaxStep  int
	StopTime float64 // [s]

	Species []SpeciesConfig

	// InitE and InitB are expressions of x, y and z giving the initial
	// field components. Empty expressions are zero.
	InitE, InitB [3]string

	// ExternalE and ExternalB are uniform fields added to the initial
	// fields of every level.
	ExternalE, ExternalB [3]float64
}

// NumLevels returns the number of refinement levels.
func (c *Config) NumLevels() int { return len(c.Patches) + 1 }

// Validate checks c for consistency. Violations of layout and guard cell
// rules are *mesh.ConfigError values.
func (c *Config) Validate() error {
	switch c.Dim {
	case mesh.Dim1, mesh.Dim2, mesh.Dim3:
	default:
		return fmt.Errorf("picamr: invalid dimensionality %d", c.Dim)
	}
	for a := 0; a < 3; a++ {
		if !c.Dim.Active(a) {
			continue
		}
		if c.NCell[a] < 1 {
			return fmt.Errorf("picamr: NCell[%d] = %d but should be >0", a, c.NCell[a])
		}
		if c.ProbHi[a] <= c.ProbLo[a] {
			return fmt.Errorf("picamr: ProbHi[%d] = %g should be greater than ProbLo[%d] = %g", a, c.ProbHi[a], a, c.ProbLo[a])
		}
		if c.MaxGridSize[a] < 1 {
			return fmt.Errorf("picamr: MaxGridSize[%d] = %d but should be >0", a, c.MaxGridSize[a])
		}
		for side := 0; side < 2; side++ {
			isPeriodic := c.ParticleBoundaries[a][side] == particles.Periodic
			if isPeriodic != c.Periodic[a] {
				return mesh.NewConfigError("particle and field periodicity must agree", "", "axis %d side %d has particle boundary %v and field periodicity %v",
					a, side, c.ParticleBoundaries[a][side], c.Periodic[a])
			}
		}
	}
	if c.MaxStep <= 0 && c.StopTime <= 0 {
		return fmt.Errorf("picamr: either MaxStep or StopTime must be positive")
	}
	if c.Dt <= 0 && (c.CFL <= 0) {
		return fmt.Errorf("picamr: either Dt or CFL must be positive")
	}
	if c.ShapeOrder < 0 || c.ShapeOrder > 3 {
		return fmt.Errorf("picamr: shape order %d is not in [0, 3]", c.ShapeOrder)
	}
	if c.Deposition != particles.Direct && c.ShapeOrder < 1 {
		return mesh.NewConfigError("deposition-order", "J", "%v deposition requires a shape order of at least 1", c.Deposition)
	}
	if err := c.validateSolver(); err != nil {
		return err
	}
	if err := c.validateLevels(); err != nil {
		return err
	}
	names := make(map[string]bool)
	for i, sp := range c.Species {
		if sp.Name == "" {
			return fmt.Errorf("picamr: species %d has no name", i)
		}
		if names[sp.Name] {
			return fmt.Errorf("picamr: species %q is declared twice", sp.Name)
		}
		names[sp.Name] = true
		if sp.Mass <= 0 {
			return fmt.Errorf("picamr: species %q has mass %g but should be >0", sp.Name, sp.Mass)
		}
	}
	return nil
}

func (c *Config) validateSolver() error {
	switch c.Solver {
	case FDTD:
		if c.FDTDOrder < 2 || c.FDTDOrder%2 != 0 {
			return mesh.NewConfigError("stencil-order", "E,B", "FDTD order %d must be even and at least 2", c.FDTDOrder)
		}
		if c.Deposition != particles.Esirkepov {
			return mesh.NewConfigError("charge-conserving deposition", "J",
				"the FDTD solver has no current correction and requires Esirkepov deposition, have %v", c.Deposition)
		}
		if c.CurrentCorrection || c.UpdateWithRho || c.TimeAveraging || c.MultiJ > 1 {
			return mesh.NewConfigError("solver capability", "", "current correction, rho update, time averaging and multi-J need the spectral solver")
		}
	case PSATD:
		if c.TimeAveraging && c.UpdateWithRho {
			return mesh.NewConfigError("time-averaging", "Eavg,Bavg",
				"time-averaged fields require the formulation without charge density")
		}
		if c.NumLevels() > 1 {
			return mesh.NewConfigError("spectral solver layout", "", "the spectral solver needs a single periodic level, have %d levels", c.NumLevels())
		}
		for a := 0; a < 3; a++ {
			if c.Dim.Active(a) && !c.Periodic[a] {
				return mesh.NewConfigError("spectral solver layout", "", "axis %d is not periodic", a)
			}
		}
		if c.CurrentCorrection && c.Deposition == particles.Vay {
			return mesh.NewConfigError("current correction", "J", "current correction does not apply to Vay deposition")
		}
	default:
		return fmt.Errorf("picamr: invalid solver %v", c.Solver)
	}
	return nil
}

func (c *Config) validateLevels() error {
	if len(c.Patches) == 0 {
		return nil
	}
	for a := 0; a < 3; a++ {
		want := 1
		if c.Dim.Active(a) {
			want = 2
		}
		if c.RefineRatio[a] < 1 || (c.Dim.Active(a) && c.RefineRatio[a] < want) || (!c.Dim.Active(a) && c.RefineRatio[a] != 1) {
			return mesh.NewConfigError("refinement ratio", "", "ratio %v must be at least 2 on active axes and 1 elsewhere", c.RefineRatio)
		}
	}
	domain := c.domain()
	for l, p := range c.Patches {
		if !p.Ok() || p.Type != mesh.CellType {
			return fmt.Errorf("picamr: patch %d (%v) is not a valid cell-centered box", l, p)
		}
		if !domain.ContainsBox(p) {
			return &mesh.ConfigError{Invariant: "refined patch must lie inside its parent level", Level: l + 1,
				Detail: fmt.Sprintf("patch %v, level %d domain %v", p, l, domain)}
		}
		if l > 0 && !c.Patches[l-1].Refine(c.RefineRatio).ContainsBox(p) {
			return &mesh.ConfigError{Invariant: "refined patch must lie inside its parent level", Level: l + 1,
				Detail: fmt.Sprintf("patch %v, parent patch %v", p, c.Patches[l-1].Refine(c.RefineRatio))}
		}
		domain = domain.Refine(c.RefineRatio)
	}
	return nil
}

func (c *Config) domain() mesh.Box {
	n := c.NCell
	for a := 0; a < 3; a++ {
		if !c.Dim.Active(a) {
			n[a] = 1
		}
	}
	return mesh.NewBox(mesh.IntVect{}, n.Sub(mesh.Uniform(1)), mesh.CellType)
}
