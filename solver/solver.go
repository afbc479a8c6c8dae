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

// Package solver defines the contract shared by the field solvers.
package solver

import (
	"fmt"

	"github.com/spatialmodel/picamr/mesh"
)

// Fields holds the mesh fields of one level that a solver reads and
// updates. Rho, RhoOld, EAvg and BAvg are nil when the level does not
// carry them.
type Fields struct {
	Level int
	Geom  *mesh.Geometry

	E, B, J     [3]*mesh.Field
	Rho, RhoOld *mesh.Field
	EAvg, BAvg  [3]*mesh.Field
}

// Check returns a configuration error if any present field lacks the
// guard cells a solver needs.
func (f *Fields) Check(required mesh.IntVect) error {
	for c := 0; c < 3; c++ {
		for _, fld := range []*mesh.Field{f.E[c], f.B[c], f.J[c]} {
			if fld == nil {
				return fmt.Errorf("solver: level %d is missing a field component", f.Level)
			}
			if err := mesh.CheckGuardCells(fld, required, f.Level); err != nil {
				return err
			}
		}
	}
	return nil
}

// Solver advances E and B on one level.
type Solver interface {
	Name() string

	// BuildCoefficients prepares the solver for steps of length dt.
	BuildCoefficients(dt float64) error

	// AdvanceFields advances f.E and f.B by dt using f.J, and f.Rho and
	// f.RhoOld where the solver uses charge density. Coefficients are
	// rebuilt first if dt differs from the last build.
	AdvanceFields(f *Fields, dt float64) error

	// GuardCellsRequired returns the guard cell width the update stencil
	// reads.
	GuardCellsRequired() mesh.IntVect

	State() State
}

// CurrentCorrector is implemented by solvers that can project the
// deposited current so that it satisfies the continuity equation with
// the deposited charge exactly.
type CurrentCorrector interface {
	CorrectCurrent(f *Fields, dt float64) error
}

// VayDepositor is implemented by solvers that can turn the D quantities
// written by Vay deposition into a current.
type VayDepositor interface {
	VayDeposition(f *Fields) error
}

// TimeAverager is implemented by solvers that can write fields averaged
// over the step into Fields.EAvg and Fields.BAvg.
type TimeAverager interface {
	TimeAveraging() bool
}

// State is the coefficient lifecycle state of a solver.
type State int

// Solver lifecycle states.
const (
	Uninitialized State = iota
	CoefficientsBuilt
	Advancing
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case CoefficientsBuilt:
		return "CoefficientsBuilt"
	case Advancing:
		return "Advancing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Lifecycle tracks the coefficient state of a solver. It is embedded by
// solver implementations.
type Lifecycle struct {
	state State
	dt    float64
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State { return l.state }

// Built records that coefficients for dt exist.
func (l *Lifecycle) Built(dt float64) {
	l.state = CoefficientsBuilt
	l.dt = dt
}

// Stale reports whether coefficients must be built before a step of dt.
func (l *Lifecycle) Stale(dt float64) bool {
	return l.state == Uninitialized || l.dt != dt
}

// Advanced records that a step has been taken.
func (l *Lifecycle) Advanced() { l.state = Advancing }

// Timestep returns the step length the coefficients were built for.
func (l *Lifecycle) Timestep() float64 { return l.dt }
