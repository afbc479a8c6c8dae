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
	"time"

	"github.com/sirupsen/logrus"
)

// Log returns a function that logs the progress of the run after each
// step.
func Log() DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()
	return func(s *Simulation) error {
		var dt float64
		if len(s.Levels) > 0 {
			dt = s.Levels[0].Dt
		}
		s.Log.WithFields(logrus.Fields{
			"step":      s.Step,
			"time":      s.Time,
			"dt":        dt,
			"walltime":  time.Since(startTime).Round(time.Millisecond).String(),
			"Δwalltime": time.Since(stepTime).Round(time.Millisecond).String(),
			"particles": s.NumParticles(),
		}).Info("step complete")
		stepTime = time.Now()
		return nil
	}
}

// StopAfter returns a function that sets Done once the run has taken
// maxStep steps or reached stopTime [s]. Non-positive limits are
// ignored.
func StopAfter(maxStep int, stopTime float64) DomainManipulator {
	return func(s *Simulation) error {
		if maxStep > 0 && s.Step >= maxStep {
			s.Done = true
		}
		// Allow for round-off in the accumulated time.
		if stopTime > 0 && len(s.Levels) > 0 && s.Time >= stopTime-1e-6*s.Levels[0].Dt {
			s.Done = true
		}
		return nil
	}
}

// RunPeriodically returns a function that calls f every time the
// simulation time passes a multiple of interval [s], and on the step that
// completes the run if it comes after StopAfter in the RunFuncs. A
// non-positive interval calls f every step.
func RunPeriodically(interval float64, f DomainManipulator) DomainManipulator {
	var next float64
	return func(s *Simulation) error {
		if interval <= 0 {
			return f(s)
		}
		if next == 0 {
			next = interval
		}
		if s.Time < next && !s.Done {
			return nil
		}
		for next <= s.Time {
			next += interval
		}
		return f(s)
	}
}
