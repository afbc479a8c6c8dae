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
	"math"

	"github.com/ctessum/unit"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
)

// lightCrossingTime returns cfl times the time light takes to cross a
// cell of geometry g along its diagonal, the FDTD stability limit.
func lightCrossingTime(g *mesh.Geometry, cfl float64) (float64, error) {
	dx := g.CellSize()
	var sum float64
	for a := 0; a < 3; a++ {
		if g.Dim.Active(a) {
			sum += 1 / (dx[a] * dx[a])
		}
	}
	length := unit.New(1/math.Sqrt(sum), unit.Meter)
	dt := unit.Div(length, unit.New(phys.C, unit.MeterPerSecond))
	dt.Mul(unit.New(cfl, unit.Dimless))
	if err := dt.Check(unit.Second); err != nil {
		return 0, fmt.Errorf("picamr: timestep: %v", err)
	}
	return dt.Value(), nil
}

// SetTimestepCFL returns a function that sets the timestep of every
// level from Config.Dt or, if it is not set, from Config.CFL. With
// subcycling each level's timestep is its parent's divided by the
// largest refinement ratio, and level 0 takes the largest timestep for
// which every level satisfies the CFL condition. Without subcycling
// every level takes the finest level's timestep.
func SetTimestepCFL() DomainManipulator {
	return func(s *Simulation) error {
		cfg := s.Config
		if len(s.Levels) == 0 {
			return fmt.Errorf("picamr: SetTimestepCFL called before BuildLevels")
		}
		r := 1.
		if len(s.Levels) > 1 && cfg.Subcycling {
			r = float64(cfg.RefineRatio.Max())
		}
		dt0 := cfg.Dt
		if dt0 <= 0 {
			dt0 = math.Inf(1)
			for _, l := range s.Levels {
				dt, err := lightCrossingTime(l.Geom, cfg.CFL)
				if err != nil {
					return err
				}
				dt0 = math.Min(dt0, dt*math.Pow(r, float64(l.Index)))
			}
		}
		for _, l := range s.Levels {
			l.Dt = dt0 / math.Pow(r, float64(l.Index))
		}
		return nil
	}
}
