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

	"github.com/spatialmodel/picamr/mesh"
)

// Regrid moves level lev onto the cell-centered box array ba owned
// according to dm. ba must cover exactly the cells of the current
// layout. Every field of the level, its particles and its solver are
// rebuilt on the new layout without loss of data. Regrid may only be
// called between complete steps.
func (s *Simulation) Regrid(lev int, ba mesh.BoxArray, dm mesh.DistributionMapping) error {
	if lev < 0 || lev >= len(s.Levels) {
		return fmt.Errorf("picamr.Regrid: level %d does not exist", lev)
	}
	l := s.Levels[lev]
	if l.phase != Idle {
		return &mesh.ConfigError{Invariant: "regridding happens between complete steps", Level: lev,
			Detail: fmt.Sprintf("level is %v", l.phase)}
	}
	if len(dm) != len(ba) {
		return fmt.Errorf("picamr.Regrid: %d boxes but %d owners", len(ba), len(dm))
	}
	if ba.Type() != mesh.CellType {
		return fmt.Errorf("picamr.Regrid: box array must be cell-centered, is %v", ba.Type())
	}
	if ba.NumPts() != l.BA.NumPts() {
		return &mesh.ConfigError{Invariant: "a new decomposition must cover the same cells", Level: lev,
			Detail: fmt.Sprintf("%d cells, have %d", ba.NumPts(), l.BA.NumPts())}
	}
	for _, b := range ba {
		var missing bool
		b.Loop(func(p mesh.IntVect) {
			if _, ok := l.BA.Find(p); !ok {
				missing = true
			}
		})
		if missing {
			return &mesh.ConfigError{Invariant: "a new decomposition must cover the same cells", Level: lev,
				Detail: fmt.Sprintf("box %v leaves the current layout", b)}
		}
	}
	if lev > 0 && !ba.Coarsenable(l.Ratio) {
		return &mesh.ConfigError{Invariant: "fine boxes must be coarsenable by the refinement ratio", Level: lev,
			Detail: fmt.Sprintf("ratio %v", l.Ratio)}
	}

	for _, k := range s.Arena.Keys() {
		if k.Level != lev {
			continue
		}
		old := s.Arena.Get(k.Level, k.Q, k.Comp)
		nf := mesh.NewField(old.Name, ba.Convert(old.Type), dm, old.NComp, old.NGrow)
		// Guard values first, then valid values so that owners win.
		if err := nf.ParallelCopy(old, 0, 0, old.NComp, old.NGrow, old.NGrow, l.Geom, mesh.Overwrite); err != nil {
			return fmt.Errorf("picamr.Regrid: %v", err)
		}
		if err := nf.ParallelCopy(old, 0, 0, old.NComp, mesh.IntVect{}, old.NGrow, l.Geom, mesh.Overwrite); err != nil {
			return fmt.Errorf("picamr.Regrid: %v", err)
		}
		s.Arena.Set(k, nf)
	}
	l.BA, l.DM = ba, dm

	for _, c := range s.Species {
		if err := c.Define(lev, l.Geom, ba, dm); err != nil {
			return fmt.Errorf("picamr.Regrid: %v", err)
		}
	}
	if lev < len(s.Solvers) && s.Solvers[lev] != nil {
		sv, err := s.newSolver(l)
		if err != nil {
			return err
		}
		if err := sv.BuildCoefficients(s.solveDt(l)); err != nil {
			return fmt.Errorf("picamr.Regrid: %v", err)
		}
		s.Solvers[lev] = sv
	}
	s.Log.WithField("level", lev).Infof("regridded onto %d boxes", len(ba))
	return nil
}
