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

// Package coarsen transfers field data between refinement levels while
// accounting for the staggering of each component.
package coarsen

import (
	"fmt"

	"github.com/spatialmodel/picamr/mesh"
)

// Mode selects the restriction stencil.
type Mode int

const (
	// Sample averages the one or two source points nearest each
	// destination point. It allows the destination to have a different
	// staggering than the source and is used for field synchronization
	// and output.
	Sample Mode = iota
	// Average applies the full-weighting stencil (equal weights along
	// cell-centered axes, tent weights along nodal axes), which preserves
	// the integral of a source density. Source and destination must have
	// the same staggering.
	Average
)

func (m Mode) String() string {
	switch m {
	case Sample:
		return "sample"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

type options struct {
	mode  Mode
	add   bool
	geom  *mesh.Geometry
	level int
}

// An Option configures Coarsen.
type Option func(*options)

// WithMode sets the restriction stencil. The default is Sample.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// Accumulate adds the coarsened values to the destination instead of
// overwriting it, so that contributions from several fine patches
// combine. geom is the destination geometry and is used to count shared
// and periodic points once.
func Accumulate(geom *mesh.Geometry) Option {
	return func(o *options) {
		o.add = true
		o.geom = geom
	}
}

// AtLevel records the destination level for error messages.
func AtLevel(lev int) Option {
	return func(o *options) { o.level = lev }
}

// Coarsen fills components [dcomp, dcomp+ncomp) of dst from components
// [scomp, scomp+ncomp) of src, which is finer by crse along each axis.
// ngrow destination guard cells are filled as well, which is only
// supported when crse is 1 along every axis. When the source, converted
// to the destination staggering and coarsened, has the same boxes and
// owners as dst the result is computed in place; otherwise it is computed
// on a temporary with the source layout and copied into dst.
func Coarsen(dst, src *mesh.Field, scomp, dcomp, ncomp int, ngrow, crse mesh.IntVect, opts ...Option) error {
	o := options{level: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if err := check(dst, src, ngrow, crse, o); err != nil {
		return err
	}
	ba := src.BA.Convert(dst.Type).Coarsen(crse)
	if ba.Equal(dst.BA) && src.DM.Equal(dst.DM) {
		loop(dst, src, scomp, dcomp, ncomp, ngrow, crse, o.mode, o.add)
		return nil
	}
	tmp := mesh.NewField(dst.Name+"_crse", ba, src.DM, ncomp, ngrow)
	loop(tmp, src, scomp, 0, ncomp, ngrow, crse, o.mode, false)
	op := mesh.Overwrite
	if o.add {
		op = mesh.Add
	}
	if err := dst.ParallelCopy(tmp, 0, dcomp, ncomp, ngrow, ngrow, o.geom, op); err != nil {
		return fmt.Errorf("coarsen: %v", err)
	}
	return nil
}

func check(dst, src *mesh.Field, ngrow, crse mesh.IntVect, o options) error {
	for d := 0; d < 3; d++ {
		if crse[d] < 1 {
			return &mesh.ConfigError{
				Invariant: "coarsening ratio must be at least 1",
				Field:     src.Name,
				Level:     o.level,
				Detail:    fmt.Sprintf("ratio %v", crse),
			}
		}
	}
	if crse != mesh.Uniform(1) && ngrow != (mesh.IntVect{}) {
		return &mesh.ConfigError{
			Invariant: "filling guard cells of the destination while coarsening is not supported",
			Field:     dst.Name,
			Level:     o.level,
			Requested: ngrow,
			Available: mesh.IntVect{},
			HasGuards: true,
			Detail:    fmt.Sprintf("ratio %v", crse),
		}
	}
	if o.add && ngrow != (mesh.IntVect{}) {
		return &mesh.ConfigError{
			Invariant: "accumulating into destination guard cells is not supported",
			Field:     dst.Name,
			Level:     o.level,
		}
	}
	if !dst.NGrow.AllGE(ngrow) {
		return &mesh.ConfigError{
			Invariant: "destination field does not have the requested guard cells",
			Field:     dst.Name,
			Level:     o.level,
			Requested: ngrow,
			Available: dst.NGrow,
			HasGuards: true,
		}
	}
	var need mesh.IntVect
	switch o.mode {
	case Sample:
		for d := 0; d < 3; d++ {
			need[d] = dst.Type[d] - src.Type[d] + ngrow[d]
		}
	case Average:
		if dst.Type != src.Type {
			return &mesh.ConfigError{
				Invariant: "average coarsening requires equal staggering",
				Field:     src.Name,
				Level:     o.level,
				Detail:    fmt.Sprintf("source %v, destination %v", src.Type, dst.Type),
			}
		}
		for d := 0; d < 3; d++ {
			if src.Type[d] == 1 {
				need[d] = crse[d] - 1
			}
		}
	}
	if !src.NGrow.AllGE(need) {
		return &mesh.ConfigError{
			Invariant: "source fine field does not have enough guard cells for this interpolation",
			Field:     src.Name,
			Level:     o.level,
			Requested: need,
			Available: src.NGrow,
			HasGuards: true,
		}
	}
	if !src.BA.Convert(dst.Type).Coarsenable(crse) {
		return &mesh.ConfigError{
			Invariant: "source field converted to the staggering of the destination is not coarsenable",
			Field:     src.Name,
			Level:     o.level,
			Detail:    fmt.Sprintf("ratio %v, destination staggering %v", crse, dst.Type),
		}
	}
	return nil
}

// stencil returns the first source index, the number of points and the
// weights used for destination index i along one axis.
func stencil(mode Mode, i, sf, sc, cr int) (int, []float64) {
	if mode == Average {
		if sf == 0 {
			w := make([]float64, cr)
			for k := range w {
				w[k] = 1 / float64(cr)
			}
			return i * cr, w
		}
		w := make([]float64, 2*cr-1)
		for k := range w {
			d := k - (cr - 1)
			if d < 0 {
				d = -d
			}
			w[k] = float64(cr-d) / float64(cr*cr)
		}
		return i*cr - cr + 1, w
	}
	var start, np int
	if cr == 1 {
		np = 1 + abs(sf-sc)
		start = i - sc*(1-sf)
	} else {
		np = 2 - sf
		start = i*cr + (cr/2)*(1-sc) - (1 - sf)
	}
	w := make([]float64, np)
	for k := range w {
		w[k] = 1 / float64(np)
	}
	return start, w
}

// loop computes dst from src box by box. Box i of dst must be the
// coarsened, converted box i of src.
func loop(dst, src *mesh.Field, scomp, dcomp, ncomp int, ngrow, crse mesh.IntVect, mode Mode, add bool) {
	for i := 0; i < dst.NumFabs(); i++ {
		df, sf := dst.Fab(i), src.Fab(i)
		dst.ValidBox(i).Grow(ngrow).Loop(func(p mesh.IntVect) {
			var lo [3]int
			var w [3][]float64
			for d := 0; d < 3; d++ {
				lo[d], w[d] = stencil(mode, p[d], src.Type[d], dst.Type[d], crse[d])
			}
			for c := 0; c < ncomp; c++ {
				var v float64
				for a, wa := range w[0] {
					for b, wb := range w[1] {
						for e, we := range w[2] {
							q := mesh.IntVect{lo[0] + a, lo[1] + b, lo[2] + e}
							v += wa * wb * we * sf.Get(q, scomp+c)
						}
					}
				}
				if add {
					df.Add(p, dcomp+c, v)
				} else {
					df.Set(p, dcomp+c, v)
				}
			}
		})
	}
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
