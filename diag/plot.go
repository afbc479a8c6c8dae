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

package diag

import (
	"fmt"
	"io"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/spatialmodel/picamr/mesh"
)

// slice is a plane of a cell-centered array, normal to one axis.
type slice struct {
	data       *sparse.DenseArray
	geom       *mesh.Geometry
	axis       int
	index      int
	cols, rows int // in-plane axes
}

func (s slice) Dims() (c, r int) {
	return s.data.Shape[s.cols], s.data.Shape[s.rows]
}

func (s slice) Z(c, r int) float64 {
	var idx [3]int
	idx[s.axis] = s.index
	idx[s.cols] = c
	idx[s.rows] = r
	return s.data.Get(idx[:]...)
}

func (s slice) X(c int) float64 { return s.center(s.cols, c) }
func (s slice) Y(r int) float64 { return s.center(s.rows, r) }

func (s slice) center(a, i int) float64 {
	dx := s.geom.CellSize()
	return s.geom.ProbLo[a] + (float64(i)+0.5)*dx[a]
}

// PlotSlice writes a PNG heat map of component comp of f on the plane of
// cells normal to axis at the given cell index.
func PlotSlice(w io.Writer, f *mesh.Field, comp int, geom *mesh.Geometry, axis, index int) error {
	if axis < 0 || axis > 2 {
		return fmt.Errorf("diag.PlotSlice: invalid axis %d", axis)
	}
	n := geom.Domain.Size()
	if index < 0 || index >= n[axis] {
		return fmt.Errorf("diag.PlotSlice: index %d outside of [0, %d)", index, n[axis])
	}
	data, err := CellCentered(f, comp, geom)
	if err != nil {
		return fmt.Errorf("diag.PlotSlice: %v", err)
	}
	s := slice{data: data, geom: geom, axis: axis, index: index, cols: (axis + 1) % 3, rows: (axis + 2) % 3}
	if s.cols > s.rows {
		s.cols, s.rows = s.rows, s.cols
	}

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("diag.PlotSlice: %v", err)
	}
	p.Title.Text = fmt.Sprintf("%s[%d], %c = %d", f.Name, comp, "xyz"[axis], index)
	p.X.Label.Text = fmt.Sprintf("%c [m]", "xyz"[s.cols])
	p.Y.Label.Text = fmt.Sprintf("%c [m]", "xyz"[s.rows])

	h := plotter.NewHeatMap(s, palette.Heat(12, 1))
	if h.Min == h.Max {
		// Zero-width color scale.
		h.Min--
		h.Max++
	}
	p.Add(h)

	wt, err := p.WriterTo(5*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("diag.PlotSlice: %v", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("diag.PlotSlice: %v", err)
	}
	return nil
}
