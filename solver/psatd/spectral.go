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

package psatd

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/solver/fdtd"
)

// spectralGrid describes the Fourier modes of a periodic level.
type spectralGrid struct {
	dim mesh.Dimensionality
	n   mesh.IntVect // points per axis, 1 on inactive axes

	// kmod[a][i] is the wavenumber of index i along a as seen by the
	// finite-difference stencil of the configured order. It is zero at
	// the Nyquist index of even-sized axes.
	kmod [3][]float64

	// shift[a][i] is exp(-i k dx/2), which moves data stored at cell
	// centers onto the nodes. It is one at the Nyquist index.
	shift [3][]complex128
}

func newSpectralGrid(geom *mesh.Geometry, order int) *spectralGrid {
	g := &spectralGrid{dim: geom.Dim, n: geom.Domain.Size()}
	dx := geom.CellSize()
	var w []float64
	if order > 0 {
		w = fdtd.StencilCoefficients(order)
	}
	for a := 0; a < 3; a++ {
		n := g.n[a]
		g.kmod[a] = make([]float64, n)
		g.shift[a] = make([]complex128, n)
		for i := 0; i < n; i++ {
			g.shift[a][i] = 1
			m := i
			if i > n/2 {
				m = i - n
			}
			if !geom.Dim.Active(a) || (n%2 == 0 && i == n/2) {
				continue
			}
			k := 2 * math.Pi * float64(m) / (float64(n) * dx[a])
			g.shift[a][i] = cmplx.Exp(complex(0, -k*dx[a]/2))
			if w == nil {
				g.kmod[a][i] = k
				continue
			}
			var km float64
			for j, c := range w {
				km += c * math.Sin(float64(2*j+1)*k*dx[a]/2)
			}
			g.kmod[a][i] = 2 * km / dx[a]
		}
	}
	return g
}

func (g *spectralGrid) size() int { return g.n[0] * g.n[1] * g.n[2] }

func (g *spectralGrid) index(p mesh.IntVect) int {
	return (p[0]*g.n[1]+p[1])*g.n[2] + p[2]
}

// each calls f with the flat index and the modified wave vector of every
// mode.
func (g *spectralGrid) each(f func(m int, k [3]float64)) {
	for i := 0; i < g.n[0]; i++ {
		for j := 0; j < g.n[1]; j++ {
			for l := 0; l < g.n[2]; l++ {
				f(g.index(mesh.IntVect{i, j, l}), [3]float64{g.kmod[0][i], g.kmod[1][j], g.kmod[2][l]})
			}
		}
	}
}

// forward returns the spectrum of component 0 of fld, referred to the
// nodes. With asNodal set, the stored values are taken to sit on the
// nodes whatever the index type of fld.
func (g *spectralGrid) forward(fld *mesh.Field, asNodal bool) []complex128 {
	data := make([]complex128, g.size())
	for i := 0; i < fld.NumFabs(); i++ {
		fab := fld.Fab(i)
		fld.ValidBox(i).Loop(func(p mesh.IntVect) {
			data[g.index(g.wrap(p))] = complex(fab.Get(p, 0), 0)
		})
	}
	g.transform(data, fft.FFT)
	if !asNodal {
		g.applyShift(data, fld.Type, false)
	}
	return data
}

// backward writes the inverse transform of data into the valid points
// of component 0 of fld and fills its guard cells.
func (g *spectralGrid) backward(data []complex128, fld *mesh.Field, geom *mesh.Geometry) {
	g.applyShift(data, fld.Type, true)
	g.transform(data, fft.IFFT)
	for i := 0; i < fld.NumFabs(); i++ {
		fab := fld.Fab(i)
		fld.ValidBox(i).Loop(func(p mesh.IntVect) {
			fab.Set(p, 0, real(data[g.index(g.wrap(p))]))
		})
	}
	fld.FillBoundary(geom)
}

func (g *spectralGrid) wrap(p mesh.IntVect) mesh.IntVect {
	for a := 0; a < 3; a++ {
		p[a] = ((p[a] % g.n[a]) + g.n[a]) % g.n[a]
	}
	return p
}

// applyShift multiplies data by the staggering shift of every active
// cell-centered axis of t, or by its inverse.
func (g *spectralGrid) applyShift(data []complex128, t mesh.IndexType, inverse bool) {
	for a := 0; a < 3; a++ {
		if t[a] == 1 || !g.dim.Active(a) {
			continue
		}
		for i := 0; i < g.n[0]; i++ {
			for j := 0; j < g.n[1]; j++ {
				for l := 0; l < g.n[2]; l++ {
					ix := [3]int{i, j, l}
					s := g.shift[a][ix[a]]
					if inverse {
						s = cmplx.Conj(s)
					}
					data[g.index(mesh.IntVect{i, j, l})] *= s
				}
			}
		}
	}
}

// transform applies the one-dimensional transform f along every active
// axis.
func (g *spectralGrid) transform(data []complex128, f func([]complex128) []complex128) {
	for a := 0; a < 3; a++ {
		if !g.dim.Active(a) || g.n[a] < 2 {
			continue
		}
		line := make([]complex128, g.n[a])
		b, c := (a+1)%3, (a+2)%3
		for i := 0; i < g.n[b]; i++ {
			for j := 0; j < g.n[c]; j++ {
				var p mesh.IntVect
				p[b], p[c] = i, j
				for k := range line {
					p[a] = k
					line[k] = data[g.index(p)]
				}
				out := f(line)
				for k := range out {
					p[a] = k
					data[g.index(p)] = out[k]
				}
			}
		}
	}
}
