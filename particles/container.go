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

// Package particles holds macro-particle populations and the kernels that
// move them and scatter their charge and current onto the mesh.
package particles

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/phys"
)

// Indices of the real attributes every species carries.
const (
	X = iota
	Y
	Z
	W // weight
	UX
	UY
	UZ
	numFixedReal
)

// Names of the real attributes that hold positions at the start of the
// current push. They are registered by NewContainer.
const (
	XOld = "xold"
	YOld = "yold"
	ZOld = "zold"
)

var fixedRealNames = []string{"x", "y", "z", "w", "ux", "uy", "uz"}

// Registry maps attribute names to column indices. It is the single
// source of truth for the particle layout of a container.
type Registry struct {
	RealNames []string
	IntNames  []string
}

// RealIndex returns the column of the named real attribute.
func (r *Registry) RealIndex(name string) (int, bool) {
	for i, n := range r.RealNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// IntIndex returns the column of the named integer attribute.
func (r *Registry) IntIndex(name string) (int, bool) {
	for i, n := range r.IntNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Tile holds the particles of one box in structure-of-arrays form:
// Real[c][p] is real attribute c of particle p.
type Tile struct {
	Real [][]float64
	Int  [][]int
}

func newTile(nReal, nInt int) *Tile {
	return &Tile{Real: make([][]float64, nReal), Int: make([][]int, nInt)}
}

// Len returns the number of particles in the tile.
func (t *Tile) Len() int { return len(t.Real[X]) }

func (t *Tile) appendFrom(src *Tile, p int) {
	for c := range t.Real {
		t.Real[c] = append(t.Real[c], src.Real[c][p])
	}
	for c := range t.Int {
		t.Int[c] = append(t.Int[c], src.Int[c][p])
	}
}

// filter keeps the particles for which keep returns true.
func (t *Tile) filter(keep func(p int) bool) {
	n := 0
	for p := 0; p < t.Len(); p++ {
		if !keep(p) {
			continue
		}
		for c := range t.Real {
			t.Real[c][n] = t.Real[c][p]
		}
		for c := range t.Int {
			t.Int[c][n] = t.Int[c][p]
		}
		n++
	}
	for c := range t.Real {
		t.Real[c] = t.Real[c][:n]
	}
	for c := range t.Int {
		t.Int[c] = t.Int[c][:n]
	}
}

// Pusher selects the momentum update.
type Pusher int

// Momentum pushers.
const (
	Boris Pusher = iota
	HigueraCary
)

func (p Pusher) String() string {
	switch p {
	case Boris:
		return "boris"
	case HigueraCary:
		return "higuera"
	default:
		return fmt.Sprintf("Pusher(%d)", int(p))
	}
}

// ParsePusher converts a pusher name to a Pusher.
func ParsePusher(s string) (Pusher, error) {
	switch s {
	case "boris", "Boris":
		return Boris, nil
	case "higuera", "Higuera", "higuera-cary", "HigueraCary":
		return HigueraCary, nil
	default:
		return Boris, fmt.Errorf("particles: invalid pusher %q", s)
	}
}

// Species holds the physical parameters of a particle species.
type Species struct {
	Name   string
	Charge float64 // [C]
	Mass   float64 // [kg]
	Pusher Pusher

	DoNotPush    bool
	DoNotDeposit bool
	DoNotGather  bool
}

type levelData struct {
	geom  *mesh.Geometry
	ba    mesh.BoxArray // cell-centered
	dm    mesh.DistributionMapping
	tiles []*Tile
}

// Container holds every particle of one species, partitioned by level
// and by the box containing each particle.
type Container struct {
	Species
	Dim        mesh.Dimensionality
	ShapeOrder int

	reg     Registry
	levels  []*levelData
	escaped *Tile

	xold, yold, zold int
}

// MaxShapeOrder is the highest supported shape function order.
const MaxShapeOrder = maxShape - 1

// NewContainer returns an empty container with shape functions of the
// given order, which must be between 0 and MaxShapeOrder.
func NewContainer(sp Species, dim mesh.Dimensionality, shapeOrder int) (*Container, error) {
	if shapeOrder < 0 || shapeOrder > MaxShapeOrder {
		return nil, mesh.NewConfigError("shape-order", sp.Name,
			"shape order must be between 0 and %d, have %d", MaxShapeOrder, shapeOrder)
	}
	c := &Container{
		Species:    sp,
		Dim:        dim,
		ShapeOrder: shapeOrder,
		reg:        Registry{RealNames: append([]string{}, fixedRealNames...)},
	}
	c.escaped = newTile(len(c.reg.RealNames), 0)
	c.xold = c.AddRealComp(XOld)
	c.yold = c.AddRealComp(YOld)
	c.zold = c.AddRealComp(ZOld)
	return c, nil
}

// Registry returns the attribute registry.
func (c *Container) Registry() Registry { return c.reg }

// AddRealComp registers a real attribute, adding a zeroed column to
// every existing particle, and returns its column index. Registering an
// existing name returns the existing column.
func (c *Container) AddRealComp(name string) int {
	if i, ok := c.reg.RealIndex(name); ok {
		return i
	}
	c.reg.RealNames = append(c.reg.RealNames, name)
	for _, t := range c.allTiles() {
		t.Real = append(t.Real, make([]float64, t.Len()))
	}
	return len(c.reg.RealNames) - 1
}

// AddIntComp registers an integer attribute and returns its column index.
func (c *Container) AddIntComp(name string) int {
	if i, ok := c.reg.IntIndex(name); ok {
		return i
	}
	c.reg.IntNames = append(c.reg.IntNames, name)
	for _, t := range c.allTiles() {
		t.Int = append(t.Int, make([]int, t.Len()))
	}
	return len(c.reg.IntNames) - 1
}

func (c *Container) allTiles() []*Tile {
	ts := []*Tile{c.escaped}
	for _, l := range c.levels {
		ts = append(ts, l.tiles...)
	}
	return ts
}

// Define sets the layout of level lev. Particles already stored at that
// level are re-partitioned onto the new boxes; any that fall outside
// them move to a coarser level.
func (c *Container) Define(lev int, geom *mesh.Geometry, ba mesh.BoxArray, dm mesh.DistributionMapping) error {
	for len(c.levels) <= lev {
		c.levels = append(c.levels, nil)
	}
	var old []*Tile
	if c.levels[lev] != nil {
		old = c.levels[lev].tiles
	}
	l := &levelData{geom: geom, ba: ba, dm: dm, tiles: make([]*Tile, len(ba))}
	for i := range l.tiles {
		l.tiles[i] = newTile(len(c.reg.RealNames), len(c.reg.IntNames))
	}
	c.levels[lev] = l
	for _, t := range old {
		for p := 0; p < t.Len(); p++ {
			if err := c.place(t, p, 0, lev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Release removes level lev and every finer level, moving their
// particles to the coarsest remaining level that contains them.
func (c *Container) Release(lev int) error {
	if lev >= len(c.levels) {
		return nil
	}
	if lev == 0 {
		return fmt.Errorf("particles: cannot release level 0 of %s", c.Name)
	}
	removed := c.levels[lev:]
	c.levels = c.levels[:lev]
	for _, l := range removed {
		if l == nil {
			continue
		}
		for _, t := range l.tiles {
			for p := 0; p < t.Len(); p++ {
				if err := c.place(t, p, 0, lev-1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// NumLevels returns the number of defined levels.
func (c *Container) NumLevels() int { return len(c.levels) }

// Tiles returns the tiles of level lev, one per box.
func (c *Container) Tiles(lev int) []*Tile { return c.levels[lev].tiles }

// NumParticlesAt returns the number of particles at level lev.
func (c *Container) NumParticlesAt(lev int) int {
	n := 0
	for _, t := range c.levels[lev].tiles {
		n += t.Len()
	}
	return n
}

// NumParticles returns the number of particles on all levels.
func (c *Container) NumParticles() int {
	n := 0
	for lev := range c.levels {
		n += c.NumParticlesAt(lev)
	}
	return n
}

// AddNParticles adds particles at level lev. attribs optionally gives
// values for registered runtime attributes.
func (c *Container) AddNParticles(lev int, x, y, z, ux, uy, uz, w []float64, attribs map[string][]float64) error {
	n := len(x)
	for _, s := range [][]float64{y, z, ux, uy, uz, w} {
		if len(s) != n {
			return fmt.Errorf("particles.AddNParticles: attribute arrays of %s have different lengths", c.Name)
		}
	}
	cols := make(map[int][]float64)
	for name, v := range attribs {
		i, ok := c.reg.RealIndex(name)
		if !ok {
			return fmt.Errorf("particles.AddNParticles: %s has no attribute %q", c.Name, name)
		}
		if len(v) != n {
			return fmt.Errorf("particles.AddNParticles: attribute %q has %d values, want %d", name, len(v), n)
		}
		cols[i] = v
	}
	tmp := newTile(len(c.reg.RealNames), len(c.reg.IntNames))
	for p := 0; p < n; p++ {
		for i := range tmp.Real {
			var v float64
			switch i {
			case X, c.xold:
				v = x[p]
			case Y, c.yold:
				v = y[p]
			case Z, c.zold:
				v = z[p]
			case W:
				v = w[p]
			case UX:
				v = ux[p]
			case UY:
				v = uy[p]
			case UZ:
				v = uz[p]
			default:
				if col, ok := cols[i]; ok {
					v = col[p]
				}
			}
			tmp.Real[i] = append(tmp.Real[i], v)
		}
		for i := range tmp.Int {
			tmp.Int[i] = append(tmp.Int[i], 0)
		}
	}
	for p := 0; p < n; p++ {
		if err := c.place(tmp, p, lev, lev); err != nil {
			return err
		}
	}
	return nil
}

// cellIndex returns the cell of level lev that contains position pos.
func (c *Container) cellIndex(lev int, pos [3]float64) mesh.IntVect {
	g := c.levels[lev].geom
	dx := g.CellSize()
	var iv mesh.IntVect
	for a := 0; a < 3; a++ {
		if !c.Dim.Active(a) {
			continue
		}
		i := int(math.Floor((pos[a] - g.ProbLo[a]) / dx[a]))
		// Positions within rounding of the upper boundary belong to the
		// last cell.
		if hi := g.Domain.Hi[a]; i == hi+1 && pos[a] < g.ProbHi[a]+1e-12*dx[a] {
			i = hi
		}
		iv[a] = i
	}
	return iv
}

// place copies particle p of src into the finest level in [minLev,
// maxLev] whose boxes contain it.
func (c *Container) place(src *Tile, p, minLev, maxLev int) error {
	pos := [3]float64{src.Real[X][p], src.Real[Y][p], src.Real[Z][p]}
	for lev := maxLev; lev >= minLev; lev-- {
		l := c.levels[lev]
		if l == nil {
			continue
		}
		if i, ok := l.ba.Find(c.cellIndex(lev, pos)); ok {
			l.tiles[i].appendFrom(src, p)
			return nil
		}
	}
	return fmt.Errorf("particles: %s particle at %v is outside levels %d to %d", c.Name, pos, minLev, maxLev)
}

// forTiles runs f concurrently on the tiles of level lev. Each tile is
// handled by exactly one goroutine.
func (c *Container) forTiles(lev int, f func(i int, t *Tile) error) error {
	tiles := c.levels[lev].tiles
	nprocs := runtime.GOMAXPROCS(0)
	errs := make([]error, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for i := pp; i < len(tiles); i += nprocs {
				if err := f(i, tiles[i]); err != nil {
					errs[pp] = err
					return
				}
			}
		}(pp)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// invGamma returns 1/γ for momentum per unit mass u.
func invGamma(ux, uy, uz float64) float64 {
	return 1 / math.Sqrt(1+(ux*ux+uy*uy+uz*uz)/(phys.C*phys.C))
}

// State is the serializable content of a container.
type State struct {
	Registry Registry
	Levels   [][]*Tile
	Escaped  *Tile
}

// State returns the particle data. The returned tiles are shared with
// the container.
func (c *Container) State() State {
	s := State{Registry: c.reg, Escaped: c.escaped}
	for _, l := range c.levels {
		s.Levels = append(s.Levels, l.tiles)
	}
	return s
}

// Restore replaces the particle data with s. Levels must already be
// defined with the box arrays s was taken on.
func (c *Container) Restore(s State) error {
	if len(s.Levels) > len(c.levels) {
		return fmt.Errorf("particles.Restore: %s has %d levels defined but the state has %d", c.Name, len(c.levels), len(s.Levels))
	}
	c.reg = s.Registry
	for lev, tiles := range s.Levels {
		if len(tiles) != len(c.levels[lev].tiles) {
			return fmt.Errorf("particles.Restore: %s level %d has %d boxes but the state has %d", c.Name, lev, len(c.levels[lev].tiles), len(tiles))
		}
		c.levels[lev].tiles = tiles
	}
	c.escaped = s.Escaped
	c.xold, _ = c.reg.RealIndex(XOld)
	c.yold, _ = c.reg.RealIndex(YOld)
	c.zold, _ = c.reg.RealIndex(ZOld)
	return nil
}
