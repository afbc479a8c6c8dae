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

package mesh

import (
	"math"
	"testing"
)

func TestBoxCoarsenRefine(t *testing.T) {
	cell := NewBox(IntVect{0, 0, 0}, IntVect{7, 3, 0}, CellType)
	if c := cell.Coarsen(IntVect{2, 2, 1}); c.Lo != (IntVect{}) || c.Hi != (IntVect{3, 1, 0}) {
		t.Errorf("cell coarsen: %v", c)
	}
	if r := cell.Refine(IntVect{2, 2, 1}); r.Hi != (IntVect{15, 7, 0}) {
		t.Errorf("cell refine: %v", r)
	}
	node := cell.Convert(IndexType{1, 1, 0})
	if node.Hi != (IntVect{8, 4, 0}) {
		t.Errorf("convert: %v", node)
	}
	if c := node.Coarsen(IntVect{2, 2, 1}); c.Hi != (IntVect{4, 2, 0}) {
		t.Errorf("nodal coarsen: %v", c)
	}
	if !node.Coarsenable(IntVect{2, 2, 1}) {
		t.Error("nodal box should be coarsenable")
	}
	odd := NewBox(IntVect{1, 0, 0}, IntVect{4, 3, 0}, IndexType{1, 0, 0})
	if odd.Coarsenable(IntVect{2, 1, 1}) {
		t.Error("box starting at an odd node should not be coarsenable")
	}
	small := NewBox(IntVect{}, IntVect{0, 3, 0}, CellType)
	if small.Coarsenable(IntVect{2, 1, 1}) {
		t.Error("box smaller than the ratio should not be coarsenable")
	}
	neg := NewBox(IntVect{-3, 0, 0}, IntVect{-1, 0, 0}, CellType)
	if c := neg.Coarsen(IntVect{2, 1, 1}); c.Lo[0] != -2 || c.Hi[0] != -1 {
		t.Errorf("negative coarsen: %v", c)
	}
}

func TestNewBoxArray(t *testing.T) {
	dom := NewBox(IntVect{}, IntVect{9, 7, 0}, CellType)
	ba := NewBoxArray(dom, IntVect{4, 4, 4})
	if len(ba) != 6 {
		t.Fatalf("have %d boxes, want 6", len(ba))
	}
	if ba.NumPts() != dom.NumPts() {
		t.Errorf("boxes cover %d points, domain has %d", ba.NumPts(), dom.NumPts())
	}
	if ba.MinimalBox() != dom {
		t.Errorf("minimal box %v", ba.MinimalBox())
	}
	if i, ok := ba.Find(IntVect{9, 7, 0}); !ok || ba[i].Hi != (IntVect{9, 7, 0}) {
		t.Errorf("find: %d %v", i, ok)
	}
}

func testGeom(t *testing.T, dim Dimensionality, n IntVect) *Geometry {
	g, err := NewGeometry(dim, n, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}, [3]bool{true, true, true})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGeometryReducedDims(t *testing.T) {
	g := testGeom(t, Dim2, IntVect{8, 8, 4})
	if g.Domain.Hi != (IntVect{7, 0, 3}) {
		t.Errorf("domain %v", g.Domain)
	}
	dx := g.CellSize()
	if dx != [3]float64{0.125, 1, 0.25} {
		t.Errorf("cell size %v", dx)
	}
	if g.Periodic[1] {
		t.Error("inactive axis should not be periodic")
	}
	if len(g.shifts()) != 9 {
		t.Errorf("have %d shifts, want 9", len(g.shifts()))
	}
}

func periodicValue(g *Geometry, p IntVect) float64 {
	c := g.canonical(p)
	return float64(c[0]*100 + c[1]*10 + c[2])
}

func TestFillBoundaryPeriodic(t *testing.T) {
	g := testGeom(t, Dim3, IntVect{8, 4, 4})
	for _, typ := range []IndexType{CellType, NodeType, {1, 0, 1}} {
		ba := NewBoxArray(g.Domain, IntVect{4, 2, 4}).Convert(typ)
		f := NewField("f", ba, NewDistributionMapping(len(ba), 3), 2, Uniform(2))
		for i, b := range ba {
			fab := f.Fab(i)
			b.Loop(func(p IntVect) {
				fab.Set(p, 0, periodicValue(g, p))
				fab.Set(p, 1, -periodicValue(g, p))
			})
		}
		f.FillBoundary(g)
		for i := 0; i < f.NumFabs(); i++ {
			fab := f.Fab(i)
			fab.Box.Loop(func(p IntVect) {
				if v := fab.Get(p, 0); v != periodicValue(g, p) {
					t.Fatalf("type %v box %d point %v: have %g, want %g", typ, i, p, v, periodicValue(g, p))
				}
				if v := fab.Get(p, 1); v != -periodicValue(g, p) {
					t.Fatalf("type %v component 1 at %v: %g", typ, p, v)
				}
			})
		}
	}
}

func TestSumBoundaryConserves(t *testing.T) {
	g := testGeom(t, Dim3, IntVect{6, 6, 4})
	ba := NewBoxArray(g.Domain, IntVect{3, 3, 2}).Convert(NodeType)
	f := NewField("rho", ba, NewDistributionMapping(len(ba), 2), 1, Uniform(2))
	var total float64
	for i := 0; i < f.NumFabs(); i++ {
		fab := f.Fab(i)
		fab.Box.Loop(func(p IntVect) {
			v := float64((p[0]+3)*(i+1)) + 0.25*float64(p[2]+2)
			fab.Set(p, 0, v)
			total += v
		})
	}
	f.SumBoundary(g)
	if s := f.Sum(0, g); math.Abs(s-total) > 1e-9*math.Abs(total) {
		t.Errorf("sum after merge %g, deposited %g", s, total)
	}
	// Every copy of a point agrees after the merge.
	for i := 0; i < f.NumFabs(); i++ {
		fab := f.Fab(i)
		fab.Box.Loop(func(p IntVect) {
			v, _ := f.Lookup(p, 0, g)
			if fab.Get(p, 0) != v {
				t.Fatalf("box %d point %v: %g != %g", i, p, fab.Get(p, 0), v)
			}
		})
	}
}

func TestSumBoundaryGuardContribution(t *testing.T) {
	g := testGeom(t, Dim1, IntVect{1, 1, 8})
	ba := NewBoxArray(g.Domain, IntVect{1, 1, 4})
	f := NewField("j", ba, NewDistributionMapping(len(ba), 1), 1, g.Dim.Guards(1))
	f.Fab(0).Set(IntVect{0, 0, 4}, 0, 2) // upper guard of box 0 is cell 4 of box 1
	f.Fab(1).Set(IntVect{0, 0, 4}, 0, 1)
	f.SumBoundary(g)
	if v := f.Fab(1).Get(IntVect{0, 0, 4}, 0); v != 3 {
		t.Errorf("merged value %g, want 3", v)
	}
	if v := f.Fab(0).Get(IntVect{0, 0, 4}, 0); v != 3 {
		t.Errorf("guard copy %g, want 3", v)
	}
}

func TestParallelCopyAddCountsOnce(t *testing.T) {
	g := testGeom(t, Dim2, IntVect{8, 1, 8})
	src := NewField("src", NewBoxArray(g.Domain, IntVect{4, 1, 4}).Convert(NodeType.mask(g)), NewDistributionMapping(4, 2), 1, IntVect{})
	src.SetVal(1)
	dst := NewField("dst", NewBoxArray(g.Domain, IntVect{8, 1, 8}).Convert(NodeType.mask(g)), NewDistributionMapping(1, 1), 1, IntVect{})
	if err := dst.ParallelCopy(src, 0, 0, 1, IntVect{}, IntVect{}, g, Add); err != nil {
		t.Fatal(err)
	}
	dst.ValidBox(0).Loop(func(p IntVect) {
		if v := dst.Fab(0).Get(p, 0); v != 1 {
			t.Fatalf("point %v: %g, want 1", p, v)
		}
	})
	if err := dst.ParallelCopy(src, 0, 0, 1, Uniform(1), IntVect{}, g, Add); err == nil {
		t.Error("accumulating from guard cells should fail")
	}
}

func (t IndexType) mask(g *Geometry) IndexType {
	m := g.Dim.Mask()
	return IndexType{t[0] * m[0], t[1] * m[1], t[2] * m[2]}
}

func TestCheckGuardCells(t *testing.T) {
	g := testGeom(t, Dim3, IntVect{8, 8, 8})
	ba := NewBoxArray(g.Domain, Uniform(4))
	f := NewField("Ex", ba, NewDistributionMapping(len(ba), 1), 1, Uniform(1))
	err := CheckGuardCells(f, Uniform(2), 1)
	if err == nil || !IsConfigError(err) {
		t.Fatalf("want a configuration error, have %v", err)
	}
	ce := err.(*ConfigError)
	if ce.Field != "Ex" || ce.Level != 1 || ce.Available != Uniform(1) || ce.Requested != Uniform(2) {
		t.Errorf("error details: %+v", ce)
	}
	big := NewField("Bx", ba, NewDistributionMapping(len(ba), 1), 1, Uniform(4))
	if err := CheckGuardCells(big, Uniform(1), 0); err == nil {
		t.Error("guard region as large as the box should be rejected")
	}
	if err := CheckGuardCells(f, Uniform(1), 0); err != nil {
		t.Error(err)
	}
}

func TestYeeType(t *testing.T) {
	if tt := YeeType(KindE, 0, Dim3); tt != (IndexType{0, 1, 1}) {
		t.Errorf("Ex: %v", tt)
	}
	if tt := YeeType(KindB, 2, Dim3); tt != (IndexType{0, 0, 1}) {
		t.Errorf("Bz: %v", tt)
	}
	if tt := YeeType(KindJ, 1, Dim2); tt != (IndexType{1, 0, 1}) {
		t.Errorf("2D Jy: %v", tt)
	}
	if tt := YeeType(KindRho, 0, Dim1); tt != (IndexType{0, 0, 1}) {
		t.Errorf("1D rho: %v", tt)
	}
}
