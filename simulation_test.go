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
	"context"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gocloud.dev/blob/memblob"

	"github.com/spatialmodel/picamr/coarsen"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/phys"
)

const dx = 1e-6

func periodic() particles.Boundaries {
	var bc particles.Boundaries
	for a := range bc {
		bc[a] = [2]particles.Boundary{particles.Periodic, particles.Periodic}
	}
	return bc
}

// testConfig returns a periodic 8³ FDTD configuration.
func testConfig() *Config {
	return &Config{
		Dim:                mesh.Dim3,
		NCell:              mesh.Uniform(8),
		ProbHi:             [3]float64{8 * dx, 8 * dx, 8 * dx},
		Periodic:           [3]bool{true, true, true},
		MaxGridSize:        mesh.Uniform(4),
		NumWorkers:         2,
		Solver:             FDTD,
		FDTDOrder:          2,
		Deposition:         particles.Esirkepov,
		ShapeOrder:         1,
		ParticleBoundaries: periodic(),
		CFL:                0.9,
		MaxStep:            4,
	}
}

func electrons() SpeciesConfig {
	return SpeciesConfig{Name: "electrons", Charge: -phys.Q, Mass: phys.Me}
}

func initFuncs(extra ...DomainManipulator) []DomainManipulator {
	return append([]DomainManipulator{
		BuildLevels(),
		AllocateFields(),
		SetTimestepCFL(),
		BuildSolvers(),
		CheckGuardCells(),
	}, extra...)
}

func newSim(t *testing.T, cfg *Config, funcs []DomainManipulator) *Simulation {
	s, err := NewSimulation(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := test.NewNullLogger()
	s.Log = logger
	s.InitFuncs = funcs
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	return s
}

func step(t *testing.T, s *Simulation, n int) {
	e := Evolve()
	for i := 0; i < n; i++ {
		if err := e(s); err != nil {
			t.Fatal(err)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		mod      func(c *Config)
		isConfig bool
	}{
		{name: "fdtd needs esirkepov", mod: func(c *Config) { c.Deposition = particles.Direct }, isConfig: true},
		{name: "odd fdtd order", mod: func(c *Config) { c.FDTDOrder = 3 }, isConfig: true},
		{name: "psatd single level", mod: func(c *Config) {
			c.Solver = PSATD
			c.RefineRatio = mesh.Uniform(2)
			c.Patches = []mesh.Box{mesh.NewBox(mesh.Uniform(2), mesh.Uniform(5), mesh.CellType)}
		}, isConfig: true},
		{name: "averaging with rho", mod: func(c *Config) {
			c.Solver = PSATD
			c.TimeAveraging = true
			c.UpdateWithRho = true
		}, isConfig: true},
		{name: "periodicity mismatch", mod: func(c *Config) { c.ParticleBoundaries[0][1] = particles.Absorbing }, isConfig: true},
		{name: "patch outside", mod: func(c *Config) {
			c.RefineRatio = mesh.Uniform(2)
			c.Patches = []mesh.Box{mesh.NewBox(mesh.Uniform(4), mesh.Uniform(9), mesh.CellType)}
		}, isConfig: true},
		{name: "ratio 1", mod: func(c *Config) {
			c.RefineRatio = mesh.Uniform(1)
			c.Patches = []mesh.Box{mesh.NewBox(mesh.Uniform(2), mesh.Uniform(5), mesh.CellType)}
		}, isConfig: true},
		{name: "no stop", mod: func(c *Config) { c.MaxStep = 0 }},
		{name: "duplicate species", mod: func(c *Config) { c.Species = []SpeciesConfig{electrons(), electrons()} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig()
			tc.mod(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if mesh.IsConfigError(err) != tc.isConfig {
				t.Errorf("IsConfigError(%v) = %v, want %v", err, !tc.isConfig, tc.isConfig)
			}
		})
	}
	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid configuration: %v", err)
	}
}

func TestStationaryParticle(t *testing.T) {
	cfg := testConfig()
	cfg.Species = []SpeciesConfig{electrons()}
	s := newSim(t, cfg, initFuncs())
	c := s.Species[0]
	if err := c.AddNParticles(0, []float64{4 * dx}, []float64{4 * dx}, []float64{4 * dx},
		[]float64{0}, []float64{0}, []float64{0}, []float64{1}, nil); err != nil {
		t.Fatal(err)
	}
	step(t, s, 1)

	l := s.Levels[0]
	rho := s.Arena.Get(0, Charge, 0)
	if q := rho.Sum(0, l.Geom) * l.Geom.CellVolume(); math.Abs(q+phys.Q) > 1e-12*phys.Q {
		t.Errorf("deposited charge %g, want %g", q, -phys.Q)
	}
	// Node indices 0..7 are the unique points of the periodic mesh.
	var nonzero int
	l.Geom.Domain.Loop(func(p mesh.IntVect) {
		if v, _ := rho.Lookup(p, 0, l.Geom); v != 0 {
			nonzero++
		}
	})
	if nonzero == 0 || nonzero > 8 {
		t.Errorf("charge deposited on %d nodes, want 1 to 8", nonzero)
	}
	for _, q := range []Quantity{EField, BField, Current} {
		for comp, f := range s.Arena.Vector(0, q) {
			if v := f.NormInf(0); v != 0 {
				t.Errorf("%v%c = %g after one step, want 0", q, "xyz"[comp], v)
			}
		}
	}
	tl := c.Tiles(0)
	for _, tile := range tl {
		for p := 0; p < tile.Len(); p++ {
			for a, comp := range []int{particles.X, particles.Y, particles.Z} {
				if tile.Real[comp][p] != 4*dx {
					t.Errorf("position %d moved to %g", a, tile.Real[comp][p])
				}
			}
		}
	}
	if s.Step != 1 || s.Levels[0].Phase() != Idle {
		t.Errorf("step %d, phase %v; want 1, idle", s.Step, s.Levels[0].Phase())
	}
}

func twoLevelConfig() *Config {
	cfg := testConfig()
	cfg.RefineRatio = mesh.Uniform(2)
	cfg.Patches = []mesh.Box{mesh.NewBox(mesh.Uniform(2), mesh.Uniform(5), mesh.CellType)}
	cfg.Subcycling = true
	return cfg
}

func TestTwoLevelAllOnes(t *testing.T) {
	s := newSim(t, twoLevelConfig(), initFuncs())
	crse, fine := s.Levels[0], s.Levels[1]
	if !fine.BA.Coarsenable(fine.Ratio) {
		t.Fatal("fine boxes are not coarsenable")
	}
	for _, q := range []Quantity{EField, BField, Current, Charge} {
		n := 3
		if !q.vector() {
			n = 1
		}
		for comp := 0; comp < n; comp++ {
			for _, mode := range []coarsen.Mode{coarsen.Sample, coarsen.Average} {
				src := s.Arena.Get(fine.Index, q, comp)
				dst := s.Arena.Get(crse.Index, q, comp)
				src.SetVal(1)
				dst.SetVal(0)
				if err := coarsen.Coarsen(dst, src, 0, 0, 1, mesh.IntVect{}, fine.Ratio, coarsen.WithMode(mode)); err != nil {
					t.Fatal(err)
				}
				covered := s.Config.Patches[0].Convert(dst.Type)
				for i := 0; i < dst.NumFabs(); i++ {
					fab := dst.Fab(i)
					b, ok := dst.ValidBox(i).Intersect(covered)
					if !ok {
						continue
					}
					b.Loop(func(p mesh.IntVect) {
						if v := fab.Get(p, 0); v != 1 {
							t.Errorf("%v %d %v: coarse value %g at %v, want 1", q, comp, mode, v, p)
						}
					})
				}
			}
		}
	}
}

// Charge and time-averaged current of fine particles near the edge of the
// refined patch reach the coarse level in full, including the parts
// deposited in fine guard cells outside the patch.
func TestTwoLevelSourceConservation(t *testing.T) {
	const ux = 0.01 * phys.C
	for _, order := range []int{2, 3} {
		for _, x := range []float64{2.0, 2.1, 2.4, 3.3, 4.0, 5.9} {
			cfg := twoLevelConfig()
			cfg.ShapeOrder = order
			cfg.Species = []SpeciesConfig{electrons()}
			s := newSim(t, cfg, initFuncs())
			c := s.Species[0]
			if err := c.AddNParticles(1, []float64{x * dx}, []float64{4 * dx}, []float64{4.3 * dx},
				[]float64{ux}, []float64{0}, []float64{0}, []float64{1}, nil); err != nil {
				t.Fatal(err)
			}
			step(t, s, 1)
			crse := s.Levels[0]
			vol := crse.Geom.CellVolume()
			for _, q := range []Quantity{ChargeOld, Charge} {
				if have := s.Arena.Get(0, q, 0).Sum(0, crse.Geom) * vol; different(have, -phys.Q, 1e-12) {
					t.Errorf("order %d, x=%g: coarse %v integral %g, want %g", order, x, q, have, -phys.Q)
				}
			}
			if n := c.NumParticlesAt(1); n != 1 {
				t.Fatalf("order %d, x=%g: %d fine particles, want 1", order, x, n)
			}
			var x1 float64
			for _, tile := range c.Tiles(1) {
				for p := 0; p < tile.Len(); p++ {
					x1 = tile.Real[particles.X][p]
				}
			}
			want := -phys.Q * (x1 - x*dx) / crse.Dt
			if have := s.Arena.Get(0, Current, 0).Sum(0, crse.Geom) * vol; different(have, want, 1e-8) {
				t.Errorf("order %d, x=%g: coarse Jx integral %g, want %g", order, x, have, want)
			}
		}
	}
}

func TestOrderingViolation(t *testing.T) {
	cfg := testConfig()
	cfg.Species = []SpeciesConfig{electrons()}
	s := newSim(t, cfg, initFuncs())
	l := s.Levels[0]
	err := s.solve(l, l.Dt)
	if !mesh.IsConfigError(err) {
		t.Fatalf("solving before deposition: got %v, want a configuration error", err)
	}
	if ce := err.(*mesh.ConfigError); ce.Invariant != orderSolve || ce.Level != 0 {
		t.Errorf("error %v names the wrong invariant or level", err)
	}
	if err := s.pushAndDeposit(l); err != nil {
		t.Fatal(err)
	}
	if err := s.solve(l, l.Dt); !mesh.IsConfigError(err) {
		t.Errorf("solving before source coarsening: got %v, want a configuration error", err)
	}
	if err := s.advanceFiner(l); err != nil {
		t.Fatal(err)
	}
	if err := s.solve(l, l.Dt); err != nil {
		t.Errorf("solving in order: %v", err)
	}
}

func TestTwoLevelSubcycling(t *testing.T) {
	cfg := twoLevelConfig()
	cfg.Species = []SpeciesConfig{electrons()}
	s := newSim(t, cfg, initFuncs())
	if r := s.Levels[0].Dt / s.Levels[1].Dt; math.Abs(r-2) > 1e-14 {
		t.Fatalf("timestep ratio %g, want 2", r)
	}
	c := s.Species[0]
	if err := c.AddNParticles(0, []float64{1.5 * dx}, []float64{3.5 * dx}, []float64{3.5 * dx},
		[]float64{0.5 * phys.C}, []float64{0}, []float64{0}, []float64{1}, nil); err != nil {
		t.Fatal(err)
	}
	step(t, s, 12)
	if s.Levels[1].Step != 24 {
		t.Errorf("fine level took %d steps, want 24", s.Levels[1].Step)
	}
	if n := c.NumParticles(); n != 1 {
		t.Fatalf("%d particles, want 1", n)
	}
	if n := c.NumParticlesAt(1); n != 1 {
		t.Errorf("particle should have moved into the refined patch")
	}
	for _, l := range s.Levels {
		if l.Phase() != Idle {
			t.Errorf("level %d is %v after a step", l.Index, l.Phase())
		}
		for _, f := range s.Arena.Vector(l.Index, EField) {
			if v := f.NormInf(0); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("level %d %s is not finite", l.Index, f.Name)
			}
		}
	}
}

func plasmaConfig() *Config {
	cfg := testConfig()
	cfg.Dim = mesh.Dim2
	cfg.NCell = mesh.IntVect{16, 1, 16}
	cfg.ProbHi = [3]float64{16 * dx, 1, 16 * dx}
	cfg.MaxGridSize = mesh.IntVect{8, 1, 8}
	sp := electrons()
	sp.Density = "1e24 * (1 + 0.1*cos(2*pi*x/16e-6))"
	sp.PPC = mesh.IntVect{2, 1, 2}
	sp.Momentum = [3]float64{1e7, 0, 5e6}
	cfg.Species = []SpeciesConfig{sp}
	cfg.InitE = [3]string{"1e9*sin(2*pi*z/16e-6)", "", ""}
	cfg.ExternalB = [3]float64{0, 0.1, 0}
	return cfg
}

func plasmaInit() []DomainManipulator {
	return initFuncs(InitFieldsFromExpressions(), InitExternalFields(), InjectPlasma())
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	ref := newSim(t, plasmaConfig(), plasmaInit())
	step(t, ref, 4)

	bucket := memblob.OpenBucket(nil)
	first := newSim(t, plasmaConfig(), plasmaInit())
	step(t, first, 2)
	if err := Save(ctx, bucket, "chk/00002")(first); err != nil {
		t.Fatal(err)
	}

	resumed := newSim(t, plasmaConfig(), initFuncs(Load(ctx, bucket, "chk/00002")))
	if resumed.Step != 2 || resumed.NumParticles() != first.NumParticles() {
		t.Fatalf("resumed at step %d with %d particles, want 2 and %d", resumed.Step, resumed.NumParticles(), first.NumParticles())
	}
	step(t, resumed, 2)

	if ref.Time != resumed.Time {
		t.Errorf("time %g, want %g", resumed.Time, ref.Time)
	}
	for _, k := range ref.Arena.Keys() {
		a, b := ref.Arena.Get(k.Level, k.Q, k.Comp), resumed.Arena.Get(k.Level, k.Q, k.Comp)
		for i := 0; i < a.NumFabs(); i++ {
			ea, eb := a.Fab(i).Data.Elements, b.Fab(i).Data.Elements
			for j := range ea {
				if ea[j] != eb[j] {
					t.Fatalf("%v box %d element %d: %g != %g", k, i, j, eb[j], ea[j])
				}
			}
		}
	}
	ta, tb := ref.Species[0].Tiles(0), resumed.Species[0].Tiles(0)
	for i := range ta {
		if ta[i].Len() != tb[i].Len() {
			t.Fatalf("tile %d has %d particles, want %d", i, tb[i].Len(), ta[i].Len())
		}
		for c := range ta[i].Real {
			for p := range ta[i].Real[c] {
				if ta[i].Real[c][p] != tb[i].Real[c][p] {
					t.Fatalf("tile %d attribute %d particle %d differs", i, c, p)
				}
			}
		}
	}

	other := plasmaConfig()
	other.CFL = 0.5
	s := newSim(t, other, initFuncs())
	if err := Load(ctx, bucket, "chk/00002")(s); err == nil {
		t.Error("loading a checkpoint of a different configuration should fail")
	}
}

func TestRegrid(t *testing.T) {
	cfg := testConfig()
	sp := electrons()
	sp.Density = "1e24"
	sp.PPC = mesh.Uniform(1)
	sp.Momentum = [3]float64{1e6, -2e6, 3e6}
	cfg.Species = []SpeciesConfig{sp}
	s := newSim(t, cfg, initFuncs(InjectPlasma()))
	step(t, s, 1)
	l := s.Levels[0]
	n := s.NumParticles()
	before := make(map[FieldKey]map[mesh.IntVect]float64)
	for _, k := range s.Arena.Keys() {
		f := s.Arena.Get(k.Level, k.Q, k.Comp)
		vals := make(map[mesh.IntVect]float64)
		l.Geom.Domain.Convert(f.Type).Loop(func(p mesh.IntVect) {
			v, _ := f.Lookup(p, 0, l.Geom)
			vals[p] = v
		})
		before[k] = vals
	}

	ba := mesh.NewBoxArray(l.Geom.Domain, mesh.IntVect{8, 8, 4})
	if err := s.Regrid(0, ba, mesh.NewDistributionMapping(len(ba), 2)); err != nil {
		t.Fatal(err)
	}
	if len(s.Levels[0].BA) != 2 || s.NumParticles() != n {
		t.Fatalf("after regrid: %d boxes and %d particles, want 2 and %d", len(s.Levels[0].BA), s.NumParticles(), n)
	}
	for k, vals := range before {
		f := s.Arena.Get(k.Level, k.Q, k.Comp)
		for p, want := range vals {
			if v, _ := f.Lookup(p, 0, l.Geom); v != want {
				t.Fatalf("%v at %v: %g, want %g", k, p, v, want)
			}
		}
	}
	step(t, s, 1)

	bad := mesh.NewBoxArray(mesh.NewBox(mesh.IntVect{}, mesh.IntVect{7, 7, 3}, mesh.CellType), mesh.Uniform(8))
	if err := s.Regrid(0, bad, mesh.NewDistributionMapping(len(bad), 1)); !mesh.IsConfigError(err) {
		t.Errorf("regridding onto half the domain: got %v, want a configuration error", err)
	}
}

func TestMultiJ(t *testing.T) {
	cfg := testConfig()
	cfg.Dim = mesh.Dim1
	cfg.NCell = mesh.IntVect{1, 1, 32}
	cfg.ProbHi = [3]float64{1, 1, 32 * dx}
	cfg.MaxGridSize = mesh.IntVect{1, 1, 16}
	cfg.Solver = PSATD
	cfg.SpectralOrder = 16
	cfg.MultiJ = 3
	cfg.CurrentCorrection = true
	sp := electrons()
	sp.Density = "1e24*(1 + 0.2*sin(2*pi*z/32e-6))"
	sp.PPC = mesh.IntVect{1, 1, 4}
	sp.Momentum = [3]float64{0, 0, 3e7}
	cfg.Species = []SpeciesConfig{sp}
	s := newSim(t, cfg, initFuncs(InjectPlasma()))
	step(t, s, 3)
	l := s.Levels[0]
	rho := s.Arena.Get(0, Charge, 0)
	q := rho.Sum(0, l.Geom) * l.Geom.CellVolume()
	want := s.Species[0].TotalCharge()
	if math.Abs(q-want) > 1e-10*math.Abs(want) {
		t.Errorf("deposited charge %g, want %g", q, want)
	}
	if s.Step != 3 || l.Phase() != Idle {
		t.Errorf("step %d, phase %v", s.Step, l.Phase())
	}
}

func TestRunLogStop(t *testing.T) {
	cfg := testConfig()
	s := newSim(t, cfg, initFuncs())
	logger, hook := test.NewNullLogger()
	s.Log = logger
	var calls int
	s.RunFuncs = []DomainManipulator{
		Evolve(),
		Log(),
		StopAfter(cfg.MaxStep, 0),
		RunPeriodically(2.5*s.Levels[0].Dt, func(*Simulation) error {
			calls++
			return nil
		}),
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if s.Step != 4 {
		t.Errorf("stopped after %d steps, want 4", s.Step)
	}
	if len(hook.Entries) != 4 {
		t.Fatalf("%d log entries, want 4", len(hook.Entries))
	}
	if e := hook.LastEntry(); e.Level != logrus.InfoLevel || e.Data["step"] != 4 {
		t.Errorf("last entry %v: %v", e.Level, e.Data)
	}
	// At times 3dt and at the final step 4dt.
	if calls != 2 {
		t.Errorf("periodic function called %d times, want 2", calls)
	}
}

func TestProfile(t *testing.T) {
	p, err := NewProfile("2*x + y*z + step(z - 1) + gauss(x, 0, 1)")
	if err != nil {
		t.Fatal(err)
	}
	if v, want := p(1, 2, 3), 2+6+1+math.Exp(-0.5); math.Abs(v-want) > 1e-14 {
		t.Errorf("profile = %g, want %g", v, want)
	}
	b, err := NewProfile("x > 0.5")
	if err != nil {
		t.Fatal(err)
	}
	if b(1, 0, 0) != 1 || b(0, 0, 0) != 0 {
		t.Error("boolean profile should be 1 or 0")
	}
	if _, err := NewProfile("x + q"); err == nil {
		t.Error("unknown variable should be an error")
	}
	z, _ := NewProfile("")
	if z(1, 2, 3) != 0 {
		t.Error("empty profile should be zero")
	}
}

func TestProfileExponent(t *testing.T) {
	tests := []struct {
		expr    string
		x, want float64
	}{
		{expr: "1e24", want: 1e24},
		{expr: "2.5e-3*x", x: 4, want: 1e-2},
		{expr: "1E+3 - x", x: 1, want: 999},
		{expr: "1e25 * step(x - 2e-6)", x: 3e-6, want: 1e25},
		{expr: "1e25 * step(x - 2e-6)", x: 1e-6, want: 0},
		{expr: ".5e1 + exp(0)", want: 6},
	}
	for _, test := range tests {
		p, err := NewProfile(test.expr)
		if err != nil {
			t.Errorf("%s: %v", test.expr, err)
			continue
		}
		if v := p(test.x, 0, 0); different(v, test.want, 1e-12) {
			t.Errorf("%s at x=%g: got %g, want %g", test.expr, test.x, v, test.want)
		}
	}
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}
