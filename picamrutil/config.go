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

package picamrutil

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
)

// fields splits a list value into its elements. Lists may arrive from a
// configuration file as slices, or from flags and environment variables
// as strings like "[1,2,3]" or "1 2 3".
func fields(v interface{}) ([]string, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		o := make([]string, rv.Len())
		for i := range o {
			var err error
			if o[i], err = cast.ToStringE(rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return o, nil
	}
	return cast.ToStringSliceE(v)
}

func intVect(cfg *viper.Viper, name string) (mesh.IntVect, error) {
	var v mesh.IntVect
	s, err := fields(cfg.Get(name))
	if err != nil {
		return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
	}
	if len(s) != 3 {
		return v, fmt.Errorf("picamr: configuration variable %s should have 3 values but has %d", name, len(s))
	}
	for i, e := range s {
		if v[i], err = cast.ToIntE(e); err != nil {
			return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
		}
	}
	return v, nil
}

func float3(cfg *viper.Viper, name string) ([3]float64, error) {
	var v [3]float64
	s, err := fields(cfg.Get(name))
	if err != nil {
		return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
	}
	if len(s) != 3 {
		return v, fmt.Errorf("picamr: configuration variable %s should have 3 values but has %d", name, len(s))
	}
	for i, e := range s {
		if v[i], err = cast.ToFloat64E(os.ExpandEnv(e)); err != nil {
			return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
		}
	}
	return v, nil
}

func bool3(cfg *viper.Viper, name string) ([3]bool, error) {
	var v [3]bool
	s, err := fields(cfg.Get(name))
	if err != nil {
		return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
	}
	if len(s) != 3 {
		return v, fmt.Errorf("picamr: configuration variable %s should have 3 values but has %d", name, len(s))
	}
	for i, e := range s {
		if v[i], err = cast.ToBoolE(e); err != nil {
			return v, fmt.Errorf("picamr: reading configuration variable %s: %v", name, err)
		}
	}
	return v, nil
}

// parsePatch parses a refined region written as "lo:hi" for each axis,
// for example "8:23 0:0 8:23".
func parsePatch(s string) (mesh.Box, error) {
	var lo, hi mesh.IntVect
	axes := strings.Fields(s)
	if len(axes) != 3 {
		return mesh.Box{}, fmt.Errorf("picamr: patch %q should have a lo:hi range for each of 3 axes", s)
	}
	for a, r := range axes {
		if _, err := fmt.Sscanf(r, "%d:%d", &lo[a], &hi[a]); err != nil {
			return mesh.Box{}, fmt.Errorf("picamr: patch %q: invalid range %q: %v", s, r, err)
		}
	}
	return mesh.NewBox(lo, hi, mesh.CellType), nil
}

// parseBoundaries parses one particle boundary per axis. Each entry is
// either a single policy for both sides or "lower:upper".
func parseBoundaries(s []string) (particles.Boundaries, error) {
	var bc particles.Boundaries
	if len(s) != 3 {
		return bc, fmt.Errorf("picamr: Particles.Boundaries should have 3 values but has %d", len(s))
	}
	for a, e := range s {
		sides := strings.SplitN(e, ":", 2)
		if len(sides) == 1 {
			sides = append(sides, sides[0])
		}
		for side, name := range sides {
			b, err := particles.ParseBoundary(strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return bc, fmt.Errorf("picamr: Particles.Boundaries axis %d: %v", a, err)
			}
			bc[a][side] = b
		}
	}
	return bc, nil
}

// LoadConfig builds and validates a simulation configuration from cfg.
func LoadConfig(cfg *viper.Viper) (*picamr.Config, error) {
	c := new(picamr.Config)
	var err error

	dim, err := cast.ToIntE(cfg.Get("Dim"))
	if err != nil {
		return nil, fmt.Errorf("picamr: reading configuration variable Dim: %v", err)
	}
	c.Dim = mesh.Dimensionality(dim)
	if c.NCell, err = intVect(cfg, "NCell"); err != nil {
		return nil, err
	}
	if c.ProbLo, err = float3(cfg, "ProbLo"); err != nil {
		return nil, err
	}
	if c.ProbHi, err = float3(cfg, "ProbHi"); err != nil {
		return nil, err
	}
	if c.Periodic, err = bool3(cfg, "Periodic"); err != nil {
		return nil, err
	}
	if c.MaxGridSize, err = intVect(cfg, "MaxGridSize"); err != nil {
		return nil, err
	}
	if c.NumWorkers, err = cast.ToIntE(cfg.Get("NumWorkers")); err != nil {
		return nil, fmt.Errorf("picamr: reading configuration variable NumWorkers: %v", err)
	}

	patches, err := fields(cfg.Get("AMR.Patches"))
	if err != nil {
		return nil, fmt.Errorf("picamr: reading configuration variable AMR.Patches: %v", err)
	}
	if len(patches) > 0 {
		// Flag values have been split on whitespace; rejoin them into
		// groups of three axes.
		patches = regroup(patches)
		if c.RefineRatio, err = intVect(cfg, "AMR.RefineRatio"); err != nil {
			return nil, err
		}
		for _, p := range patches {
			b, err := parsePatch(p)
			if err != nil {
				return nil, err
			}
			c.Patches = append(c.Patches, b)
		}
	}
	if c.Subcycling, err = cast.ToBoolE(cfg.Get("AMR.Subcycling")); err != nil {
		return nil, fmt.Errorf("picamr: reading configuration variable AMR.Subcycling: %v", err)
	}

	if c.Solver, err = picamr.ParseSolverKind(cfg.GetString("Solver.Kind")); err != nil {
		return nil, err
	}
	for _, o := range []struct {
		name string
		ptr  *int
	}{
		{"Solver.FDTDOrder", &c.FDTDOrder},
		{"Solver.SpectralOrder", &c.SpectralOrder},
		{"Solver.MultiJ", &c.MultiJ},
		{"Particles.ShapeOrder", &c.ShapeOrder},
		{"Time.MaxStep", &c.MaxStep},
	} {
		if *o.ptr, err = cast.ToIntE(cfg.Get(o.name)); err != nil {
			return nil, fmt.Errorf("picamr: reading configuration variable %s: %v", o.name, err)
		}
	}
	for _, o := range []struct {
		name string
		ptr  *bool
	}{
		{"Solver.UpdateWithRho", &c.UpdateWithRho},
		{"Solver.TimeAveraging", &c.TimeAveraging},
		{"Solver.CurrentCorrection", &c.CurrentCorrection},
	} {
		if *o.ptr, err = cast.ToBoolE(cfg.Get(o.name)); err != nil {
			return nil, fmt.Errorf("picamr: reading configuration variable %s: %v", o.name, err)
		}
	}
	for _, o := range []struct {
		name string
		ptr  *float64
	}{
		{"Time.CFL", &c.CFL},
		{"Time.Dt", &c.Dt},
		{"Time.StopTime", &c.StopTime},
	} {
		if *o.ptr, err = cast.ToFloat64E(cfg.Get(o.name)); err != nil {
			return nil, fmt.Errorf("picamr: reading configuration variable %s: %v", o.name, err)
		}
	}

	if c.Deposition, err = particles.ParseScheme(strings.ToLower(cfg.GetString("Particles.Deposition"))); err != nil {
		return nil, err
	}
	bcs, err := fields(cfg.Get("Particles.Boundaries"))
	if err != nil {
		return nil, fmt.Errorf("picamr: reading configuration variable Particles.Boundaries: %v", err)
	}
	if c.ParticleBoundaries, err = parseBoundaries(bcs); err != nil {
		return nil, err
	}
	if deck := os.ExpandEnv(cfg.GetString("Particles.SpeciesDeck")); deck != "" {
		if c.Species, err = ReadSpeciesDeck(deck); err != nil {
			return nil, err
		}
	}

	for i, a := range "xyz" {
		c.InitE[i] = os.ExpandEnv(cfg.GetString(fmt.Sprintf("Fields.InitE%c", a)))
		c.InitB[i] = os.ExpandEnv(cfg.GetString(fmt.Sprintf("Fields.InitB%c", a)))
	}
	if c.ExternalE, err = float3(cfg, "Fields.ExternalE"); err != nil {
		return nil, err
	}
	if c.ExternalB, err = float3(cfg, "Fields.ExternalB"); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// regroup joins whitespace-split patch ranges back into one string per
// patch. Patches that were not split are returned unchanged.
func regroup(s []string) []string {
	if len(strings.Fields(s[0])) == 3 {
		return s
	}
	var o []string
	for i := 0; i+3 <= len(s); i += 3 {
		o = append(o, strings.Join(s[i:i+3], " "))
	}
	return o
}
