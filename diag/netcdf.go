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
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/mesh"
)

// Variable is a field component to be written to a snapshot file.
type Variable struct {
	Name        string
	Description string
	Units       string
	Field       *mesh.Field
	Comp        int
}

// WriteNetCDF writes the variables, interpolated to cell centers, to rw
// in NetCDF format. Each variable has dimensions (x, y, z) spanning the
// domain of geom.
func WriteNetCDF(rw cdf.ReaderWriterAt, geom *mesh.Geometry, vars []Variable) error {
	n := geom.Domain.Size()
	dims := []string{"x", "y", "z"}
	h := cdf.NewHeader(dims, []int{n[0], n[1], n[2]})
	h.AddAttribute("", "comment", "picamr cell-centered field snapshot")
	h.AddAttribute("", "ProbLo", geom.ProbLo[:])
	h.AddAttribute("", "ProbHi", geom.ProbHi[:])
	data := make([]*sparse.DenseArray, len(vars))
	for i, v := range vars {
		h.AddVariable(v.Name, dims, []float32{0})
		h.AddAttribute(v.Name, "description", v.Description)
		h.AddAttribute(v.Name, "units", v.Units)
		var err error
		data[i], err = CellCentered(v.Field, v.Comp, geom)
		if err != nil {
			return fmt.Errorf("diag.WriteNetCDF: variable %s: %v", v.Name, err)
		}
	}
	h.Define()
	f, err := cdf.Create(rw, h)
	if err != nil {
		return fmt.Errorf("diag.WriteNetCDF: %v", err)
	}
	for i, v := range vars {
		if err := writeNCF(f, v.Name, data[i]); err != nil {
			return fmt.Errorf("diag.WriteNetCDF: variable %s: %v", v.Name, err)
		}
	}
	return nil
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}

// LevelVariables returns the electromagnetic field, current and charge
// components of level lev of s.
func LevelVariables(s *picamr.Simulation, lev int) []Variable {
	var vars []Variable
	axes := "xyz"
	for _, q := range []struct {
		q           picamr.Quantity
		name, units string
	}{
		{picamr.EField, "E", "V/m"},
		{picamr.BField, "B", "T"},
		{picamr.Current, "J", "A/m2"},
	} {
		for c, f := range s.Arena.Vector(lev, q.q) {
			if f == nil {
				continue
			}
			vars = append(vars, Variable{
				Name:        fmt.Sprintf("%s%c", q.name, axes[c]),
				Description: fmt.Sprintf("%v, %c component", q.q, axes[c]),
				Units:       q.units,
				Field:       f,
			})
		}
	}
	if rho := s.Arena.Get(lev, picamr.Charge, 0); rho != nil {
		vars = append(vars, Variable{Name: "rho", Description: "charge density", Units: "C/m3", Field: rho})
	}
	return vars
}

// Snapshot returns a function that writes the fields of every level to
// NetCDF files in dir named by level and step.
func Snapshot(dir string) picamr.DomainManipulator {
	return func(s *picamr.Simulation) error {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("diag.Snapshot: %v", err)
		}
		for lev, l := range s.Levels {
			path := filepath.Join(dir, fmt.Sprintf("fields_lev%d_%06d.nc", lev, s.Step))
			ff, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("diag.Snapshot: %v", err)
			}
			if err := WriteNetCDF(ff, l.Geom, LevelVariables(s, lev)); err != nil {
				ff.Close()
				return err
			}
			if err := ff.Close(); err != nil {
				return fmt.Errorf("diag.Snapshot: %v", err)
			}
			s.Log.WithField("file", path).Debug("wrote field snapshot")
		}
		return nil
	}
}
