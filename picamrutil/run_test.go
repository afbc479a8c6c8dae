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
	"bufio"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/phys"
)

func runConfig() *picamr.Config {
	const dx = 1e-6
	var bc particles.Boundaries
	for a := range bc {
		bc[a] = [2]particles.Boundary{particles.Periodic, particles.Periodic}
	}
	return &picamr.Config{
		Dim:                mesh.Dim3,
		NCell:              mesh.Uniform(8),
		ProbHi:             [3]float64{8 * dx, 8 * dx, 8 * dx},
		Periodic:           [3]bool{true, true, true},
		MaxGridSize:        mesh.Uniform(4),
		NumWorkers:         2,
		Solver:             picamr.FDTD,
		FDTDOrder:          2,
		Deposition:         particles.Esirkepov,
		ShapeOrder:         1,
		ParticleBoundaries: bc,
		CFL:                0.9,
		MaxStep:            3,
		Species: []picamr.SpeciesConfig{{
			Name:    "electrons",
			Charge:  -phys.Q,
			Mass:    phys.Me,
			Density: "1e20",
			PPC:     mesh.Uniform(1),
		}},
		InitE: [3]string{"", "1e6 * sin(2 * pi * x / 8e-6)", ""},
	}
}

func readLines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	require.NoError(t, s.Err())
	return lines
}

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "picamrutil_run")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	logger, _ := test.NewNullLogger()
	cfg := runConfig()
	o := &RunOptions{
		OutputDir:        filepath.Join(dir, "out"),
		SnapshotInterval: 1,
		PlotInterval:     1,
		PlotField:        "Ey",
		ReducedFile:      "reduced.tsv",
		CheckpointBucket: "file://" + filepath.Join(dir, "checkpoints"),
		Out:              ioutil.Discard,
	}
	require.NoError(t, Run(context.Background(), cfg, o, logger))

	lines := readLines(t, filepath.Join(o.OutputDir, "reduced.tsv"))
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[3], "3\t"), lines[3])

	// Intervals longer than the run produce output on the last step only.
	_, err = os.Stat(filepath.Join(o.OutputDir, "fields_lev0_000003.nc"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(o.OutputDir, "Ey_000003.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "checkpoints", checkpointKey(3), "header.toml"))
	assert.NoError(t, err)

	t.Run("restart", func(t *testing.T) {
		r := *o
		r.Restart = checkpointKey(3)
		r.SnapshotInterval, r.PlotInterval = 0, 0
		require.NoError(t, Run(context.Background(), cfg, &r, logger))
		lines := readLines(t, filepath.Join(o.OutputDir, "reduced.tsv"))
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[1], "4\t"), lines[1])
	})
}

func TestRunOptionErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	err := Run(context.Background(), runConfig(), &RunOptions{Restart: "checkpoint_000001", Out: ioutil.Discard}, logger)
	assert.Error(t, err)

	dir, err := ioutil.TempDir("", "picamrutil_run")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	err = Run(context.Background(), runConfig(), &RunOptions{OutputDir: dir, PlotInterval: 1, PlotField: "Qx", Out: ioutil.Discard}, logger)
	assert.Error(t, err)

	v := newViper()
	v.Set("Checkpoint.Interval", -1.0)
	_, err = LoadRunOptions(v)
	assert.Error(t, err)
}
