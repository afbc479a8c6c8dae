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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/cloud"
	"github.com/spatialmodel/picamr/diag"
)

// RunOptions holds the output settings of a run, which do not affect the
// simulated physics.
type RunOptions struct {
	// OutputDir is the directory snapshots, plots and reduced
	// diagnostics are written to.
	OutputDir string

	// SnapshotInterval is the simulated time between NetCDF field
	// snapshots [s]. Zero disables snapshots.
	SnapshotInterval float64

	// PlotInterval is the simulated time between PNG plots of PlotField
	// [s]. Zero disables plots.
	PlotInterval float64
	// PlotField is the level-0 field component to plot, e.g. "Ey".
	PlotField string

	// ReducedFile, if not empty, is the file name within OutputDir that
	// reduced diagnostics are written to after every step.
	ReducedFile string

	// CheckpointBucket is the blob bucket URL checkpoints are written to,
	// e.g. "file:///scratch/run1" or "gs://bucket".
	CheckpointBucket string
	// CheckpointInterval is the simulated time between checkpoints [s].
	// Zero writes a checkpoint only at the end of the run.
	CheckpointInterval float64
	// Restart, if not empty, is the checkpoint key in CheckpointBucket to
	// resume from.
	Restart string

	// Out receives the parameter summary. Nil means standard output.
	Out io.Writer
}

// checkpointKey returns the key of the checkpoint written at step.
func checkpointKey(step int) string {
	return fmt.Sprintf("checkpoint_%06d", step)
}

// Run builds a simulation of cfg, advances it to its stopping point and
// writes the requested output.
func Run(ctx context.Context, cfg *picamr.Config, o *RunOptions, log logrus.FieldLogger) error {
	s, err := picamr.NewSimulation(cfg)
	if err != nil {
		return err
	}
	s.Log = log
	out := o.Out
	if out == nil {
		out = os.Stdout
	}

	var bucket *blob.Bucket
	if o.CheckpointBucket != "" {
		bucket, err = cloud.OpenBucket(ctx, o.CheckpointBucket)
		if err != nil {
			return err
		}
	} else if o.Restart != "" {
		return fmt.Errorf("picamr: restarting requires a checkpoint bucket")
	}

	s.InitFuncs = []picamr.DomainManipulator{
		picamr.BuildLevels(),
		picamr.AllocateFields(),
		picamr.SetTimestepCFL(),
		picamr.BuildSolvers(),
		picamr.CheckGuardCells(),
	}
	if o.Restart != "" {
		s.InitFuncs = append(s.InitFuncs, picamr.Load(ctx, bucket, o.Restart))
	} else {
		s.InitFuncs = append(s.InitFuncs,
			picamr.InitFieldsFromExpressions(),
			picamr.InitExternalFields(),
			picamr.InjectPlasma(),
		)
	}
	s.InitFuncs = append(s.InitFuncs, picamr.PrintParameters(out))

	s.RunFuncs = []picamr.DomainManipulator{
		picamr.Evolve(),
		picamr.Log(),
		picamr.StopAfter(cfg.MaxStep, cfg.StopTime),
	}

	needDir := o.SnapshotInterval > 0 || o.PlotInterval > 0 || o.ReducedFile != ""
	if needDir {
		if err := os.MkdirAll(o.OutputDir, os.ModePerm); err != nil {
			return fmt.Errorf("picamr: creating output directory: %v", err)
		}
	}
	if o.SnapshotInterval > 0 {
		s.RunFuncs = append(s.RunFuncs, picamr.RunPeriodically(o.SnapshotInterval, diag.Snapshot(o.OutputDir)))
	}
	if o.PlotInterval > 0 {
		plot, err := plotField(o.OutputDir, o.PlotField)
		if err != nil {
			return err
		}
		s.RunFuncs = append(s.RunFuncs, picamr.RunPeriodically(o.PlotInterval, plot))
	}
	if o.ReducedFile != "" {
		f, err := os.Create(filepath.Join(o.OutputDir, o.ReducedFile))
		if err != nil {
			return fmt.Errorf("picamr: creating reduced diagnostics file: %v", err)
		}
		defer f.Close()
		s.RunFuncs = append(s.RunFuncs, diag.WriteReduced(f))
	}
	if bucket != nil {
		save := func(s *picamr.Simulation) error {
			key := checkpointKey(s.Step)
			s.Log.WithField("key", key).Info("writing checkpoint")
			return picamr.Save(ctx, bucket, key)(s)
		}
		if o.CheckpointInterval > 0 {
			s.RunFuncs = append(s.RunFuncs, picamr.RunPeriodically(o.CheckpointInterval, save))
		} else {
			s.CleanupFuncs = append(s.CleanupFuncs, save)
		}
	}

	if err := s.Init(); err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return err
	}
	return s.Cleanup()
}

// plotField returns a function that plots the named level-0 field
// component on the plane through the middle of the domain normal to y.
func plotField(dir, name string) (picamr.DomainManipulator, error) {
	if len(name) != 2 {
		return nil, fmt.Errorf("picamr: invalid plot field %q", name)
	}
	var q picamr.Quantity
	switch name[0] {
	case 'E':
		q = picamr.EField
	case 'B':
		q = picamr.BField
	case 'J':
		q = picamr.Current
	default:
		return nil, fmt.Errorf("picamr: invalid plot field %q", name)
	}
	comp := int(name[1]) - 'x'
	if comp < 0 || comp > 2 {
		return nil, fmt.Errorf("picamr: invalid plot field %q", name)
	}
	return func(s *picamr.Simulation) error {
		l := s.Levels[0]
		f := s.Arena.Get(0, q, comp)
		const axis = 1
		index := l.Geom.Domain.Size()[axis] / 2
		path := filepath.Join(dir, fmt.Sprintf("%s_%06d.png", name, s.Step))
		w, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("picamr: %v", err)
		}
		if err := diag.PlotSlice(w, f, 0, l.Geom, axis, index); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}, nil
}
