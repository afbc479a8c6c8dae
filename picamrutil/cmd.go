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

// Package picamrutil holds the command-line interface and configuration
// handling of picamr.
package picamrutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/picamr"
	"github.com/spatialmodel/picamr/mesh"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	sim := func() []*pflag.FlagSet {
		return []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()}
	}
	out := func() []*pflag.FlagSet {
		return []*pflag.FlagSet{runCmd.Flags()}
	}

	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Dim",
			usage: `
              Dim is the number of simulated dimensions. 1 simulates the z axis,
              2 simulates the x and z axes and 3 simulates all axes.`,
			defaultVal: 3,
			flagsets:   sim(),
		},
		{
			name: "NCell",
			usage: `
              NCell is the number of cells of the coarsest level along each axis.`,
			defaultVal: []int{32, 32, 32},
			flagsets:   sim(),
		},
		{
			name: "ProbLo",
			usage: `
              ProbLo is the lower corner of the simulated domain [m].`,
			defaultVal: []string{"-16e-6", "-16e-6", "-16e-6"},
			flagsets:   sim(),
		},
		{
			name: "ProbHi",
			usage: `
              ProbHi is the upper corner of the simulated domain [m].`,
			defaultVal: []string{"16e-6", "16e-6", "16e-6"},
			flagsets:   sim(),
		},
		{
			name: "Periodic",
			usage: `
              Periodic specifies whether the field boundaries along each axis are
              periodic. Particle boundaries must be periodic along the same axes.`,
			defaultVal: []string{"true", "true", "true"},
			flagsets:   sim(),
		},
		{
			name: "MaxGridSize",
			usage: `
              MaxGridSize is the largest number of cells along each axis of a box.
              Levels are divided into boxes of at most this size.`,
			defaultVal: []int{16, 16, 16},
			flagsets:   sim(),
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of workers boxes are distributed over.
              If it is 0, one worker per CPU is used.`,
			defaultVal: 0,
			flagsets:   sim(),
		},
		{
			name: "AMR.RefineRatio",
			usage: `
              AMR.RefineRatio is the refinement ratio between consecutive levels
              along each axis.`,
			defaultVal: []int{2, 2, 2},
			flagsets:   sim(),
		},
		{
			name: "AMR.Patches",
			usage: `
              AMR.Patches lists the refined region of each level, in the cell
              indices of that level, as a lo:hi range per axis. For example,
              "8:23 8:23 8:23" refines the central cells of a 32³ domain.
              If it is empty, the simulation has a single level.`,
			defaultVal: []string{},
			flagsets:   sim(),
		},
		{
			name: "AMR.Subcycling",
			usage: `
              If AMR.Subcycling is true, finer levels take RefineRatio steps
              for every step of the next coarser level. Otherwise all levels
              advance with the timestep of the finest level.`,
			defaultVal: false,
			flagsets:   sim(),
		},
		{
			name: "Solver.Kind",
			usage: `
              Solver.Kind is the field solver: "fdtd" for the finite-difference
              Yee solver or "psatd" for the spectral solver. The spectral solver
              requires a single fully periodic level.`,
			defaultVal: "fdtd",
			flagsets:   sim(),
		},
		{
			name: "Solver.FDTDOrder",
			usage: `
              Solver.FDTDOrder is the (even) order of the finite-difference stencil.`,
			defaultVal: 2,
			flagsets:   sim(),
		},
		{
			name: "Solver.SpectralOrder",
			usage: `
              Solver.SpectralOrder is the stencil order whose modified wavenumbers
              the spectral solver uses. If it is 0 or less, exact wavenumbers are used.`,
			defaultVal: 16,
			flagsets:   sim(),
		},
		{
			name: "Solver.UpdateWithRho",
			usage: `
              If Solver.UpdateWithRho is true, the spectral solver uses the charge
              density at the start and end of the step in its update.`,
			defaultVal: false,
			flagsets:   sim(),
		},
		{
			name: "Solver.TimeAveraging",
			usage: `
              If Solver.TimeAveraging is true, the spectral solver also computes
              fields averaged over the step, which are then used to push particles.`,
			defaultVal: false,
			flagsets:   sim(),
		},
		{
			name: "Solver.CurrentCorrection",
			usage: `
              If Solver.CurrentCorrection is true, the spectral solver corrects the
              deposited current so that it satisfies the continuity equation.`,
			defaultVal: false,
			flagsets:   sim(),
		},
		{
			name: "Solver.MultiJ",
			usage: `
              Solver.MultiJ is the number of current depositions and field advances
              per step with the spectral solver. Values below 2 disable it.`,
			defaultVal: 1,
			flagsets:   sim(),
		},
		{
			name: "Particles.Deposition",
			usage: `
              Particles.Deposition is the current deposition scheme: "direct",
              "esirkepov" or "vay". The finite-difference solver requires
              "esirkepov" and "vay" requires the spectral solver.`,
			defaultVal: "esirkepov",
			flagsets:   sim(),
		},
		{
			name: "Particles.ShapeOrder",
			usage: `
              Particles.ShapeOrder is the order of the particle shape functions (0 to 3).`,
			defaultVal: 1,
			flagsets:   sim(),
		},
		{
			name: "Particles.Boundaries",
			usage: `
              Particles.Boundaries gives the particle boundary along each axis:
              "periodic", "absorbing", "reflecting" or "open", or a
              "lower:upper" pair such as "absorbing:open".`,
			defaultVal: []string{"periodic", "periodic", "periodic"},
			flagsets:   sim(),
		},
		{
			name: "Particles.SpeciesDeck",
			usage: `
              Particles.SpeciesDeck is the path to an INI-style file declaring the
              particle species, one [species "name"] section each. It can include
              environment variables. If it is empty, the simulation has no particles.`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name: "Fields.InitEx",
			usage: `
              Fields.InitEx is an expression of x, y and z [m] giving the initial
              x component of the electric field [V/m].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name:       "Fields.InitEy",
			usage:      `Fields.InitEy is the initial y component of the electric field [V/m].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name:       "Fields.InitEz",
			usage:      `Fields.InitEz is the initial z component of the electric field [V/m].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name:       "Fields.InitBx",
			usage:      `Fields.InitBx is the initial x component of the magnetic field [T].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name:       "Fields.InitBy",
			usage:      `Fields.InitBy is the initial y component of the magnetic field [T].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name:       "Fields.InitBz",
			usage:      `Fields.InitBz is the initial z component of the magnetic field [T].`,
			defaultVal: "",
			flagsets:   sim(),
		},
		{
			name: "Fields.ExternalE",
			usage: `
              Fields.ExternalE is a uniform electric field added to the initial
              field [V/m].`,
			defaultVal: []string{"0", "0", "0"},
			flagsets:   sim(),
		},
		{
			name: "Fields.ExternalB",
			usage: `
              Fields.ExternalB is a uniform magnetic field added to the initial
              field [T].`,
			defaultVal: []string{"0", "0", "0"},
			flagsets:   sim(),
		},
		{
			name: "Time.CFL",
			usage: `
              Time.CFL is the timestep as a fraction of the time light takes to
              cross the finest cell.`,
			defaultVal: 0.99,
			flagsets:   sim(),
		},
		{
			name: "Time.Dt",
			usage: `
              Time.Dt, if positive, is the coarse-level timestep [s] and is used
              instead of Time.CFL.`,
			defaultVal: 0.0,
			flagsets:   sim(),
		},
		{
			name: "Time.MaxStep",
			usage: `
              Time.MaxStep is the number of coarse steps to take. It is ignored
              if it is 0.`,
			defaultVal: 100,
			flagsets:   sim(),
		},
		{
			name: "Time.StopTime",
			usage: `
              Time.StopTime is the simulated time to stop at [s]. It is ignored
              if it is 0.`,
			defaultVal: 0.0,
			flagsets:   sim(),
		},
		{
			name: "Output.Dir",
			usage: `
              Output.Dir is the directory diagnostics are written to. It can
              include environment variables.`,
			defaultVal: "picamr_output",
			flagsets:   out(),
		},
		{
			name: "Output.SnapshotInterval",
			usage: `
              Output.SnapshotInterval is the simulated time between NetCDF field
              snapshots [s]. If it is 0, no snapshots are written.`,
			defaultVal: 0.0,
			flagsets:   out(),
		},
		{
			name: "Output.PlotInterval",
			usage: `
              Output.PlotInterval is the simulated time between plots of
              Output.PlotField [s]. If it is 0, no plots are made.`,
			defaultVal: 0.0,
			flagsets:   out(),
		},
		{
			name: "Output.PlotField",
			usage: `
              Output.PlotField is the field component to plot, for example "Ey" or "Bz".`,
			defaultVal: "Ey",
			flagsets:   out(),
		},
		{
			name: "Output.ReducedFile",
			usage: `
              Output.ReducedFile is the name of the file in Output.Dir that reduced
              diagnostics (energies, charge, velocities) are written to every step.
              If it is empty, they are not written.`,
			defaultVal: "reduced.tsv",
			flagsets:   out(),
		},
		{
			name: "Checkpoint.Bucket",
			usage: `
              Checkpoint.Bucket is the blob storage location checkpoints are
              written to and read from, in the format 'provider://name', for
              example file:///scratch/run1, gs://bucket or s3://bucket.
              If it is empty, no checkpoints are written.`,
			defaultVal: "",
			flagsets:   out(),
		},
		{
			name: "Checkpoint.Interval",
			usage: `
              Checkpoint.Interval is the simulated time between checkpoints [s].
              If it is 0, a checkpoint is written only at the end of the run.`,
			defaultVal: 0.0,
			flagsets:   out(),
		},
		{
			name: "Checkpoint.Restart",
			usage: `
              Checkpoint.Restart is the key of a checkpoint in Checkpoint.Bucket
              to resume from, for example checkpoint_000100.`,
			defaultVal: "",
			flagsets:   out(),
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to a file that log messages are copied to. It can
              include environment variables.`,
			defaultVal: "",
			flagsets:   out(),
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the least severe level of log messages to print:
              "debug", "info", "warning" or "error".`,
			defaultVal: "info",
			flagsets:   out(),
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("PICAMR")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(configCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("picamr: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "picamr",
	Short: "An adaptive-mesh electromagnetic particle-in-cell code.",
	Long: `picamr advances electromagnetic fields and charged particles on a
hierarchy of refined meshes. Use the subcommands specified below to access
the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'PICAMR_var' where 'var' is the
name of the variable to be set, with dots replaced by underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of picamr.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("picamr v%s\n", picamr.Version)
	},
	DisableAutoGenTag: true,
}

// configCmd prints the resolved configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the simulation configuration.",
	Long: `config checks the simulation configuration and prints it
after all defaults, configuration file values, flags and environment
variables have been applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = pretty.Fprintf(cmd.OutOrStdout(), "%# v\n", cfg)
		return err
	},
	DisableAutoGenTag: true,
}

// runCmd runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	Long: `run advances a simulation from its initial conditions, or from a
checkpoint, until Time.MaxStep steps have been taken or Time.StopTime has
been reached, writing the requested diagnostics and checkpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(cmd.OutOrStdout(), os.ExpandEnv(Cfg.GetString("LogFile")), Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		defer closer.Close()

		cfg, err := LoadConfig(Cfg)
		if err != nil {
			fatal(logger, err)
			return err
		}
		o, err := LoadRunOptions(Cfg)
		if err != nil {
			return err
		}
		o.Out = cmd.OutOrStdout()
		if err := Run(context.Background(), cfg, o, logger); err != nil {
			fatal(logger, err)
			return err
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// fatal logs configuration errors, which cannot be recovered from by
// continuing, and exits. Other errors are returned to the caller.
var fatal = func(log logrus.FieldLogger, err error) {
	if mesh.IsConfigError(err) {
		log.Fatal(err)
	}
}

// LoadRunOptions reads the output settings of a run from cfg.
func LoadRunOptions(cfg *viper.Viper) (*RunOptions, error) {
	o := &RunOptions{
		OutputDir:        os.ExpandEnv(cfg.GetString("Output.Dir")),
		PlotField:        cfg.GetString("Output.PlotField"),
		ReducedFile:      os.ExpandEnv(cfg.GetString("Output.ReducedFile")),
		CheckpointBucket: os.ExpandEnv(cfg.GetString("Checkpoint.Bucket")),
		Restart:          cfg.GetString("Checkpoint.Restart"),
	}
	for _, v := range []struct {
		name string
		ptr  *float64
	}{
		{"Output.SnapshotInterval", &o.SnapshotInterval},
		{"Output.PlotInterval", &o.PlotInterval},
		{"Checkpoint.Interval", &o.CheckpointInterval},
	} {
		var err error
		if *v.ptr, err = cast.ToFloat64E(cfg.Get(v.name)); err != nil {
			return nil, fmt.Errorf("picamr: reading configuration variable %s: %v", v.name, err)
		}
		if *v.ptr < 0 {
			return nil, fmt.Errorf("picamr: configuration variable %s must not be negative", v.name)
		}
	}
	return o, nil
}

// newLogger returns a logger writing to w and, if logFile is not empty,
// to logFile as well.
func newLogger(w io.Writer, logFile, level string) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("picamr: %v", err)
	}
	logger.Level = lvl
	if logFile == "" {
		logger.Out = w
		return logger, nopCloser{}, nil
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("picamr: problem creating log file: %v", err)
	}
	logger.Out = io.MultiWriter(w, f)
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
