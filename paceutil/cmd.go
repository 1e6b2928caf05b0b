/*
Copyright © 2021 the Pace authors.
This file is part of Pace.

Pace is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Pace is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Pace.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package paceutil wires the pace dynamical core into a command-line
// model driver.
package paceutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/twicki/pace"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Pace.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the amount of log output: one of debug,
              info, warn, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NumTimesteps",
			usage: `
              NumTimesteps is the number of model timesteps to run.`,
			shorthand:  "n",
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dt",
			usage: `
              Dt is the model (advective) timestep duration [s]. The
              acoustic substep is Dt / (DynCore.KSplit · DynCore.NSplit).`,
			defaultVal: 225.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "GridFile",
			usage: `
              GridFile is the path to the NetCDF grid-metric file for
              this rank, as written by the grid command or by the
              upstream grid generator. If empty, a uniform test grid
              is built from the Grid.* options instead.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "InitialConditions",
			usage: `
              InitialConditions is the path to a NetCDF state file to
              start from. If empty, the run starts from a resting
              isothermal atmosphere.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RestartFile",
			usage: `
              RestartFile, if nonempty, receives the final model state
              as a gob stream that a later run can Load.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file
              location. The step number replaces [step] in the path.`,
			defaultVal: "output_[step].nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputEvery",
			usage: `
              OutputEvery writes diagnostics every this many steps;
              0 writes only after the final step.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputAllLayers",
			usage: `
              OutputAllLayers specifies whether to output data for all
              vertical layers. Default is to only output the lowest
              layer.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be
              included in the output file, as expressions over the
              state field names.`,
			defaultVal: map[string]string{
				"ws":   "sqrt(ua*ua+va*va)",
				"ps":   "ps",
				"omga": "omga",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Checkpoint.Mode",
			usage: `
              Checkpoint.Mode selects the step-boundary checkpoint
              sink: none, snapshot (write reference files), or
              validate (compare against reference files).`,
			defaultVal: "none",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Checkpoint.Dir",
			usage: `
              Checkpoint.Dir is the directory snapshots are written to
              or validated against.`,
			defaultVal: "checkpoints",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Checkpoint.Thresholds",
			usage: `
              Checkpoint.Thresholds is a TOML file of per-field
              relative error tolerances for validation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Comm.Address",
			usage: `
              Comm.Address is the halo relay address for multi-process
              runs. If empty, the run uses a single in-process rank
              with doubly-periodic boundaries.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), relayCmd.Flags()},
		},
		{
			name: "Comm.Rank",
			usage: `
              Comm.Rank is this process's rank in the cubed-sphere
              topology.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Comm.Size",
			usage: `
              Comm.Size is the total number of ranks (1 or 6).`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of grid cells in the x direction on
              this rank.`,
			defaultVal: 12,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of grid cells in the y direction on
              this rank.`,
			defaultVal: 12,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Nz",
			usage: `
              Grid.Nz is the number of vertical layers.`,
			defaultVal: 20,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.NHalo",
			usage: `
              Grid.NHalo is the halo width in grid cells.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the grid cell length in the x direction [m]
              for the uniform test grid.`,
			defaultVal: 100000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the grid cell length in the y direction [m]
              for the uniform test grid.`,
			defaultVal: 100000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "InitialTemperature",
			usage: `
              InitialTemperature is the uniform temperature [K] of the
              isothermal starting state used when InitialConditions is
              empty.`,
			defaultVal: 280.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.KSplit",
			usage: `
              DynCore.KSplit is the number of vertical-remapping outer
              loops per timestep.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.NSplit",
			usage: `
              DynCore.NSplit is the number of acoustic substeps per
              outer loop.`,
			defaultVal: 6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.PRef",
			usage: `
              DynCore.PRef is the reference surface pressure [Pa].`,
			defaultVal: 1.0e5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.Hydrostatic",
			usage: `
              DynCore.Hydrostatic requests the hydrostatic solver,
              which this model does not include; a run configured with
              it stops at the first step.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.ZTracer",
			usage: `
              DynCore.ZTracer enables split tracer advection; it must
              be true.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.InlineQ",
			usage: `
              DynCore.InlineQ advects tracers inside the acoustic loop;
              it must be false.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.MoistPhys",
			usage: `
              DynCore.MoistPhys enables moist thermodynamics; it must
              be true.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.Adiabatic",
			usage: `
              DynCore.Adiabatic disables moisture sources entirely.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.Nwat",
			usage: `
              DynCore.Nwat is the number of water species; the solver
              is compiled for 6.`,
			defaultVal: 6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.NfOmega",
			usage: `
              DynCore.NfOmega is the number of hyperdiffusion rounds
              applied to the vertical pressure velocity after the
              final remap; 0 disables.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.ConsvTe",
			usage: `
              DynCore.ConsvTe is the fraction of total energy to
              restore during remapping; only 0 is supported.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.Tau",
			usage: `
              DynCore.Tau is the Rayleigh friction time scale [days];
              0 disables damping.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.RfFast",
			usage: `
              DynCore.RfFast selects the fast (acoustic-loop) Rayleigh
              damping, the only form supported when Tau is nonzero.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.RfCutoff",
			usage: `
              DynCore.RfCutoff is the pressure [Pa] above which
              Rayleigh damping applies.`,
			defaultVal: 750.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.KordTm",
			usage: `
              DynCore.KordTm is the temperature remapping order;
              negative remaps conservatively.`,
			defaultVal: -9,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.KordMt",
			usage: `
              DynCore.KordMt is the momentum remapping order.`,
			defaultVal: 9,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.KordWz",
			usage: `
              DynCore.KordWz is the vertical-wind remapping order.`,
			defaultVal: 9,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.KordTr",
			usage: `
              DynCore.KordTr is the tracer remapping order.`,
			defaultVal: 9,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.C2lOrd",
			usage: `
              DynCore.C2lOrd is the interpolation order (2 or 4) for
              the cube-to-lat-lon wind recomputation.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DynCore.CheckNegative",
			usage: `
              DynCore.CheckNegative logs residual negative mixing
              ratios after the adjustment pass.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("PACE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
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
	Root.AddCommand(gridCmd)
	Root.AddCommand(relayCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("pace: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("pace: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "pace",
	Short: "A finite-volume atmospheric dynamical core.",
	Long: `Pace integrates the equations of atmospheric motion on a cubed-sphere
grid with a split-explicit nonhydrostatic finite-volume scheme.
Use the subcommands specified below to access the model functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'PACE_var' where 'var' is
the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Pace.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Pace v%s\n", pace.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run advances the model NumTimesteps steps from the initial conditions
and writes the configured diagnostics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cfg, logrus.StandardLogger())
	},
	DisableAutoGenTag: true,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Write a uniform test grid file.",
	Long: `grid builds uniform grid metrics from the Grid.* options and writes
them to GridFile for later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shape, grid, err := regularGrid(Cfg)
		if err != nil {
			return err
		}
		fname := os.ExpandEnv(Cfg.GetString("GridFile"))
		if fname == "" {
			return fmt.Errorf("pace: the grid command requires GridFile")
		}
		w, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("pace: creating grid file: %v", err)
		}
		defer w.Close()
		return grid.WriteNetCDF(w, shape)
	},
	DisableAutoGenTag: true,
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve the halo relay for multi-process runs.",
	Long: `relay runs the rendezvous server that ranks of a multi-process run
exchange halo data through, listening on Comm.Address until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := Cfg.GetString("Comm.Address")
		if addr == "" {
			return fmt.Errorf("pace: the relay command requires Comm.Address")
		}
		l, err := pace.ServeRelay(addr)
		if err != nil {
			return err
		}
		logrus.WithField("address", l.Addr().String()).Info("halo relay listening")
		select {} // Serve until killed.
	},
	DisableAutoGenTag: true,
}
