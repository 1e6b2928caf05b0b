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

package paceutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/twicki/pace"
)

// RunConfig collects the decoded options for one model run.
type RunConfig struct {
	NumTimesteps int
	Dt           float64

	GridFile           string
	InitialConditions  string
	InitialTemperature float64
	RestartFile        string

	OutputFile      string
	OutputEvery     int
	OutputAllLayers bool
	OutputVariables map[string]string

	CheckpointMode       string
	CheckpointDir        string
	CheckpointThresholds string

	CommAddress string
	CommRank    int
	CommSize    int

	// Shape, GridDx, and GridDy describe the uniform test grid built
	// when GridFile is empty.
	Shape          pace.GridShape
	GridDx, GridDy float64

	DynCore pace.DynamicalCoreConfig
}

// runConfig decodes the run options from a viper configuration.
func runConfig(cfg *viper.Viper) (*RunConfig, error) {
	c := &RunConfig{
		NumTimesteps:         cast.ToInt(cfg.Get("NumTimesteps")),
		Dt:                   cast.ToFloat64(cfg.Get("Dt")),
		GridFile:             os.ExpandEnv(cfg.GetString("GridFile")),
		InitialConditions:    os.ExpandEnv(cfg.GetString("InitialConditions")),
		InitialTemperature:   cast.ToFloat64(cfg.Get("InitialTemperature")),
		RestartFile:          os.ExpandEnv(cfg.GetString("RestartFile")),
		OutputFile:           os.ExpandEnv(cfg.GetString("OutputFile")),
		OutputEvery:          cast.ToInt(cfg.Get("OutputEvery")),
		OutputAllLayers:      cast.ToBool(cfg.Get("OutputAllLayers")),
		CheckpointMode:       cfg.GetString("Checkpoint.Mode"),
		CheckpointDir:        os.ExpandEnv(cfg.GetString("Checkpoint.Dir")),
		CheckpointThresholds: os.ExpandEnv(cfg.GetString("Checkpoint.Thresholds")),
		CommAddress:          cfg.GetString("Comm.Address"),
		CommRank:             cast.ToInt(cfg.Get("Comm.Rank")),
		CommSize:             cast.ToInt(cfg.Get("Comm.Size")),
		Shape: pace.GridShape{
			Nx:    cast.ToInt(cfg.Get("Grid.Nx")),
			Ny:    cast.ToInt(cfg.Get("Grid.Ny")),
			Nz:    cast.ToInt(cfg.Get("Grid.Nz")),
			NHalo: cast.ToInt(cfg.Get("Grid.NHalo")),
		},
		GridDx:  cast.ToFloat64(cfg.Get("Grid.Dx")),
		GridDy:  cast.ToFloat64(cfg.Get("Grid.Dy")),
		DynCore: dynCoreConfig(cfg),
	}
	vars, err := checkOutputVars(GetStringMapString("OutputVariables", cfg))
	if err != nil {
		return nil, err
	}
	c.OutputVariables = vars
	if c.NumTimesteps < 1 {
		return nil, fmt.Errorf("pace: NumTimesteps must be at least 1, got %d", c.NumTimesteps)
	}
	if c.OutputFile == "" {
		return nil, fmt.Errorf("pace: OutputFile must be specified")
	}
	switch c.CheckpointMode {
	case "none", "snapshot", "validate":
	default:
		return nil, fmt.Errorf("pace: Checkpoint.Mode must be none, snapshot, or validate; got %q",
			c.CheckpointMode)
	}
	return c, nil
}

// dynCoreConfig decodes the solver options from a viper configuration.
func dynCoreConfig(cfg *viper.Viper) pace.DynamicalCoreConfig {
	return pace.DynamicalCoreConfig{
		KSplit:        cast.ToInt(cfg.Get("DynCore.KSplit")),
		NSplit:        cast.ToInt(cfg.Get("DynCore.NSplit")),
		PRef:          cast.ToFloat64(cfg.Get("DynCore.PRef")),
		Hydrostatic:   cast.ToBool(cfg.Get("DynCore.Hydrostatic")),
		ZTracer:       cast.ToBool(cfg.Get("DynCore.ZTracer")),
		InlineQ:       cast.ToBool(cfg.Get("DynCore.InlineQ")),
		MoistPhys:     cast.ToBool(cfg.Get("DynCore.MoistPhys")),
		Adiabatic:     cast.ToBool(cfg.Get("DynCore.Adiabatic")),
		Nwat:          cast.ToInt(cfg.Get("DynCore.Nwat")),
		NfOmega:       cast.ToInt(cfg.Get("DynCore.NfOmega")),
		ConsvTe:       cast.ToFloat64(cfg.Get("DynCore.ConsvTe")),
		Tau:           cast.ToFloat64(cfg.Get("DynCore.Tau")),
		RfFast:        cast.ToBool(cfg.Get("DynCore.RfFast")),
		RfCutoff:      cast.ToFloat64(cfg.Get("DynCore.RfCutoff")),
		KordTm:        cast.ToInt(cfg.Get("DynCore.KordTm")),
		KordMt:        cast.ToInt(cfg.Get("DynCore.KordMt")),
		KordWz:        cast.ToInt(cfg.Get("DynCore.KordWz")),
		KordTr:        cast.ToInt(cfg.Get("DynCore.KordTr")),
		C2lOrd:        cast.ToInt(cfg.Get("DynCore.C2lOrd")),
		CheckNegative: cast.ToBool(cfg.Get("DynCore.CheckNegative")),
	}
}

// testGridPtop is the model-top pressure [Pa] of the uniform test
// grid's vertical coordinate.
const testGridPtop = 100.0

// testCoordinate builds the test grid's hybrid coefficients: a
// coordinate that transitions linearly from pure pressure at the
// model top to pure sigma at the surface.
func testCoordinate(nz int) (ak, bk []float64) {
	ak = make([]float64, nz+1)
	bk = make([]float64, nz+1)
	for k := 0; k <= nz; k++ {
		σ := float64(k) / float64(nz)
		ak[k] = testGridPtop * (1 - σ)
		bk[k] = σ
	}
	return ak, bk
}

// regularGrid builds uniform grid metrics from the Grid.* options.
func regularGrid(cfg *viper.Viper) (pace.GridShape, *pace.GridData, error) {
	shape := pace.GridShape{
		Nx:    cast.ToInt(cfg.Get("Grid.Nx")),
		Ny:    cast.ToInt(cfg.Get("Grid.Ny")),
		Nz:    cast.ToInt(cfg.Get("Grid.Nz")),
		NHalo: cast.ToInt(cfg.Get("Grid.NHalo")),
	}
	if err := shape.Check(); err != nil {
		return shape, nil, err
	}
	ak, bk := testCoordinate(shape.Nz)
	dx := cast.ToFloat64(cfg.Get("Grid.Dx"))
	dy := cast.ToFloat64(cfg.Get("Grid.Dy"))
	if dx <= 0 || dy <= 0 {
		return shape, nil, fmt.Errorf("pace: Grid.Dx (%g) and Grid.Dy (%g) must be positive", dx, dy)
	}
	return shape, pace.RegularGridData(shape, ak, bk, dx, dy), nil
}

// checkOutputVars removes end lines and expands environment variables
// in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("pace: there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, decoding it from JSON if it arrives as a string.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
