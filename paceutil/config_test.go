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
	"testing"

	"github.com/lnashier/viper"
)

// testViper builds a minimal valid run configuration.
func testViper() *viper.Viper {
	cfg := viper.New()
	cfg.Set("NumTimesteps", 10)
	cfg.Set("Dt", 225.0)
	cfg.Set("OutputFile", "out_[step].nc")
	cfg.Set("OutputEvery", 5)
	cfg.Set("OutputVariables", `{"ws":"sqrt(ua*ua+va*va)","ps":"ps"}`)
	cfg.Set("Checkpoint.Mode", "none")
	cfg.Set("InitialTemperature", 280.0)
	cfg.Set("Grid.Nx", 12)
	cfg.Set("Grid.Ny", 12)
	cfg.Set("Grid.Nz", 8)
	cfg.Set("Grid.NHalo", 3)
	cfg.Set("Grid.Dx", 1000.0)
	cfg.Set("Grid.Dy", 1000.0)
	cfg.Set("Comm.Size", 1)
	cfg.Set("DynCore.KSplit", 2)
	cfg.Set("DynCore.NSplit", 6)
	cfg.Set("DynCore.PRef", 1.e5)
	cfg.Set("DynCore.ZTracer", true)
	cfg.Set("DynCore.MoistPhys", true)
	cfg.Set("DynCore.Nwat", 6)
	cfg.Set("DynCore.NfOmega", 1)
	cfg.Set("DynCore.RfCutoff", 750.0)
	cfg.Set("DynCore.KordTm", -9)
	cfg.Set("DynCore.KordMt", 9)
	cfg.Set("DynCore.KordWz", 9)
	cfg.Set("DynCore.KordTr", 9)
	cfg.Set("DynCore.C2lOrd", 4)
	return cfg
}

func TestRunConfigDecode(t *testing.T) {
	c, err := runConfig(testViper())
	if err != nil {
		t.Fatal(err)
	}
	if c.NumTimesteps != 10 || c.Dt != 225.0 {
		t.Errorf("NumTimesteps/Dt = %d/%g, want 10/225", c.NumTimesteps, c.Dt)
	}
	if c.Shape.Nx != 12 || c.Shape.NHalo != 3 {
		t.Errorf("shape %+v, want nx 12 and nhalo 3", c.Shape)
	}
	if c.OutputVariables["ws"] != "sqrt(ua*ua+va*va)" {
		t.Errorf("OutputVariables = %v", c.OutputVariables)
	}
	if c.DynCore.KSplit != 2 || c.DynCore.KordTm != -9 || !c.DynCore.ZTracer {
		t.Errorf("DynCore = %+v", c.DynCore)
	}
}

func TestRunConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"zero timesteps", func(cfg *viper.Viper) { cfg.Set("NumTimesteps", 0) }},
		{"empty output file", func(cfg *viper.Viper) { cfg.Set("OutputFile", "") }},
		{"bad checkpoint mode", func(cfg *viper.Viper) { cfg.Set("Checkpoint.Mode", "sometimes") }},
		{"no output variables", func(cfg *viper.Viper) { cfg.Set("OutputVariables", "{}") }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testViper()
			test.mutate(cfg)
			if _, err := runConfig(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRegularGrid(t *testing.T) {
	cfg := testViper()
	shape, grid, err := regularGrid(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := grid.Check(shape); err != nil {
		t.Fatal(err)
	}
	if grid.Ptop != testGridPtop {
		t.Errorf("ptop = %g, want %g", grid.Ptop, testGridPtop)
	}
	if len(grid.Ak) != shape.Nz+1 {
		t.Errorf("ak has %d levels, want %d", len(grid.Ak), shape.Nz+1)
	}

	cfg.Set("Grid.Dx", -1.0)
	if _, _, err := regularGrid(cfg); err == nil {
		t.Error("expected an error for a negative grid spacing")
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("FromJSON", `{"a":"1","b":"2"}`)
	cfg.Set("FromMap", map[string]interface{}{"a": "1"})
	if m := GetStringMapString("FromJSON", cfg); m["a"] != "1" || m["b"] != "2" {
		t.Errorf("FromJSON = %v", m)
	}
	if m := GetStringMapString("FromMap", cfg); m["a"] != "1" {
		t.Errorf("FromMap = %v", m)
	}
}
