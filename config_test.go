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

package pace

import (
	"errors"
	"testing"
)

func TestConfigRejections(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(*DynamicalCoreConfig)
		notImplemented bool
	}{
		{"no moist_phys", func(c *DynamicalCoreConfig) { c.MoistPhys = false }, false},
		{"nwat 4", func(c *DynamicalCoreConfig) { c.Nwat = 4 }, false},
		{"nwat 7", func(c *DynamicalCoreConfig) { c.Nwat = 7 }, false},
		{"inline_q", func(c *DynamicalCoreConfig) { c.InlineQ = true }, true},
		{"no z_tracer", func(c *DynamicalCoreConfig) { c.ZTracer = false }, true},
		{"k_split 0", func(c *DynamicalCoreConfig) { c.KSplit = 0 }, false},
		{"n_split 0", func(c *DynamicalCoreConfig) { c.NSplit = 0 }, false},
		{"p_ref 0", func(c *DynamicalCoreConfig) { c.PRef = 0 }, false},
		{"c2l_ord 3", func(c *DynamicalCoreConfig) { c.C2lOrd = 3 }, false},
		{"negative nf_omega", func(c *DynamicalCoreConfig) { c.NfOmega = -1 }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultDynamicalCoreConfig()
			test.mutate(&cfg)
			err := cfg.check()
			if err == nil {
				t.Fatal("expected an error")
			}
			if test.notImplemented && !errors.Is(err, ErrNotImplemented) {
				t.Errorf("error %q does not wrap ErrNotImplemented", err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultDynamicalCoreConfig().check(); err != nil {
		t.Error(err)
	}
}

// Construction with an invalid water-species count must fail before
// any state is touched.
func TestConstructionRejectsBadNwat(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 6, Nz: 8, NHalo: 3}
	grid, state, comm := testSetup(t, shape)
	want := state.Copy()

	cfg := DefaultDynamicalCoreConfig()
	cfg.Nwat = 5
	if _, err := NewDynamicalCore(comm, cfg, grid, testDt, state, nil, nil); err == nil {
		t.Fatal("expected an error for nwat = 5")
	}
	for i, v := range state.Pt.Elements {
		if v != want.Pt.Elements[i] {
			t.Fatalf("pt[%d] mutated by a failed construction", i)
		}
	}
}

func TestConstructionShapeChecks(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 6, Nz: 8, NHalo: 1}
	grid, state, comm := testSetup(t, shape)

	// 4th-order cube-to-lat-lon reads two cells into the halo.
	cfg := DefaultDynamicalCoreConfig()
	cfg.C2lOrd = 4
	cfg.NfOmega = 1
	if _, err := NewDynamicalCore(comm, cfg, grid, testDt, state, nil, nil); err == nil {
		t.Error("expected an error for c2l_ord 4 with a 1-cell halo")
	}

	// Each hyperdiffusion round consumes a halo cell.
	cfg = DefaultDynamicalCoreConfig()
	cfg.C2lOrd = 2
	cfg.NfOmega = 2
	if _, err := NewDynamicalCore(comm, cfg, grid, testDt, state, nil, nil); err == nil {
		t.Error("expected an error for nf_omega exceeding the halo width")
	}
}
