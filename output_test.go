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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func outputSetup(t *testing.T) (GridShape, *DycoreState) {
	t.Helper()
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	nyF, nxF := shape.padded()
	for k := 0; k < shape.Nz; k++ {
		for j := 0; j < nyF; j++ {
			for i := 0; i < nxF; i++ {
				n := k*nyF*nxF + j*nxF + i
				state.Ua.Elements[n] = float64(i) + 0.1*float64(k)
				state.Va.Elements[n] = float64(j) - 0.2*float64(k)
			}
		}
	}
	return shape, state
}

func TestOutputterExpression(t *testing.T) {
	const tolerance = 1.e-14
	shape, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{"ws": "sqrt(ua*ua+va*va)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := o.Results(state)
	if err != nil {
		t.Fatal(err)
	}
	ws := results["ws"]
	if len(ws.Shape) != 3 || ws.Shape[0] != shape.Nz ||
		ws.Shape[1] != shape.Ny || ws.Shape[2] != shape.Nx {
		t.Fatalf("ws shape %v, want [%d %d %d]", ws.Shape, shape.Nz, shape.Ny, shape.Nx)
	}
	for k := 0; k < shape.Nz; k++ {
		for j := 0; j < shape.Ny; j++ {
			for i := 0; i < shape.Nx; i++ {
				ua := float64(i+shape.NHalo) + 0.1*float64(k)
				va := float64(j+shape.NHalo) - 0.2*float64(k)
				want := math.Sqrt(ua*ua + va*va)
				if got := ws.Get(k, j, i); different(got, want, tolerance) {
					t.Fatalf("ws(%d,%d,%d) = %g, want %g", k, j, i, got, want)
				}
			}
		}
	}
}

// Without allLayers, three-dimensional results collapse to the lowest
// model layer.
func TestOutputterBottomLayer(t *testing.T) {
	shape, state := outputSetup(t)
	o, err := NewOutputter("", false, map[string]string{"ws": "sqrt(ua*ua+va*va)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := o.Results(state)
	if err != nil {
		t.Fatal(err)
	}
	ws := results["ws"]
	if len(ws.Shape) != 2 || ws.Shape[0] != shape.Ny || ws.Shape[1] != shape.Nx {
		t.Fatalf("ws shape %v, want [%d %d]", ws.Shape, shape.Ny, shape.Nx)
	}
	k := shape.Nz - 1
	ua := float64(shape.NHalo) + 0.1*float64(k)
	va := float64(shape.NHalo) - 0.2*float64(k)
	if got, want := ws.Get(0, 0), math.Sqrt(ua*ua+va*va); different(got, want, 1.e-14) {
		t.Errorf("ws(0,0) = %g, want %g from the bottom layer", got, want)
	}
}

// An output variable defined in terms of another output variable is
// expanded before evaluation.
func TestOutputterDerivedVariable(t *testing.T) {
	const tolerance = 1.e-12
	shape, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{
		"ws": "sqrt(ua*ua+va*va)",
		"ke": "ws*ws/2",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := o.Results(state)
	if err != nil {
		t.Fatal(err)
	}
	ke := results["ke"]
	for k := 0; k < shape.Nz; k++ {
		for j := 0; j < shape.Ny; j++ {
			for i := 0; i < shape.Nx; i++ {
				ua := float64(i+shape.NHalo) + 0.1*float64(k)
				va := float64(j+shape.NHalo) - 0.2*float64(k)
				want := (ua*ua + va*va) / 2
				if got := ke.Get(k, j, i); different(got, want, tolerance) {
					t.Fatalf("ke(%d,%d,%d) = %g, want %g", k, j, i, got, want)
				}
			}
		}
	}
}

func TestOutputterSum(t *testing.T) {
	const tolerance = 1.e-12
	shape, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{"psfrac": "ps/sum(ps)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := o.Results(state)
	if err != nil {
		t.Fatal(err)
	}
	frac := results["psfrac"]
	// Surface pressure is uniform, so every cell holds 1/(nx·ny).
	want := 1 / float64(shape.Nx*shape.Ny)
	for i, v := range frac.Elements {
		if different(v, want, tolerance) {
			t.Fatalf("psfrac[%d] = %g, want %g", i, v, want)
		}
	}
}

func TestOutputterUndefinedVariables(t *testing.T) {
	_, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{"x": "zzz + aaa"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = o.CheckOutputVars(state)
	if err == nil {
		t.Fatal("expected an error for undefined variables")
	}
	// Missing names are reported alphabetically.
	if !strings.Contains(err.Error(), "'aaa', 'zzz'") {
		t.Errorf("error %q does not list the undefined variables in order", err)
	}
}

func TestOutputterBadVariableName(t *testing.T) {
	_, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{"snow depth": "ps"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars(state); err == nil {
		t.Error("expected an error for an output name with a space")
	}
}

// Fields with different level counts cannot be mixed in one expression.
func TestOutputterLevelMismatch(t *testing.T) {
	_, state := outputSetup(t)
	o, err := NewOutputter("", true, map[string]string{"x": "pe - pt"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Results(state); err == nil {
		t.Error("expected an error for mixing interface and layer fields")
	}
}

func TestOutputterWritesFile(t *testing.T) {
	shape, state := outputSetup(t)
	name := filepath.Join(t.TempDir(), "out.nc")
	o, err := NewOutputter(name, false, map[string]string{
		"ps": "ps",
		"ws": "sqrt(ua*ua+va*va)",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output(state); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	arrays, units, _, err := readArrays(r)
	if err != nil {
		t.Fatal(err)
	}
	ps, ok := arrays["ps"]
	if !ok {
		t.Fatal("output file is missing ps")
	}
	if len(ps.Shape) != 2 || ps.Shape[0] != shape.Ny || ps.Shape[1] != shape.Nx {
		t.Fatalf("ps shape %v, want [%d %d]", ps.Shape, shape.Ny, shape.Nx)
	}
	for i, v := range ps.Elements {
		if v != testPRef {
			t.Fatalf("ps[%d] = %g, want %g", i, v, testPRef)
		}
	}
	// A passthrough expression keeps the field's units.
	if units["ps"] != "Pa" {
		t.Errorf("ps units %q, want Pa", units["ps"])
	}
	if _, ok := arrays["ws"]; !ok {
		t.Error("output file is missing ws")
	}
}
