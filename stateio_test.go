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

	"github.com/ctessum/sparse"
	"github.com/kr/pretty"
)

func TestStateNetCDFRoundTrip(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	for i := range state.U.Elements {
		state.U.Elements[i] = math.Sin(float64(i))
		state.Tracers[indexVapor].Elements[i] = 1.e-5 * float64(i)
	}

	name := filepath.Join(t.TempDir(), "state.nc")
	w, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := state.WriteNetCDF(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	loaded, err := ReadState(r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(state.Shape, loaded.Shape); len(diff) > 0 {
		t.Fatalf("shape: %v", diff)
	}
	want := state.fieldsByName()
	for fieldName, got := range loaded.fieldsByName() {
		ref := want[fieldName]
		if diff := pretty.Diff(ref.Shape, got.Shape); len(diff) > 0 {
			t.Fatalf("field %s shape: %v", fieldName, diff)
		}
		for i, v := range got.Elements {
			if v != ref.Elements[i] {
				t.Fatalf("field %s element %d = %g, want %g", fieldName, i, v, ref.Elements[i])
			}
		}
	}
}

func TestGridNetCDFRoundTrip(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	ak, bk := testCoordinate(shape.Nz)
	grid := RegularGridData(shape, ak, bk, testDx, testDy)

	name := filepath.Join(t.TempDir(), "grid.nc")
	w, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := grid.WriteNetCDF(w, shape); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	loaded, loadedShape, err := ReadGridData(r)
	if err != nil {
		t.Fatal(err)
	}
	if loadedShape != shape {
		t.Fatalf("shape %+v, want %+v", loadedShape, shape)
	}
	if diff := pretty.Diff(grid.Ak, loaded.Ak); len(diff) > 0 {
		t.Errorf("ak: %v", diff)
	}
	if diff := pretty.Diff(grid.Bk, loaded.Bk); len(diff) > 0 {
		t.Errorf("bk: %v", diff)
	}
	if loaded.Ptop != grid.Ptop {
		t.Errorf("ptop = %g, want %g", loaded.Ptop, grid.Ptop)
	}
	if loaded.DaMin != grid.DaMin || loaded.DaMinC != grid.DaMinC {
		t.Errorf("da_min %g/%g, want %g/%g", loaded.DaMin, loaded.DaMinC, grid.DaMin, grid.DaMinC)
	}
	for i, v := range loaded.Area.Elements {
		if v != grid.Area.Elements[i] {
			t.Fatalf("area element %d = %g, want %g", i, v, grid.Area.Elements[i])
		}
	}
	if err := loaded.Check(shape); err != nil {
		t.Error(err)
	}
}

func TestReadStateVersionMismatch(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	name := filepath.Join(t.TempDir(), "stale.nc")
	w, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	arrays := map[string]*sparse.DenseArray{"ps": shape.zeros2()}
	err = writeArrays(w,
		[]string{"ps"},
		arrays,
		map[string]string{"ps": "Pa"},
		map[string]interface{}{"data_version": "0.0"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	_, err = ReadState(r)
	if err == nil {
		t.Fatal("expected an error for a stale data version")
	}
	if !strings.Contains(err.Error(), "data version") {
		t.Errorf("error %q does not mention the data version", err)
	}
}
