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
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestRestartRoundTrip(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	for i := range state.U.Elements {
		state.U.Elements[i] = math.Sin(float64(i))
		state.W.Elements[i] = 1.e-3 * float64(i)
		state.Tracers[indexOzone].Elements[i] = 1.e-7 * float64(i)
	}

	var buf bytes.Buffer
	if err := state.Save(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Shape != state.Shape {
		t.Fatalf("shape %+v, want %+v", loaded.Shape, state.Shape)
	}
	want := state.fieldsByName()
	for name, got := range loaded.fieldsByName() {
		w := want[name]
		if len(got.Elements) != len(w.Elements) {
			t.Fatalf("field %s has %d elements, want %d", name, len(got.Elements), len(w.Elements))
		}
		for i, v := range got.Elements {
			// Restarts must be exact, halos included.
			if v != w.Elements[i] {
				t.Fatalf("field %s element %d = %g, want %g", name, i, v, w.Elements[i])
			}
		}
	}
}

func TestLoadTruncatedStream(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	var buf bytes.Buffer
	if err := state.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bytes.NewReader(buf.Bytes()[:buf.Len()/2])); err == nil {
		t.Error("expected an error for a truncated stream")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load(strings.NewReader("not a restart stream")); err == nil {
		t.Error("expected an error for a non-gob stream")
	}
}

// A stream missing a field must fail validation rather than panic
// later.
func TestLoadRejectsMissingField(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	state.Omga = nil
	var buf bytes.Buffer
	if err := state.Save(&buf); err != nil {
		t.Fatal(err)
	}
	_, err := Load(&buf)
	if err == nil {
		t.Fatal("expected an error for a missing field")
	}
	if !strings.Contains(err.Error(), "omga") {
		t.Errorf("error %q does not name the missing field", err)
	}
}

func TestLoadRejectsBadShape(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	state.Shape.NHalo = 0
	var buf bytes.Buffer
	if err := state.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(&buf); err == nil {
		t.Error("expected an error for an invalid shape")
	}
}
