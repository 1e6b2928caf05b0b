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
	"testing"
)

func TestMoistCVDryAir(t *testing.T) {
	cvm, qcon := moistCV(0, 0, 0, 0, 0, 0)
	if cvm != cvAir {
		t.Errorf("dry cvm = %g, want %g", cvm, cvAir)
	}
	if qcon != 0 {
		t.Errorf("dry q_con = %g, want 0", qcon)
	}
}

func TestMoistCVCondensate(t *testing.T) {
	const tolerance = 1.e-14
	qv, ql, qr, qs, qi, qg := 0.01, 0.001, 0.0005, 0.0002, 0.0001, 0.0003
	cvm, qcon := moistCV(qv, ql, qr, qs, qi, qg)
	liq := ql + qr
	sol := qi + qs + qg
	if different(qcon, liq+sol, tolerance) {
		t.Errorf("q_con = %g, want %g", qcon, liq+sol)
	}
	want := (1-(qv+qcon))*cvAir + qv*cvVap + liq*cLiq + sol*cIce
	if different(cvm, want, tolerance) {
		t.Errorf("cvm = %g, want %g", cvm, want)
	}
	// Water vapor and condensate both carry more heat than the dry
	// air they displace.
	if cvm <= cvAir {
		t.Errorf("moist cvm = %g not above dry %g", cvm, cvAir)
	}
}

// With no moisture, the temperature scaling reduces to pt/pkz exactly.
func TestPtAdjustDry(t *testing.T) {
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	want := state.Copy()

	plan, err := compiledPlan(planSpec{Shape: shape, ZTracer: true, NSplit: 1, Nwat: 6, C2lOrd: 4})
	if err != nil {
		t.Fatal(err)
	}
	cvm := shape.zeros3()
	dp1 := shape.zeros3()
	moistSetup(plan, state, cvm, dp1)
	ptAdjust(plan, state, dp1)

	nyF, nxF := shape.padded()
	for k := 0; k < shape.Nz; k++ {
		for j := shape.NHalo; j < shape.NHalo+shape.Ny; j++ {
			for i := shape.NHalo; i < shape.NHalo+shape.Nx; i++ {
				n := k*nyF*nxF + j*nxF + i
				if state.Pt.Elements[n] != want.Pt.Elements[n]/state.Pkz.Elements[n] {
					t.Fatalf("pt(%d,%d,%d) = %g, want pt/pkz = %g", k, j, i,
						state.Pt.Elements[n], want.Pt.Elements[n]/state.Pkz.Elements[n])
				}
				if state.Cappa.Elements[n] != κ {
					t.Fatalf("dry cappa(%d,%d,%d) = %g, want %g", k, j, i,
						state.Cappa.Elements[n], κ)
				}
			}
		}
	}
}

// The scaling and its inverse compose to the identity when the
// moisture and Exner fields are unchanged in between.
func TestPtAdjustRestoreRoundTrip(t *testing.T) {
	const tolerance = 1.e-14
	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)

	nyF, nxF := shape.padded()
	for k := 0; k < shape.Nz; k++ {
		for j := 0; j < nyF; j++ {
			for i := 0; i < nxF; i++ {
				n := k*nyF*nxF + j*nxF + i
				state.Tracers[indexVapor].Elements[n] = 0.01
				state.Tracers[indexLiquid].Elements[n] = 0.002
			}
		}
	}
	want := state.Copy()

	plan, err := compiledPlan(planSpec{Shape: shape, ZTracer: true, NSplit: 1, Nwat: 6, C2lOrd: 4})
	if err != nil {
		t.Fatal(err)
	}
	cvm := shape.zeros3()
	dp1 := shape.zeros3()
	moistSetup(plan, state, cvm, dp1)
	ptAdjust(plan, state, dp1)
	ptRestore(plan, state, cvm, dp1)

	for k := 0; k < shape.Nz; k++ {
		for j := shape.NHalo; j < shape.NHalo+shape.Ny; j++ {
			for i := shape.NHalo; i < shape.NHalo+shape.Nx; i++ {
				n := k*nyF*nxF + j*nxF + i
				if different(state.Pt.Elements[n], want.Pt.Elements[n], tolerance) {
					t.Fatalf("pt(%d,%d,%d) = %g, want %g", k, j, i,
						state.Pt.Elements[n], want.Pt.Elements[n])
				}
			}
		}
	}
}

func TestMoistSetupCappa(t *testing.T) {
	const tolerance = 1.e-14
	qv := 0.015
	cvm, _ := moistCV(qv, 0, 0, 0, 0, 0)
	d := zvir * qv
	want := rdgas / (rdgas + cvm/(1+d))
	if math.IsNaN(want) || want <= 0 || want >= 1 {
		t.Fatalf("reference cappa %g out of range", want)
	}

	shape := GridShape{Nx: 4, Ny: 4, Nz: 3, NHalo: 3}
	_, state, _ := testSetup(t, shape)
	nyF, nxF := shape.padded()
	for i := range state.Tracers[indexVapor].Elements {
		state.Tracers[indexVapor].Elements[i] = qv
	}
	plan, err := compiledPlan(planSpec{Shape: shape, ZTracer: true, NSplit: 1, Nwat: 6, C2lOrd: 4})
	if err != nil {
		t.Fatal(err)
	}
	moistSetup(plan, state, shape.zeros3(), shape.zeros3())
	n := nyF*nxF + shape.NHalo*nxF + shape.NHalo
	if different(state.Cappa.Elements[n], want, tolerance) {
		t.Errorf("cappa = %g, want %g", state.Cappa.Elements[n], want)
	}
}
