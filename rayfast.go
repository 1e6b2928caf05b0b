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

import "math"

// rayleighDamping relaxes the winds toward rest in the sponge layers
// near the model top, inside every acoustic substep (the "fast" form;
// the slow once-per-remap form is not implemented). The per-level
// coefficients depend only on the reference pressures, so they are
// precomputed at construction.
type rayleighDamping struct {
	rf   []float64 // per-level relaxation increment; 0 disables the level
	kmax int       // one past the deepest damped level
}

// newRayleighDamping precomputes the relaxation profile
// rf(k) = dt/(tau·86400) · sin²(π/2 · ln(cutoff/pfull(k))/ln(cutoff/ptop))
// for the levels with pfull < cutoff. A zero tau disables damping
// entirely (returns nil; the methods are nil-safe).
func newRayleighDamping(pfull []float64, ptop, tau, rfCutoff, dt float64) *rayleighDamping {
	if tau == 0 {
		return nil
	}
	r := &rayleighDamping{rf: make([]float64, len(pfull))}
	scale := dt / (math.Abs(tau) * secPerDay)
	denom := math.Log(rfCutoff / ptop)
	for k, pf := range pfull {
		if pf >= rfCutoff {
			// Reference pressure increases downward, so no deeper
			// level qualifies either.
			break
		}
		sin := math.Sin(0.5 * math.Pi * math.Log(rfCutoff/pf) / denom)
		v := scale * sin * sin
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		r.rf[k] = v
		r.kmax = k + 1
	}
	return r
}

// damp applies the relaxation to u, v, and w over the compute domain
// and accumulates the implied kinetic-energy loss into diss_estd.
func (r *rayleighDamping) damp(p *loopPlan, s *DycoreState) {
	if r == nil || r.kmax == 0 {
		return
	}
	for k := 0; k < r.kmax; k++ {
		if r.rf[k] == 0 {
			continue
		}
		f := 1 / (1 + r.rf[k])
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				u0 := s.U.Elements[n]
				v0 := s.V.Elements[n]
				w0 := s.W.Elements[n]
				s.U.Elements[n] = u0 * f
				s.V.Elements[n] = v0 * f
				s.W.Elements[n] = w0 * f
				s.DissEstd.Elements[n] += 0.5 * (u0*u0 + v0*v0 + w0*w0) * (1 - f*f)
			}
		}
	}
}
