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

import "github.com/ctessum/sparse"

// moistCV returns the moist specific heat at constant volume and the
// total condensate mixing ratio for one cell, from the six water
// species.
func moistCV(qvapor, qliquid, qrain, qsnow, qice, qgraupel float64) (cvm, qcon float64) {
	liq := qliquid + qrain
	sol := qice + qsnow + qgraupel
	qcon = liq + sol
	cvm = (1-(qvapor+qcon))*cvAir + qvapor*cvVap + liq*cLiq + sol*cIce
	return cvm, qcon
}

// moistSetup fills the moist thermodynamic fields over the compute
// domain: the cvm scratch field, q_con, cappa, and dp1 = zvir·qvapor
// (dp1 doubles as scratch for the virtual-temperature increment until
// the outer loop reuses it for layer thickness).
func moistSetup(p *loopPlan, s *DycoreState, cvm, dp1 *sparse.DenseArray) {
	qv := s.Tracers[indexVapor].Elements
	ql := s.Tracers[indexLiquid].Elements
	qr := s.Tracers[indexRain].Elements
	qs := s.Tracers[indexSnow].Elements
	qi := s.Tracers[indexIce].Elements
	qg := s.Tracers[indexGraupel].Elements
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				cv, qcon := moistCV(qv[n], ql[n], qr[n], qs[n], qi[n], qg[n])
				cvm.Elements[n] = cv
				s.QCon.Elements[n] = qcon
				d := zvir * qv[n]
				dp1.Elements[n] = d
				s.Cappa.Elements[n] = rdgas / (rdgas + cv/(1+d))
			}
		}
	}
}

// ptAdjust converts temperature to the virtual form the acoustic
// stepper advances: pt *= (1 + dp1)·(1 - q_con)/pkz, with dp1 holding
// zvir·qvapor. With dry air (dp1 = 0, q_con = 0) this reduces to
// pt/pkz exactly.
func ptAdjust(p *loopPlan, s *DycoreState, dp1 *sparse.DenseArray) {
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				s.Pt.Elements[n] *= (1 + dp1.Elements[n]) * (1 - s.QCon.Elements[n]) / s.Pkz.Elements[n]
			}
		}
	}
}

// ptRestore inverts ptAdjust after the final vertical remap,
// recomputing the moist factors from the remapped tracers first so the
// restored temperature is consistent with the new moisture and Exner
// fields.
func ptRestore(p *loopPlan, s *DycoreState, cvm, dp1 *sparse.DenseArray) {
	moistSetup(p, s, cvm, dp1)
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				s.Pt.Elements[n] *= s.Pkz.Elements[n] /
					((1 + dp1.Elements[n]) * (1 - s.QCon.Elements[n]))
			}
		}
	}
}
