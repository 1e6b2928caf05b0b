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
	"github.com/sirupsen/logrus"
)

// negativeTracerAdjustment removes the negative mixing ratios that
// flux-form transport leaves behind, without creating or destroying
// water mass. Negative condensate in a layer borrows mass from the
// layer below; a negative bottom layer borrows from the vapor in the
// same layer; negative vapor likewise borrows downward. Whatever
// deficit survives to the bottom vapor layer is left in place (and
// optionally logged) rather than invented. The cloud fraction is not a
// mass and is simply clamped at zero.
type negativeTracerAdjustment struct {
	plan          *loopPlan
	log           logrus.FieldLogger
	checkNegative bool
}

func newNegativeTracerAdjustment(plan *loopPlan, log logrus.FieldLogger, checkNegative bool) *negativeTracerAdjustment {
	return &negativeTracerAdjustment{plan: plan, log: log, checkNegative: checkNegative}
}

// Adjust rebalances the water species in every column of the compute
// domain.
func (a *negativeTracerAdjustment) Adjust(s *DycoreState) {
	p := a.plan
	nz := p.shape.Nz
	qv := s.Tracers[indexVapor]
	for j := p.js; j < p.je; j++ {
		for i := p.is; i < p.ie; i++ {
			for _, q := range s.Tracers.water()[1:] {
				for k := 0; k < nz-1; k++ {
					n := p.idx(k, j, i)
					if q.Elements[n] >= 0 {
						continue
					}
					b := p.idx(k+1, j, i)
					q.Elements[b] += q.Elements[n] *
						s.Delp.Elements[n] / s.Delp.Elements[b]
					q.Elements[n] = 0
				}
				n := p.idx(nz-1, j, i)
				if q.Elements[n] < 0 {
					qv.Elements[n] += q.Elements[n]
					q.Elements[n] = 0
				}
			}
			for k := 0; k < nz-1; k++ {
				n := p.idx(k, j, i)
				if qv.Elements[n] >= 0 {
					continue
				}
				b := p.idx(k+1, j, i)
				qv.Elements[b] += qv.Elements[n] *
					s.Delp.Elements[n] / s.Delp.Elements[b]
				qv.Elements[n] = 0
			}
			qc := s.Tracers[indexCloudFraction].Elements
			for k := 0; k < nz; k++ {
				m := p.idx(k, j, i)
				if qc[m] < 0 {
					qc[m] = 0
				}
			}
		}
	}
	if a.checkNegative {
		a.reportNegatives(s)
	}
}

// reportNegatives scans the water species for deficits the adjustment
// could not fill and logs a summary.
func (a *negativeTracerAdjustment) reportNegatives(s *DycoreState) {
	p := a.plan
	cells := 0
	min := 0.
	for _, q := range s.Tracers.water() {
		for k := 0; k < p.shape.Nz; k++ {
			for j := p.js; j < p.je; j++ {
				for i := p.is; i < p.ie; i++ {
					v := q.Elements[p.idx(k, j, i)]
					if v < 0 {
						cells++
						if v < min {
							min = v
						}
					}
				}
			}
		}
	}
	if cells > 0 {
		a.log.WithFields(logrus.Fields{
			"cells": cells,
			"min":   min,
		}).Warn("negative water mixing ratios remain after adjustment")
	}
}
