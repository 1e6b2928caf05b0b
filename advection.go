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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// tracerAdvection transports the tracers through the mass fluxes the
// acoustic stage accumulated. The update is flux-form and
// mass-consistent: the working layer thickness starts from the
// pre-stage dp1 and is rebuilt from the same flux divergence that
// moved the air, so a uniform mixing ratio stays exactly uniform and
// the thickness finishes at the delp the dynamics produced. When the
// accumulated Courant numbers exceed 1 the transport is subcycled,
// with tracer halos refreshed between subcycles.
type tracerAdvection struct {
	plan *loopPlan
	grid *GridData
	comm Communicator

	dp1 *sparse.DenseArray // working thickness, persists across subcycles
	dp2 []float64          // next thickness, one level plane
	fx  []float64          // tracer face flows, reused per row
	fyS []float64
	fyN []float64
}

func newTracerAdvection(plan *loopPlan, grid *GridData, comm Communicator) *tracerAdvection {
	return &tracerAdvection{
		plan: plan,
		grid: grid,
		comm: comm,
		dp1:  plan.shape.zeros3(),
		dp2:  make([]float64, plan.nyF*plan.nxF),
		fx:   make([]float64, plan.nxF),
		fyS:  make([]float64, plan.nxF),
		fyN:  make([]float64, plan.nxF),
	}
}

// Advect transports all tracers over one outer iteration, consuming
// the dp1 thickness snapshot and the accumulated mfxd/mfyd/cxd/cyd,
// which are cleared on completion.
func (t *tracerAdvection) Advect(s *DycoreState, dp1 *sparse.DenseArray) error {
	copy(t.dp1.Elements, dp1.Elements)
	nsub := t.subcycleCount(s)
	frac := 1 / float64(nsub)
	for sub := 0; sub < nsub; sub++ {
		for i, name := range tracerNames {
			if err := t.comm.HaloUpdate(name, s.Tracers[i], t.plan.shape.NHalo); err != nil {
				return fmt.Errorf("pace: tracer advection: %v", err)
			}
		}
		for k := 0; k < t.plan.shape.Nz; k++ {
			t.nextThickness(s, k, frac)
			for _, q := range s.Tracers {
				t.advectLevel(s, q, k, frac)
			}
			t.commitThickness(k)
		}
	}
	for _, d := range []*sparse.DenseArray{s.Mfxd, s.Mfyd, s.Cxd, s.Cyd} {
		for i := range d.Elements {
			d.Elements[i] = 0
		}
	}
	return nil
}

// subcycleCount is the ceiling of the largest accumulated Courant
// number on any face of any level, and at least 1.
func (t *tracerAdvection) subcycleCount(s *DycoreState) int {
	p := t.plan
	cmax := 0.
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j <= p.je; j++ {
			for i := p.is; i <= p.ie; i++ {
				n := p.idx(k, j, i)
				if c := math.Abs(s.Cxd.Elements[n]); c > cmax {
					cmax = c
				}
				if c := math.Abs(s.Cyd.Elements[n]); c > cmax {
					cmax = c
				}
			}
		}
	}
	nsub := int(math.Ceil(cmax))
	if nsub < 1 {
		nsub = 1
	}
	return nsub
}

// nextThickness fills dp2 with the level's post-subcycle thickness,
// dp1 plus the scaled mass-flux divergence.
func (t *tracerAdvection) nextThickness(s *DycoreState, k int, frac float64) {
	p := t.plan
	for j := p.js; j < p.je; j++ {
		for i := p.is; i < p.ie; i++ {
			n := p.idx(k, j, i)
			g := p.idx2(j, i)
			div := (s.Mfxd.Elements[n] - s.Mfxd.Elements[n+1]) +
				(s.Mfyd.Elements[n] - s.Mfyd.Elements[n+p.strideJ])
			t.dp2[g] = t.dp1.Elements[n] + frac*div/t.grid.Area.Elements[g]
		}
	}
}

// advectLevel updates one tracer on one level with donor-cell face
// flows taken from the accumulated mass fluxes. Face flows are
// evaluated from pre-subcycle values throughout, using a rolling pair
// of y-face rows.
func (t *tracerAdvection) advectLevel(s *DycoreState, q *sparse.DenseArray, k int, frac float64) {
	p := t.plan
	fyS, fyN := t.fyS, t.fyN
	t.tracerFluxRowY(s, q, k, p.js, fyS)
	for j := p.js; j < p.je; j++ {
		t.tracerFluxRowY(s, q, k, j+1, fyN)
		for i := p.is; i <= p.ie; i++ {
			n := p.idx(k, j, i)
			t.fx[i] = donorFlow(s.Mfxd.Elements[n], q.Elements[n-1], q.Elements[n])
		}
		for i := p.is; i < p.ie; i++ {
			n := p.idx(k, j, i)
			g := p.idx2(j, i)
			div := (t.fx[i] - t.fx[i+1]) + (fyS[i] - fyN[i])
			q.Elements[n] = (q.Elements[n]*t.dp1.Elements[n] +
				frac*div/t.grid.Area.Elements[g]) / t.dp2[g]
		}
		fyS, fyN = fyN, fyS
	}
}

// tracerFluxRowY fills the south-face flows of row j for one tracer.
func (t *tracerAdvection) tracerFluxRowY(s *DycoreState, q *sparse.DenseArray, k, j int, fy []float64) {
	p := t.plan
	for i := p.is; i < p.ie; i++ {
		n := p.idx(k, j, i)
		fy[i] = donorFlow(s.Mfyd.Elements[n], q.Elements[n-p.strideJ], q.Elements[n])
	}
}

// donorFlow scales a face mass flux by the upwind mixing ratio.
func donorFlow(mf, qm, q float64) float64 {
	if mf > 0 {
		return mf * qm
	}
	return mf * q
}

// commitThickness makes dp2 the working thickness for the next
// subcycle.
func (t *tracerAdvection) commitThickness(k int) {
	p := t.plan
	for j := p.js; j < p.je; j++ {
		for i := p.is; i < p.ie; i++ {
			t.dp1.Elements[p.idx(k, j, i)] = t.dp2[p.idx2(j, i)]
		}
	}
}
