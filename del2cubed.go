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

// hyperdiffusion smooths a field with repeated second-order diffusive
// rounds. Each round reads one ring of cells around its evaluation
// domain, so the first of nf rounds runs on the domain grown by nf-1
// cells and the rounds shrink inward; one halo exchange before Damp
// then serves all rounds, provided the halo is at least nf wide.
type hyperdiffusion struct {
	plan *loopPlan
	grid *GridData

	fx, fyS, fyN []float64
}

func newHyperdiffusion(plan *loopPlan, grid *GridData) *hyperdiffusion {
	return &hyperdiffusion{
		plan: plan,
		grid: grid,
		fx:   make([]float64, plan.nxF),
		fyS:  make([]float64, plan.nxF),
		fyN:  make([]float64, plan.nxF),
	}
}

// Damp applies nf diffusive rounds to q in place with damping
// coefficient cd [m2]. The caller exchanges halos beforehand.
func (h *hyperdiffusion) Damp(q *sparse.DenseArray, cd float64, nf int) {
	for n := 0; n < nf; n++ {
		h.round(q, cd, nf-1-n)
	}
}

// round applies one diffusive pass on the compute domain grown by g
// cells, with all face gradients evaluated from pre-round values.
func (h *hyperdiffusion) round(q *sparse.DenseArray, cd float64, g int) {
	p := h.plan
	is, ie := p.is-g, p.ie+g
	js, je := p.js-g, p.je+g
	for k := 0; k < q.Shape[0]; k++ {
		fyS, fyN := h.fyS, h.fyN
		h.gradRowY(q, k, js, is, ie, fyS)
		for j := js; j < je; j++ {
			h.gradRowY(q, k, j+1, is, ie, fyN)
			for i := is; i <= ie; i++ {
				n := k*p.strideK + p.idx2(j, i)
				g2 := p.idx2(j, i)
				h.fx[i] = (q.Elements[n-1] - q.Elements[n]) *
					h.grid.Dy.Elements[g2] / h.grid.Dx.Elements[g2]
			}
			for i := is; i < ie; i++ {
				n := k*p.strideK + p.idx2(j, i)
				g2 := p.idx2(j, i)
				q.Elements[n] += cd * ((h.fx[i] - h.fx[i+1]) + (fyS[i] - fyN[i])) /
					h.grid.Area.Elements[g2]
			}
			fyS, fyN = fyN, fyS
		}
	}
}

// gradRowY fills the south-face gradient flows of row j.
func (h *hyperdiffusion) gradRowY(q *sparse.DenseArray, k, j, is, ie int, fy []float64) {
	p := h.plan
	for i := is; i < ie; i++ {
		n := k*p.strideK + p.idx2(j, i)
		g2 := p.idx2(j, i)
		fy[i] = (q.Elements[n-p.strideJ] - q.Elements[n]) *
			h.grid.Dx.Elements[g2] / h.grid.Dy.Elements[g2]
	}
}
