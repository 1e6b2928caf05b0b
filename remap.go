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

	"github.com/ctessum/sparse"
)

// lagrangianToEulerian puts the vertical coordinate back. The acoustic
// stage lets the layers deform with the flow; at the end of each outer
// iteration this remap redistributes every column conservatively from
// the deformed interfaces (accumulated from delp) onto the reference
// hybrid interfaces ak + bk·ps, then rebuilds the derived pressure
// fields. Columns are independent, so no halo exchange is involved.
//
// The within-layer reconstruction is selected by the kord options:
// magnitudes of 4 and below integrate piecewise-constant layer means;
// larger magnitudes use limited piecewise-linear profiles. Target
// layers reaching outside the source column take the nearest source
// layer's value.
type lagrangianToEulerian struct {
	plan                           *loopPlan
	grid                           *GridData
	kordTm, kordMt, kordWz, kordTr int

	// column scratch
	pe1, pe2        []float64
	src, dst, slope []float64
	ratio, ratioDst []float64
}

func newLagrangianToEulerian(plan *loopPlan, grid *GridData, cfg DynamicalCoreConfig) *lagrangianToEulerian {
	nz := plan.shape.Nz
	return &lagrangianToEulerian{
		plan:     plan,
		grid:     grid,
		kordTm:   cfg.KordTm,
		kordMt:   cfg.KordMt,
		kordWz:   cfg.KordWz,
		kordTr:   cfg.KordTr,
		pe1:      make([]float64, plan.ncol),
		pe2:      make([]float64, plan.ncol),
		src:      make([]float64, nz),
		dst:      make([]float64, nz),
		slope:    make([]float64, nz),
		ratio:    make([]float64, nz),
		ratioDst: make([]float64, nz),
	}
}

// Remap redistributes pt, the winds, and the tracers onto the
// reference coordinate, updates ps, delp, and delz, and rebuilds pe,
// peln, pk, and pkz over the compute domain.
func (r *lagrangianToEulerian) Remap(s *DycoreState) {
	p := r.plan
	nz := p.shape.Nz
	for j := p.js; j < p.je; j++ {
		for i := p.is; i < p.ie; i++ {
			r.pe1[0] = r.grid.Ptop
			for k := 0; k < nz; k++ {
				n := p.idx(k, j, i)
				r.pe1[k+1] = r.pe1[k] + s.Delp.Elements[n]
				// Specific thickness rides along as an intensive
				// column so delz stays proportional to the mass.
				r.ratio[k] = s.Delz.Elements[n] / s.Delp.Elements[n]
			}
			ps := r.pe1[nz]
			s.Ps.Elements[p.idx2(j, i)] = ps
			for k := 0; k <= nz; k++ {
				r.pe2[k] = r.grid.Ak[k] + r.grid.Bk[k]*ps
			}

			r.remapField(s.Pt, j, i, r.kordTm)
			r.remapField(s.U, j, i, r.kordMt)
			r.remapField(s.V, j, i, r.kordMt)
			r.remapField(s.W, j, i, r.kordWz)
			for _, q := range s.Tracers {
				r.remapField(q, j, i, r.kordTr)
			}
			r.rebuildColumn(s, j, i)
		}
	}
}

// remapField remaps one column of q in place.
func (r *lagrangianToEulerian) remapField(q *sparse.DenseArray, j, i, kord int) {
	p := r.plan
	nz := p.shape.Nz
	for k := 0; k < nz; k++ {
		r.src[k] = q.Elements[p.idx(k, j, i)]
	}
	remapColumn(r.src, r.reconstruct(r.src, kord), r.pe1, r.pe2, r.dst)
	for k := 0; k < nz; k++ {
		q.Elements[p.idx(k, j, i)] = r.dst[k]
	}
}

// reconstruct returns the within-layer slopes for the given remapping
// order, or nil for the piecewise-constant orders.
func (r *lagrangianToEulerian) reconstruct(src []float64, kord int) []float64 {
	if kord >= -4 && kord <= 4 {
		return nil
	}
	plmSlopes(src, r.slope)
	return r.slope
}

// rebuildColumn finishes one column: remaps the specific thickness,
// writes the new delp and delz, and rebuilds the interface and
// layer-mean pressure fields.
func (r *lagrangianToEulerian) rebuildColumn(s *DycoreState, j, i int) {
	p := r.plan
	nz := p.shape.Nz
	remapColumn(r.ratio, r.reconstruct(r.ratio, r.kordWz), r.pe1, r.pe2, r.ratioDst)
	for k := 0; k <= nz; k++ {
		n := p.idx(k, j, i)
		s.Pe.Elements[n] = r.pe2[k]
		s.Peln.Elements[n] = math.Log(r.pe2[k])
		s.Pk.Elements[n] = math.Pow(r.pe2[k], κ)
	}
	for k := 0; k < nz; k++ {
		n := p.idx(k, j, i)
		nb := p.idx(k+1, j, i)
		dp := r.pe2[k+1] - r.pe2[k]
		s.Delp.Elements[n] = dp
		s.Delz.Elements[n] = r.ratioDst[k] * dp
		s.Pkz.Elements[n] = (s.Pk.Elements[nb] - s.Pk.Elements[n]) /
			(κ * (s.Peln.Elements[nb] - s.Peln.Elements[n]))
	}
}

// remapColumn conservatively redistributes a column quantity defined
// as layer means between interfaces pe1 onto the layers between
// interfaces pe2. slope, when non-nil, holds the limited within-layer
// variation of a linear reconstruction. Both interface sets must
// increase monotonically.
func remapColumn(src, slope, pe1, pe2, dst []float64) {
	nz := len(src)
	ks := 0
	for k := 0; k < nz; k++ {
		lo, hi := pe2[k], pe2[k+1]
		for ks < nz-1 && pe1[ks+1] <= lo {
			ks++
		}
		sum := 0.
		for m := ks; m < nz && pe1[m] < hi; m++ {
			a := math.Max(lo, pe1[m])
			b := math.Min(hi, pe1[m+1])
			if b <= a {
				continue
			}
			q := src[m]
			if slope != nil {
				ξ := (0.5*(a+b) - pe1[m]) / (pe1[m+1] - pe1[m])
				q += slope[m] * (ξ - 0.5)
			}
			sum += q * (b - a)
		}
		// Targets reaching past the source column take the boundary
		// layer's value.
		if lo < pe1[0] {
			sum += src[0] * (math.Min(hi, pe1[0]) - lo)
		}
		if hi > pe1[nz] {
			sum += src[nz-1] * (hi - math.Max(lo, pe1[nz]))
		}
		dst[k] = sum / (hi - lo)
	}
}

// plmSlopes fills the limited piecewise-linear variation across each
// layer: the minmod of the adjacent layer-mean differences, zero in
// the boundary layers.
func plmSlopes(src, slope []float64) {
	n := len(src)
	slope[0] = 0
	slope[n-1] = 0
	for k := 1; k < n-1; k++ {
		slope[k] = minmod(src[k]-src[k-1], src[k+1]-src[k])
	}
}

func minmod(a, b float64) float64 {
	if a*b <= 0 {
		return 0
	}
	if math.Abs(a) < math.Abs(b) {
		return a
	}
	return b
}
