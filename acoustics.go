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

	"github.com/ctessum/atmos/advect"
	"github.com/ctessum/sparse"
)

// acousticDynamics is the split-explicit Lagrangian stepper run inside
// each outer iteration. One Step call advances n_split substeps; each
// substep applies a forward pressure-gradient acceleration to the face
// winds and then a backward flux-form transport of mass, heat, and
// vertical velocity through the accelerated winds. Layers are
// Lagrangian here: delz follows the mass, and the vertical remap
// afterwards restores the reference coordinate.
//
// The stepper is also the producer for tracer advection: it zeroes the
// mfxd/mfyd/cxd/cyd accumulators on entry and adds every substep's
// face mass fluxes and Courant numbers to them.
type acousticDynamics struct {
	plan   *loopPlan
	grid   *GridData
	comm   Communicator
	ray    *rayleighDamping
	nSplit int

	// Face-flux scratch rows for mass, heat, and vertical velocity,
	// reused across rows, levels, and substeps.
	fdA, fdB []float64
	fpA, fpB []float64
	fwA, fwB []float64
}

func newAcousticDynamics(plan *loopPlan, grid *GridData, comm Communicator,
	ray *rayleighDamping, nSplit int) *acousticDynamics {
	return &acousticDynamics{
		plan:   plan,
		grid:   grid,
		comm:   comm,
		ray:    ray,
		nSplit: nSplit,
		fdA:    make([]float64, plan.nxF),
		fdB:    make([]float64, plan.nxF),
		fpA:    make([]float64, plan.nxF),
		fpB:    make([]float64, plan.nxF),
		fwA:    make([]float64, plan.nxF),
		fwB:    make([]float64, plan.nxF),
	}
}

// Step advances the state by dt seconds in n_split substeps, filling
// the flux accumulators and the surface vertical-velocity field wsd.
func (a *acousticDynamics) Step(s *DycoreState, wsd *sparse.DenseArray, dt float64) error {
	for _, d := range []*sparse.DenseArray{s.Mfxd, s.Mfyd, s.Cxd, s.Cyd} {
		for i := range d.Elements {
			d.Elements[i] = 0
		}
	}
	// The Exner field is frozen until the next vertical remap, so one
	// exchange covers the whole stage.
	if err := a.comm.HaloUpdate("pkz", s.Pkz, a.plan.shape.NHalo); err != nil {
		return fmt.Errorf("pace: acoustic step: %v", err)
	}
	dτ := dt / float64(a.nSplit)
	for n := 0; n < a.nSplit; n++ {
		if err := a.substep(s, wsd, dτ); err != nil {
			return fmt.Errorf("pace: acoustic step: %v", err)
		}
	}
	return nil
}

func (a *acousticDynamics) substep(s *DycoreState, wsd *sparse.DenseArray, dτ float64) error {
	nhalo := a.plan.shape.NHalo
	if err := a.exchangeScalars(s); err != nil {
		return err
	}
	if err := a.comm.HaloUpdateVector("cgrid", s.Uc, s.Vc, nhalo); err != nil {
		return err
	}
	a.faceWindPGF(s, dτ)
	a.sweepX(s, dτ)
	// The x sweep changed the cells the y-direction boundary fluxes
	// read, so refresh the halos before sweeping y.
	if err := a.exchangeScalars(s); err != nil {
		return err
	}
	a.sweepY(s, dτ)
	a.captureSurfaceW(s, wsd)
	a.ray.damp(a.plan, s)
	return nil
}

func (a *acousticDynamics) exchangeScalars(s *DycoreState) error {
	nhalo := a.plan.shape.NHalo
	for _, f := range []struct {
		name string
		q    *sparse.DenseArray
	}{
		{"delp", s.Delp}, {"pt", s.Pt}, {"w", s.W},
	} {
		if err := a.comm.HaloUpdate(f.name, f.q, nhalo); err != nil {
			return err
		}
	}
	return nil
}

// faceWindPGF applies the forward pressure-gradient acceleration
// -cp·θ̄·Δpkz/Δx to the face winds. Face (j, i) is the west (x
// direction) or south (y direction) face of cell (j, i); the far
// boundary faces (i = ie, j = je) are included so the fluxes computed
// there match the neighboring rank's, with no extra exchange. The
// collocated prognostic wind components receive the same acceleration.
func (a *acousticDynamics) faceWindPGF(s *DycoreState, dτ float64) {
	p := a.plan
	pt := s.Pt.Elements
	pkz := s.Pkz.Elements
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i <= p.ie; i++ {
				n := p.idx(k, j, i)
				m := n - 1
				du := -dτ * cpAir * 0.5 * (pt[m] + pt[n]) *
					(pkz[n] - pkz[m]) / a.grid.Dx.Elements[p.idx2(j, i)]
				s.Uc.Elements[n] += du
				s.U.Elements[n] += du
			}
		}
		for j := p.js; j <= p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				m := n - p.strideJ
				dv := -dτ * cpAir * 0.5 * (pt[m] + pt[n]) *
					(pkz[n] - pkz[m]) / a.grid.Dy.Elements[p.idx2(j, i)]
				s.Vc.Elements[n] += dv
				s.V.Elements[n] += dv
			}
		}
	}
}

// sweepX transports delp, pt·delp, and w·delp along x with upwind
// face flows, and accumulates the face mass fluxes and Courant
// numbers. Flows carry units of quantity·m²/s so that the divergence
// of the accumulated mfxd reproduces the delp change exactly, which
// the tracer step depends on. All faces of a row are evaluated before
// any cell in it is updated.
func (a *acousticDynamics) sweepX(s *DycoreState, dτ float64) {
	p := a.plan
	fd, fp, fw := a.fdA, a.fpA, a.fwA
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i <= p.ie; i++ {
				n := p.idx(k, j, i)
				m := n - 1
				g := p.idx2(j, i)
				dx := a.grid.Dx.Elements[g]
				face := dx * a.grid.Dy.Elements[g]
				uc := s.Uc.Elements[n]
				dpm, dpn := s.Delp.Elements[m], s.Delp.Elements[n]
				fd[i] = advect.UpwindFlux(uc, dpm, dpn, dx) * face
				fp[i] = advect.UpwindFlux(uc, s.Pt.Elements[m]*dpm, s.Pt.Elements[n]*dpn, dx) * face
				fw[i] = advect.UpwindFlux(uc, s.W.Elements[m]*dpm, s.W.Elements[n]*dpn, dx) * face
				s.Mfxd.Elements[n] += fd[i] * dτ
				s.Cxd.Elements[n] += uc * dτ / dx
			}
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				r := dτ / a.grid.Area.Elements[p.idx2(j, i)]
				dpOld := s.Delp.Elements[n]
				dpNew := dpOld + r*(fd[i]-fd[i+1])
				s.Pt.Elements[n] = (s.Pt.Elements[n]*dpOld + r*(fp[i]-fp[i+1])) / dpNew
				s.W.Elements[n] = (s.W.Elements[n]*dpOld + r*(fw[i]-fw[i+1])) / dpNew
				s.Delz.Elements[n] *= dpNew / dpOld
				s.Delp.Elements[n] = dpNew
			}
		}
	}
}

// sweepY is the y-direction counterpart of sweepX, with a rolling pair
// of face-flux rows so every face is evaluated from pre-sweep values.
func (a *acousticDynamics) sweepY(s *DycoreState, dτ float64) {
	p := a.plan
	for k := 0; k < p.shape.Nz; k++ {
		fdS, fpS, fwS := a.fdA, a.fpA, a.fwA
		fdN, fpN, fwN := a.fdB, a.fpB, a.fwB
		a.fluxRowY(s, k, p.js, dτ, fdS, fpS, fwS)
		for j := p.js; j < p.je; j++ {
			a.fluxRowY(s, k, j+1, dτ, fdN, fpN, fwN)
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				r := dτ / a.grid.Area.Elements[p.idx2(j, i)]
				dpOld := s.Delp.Elements[n]
				dpNew := dpOld + r*(fdS[i]-fdN[i])
				s.Pt.Elements[n] = (s.Pt.Elements[n]*dpOld + r*(fpS[i]-fpN[i])) / dpNew
				s.W.Elements[n] = (s.W.Elements[n]*dpOld + r*(fwS[i]-fwN[i])) / dpNew
				s.Delz.Elements[n] *= dpNew / dpOld
				s.Delp.Elements[n] = dpNew
			}
			fdS, fdN = fdN, fdS
			fpS, fpN = fpN, fpS
			fwS, fwN = fwN, fwS
		}
	}
}

// fluxRowY fills the south-face flows of row j at level k and
// accumulates the face mass fluxes and Courant numbers for that row.
func (a *acousticDynamics) fluxRowY(s *DycoreState, k, j int, dτ float64, fd, fp, fw []float64) {
	p := a.plan
	for i := p.is; i < p.ie; i++ {
		n := p.idx(k, j, i)
		m := n - p.strideJ
		g := p.idx2(j, i)
		dy := a.grid.Dy.Elements[g]
		face := dy * a.grid.Dx.Elements[g]
		vc := s.Vc.Elements[n]
		dpm, dpn := s.Delp.Elements[m], s.Delp.Elements[n]
		fd[i] = advect.UpwindFlux(vc, dpm, dpn, dy) * face
		fp[i] = advect.UpwindFlux(vc, s.Pt.Elements[m]*dpm, s.Pt.Elements[n]*dpn, dy) * face
		fw[i] = advect.UpwindFlux(vc, s.W.Elements[m]*dpm, s.W.Elements[n]*dpn, dy) * face
		s.Mfyd.Elements[n] += fd[i] * dτ
		s.Cyd.Elements[n] += vc * dτ / dy
	}
}

// captureSurfaceW snapshots the bottom-level vertical velocity, the
// surface boundary condition the next remap consumes.
func (a *acousticDynamics) captureSurfaceW(s *DycoreState, wsd *sparse.DenseArray) {
	p := a.plan
	k := p.shape.Nz - 1
	for j := p.js; j < p.je; j++ {
		for i := p.is; i < p.ie; i++ {
			wsd.Elements[p.idx2(j, i)] = s.W.Elements[p.idx(k, j, i)]
		}
	}
}
