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

import "fmt"

// cubedToLatLon recomputes the lat-lon wind diagnostics ua and va from
// the prognostic face winds: a vector halo exchange, interpolation of
// the face values to cell centers (2- or 4-point, from the plan's
// weights), and rotation out of cube-relative components through the
// grid's A transform.
type cubedToLatLon struct {
	plan *loopPlan
	grid *GridData
	comm Communicator
}

func newCubedToLatLon(plan *loopPlan, grid *GridData, comm Communicator) *cubedToLatLon {
	return &cubedToLatLon{plan: plan, grid: grid, comm: comm}
}

// Compute fills ua and va over the compute domain.
func (c *cubedToLatLon) Compute(s *DycoreState) error {
	p := c.plan
	if err := c.comm.HaloUpdateVector("dgrid", s.U, s.V, p.shape.NHalo); err != nil {
		return fmt.Errorf("pace: cube to lat-lon: %v", err)
	}
	u := s.U.Elements
	v := s.V.Elements
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				g := p.idx2(j, i)
				uc := p.a2*(u[n-1]+u[n+2]) + p.a1*(u[n]+u[n+1])
				vc := p.a2*(v[n-p.strideJ]+v[n+2*p.strideJ]) +
					p.a1*(v[n]+v[n+p.strideJ])
				s.Ua.Elements[n] = c.grid.A11.Elements[g]*uc + c.grid.A12.Elements[g]*vc
				s.Va.Elements[n] = c.grid.A21.Elements[g]*uc + c.grid.A22.Elements[g]*vc
			}
		}
	}
	return nil
}
