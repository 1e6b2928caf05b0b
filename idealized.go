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
)

// IsothermalState builds a resting, dry, hydrostatically balanced
// state at the uniform temperature t0, with surface pressure pRef
// everywhere. The pressure fields are filled consistently with the
// relations the vertical remap uses to rebuild them, so a step
// starting from this state reproduces them unchanged. Halo cells are
// filled too; no initial exchange is needed.
func IsothermalState(grid *GridData, shape GridShape, pRef, t0 float64) (*DycoreState, error) {
	if err := grid.Check(shape); err != nil {
		return nil, err
	}
	if pRef <= 0 || t0 <= 0 {
		return nil, fmt.Errorf("pace: reference pressure %g and temperature %g must be positive", pRef, t0)
	}
	s, err := NewDycoreState(shape)
	if err != nil {
		return nil, err
	}

	nyF, nxF := shape.padded()
	pe := make([]float64, shape.Nz+1)
	peln := make([]float64, shape.Nz+1)
	pk := make([]float64, shape.Nz+1)
	for k := 0; k <= shape.Nz; k++ {
		pe[k] = grid.Ak[k] + grid.Bk[k]*pRef
		peln[k] = math.Log(pe[k])
		pk[k] = math.Pow(pe[k], κ)
	}

	for j := 0; j < nyF; j++ {
		for i := 0; i < nxF; i++ {
			g := j*nxF + i
			s.Ps.Elements[g] = pRef
			for k := 0; k <= shape.Nz; k++ {
				n := k*nyF*nxF + g
				s.Pe.Elements[n] = pe[k]
				s.Peln.Elements[n] = peln[k]
				s.Pk.Elements[n] = pk[k]
			}
			for k := 0; k < shape.Nz; k++ {
				n := k*nyF*nxF + g
				s.Delp.Elements[n] = pe[k+1] - pe[k]
				s.Pkz.Elements[n] = (pk[k+1] - pk[k]) / (κ * (peln[k+1] - peln[k]))
				s.Pt.Elements[n] = t0
				s.Delz.Elements[n] = -rdgas * t0 / grav * (peln[k+1] - peln[k])
			}
		}
	}
	return s, nil
}
