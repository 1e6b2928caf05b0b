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

// GridShape describes the compute domain held by one rank: cell counts
// along each axis plus the halo width. Arrays are dimensioned
// (Nz, Ny+2·NHalo, Nx+2·NHalo) in (k, j, i) order, with the vertical
// level outermost so that column operations walk contiguous j-i planes.
// Interface-level arrays carry Nz+1 levels.
type GridShape struct {
	Nx, Ny, Nz int
	NHalo      int
}

// Check returns an error if the shape is not usable.
func (s GridShape) Check() error {
	if s.Nx < 1 || s.Ny < 1 || s.Nz < 1 {
		return fmt.Errorf("pace: grid shape %dx%dx%d must be positive", s.Nx, s.Ny, s.Nz)
	}
	if s.NHalo < 1 {
		return fmt.Errorf("pace: halo width %d must be positive", s.NHalo)
	}
	return nil
}

// padded returns the full array extents including halos, (j, i) order.
func (s GridShape) padded() (ny, nx int) {
	return s.Ny + 2*s.NHalo, s.Nx + 2*s.NHalo
}

// zeros3 allocates a layer-centered 3-d field.
func (s GridShape) zeros3() *sparse.DenseArray {
	ny, nx := s.padded()
	return sparse.ZerosDense(s.Nz, ny, nx)
}

// zeros3Interface allocates an interface-level 3-d field (Nz+1 levels).
func (s GridShape) zeros3Interface() *sparse.DenseArray {
	ny, nx := s.padded()
	return sparse.ZerosDense(s.Nz+1, ny, nx)
}

// zeros2 allocates a single-level field.
func (s GridShape) zeros2() *sparse.DenseArray {
	ny, nx := s.padded()
	return sparse.ZerosDense(ny, nx)
}

// GridData holds the horizontal metric terms and the hybrid vertical
// coordinate for one rank. Metric generation happens upstream (the
// grid utilities that also perform the domain decomposition); this
// package only consumes the result, either read from a NetCDF file
// (ReadGridData) or built analytically for idealized runs
// (RegularGridData).
type GridData struct {
	// Ak and Bk define the hybrid sigma-pressure interfaces
	// p(k) = Ak[k] + Bk[k]·ps; both have length Nz+1.
	Ak, Bk []float64

	// Ptop is the model-top pressure Ak[0] [Pa].
	Ptop float64

	// Area is the cell area [m2]; Dx and Dy are the cell spacings [m].
	// All are (j, i) fields with halos.
	Area, Dx, Dy *sparse.DenseArray

	// A11..A22 rotate cube-relative wind components into
	// lat-lon components at cell centers.
	A11, A12, A21, A22 *sparse.DenseArray

	// DaMin and DaMinC are the minimum cell and corner areas over the
	// whole cubed sphere [m2], used to scale damping coefficients.
	DaMin, DaMinC float64
}

// Check verifies that the grid data matches the given shape.
func (g *GridData) Check(shape GridShape) error {
	if len(g.Ak) != shape.Nz+1 || len(g.Bk) != shape.Nz+1 {
		return fmt.Errorf("pace: ak/bk have %d/%d levels, want %d",
			len(g.Ak), len(g.Bk), shape.Nz+1)
	}
	if g.Ak[0] <= 0 {
		// The remap takes logs and fractional powers of the interface
		// pressures, so the model top cannot sit at zero pressure.
		return fmt.Errorf("pace: model top pressure ak[0] must be positive, got %g", g.Ak[0])
	}
	ny, nx := shape.padded()
	for _, a := range []struct {
		name string
		d    *sparse.DenseArray
	}{
		{"area", g.Area}, {"dx", g.Dx}, {"dy", g.Dy},
		{"a11", g.A11}, {"a12", g.A12}, {"a21", g.A21}, {"a22", g.A22},
	} {
		if a.d == nil {
			return fmt.Errorf("pace: grid field %s is missing", a.name)
		}
		if len(a.d.Shape) != 2 || a.d.Shape[0] != ny || a.d.Shape[1] != nx {
			return fmt.Errorf("pace: grid field %s has shape %v, want [%d %d]",
				a.name, a.d.Shape, ny, nx)
		}
	}
	if g.DaMin <= 0 {
		return fmt.Errorf("pace: da_min must be positive, got %g", g.DaMin)
	}
	return nil
}

// RegularGridData builds uniform metric terms for idealized and test
// runs: constant spacing, identity wind rotation, and damping areas
// taken from the uniform cell area.
func RegularGridData(shape GridShape, ak, bk []float64, dx, dy float64) *GridData {
	ny, nx := shape.padded()
	g := &GridData{
		Ak:   ak,
		Bk:   bk,
		Ptop: ak[0],
		Area: sparse.ZerosDense(ny, nx),
		Dx:   sparse.ZerosDense(ny, nx),
		Dy:   sparse.ZerosDense(ny, nx),
		A11:  sparse.ZerosDense(ny, nx),
		A12:  sparse.ZerosDense(ny, nx),
		A21:  sparse.ZerosDense(ny, nx),
		A22:  sparse.ZerosDense(ny, nx),
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			g.Area.Set(dx*dy, j, i)
			g.Dx.Set(dx, j, i)
			g.Dy.Set(dy, j, i)
			g.A11.Set(1, j, i)
			g.A22.Set(1, j, i)
		}
	}
	g.DaMin = dx * dy
	g.DaMinC = dx * dy
	return g
}

// initPfull computes the reference layer-mean pressures from the
// hybrid coordinate: with interface pressures ph(k) = ak[k] + bk[k]·pRef,
// the layer mean is the log-pressure average
// pfull(k) = (ph(k+1) - ph(k)) / ln(ph(k+1)/ph(k)).
func initPfull(ak, bk []float64, pRef float64) []float64 {
	pfull := make([]float64, len(ak)-1)
	for k := range pfull {
		ph1 := ak[k] + bk[k]*pRef
		ph2 := ak[k+1] + bk[k+1]*pRef
		pfull[k] = (ph2 - ph1) / math.Log(ph2/ph1)
	}
	return pfull
}
