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

	"github.com/ctessum/sparse"
)

// DycoreState holds the prognostic and diagnostic fields advanced by
// the dynamical core on one rank. All arrays share the padded (k, j, i)
// dimensions of the rank's GridShape; staggered quantities are stored
// on the cell whose lower edge they describe. Layer thicknesses delz
// follow the convention of being negative (height decreases with
// increasing level index).
type DycoreState struct {
	Shape GridShape

	U  *sparse.DenseArray // D-grid x-wind [m/s]
	V  *sparse.DenseArray // D-grid y-wind [m/s]
	W  *sparse.DenseArray // vertical velocity [m/s]
	Ua *sparse.DenseArray // lat-lon x-wind at cell centers [m/s]
	Va *sparse.DenseArray // lat-lon y-wind at cell centers [m/s]
	Uc *sparse.DenseArray // C-grid x-wind [m/s]
	Vc *sparse.DenseArray // C-grid y-wind [m/s]

	Delp *sparse.DenseArray // pressure thickness [Pa]
	Delz *sparse.DenseArray // geometric layer thickness [m], negative
	Pt   *sparse.DenseArray // temperature [K]; scaled between the
	// step preamble and the final vertical remap
	Ps    *sparse.DenseArray // surface pressure [Pa], 2-d
	Pe    *sparse.DenseArray // interface pressure [Pa], Nz+1 levels
	Peln  *sparse.DenseArray // log interface pressure, Nz+1 levels
	Pk    *sparse.DenseArray // pe**κ, Nz+1 levels
	Pkz   *sparse.DenseArray // layer-mean Exner factor
	Phis  *sparse.DenseArray // surface geopotential [m2/s2], 2-d
	QCon  *sparse.DenseArray // total condensate mixing ratio [kg/kg]
	Cappa *sparse.DenseArray // moist Exner exponent
	Omga  *sparse.DenseArray // vertical pressure velocity [Pa/s]

	// Mass fluxes and Courant numbers accumulated by the acoustic
	// stepper and consumed by tracer advection.
	Mfxd *sparse.DenseArray // accumulated x mass flux [Pa m2]
	Mfyd *sparse.DenseArray // accumulated y mass flux [Pa m2]
	Cxd  *sparse.DenseArray // accumulated x Courant number
	Cyd  *sparse.DenseArray // accumulated y Courant number

	DissEstd *sparse.DenseArray // dissipation estimate [m2/s2]

	Tracers Tracers
}

// NewDycoreState allocates a zeroed state with the given shape.
func NewDycoreState(shape GridShape) (*DycoreState, error) {
	if err := shape.Check(); err != nil {
		return nil, err
	}
	return &DycoreState{
		Shape:    shape,
		U:        shape.zeros3(),
		V:        shape.zeros3(),
		W:        shape.zeros3(),
		Ua:       shape.zeros3(),
		Va:       shape.zeros3(),
		Uc:       shape.zeros3(),
		Vc:       shape.zeros3(),
		Delp:     shape.zeros3(),
		Delz:     shape.zeros3(),
		Pt:       shape.zeros3(),
		Ps:       shape.zeros2(),
		Pe:       shape.zeros3Interface(),
		Peln:     shape.zeros3Interface(),
		Pk:       shape.zeros3Interface(),
		Pkz:      shape.zeros3(),
		Phis:     shape.zeros2(),
		QCon:     shape.zeros3(),
		Cappa:    shape.zeros3(),
		Omga:     shape.zeros3(),
		Mfxd:     shape.zeros3(),
		Mfyd:     shape.zeros3(),
		Cxd:      shape.zeros3(),
		Cyd:      shape.zeros3(),
		DissEstd: shape.zeros3(),
		Tracers:  newTracers(shape),
	}, nil
}

// Copy deep-copies the state.
func (s *DycoreState) Copy() *DycoreState {
	return &DycoreState{
		Shape:    s.Shape,
		U:        s.U.Copy(),
		V:        s.V.Copy(),
		W:        s.W.Copy(),
		Ua:       s.Ua.Copy(),
		Va:       s.Va.Copy(),
		Uc:       s.Uc.Copy(),
		Vc:       s.Vc.Copy(),
		Delp:     s.Delp.Copy(),
		Delz:     s.Delz.Copy(),
		Pt:       s.Pt.Copy(),
		Ps:       s.Ps.Copy(),
		Pe:       s.Pe.Copy(),
		Peln:     s.Peln.Copy(),
		Pk:       s.Pk.Copy(),
		Pkz:      s.Pkz.Copy(),
		Phis:     s.Phis.Copy(),
		QCon:     s.QCon.Copy(),
		Cappa:    s.Cappa.Copy(),
		Omga:     s.Omga.Copy(),
		Mfxd:     s.Mfxd.Copy(),
		Mfyd:     s.Mfyd.Copy(),
		Cxd:      s.Cxd.Copy(),
		Cyd:      s.Cyd.Copy(),
		DissEstd: s.DissEstd.Copy(),
		Tracers:  s.Tracers.copy(),
	}
}

// fieldsByName maps the state's field names to their arrays. The names
// double as variable names in output expressions and NetCDF files.
func (s *DycoreState) fieldsByName() map[string]*sparse.DenseArray {
	m := map[string]*sparse.DenseArray{
		"u": s.U, "v": s.V, "w": s.W,
		"ua": s.Ua, "va": s.Va, "uc": s.Uc, "vc": s.Vc,
		"delp": s.Delp, "delz": s.Delz, "pt": s.Pt,
		"ps": s.Ps, "pe": s.Pe, "peln": s.Peln, "pk": s.Pk, "pkz": s.Pkz,
		"phis": s.Phis, "q_con": s.QCon, "cappa": s.Cappa, "omga": s.Omga,
		"mfxd": s.Mfxd, "mfyd": s.Mfyd, "cxd": s.Cxd, "cyd": s.Cyd,
		"diss_estd": s.DissEstd,
	}
	for i, name := range tracerNames {
		m[name] = s.Tracers[i]
	}
	return m
}

// Field returns the named field array.
func (s *DycoreState) Field(name string) (*sparse.DenseArray, error) {
	d, ok := s.fieldsByName()[name]
	if !ok {
		return nil, fmt.Errorf("pace: state has no field %q", name)
	}
	return d, nil
}

// fieldUnits documents the units written to output and checkpoint
// files.
var fieldUnits = map[string]string{
	"u": "m/s", "v": "m/s", "w": "m/s",
	"ua": "m/s", "va": "m/s", "uc": "m/s", "vc": "m/s",
	"delp": "Pa", "delz": "m", "pt": "K",
	"ps": "Pa", "pe": "Pa", "peln": "ln(Pa)", "pk": "Pa**kappa",
	"pkz": "Pa**kappa", "phis": "m2/s2", "q_con": "kg/kg", "cappa": "",
	"omga": "Pa/s", "mfxd": "Pa m2", "mfyd": "Pa m2",
	"cxd": "", "cyd": "", "diss_estd": "m2/s2",
	"qvapor": "kg/kg", "qliquid": "kg/kg", "qrain": "kg/kg",
	"qsnow": "kg/kg", "qice": "kg/kg", "qgraupel": "kg/kg",
	"qcld": "", "qo3mr": "kg/kg",
}
