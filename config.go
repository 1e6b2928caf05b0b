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
	"errors"
	"fmt"
)

// ErrNotImplemented marks configurations the solver design explicitly
// does not support. It is returned (wrapped) from construction or from
// the first step, never downgraded to a log message.
var ErrNotImplemented = errors.New("not implemented")

// DynamicalCoreConfig selects the solver options. The zero value is
// not usable; start from DefaultDynamicalCoreConfig.
type DynamicalCoreConfig struct {
	// KSplit is the number of vertical-remapping (outer) loops per
	// timestep, and NSplit the number of acoustic substeps within
	// each outer loop.
	KSplit, NSplit int

	// PRef is the reference surface pressure [Pa] used to build the
	// reference layer pressures from the hybrid coordinate.
	PRef float64

	// Hydrostatic selects the hydrostatic solver, which this design
	// does not include; it must be false.
	Hydrostatic bool

	// ZTracer enables split tracer advection; it must be true, and
	// InlineQ (advecting tracers inside the acoustic loop) must be
	// false.
	ZTracer bool
	InlineQ bool

	// MoistPhys must be true; Nwat must equal the number of water
	// species the solver is compiled for.
	MoistPhys bool
	Adiabatic bool
	Nwat      int

	// NfOmega is the number of hyperdiffusion rounds applied to the
	// vertical pressure velocity after the final remap; 0 disables.
	NfOmega int

	// ConsvTe is the fraction of total energy to restore during
	// remapping. Only 0 is supported.
	ConsvTe float64

	// Tau is the Rayleigh friction time scale [days]; RfFast selects
	// the fast (acoustic-loop) damping, the only form supported when
	// Tau is nonzero. RfCutoff is the pressure [Pa] above which
	// (pfull < RfCutoff) damping applies.
	Tau      float64
	RfFast   bool
	RfCutoff float64

	// Remapping orders for temperature, momentum, vertical wind, and
	// tracers. Negative KordTm remaps temperature conservatively.
	KordTm, KordMt, KordWz, KordTr int

	// C2lOrd is the interpolation order (2 or 4) for the cube-to-
	// lat-lon wind recomputation.
	C2lOrd int

	// CheckNegative enables logging of residual negative mixing
	// ratios after the adjustment pass.
	CheckNegative bool
}

// DefaultDynamicalCoreConfig returns a nonhydrostatic configuration
// with typical splitting and remapping settings.
func DefaultDynamicalCoreConfig() DynamicalCoreConfig {
	return DynamicalCoreConfig{
		KSplit:    2,
		NSplit:    6,
		PRef:      1e5,
		ZTracer:   true,
		MoistPhys: true,
		Nwat:      numWaterSpecies,
		NfOmega:   1,
		RfCutoff:  750,
		KordTm:    -9,
		KordMt:    9,
		KordWz:    9,
		KordTr:    9,
		C2lOrd:    4,
	}
}

// check rejects configurations at construction time. Conditions that
// the original staging rejects at the start of each step (hydrostatic,
// energy conservation, slow Rayleigh damping, adiabatic temperature
// remap) are left to the step preamble.
func (c DynamicalCoreConfig) check() error {
	if !c.MoistPhys {
		return fmt.Errorf("pace: config requires moist_phys")
	}
	if c.Nwat != numWaterSpecies {
		return fmt.Errorf("pace: config nwat = %d; the solver is compiled for %d water species",
			c.Nwat, numWaterSpecies)
	}
	if c.InlineQ {
		return fmt.Errorf("pace: inline tracer advection is %w", ErrNotImplemented)
	}
	if !c.ZTracer {
		return fmt.Errorf("pace: tracer advection without z_tracer is %w, turn on z_tracer",
			ErrNotImplemented)
	}
	if c.KSplit < 1 || c.NSplit < 1 {
		return fmt.Errorf("pace: k_split (%d) and n_split (%d) must be at least 1",
			c.KSplit, c.NSplit)
	}
	if c.PRef <= 0 {
		return fmt.Errorf("pace: p_ref must be positive, got %g", c.PRef)
	}
	if c.C2lOrd != 2 && c.C2lOrd != 4 {
		return fmt.Errorf("pace: c2l_ord must be 2 or 4, got %d", c.C2lOrd)
	}
	if c.NfOmega < 0 {
		return fmt.Errorf("pace: nf_omega must not be negative, got %d", c.NfOmega)
	}
	return nil
}
