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

// NQ is the number of advected tracers. The solver is compiled for
// exactly this many; it is not configurable.
const NQ = 8

// numWaterSpecies is the number of tracers that participate in moist
// thermodynamics and in the negative-mixing-ratio adjustment. They
// occupy the first positions of the tracer registry.
const numWaterSpecies = 6

// Indices into the tracer registry.
const (
	indexVapor = iota
	indexLiquid
	indexRain
	indexSnow
	indexIce
	indexGraupel
	indexCloudFraction
	indexOzone
)

// tracerNames lists the advected tracers in storage order. The first
// numWaterSpecies entries are the water species; qcld is the cloud
// fraction, which is clamped rather than mass-adjusted; qo3mr is a
// passive ozone mixing ratio.
var tracerNames = [NQ]string{
	"qvapor",
	"qliquid",
	"qrain",
	"qsnow",
	"qice",
	"qgraupel",
	"qcld",
	"qo3mr",
}

// TracerNames returns the names of the advected tracers in storage
// order.
func TracerNames() []string {
	out := make([]string, NQ)
	copy(out, tracerNames[:])
	return out
}

// tracerIndex returns the registry position of the named tracer, or an
// error if the name is not in the registry.
func tracerIndex(name string) (int, error) {
	for i, n := range tracerNames {
		if n == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("pace: unknown tracer %q", name)
}

// Tracers holds the advected tracer fields in registry order.
type Tracers [NQ]*sparse.DenseArray

// newTracers allocates zeroed tracer fields with the given shape.
func newTracers(shape GridShape) Tracers {
	var t Tracers
	for i := range t {
		t[i] = shape.zeros3()
	}
	return t
}

// Get returns the named tracer field.
func (t Tracers) Get(name string) (*sparse.DenseArray, error) {
	i, err := tracerIndex(name)
	if err != nil {
		return nil, err
	}
	return t[i], nil
}

// water returns the water-species subset of the tracers.
func (t Tracers) water() []*sparse.DenseArray {
	return t[:numWaterSpecies]
}

// copy deep-copies all tracer fields.
func (t Tracers) copy() Tracers {
	var out Tracers
	for i, q := range t {
		out[i] = q.Copy()
	}
	return out
}
