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
	"context"
	"fmt"

	"github.com/ctessum/requestcache"
)

// The solver kernels run over flat element slices with precomputed
// strides and bounds instead of going through per-element shape
// arithmetic. Those precomputed pieces form a loop plan. Building a
// plan depends only on the grid shape and the handful of config values
// that change generated loops, so plans are cached under that
// fingerprint and shared by every core with the same layout: six
// ranks of equal shape build one plan.

// planSpec fingerprints the inputs that alter a compiled plan.
type planSpec struct {
	Shape       GridShape
	Hydrostatic bool
	ZTracer     bool
	NSplit      int
	Nwat        int
	C2lOrd      int
}

// key renders the fingerprint as a stable cache key.
func (s planSpec) key() string {
	return fmt.Sprintf("%dx%dx%d.h%d.hyd%t.zt%t.ns%d.nw%d.c2l%d.nq%d",
		s.Shape.Nx, s.Shape.Ny, s.Shape.Nz, s.Shape.NHalo,
		s.Hydrostatic, s.ZTracer, s.NSplit, s.Nwat, s.C2lOrd, NQ)
}

// loopPlan holds the index arithmetic and coefficient tables
// specialized to one shape+config pair. Plans are immutable once
// built; per-core scratch lives in the core's temporaries.
type loopPlan struct {
	shape GridShape

	// padded extents and flat-index strides
	nyF, nxF         int
	strideK, strideJ int

	// interior bounds, half-open
	is, ie, js, je int

	// interface-column length for vertical remapping buffers
	ncol int

	// cube-to-lat-lon interpolation weights
	a1, a2 float64
}

// idx is the flat index of (k, j, i).
func (p *loopPlan) idx(k, j, i int) int {
	return k*p.strideK + j*p.strideJ + i
}

// idx2 is the flat index of (j, i) in single-level fields.
func (p *loopPlan) idx2(j, i int) int {
	return j*p.strideJ + i
}

func buildPlan(ctx context.Context, payload interface{}) (interface{}, error) {
	spec := payload.(planSpec)
	if err := spec.Shape.Check(); err != nil {
		return nil, err
	}
	ny, nx := spec.Shape.padded()
	p := &loopPlan{
		shape:   spec.Shape,
		nyF:     ny,
		nxF:     nx,
		strideK: ny * nx,
		strideJ: nx,
		is:      spec.Shape.NHalo,
		ie:      spec.Shape.NHalo + spec.Shape.Nx,
		js:      spec.Shape.NHalo,
		je:      spec.Shape.NHalo + spec.Shape.Ny,
		ncol:    spec.Shape.Nz + 1,
	}
	switch spec.C2lOrd {
	case 2:
		p.a1, p.a2 = 0.5, 0
	default: // 4th order
		p.a1, p.a2 = 9./16., -1./16.
	}
	return p, nil
}

// planCache deduplicates concurrent plan builds and keeps recent plans
// in memory.
var planCache = requestcache.NewCache(buildPlan, 1,
	requestcache.Deduplicate(), requestcache.Memory(32))

// compiledPlan returns the plan for a fingerprint, building it on
// first use.
func compiledPlan(spec planSpec) (*loopPlan, error) {
	req := planCache.NewRequest(context.Background(), spec, spec.key())
	v, err := req.Result()
	if err != nil {
		return nil, fmt.Errorf("pace: building loop plan: %v", err)
	}
	return v.(*loopPlan), nil
}

// planCacheRequests exposes the cache's request counters: incoming,
// post-deduplication, and processor builds.
func planCacheRequests() []int { return planCache.Requests() }
