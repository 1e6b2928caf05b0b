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
	"sync"
	"testing"

	"github.com/ctessum/sparse"
)

// coordField fills an array's interior with values encoding the cell
// position, leaving the halos at -1.
func coordField(shape GridShape) *sparse.DenseArray {
	q := shape.zeros3()
	for i := range q.Elements {
		q.Elements[i] = -1
	}
	nyF, nxF := shape.padded()
	h := shape.NHalo
	for k := 0; k < shape.Nz; k++ {
		for j := h; j < h+shape.Ny; j++ {
			for i := h; i < h+shape.Nx; i++ {
				q.Elements[k*nyF*nxF+j*nxF+i] =
					float64(k*1000000 + j*1000 + i)
			}
		}
	}
	return q
}

func TestPeriodicHaloUpdate(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 5, Nz: 2, NHalo: 2}
	topo, err := NewLocalTopology(1)
	if err != nil {
		t.Fatal(err)
	}
	comm, err := topo.Communicator(0)
	if err != nil {
		t.Fatal(err)
	}
	q := coordField(shape)
	if err := comm.HaloUpdate("q", q, shape.NHalo); err != nil {
		t.Fatal(err)
	}

	nyF, nxF := shape.padded()
	h := shape.NHalo
	at := func(k, j, i int) float64 { return q.Elements[k*nyF*nxF+j*nxF+i] }
	wrap := func(v, n int) int { return h + ((v-h)%n+n)%n }
	for k := 0; k < shape.Nz; k++ {
		for j := h; j < h+shape.Ny; j++ {
			for d := 1; d <= h; d++ {
				if got, want := at(k, j, h-d), at(k, j, wrap(h-d, shape.Nx)); got != want {
					t.Fatalf("west halo (%d,%d,%d) = %g, want %g", k, j, h-d, got, want)
				}
				if got, want := at(k, j, h+shape.Nx-1+d), at(k, j, wrap(h+shape.Nx-1+d, shape.Nx)); got != want {
					t.Fatalf("east halo (%d,%d,%d) = %g, want %g", k, j, h+shape.Nx-1+d, got, want)
				}
			}
		}
		for i := h; i < h+shape.Nx; i++ {
			for d := 1; d <= h; d++ {
				if got, want := at(k, h-d, i), at(k, wrap(h-d, shape.Ny), i); got != want {
					t.Fatalf("south halo (%d,%d,%d) = %g, want %g", k, h-d, i, got, want)
				}
				if got, want := at(k, h+shape.Ny-1+d, i), at(k, wrap(h+shape.Ny-1+d, shape.Ny), i); got != want {
					t.Fatalf("north halo (%d,%d,%d) = %g, want %g", k, h+shape.Ny-1+d, i, got, want)
				}
			}
		}
	}
}

// Periodic vector updates use identity rotations, so the components
// exchange like scalars.
func TestPeriodicVectorHaloUpdate(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 6, Nz: 1, NHalo: 2}
	topo, err := NewLocalTopology(1)
	if err != nil {
		t.Fatal(err)
	}
	comm, err := topo.Communicator(0)
	if err != nil {
		t.Fatal(err)
	}

	u := coordField(shape)
	v := coordField(shape)
	uScalar := coordField(shape)
	if err := comm.HaloUpdateVector("wind", u, v, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	if err := comm.HaloUpdate("ref", uScalar, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	for i := range u.Elements {
		if u.Elements[i] != uScalar.Elements[i] {
			t.Fatalf("element %d: vector update %g != scalar update %g",
				i, u.Elements[i], uScalar.Elements[i])
		}
		if v.Elements[i] != uScalar.Elements[i] {
			t.Fatalf("element %d: v component %g != scalar update %g",
				i, v.Elements[i], uScalar.Elements[i])
		}
	}
}

// Six ranks update concurrently; every halo must hold the neighbor
// face's constant per the adjacency table.
func TestCubeHaloAdjacency(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 6, Nz: 1, NHalo: 2}
	topo, err := NewLocalTopology(6)
	if err != nil {
		t.Fatal(err)
	}

	arrays := make([]*sparse.DenseArray, 6)
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for rank := 0; rank < 6; rank++ {
		q := shape.zeros3()
		for i := range q.Elements {
			q.Elements[i] = float64(rank + 1)
		}
		arrays[rank] = q
		comm, err := topo.Communicator(rank)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(rank int, comm *LocalCommunicator, q *sparse.DenseArray) {
			defer wg.Done()
			errs[rank] = comm.HaloUpdate("q", q, shape.NHalo)
		}(rank, comm, q)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}

	_, nxF := shape.padded()
	h := shape.NHalo
	samples := []struct {
		s    side
		j, i int
	}{
		{east, h + 2, h + shape.Nx},
		{west, h + 2, h - 1},
		{north, h + shape.Ny, h + 2},
		{south, h - 1, h + 2},
	}
	for rank := 0; rank < 6; rank++ {
		for _, sm := range samples {
			got := arrays[rank].Elements[sm.j*nxF+sm.i]
			want := float64(cubeLinks[rank][sm.s].face + 1)
			if got != want {
				t.Errorf("face %d %v halo = %g, want %g (face %d)",
					rank, sm.s, got, want, cubeLinks[rank][sm.s].face)
			}
		}
	}
}

// Edge rotations must preserve wind speed and be consistent with the
// adjacency table's reversal flags in both directions.
func TestCubeVectorHaloMagnitude(t *testing.T) {
	shape := GridShape{Nx: 6, Ny: 6, Nz: 1, NHalo: 2}
	topo, err := NewLocalTopology(6)
	if err != nil {
		t.Fatal(err)
	}

	us := make([]*sparse.DenseArray, 6)
	vs := make([]*sparse.DenseArray, 6)
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for rank := 0; rank < 6; rank++ {
		u := shape.zeros3()
		v := shape.zeros3()
		for i := range u.Elements {
			u.Elements[i] = 3
			v.Elements[i] = 4
		}
		us[rank], vs[rank] = u, v
		comm, err := topo.Communicator(rank)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(rank int, comm *LocalCommunicator, u, v *sparse.DenseArray) {
			defer wg.Done()
			errs[rank] = comm.HaloUpdateVector("wind", u, v, shape.NHalo)
		}(rank, comm, u, v)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}

	const tolerance = 1.e-12
	for rank := 0; rank < 6; rank++ {
		for i, u := range us[rank].Elements {
			v := vs[rank].Elements[i]
			if speed := math.Sqrt(u*u + v*v); different(speed, 5, tolerance) {
				t.Fatalf("face %d element %d: wind speed %g, want 5", rank, i, speed)
			}
		}
	}
}

func TestEdgeRotationOrthogonality(t *testing.T) {
	for s1 := east; s1 <= south; s1++ {
		for s2 := east; s2 <= south; s2++ {
			for _, reversed := range []bool{false, true} {
				m := edgeRotation(s1, s2, reversed)
				// Rows must be orthonormal.
				for a := 0; a < 2; a++ {
					if norm := m[a][0]*m[a][0] + m[a][1]*m[a][1]; norm != 1 {
						t.Errorf("rotation %v->%v (rev %t) row %d norm %g",
							s1, s2, reversed, a, norm)
					}
				}
				if dot := m[0][0]*m[1][0] + m[0][1]*m[1][1]; dot != 0 {
					t.Errorf("rotation %v->%v (rev %t) rows not orthogonal", s1, s2, reversed)
				}
			}
		}
	}
}

func TestCubeRequiresSquareFaces(t *testing.T) {
	topo, err := NewLocalTopology(6)
	if err != nil {
		t.Fatal(err)
	}
	comm, err := topo.Communicator(0)
	if err != nil {
		t.Fatal(err)
	}
	q := GridShape{Nx: 6, Ny: 5, Nz: 1, NHalo: 2}.zeros3()
	if err := comm.HaloUpdate("q", q, 2); err == nil {
		t.Error("expected an error for rectangular faces on the cube")
	}
}

func TestLocalTopologySizes(t *testing.T) {
	if _, err := NewLocalTopology(4); err == nil {
		t.Error("expected an error for a 4-rank topology")
	}
	topo, err := NewLocalTopology(6)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := topo.Communicator(6); err == nil {
		t.Error("expected an error for an out-of-range rank")
	}
}
