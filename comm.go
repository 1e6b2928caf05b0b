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
	"sync"

	"github.com/ctessum/sparse"
)

// A Communicator fills the halo regions of a rank's arrays with the
// interior values of the neighboring ranks. Updates are blocking: when
// HaloUpdate returns, the halos are valid. Corner (diagonal) halo
// regions are not filled; no solver kernel reads them.
type Communicator interface {
	// Rank is this rank's position in the topology.
	Rank() int
	// Size is the number of ranks in the topology.
	Size() int
	// HaloUpdate exchanges halos of width nhalo for a scalar field.
	// The name must be used in the same order on every rank.
	HaloUpdate(name string, q *sparse.DenseArray, nhalo int) error
	// HaloUpdateVector exchanges halos for the components of a wind
	// field, rotating components across rotated cube edges.
	HaloUpdateVector(name string, u, v *sparse.DenseArray, nhalo int) error
}

// A HaloUpdater is a Communicator bound to one named field, so that
// repeated updates of that field need no further setup.
type HaloUpdater struct {
	comm  Communicator
	name  string
	nhalo int
}

// NewHaloUpdater binds a communicator to a field name and halo width.
func NewHaloUpdater(comm Communicator, name string, nhalo int) *HaloUpdater {
	return &HaloUpdater{comm: comm, name: name, nhalo: nhalo}
}

// Update performs the blocking halo exchange.
func (h *HaloUpdater) Update(q *sparse.DenseArray) error {
	return h.comm.HaloUpdate(h.name, q, h.nhalo)
}

// side identifies one edge of a rank's rectangular domain.
type side int

const (
	east side = iota
	west
	north
	south
)

var sideNames = [4]string{"east", "west", "north", "south"}

func (s side) String() string { return sideNames[s] }

// edgeLink describes the neighbor attached to one side: which face,
// which of the neighbor's sides touches ours, and whether the shared
// edge reverses the tangential index order.
type edgeLink struct {
	face     int
	side     side
	reversed bool
}

// cubeLinks is the face-adjacency table for the six cube faces, laid
// out as a cross with face 4 on top, faces 3-0-1-2 around the equator,
// and face 5 on the bottom. The reversal flags come from folding the
// cross into a cube; each undirected edge carries the same flag in
// both directions.
var cubeLinks = [6][4]edgeLink{
	0: {east: {1, west, false}, west: {3, east, false}, north: {4, south, false}, south: {5, north, false}},
	1: {east: {2, west, false}, west: {0, east, false}, north: {4, east, false}, south: {5, east, true}},
	2: {east: {3, west, false}, west: {1, east, false}, north: {4, north, true}, south: {5, south, true}},
	3: {east: {0, west, false}, west: {2, east, false}, north: {4, west, true}, south: {5, west, false}},
	4: {east: {1, north, false}, west: {3, north, true}, north: {2, north, true}, south: {0, north, false}},
	5: {east: {1, south, true}, west: {3, south, false}, north: {0, south, false}, south: {2, south, true}},
}

// periodicLinks is the single-face doubly-periodic topology used for
// idealized and test runs.
var periodicLinks = [1][4]edgeLink{
	0: {east: {0, west, false}, west: {0, east, false}, north: {0, south, false}, south: {0, north, false}},
}

// outward and tangential unit vectors of each side in (i, j) index
// space, used to derive the wind-component rotation across edges.
var (
	outwardVec    = [4][2]float64{east: {1, 0}, west: {-1, 0}, north: {0, 1}, south: {0, -1}}
	tangentialVec = [4][2]float64{east: {0, 1}, west: {0, 1}, north: {1, 0}, south: {1, 0}}
)

// edgeRotation returns the 2x2 matrix mapping the sender's (u, v)
// components to the receiver's across a directed edge. The sender's
// outward direction continues into the receiver's interior, and the
// tangential direction maps with the edge's reversal sign.
func edgeRotation(senderSide, receiverSide side, reversed bool) [2][2]float64 {
	so := outwardVec[senderSide]
	st := tangentialVec[senderSide]
	ro := outwardVec[receiverSide]
	rt := tangentialVec[receiverSide]
	sign := 1.0
	if reversed {
		sign = -1.0
	}
	var m [2][2]float64
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			m[a][b] = -ro[a]*so[b] + sign*rt[a]*st[b]
		}
	}
	return m
}

// mailKey addresses a slab in transit: the sender's face and the
// sender's side, qualified by the update name.
type mailKey struct {
	name string
	face int
	side side
}

// LocalTopology connects ranks running in the same process. Size 1 is
// a doubly-periodic single face; size 6 is the cubed sphere with one
// rank per face. Every rank must call the same sequence of halo
// updates; each update blocks until its neighbors' slabs arrive.
type LocalTopology struct {
	size  int
	links [][4]edgeLink

	mu    sync.Mutex
	boxes map[mailKey]chan *sparse.DenseArray
}

// NewLocalTopology creates an in-process topology of the given size.
func NewLocalTopology(size int) (*LocalTopology, error) {
	t := &LocalTopology{
		size:  size,
		boxes: make(map[mailKey]chan *sparse.DenseArray),
	}
	switch size {
	case 1:
		t.links = periodicLinks[:]
	case 6:
		t.links = cubeLinks[:]
	default:
		return nil, fmt.Errorf("pace: local topology supports 1 or 6 ranks, got %d", size)
	}
	return t, nil
}

// Communicator returns the communicator for one rank.
func (t *LocalTopology) Communicator(rank int) (*LocalCommunicator, error) {
	if rank < 0 || rank >= t.size {
		return nil, fmt.Errorf("pace: rank %d out of range [0,%d)", rank, t.size)
	}
	return &LocalCommunicator{topo: t, rank: rank}, nil
}

// box returns the rendezvous channel for a mail key, creating it on
// first use. Channels hold one slab so that senders run at most one
// update ahead of their receivers.
func (t *LocalTopology) box(k mailKey) chan *sparse.DenseArray {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.boxes[k]
	if !ok {
		c = make(chan *sparse.DenseArray, 1)
		t.boxes[k] = c
	}
	return c
}

func (t *LocalTopology) post(k mailKey, slab *sparse.DenseArray) {
	t.box(k) <- slab
}

func (t *LocalTopology) collect(k mailKey) *sparse.DenseArray {
	return <-t.box(k)
}

// LocalCommunicator is one rank's endpoint in a LocalTopology.
type LocalCommunicator struct {
	topo *LocalTopology
	rank int
}

// Rank implements Communicator.
func (c *LocalCommunicator) Rank() int { return c.rank }

// Size implements Communicator.
func (c *LocalCommunicator) Size() int { return c.topo.size }

// HaloUpdate implements Communicator.
func (c *LocalCommunicator) HaloUpdate(name string, q *sparse.DenseArray, nhalo int) error {
	if err := checkHaloArgs(q, nhalo, c.topo.size); err != nil {
		return fmt.Errorf("pace: halo update %q: %v", name, err)
	}
	links := c.topo.links[c.rank]
	for s := east; s <= south; s++ {
		c.topo.post(mailKey{name, c.rank, s}, extractSlab(q, s, nhalo))
	}
	for s := east; s <= south; s++ {
		nbr := links[s]
		slab := c.topo.collect(mailKey{name, nbr.face, nbr.side})
		writeSlab(q, s, slab, nhalo, nbr.reversed)
	}
	return nil
}

// HaloUpdateVector implements Communicator.
func (c *LocalCommunicator) HaloUpdateVector(name string, u, v *sparse.DenseArray, nhalo int) error {
	if err := checkHaloArgs(u, nhalo, c.topo.size); err != nil {
		return fmt.Errorf("pace: vector halo update %q: %v", name, err)
	}
	if err := checkHaloArgs(v, nhalo, c.topo.size); err != nil {
		return fmt.Errorf("pace: vector halo update %q: %v", name, err)
	}
	links := c.topo.links[c.rank]
	for s := east; s <= south; s++ {
		c.topo.post(mailKey{name + ".u", c.rank, s}, extractSlab(u, s, nhalo))
		c.topo.post(mailKey{name + ".v", c.rank, s}, extractSlab(v, s, nhalo))
	}
	for s := east; s <= south; s++ {
		nbr := links[s]
		su := c.topo.collect(mailKey{name + ".u", nbr.face, nbr.side})
		sv := c.topo.collect(mailKey{name + ".v", nbr.face, nbr.side})
		m := edgeRotation(nbr.side, s, nbr.reversed)
		ru, rv := rotateSlabs(su, sv, m)
		writeSlab(u, s, ru, nhalo, nbr.reversed)
		writeSlab(v, s, rv, nhalo, nbr.reversed)
	}
	return nil
}

// checkHaloArgs validates an array against the exchange requirements.
// Cube topologies need square faces because rotated edges map one
// axis's halo onto the other axis's interior.
func checkHaloArgs(q *sparse.DenseArray, nhalo int, size int) error {
	if len(q.Shape) != 3 {
		return fmt.Errorf("array must be 3-d, got shape %v", q.Shape)
	}
	ny := q.Shape[1] - 2*nhalo
	nx := q.Shape[2] - 2*nhalo
	if nx < nhalo || ny < nhalo {
		return fmt.Errorf("interior %dx%d too small for halo width %d", nx, ny, nhalo)
	}
	if size == 6 && nx != ny {
		return fmt.Errorf("cube topology requires square faces, got %dx%d", nx, ny)
	}
	return nil
}

// extractSlab copies the interior cells adjacent to a side into a
// canonical (level, depth, tangential) array. Depth 0 is the ring
// touching the edge, deeper rings follow inward.
func extractSlab(q *sparse.DenseArray, s side, nhalo int) *sparse.DenseArray {
	nz := q.Shape[0]
	h := nhalo
	ny := q.Shape[1] - 2*h
	nx := q.Shape[2] - 2*h
	var ntan int
	switch s {
	case east, west:
		ntan = ny
	default:
		ntan = nx
	}
	slab := sparse.ZerosDense(nz, nhalo, ntan)
	for k := 0; k < nz; k++ {
		for d := 0; d < nhalo; d++ {
			for t := 0; t < ntan; t++ {
				var j, i int
				switch s {
				case east:
					j, i = h+t, h+nx-1-d
				case west:
					j, i = h+t, h+d
				case north:
					j, i = h+ny-1-d, h+t
				case south:
					j, i = h+d, h+t
				}
				slab.Set(q.Get(k, j, i), k, d, t)
			}
		}
	}
	return slab
}

// writeSlab fills the halo on side s from a received slab, optionally
// reversing the tangential order. Depth d lands d+1 cells beyond the
// edge.
func writeSlab(q *sparse.DenseArray, s side, slab *sparse.DenseArray, nhalo int, reversed bool) {
	nz := q.Shape[0]
	h := nhalo
	ny := q.Shape[1] - 2*h
	nx := q.Shape[2] - 2*h
	ntan := slab.Shape[2]
	for k := 0; k < nz; k++ {
		for d := 0; d < nhalo; d++ {
			for t := 0; t < ntan; t++ {
				tt := t
				if reversed {
					tt = ntan - 1 - t
				}
				var j, i int
				switch s {
				case east:
					j, i = h+tt, h+nx+d
				case west:
					j, i = h+tt, h-1-d
				case north:
					j, i = h+ny+d, h+tt
				case south:
					j, i = h-1-d, h+tt
				}
				q.Set(slab.Get(k, d, t), k, j, i)
			}
		}
	}
}

// rotateSlabs applies a component rotation to paired wind slabs.
func rotateSlabs(su, sv *sparse.DenseArray, m [2][2]float64) (ru, rv *sparse.DenseArray) {
	ru = sparse.ZerosDense(su.Shape...)
	rv = sparse.ZerosDense(sv.Shape...)
	for n, us := range su.Elements {
		vs := sv.Elements[n]
		ru.Elements[n] = m[0][0]*us + m[0][1]*vs
		rv.Elements[n] = m[1][0]*us + m[1][1]*vs
	}
	return ru, rv
}
