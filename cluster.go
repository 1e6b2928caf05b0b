/*
Copyright © 2022 the Pace authors.
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
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// This file connects ranks running in separate processes. A relay
// server holds the slab rendezvous; each rank dials it and performs
// the same blocking post/collect protocol as the in-process topology.

// RelaySlab is a halo slab on the wire.
type RelaySlab struct {
	Name string
	Face int
	Side int
	Dims []int
	Data []float64
}

// RelayRequest asks for the slab a given face posted on a given side.
type RelayRequest struct {
	Name string
	Face int
	Side int
}

// HaloRelay is the RPC service holding slabs in transit. Post and
// Collect block with single-slab capacity per key, which keeps the
// ranks in lockstep the same way the in-process topology does.
type HaloRelay struct {
	mu    sync.Mutex
	boxes map[mailKey]chan RelaySlab
}

// NewHaloRelay creates an empty relay.
func NewHaloRelay() *HaloRelay {
	return &HaloRelay{boxes: make(map[mailKey]chan RelaySlab)}
}

func (r *HaloRelay) box(k mailKey) chan RelaySlab {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.boxes[k]
	if !ok {
		c = make(chan RelaySlab, 1)
		r.boxes[k] = c
	}
	return c
}

// Post stores a slab; it blocks while a previous slab with the same
// key is still unclaimed.
func (r *HaloRelay) Post(slab RelaySlab, _ *struct{}) error {
	r.box(mailKey{slab.Name, slab.Face, side(slab.Side)}) <- slab
	return nil
}

// Collect returns the slab posted under the requested key, blocking
// until it arrives.
func (r *HaloRelay) Collect(req RelayRequest, reply *RelaySlab) error {
	*reply = <-r.box(mailKey{req.Name, req.Face, side(req.Side)})
	return nil
}

// ServeRelay runs a halo relay on the given address until the listener
// is closed. It returns the listener so the caller can close it.
func ServeRelay(addr string) (net.Listener, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("HaloRelay", NewHaloRelay()); err != nil {
		return nil, fmt.Errorf("pace: registering halo relay: %v", err)
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("pace: halo relay listen: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go srv.ServeConn(conn)
		}
	}()
	return l, nil
}

// ClusterCommunicator is a rank's endpoint when ranks run in separate
// processes and exchange halos through a relay server.
type ClusterCommunicator struct {
	client *rpc.Client
	rank   int
	size   int
	links  [][4]edgeLink

	// Log receives dial progress messages.
	Log logrus.FieldLogger
}

// DialCluster connects to a halo relay, retrying with exponential
// backoff while the relay is still coming up.
func DialCluster(addr string, rank, size int, log logrus.FieldLogger) (*ClusterCommunicator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &ClusterCommunicator{rank: rank, size: size, Log: log}
	switch size {
	case 1:
		c.links = periodicLinks[:]
	case 6:
		c.links = cubeLinks[:]
	default:
		return nil, fmt.Errorf("pace: cluster topology supports 1 or 6 ranks, got %d", size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("pace: rank %d out of range [0,%d)", rank, size)
	}
	var conn net.Conn
	err := backoff.RetryNotify(
		func() error {
			var err error
			conn, err = net.Dial("tcp", addr)
			return err
		},
		backoff.NewExponentialBackOff(),
		func(err error, d time.Duration) {
			log.WithFields(logrus.Fields{
				"address": addr,
				"retryIn": d,
			}).WithError(err).Warn("dialing halo relay")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("pace: dialing halo relay %s: %v", addr, err)
	}
	c.client = rpc.NewClient(conn)
	return c, nil
}

// Close shuts down the relay connection.
func (c *ClusterCommunicator) Close() error { return c.client.Close() }

// Rank implements Communicator.
func (c *ClusterCommunicator) Rank() int { return c.rank }

// Size implements Communicator.
func (c *ClusterCommunicator) Size() int { return c.size }

func (c *ClusterCommunicator) post(name string, s side, slab *sparse.DenseArray) error {
	return c.client.Call("HaloRelay.Post", RelaySlab{
		Name: name,
		Face: c.rank,
		Side: int(s),
		Dims: slab.Shape,
		Data: slab.Elements,
	}, &struct{}{})
}

func (c *ClusterCommunicator) collect(name string, nbr edgeLink) (*sparse.DenseArray, error) {
	var reply RelaySlab
	err := c.client.Call("HaloRelay.Collect", RelayRequest{
		Name: name,
		Face: nbr.face,
		Side: int(nbr.side),
	}, &reply)
	if err != nil {
		return nil, err
	}
	slab := sparse.ZerosDense(reply.Dims...)
	copy(slab.Elements, reply.Data)
	return slab, nil
}

// HaloUpdate implements Communicator.
func (c *ClusterCommunicator) HaloUpdate(name string, q *sparse.DenseArray, nhalo int) error {
	if err := checkHaloArgs(q, nhalo, c.size); err != nil {
		return fmt.Errorf("pace: halo update %q: %v", name, err)
	}
	for s := east; s <= south; s++ {
		if err := c.post(name, s, extractSlab(q, s, nhalo)); err != nil {
			return fmt.Errorf("pace: halo update %q: %v", name, err)
		}
	}
	for s := east; s <= south; s++ {
		nbr := c.links[c.rank][s]
		slab, err := c.collect(name, nbr)
		if err != nil {
			return fmt.Errorf("pace: halo update %q: %v", name, err)
		}
		writeSlab(q, s, slab, nhalo, nbr.reversed)
	}
	return nil
}

// HaloUpdateVector implements Communicator.
func (c *ClusterCommunicator) HaloUpdateVector(name string, u, v *sparse.DenseArray, nhalo int) error {
	if err := checkHaloArgs(u, nhalo, c.size); err != nil {
		return fmt.Errorf("pace: vector halo update %q: %v", name, err)
	}
	if err := checkHaloArgs(v, nhalo, c.size); err != nil {
		return fmt.Errorf("pace: vector halo update %q: %v", name, err)
	}
	for s := east; s <= south; s++ {
		if err := c.post(name+".u", s, extractSlab(u, s, nhalo)); err != nil {
			return fmt.Errorf("pace: vector halo update %q: %v", name, err)
		}
		if err := c.post(name+".v", s, extractSlab(v, s, nhalo)); err != nil {
			return fmt.Errorf("pace: vector halo update %q: %v", name, err)
		}
	}
	for s := east; s <= south; s++ {
		nbr := c.links[c.rank][s]
		su, err := c.collect(name+".u", nbr)
		if err != nil {
			return fmt.Errorf("pace: vector halo update %q: %v", name, err)
		}
		sv, err := c.collect(name+".v", nbr)
		if err != nil {
			return fmt.Errorf("pace: vector halo update %q: %v", name, err)
		}
		m := edgeRotation(nbr.side, s, nbr.reversed)
		ru, rv := rotateSlabs(su, sv, m)
		writeSlab(u, s, ru, nhalo, nbr.reversed)
		writeSlab(v, s, rv, nhalo, nbr.reversed)
	}
	return nil
}
