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
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// A single-rank cluster exchange through the relay must reproduce the
// in-process periodic exchange exactly.
func TestClusterHaloMatchesLocal(t *testing.T) {
	l, err := ServeRelay("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	c, err := DialCluster(l.Addr().String(), 0, 1, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Rank() != 0 || c.Size() != 1 {
		t.Fatalf("rank/size = %d/%d, want 0/1", c.Rank(), c.Size())
	}

	topo, err := NewLocalTopology(1)
	if err != nil {
		t.Fatal(err)
	}
	local, err := topo.Communicator(0)
	if err != nil {
		t.Fatal(err)
	}

	shape := GridShape{Nx: 6, Ny: 6, Nz: 2, NHalo: 2}
	qCluster := coordField(shape)
	qLocal := coordField(shape)
	if err := c.HaloUpdate("q", qCluster, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	if err := local.HaloUpdate("q", qLocal, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	for i, v := range qCluster.Elements {
		if v != qLocal.Elements[i] {
			t.Fatalf("element %d: cluster %g != local %g", i, v, qLocal.Elements[i])
		}
	}

	uCluster, vCluster := coordField(shape), coordField(shape)
	uLocal, vLocal := coordField(shape), coordField(shape)
	if err := c.HaloUpdateVector("wind", uCluster, vCluster, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	if err := local.HaloUpdateVector("wind", uLocal, vLocal, shape.NHalo); err != nil {
		t.Fatal(err)
	}
	for i, v := range uCluster.Elements {
		if v != uLocal.Elements[i] || vCluster.Elements[i] != vLocal.Elements[i] {
			t.Fatalf("vector element %d: cluster (%g, %g) != local (%g, %g)",
				i, v, vCluster.Elements[i], uLocal.Elements[i], vLocal.Elements[i])
		}
	}
}

func TestDialClusterRejectsBadTopology(t *testing.T) {
	// Size and rank are validated before any dialing happens, so the
	// address does not need to resolve.
	if _, err := DialCluster("127.0.0.1:1", 0, 4, discardLogger()); err == nil {
		t.Error("expected an error for a 4-rank topology")
	}
	if _, err := DialCluster("127.0.0.1:1", 6, 6, discardLogger()); err == nil {
		t.Error("expected an error for an out-of-range rank")
	}
}
