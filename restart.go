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
	"encoding/gob"
	"fmt"
	"io"
)

// Save writes the state to w as a gob stream (format description at
// https://golang.org/pkg/encoding/gob/) for restarting a run with
// Load. The stream keeps the halos, so a restarted run reproduces the
// original bit for bit without a fresh halo exchange.
func (s *DycoreState) Save(w io.Writer) error {
	e := gob.NewEncoder(w)
	if err := e.Encode(s); err != nil {
		return fmt.Errorf("pace.DycoreState.Save: %v", err)
	}
	return nil
}

// Load reads a state from a previously Saved stream.
func Load(r io.Reader) (*DycoreState, error) {
	dec := gob.NewDecoder(r)
	s := new(DycoreState)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("pace.Load: %v", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("pace.Load: %v", err)
	}
	return s, nil
}

// validate checks a decoded state against its own shape, so that a
// truncated or mismatched restart stream fails here rather than as an
// index panic mid-run.
func (s *DycoreState) validate() error {
	if err := s.Shape.Check(); err != nil {
		return err
	}
	nyF, nxF := s.Shape.padded()
	for name, a := range s.fieldsByName() {
		if a == nil {
			return fmt.Errorf("field %s is missing", name)
		}
		var want []int
		switch len(a.Shape) {
		case 3:
			if a.Shape[0] != s.Shape.Nz && a.Shape[0] != s.Shape.Nz+1 {
				return fmt.Errorf("field %s has %d levels, want %d or %d",
					name, a.Shape[0], s.Shape.Nz, s.Shape.Nz+1)
			}
			want = []int{a.Shape[0], nyF, nxF}
		case 2:
			want = []int{nyF, nxF}
		default:
			return fmt.Errorf("field %s has unsupported rank %d", name, len(a.Shape))
		}
		n := 1
		for d, v := range want {
			if a.Shape[d] != v {
				return fmt.Errorf("field %s has shape %v, want %v", name, a.Shape, want)
			}
			n *= v
		}
		if len(a.Elements) != n {
			return fmt.Errorf("field %s has %d elements, want %d", name, len(a.Elements), n)
		}
	}
	return nil
}
