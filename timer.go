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
	"sort"
	"sync"
	"time"
)

// Timer names used by the dynamical core.
const (
	sectionDynCore         = "DynCore"
	sectionTracerAdvection = "TracerAdvection"
	sectionRemapping       = "Remapping"
)

// A Timer accumulates wall-clock time in named sections. A nil Timer
// is valid and records nothing, so callers that don't care about
// timings can pass nil.
type Timer struct {
	mu      sync.Mutex
	started map[string]time.Time
	totals  map[string]time.Duration
	counts  map[string]int
}

// NewTimer returns an empty timer.
func NewTimer() *Timer {
	return &Timer{
		started: make(map[string]time.Time),
		totals:  make(map[string]time.Duration),
		counts:  make(map[string]int),
	}
}

// Start opens a named section.
func (t *Timer) Start(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[name] = time.Now()
}

// Stop closes a named section, adding the elapsed time to its total.
// Stopping a section that was never started is a no-op.
func (t *Timer) Stop(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.started[name]
	if !ok {
		return
	}
	delete(t.started, name)
	t.totals[name] += time.Since(start)
	t.counts[name]++
}

// Count reports how many times a section completed.
func (t *Timer) Count(name string) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}

// Total reports the accumulated time in a section.
func (t *Timer) Total(name string) time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[name]
}

// Names returns the completed section names, sorted.
func (t *Timer) Names() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.totals))
	for name := range t.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
