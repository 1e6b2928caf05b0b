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
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
)

// Checkpoint tags issued by the dynamical core.
const (
	CheckpointIn  = "FVDynamics-In"
	CheckpointOut = "FVDynamics-Out"
)

// A Field pairs a named array with its units for checkpointing and
// output.
type Field struct {
	Name  string
	Units string
	Data  *sparse.DenseArray
}

// A Checkpointer receives selected state fields at designated step
// boundaries. Implementations may record them, compare them against
// reference data, or ignore them. A returned error aborts the step.
type Checkpointer interface {
	Check(tag string, fields []Field) error
}

// NullCheckpointer ignores all calls. It is the default when no
// checkpointer is configured.
type NullCheckpointer struct{}

// Check implements Checkpointer.
func (NullCheckpointer) Check(tag string, fields []Field) error { return nil }

// SnapshotCheckpointer writes each call to its own NetCDF file in Dir,
// named <tag>_<n>.nc where n counts calls with the same tag. The files
// serve as reference data for ValidationCheckpointer.
type SnapshotCheckpointer struct {
	Dir string

	mu     sync.Mutex
	counts map[string]int
}

// NewSnapshotCheckpointer stores snapshots in dir.
func NewSnapshotCheckpointer(dir string) *SnapshotCheckpointer {
	return &SnapshotCheckpointer{Dir: dir, counts: make(map[string]int)}
}

// Check implements Checkpointer.
func (s *SnapshotCheckpointer) Check(tag string, fields []Field) error {
	s.mu.Lock()
	n := s.counts[tag]
	s.counts[tag]++
	s.mu.Unlock()

	w, err := os.Create(filepath.Join(s.Dir, checkpointFileName(tag, n)))
	if err != nil {
		return fmt.Errorf("pace.SnapshotCheckpointer: %v", err)
	}
	defer w.Close()

	names := make([]string, len(fields))
	arrays := make(map[string]*sparse.DenseArray, len(fields))
	units := make(map[string]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		arrays[f.Name] = f.Data
		units[f.Name] = f.Units
	}
	sort.Strings(names)
	globals := map[string]interface{}{
		"data_version": StateDataVersion,
		"tag":          tag,
		"call":         []int32{int32(n)},
	}
	if err := writeArrays(w, names, arrays, units, globals); err != nil {
		return fmt.Errorf("pace.SnapshotCheckpointer: %s call %d: %v", tag, n, err)
	}
	return nil
}

func checkpointFileName(tag string, n int) string {
	return fmt.Sprintf("%s_%d.nc", tag, n)
}

// ValidationThresholds holds per-field relative error tolerances for
// checkpoint validation, decoded from a TOML file:
//
//	default = 1.0e-12
//	[field]
//	qvapor = 1.0e-10
type ValidationThresholds struct {
	Default float64
	Field   map[string]float64
}

// threshold returns the tolerance for a field name.
func (t *ValidationThresholds) threshold(name string) float64 {
	if v, ok := t.Field[name]; ok {
		return v
	}
	return t.Default
}

// LoadValidationThresholds decodes thresholds from TOML.
func LoadValidationThresholds(r io.Reader) (*ValidationThresholds, error) {
	t := new(ValidationThresholds)
	if _, err := toml.DecodeReader(r, t); err != nil {
		return nil, fmt.Errorf("pace.LoadValidationThresholds: %v", err)
	}
	if t.Default <= 0 {
		return nil, fmt.Errorf("pace.LoadValidationThresholds: default threshold must be positive, got %g", t.Default)
	}
	return t, nil
}

// ValidationCheckpointer compares each call against the matching
// snapshot file in RefDir. Any field whose element-wise relative error
// exceeds its threshold fails the check, and the failure is an error:
// validation exceedances are never downgraded to warnings.
type ValidationCheckpointer struct {
	RefDir     string
	Thresholds *ValidationThresholds

	mu     sync.Mutex
	counts map[string]int
}

// NewValidationCheckpointer validates against snapshots in refDir.
func NewValidationCheckpointer(refDir string, thresholds *ValidationThresholds) *ValidationCheckpointer {
	return &ValidationCheckpointer{
		RefDir:     refDir,
		Thresholds: thresholds,
		counts:     make(map[string]int),
	}
}

// Check implements Checkpointer.
func (v *ValidationCheckpointer) Check(tag string, fields []Field) error {
	v.mu.Lock()
	n := v.counts[tag]
	v.counts[tag]++
	v.mu.Unlock()

	name := filepath.Join(v.RefDir, checkpointFileName(tag, n))
	r, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("pace.ValidationCheckpointer: %v", err)
	}
	defer r.Close()
	ref, _, _, err := readArrays(r)
	if err != nil {
		return fmt.Errorf("pace.ValidationCheckpointer: %s: %v", name, err)
	}

	for _, f := range fields {
		refData, ok := ref[f.Name]
		if !ok {
			return fmt.Errorf("pace.ValidationCheckpointer: %s is missing variable %s", name, f.Name)
		}
		if len(refData.Elements) != len(f.Data.Elements) {
			return fmt.Errorf("pace.ValidationCheckpointer: %s variable %s has %d elements, want %d",
				name, f.Name, len(refData.Elements), len(f.Data.Elements))
		}
		thr := v.Thresholds.threshold(f.Name)
		var errStats stats.Stats
		exceeded := 0
		for i, got := range f.Data.Elements {
			want := refData.Elements[i]
			relErr := math.Abs(got-want) / math.Max(math.Abs(want), 1e-30)
			errStats.Update(relErr)
			if relErr > thr {
				exceeded++
			}
		}
		if exceeded > 0 {
			return fmt.Errorf("pace.ValidationCheckpointer: %s call %d: variable %s exceeds "+
				"relative threshold %g at %d of %d points (mean %g, max %g)",
				tag, n, f.Name, thr, exceeded, errStats.Count(),
				errStats.Mean(), errStats.Max())
		}
	}
	return nil
}
