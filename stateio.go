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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// StateDataVersion identifies the on-disk layout of state and grid
// files. Files carry it as a global attribute and readers reject
// mismatches, so stale preprocessing output fails loudly instead of
// producing wrong runs.
const StateDataVersion = "1.2"

// dimension names used in NetCDF files.
const (
	dimX     = "x"
	dimY     = "y"
	dimZ     = "z"
	dimZStag = "zStagger"
)

// writeArrays writes named arrays to a NetCDF file as float64
// variables. Three-dimensional arrays take dimensions (z, y, x) or
// (zStagger, y, x) depending on their level count; two-dimensional
// arrays take (y, x); one-dimensional arrays take (zStagger).
func writeArrays(w *os.File, names []string, arrays map[string]*sparse.DenseArray,
	units map[string]string, globalAttrs map[string]interface{}) error {

	// Establish the dimension lengths from the arrays.
	nz, nzStag, ny, nx := -1, -1, -1, -1
	setDim := func(cur *int, v int, what string) error {
		if *cur == -1 {
			*cur = v
			return nil
		}
		if *cur != v {
			return fmt.Errorf("inconsistent %s length: %d != %d", what, v, *cur)
		}
		return nil
	}
	for _, name := range names {
		a := arrays[name]
		switch len(a.Shape) {
		case 3:
			if err := setDim(&ny, a.Shape[1], dimY); err != nil {
				return err
			}
			if err := setDim(&nx, a.Shape[2], dimX); err != nil {
				return err
			}
			// Layer-centered and interface-level arrays differ by one
			// level; the smaller count is z.
			switch {
			case nz == -1 && nzStag == -1:
				nz = a.Shape[0]
			case a.Shape[0] == nz || a.Shape[0] == nzStag:
			case a.Shape[0] == nz+1:
				nzStag = a.Shape[0]
			case nz == a.Shape[0]+1:
				nzStag = nz
				nz = a.Shape[0]
			default:
				return fmt.Errorf("variable %s has %d levels, want %d or %d",
					name, a.Shape[0], nz, nz+1)
			}
		case 2:
			if err := setDim(&ny, a.Shape[0], dimY); err != nil {
				return err
			}
			if err := setDim(&nx, a.Shape[1], dimX); err != nil {
				return err
			}
		case 1:
			if err := setDim(&nzStag, a.Shape[0], dimZStag); err != nil {
				return err
			}
		default:
			return fmt.Errorf("variable %s has unsupported rank %d", name, len(a.Shape))
		}
	}

	var dimNames []string
	var dimLens []int
	addDim := func(name string, l int) {
		if l != -1 {
			dimNames = append(dimNames, name)
			dimLens = append(dimLens, l)
		}
	}
	addDim(dimX, nx)
	addDim(dimY, ny)
	addDim(dimZ, nz)
	addDim(dimZStag, nzStag)

	h := cdf.NewHeader(dimNames, dimLens)
	attrNames := make([]string, 0, len(globalAttrs))
	for name := range globalAttrs {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)
	for _, name := range attrNames {
		h.AddAttribute("", name, globalAttrs[name])
	}
	for _, name := range names {
		a := arrays[name]
		var dims []string
		switch len(a.Shape) {
		case 3:
			zName := dimZ
			if a.Shape[0] == nzStag {
				zName = dimZStag
			}
			dims = []string{zName, dimY, dimX}
		case 2:
			dims = []string{dimY, dimX}
		case 1:
			dims = []string{dimZStag}
		}
		h.AddVariable(name, dims, []float64{0})
		h.AddAttribute(name, "units", units[name])
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := writeVariable(f, name, arrays[name]); err != nil {
			return fmt.Errorf("writing variable %s: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeVariable(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data.Elements)
	return err
}

// readArrays reads every variable in a NetCDF file, along with its
// units attribute, after checking the data-version global attribute.
func readArrays(rw cdf.ReaderWriterAt) (map[string]*sparse.DenseArray, map[string]string, *cdf.File, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, nil, nil, err
	}
	version, _ := f.Header.GetAttribute("", "data_version").(string)
	if version != StateDataVersion {
		return nil, nil, nil, fmt.Errorf("data version %q is incompatible with the required version %q",
			version, StateDataVersion)
	}
	arrays := make(map[string]*sparse.DenseArray)
	units := make(map[string]string)
	for _, v := range f.Header.Variables() {
		dims := f.Header.Lengths(v)
		data := sparse.ZerosDense(dims...)
		r := f.Reader(v, nil, nil)
		if _, err := r.Read(data.Elements); err != nil {
			return nil, nil, nil, fmt.Errorf("reading variable %s: %v", v, err)
		}
		arrays[v] = data
		if u, ok := f.Header.GetAttribute(v, "units").(string); ok {
			units[v] = u
		}
	}
	return arrays, units, f, nil
}

// WriteNetCDF writes the full model state to a NetCDF file.
func (s *DycoreState) WriteNetCDF(w *os.File) error {
	arrays := s.fieldsByName()
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	globals := map[string]interface{}{
		"data_version": StateDataVersion,
		"nx":           []int32{int32(s.Shape.Nx)},
		"ny":           []int32{int32(s.Shape.Ny)},
		"nz":           []int32{int32(s.Shape.Nz)},
		"nhalo":        []int32{int32(s.Shape.NHalo)},
	}
	if err := writeArrays(w, names, arrays, fieldUnits, globals); err != nil {
		return fmt.Errorf("pace.DycoreState.WriteNetCDF: %v", err)
	}
	return nil
}

// ReadState reads a state written by WriteNetCDF.
func ReadState(rw cdf.ReaderWriterAt) (*DycoreState, error) {
	arrays, _, f, err := readArrays(rw)
	if err != nil {
		return nil, fmt.Errorf("pace.ReadState: %v", err)
	}
	shape := GridShape{
		Nx:    intAttr(f, "nx"),
		Ny:    intAttr(f, "ny"),
		Nz:    intAttr(f, "nz"),
		NHalo: intAttr(f, "nhalo"),
	}
	s, err := NewDycoreState(shape)
	if err != nil {
		return nil, fmt.Errorf("pace.ReadState: %v", err)
	}
	for name, dst := range s.fieldsByName() {
		src, ok := arrays[name]
		if !ok {
			return nil, fmt.Errorf("pace.ReadState: file is missing variable %s", name)
		}
		if len(src.Elements) != len(dst.Elements) {
			return nil, fmt.Errorf("pace.ReadState: variable %s has %d elements, want %d",
				name, len(src.Elements), len(dst.Elements))
		}
		copy(dst.Elements, src.Elements)
	}
	return s, nil
}

// intAttr reads a single-valued int32 global attribute.
func intAttr(f *cdf.File, name string) int {
	if v, ok := f.Header.GetAttribute("", name).([]int32); ok && len(v) == 1 {
		return int(v[0])
	}
	return -1
}

// gridFieldNames lists the variables of a grid-metric file.
var gridFieldNames = []string{"a11", "a12", "a21", "a22", "ak", "area", "bk", "dx", "dy"}

// WriteNetCDF writes grid metrics for the given shape, for use by the
// preprocessing pipeline and test fixtures.
func (g *GridData) WriteNetCDF(w *os.File, shape GridShape) error {
	arrays := map[string]*sparse.DenseArray{
		"ak":   sparse.ZerosDense(len(g.Ak)),
		"bk":   sparse.ZerosDense(len(g.Bk)),
		"area": g.Area, "dx": g.Dx, "dy": g.Dy,
		"a11": g.A11, "a12": g.A12, "a21": g.A21, "a22": g.A22,
	}
	copy(arrays["ak"].Elements, g.Ak)
	copy(arrays["bk"].Elements, g.Bk)
	units := map[string]string{
		"ak": "Pa", "bk": "", "area": "m2", "dx": "m", "dy": "m",
		"a11": "", "a12": "", "a21": "", "a22": "",
	}
	globals := map[string]interface{}{
		"data_version": StateDataVersion,
		"da_min":       []float64{g.DaMin},
		"da_min_c":     []float64{g.DaMinC},
		"nx":           []int32{int32(shape.Nx)},
		"ny":           []int32{int32(shape.Ny)},
		"nz":           []int32{int32(shape.Nz)},
		"nhalo":        []int32{int32(shape.NHalo)},
	}
	if err := writeArrays(w, gridFieldNames, arrays, units, globals); err != nil {
		return fmt.Errorf("pace.GridData.WriteNetCDF: %v", err)
	}
	return nil
}

// ReadGridData reads grid metrics written by GridData.WriteNetCDF.
func ReadGridData(rw cdf.ReaderWriterAt) (*GridData, GridShape, error) {
	arrays, _, f, err := readArrays(rw)
	if err != nil {
		return nil, GridShape{}, fmt.Errorf("pace.ReadGridData: %v", err)
	}
	shape := GridShape{
		Nx:    intAttr(f, "nx"),
		Ny:    intAttr(f, "ny"),
		Nz:    intAttr(f, "nz"),
		NHalo: intAttr(f, "nhalo"),
	}
	for _, name := range gridFieldNames {
		if _, ok := arrays[name]; !ok {
			return nil, shape, fmt.Errorf("pace.ReadGridData: file is missing variable %s", name)
		}
	}
	g := &GridData{
		Ak:   append([]float64{}, arrays["ak"].Elements...),
		Bk:   append([]float64{}, arrays["bk"].Elements...),
		Area: arrays["area"], Dx: arrays["dx"], Dy: arrays["dy"],
		A11: arrays["a11"], A12: arrays["a12"], A21: arrays["a21"], A22: arrays["a22"],
	}
	g.Ptop = g.Ak[0]
	if v, ok := f.Header.GetAttribute("", "da_min").([]float64); ok && len(v) == 1 {
		g.DaMin = v[0]
	}
	if v, ok := f.Header.GetAttribute("", "da_min_c").([]float64); ok && len(v) == 1 {
		g.DaMinC = v[0]
	}
	if err := g.Check(shape); err != nil {
		return nil, shape, fmt.Errorf("pace.ReadGridData: %v", err)
	}
	return g, shape, nil
}
