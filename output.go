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
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved.
//
// If allLayers is true, output will contain data for all of the
// vertical layers, otherwise only the lowest model layer is written.
//
// outputVariables maps the names of the variables for which data
// should be written to expressions that define how the requested data
// should be calculated. These expressions can utilize variables built
// into the model, user-defined variables, and functions.
//
// modelVariables is automatically generated based on the model
// variables that are required to calculate the requested output
// variables.
//
// Functions are defined in the outputFunctions variable.
type Outputter struct {
	fileName        string
	allLayers       bool
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'sqrt(x)' and 'abs(x)' which apply the square root and absolute
// value functions.
//
// 'min(x, y)' and 'max(x, y)' which take the smaller or the larger of
// two values.
//
// 'sum(x)' which sums an expression across all grid cells.
func NewOutputter(fileName string, allLayers bool, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return (float64)(math.Exp(arg[0].(float64))), nil
		},
		"sqrt": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'sqrt', but needs 1", len(arg))
			}
			return (float64)(math.Sqrt(arg[0].(float64))), nil
		},
		"abs": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'abs', but needs 1", len(arg))
			}
			return (float64)(math.Abs(arg[0].(float64))), nil
		},
		"min": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'min', but needs 2", len(arg))
			}
			return (float64)(math.Min(arg[0].(float64), arg[1].(float64))), nil
		},
		"max": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'max', but needs 2", len(arg))
			}
			return (float64)(math.Max(arg[0].(float64), arg[1].(float64))), nil
		},
		"sum": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("pace: got %d arguments for function 'sum', but needs 1", len(arg))
			}
			return floats.Sum(arg[0].([]float64)), nil
		},
	}

	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		allLayers:       allLayers,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	// checkForDerivatives rewrites the expressions, so work on a copy
	// rather than the caller's map.
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}

	err := o.checkForDerivatives()

	return &o, err
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

func checkPrefix(s string) (bool, error) {
	var isPrefix bool
	var err error
	if string(s) != "" {
		isPrefix, err = regexp.MatchString("[a-zA-Z0-9_]", string(s[0]))
		if err != nil {
			return false, err
		}
	} else {
		isPrefix = false
	}
	return isPrefix, nil
}

func checkSuffix(s string) (bool, error) {
	var isSuffix bool
	var err error
	if string(s) != "" {
		isSuffix, err = regexp.MatchString("[a-zA-Z0-9_]", string(s[len(s)-1]))
		if err != nil {
			return false, err
		}
	} else {
		isSuffix = false
	}
	return isSuffix, nil
}

// checkForDerivatives identifies the unique model variables that are
// required to calculate the requested output variables. Any
// user-defined output variable showing up in a subsequent expression
// is replaced by its corresponding user-defined expression.
func (o *Outputter) checkForDerivatives() error {
	o.modelVariables = make([]string, 0, len(o.outputVariables))
	for key, val := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return fmt.Errorf("pace: output variable %s: %v", key, err)
		}
		uniqueVars := removeDuplicates(expression.Vars())
		o.modelVariables = append(o.modelVariables, uniqueVars...)
		// For each variable name identified in an output variable
		// expression, check if the variable is defined in terms of other
		// variables within a separate expression. If so, any instance of
		// the variable name in the current expression is replaced by the
		// expression that defines it.
		var isSuffix bool
		var isPrefix bool
		for _, uniqueVar := range uniqueVars {
			if o.outputVariables[uniqueVar] != "" && o.outputVariables[uniqueVar] != uniqueVar {
				// In order to verify that an instance of a variable name is
				// not part of a longer variable name, the text preceding and
				// following the variable name is analyzed. For example, 'pt'
				// is not a standalone variable in an expression if it
				// appears as 'ptop'.
				splitVal := strings.Split(val, uniqueVar)
				for i := 0; i < len(splitVal)-1; i++ {
					isSuffix, err = checkSuffix(splitVal[i])
					if err != nil {
						return fmt.Errorf("pace: output variable %s: %v", key, err)
					}
					isPrefix, err = checkPrefix(splitVal[i+1])
					if err != nil {
						return fmt.Errorf("pace: output variable %s: %v", key, err)
					}
					splitVal[i] = splitVal[i] + uniqueVar
					// For every instance of the variable name that is not
					// part of a longer variable name, replace it by the
					// expression that defines it.
					if !isSuffix && !isPrefix {
						splitVal[i] = strings.Replace(splitVal[i], uniqueVar, "("+o.outputVariables[uniqueVar]+")", -1)
					}
				}
				o.outputVariables[key] = strings.Join(splitVal, "")
				return o.checkForDerivatives()
			}
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return nil
}

// checkModelVars checks whether the unique model variables required to
// calculate the user-requested output variables are available in the
// state.
func checkModelVars(s *DycoreState, g ...string) error {
	fields := s.fieldsByName()
	var missing []string
	for _, v := range g {
		if _, ok := fields[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("pace: undefined variable name '%s'", strings.Join(missing, "', '"))
	}
	return nil
}

// checkOutputNames checks if any output variable names include
// characters that are unsupported in NetCDF variable names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		ok, err := regexp.MatchString("^[A-Za-z]\\w*$", key)
		if err != nil {
			panic(err)
		}
		if !ok {
			return fmt.Errorf("pace: output variable name '%s' includes unsupported character(s)", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated from
// the given state.
func (o *Outputter) CheckOutputVars(s *DycoreState) error {
	if err := checkModelVars(s, o.modelVariables...); err != nil {
		return err
	}
	return checkOutputNames(o.outputVariables)
}

// Results evaluates the output variable expressions over the state's
// compute domain, returning one array per output variable. A result
// referencing layer-centered fields has Nz levels and one referencing
// interface-level fields has Nz+1; an expression that uses only
// two-dimensional fields produces a two-dimensional result. If the
// Outputter was created without allLayers, three-dimensional results
// are reduced to their lowest model layer.
func (o *Outputter) Results(s *DycoreState) (map[string]*sparse.DenseArray, error) {
	results := make(map[string]*sparse.DenseArray, len(o.outputVariables))
	for name, expr := range o.outputVariables {
		data, err := o.evaluate(s, expr)
		if err != nil {
			return nil, fmt.Errorf("pace: output variable %s: %v", name, err)
		}
		if !o.allLayers && len(data.Shape) == 3 {
			data = bottomLayer(data)
		}
		results[name] = data
	}
	return results, nil
}

// evaluate computes one expression pointwise over the compute domain,
// excluding the halos.
func (o *Outputter) evaluate(s *DycoreState, expr string) (*sparse.DenseArray, error) {
	expr, sums, err := o.expandSums(s, expr)
	if err != nil {
		return nil, err
	}
	expression, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
	if err != nil {
		return nil, err
	}

	// Sort the variables by dimensionality. Fields appearing in the
	// same expression must agree on the number of levels;
	// two-dimensional fields hold the same value on every level.
	fields := s.fieldsByName()
	var names3, names2 []string
	nlev := 0
	for _, v := range removeDuplicates(expression.Vars()) {
		if _, ok := sums[v]; ok {
			continue
		}
		a, ok := fields[v]
		if !ok {
			return nil, fmt.Errorf("pace: undefined variable name '%s'", v)
		}
		switch len(a.Shape) {
		case 3:
			if nlev != 0 && nlev != a.Shape[0] {
				return nil, fmt.Errorf("pace: expression %q mixes fields with %d and %d levels",
					expr, nlev, a.Shape[0])
			}
			nlev = a.Shape[0]
			names3 = append(names3, v)
		default:
			names2 = append(names2, v)
		}
	}

	shape := s.Shape
	nyF, nxF := shape.padded()
	params := make(map[string]interface{}, len(names3)+len(names2)+len(sums))
	for name, v := range sums {
		params[name] = v
	}

	evalCell := func(k, j, i int) (float64, error) {
		g := (j+shape.NHalo)*nxF + i + shape.NHalo
		for _, name := range names2 {
			params[name] = fields[name].Elements[g]
		}
		for _, name := range names3 {
			params[name] = fields[name].Elements[k*nyF*nxF+g]
		}
		result, err := expression.Evaluate(params)
		if err != nil {
			return 0, err
		}
		switch v := result.(type) {
		case float64:
			return v, nil
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		}
		return 0, fmt.Errorf("pace: expression %q yields a %T, want a number", expr, result)
	}

	if nlev == 0 {
		out := sparse.ZerosDense(shape.Ny, shape.Nx)
		n := 0
		for j := 0; j < shape.Ny; j++ {
			for i := 0; i < shape.Nx; i++ {
				v, err := evalCell(0, j, i)
				if err != nil {
					return nil, err
				}
				out.Elements[n] = v
				n++
			}
		}
		return out, nil
	}
	out := sparse.ZerosDense(nlev, shape.Ny, shape.Nx)
	n := 0
	for k := 0; k < nlev; k++ {
		for j := 0; j < shape.Ny; j++ {
			for i := 0; i < shape.Nx; i++ {
				v, err := evalCell(k, j, i)
				if err != nil {
					return nil, err
				}
				out.Elements[n] = v
				n++
			}
		}
	}
	return out, nil
}

// expandSums evaluates each sum(...) call in an expression over the
// whole compute domain and replaces the call with a scalar parameter,
// so that the remaining expression can be evaluated cell by cell.
func (o *Outputter) expandSums(s *DycoreState, expr string) (string, map[string]interface{}, error) {
	params := make(map[string]interface{})
	for {
		start := sumCallIndex(expr)
		if start < 0 {
			return expr, params, nil
		}
		open := start + len("sum")
		end, err := matchParen(expr, open)
		if err != nil {
			return "", nil, err
		}
		inner, err := o.evaluate(s, expr[open+1:end])
		if err != nil {
			return "", nil, err
		}
		n := len(params)
		name := fmt.Sprintf("sum_%d", n)
		for strings.Contains(expr, name) {
			n++
			name = fmt.Sprintf("sum_%d", n)
		}
		params[name] = floats.Sum(inner.Elements)
		expr = expr[:start] + name + expr[end+1:]
	}
}

// sumCallIndex locates a sum( call that is not part of a longer
// identifier, returning -1 if there is none.
func sumCallIndex(expr string) int {
	for start := 0; ; {
		i := strings.Index(expr[start:], "sum(")
		if i < 0 {
			return -1
		}
		i += start
		if i == 0 || !isWordChar(expr[i-1]) {
			return i
		}
		start = i + len("sum(")
	}
}

func isWordChar(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

// matchParen returns the index of the parenthesis closing the one at
// open.
func matchParen(expr string, open int) (int, error) {
	depth := 0
	for i := open; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("pace: unbalanced parentheses in %q", expr)
}

// bottomLayer returns the lowest model layer of a three-dimensional
// result.
func bottomLayer(a *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape[1], a.Shape[2])
	copy(out.Elements, a.Elements[(a.Shape[0]-1)*len(out.Elements):])
	return out
}

// Output evaluates the output variables and writes them to a NetCDF
// file at the configured path.
func (o *Outputter) Output(s *DycoreState) error {
	if err := o.CheckOutputVars(s); err != nil {
		return err
	}
	results, err := o.Results(s)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	// Expressions that pass a field through unchanged keep its units.
	units := make(map[string]string, len(names))
	for _, name := range names {
		units[name] = fieldUnits[strings.TrimSpace(o.outputVariables[name])]
	}
	w, err := os.Create(o.fileName)
	if err != nil {
		return fmt.Errorf("pace: creating output file: %v", err)
	}
	globals := map[string]interface{}{
		"data_version": StateDataVersion,
		"nx":           []int32{int32(s.Shape.Nx)},
		"ny":           []int32{int32(s.Shape.Ny)},
		"nz":           []int32{int32(s.Shape.Nz)},
	}
	if err := writeArrays(w, names, results, units, globals); err != nil {
		w.Close()
		return fmt.Errorf("pace: writing output file: %v", err)
	}
	return w.Close()
}
