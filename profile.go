/*
Copyright © 2019 the picamr authors.
This file is part of picamr.

picamr is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

picamr is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with picamr.  If not, see <http://www.gnu.org/licenses/>.
*/

package picamr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/Knetic/govaluate"

	"github.com/spatialmodel/picamr/particles"
	"github.com/spatialmodel/picamr/phys"
)

// constants are the names available in profile expressions besides
// x, y and z.
var constants = map[string]interface{}{
	"pi":   math.Pi,
	"c":    phys.C,
	"q_e":  phys.Q,
	"m_e":  phys.Me,
	"m_p":  phys.Mp,
	"eps0": phys.Epsilon0,
	"mu0":  phys.Mu0,
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("picamr: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("picamr: argument of '%s' is %T, not a number", name, arg[0])
		}
		return f(v), nil
	}
}

var profileFuncs = map[string]govaluate.ExpressionFunction{
	"sin":  unary("sin", math.Sin),
	"cos":  unary("cos", math.Cos),
	"tan":  unary("tan", math.Tan),
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
	"tanh": unary("tanh", math.Tanh),
	// step is 1 for positive arguments and 0 otherwise.
	"step": unary("step", func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	}),
	"gauss": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 3 {
			return nil, fmt.Errorf("picamr: got %d arguments for function 'gauss', but needs 3", len(arg))
		}
		var v [3]float64
		for i, a := range arg {
			f, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("picamr: argument %d of 'gauss' is %T, not a number", i, a)
			}
			v[i] = f
		}
		d := (v[0] - v[1]) / v[2]
		return math.Exp(-0.5 * d * d), nil
	},
}

// exponentLiteral matches numbers in scientific notation that are not part
// of an identifier.
var exponentLiteral = regexp.MustCompile(`(^|[^A-Za-z0-9_.])((?:[0-9]+\.?[0-9]*|\.[0-9]+)[eE][+-]?[0-9]+)`)

// expandExponents rewrites scientific-notation literals such as 1e24 or
// 2.5e-3 in decimal form, which is all the expression lexer understands.
func expandExponents(expr string) (string, error) {
	var err error
	out := exponentLiteral.ReplaceAllStringFunc(expr, func(m string) string {
		sub := exponentLiteral.FindStringSubmatch(m)
		v, perr := strconv.ParseFloat(sub[2], 64)
		if perr != nil {
			err = fmt.Errorf("picamr: invalid number %q: %v", sub[2], perr)
			return m
		}
		return sub[1] + strconv.FormatFloat(v, 'f', -1, 64)
	})
	return out, err
}

// NewProfile compiles expr, a function of x, y and z in meters, into a
// profile. Boolean results evaluate to 1 and 0. An empty expression is
// zero everywhere.
func NewProfile(expr string) (particles.Profile, error) {
	if expr == "" {
		return func(x, y, z float64) float64 { return 0 }, nil
	}
	expanded, err := expandExponents(expr)
	if err != nil {
		return nil, err
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expanded, profileFuncs)
	if err != nil {
		return nil, fmt.Errorf("picamr: parsing profile %q: %v", expr, err)
	}
	for _, v := range e.Vars() {
		switch v {
		case "x", "y", "z":
		default:
			if _, ok := constants[v]; !ok {
				return nil, fmt.Errorf("picamr: profile %q uses unknown variable %q", expr, v)
			}
		}
	}
	// The profile is called sequentially, so the parameter map is reused.
	params := make(map[string]interface{}, len(constants)+3)
	for k, v := range constants {
		params[k] = v
	}
	return func(x, y, z float64) float64 {
		params["x"], params["y"], params["z"] = x, y, z
		r, err := e.Evaluate(params)
		if err != nil {
			return math.NaN()
		}
		switch v := r.(type) {
		case float64:
			return v
		case bool:
			if v {
				return 1
			}
			return 0
		default:
			return math.NaN()
		}
	}, nil
}
