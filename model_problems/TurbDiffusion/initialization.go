package TurbDiffusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/turbflux/geometry2D"
	"github.com/notargets/turbflux/types"

	"github.com/Knetic/govaluate"
	"github.com/spf13/cast"
)

// Node fields that can be initialized from an expression in x and y.
const (
	FieldDensity          = "Density"
	FieldLaminarViscosity = "LaminarViscosity"
	FieldEddyViscosity    = "EddyViscosity"
	FieldF1               = "F1"
	FieldTurbVar0         = "TurbVar0"
	FieldTurbVar1         = "TurbVar1"
)

var fieldDefaults = map[string]string{
	FieldDensity:          "1",
	FieldLaminarViscosity: "0.00001", // Expressions have no exponent notation
	FieldEddyViscosity:    "0",
	FieldF1:               "1",
	FieldTurbVar0:         "0",
	FieldTurbVar1:         "0",
}

var fieldFunctions = map[string]govaluate.ExpressionFunction{
	"exp":  unaryFunction("exp", math.Exp),
	"sqrt": unaryFunction("sqrt", math.Sqrt),
	"tanh": unaryFunction("tanh", math.Tanh),
	"sin":  unaryFunction("sin", math.Sin),
	"cos":  unaryFunction("cos", math.Cos),
	"abs":  unaryFunction("abs", math.Abs),
}

func unaryFunction(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("got %d arguments for function '%s', but needs 1", len(args), name)
		}
		x, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, fmt.Errorf("function '%s': %w", name, err)
		}
		return f(x), nil
	}
}

// FieldFunctions holds one compiled expression per node field.
type FieldFunctions struct {
	exprs map[string]*govaluate.EvaluableExpression
}

// NewFieldFunctions compiles the expressions keyed by field name (case insensitive).
// Fields that are not given take their default value.
func NewFieldFunctions(exprs map[string]string) (ff *FieldFunctions, err error) {
	var (
		canonical = make(map[string]string, len(fieldDefaults))
		sources   = make(map[string]string, len(fieldDefaults))
	)
	for name, def := range fieldDefaults {
		canonical[strings.ToLower(name)] = name
		sources[name] = def
	}
	for key, expr := range exprs {
		name, ok := canonical[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("unknown field %q, must be one of %s", key, strings.Join(FieldNames(), ", "))
		}
		sources[name] = expr
	}
	ff = &FieldFunctions{exprs: make(map[string]*govaluate.EvaluableExpression, len(sources))}
	for name, src := range sources {
		var expr *govaluate.EvaluableExpression
		if expr, err = govaluate.NewEvaluableExpressionWithFunctions(src, fieldFunctions); err != nil {
			return nil, fmt.Errorf("field %s, expression [%s]: %w", name, src, err)
		}
		for _, v := range expr.Vars() {
			if v != "x" && v != "y" {
				return nil, fmt.Errorf("field %s, expression [%s]: unknown variable %q, only x and y are defined",
					name, src, v)
			}
		}
		ff.exprs[name] = expr
	}
	return
}

func FieldNames() (names []string) {
	for name := range fieldDefaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Evaluate computes one field at a point.
func (ff *FieldFunctions) Evaluate(field string, x, y float64) (val float64, err error) {
	expr, ok := ff.exprs[field]
	if !ok {
		return 0, fmt.Errorf("unknown field %q", field)
	}
	var res interface{}
	if res, err = expr.Evaluate(map[string]interface{}{"x": x, "y": y}); err != nil {
		return 0, fmt.Errorf("evaluating %s at (%g,%g): %w", field, x, y, err)
	}
	if val, err = cast.ToFloat64E(res); err != nil {
		return 0, fmt.Errorf("field %s at (%g,%g): %w", field, x, y, err)
	}
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, fmt.Errorf("field %s at (%g,%g) is not finite", field, x, y)
	}
	return
}

// InitializeNodes evaluates the field functions at every mesh node and fills the turbulence
// variable gradients by least squares. The blending weight is clamped into [0,1].
func InitializeNodes(dm *geometry2D.DualMesh, model types.TurbModel, ff *FieldFunctions) (nodes []NodeState, err error) {
	var (
		Np      = dm.NumPoints()
		NVar    = model.NumVars()
		varData = make([]float64, Np*NVar)
		values  = make([][]float64, Np)
		turbVar = []string{FieldTurbVar0, FieldTurbVar1}
	)
	if NVar == 0 {
		return nil, fmt.Errorf("turbulence model %s transports no scalars", model.Print())
	}
	nodes = make([]NodeState, Np)
	for i := range nodes {
		var (
			x, y = dm.Coords[i][0], dm.Coords[i][1]
			ns   = &nodes[i]
		)
		values[i] = varData[i*NVar : (i+1)*NVar]
		ns.TurbVar = values[i]
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{FieldDensity, &ns.Density},
			{FieldLaminarViscosity, &ns.LaminarViscosity},
			{FieldEddyViscosity, &ns.EddyViscosity},
			{FieldF1, &ns.F1},
		} {
			if *f.dst, err = ff.Evaluate(f.name, x, y); err != nil {
				return nil, err
			}
		}
		for k := 0; k < NVar; k++ {
			if ns.TurbVar[k], err = ff.Evaluate(turbVar[k], x, y); err != nil {
				return nil, err
			}
		}
		if ns.Density <= 0 {
			return nil, fmt.Errorf("density %g at node %d must be positive", ns.Density, i)
		}
		if ns.LaminarViscosity < 0 {
			return nil, fmt.Errorf("laminar viscosity %g at node %d is negative", ns.LaminarViscosity, i)
		}
		ns.F1 = math.Max(0, math.Min(1, ns.F1))
	}
	grads := LeastSquaresGradients(dm, values)
	for i := range nodes {
		nodes[i].TurbVarGrad = grads[i]
	}
	return
}
