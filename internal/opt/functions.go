package opt

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// TestFunction is a benchmark objective with its search domain and known
// minimum.
type TestFunction struct {
	Name    string
	Eval    func([]float64) float64
	Lower   float64
	Upper   float64
	Minimum float64
}

// Bounds expands the scalar domain to dim dimensions.
func (f TestFunction) Bounds(dim int) (lower, upper []float64) {
	lower = make([]float64, dim)
	upper = make([]float64, dim)
	for i := range lower {
		lower[i] = f.Lower
		upper[i] = f.Upper
	}
	return lower, upper
}

// TestFunctions lists the built-in benchmark objectives.
var TestFunctions = []TestFunction{
	{Name: "sphere", Eval: Sphere, Lower: -5.12, Upper: 5.12},
	{Name: "rosenbrock", Eval: Rosenbrock, Lower: -2.048, Upper: 2.048},
	{Name: "rastrigin", Eval: Rastrigin, Lower: -5.12, Upper: 5.12},
}

// LookupFunction finds a benchmark objective by name.
func LookupFunction(name string) (TestFunction, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	i := slices.IndexFunc(TestFunctions, func(f TestFunction) bool { return f.Name == name })
	if i < 0 {
		return TestFunction{}, fmt.Errorf("unknown test function %q", name)
	}
	return TestFunctions[i], nil
}

// Sphere is sum(x_i^2), minimum 0 at the origin.
func Sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Rosenbrock is the banana valley, minimum 0 at (1, ..., 1).
func Rosenbrock(x []float64) float64 {
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Rastrigin is highly multimodal, minimum 0 at the origin.
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}
