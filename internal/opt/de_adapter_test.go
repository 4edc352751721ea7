package opt

import (
	"math"
	"testing"

	"github.com/cwbudde/plucktune/internal/de"
)

func TestDEAdapterOnSphere(t *testing.T) {
	dim := 3
	lower, upper := TestFunctions[0].Bounds(dim)

	res, err := NewDE(200, de.WithSeed(42)).Run(Sphere, lower, upper, dim)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Position) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(res.Position))
	}
	if res.Cost > 1e-3 {
		t.Errorf("Expected cost near 0, got %g", res.Cost)
	}
	if got := Sphere(res.Position); math.Abs(got-res.Cost) > 1e-12 {
		t.Errorf("Position is not mapped to bounds: Sphere(pos)=%g, cost=%g", got, res.Cost)
	}

	// Initialization plus one evaluation per slot per generation.
	pop := int64(de.DefaultPopulationFactor * dim)
	if want := pop * 201; res.Evaluations != want {
		t.Errorf("Expected %d evaluations, got %d", want, res.Evaluations)
	}
}

func TestDEAdapterDeterministic(t *testing.T) {
	lower, upper := TestFunctions[2].Bounds(4)

	res1, err := NewDE(30, de.WithSeed(7), de.WithWorkers(1)).Run(Rastrigin, lower, upper, 4)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	res2, err := NewDE(30, de.WithSeed(7), de.WithWorkers(4)).Run(Rastrigin, lower, upper, 4)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res1.Cost != res2.Cost {
		t.Errorf("Non-deterministic: cost1=%g, cost2=%g", res1.Cost, res2.Cost)
	}
}

func TestDEAdapterInvalidConfig(t *testing.T) {
	lower, upper := TestFunctions[0].Bounds(2)
	if _, err := NewDE(10, de.WithCrossoverProbability(2)).Run(Sphere, lower, upper, 2); err == nil {
		t.Error("Expected error for invalid crossover probability")
	}
	if _, err := NewDE(10).Run(Sphere, lower, upper, 3); err == nil {
		t.Error("Expected error for bound length mismatch")
	}
}

func TestTestFunctions(t *testing.T) {
	if got := Sphere([]float64{0, 0, 0}); got != 0 {
		t.Errorf("Sphere minimum: expected 0, got %f", got)
	}
	if got := Rosenbrock([]float64{1, 1, 1}); got != 0 {
		t.Errorf("Rosenbrock minimum: expected 0, got %f", got)
	}
	if got := Rastrigin([]float64{0, 0}); math.Abs(got) > 1e-12 {
		t.Errorf("Rastrigin minimum: expected 0, got %f", got)
	}
	if got := Rosenbrock([]float64{0, 0}); got != 1 {
		t.Errorf("Rosenbrock(0,0): expected 1, got %f", got)
	}

	f, err := LookupFunction(" Rastrigin")
	if err != nil || f.Name != "rastrigin" {
		t.Errorf("LookupFunction failed: %v", err)
	}
	if _, err := LookupFunction("ackley"); err == nil {
		t.Error("Expected error for unknown function")
	}
}
