package genetics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrModelExists   = errors.New("genetic value model already registered")
	ErrModelNotFound = errors.New("genetic value model not found")
)

// ModelSpec carries the parameters a model factory may read. Params holds
// model-specific extras (for example snowdrift payoff coefficients).
type ModelSpec struct {
	Name    string
	Scaling float64
	Mode    Mode
	Params  map[string]float64
}

type Factory func(spec ModelSpec) (GeneticValue, error)

var modelRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: make(map[string]Factory),
}

func init() {
	mustRegister("additive", func(spec ModelSpec) (GeneticValue, error) {
		return Additive{Scaling: spec.Scaling, Mode: spec.Mode}, nil
	})
	mustRegister("multiplicative", func(spec ModelSpec) (GeneticValue, error) {
		return Multiplicative{Scaling: spec.Scaling, Mode: spec.Mode}, nil
	})
	mustRegister("snowdrift", func(spec ModelSpec) (GeneticValue, error) {
		if spec.Mode == TraitMode {
			return nil, errors.New("snowdrift reports fitness and cannot be used as a trait model")
		}
		return &Snowdrift{
			B1:    spec.Params["b1"],
			B2:    spec.Params["b2"],
			C1:    spec.Params["c1"],
			C2:    spec.Params["c2"],
			InitP: spec.Params["initp"],
		}, nil
	})
}

func mustRegister(name string, factory Factory) {
	if err := RegisterModel(name, factory); err != nil {
		panic(err)
	}
}

// RegisterModel makes a genetic value model available by name to
// configuration-driven runs.
func RegisterModel(name string, factory Factory) error {
	if name == "" {
		return errors.New("model name is required")
	}
	if factory == nil {
		return errors.New("model factory is required")
	}

	modelRegistry.mu.Lock()
	defer modelRegistry.mu.Unlock()

	if _, exists := modelRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrModelExists, name)
	}
	modelRegistry.m[name] = factory
	return nil
}

// ResolveModel builds the named model. Each call returns a fresh instance,
// so stateful models are never shared between runs.
func ResolveModel(spec ModelSpec) (GeneticValue, error) {
	modelRegistry.mu.RLock()
	factory, ok := modelRegistry.m[spec.Name]
	modelRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, spec.Name)
	}
	model, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", spec.Name, err)
	}
	return model, nil
}

func ListModels() []string {
	modelRegistry.mu.RLock()
	defer modelRegistry.mu.RUnlock()

	names := make([]string, 0, len(modelRegistry.m))
	for name := range modelRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
