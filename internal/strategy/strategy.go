// Package strategy defines the fixed decision interface consumed by the
// backtest engine and provides a Registry of strategy factories so sweeps can
// build a fresh strategy instance per configuration.
package strategy

import (
	"fmt"
	"sort"

	"kepler/internal/domain"
	"kepler/internal/feature"
)

// Strategy maps a feature vector as-of tick T and an immutable portfolio
// snapshot as-of T to zero or more order intents. Implementations must be
// side-effect-free with respect to anything outside their return value: the
// engine hands them snapshots, never the live ledger, and may call them from
// many concurrent runs.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// OnTick is called once per bar past the feature warm-up window.
	OnTick(v feature.Vector, portfolio domain.PortfolioState) []domain.OrderIntent
}

// Factory constructs a strategy from sweep parameters. Unknown or
// out-of-domain parameters must fail construction rather than be ignored.
type Factory func(params map[string]float64) (Strategy, error)

// Registry holds named strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous registration.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds a strategy instance by name with the given parameters.
func (r *Registry) New(name string, params map[string]float64) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
