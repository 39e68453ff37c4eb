// Package algorithm holds the trainable model implementations and the
// registry that selects one by the algorithm string stored on a
// PredictionModel.
package algorithm

import (
	"fmt"
	"sync"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// Model is one trainable algorithm. Fit produces opaque parameters from a
// series; Predict extrapolates from fitted parameters and recent history.
type Model interface {
	Name() string

	// Fit returns fitted parameters. warm carries the previous parameters
	// for incremental refits; implementations may ignore it.
	Fit(values []float64, hyper, warm models.Params) (models.Params, error)

	// Predict returns the point estimate stepsAhead past the end of history.
	Predict(params models.Params, history []float64, stepsAhead int) float64
}

// Registry maps stored algorithm names to implementations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Model
}

// NewRegistry returns a registry with the built-in algorithms registered.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Model)}
	r.Register(&LinearRegression{})
	r.Register(&MovingAverage{})
	return r
}

// Register adds or replaces an algorithm implementation.
func (r *Registry) Register(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[m.Name()] = m
}

// Get returns the implementation for a stored algorithm name.
func (r *Registry) Get(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q", name)
	}
	return m, nil
}

// Names lists registered algorithm names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
