// Package unit defines the processing units a pipeline stage executes and the
// registry that resolves a stage's unit reference to one of them.
//
// A unit is opaque to the pipeline: it receives an Invocation naming its
// input, its output and a scratch work artifact, and reports success or an
// error. Whether it is a notebook run through papermill, a script, or a Go
// function is decided by the Registry.
package unit

import (
	"context"
	"fmt"
	"sync"

	"insuraflow/internal/etlerr"
)

// Invocation is everything a unit needs for one execution.
type Invocation struct {
	// Stage is the logical stage name ("cleaning", "transforming").
	Stage string
	// Unit is the unit reference from the config (e.g. a notebook path).
	Unit string
	// Input is the data file the unit reads.
	Input string
	// Output is the data file the unit must produce.
	Output string
	// WorkArtifact is the scratch file the unit may write its execution
	// record to. The caller removes it afterwards.
	WorkArtifact string
	// Params are extra named parameters.
	Params map[string]string
}

// Unit executes one stage's transformation.
type Unit interface {
	Run(ctx context.Context, inv Invocation) error
}

// Func adapts an ordinary function to the Unit interface.
type Func func(ctx context.Context, inv Invocation) error

// Run calls f(ctx, inv).
func (f Func) Run(ctx context.Context, inv Invocation) error { return f(ctx, inv) }

// Registry maps unit references to units. A reference without an exact entry
// falls back to the default unit, if one is set.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
	def   Unit
}

// NewRegistry returns a registry whose fallback is def (which may be nil).
func NewRegistry(def Unit) *Registry {
	return &Registry{units: map[string]Unit{}, def: def}
}

// Register binds ref to u, replacing any earlier binding.
func (r *Registry) Register(ref string, u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[ref] = u
}

// Resolve returns the unit for ref. An empty ref, or a ref with no entry and
// no default, wraps etlerr.ErrConfigMissing.
func (r *Registry) Resolve(ref string) (Unit, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty unit reference", etlerr.ErrConfigMissing)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.units[ref]; ok {
		return u, nil
	}
	if r.def != nil {
		return r.def, nil
	}
	return nil, fmt.Errorf("%w: no unit registered for %q", etlerr.ErrConfigMissing, ref)
}
