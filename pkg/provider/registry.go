// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/viamin/aidp-sub001/pkg/errors"
)

// Registry manages provider factories and activated provider instances
// through a two-phase pattern: factories are registered first
// (internal/app registers one per configured provider at startup), and
// providers activate once configuration (and credentials) are known.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
	}
}

// RegisterFactory registers (or replaces) a provider factory.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Activate instantiates a provider from its registered factory.
func (r *Registry) Activate(name string, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		return fmt.Errorf("provider factory not found: %s", name)
	}
	if _, ok := r.providers[name]; ok {
		return nil // already activated, idempotent
	}
	p, err := factory(creds)
	if err != nil {
		return fmt.Errorf("activating provider %s: %w", name, err)
	}
	r.providers[name] = p
	return nil
}

// Register adds an already-constructed provider directly, bypassing
// the factory/activate phases. Used by tests and by providers that
// don't need credential-driven construction.
func (r *Registry) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return &pkgerrors.ValidationError{Field: "provider", Message: "provider must be non-nil and named"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider already registered: %s", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get retrieves an activated provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &pkgerrors.NotFoundError{Resource: "provider", ID: name}
	}
	return p, nil
}

// List returns the names of all activated providers, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsActive reports whether name has been activated.
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}
