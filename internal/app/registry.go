package app

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/appsim/internal/compiler"
	"github.com/roach88/appsim/internal/ir"
)

// ErrDuplicateApp is returned by Register for an app id already present.
var ErrDuplicateApp = errors.New("app already registered")

// ErrUnknownApp is returned by NewApp for an unregistered app id.
var ErrUnknownApp = errors.New("app not registered")

// Registry holds validated app definitions by app id. Hosts create one
// and pass it where it is needed; there is no package-level registry.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]registered
}

type registered struct {
	def  *ir.AppDefinition
	hash string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]registered)}
}

// Register validates def and adds it. Validation failures are returned
// joined; each is a compiler.ValidationError.
func (r *Registry) Register(def *ir.AppDefinition) error {
	if def == nil {
		return errors.New("register: nil definition")
	}
	if err := compiler.AsError(compiler.Validate(def)); err != nil {
		return fmt.Errorf("register %s: %w", def.AppID, err)
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return fmt.Errorf("register %s: %w", def.AppID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.AppID]; exists {
		return fmt.Errorf("register %s: %w", def.AppID, ErrDuplicateApp)
	}
	r.defs[def.AppID] = registered{def: def, hash: hash}
	return nil
}

// Get returns the definition registered under appID.
func (r *Registry) Get(appID string) (*ir.AppDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.defs[appID]
	return e.def, ok
}

// Hash returns the content hash recorded when appID was registered.
func (r *Registry) Hash(appID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.defs[appID]
	return e.hash, ok
}

// List returns the registered app ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NewApp creates a DynamicApp for a registered definition.
func (r *Registry) NewApp(appID string, opts ...Option) (*DynamicApp, error) {
	def, ok := r.Get(appID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", appID, ErrUnknownApp)
	}
	return New(def, opts...)
}
