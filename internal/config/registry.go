package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/reelwright/pkg/provider/llm"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned when no factory exists for an entry's
// provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its configuration entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is one kind's name-to-constructor table.
type factories[T any] struct {
	kind   string
	byName map[string]Factory[T]
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	var zero T
	build, ok := f.byName[entry.Name]
	if !ok {
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := build(entry)
	if err != nil {
		return zero, fmt.Errorf("config: create %s/%s: %w", f.kind, entry.Name, err)
	}
	return p, nil
}

// Registry maps provider names in [ProviderEntry.Name] to constructors. A
// later registration under the same name replaces the earlier one. Safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	stt factories[stt.Provider]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		llm: factories[llm.Provider]{kind: "llm", byName: make(map[string]Factory[llm.Provider])},
		stt: factories[stt.Provider]{kind: "stt", byName: make(map[string]Factory[stt.Provider])},
	}
}

func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	r.llm.byName[name] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.byName[name] = f
	r.mu.Unlock()
}

// CreateLLM builds the language model named by entry. Factory errors are
// wrapped with the provider name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateSTT builds the speech-to-text backend named by entry.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// Names lists the registered names for kind "llm" or "stt", sorted. Other
// kinds yield nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.llm.kind:
		return slices.Sorted(maps.Keys(r.llm.byName))
	case r.stt.kind:
		return slices.Sorted(maps.Keys(r.stt.byName))
	}
	return nil
}
