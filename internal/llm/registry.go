package llm

import (
	"fmt"
	"sort"
	"sync"
)

// defines a function that creates a new provider instance
type ProviderFactory func() (Provider, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]ProviderFactory)
)

// registers a provider factory with the given name
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// creates a new provider instance based on the given name
func NewProvider(name string) (Provider, error) {
	mu.RLock()
	factory, exists := providers[name]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	return factory()
}

// Registered lists the provider names known to the registry.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set resolves an interview's model choice to a provider. Choices without a
// dedicated provider are served by the fallback.
type Set struct {
	byName   map[string]Provider
	fallback Provider
}

func NewSet(fallback Provider) *Set {
	return &Set{byName: map[string]Provider{fallback.GetProviderName(): fallback}, fallback: fallback}
}

// Add registers p under name.
func (s *Set) Add(name string, p Provider) *Set {
	s.byName[name] = p
	return s
}

// Has reports whether name has a dedicated provider.
func (s *Set) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// For returns the provider for model and whether it is a dedicated match.
func (s *Set) For(model string) (Provider, bool) {
	if p, ok := s.byName[model]; ok {
		return p, true
	}
	return s.fallback, false
}
