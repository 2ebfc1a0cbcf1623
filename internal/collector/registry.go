package collector

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Environment resolves credentials by key.
type Environment interface {
	Lookup(key string) (string, bool)
}

// EnvMap is an Environment backed by a map.
type EnvMap map[string]string

func (m EnvMap) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// OSEnv resolves credentials from the process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// Registry holds provider descriptors in registration order.
type Registry struct {
	mu    sync.RWMutex
	descs []Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a descriptor. IDs must be unique.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("register provider: empty id")
	}
	if d.Fetcher == nil {
		return fmt.Errorf("register provider %s: nil fetcher", d.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.descs {
		if existing.ID == d.ID {
			return fmt.Errorf("register provider %s: duplicate id", d.ID)
		}
	}
	r.descs = append(r.descs, d)
	return nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descs)
}

// ActiveProviders returns, in registration order, every provider whose
// credential is present in env. Providers that need no credential are always
// kept. A nil env has no credentials. An empty result is a *ConfigurationError.
func (r *Registry) ActiveProviders(env Environment) ([]Descriptor, error) {
	if env == nil {
		env = EnvMap{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]Descriptor, 0, len(r.descs))
	var skipped []string
	for _, d := range r.descs {
		if d.Credential != "" {
			v, ok := env.Lookup(d.Credential)
			if !ok || strings.TrimSpace(v) == "" {
				skipped = append(skipped, d.ID)
				continue
			}
		}
		active = append(active, d)
	}
	if len(active) == 0 {
		return nil, &ConfigurationError{Skipped: skipped}
	}
	return active, nil
}
