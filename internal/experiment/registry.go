package experiment

import (
	"fmt"
	"os"
	"sort"

	"github.com/san-kum/mpmsim/internal/config"
)

// Registry resolves scenario names to configurations. It starts with the
// built-in presets; more can be registered from files.
type Registry struct {
	scenarios map[string]func() (*config.Config, error)
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]func() (*config.Config, error))}
	for _, name := range config.ListPresets() {
		name := name
		r.scenarios[name] = func() (*config.Config, error) { return config.GetPreset(name), nil }
	}
	return r
}

// RegisterFile adds a scenario read from path each time it is resolved.
func (r *Registry) RegisterFile(name, path string) {
	r.scenarios[name] = func() (*config.Config, error) { return config.Load(path) }
}

// Get resolves a registered name, or failing that treats name as the path
// of a scenario file.
func (r *Registry) Get(name string) (*config.Config, error) {
	if fn, ok := r.scenarios[name]; ok {
		return fn()
	}
	if _, err := os.Stat(name); err == nil {
		return config.Load(name)
	}
	return nil, fmt.Errorf("unknown scenario: %s", name)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
