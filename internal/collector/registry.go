package collector

import (
	"fmt"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

// Registry keeps a mapping from source names to their collectors.
type Registry struct {
	collectors map[string]ports.Collector
	order      []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]ports.Collector{}}
}

// Register adds or replaces a collector. Registration order is preserved so
// runs process sources deterministically.
func (r *Registry) Register(c ports.Collector) {
	if r.collectors == nil {
		r.collectors = map[string]ports.Collector{}
	}
	if _, exists := r.collectors[c.Name()]; !exists {
		r.order = append(r.order, c.Name())
	}
	r.collectors[c.Name()] = c
}

// Resolve returns a collector by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Collector, error) {
	if c, ok := r.collectors[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", name)
}

// All returns the registered collectors in registration order.
func (r *Registry) All() []ports.Collector {
	out := make([]ports.Collector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.collectors[name])
	}
	return out
}
