package bridge

import (
	"sort"
	"sync"
)

// Registry maps command names to handlers. Registering an existing name
// replaces the previous handler.
type Registry struct {
	handlers sync.Map
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds name to h. A nil h unregisters.
func (r *Registry) Register(name string, h Handler) {
	if h == nil {
		r.handlers.Delete(name)
		return
	}
	r.handlers.Store(name, h)
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.handlers.Delete(name)
}

// Lookup returns the handler bound to name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	val, ok := r.handlers.Load(name)
	if !ok {
		return nil, false
	}
	return val.(Handler), true
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.handlers.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}
