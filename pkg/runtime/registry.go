package runtime

import (
	"sort"
	"sync"
)

// Registry maps instance keys to mounted instances. A later instance registered under an existing
// key replaces the earlier one.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Register stores instance under key and returns the instance it replaced, if any.
func (registry *Registry) Register(key string, instance *Instance) *Instance {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	previous := registry.instances[key]
	registry.instances[key] = instance
	return previous
}

// Lookup returns the instance stored under key.
func (registry *Registry) Lookup(key string) (*Instance, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	instance, found := registry.instances[key]
	return instance, found
}

// Remove deletes key only while it still points at instance.
func (registry *Registry) Remove(key string, instance *Instance) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.instances[key] != instance {
		return false
	}
	delete(registry.instances, key)
	return true
}

// Keys lists the registered keys in sorted order.
func (registry *Registry) Keys() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	keys := make([]string, 0, len(registry.instances))
	for key := range registry.instances {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered instances.
func (registry *Registry) Len() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.instances)
}
