// Package registry maintains the process-wide command registry. Each running
// application instance owns one named-command table, keyed by instance id in
// a directory safe for concurrent readers.
package registry

import (
	"sync"

	"pkt.systems/termrun/schema"
)

var (
	mu        sync.RWMutex
	instances = make(map[string]*Instance)
)

// Instance is one application instance's command table. Entries are inserted
// and removed, never mutated in place.
type Instance struct {
	id string

	mu       sync.RWMutex
	commands map[string]schema.CommandFunc
}

// Acquire creates and registers the command table for an application
// instance. Acquiring an id twice returns the existing table.
func Acquire(instanceID string) *Instance {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := instances[instanceID]; ok {
		return existing
	}
	inst := &Instance{
		id:       instanceID,
		commands: make(map[string]schema.CommandFunc),
	}
	instances[instanceID] = inst
	return inst
}

// Release removes the instance from the process-wide directory. Releasing an
// unknown id is a no-op.
func Release(instanceID string) {
	mu.Lock()
	defer mu.Unlock()
	delete(instances, instanceID)
}

// Lookup returns the command table for an instance id.
func Lookup(instanceID string) (*Instance, bool) {
	mu.RLock()
	defer mu.RUnlock()
	inst, ok := instances[instanceID]
	return inst, ok
}

// ID returns the owning application instance id.
func (i *Instance) ID() string {
	if i == nil {
		return ""
	}
	return i.id
}

// Register stores a named command. Registering an existing name replaces the
// entry wholesale.
func (i *Instance) Register(name string, fn schema.CommandFunc) {
	if i == nil || name == "" || fn == nil {
		return
	}
	i.mu.Lock()
	i.commands[name] = fn
	i.mu.Unlock()
}

// Unregister removes a named command.
func (i *Instance) Unregister(name string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	delete(i.commands, name)
	i.mu.Unlock()
}

// Resolve returns the function registered under name.
func (i *Instance) Resolve(name string) (schema.CommandFunc, bool) {
	if i == nil {
		return nil, false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	fn, ok := i.commands[name]
	return fn, ok
}

// Names returns the currently registered command names.
func (i *Instance) Names() []string {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.commands))
	for name := range i.commands {
		names = append(names, name)
	}
	return names
}
