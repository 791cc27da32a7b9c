// Package host adapts the CSG dispatcher to the two ways host applications
// drive it: an interactive command that prompts for its inputs, and a
// node-graph component that reads inputs and reports runtime messages.
package host

import (
	"sort"
	"sync"

	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/mesh"
	"github.com/google/uuid"
)

// Performer runs a boolean operation. *csg.Dispatcher implements it.
type Performer interface {
	Perform(a, b *mesh.Mesh, op kernel.Operation) (*mesh.Mesh, error)
}

// Document is a named collection of meshes, standing in for the model of
// a host application.
type Document struct {
	mu     sync.RWMutex
	meshes map[string]*mesh.Mesh
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{meshes: make(map[string]*mesh.Mesh)}
}

// Add stores m under name and returns the name. An empty name is replaced
// by a generated one.
func (d *Document) Add(name string, m *mesh.Mesh) string {
	if name == "" {
		name = "mesh-" + uuid.NewString()[:8]
	}
	d.mu.Lock()
	d.meshes[name] = m
	d.mu.Unlock()
	return name
}

// Get returns the mesh stored under name.
func (d *Document) Get(name string) (*mesh.Mesh, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.meshes[name]
	return m, ok
}

// Names returns the mesh names in sorted order.
func (d *Document) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.meshes))
	for name := range d.meshes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of meshes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.meshes)
}
