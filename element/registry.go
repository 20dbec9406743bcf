package element

import (
	"fmt"
	"sort"
	"sync"
)

// Definition holds everything known about a registered kernel
type Definition struct {
	Tag        string
	Kernel     Kernel
	Properties Properties
}

// Registry maps element type tags to kernels. It is populated before
// assembly and only read afterwards; lookups are safe from many goroutines.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]*Definition)}
}

// Define registers kernel k under tag
func (r *Registry) Define(tag string, k Kernel) error {
	if tag == "" {
		return fmt.Errorf("element: empty tag")
	}
	if k == nil {
		return fmt.Errorf("element: nil kernel for tag %q", tag)
	}
	props := k.Properties()
	if props.LocalDOF() != k.LocalDOF() {
		return fmt.Errorf("element: kernel %q reports LocalDOF %d but its layout implies %d",
			tag, k.LocalDOF(), props.LocalDOF())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.definitions == nil {
		r.definitions = make(map[string]*Definition)
	}
	if _, exists := r.definitions[tag]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKernel, tag)
	}
	r.definitions[tag] = &Definition{Tag: tag, Kernel: k, Properties: props}
	return nil
}

// Lookup returns the kernel registered under tag
func (r *Registry) Lookup(tag string) (Kernel, error) {
	def, err := r.Definition(tag)
	if err != nil {
		return nil, err
	}
	return def.Kernel, nil
}

// Definition returns the full registration record for tag
func (r *Registry) Definition(tag string) (*Definition, error) {
	r.mu.RLock()
	def, ok := r.definitions[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElementType, tag)
	}
	return def, nil
}

// Tags returns the registered tags in sorted order
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
