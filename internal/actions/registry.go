package actions

import (
	"fmt"
	"sort"
	"sync"
)

// Handler performs one kind of action.
type Handler interface {
	Kind() Kind
	Execute(actx *Context, d Descriptor) error
}

// SimpleHandler adapts a function to Handler.
type SimpleHandler struct {
	kind Kind
	fn   func(actx *Context, d Descriptor) error
}

func (h *SimpleHandler) Kind() Kind { return h.kind }

func (h *SimpleHandler) Execute(actx *Context, d Descriptor) error {
	return h.fn(actx, d)
}

// Registry holds a handler per kind.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Kind]Handler),
	}
}

// Register adds a handler. Each kind may be registered once.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("handler for %q already registered", h.Kind())
	}

	r.handlers[h.Kind()] = h
	return nil
}

// RegisterSimple adds a function handler.
func (r *Registry) RegisterSimple(kind Kind, fn func(actx *Context, d Descriptor) error) error {
	return r.Register(&SimpleHandler{kind: kind, fn: fn})
}

// Get retrieves the handler for a kind.
func (r *Registry) Get(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, exists := r.handlers[kind]
	return h, exists
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
