package marshall

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// NamespaceBinding binds a namespace URI to a document prefix and to the
// marshalers it contributes per field kind.
type NamespaceBinding struct {
	URI      string
	Prefix   string
	Handlers map[FieldKind]Marshaler
}

// Registry holds the process-wide namespace bindings.
//
// Bindings are registered during startup and the registry is then frozen
// with Finalize. Registration order is marshaling precedence: for a given
// field kind the most recently registered namespace's handler wins, and
// fields of the last registered namespace are written after all others.
type Registry struct {
	mu        sync.RWMutex
	bindings  []NamespaceBinding
	byURI     map[string]int
	byPrefix  map[string]string
	finalized bool
}

// NewRegistry creates an empty, unfinalized registry.
func NewRegistry() *Registry {
	return &Registry{
		byURI:    make(map[string]int),
		byPrefix: make(map[string]string),
	}
}

// RegisterNamespace adds a binding. Re-registering an identical binding is
// a no-op; a different binding for a known URI fails with
// ErrDuplicateNamespace.
func (r *Registry) RegisterNamespace(binding NamespaceBinding) error {
	uri := strings.TrimSpace(binding.URI)
	if uri == "" {
		return fmt.Errorf("namespace uri is required")
	}
	binding.URI = uri

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFinalized, uri)
	}

	if idx, exists := r.byURI[uri]; exists {
		if sameBinding(r.bindings[idx], binding) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateNamespace, uri)
	}

	if binding.Prefix != "" {
		if owner, taken := r.byPrefix[binding.Prefix]; taken {
			return fmt.Errorf("%w: prefix %q already bound to %s", ErrDuplicateNamespace, binding.Prefix, owner)
		}
	}

	handlers := make(map[FieldKind]Marshaler, len(binding.Handlers))
	for kind, m := range binding.Handlers {
		if !kind.Valid() {
			return fmt.Errorf("%w: %s declares %s", ErrUnsupportedFieldKind, uri, kind)
		}
		if m != nil {
			handlers[kind] = m
		}
	}
	binding.Handlers = handlers

	r.byURI[uri] = len(r.bindings)
	if binding.Prefix != "" {
		r.byPrefix[binding.Prefix] = uri
	}
	r.bindings = append(r.bindings, binding)
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(binding NamespaceBinding) {
	if err := r.RegisterNamespace(binding); err != nil {
		panic(err)
	}
}

// Finalize freezes the registry. Subsequent registrations fail with
// ErrRegistryFinalized. Calling it more than once is harmless.
func (r *Registry) Finalize() {
	r.mu.Lock()
	r.finalized = true
	r.mu.Unlock()
}

// Finalized reports whether Finalize has been called.
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// Resolve returns the prefix bound to uri.
func (r *Registry) Resolve(uri string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byURI[uri]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNamespaceNotFound, uri)
	}
	return r.bindings[idx].Prefix, nil
}

// URIForPrefix returns the namespace URI bound to prefix.
func (r *Registry) URIForPrefix(prefix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.byPrefix[prefix]
	return uri, ok
}

// FieldHandlerFor returns the marshaler the namespace uri declares for kind.
func (r *Registry) FieldHandlerFor(uri string, kind FieldKind) (Marshaler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byURI[uri]
	if !ok {
		return nil, false
	}
	m, ok := r.bindings[idx].Handlers[kind]
	return m, ok
}

// HandlerFor returns the marshaler for kind from the most recently
// registered namespace that declares one.
func (r *Registry) HandlerFor(kind FieldKind) (Marshaler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.bindings) - 1; i >= 0; i-- {
		if m, ok := r.bindings[i].Handlers[kind]; ok {
			return m, true
		}
	}
	return nil, false
}

// Index returns the registration position of uri, or -1.
func (r *Registry) Index(uri string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.byURI[uri]; ok {
		return idx
	}
	return -1
}

// DefaultNamespace is the URI of the first registered namespace. Fields
// without an explicit namespace are marshaled under it.
func (r *Registry) DefaultNamespace() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.bindings) == 0 {
		return ""
	}
	return r.bindings[0].URI
}

// WorkflowNamespace is the URI of the last registered namespace when more
// than one is registered. Its fields are written after all other fields.
func (r *Registry) WorkflowNamespace() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.bindings) < 2 {
		return ""
	}
	return r.bindings[len(r.bindings)-1].URI
}

// Namespaces returns the bindings in registration order.
func (r *Registry) Namespaces() []NamespaceBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NamespaceBinding, len(r.bindings))
	for i, b := range r.bindings {
		handlers := make(map[FieldKind]Marshaler, len(b.Handlers))
		for k, m := range b.Handlers {
			handlers[k] = m
		}
		b.Handlers = handlers
		out[i] = b
	}
	return out
}

func sameBinding(a, b NamespaceBinding) bool {
	if a.URI != b.URI || a.Prefix != b.Prefix {
		return false
	}
	count := 0
	for kind, m := range b.Handlers {
		if m == nil {
			continue
		}
		count++
		existing, ok := a.Handlers[kind]
		if !ok || !sameMarshaler(existing, m) {
			return false
		}
	}
	return count == len(a.Handlers)
}

func sameMarshaler(a, b Marshaler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if ta.Comparable() {
		return a == b
	}
	switch ta.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}
