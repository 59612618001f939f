package marshall

import (
	"fmt"
)

// Dispatcher selects the marshaler for a field by kind and applies it.
// Handler lookup goes through the registry, so the most recently
// registered namespace declaring a kind decides how that kind is written.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// QualifiedName is the tag a field is written under.
func (d *Dispatcher) QualifiedName(field FieldDescriptor) QualifiedTag {
	ns := field.Namespace
	if ns == "" {
		ns = d.registry.DefaultNamespace()
	}
	return QualifiedTag{Local: field.Name, Namespace: ns}
}

func (d *Dispatcher) handler(field FieldDescriptor) (Marshaler, error) {
	if !field.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFieldKind, field.Kind)
	}
	m, ok := d.registry.HandlerFor(field.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: no handler registered for %s", ErrUnsupportedFieldKind, field.Kind)
	}
	return m, nil
}

// IsEmpty reports whether value is the empty sentinel of the field's kind.
// A nil value is always empty.
func (d *Dispatcher) IsEmpty(field FieldDescriptor, value any) (bool, error) {
	if value == nil {
		return true, nil
	}
	m, err := d.handler(field)
	if err != nil {
		return false, err
	}
	return m.IsEmpty(value), nil
}

// Serialize marshals one field value into an element.
func (d *Dispatcher) Serialize(field FieldDescriptor, value any) (*Element, error) {
	m, err := d.handler(field)
	if err != nil {
		return nil, &FieldError{Field: field.Name, Op: "serialize", Err: err}
	}
	el := &Element{Name: d.QualifiedName(field)}
	if err := m.MarshalField(field, value, el); err != nil {
		return nil, &FieldError{Field: field.Name, Op: "serialize", Err: err}
	}
	return el, nil
}

// Deserialize reads one field value back from an element. The element
// must carry the field's qualified name.
func (d *Dispatcher) Deserialize(field FieldDescriptor, el *Element) (any, error) {
	if el == nil {
		return nil, &FieldError{Field: field.Name, Op: "deserialize", Err: fmt.Errorf("%w: nil element", ErrMalformedFragment)}
	}
	m, err := d.handler(field)
	if err != nil {
		return nil, &FieldError{Field: field.Name, Op: "deserialize", Err: err}
	}
	if want := d.QualifiedName(field); el.Name != want {
		return nil, &FieldError{
			Field: field.Name,
			Op:    "deserialize",
			Err:   fmt.Errorf("%w: expected %s, got %s", ErrMalformedFragment, want, el.Name),
		}
	}
	value, err := m.UnmarshalField(field, el)
	if err != nil {
		return nil, &FieldError{Field: field.Name, Op: "deserialize", Err: err}
	}
	return value, nil
}
