// Package schema describes device models reflectively: model types with their
// properties, desired properties, actions and nested models, plus struct types
// shared across models.
package schema

import (
	"errors"
	"fmt"
	"unsafe"

	"azure-iot-serializer/serializer/agenttypes"
)

var (
	ErrInvalidArg = errors.New("schema: invalid argument")
	ErrNotFound   = errors.New("schema: not found")
	ErrDuplicate  = errors.New("schema: duplicate name")
)

// WriteFunc stores a decoded value into the memory at dst.
type WriteFunc func(v agenttypes.Value, dst unsafe.Pointer) error

// ChangeFunc is called after a desired property was written. modelBase is the
// address of the model instance that owns the property.
type ChangeFunc func(modelBase unsafe.Pointer, v agenttypes.Value)

// ModelChangeFunc is called once a nested model block was fully ingested.
type ModelChangeFunc func(blockBase unsafe.Pointer)

// Schema is a namespace of model types and struct types.
type Schema struct {
	namespace string
	models    []*Model
	structs   []*StructType
}

func New(namespace string) (*Schema, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: empty namespace", ErrInvalidArg)
	}
	return &Schema{namespace: namespace}, nil
}

func (s *Schema) Namespace() string { return s.namespace }

// CreateModelType registers a new, empty model type.
func (s *Schema) CreateModelType(name string) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty model name", ErrInvalidArg)
	}
	if _, err := s.ModelType(name); err == nil {
		return nil, fmt.Errorf("%w: model %q", ErrDuplicate, name)
	}
	m := &Model{schema: s, name: name}
	s.models = append(s.models, m)
	return m, nil
}

func (s *Schema) ModelType(name string) (*Model, error) {
	for _, m := range s.models {
		if m.name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: model %q", ErrNotFound, name)
}

func (s *Schema) ModelTypes() []*Model { return append([]*Model(nil), s.models...) }

// CreateStructType registers a new struct type. Primitive type names are refused.
func (s *Schema) CreateStructType(name string) (*StructType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty struct name", ErrInvalidArg)
	}
	if agenttypes.PrimitiveKind(name) != agenttypes.KindNone {
		return nil, fmt.Errorf("%w: %q is a primitive type", ErrInvalidArg, name)
	}
	if _, err := s.StructType(name); err == nil {
		return nil, fmt.Errorf("%w: struct %q", ErrDuplicate, name)
	}
	st := &StructType{name: name}
	s.structs = append(s.structs, st)
	return st, nil
}

func (s *Schema) StructType(name string) (*StructType, error) {
	for _, st := range s.structs {
		if st.name == name {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: struct %q", ErrNotFound, name)
}

func (s *Schema) StructTypes() []*StructType { return append([]*StructType(nil), s.structs...) }

// Property is a named, typed slot: a struct member, an action argument or a
// plain model property.
type Property struct {
	Name string
	Type string
}

func (p Property) validate() error {
	if p.Name == "" || p.Type == "" {
		return fmt.Errorf("%w: property needs a name and a type", ErrInvalidArg)
	}
	return nil
}

func addProperty(list []Property, p Property) ([]Property, error) {
	if err := p.validate(); err != nil {
		return list, err
	}
	for _, e := range list {
		if e.Name == p.Name {
			return list, fmt.Errorf("%w: %q", ErrDuplicate, p.Name)
		}
	}
	return append(list, p), nil
}

func propertyAt(list []Property, i int) (Property, error) {
	if i < 0 || i >= len(list) {
		return Property{}, fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(list))
	}
	return list[i], nil
}

// StructType is an ordered list of members.
type StructType struct {
	name    string
	members []Property
}

func (t *StructType) Name() string { return t.name }

func (t *StructType) AddMember(name, typeName string) error {
	members, err := addProperty(t.members, Property{Name: name, Type: typeName})
	if err != nil {
		return fmt.Errorf("struct %s: %w", t.name, err)
	}
	t.members = members
	return nil
}

func (t *StructType) MemberCount() int { return len(t.members) }

func (t *StructType) Member(i int) (Property, error) { return propertyAt(t.members, i) }

// Action is a remotely invokable operation with ordered arguments.
type Action struct {
	name string
	args []Property
}

func (a *Action) Name() string { return a.name }

func (a *Action) AddArgument(name, typeName string) error {
	args, err := addProperty(a.args, Property{Name: name, Type: typeName})
	if err != nil {
		return fmt.Errorf("action %s: %w", a.name, err)
	}
	a.args = args
	return nil
}

func (a *Action) ArgumentCount() int { return len(a.args) }

func (a *Action) Argument(i int) (Property, error) { return propertyAt(a.args, i) }

// DesiredProperty is written straight into device memory at Offset from the
// owning model's base address.
type DesiredProperty struct {
	Name     string
	Type     string
	Offset   uintptr
	Write    WriteFunc
	OnChange ChangeFunc
}
