package schema

import (
	"fmt"
)

// Model is a device model type.
type Model struct {
	schema     *Schema
	name       string
	properties []Property
	reported   []Property
	desired    []*DesiredProperty
	actions    []*Action
	models     []*modelInModel
}

type modelInModel struct {
	name     string
	model    *Model
	offset   uintptr
	onChange ModelChangeFunc
}

func (m *Model) Name() string { return m.name }

// Schema returns the schema the model type was created in.
func (m *Model) Schema() *Schema { return m.schema }

// nameTaken reports whether name is already used by any element of m.
func (m *Model) nameTaken(name string) bool {
	return m.Element(name).Kind != ElementNotFound
}

func (m *Model) checkNew(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty element name in model %s", ErrInvalidArg, m.name)
	}
	if m.nameTaken(name) {
		return fmt.Errorf("%w: %q in model %s", ErrDuplicate, name, m.name)
	}
	return nil
}

// AddProperty adds a plain (telemetry) property.
func (m *Model) AddProperty(name, typeName string) error {
	if err := m.checkNew(name); err != nil {
		return err
	}
	props, err := addProperty(m.properties, Property{Name: name, Type: typeName})
	if err != nil {
		return err
	}
	m.properties = props
	return nil
}

func (m *Model) AddReportedProperty(name, typeName string) error {
	if err := m.checkNew(name); err != nil {
		return err
	}
	props, err := addProperty(m.reported, Property{Name: name, Type: typeName})
	if err != nil {
		return err
	}
	m.reported = props
	return nil
}

// AddDesiredProperty registers a desired property. Write is required.
func (m *Model) AddDesiredProperty(dp DesiredProperty) error {
	if err := m.checkNew(dp.Name); err != nil {
		return err
	}
	if dp.Type == "" || dp.Write == nil {
		return fmt.Errorf("%w: desired property %q needs a type and a writer", ErrInvalidArg, dp.Name)
	}
	p := dp
	m.desired = append(m.desired, &p)
	return nil
}

func (m *Model) AddAction(name string) (*Action, error) {
	if err := m.checkNew(name); err != nil {
		return nil, err
	}
	a := &Action{name: name}
	m.actions = append(m.actions, a)
	return a, nil
}

// AddModel embeds child as a named model-in-model at offset from m's base.
func (m *Model) AddModel(name string, child *Model, offset uintptr, onChange ModelChangeFunc) error {
	if child == nil {
		return fmt.Errorf("%w: nil child model %q", ErrInvalidArg, name)
	}
	if err := m.checkNew(name); err != nil {
		return err
	}
	m.models = append(m.models, &modelInModel{name: name, model: child, offset: offset, onChange: onChange})
	return nil
}

func (m *Model) Properties() []Property         { return append([]Property(nil), m.properties...) }
func (m *Model) ReportedProperties() []Property { return append([]Property(nil), m.reported...) }
func (m *Model) Actions() []*Action             { return append([]*Action(nil), m.actions...) }

func (m *Model) DesiredProperties() []DesiredProperty {
	out := make([]DesiredProperty, len(m.desired))
	for i, d := range m.desired {
		out[i] = *d
	}
	return out
}

// ModelNames lists the names of the nested models in declaration order.
func (m *Model) ModelNames() []string {
	out := make([]string, len(m.models))
	for i, c := range m.models {
		out[i] = c.name
	}
	return out
}

func (m *Model) Action(name string) (*Action, error) {
	for _, a := range m.actions {
		if a.name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: action %q in model %s", ErrNotFound, name, m.name)
}

func (m *Model) DesiredProperty(name string) (*DesiredProperty, error) {
	for _, d := range m.desired {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: desired property %q in model %s", ErrNotFound, name, m.name)
}

// SetDesiredPropertyOnChange attaches a change callback after registration.
func (m *Model) SetDesiredPropertyOnChange(name string, fn ChangeFunc) error {
	d, err := m.DesiredProperty(name)
	if err != nil {
		return err
	}
	d.OnChange = fn
	return nil
}

func (m *Model) findModel(name string) (*modelInModel, error) {
	for _, c := range m.models {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: model %q in model %s", ErrNotFound, name, m.name)
}

// ChildModel resolves a nested model by its field name.
func (m *Model) ChildModel(name string) (*Model, error) {
	c, err := m.findModel(name)
	if err != nil {
		return nil, err
	}
	return c.model, nil
}

func (m *Model) ChildModelOffset(name string) (uintptr, error) {
	c, err := m.findModel(name)
	if err != nil {
		return 0, err
	}
	return c.offset, nil
}

func (m *Model) ChildModelOnChange(name string) (ModelChangeFunc, error) {
	c, err := m.findModel(name)
	if err != nil {
		return nil, err
	}
	return c.onChange, nil
}

// SetChildModelOnChange attaches a change callback to a nested model entry.
func (m *Model) SetChildModelOnChange(name string, fn ModelChangeFunc) error {
	c, err := m.findModel(name)
	if err != nil {
		return err
	}
	c.onChange = fn
	return nil
}
