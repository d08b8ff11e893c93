package schema

// ElementKind tags what a name resolves to inside a model.
type ElementKind int

const (
	ElementNotFound ElementKind = iota
	ElementDesiredProperty
	ElementModel
	ElementProperty
	ElementReportedProperty
	ElementAction
)

func (k ElementKind) String() string {
	switch k {
	case ElementDesiredProperty:
		return "desired property"
	case ElementModel:
		return "model"
	case ElementProperty:
		return "property"
	case ElementReportedProperty:
		return "reported property"
	case ElementAction:
		return "action"
	}
	return "not found"
}

// Element is the result of a by-name lookup. Only the fields matching Kind are set.
type Element struct {
	Kind            ElementKind
	DesiredProperty *DesiredProperty
	Property        Property
	Action          *Action
	Model           *Model
	Offset          uintptr
	OnChange        ModelChangeFunc
}

// Element looks name up among desired properties, properties, reported
// properties, actions and nested models, in that order.
func (m *Model) Element(name string) Element {
	for _, d := range m.desired {
		if d.Name == name {
			return Element{Kind: ElementDesiredProperty, DesiredProperty: d}
		}
	}
	for _, p := range m.properties {
		if p.Name == name {
			return Element{Kind: ElementProperty, Property: p}
		}
	}
	for _, p := range m.reported {
		if p.Name == name {
			return Element{Kind: ElementReportedProperty, Property: p}
		}
	}
	for _, a := range m.actions {
		if a.name == name {
			return Element{Kind: ElementAction, Action: a}
		}
	}
	for _, c := range m.models {
		if c.name == name {
			return Element{Kind: ElementModel, Model: c.model, Offset: c.offset, OnChange: c.onChange}
		}
	}
	return Element{Kind: ElementNotFound}
}
