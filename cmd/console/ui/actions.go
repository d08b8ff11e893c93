package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"azure-iot-serializer/network"
	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/schema"
)

var ErrBadInput = errors.New("console: invalid input")

// FieldDef is one leaf the operator fills in. Struct arguments are flattened
// into one field per member, named "Arg.Member".
type FieldDef struct {
	Name string
	Type string
	Kind agenttypes.Kind
}

// ActionDef is a selectable entry: an action reached through Path, or the
// desired-properties editor.
type ActionDef struct {
	Path    string
	Name    string
	Desired bool
	Fields  []FieldDef
}

func (a ActionDef) Title() string {
	if a.Desired {
		return "Desired properties"
	}
	if a.Path == "" {
		return a.Name
	}
	return a.Path + "/" + a.Name
}

func (a ActionDef) Description() string {
	if a.Desired {
		return "Send a desired-properties document"
	}
	if len(a.Fields) == 0 {
		return "no arguments"
	}
	parts := make([]string, len(a.Fields))
	for i, f := range a.Fields {
		parts[i] = f.Name + " " + f.Type
	}
	return strings.Join(parts, ", ")
}

func (a ActionDef) FilterValue() string { return a.Title() }

// Kind is the envelope kind the entry produces.
func (a ActionDef) Kind() network.Kind {
	if a.Desired {
		return network.KindDesired
	}
	return network.KindCommand
}

// DesiredEntry edits a raw desired-properties document.
var DesiredEntry = ActionDef{
	Desired: true,
	Fields:  []FieldDef{{Name: "document", Type: "json", Kind: agenttypes.KindStringNoQuotes}},
}

// Actions lists every action of m and of its nested models, depth first.
func Actions(m *schema.Model) ([]ActionDef, error) {
	var out []ActionDef
	if err := collect(m, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(m *schema.Model, path string, out *[]ActionDef) error {
	s := m.Schema()
	for _, a := range m.Actions() {
		def := ActionDef{Path: path, Name: a.Name()}
		for i := 0; i < a.ArgumentCount(); i++ {
			arg, err := a.Argument(i)
			if err != nil {
				return err
			}
			if err := flatten(s, arg.Name, arg.Type, &def.Fields, 0); err != nil {
				return fmt.Errorf("%s: %w", def.Title(), err)
			}
		}
		*out = append(*out, def)
	}
	for _, name := range m.ModelNames() {
		child, err := m.ChildModel(name)
		if err != nil {
			return err
		}
		sub := name
		if path != "" {
			sub = path + "/" + name
		}
		if err := collect(child, sub, out); err != nil {
			return err
		}
	}
	return nil
}

func flatten(s *schema.Schema, name, typeName string, out *[]FieldDef, depth int) error {
	if depth > 8 {
		return fmt.Errorf("%w: %s nests too deep", ErrBadInput, name)
	}
	if k := agenttypes.PrimitiveKind(typeName); k != agenttypes.KindNone {
		*out = append(*out, FieldDef{Name: name, Type: typeName, Kind: k})
		return nil
	}
	st, err := s.StructType(typeName)
	if err != nil {
		return err
	}
	for i := 0; i < st.MemberCount(); i++ {
		mem, err := st.Member(i)
		if err != nil {
			return err
		}
		if err := flatten(s, name+"."+mem.Name, mem.Type, out, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Build renders the payload for a with one input per field.
func Build(a ActionDef, values []string) ([]byte, error) {
	if len(values) != len(a.Fields) {
		return nil, fmt.Errorf("%w: %d values for %d fields", ErrBadInput, len(values), len(a.Fields))
	}
	if a.Desired {
		doc := strings.TrimSpace(values[0])
		var buf bytes.Buffer
		if !strings.HasPrefix(doc, "{") || json.Compact(&buf, []byte(doc)) != nil {
			return nil, fmt.Errorf("%w: document must be a JSON object", ErrBadInput)
		}
		return buf.Bytes(), nil
	}

	params := map[string]any{}
	for i, f := range a.Fields {
		tok, err := token(f, values[i])
		if err != nil {
			return nil, err
		}
		place(params, strings.Split(f.Name, "."), tok)
	}
	return json.Marshal(struct {
		Name       string         `json:"Name"`
		Parameters map[string]any `json:"Parameters"`
	}{a.Title(), params})
}

// token renders one input as the JSON text the agent will parse, and checks
// that it parses.
func token(f FieldDef, in string) (json.RawMessage, error) {
	in = strings.TrimSpace(in)
	var raw string
	switch f.Kind {
	case agenttypes.KindString, agenttypes.KindDateTimeOffset, agenttypes.KindGUID, agenttypes.KindBinary:
		b, _ := json.Marshal(in)
		raw = string(b)
	case agenttypes.KindFloat32, agenttypes.KindFloat64:
		switch in {
		case "NaN", "INF", "-INF":
			raw = `"` + in + `"`
		default:
			raw = in
		}
	default:
		raw = in
	}
	v, err := agenttypes.FromString(raw, f.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadInput, f.Name, err)
	}
	v.Release()
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%w: %s: %q is not JSON", ErrBadInput, f.Name, in)
	}
	return json.RawMessage(raw), nil
}

func place(m map[string]any, path []string, v json.RawMessage) {
	if len(path) == 1 {
		m[path[0]] = v
		return
	}
	sub, ok := m[path[0]].(map[string]any)
	if !ok {
		sub = map[string]any{}
		m[path[0]] = sub
	}
	place(sub, path[1:], v)
}
