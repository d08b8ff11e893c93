// Package codefirst derives schema models from annotated Go structs, so a
// device's memory image is an ordinary Go value.
//
//	type Settings struct {
//		Target  float64 `iot:"desired,target"`
//		Sensors Sensors `iot:"model"`
//		Temp    float64 `iot:"reported"`
//	}
//
// Desired properties get writers that store decoded values at the field's
// offset; model fields become nested models at theirs.
package codefirst

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/schema"
)

const tagName = "iot"

var (
	ErrNotStruct     = errors.New("codefirst: sample is not a struct")
	ErrUnsupported   = errors.New("codefirst: unsupported field type")
	ErrBadTag        = errors.New("codefirst: malformed iot tag")
	ErrTypeMismatch  = errors.New("codefirst: value does not fit field")
	ErrMissingMember = errors.New("codefirst: struct value lacks a member")
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// Action declares an action and its ordered arguments.
type Action struct {
	Name string
	Args []schema.Property
}

// ActionDeclarer is implemented by model types that expose actions.
type ActionDeclarer interface {
	DeclareActions() []Action
}

// Build registers the model described by sample (a struct or a pointer to
// one) under name, along with every nested model and struct type it uses.
func Build(s *schema.Schema, name string, sample any) (*schema.Model, error) {
	if s == nil || name == "" || sample == nil {
		return nil, fmt.Errorf("%w: schema, name and sample are required", schema.ErrInvalidArg)
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}
	return buildModel(s, name, t)
}

func buildModel(s *schema.Schema, name string, t reflect.Type) (*schema.Model, error) {
	if m, err := s.ModelType(name); err == nil {
		return m, nil
	}
	m, err := s.CreateModelType(name)
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		kind, elem, ok, err := parseTag(f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := addField(s, m, kind, elem, f); err != nil {
			return nil, fmt.Errorf("model %s field %s: %w", name, f.Name, err)
		}
	}
	if d, ok := reflect.New(t).Interface().(ActionDeclarer); ok {
		for _, a := range d.DeclareActions() {
			if err := addAction(s, m, a); err != nil {
				return nil, fmt.Errorf("model %s: %w", name, err)
			}
		}
	}
	return m, nil
}

func addField(s *schema.Schema, m *schema.Model, kind, elem string, f reflect.StructField) error {
	if kind == "model" {
		if f.Type.Kind() != reflect.Struct {
			return fmt.Errorf("%w: model field must be a struct", ErrUnsupported)
		}
		child, err := buildModel(s, f.Type.Name(), f.Type)
		if err != nil {
			return err
		}
		return m.AddModel(elem, child, f.Offset, nil)
	}

	typeName, err := TypeName(s, f.Type)
	if err != nil {
		return err
	}
	switch kind {
	case "desired":
		return m.AddDesiredProperty(schema.DesiredProperty{
			Name:   elem,
			Type:   typeName,
			Offset: f.Offset,
			Write:  Writer(f.Type),
		})
	case "property":
		return m.AddProperty(elem, typeName)
	case "reported":
		return m.AddReportedProperty(elem, typeName)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrBadTag, kind)
}

func addAction(s *schema.Schema, m *schema.Model, a Action) error {
	act, err := m.AddAction(a.Name)
	if err != nil {
		return err
	}
	for _, arg := range a.Args {
		if _, err := s.StructType(arg.Type); err != nil && agenttypes.PrimitiveKind(arg.Type) == agenttypes.KindNone {
			return fmt.Errorf("action %s argument %s: %w", a.Name, arg.Name, err)
		}
		if err := act.AddArgument(arg.Name, arg.Type); err != nil {
			return err
		}
	}
	return nil
}

// parseTag splits `iot:"kind[,name]"`; untagged fields are not part of the model.
func parseTag(f reflect.StructField) (kind, name string, ok bool, err error) {
	tag, has := f.Tag.Lookup(tagName)
	if !has || tag == "-" {
		return "", "", false, nil
	}
	kind, name, _ = strings.Cut(tag, ",")
	switch kind {
	case "desired", "model", "property", "reported":
	default:
		return "", "", false, fmt.Errorf("%w: %q on %s", ErrBadTag, tag, f.Name)
	}
	if name == "" {
		name = f.Name
	}
	if !f.IsExported() {
		return "", "", false, fmt.Errorf("%w: %s is unexported", ErrBadTag, f.Name)
	}
	return kind, name, true, nil
}

// TypeName maps a Go type to its serializer type name, registering struct
// types in s on first use.
func TypeName(s *schema.Schema, t reflect.Type) (string, error) {
	switch t {
	case timeType:
		return "EDM_DATE_TIME_OFFSET", nil
	case uuidType:
		return "EDM_GUID", nil
	case bytesType:
		return "EDM_BINARY", nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool", nil
	case reflect.Int8:
		return "int8_t", nil
	case reflect.Uint8:
		return "uint8_t", nil
	case reflect.Int16:
		return "int16_t", nil
	case reflect.Int32:
		return "int32_t", nil
	case reflect.Int, reflect.Int64:
		return "int64_t", nil
	case reflect.Float32:
		return "float", nil
	case reflect.Float64:
		return "double", nil
	case reflect.String:
		return "ascii_char_ptr", nil
	case reflect.Struct:
		return structType(s, t)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, t)
}

func structType(s *schema.Schema, t reflect.Type) (string, error) {
	name := t.Name()
	if name == "" {
		return "", fmt.Errorf("%w: anonymous struct", ErrUnsupported)
	}
	if _, err := s.StructType(name); err == nil {
		return name, nil
	}
	st, err := s.CreateStructType(name)
	if err != nil {
		return "", err
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		mt, err := TypeName(s, f.Type)
		if err != nil {
			return "", fmt.Errorf("struct %s member %s: %w", name, f.Name, err)
		}
		if err := st.AddMember(memberName(f), mt); err != nil {
			return "", err
		}
	}
	return name, nil
}

// memberName reads `iot:"name"` or the model-style `iot:"kind,name"` on a
// struct member, falling back to the Go field name.
func memberName(f reflect.StructField) string {
	tag := f.Tag.Get(tagName)
	if before, after, found := strings.Cut(tag, ","); found {
		tag = after
	} else {
		tag = before
	}
	if tag == "" || tag == "-" {
		return f.Name
	}
	return tag
}

// Writer returns a schema writer that stores values into memory laid out as t.
func Writer(t reflect.Type) schema.WriteFunc {
	return func(v agenttypes.Value, dst unsafe.Pointer) error {
		return Write(v, dst, t)
	}
}

// Write stores v into the t-typed memory at dst.
func Write(v agenttypes.Value, dst unsafe.Pointer, t reflect.Type) error {
	if dst == nil || t == nil {
		return fmt.Errorf("%w: nil destination", schema.ErrInvalidArg)
	}
	return assign(reflect.NewAt(t, dst).Elem(), v)
}

func assign(rv reflect.Value, v agenttypes.Value) error {
	switch rv.Type() {
	case timeType:
		tm, err := v.Time()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.Set(reflect.ValueOf(tm))
		return nil
	case uuidType:
		g, err := v.GUID()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.Set(reflect.ValueOf(g))
		return nil
	case bytesType:
		b, err := v.Bytes()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.SetBytes(append([]byte(nil), b...))
		return nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		b, err := v.Bool()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := v.Int()
		if err != nil {
			return mismatch(rv, err)
		}
		if rv.OverflowInt(n) {
			return mismatch(rv, fmt.Errorf("%d overflows", n))
		}
		rv.SetInt(n)
	case reflect.Uint8:
		n, err := v.Int()
		if err != nil {
			return mismatch(rv, err)
		}
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return mismatch(rv, fmt.Errorf("%d overflows", n))
		}
		rv.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := v.Float()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.SetFloat(f)
	case reflect.String:
		str, err := v.Str()
		if err != nil {
			return mismatch(rv, err)
		}
		rv.SetString(str)
	case reflect.Struct:
		return assignStruct(rv, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, rv.Type())
	}
	return nil
}

// assignStruct decodes into a scratch copy so a partially applied struct
// never reaches the device memory.
func assignStruct(rv reflect.Value, v agenttypes.Value) error {
	if _, err := v.Members(); err != nil {
		return mismatch(rv, err)
	}
	tmp := reflect.New(rv.Type()).Elem()
	tmp.Set(rv)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := memberName(f)
		mv, ok := v.Member(name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingMember, t.Name(), name)
		}
		if err := assign(tmp.Field(i), mv); err != nil {
			return err
		}
	}
	rv.Set(tmp)
	return nil
}

func mismatch(rv reflect.Value, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTypeMismatch, rv.Type(), err)
}

// OnDesired attaches fn to the desired property name of m.
func OnDesired(m *schema.Model, name string, fn schema.ChangeFunc) error {
	return m.SetDesiredPropertyOnChange(name, fn)
}

// OnModel attaches fn to the nested model name of m.
func OnModel(m *schema.Model, name string, fn schema.ModelChangeFunc) error {
	return m.SetChildModelOnChange(name, fn)
}

// As views the memory a change callback receives as a *T.
func As[T any](p unsafe.Pointer) *T { return (*T)(p) }
