// Package agenttypes is the runtime value system used by the serializer:
// a tagged union of EDM primitives plus aggregated struct values.
package agenttypes

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArg  = errors.New("agenttypes: invalid argument")
	ErrWrongKind   = errors.New("agenttypes: value has a different kind")
	ErrUnsupported = errors.New("agenttypes: kind not supported")
)

type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindStringNoQuotes
	KindDateTimeOffset
	KindGUID
	KindBinary
	KindNull
	KindStruct
)

var kindNames = map[Kind]string{
	KindNone:           "EDM_NO_TYPE",
	KindBool:           "EDM_BOOLEAN_TYPE",
	KindInt8:           "EDM_SBYTE_TYPE",
	KindUint8:          "EDM_BYTE_TYPE",
	KindInt16:          "EDM_INT16_TYPE",
	KindInt32:          "EDM_INT32_TYPE",
	KindInt64:          "EDM_INT64_TYPE",
	KindFloat32:        "EDM_SINGLE_TYPE",
	KindFloat64:        "EDM_DOUBLE_TYPE",
	KindString:         "EDM_STRING_TYPE",
	KindStringNoQuotes: "EDM_STRING_NO_QUOTES_TYPE",
	KindDateTimeOffset: "EDM_DATE_TIME_OFFSET_TYPE",
	KindGUID:           "EDM_GUID_TYPE",
	KindBinary:         "EDM_BINARY_TYPE",
	KindNull:           "EDM_NULL_TYPE",
	KindStruct:         "EDM_COMPLEX_TYPE_TYPE",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Serializer type names understood as primitives.
var primitiveNames = map[string]Kind{
	"double":                   KindFloat64,
	"float":                    KindFloat32,
	"int":                      KindInt32,
	"long":                     KindInt64,
	"int8_t":                   KindInt8,
	"uint8_t":                  KindUint8,
	"int16_t":                  KindInt16,
	"int32_t":                  KindInt32,
	"int64_t":                  KindInt64,
	"bool":                     KindBool,
	"_Bool":                    KindBool,
	"ascii_char_ptr":           KindString,
	"ascii_char_ptr_no_quotes": KindStringNoQuotes,
	"EDM_DATE_TIME_OFFSET":     KindDateTimeOffset,
	"EDM_GUID":                 KindGUID,
	"EDM_BINARY":               KindBinary,
}

// PrimitiveKind maps a schema type name to its primitive kind.
// Anything else (a struct type name) yields KindNone.
func PrimitiveKind(typeName string) Kind {
	return primitiveNames[typeName]
}

// Member is one named field of a struct value.
type Member struct {
	Name  string
	Value Value
}

// Value is a decoded value. The zero Value has KindNone.
type Value struct {
	kind     Kind
	typeName string
	b        bool
	i        int64
	f        float64
	s        string
	t        time.Time
	g        uuid.UUID
	bin      []byte
	members  []Member
}

func (v Value) Kind() Kind { return v.kind }

// TypeName is the struct type name for KindStruct values, empty otherwise.
func (v Value) TypeName() string { return v.typeName }

func (v Value) IsZero() bool { return v.kind == KindNone }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int8(n int8) Value { return Value{kind: KindInt8, i: int64(n)} }
func Uint8(n uint8) Value { return Value{kind: KindUint8, i: int64(n)} }
func Int16(n int16) Value { return Value{kind: KindInt16, i: int64(n)} }
func Int32(n int32) Value { return Value{kind: KindInt32, i: int64(n)} }
func Int64(n int64) Value { return Value{kind: KindInt64, i: n} }
func Float32(f float32) Value { return Value{kind: KindFloat32, f: float64(f)} }
func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func StringNoQuotes(s string) Value { return Value{kind: KindStringNoQuotes, s: s} }
func DateTimeOffset(t time.Time) Value { return Value{kind: KindDateTimeOffset, t: t} }
func GUID(g uuid.UUID) Value { return Value{kind: KindGUID, g: g} }
func Binary(b []byte) Value {
	return Value{kind: KindBinary, bin: append([]byte(nil), b...)}
}
func Null() Value { return Value{kind: KindNull} }

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.wrongKind(KindBool)
	}
	return v.b, nil
}

// Int returns any signed or unsigned integer kind widened to int64.
func (v Value) Int() (int64, error) {
	switch v.kind {
	case KindInt8, KindUint8, KindInt16, KindInt32, KindInt64:
		return v.i, nil
	}
	return 0, v.wrongKind(KindInt64)
}

// Float returns float kinds, and integer kinds converted.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindFloat32, KindFloat64:
		return v.f, nil
	case KindInt8, KindUint8, KindInt16, KindInt32, KindInt64:
		return float64(v.i), nil
	}
	return 0, v.wrongKind(KindFloat64)
}

func (v Value) Str() (string, error) {
	if v.kind != KindString && v.kind != KindStringNoQuotes {
		return "", v.wrongKind(KindString)
	}
	return v.s, nil
}

func (v Value) Time() (time.Time, error) {
	if v.kind != KindDateTimeOffset {
		return time.Time{}, v.wrongKind(KindDateTimeOffset)
	}
	return v.t, nil
}

func (v Value) GUID() (uuid.UUID, error) {
	if v.kind != KindGUID {
		return uuid.Nil, v.wrongKind(KindGUID)
	}
	return v.g, nil
}

func (v Value) Bytes() ([]byte, error) {
	if v.kind != KindBinary {
		return nil, v.wrongKind(KindBinary)
	}
	return v.bin, nil
}

// Members returns the ordered members of a struct value.
func (v Value) Members() ([]Member, error) {
	if v.kind != KindStruct {
		return nil, v.wrongKind(KindStruct)
	}
	return v.members, nil
}

// Member looks a struct member up by name.
func (v Value) Member(name string) (Value, bool) {
	for _, m := range v.members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

func (v Value) wrongKind(want Kind) error {
	return fmt.Errorf("%w: have %s, want %s", ErrWrongKind, v.kind, want)
}

// Release drops everything the value holds, members included.
func (v *Value) Release() {
	for i := range v.members {
		v.members[i].Value.Release()
	}
	*v = Value{}
}

// MarshalJSON renders the value the way the serializer would publish it.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt8, KindUint8, KindInt16, KindInt32, KindInt64:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat32, KindFloat64:
		switch {
		case math.IsNaN(v.f):
			return []byte(`"NaN"`), nil
		case math.IsInf(v.f, 1):
			return []byte(`"INF"`), nil
		case math.IsInf(v.f, -1):
			return []byte(`"-INF"`), nil
		}
		bits := 64
		if v.kind == KindFloat32 {
			bits = 32
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, bits)), nil
	case KindString:
		return json.Marshal(v.s)
	case KindStringNoQuotes:
		return []byte(v.s), nil
	case KindDateTimeOffset:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	case KindGUID:
		return json.Marshal(v.g.String())
	case KindBinary:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.bin))
	case KindNull:
		return []byte("null"), nil
	case KindStruct:
		buf := []byte{'{'}
		for i, m := range v.members {
			if i > 0 {
				buf = append(buf, ',')
			}
			k, _ := json.Marshal(m.Name)
			buf = append(buf, k...)
			buf = append(buf, ':')
			mv, err := m.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, mv...)
		}
		return append(buf, '}'), nil
	}
	return nil, fmt.Errorf("%w: cannot marshal %s", ErrUnsupported, v.kind)
}
