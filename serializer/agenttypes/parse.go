package agenttypes

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FromString builds a primitive value from the JSON token text of a leaf.
// Numbers and booleans may arrive bare or quoted; string-like kinds must be
// JSON strings. KindStringNoQuotes takes the text verbatim.
func FromString(raw string, kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		switch bare(raw) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
	case KindNull:
		if raw == "null" {
			return Null(), nil
		}
	case KindInt8:
		if n, err := strconv.ParseInt(bare(raw), 10, 8); err == nil {
			return Int8(int8(n)), nil
		}
	case KindUint8:
		if n, err := strconv.ParseUint(bare(raw), 10, 8); err == nil {
			return Uint8(uint8(n)), nil
		}
	case KindInt16:
		if n, err := strconv.ParseInt(bare(raw), 10, 16); err == nil {
			return Int16(int16(n)), nil
		}
	case KindInt32:
		if n, err := strconv.ParseInt(bare(raw), 10, 32); err == nil {
			return Int32(int32(n)), nil
		}
	case KindInt64:
		if n, err := strconv.ParseInt(bare(raw), 10, 64); err == nil {
			return Int64(n), nil
		}
	case KindFloat32:
		if f, ok := parseFloat(raw, 32); ok {
			return Float32(float32(f)), nil
		}
	case KindFloat64:
		if f, ok := parseFloat(raw, 64); ok {
			return Float64(f), nil
		}
	case KindString:
		if s, err := unquote(raw); err == nil {
			return String(s), nil
		}
	case KindStringNoQuotes:
		return StringNoQuotes(raw), nil
	case KindDateTimeOffset:
		if s, err := unquote(raw); err == nil {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return DateTimeOffset(t), nil
			}
		}
	case KindGUID:
		if s, err := unquote(raw); err == nil {
			if g, err := uuid.Parse(s); err == nil {
				return GUID(g), nil
			}
		}
	case KindBinary:
		if s, err := unquote(raw); err == nil {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				return Binary(b), nil
			}
		}
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	return Value{}, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidArg, raw, kind)
}

// FromMembers aggregates decoded member values into a struct value.
// Ownership of values moves into the result.
func FromMembers(typeName string, names []string, values []Value) (Value, error) {
	if typeName == "" {
		return Value{}, fmt.Errorf("%w: empty struct type name", ErrInvalidArg)
	}
	if len(names) == 0 || len(names) != len(values) {
		return Value{}, fmt.Errorf("%w: %d names for %d values", ErrInvalidArg, len(names), len(values))
	}
	seen := make(map[string]struct{}, len(names))
	members := make([]Member, len(names))
	for i, n := range names {
		if n == "" {
			return Value{}, fmt.Errorf("%w: empty member name in %s", ErrInvalidArg, typeName)
		}
		if _, dup := seen[n]; dup {
			return Value{}, fmt.Errorf("%w: duplicate member %q in %s", ErrInvalidArg, n, typeName)
		}
		seen[n] = struct{}{}
		members[i] = Member{Name: n, Value: values[i]}
	}
	return Value{kind: KindStruct, typeName: typeName, members: members}, nil
}

func unquote(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", ErrInvalidArg
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", err
	}
	return s, nil
}

// bare strips one pair of surrounding quotes, if any.
func bare(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func parseFloat(raw string, bits int) (float64, bool) {
	switch raw {
	case `"NaN"`:
		return math.NaN(), true
	case `"INF"`:
		return math.Inf(1), true
	case `"-INF"`:
		return math.Inf(-1), true
	}
	s := bare(raw)
	// strconv accepts "inf", "nan" and hex floats; JSON numbers do not.
	if s == "" || strings.ContainsAny(s, "xXnNiI_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Codec is the default value codec handed to the command decoder.
type Codec struct{}

func (Codec) PrimitiveKind(typeName string) Kind { return PrimitiveKind(typeName) }

func (Codec) FromString(raw string, kind Kind) (Value, error) { return FromString(raw, kind) }

func (Codec) FromMembers(typeName string, names []string, values []Value) (Value, error) {
	return FromMembers(typeName, names, values)
}

func (Codec) Release(v *Value) { v.Release() }
