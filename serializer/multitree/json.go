package multitree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxJSONDepth bounds object and array nesting accepted by FromJSON.
const MaxJSONDepth = 64

var (
	ErrSyntax       = errors.New("multitree: malformed JSON")
	ErrNotObject    = errors.New("multitree: JSON root is not an object")
	ErrTooDeep      = errors.New("multitree: JSON nesting too deep")
	ErrTrailingData = errors.New("multitree: trailing data after JSON object")
)

// FromJSON decodes a JSON object into a tree. Objects and arrays become inner
// nodes, with array elements named "0", "1" and so on. Scalars become leaves
// whose value is the JSON token text: strings keep their quotes, numbers are
// verbatim and literals are "true", "false" or "null".
func FromJSON(text string) (*Tree, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}
	root := New("")
	if err := decodeObject(dec, root, 1); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return root, nil
}

func decodeObject(dec *json.Decoder, node *Tree, depth int) error {
	if depth > MaxJSONDepth {
		return ErrTooDeep
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: object key is not a string", ErrSyntax)
		}
		if err := decodeValue(dec, node, key, depth); err != nil {
			return err
		}
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return nil
}

// decodeArray adds one child per element, named by its zero-based index.
func decodeArray(dec *json.Decoder, node *Tree, depth int) error {
	if depth > MaxJSONDepth {
		return ErrTooDeep
	}
	for i := 0; dec.More(); i++ {
		if err := decodeValue(dec, node, strconv.Itoa(i), depth); err != nil {
			return err
		}
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return nil
}

func decodeValue(dec *json.Decoder, node *Tree, name string, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	var leaf string
	switch v := tok.(type) {
	case json.Delim:
		child, err := node.AddChild(name)
		if err != nil {
			return err
		}
		if v == '[' {
			return decodeArray(dec, child, depth+1)
		}
		return decodeObject(dec, child, depth+1)
	case string:
		if leaf, err = quote(v); err != nil {
			return err
		}
	case json.Number:
		leaf = v.String()
	case bool:
		leaf = strconv.FormatBool(v)
	case nil:
		leaf = "null"
	}
	_, err = node.AddLeaf(name, leaf)
	return err
}

func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Unquote returns the Go string for a quoted JSON string token.
func Unquote(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", fmt.Errorf("%w: %q is not a JSON string", ErrSyntax, raw)
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return s, nil
}
