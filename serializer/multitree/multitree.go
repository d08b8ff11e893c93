// Package multitree holds an ordered tree of named nodes with string leaf values.
// It is the intermediate form commands and desired-property documents are decoded into.
package multitree

import (
	"errors"
	"fmt"
)

var (
	ErrChildNotFound   = errors.New("multitree: child not found")
	ErrDuplicateName   = errors.New("multitree: duplicate child name")
	ErrAlreadyHasValue = errors.New("multitree: node already has a value")
	ErrNoValue         = errors.New("multitree: node has no value")
	ErrIndexOutOfRange = errors.New("multitree: child index out of range")
	ErrEmptyName       = errors.New("multitree: empty child name")
)

// Tree is a node. The root usually has an empty name.
type Tree struct {
	name     string
	value    string
	hasValue bool
	children []*Tree
	index    map[string]int
}

func New(name string) *Tree { return &Tree{name: name} }

func (t *Tree) Name() string { return t.name }

// Value returns the leaf value. Nodes that only carry children have none.
func (t *Tree) Value() (string, error) {
	if !t.hasValue {
		return "", fmt.Errorf("%w: %q", ErrNoValue, t.name)
	}
	return t.value, nil
}

func (t *Tree) HasValue() bool { return t.hasValue }

func (t *Tree) SetValue(v string) error {
	if t.hasValue {
		return fmt.Errorf("%w: %q", ErrAlreadyHasValue, t.name)
	}
	t.value = v
	t.hasValue = true
	return nil
}

// AddChild appends a new child. Child names are unique per parent.
func (t *Tree) AddChild(name string) (*Tree, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, exists := t.index[name]; exists {
		return nil, fmt.Errorf("%w: %q under %q", ErrDuplicateName, name, t.name)
	}
	if t.index == nil {
		t.index = map[string]int{}
	}
	c := &Tree{name: name}
	t.index[name] = len(t.children)
	t.children = append(t.children, c)
	return c, nil
}

// AddLeaf is AddChild followed by SetValue.
func (t *Tree) AddLeaf(name, value string) (*Tree, error) {
	c, err := t.AddChild(name)
	if err != nil {
		return nil, err
	}
	_ = c.SetValue(value)
	return c, nil
}

func (t *Tree) ChildCount() int { return len(t.children) }

func (t *Tree) Child(i int) (*Tree, error) {
	if i < 0 || i >= len(t.children) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(t.children))
	}
	return t.children[i], nil
}

func (t *Tree) ChildByName(name string) (*Tree, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q under %q", ErrChildNotFound, name, t.name)
	}
	return t.children[i], nil
}

// Walk visits t and its descendants depth-first in insertion order.
// Returning false from fn stops descending into that node's children.
func (t *Tree) Walk(fn func(path []string, n *Tree) bool) {
	t.walk(nil, fn)
}

func (t *Tree) walk(path []string, fn func([]string, *Tree) bool) {
	if !fn(path, t) {
		return
	}
	for _, c := range t.children {
		c.walk(append(path[:len(path):len(path)], c.name), fn)
	}
}
