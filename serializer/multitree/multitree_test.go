package multitree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONKeepsTokenText(t *testing.T) {
	tree, err := FromJSON(`{"Name":"SetACState","Parameters":{"State":true,"Temp":21.5,"Label":"a\"b","Nothing":null}}`)
	require.NoError(t, err)
	require.Equal(t, 2, tree.ChildCount())

	name, err := tree.ChildByName("Name")
	require.NoError(t, err)
	v, err := name.Value()
	require.NoError(t, err)
	assert.Equal(t, `"SetACState"`, v)

	params, err := tree.ChildByName("Parameters")
	require.NoError(t, err)
	_, err = params.Value()
	assert.ErrorIs(t, err, ErrNoValue)

	cases := map[string]string{
		"State":   "true",
		"Temp":    "21.5",
		"Label":   `"a\"b"`,
		"Nothing": "null",
	}
	for field, want := range cases {
		n, err := params.ChildByName(field)
		require.NoError(t, err, field)
		got, err := n.Value()
		require.NoError(t, err, field)
		assert.Equal(t, want, got, field)
	}
}

func TestFromJSONPreservesOrder(t *testing.T) {
	tree, err := FromJSON(`{"b":1,"a":2,"c":{"z":1,"y":2}}`)
	require.NoError(t, err)

	var names []string
	for i := 0; i < tree.ChildCount(); i++ {
		c, err := tree.Child(i)
		require.NoError(t, err)
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)

	_, err = tree.Child(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFromJSONRejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		err  error
	}{
		{"empty", ``, ErrSyntax},
		{"garbage", `{"a":`, ErrSyntax},
		{"array root", `[1,2]`, ErrNotObject},
		{"scalar root", `"x"`, ErrNotObject},
		{"unterminated array", `{"a":[1,}`, ErrSyntax},
		{"duplicate key", `{"a":1,"a":2}`, ErrDuplicateName},
		{"trailing", `{"a":1}{"b":2}`, ErrTrailingData},
		{"empty key", `{"":1}`, ErrEmptyName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromJSON(tc.in)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestFromJSONDepthLimit(t *testing.T) {
	build := func(depth int) string {
		s := `1`
		for i := 0; i < depth; i++ {
			s = `{"n":` + s + `}`
		}
		return s
	}
	_, err := FromJSON(build(MaxJSONDepth))
	require.NoError(t, err)

	_, err = FromJSON(build(MaxJSONDepth + 1))
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestFromJSONArrays(t *testing.T) {
	tree, err := FromJSON(`{"tags":["a",2,{"k":true},[null]],"empty":[]}`)
	require.NoError(t, err)

	tags, err := tree.ChildByName("tags")
	require.NoError(t, err)
	assert.False(t, tags.HasValue())
	require.Equal(t, 4, tags.ChildCount())

	var names []string
	for i := 0; i < tags.ChildCount(); i++ {
		c, err := tags.Child(i)
		require.NoError(t, err)
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"0", "1", "2", "3"}, names)

	first, err := tags.ChildByName("0")
	require.NoError(t, err)
	v, err := first.Value()
	require.NoError(t, err)
	assert.Equal(t, `"a"`, v)

	obj, err := tags.ChildByName("2")
	require.NoError(t, err)
	k, err := obj.ChildByName("k")
	require.NoError(t, err)
	v, err = k.Value()
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	nested, err := tags.ChildByName("3")
	require.NoError(t, err)
	inner, err := nested.ChildByName("0")
	require.NoError(t, err)
	v, err = inner.Value()
	require.NoError(t, err)
	assert.Equal(t, "null", v)

	empty, err := tree.ChildByName("empty")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.ChildCount())
	assert.False(t, empty.HasValue())
}

func TestFromJSONArrayDepthLimit(t *testing.T) {
	s := `1`
	for i := 0; i < MaxJSONDepth; i++ {
		s = `[` + s + `]`
	}
	_, err := FromJSON(`{"a":` + s + `}`)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestTreeBuilding(t *testing.T) {
	root := New("")
	_, err := root.AddLeaf("x", "1")
	require.NoError(t, err)
	_, err = root.AddChild("x")
	assert.ErrorIs(t, err, ErrDuplicateName)

	x, err := root.ChildByName("x")
	require.NoError(t, err)
	assert.ErrorIs(t, x.SetValue("2"), ErrAlreadyHasValue)

	_, err = root.ChildByName("missing")
	assert.ErrorIs(t, err, ErrChildNotFound)
}

func TestWalk(t *testing.T) {
	tree, err := FromJSON(`{"a":{"b":1,"c":{"d":2}},"e":3}`)
	require.NoError(t, err)

	var leaves []string
	tree.Walk(func(path []string, n *Tree) bool {
		if n.HasValue() {
			leaves = append(leaves, joinPath(path))
		}
		return n.Name() != "c"
	})
	assert.Equal(t, []string{"a/b", "e"}, leaves)
}

func joinPath(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func TestUnquote(t *testing.T) {
	s, err := Unquote(`"aA\n"`)
	require.NoError(t, err)
	assert.Equal(t, "aA\n", s)

	_, err = Unquote(`abc`)
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = Unquote(`"`)
	assert.ErrorIs(t, err, ErrSyntax)
}
