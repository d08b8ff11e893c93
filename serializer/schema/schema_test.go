package schema

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-iot-serializer/serializer/agenttypes"
)

func noopWrite(agenttypes.Value, unsafe.Pointer) error { return nil }

func TestSchemaRegistries(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrInvalidArg)

	s, err := New("Contoso")
	require.NoError(t, err)
	assert.Equal(t, "Contoso", s.Namespace())

	m, err := s.CreateModelType("Thermostat")
	require.NoError(t, err)
	assert.Same(t, s, m.Schema())
	_, err = s.CreateModelType("Thermostat")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.ModelType("Thermostat")
	require.NoError(t, err)
	assert.Same(t, m, got)
	_, err = s.ModelType("Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := s.CreateStructType("GeoLocation")
	require.NoError(t, err)
	require.NoError(t, st.AddMember("Lat", "double"))
	require.NoError(t, st.AddMember("Long", "double"))
	assert.ErrorIs(t, st.AddMember("Lat", "double"), ErrDuplicate)
	assert.ErrorIs(t, st.AddMember("", "double"), ErrInvalidArg)
	assert.Equal(t, 2, st.MemberCount())
	p, err := st.Member(1)
	require.NoError(t, err)
	assert.Equal(t, Property{Name: "Long", Type: "double"}, p)
	_, err = st.Member(2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateStructType("double")
	assert.ErrorIs(t, err, ErrInvalidArg)
	_, err = s.CreateStructType("GeoLocation")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.StructType("Missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, s.StructTypes(), 1)
	assert.Len(t, s.ModelTypes(), 1)
}

func TestModelElements(t *testing.T) {
	s, err := New("Contoso")
	require.NoError(t, err)
	root, err := s.CreateModelType("Root")
	require.NoError(t, err)
	child, err := s.CreateModelType("Child")
	require.NoError(t, err)

	require.NoError(t, root.AddProperty("Temperature", "double"))
	require.NoError(t, root.AddReportedProperty("Firmware", "ascii_char_ptr"))
	require.NoError(t, root.AddDesiredProperty(DesiredProperty{Name: "Target", Type: "int", Offset: 8, Write: noopWrite}))
	act, err := root.AddAction("Reset")
	require.NoError(t, err)
	require.NoError(t, act.AddArgument("Hard", "bool"))
	require.NoError(t, root.AddModel("Settings", child, 16, nil))

	assert.ErrorIs(t, root.AddProperty("Target", "int"), ErrDuplicate)
	assert.ErrorIs(t, root.AddModel("Other", nil, 0, nil), ErrInvalidArg)
	assert.ErrorIs(t, root.AddDesiredProperty(DesiredProperty{Name: "NoWriter", Type: "int"}), ErrInvalidArg)

	cases := map[string]ElementKind{
		"Target":      ElementDesiredProperty,
		"Temperature": ElementProperty,
		"Firmware":    ElementReportedProperty,
		"Reset":       ElementAction,
		"Settings":    ElementModel,
		"Unknown":     ElementNotFound,
	}
	for name, kind := range cases {
		assert.Equal(t, kind, root.Element(name).Kind, name)
	}

	e := root.Element("Settings")
	assert.Same(t, child, e.Model)
	assert.Equal(t, uintptr(16), e.Offset)
	assert.Equal(t, uintptr(8), root.Element("Target").DesiredProperty.Offset)

	got, err := root.ChildModel("Settings")
	require.NoError(t, err)
	assert.Same(t, child, got)
	off, err := root.ChildModelOffset("Settings")
	require.NoError(t, err)
	assert.Equal(t, uintptr(16), off)
	_, err = root.ChildModel("Target")
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := root.Action("Reset")
	require.NoError(t, err)
	assert.Equal(t, 1, a.ArgumentCount())
	_, err = root.Action("Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"Settings"}, root.ModelNames())
	assert.Len(t, root.DesiredProperties(), 1)
}

func TestChangeCallbacksAttachLater(t *testing.T) {
	s, _ := New("Contoso")
	root, _ := s.CreateModelType("Root")
	child, _ := s.CreateModelType("Child")
	require.NoError(t, root.AddDesiredProperty(DesiredProperty{Name: "Target", Type: "int", Write: noopWrite}))
	require.NoError(t, root.AddModel("Settings", child, 0, nil))

	fired := 0
	require.NoError(t, root.SetDesiredPropertyOnChange("Target", func(unsafe.Pointer, agenttypes.Value) { fired++ }))
	require.NoError(t, root.SetChildModelOnChange("Settings", func(unsafe.Pointer) { fired++ }))
	assert.ErrorIs(t, root.SetDesiredPropertyOnChange("Missing", nil), ErrNotFound)

	root.Element("Target").DesiredProperty.OnChange(nil, agenttypes.Value{})
	fn, err := root.ChildModelOnChange("Settings")
	require.NoError(t, err)
	fn(nil)
	assert.Equal(t, 2, fired)
}
