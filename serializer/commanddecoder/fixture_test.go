package commanddecoder

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/schema"
)

// countingCodec wraps the real codec, keeps track of value ownership and can
// fail on demand.
type countingCodec struct {
	agenttypes.Codec
	created, released, consumed int
	stringCalls                 int
	failStringAt                int
	failMembers                 bool
}

var errInjected = errors.New("injected failure")

func (c *countingCodec) FromString(raw string, kind agenttypes.Kind) (agenttypes.Value, error) {
	c.stringCalls++
	if c.failStringAt == c.stringCalls {
		return agenttypes.Value{}, errInjected
	}
	v, err := agenttypes.FromString(raw, kind)
	if err == nil {
		c.created++
	}
	return v, err
}

func (c *countingCodec) FromMembers(typeName string, names []string, values []agenttypes.Value) (agenttypes.Value, error) {
	if c.failMembers {
		return agenttypes.Value{}, errInjected
	}
	v, err := agenttypes.FromMembers(typeName, names, values)
	if err == nil {
		c.created++
		c.consumed += len(values)
	}
	return v, err
}

func (c *countingCodec) Release(v *agenttypes.Value) {
	if !v.IsZero() {
		c.released++
	}
	v.Release()
}

func (c *countingCodec) requireBalanced(t *testing.T) {
	t.Helper()
	require.Equal(t, c.created, c.released+c.consumed,
		"created=%d released=%d consumed=%d", c.created, c.released, c.consumed)
}

// call is what the recording callback saw. Values are rendered to JSON inside
// the callback because they are released as soon as it returns.
type call struct {
	ctx    any
	path   string
	action string
	kinds  []agenttypes.Kind
	args   []string
}

type recorder struct {
	calls  []call
	result Result
}

func (r *recorder) action(ctx any, path, action string, args []agenttypes.Value) Result {
	c := call{ctx: ctx, path: path, action: action}
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			panic(err)
		}
		c.kinds = append(c.kinds, a.Kind())
		c.args = append(c.args, string(b))
	}
	r.calls = append(r.calls, c)
	return r.result
}

// write records where a desired property landed relative to the buffer start.
type write struct {
	name   string
	offset uintptr
	value  string
}

type memory struct {
	buf     [64]byte
	writes  []write
	changes []string
	failOn  string
}

func (m *memory) start() unsafe.Pointer { return unsafe.Pointer(&m.buf[0]) }

func (m *memory) rel(p unsafe.Pointer) uintptr { return uintptr(p) - uintptr(m.start()) }

func (m *memory) writer(name string) schema.WriteFunc {
	return func(v agenttypes.Value, dst unsafe.Pointer) error {
		if name == m.failOn {
			return errInjected
		}
		b, _ := json.Marshal(v)
		m.writes = append(m.writes, write{name: name, offset: m.rel(dst), value: string(b)})
		if n, err := v.Int(); err == nil {
			binary.LittleEndian.PutUint32(unsafe.Slice((*byte)(dst), 4), uint32(n))
		}
		return nil
	}
}

func (m *memory) onProperty(name string) schema.ChangeFunc {
	return func(base unsafe.Pointer, v agenttypes.Value) {
		b, _ := json.Marshal(v)
		m.changes = append(m.changes, name+"@"+itoa(m.rel(base))+"="+string(b))
	}
}

func (m *memory) onModel(name string) schema.ModelChangeFunc {
	return func(base unsafe.Pointer) {
		m.changes = append(m.changes, name+"@"+itoa(m.rel(base)))
	}
}

func itoa(u uintptr) string {
	b, _ := json.Marshal(uint64(u))
	return string(b)
}

// newThermostat builds:
//
//	struct GeoLocation { double Lat; double Long }
//	struct Route       { GeoLocation From; GeoLocation To; ascii_char_ptr Label }
//	struct Empty       {}
//	model Thermostat {
//	  action SetACState(bool State)
//	  action SetLocation(GeoLocation Location)
//	  action Configure(ascii_char_ptr Name, int Level, bool Enabled)
//	  action SetRoute(Route Route)
//	  action Ping()
//	  action Broken(Empty Arg)
//	  action Orphan(Missing Arg)
//	  desired int int_field @2
//	  desired GeoLocation home @16
//	  property double Temperature
//	  reported ascii_char_ptr Firmware
//	  model Settings modelInModel @10
//	  model Child ChildModel @0
//	}
//	model Settings { desired int int_field @2; model Deep deep @20 }
//	model Deep     { desired int level @4 }
//	model Child    { action SetACState(bool State) }
func newThermostat(t *testing.T, mem *memory) *schema.Model {
	t.Helper()
	s, err := schema.New("Contoso")
	require.NoError(t, err)

	geo, err := s.CreateStructType("GeoLocation")
	require.NoError(t, err)
	require.NoError(t, geo.AddMember("Lat", "double"))
	require.NoError(t, geo.AddMember("Long", "double"))

	route, err := s.CreateStructType("Route")
	require.NoError(t, err)
	require.NoError(t, route.AddMember("From", "GeoLocation"))
	require.NoError(t, route.AddMember("To", "GeoLocation"))
	require.NoError(t, route.AddMember("Label", "ascii_char_ptr"))

	_, err = s.CreateStructType("Empty")
	require.NoError(t, err)

	deep, err := s.CreateModelType("Deep")
	require.NoError(t, err)
	require.NoError(t, deep.AddDesiredProperty(schema.DesiredProperty{
		Name: "level", Type: "int", Offset: 4, Write: mem.writer("level"), OnChange: mem.onProperty("level"),
	}))

	settings, err := s.CreateModelType("Settings")
	require.NoError(t, err)
	require.NoError(t, settings.AddDesiredProperty(schema.DesiredProperty{
		Name: "int_field", Type: "int", Offset: 2, Write: mem.writer("modelInModel/int_field"), OnChange: mem.onProperty("modelInModel/int_field"),
	}))
	require.NoError(t, settings.AddModel("deep", deep, 20, mem.onModel("deep")))

	child, err := s.CreateModelType("Child")
	require.NoError(t, err)
	a, err := child.AddAction("SetACState")
	require.NoError(t, err)
	require.NoError(t, a.AddArgument("State", "bool"))

	root, err := s.CreateModelType("Thermostat")
	require.NoError(t, err)

	addAction := func(name string, args ...string) {
		a, err := root.AddAction(name)
		require.NoError(t, err)
		for i := 0; i < len(args); i += 2 {
			require.NoError(t, a.AddArgument(args[i], args[i+1]))
		}
	}
	addAction("SetACState", "State", "bool")
	addAction("SetLocation", "Location", "GeoLocation")
	addAction("Configure", "Name", "ascii_char_ptr", "Level", "int", "Enabled", "bool")
	addAction("SetRoute", "Route", "Route")
	addAction("Ping")
	addAction("Broken", "Arg", "Empty")
	addAction("Orphan", "Arg", "Missing")

	require.NoError(t, root.AddDesiredProperty(schema.DesiredProperty{
		Name: "int_field", Type: "int", Offset: 2, Write: mem.writer("int_field"), OnChange: mem.onProperty("int_field"),
	}))
	require.NoError(t, root.AddDesiredProperty(schema.DesiredProperty{
		Name: "home", Type: "GeoLocation", Offset: 16, Write: mem.writer("home"),
	}))
	require.NoError(t, root.AddProperty("Temperature", "double"))
	require.NoError(t, root.AddReportedProperty("Firmware", "ascii_char_ptr"))
	require.NoError(t, root.AddModel("modelInModel", settings, 10, mem.onModel("modelInModel")))
	require.NoError(t, root.AddModel("ChildModel", child, 0, nil))
	return root
}
