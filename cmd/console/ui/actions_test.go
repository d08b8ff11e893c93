package ui

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "azure-iot-serializer/models/thermostat"
	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/commanddecoder"
	"azure-iot-serializer/serializer/schema"
)

func thermostatDefs(t *testing.T) (*schema.Model, map[string]ActionDef) {
	t.Helper()
	m, err := model.NewModel(zerolog.Nop())
	require.NoError(t, err)
	defs, err := Actions(m)
	require.NoError(t, err)
	byTitle := map[string]ActionDef{}
	for _, d := range defs {
		byTitle[d.Title()] = d
	}
	return m, byTitle
}

func TestActionsListsNestedModels(t *testing.T) {
	m, err := model.NewModel(zerolog.Nop())
	require.NoError(t, err)
	defs, err := Actions(m)
	require.NoError(t, err)

	var titles []string
	for _, d := range defs {
		titles = append(titles, d.Title())
	}
	assert.Equal(t, []string{"SetACState", "SetLocation", "SetTarget", "Reboot", "StartTelemetry", "StopTelemetry", "fan/SetSpeed"}, titles)
}

func TestActionsFlattensStructs(t *testing.T) {
	_, defs := thermostatDefs(t)
	loc := defs["SetLocation"]
	require.Len(t, loc.Fields, 2)
	assert.Equal(t, FieldDef{Name: "Location.Lat", Type: "double", Kind: agenttypes.KindFloat64}, loc.Fields[0])
	assert.Equal(t, "Location.Long", loc.Fields[1].Name)
	assert.Equal(t, "Location.Lat double, Location.Long double", loc.Description())
	assert.Equal(t, "no arguments", defs["Reboot"].Description())
}

type captured struct {
	path, action string
	args         []string // JSON of each argument
}

// decode runs payload through a decoder of m and returns the dispatched call.
func decode(t *testing.T, m *schema.Model, payload []byte) captured {
	t.Helper()
	var got captured
	dec, err := commanddecoder.New(m, func(_ any, path, action string, args []agenttypes.Value) commanddecoder.Result {
		got = captured{path: path, action: action}
		for _, a := range args {
			b, err := a.MarshalJSON()
			require.NoError(t, err)
			got.args = append(got.args, string(b))
		}
		return commanddecoder.Success
	})
	require.NoError(t, err)
	defer dec.Close()
	require.Equal(t, commanddecoder.Success, dec.ExecuteCommand(string(payload)))
	return got
}

func TestBuildRoundTrips(t *testing.T) {
	m, defs := thermostatDefs(t)

	b, err := Build(defs["SetACState"], []string{"true"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"SetACState","Parameters":{"State":true}}`, string(b))
	got := decode(t, m, b)
	assert.Equal(t, "SetACState", got.action)
	assert.Equal(t, []string{"true"}, got.args)

	b, err = Build(defs["SetLocation"], []string{"47.6", " -122.3 "})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"SetLocation","Parameters":{"Location":{"Lat":47.6,"Long":-122.3}}}`, string(b))
	assert.Equal(t, []string{`{"Lat":47.6,"Long":-122.3}`}, decode(t, m, b).args)

	b, err = Build(defs["fan/SetSpeed"], []string{"3"})
	require.NoError(t, err)
	got = decode(t, m, b)
	assert.Equal(t, "fan", got.path)
	assert.Equal(t, "SetSpeed", got.action)
	assert.Equal(t, []string{"3"}, got.args)

	b, err = Build(defs["Reboot"], nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"Reboot","Parameters":{}}`, string(b))
	assert.Equal(t, "Reboot", decode(t, m, b).action)
}

func TestBuildQuotesStrings(t *testing.T) {
	def := ActionDef{Name: "Label", Fields: []FieldDef{
		{Name: "Text", Type: "ascii_char_ptr", Kind: agenttypes.KindString},
		{Name: "Id", Type: "EDM_GUID", Kind: agenttypes.KindGUID},
		{Name: "Scale", Type: "float", Kind: agenttypes.KindFloat32},
	}}
	b, err := Build(def, []string{`say "hi"`, "0f8fad5b-d9cb-469f-a165-70867728950e", "INF"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"Label","Parameters":{"Text":"say \"hi\"","Id":"0f8fad5b-d9cb-469f-a165-70867728950e","Scale":"INF"}}`, string(b))
}

func TestBuildRejects(t *testing.T) {
	_, defs := thermostatDefs(t)
	cases := map[string]struct {
		def    ActionDef
		values []string
	}{
		"bool":          {defs["SetACState"], []string{"maybe"}},
		"uint8 range":   {defs["fan/SetSpeed"], []string{"300"}},
		"int32 text":    {defs["StartTelemetry"], []string{"ten"}},
		"float garbage": {defs["SetTarget"], []string{"1e"}},
		"value count":   {defs["SetACState"], nil},
		"desired array": {DesiredEntry, []string{"[1,2]"}},
		"desired junk":  {DesiredEntry, []string{"{"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(tc.def, tc.values)
			assert.ErrorIs(t, err, ErrBadInput)
		})
	}
}

func TestBuildDesired(t *testing.T) {
	b, err := Build(DesiredEntry, []string{` {"targetTemperature":21} `})
	require.NoError(t, err)
	assert.Equal(t, `{"targetTemperature":21}`, string(b))
	assert.Equal(t, "Desired properties", DesiredEntry.Title())

	b, err = Build(DesiredEntry, []string{"{\"target\": 21.5,\n \"mode\": \"eco\"}"})
	require.NoError(t, err)
	assert.Equal(t, `{"target":21.5,"mode":"eco"}`, string(b))
}
