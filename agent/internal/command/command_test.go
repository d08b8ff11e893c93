package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/commanddecoder"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "Ping", Key("", "Ping"))
	assert.Equal(t, "Fan/Spin", Key("Fan", "Spin"))
}

func TestDispatchOnce(t *testing.T) {
	var got Request
	var state bool
	Register("test-once/Set", Once(func(req Request) error {
		got = req
		b, err := req.Args[0].Bool()
		state = b
		return err
	}))
	Register("test-once/Fail", Once(func(Request) error { return errors.New("boom") }))

	m := NewManager()
	var outcomes []Outcome
	m.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	res := m.Dispatch("dev", "test-once", "Set", []agenttypes.Value{agenttypes.Bool(true)})
	assert.Equal(t, commanddecoder.Success, res)
	assert.True(t, state)
	assert.Equal(t, "dev", got.Device)
	assert.Equal(t, "test-once", got.Path)

	assert.Equal(t, commanddecoder.Failed, m.Dispatch(nil, "test-once", "Fail", nil))
	assert.Equal(t, commanddecoder.Error, m.Dispatch(nil, "test-once", "Missing", nil))

	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.EqualError(t, outcomes[1].Err, "boom")
	assert.ErrorIs(t, outcomes[2].Err, ErrNoHandler)
	assert.Equal(t, "Missing", outcomes[2].Action)
}

func TestDispatchStreamRestarts(t *testing.T) {
	starts, stops := 0, 0
	Register("Telemetry", Stream(func(Request) (func() error, error) {
		starts++
		return func() error { stops++; return nil }, nil
	}))
	Register("BadStream", Stream(func(Request) (func() error, error) { return nil, errors.New("no") }))

	m := NewManager()
	assert.Equal(t, commanddecoder.Success, m.Dispatch(nil, "", "Telemetry", nil))
	assert.True(t, m.Running("Telemetry"))
	assert.Equal(t, commanddecoder.Success, m.Dispatch(nil, "", "Telemetry", nil))
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)

	m.StopAll()
	assert.False(t, m.Running("Telemetry"))
	assert.Equal(t, 2, stops)

	assert.Equal(t, commanddecoder.Failed, m.Dispatch(nil, "", "BadStream", nil))
	assert.False(t, m.Running("BadStream"))
}
