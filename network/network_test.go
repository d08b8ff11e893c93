package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(Envelope, string) Report

func (f handlerFunc) Handle(env Envelope, source string) Report { return f(env, source) }

func TestChannelsFor(t *testing.T) {
	ch := ChannelsFor("iot", "dev-1")
	assert.Equal(t, "iot:dev-1:commands", ch.Commands)
	assert.Equal(t, "iot:dev-1:desired", ch.Desired)
	assert.Equal(t, "iot:dev-1:results", ch.Results)
	assert.Equal(t, "iot:dev-1:reported", ch.Reported)
	assert.Equal(t, KindDesired, ch.KindOf(ch.Desired))
	assert.Equal(t, Kind(""), ch.KindOf("other"))
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"id":"1","device_id":"d","payload":{"Name":"Ping"}}`), KindCommand)
	require.NoError(t, err)
	assert.Equal(t, KindCommand, env.Kind)
	assert.JSONEq(t, `{"Name":"Ping"}`, string(env.Payload))

	env, err = ParseEnvelope([]byte(`{"kind":"desired","payload":{"a":1}}`), KindCommand)
	require.NoError(t, err)
	assert.Equal(t, KindDesired, env.Kind)

	for _, bad := range []string{`nope`, `{"kind":"other","payload":{}}`, `{"kind":"desired"}`, `{"kind":"desired","payload":null}`, `{"payload":{}}`} {
		_, err := ParseEnvelope([]byte(bad), "")
		assert.ErrorIs(t, err, ErrBadEnvelope, bad)
	}
}

func TestHandleMessage(t *testing.T) {
	ch := ChannelsFor("iot", "dev-1")
	var got Envelope
	h := handlerFunc(func(env Envelope, source string) Report {
		got = env
		return Report{ID: env.ID, Kind: env.Kind, Source: source, Result: "success"}
	})

	rep := HandleMessage(ch, h, ch.Commands, `{"id":"c1","payload":{"Name":"Ping","Parameters":{}}}`)
	assert.Equal(t, "success", rep.Result)
	assert.Equal(t, SourceRedis, rep.Source)
	assert.Equal(t, KindCommand, got.Kind)

	rep = HandleMessage(ch, h, ch.Desired, `{"id":`)
	assert.Equal(t, ResultRejected, rep.Result)
	assert.Equal(t, KindDesired, rep.Kind)
}

func TestDialFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, Options{})
	assert.Error(t, err)
	_, err = Dial(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
