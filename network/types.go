// Package network is the wire layer shared by the agent and the console:
// envelopes and reports carried as JSON over redis pub/sub.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the envelope type.
type Kind string

const (
	KindCommand Kind = "command"
	KindDesired Kind = "desired"
)

var ErrBadEnvelope = errors.New("network: malformed envelope")

// Envelope carries one command or desired-properties document to a device.
type Envelope struct {
	ID       string          `json:"id"`
	DeviceID string          `json:"device_id"`
	Kind     Kind            `json:"kind"`
	Token    string          `json:"token,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes b. An envelope without a kind takes fallback.
func ParseEnvelope(b []byte, fallback Kind) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if env.Kind == "" {
		env.Kind = fallback
	}
	switch env.Kind {
	case KindCommand, KindDesired:
	default:
		return Envelope{}, fmt.Errorf("%w: kind %q", ErrBadEnvelope, env.Kind)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return Envelope{}, fmt.Errorf("%w: empty payload", ErrBadEnvelope)
	}
	return env, nil
}

// Report is the outcome of one envelope.
type Report struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"kind"`
	Source   string    `json:"source"`
	Result   string    `json:"result"`
	Path     string    `json:"path,omitempty"`
	Action   string    `json:"action,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Results beyond success, failed and error.
const (
	ResultRejected  = "rejected"
	ResultDuplicate = "duplicate"
)

// Channels are the redis channels of one device.
type Channels struct {
	Commands string
	Desired  string
	Results  string
	Reported string
}

func ChannelsFor(prefix, deviceID string) Channels {
	base := prefix + ":" + deviceID + ":"
	return Channels{
		Commands: base + "commands",
		Desired:  base + "desired",
		Results:  base + "results",
		Reported: base + "reported",
	}
}

// KindOf returns the envelope kind implied by a channel name.
func (c Channels) KindOf(channel string) Kind {
	switch channel {
	case c.Commands:
		return KindCommand
	case c.Desired:
		return KindDesired
	}
	return ""
}
