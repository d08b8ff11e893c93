package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"azure-iot-serializer/network"
	"azure-iot-serializer/network/auth"
)

// Publisher is the part of network.Client the session needs.
type Publisher interface {
	Send(ctx context.Context, channel string, v any) error
}

// Session publishes envelopes to one device and relays what it reports back
type Session struct {
	DeviceID string
	Channels network.Channels
	Signer   *auth.Signer // nil sends unsigned envelopes
	Timeout  time.Duration
	MsgChan  chan tea.Msg
	pub      Publisher
	stop     chan struct{}
	once     sync.Once
}

func NewSession(pub Publisher, deviceID, prefix string, signer *auth.Signer) *Session {
	return &Session{
		DeviceID: deviceID,
		Channels: network.ChannelsFor(prefix, deviceID),
		Signer:   signer,
		Timeout:  5 * time.Second,
		MsgChan:  make(chan tea.Msg, 16),
		pub:      pub,
		stop:     make(chan struct{}),
	}
}

// ReportMsg is a result published by the agent.
type ReportMsg struct {
	Report network.Report
}

// StateMsg is a state snapshot published by the agent.
type StateMsg struct {
	State json.RawMessage
	At    time.Time
}

// ErrMsg carries a local failure, such as invalid input, into the UI.
type ErrMsg struct {
	Err error
}

// LinkErrMsg is a failure on the subscription side.
type LinkErrMsg struct {
	Err error
}

// Envelope builds the signed envelope for payload.
func (s *Session) Envelope(kind network.Kind, payload []byte) (network.Envelope, error) {
	env := network.Envelope{
		ID:       uuid.NewString(),
		DeviceID: s.DeviceID,
		Kind:     kind,
		Payload:  json.RawMessage(payload),
	}
	if s.Signer != nil {
		tok, err := s.Signer.Sign(s.DeviceID, string(kind), payload)
		if err != nil {
			return network.Envelope{}, fmt.Errorf("sign envelope: %w", err)
		}
		env.Token = tok
	}
	return env, nil
}

// Send publishes payload as a kind envelope and returns its id.
func (s *Session) Send(kind network.Kind, payload []byte) (string, error) {
	env, err := s.Envelope(kind, payload)
	if err != nil {
		return "", err
	}
	channel := s.Channels.Commands
	if kind == network.KindDesired {
		channel = s.Channels.Desired
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := s.pub.Send(ctx, channel, env); err != nil {
		return "", err
	}
	return env.ID, nil
}

// Listen relays results and state from msgs until Close.
func (s *Session) Listen(msgs <-chan *redis.Message) {
	for {
		select {
		case <-s.stop:
			return
		case m, ok := <-msgs:
			if !ok {
				s.push(LinkErrMsg{Err: errors.New("subscription closed")})
				return
			}
			s.push(s.decode(m.Channel, []byte(m.Payload)))
		}
	}
}

func (s *Session) decode(channel string, payload []byte) tea.Msg {
	switch channel {
	case s.Channels.Results:
		var rep network.Report
		if err := json.Unmarshal(payload, &rep); err != nil {
			return LinkErrMsg{Err: fmt.Errorf("bad report: %w", err)}
		}
		return ReportMsg{Report: rep}
	case s.Channels.Reported:
		var st struct {
			State json.RawMessage `json:"state"`
			At    time.Time       `json:"at"`
		}
		if err := json.Unmarshal(payload, &st); err != nil {
			return LinkErrMsg{Err: fmt.Errorf("bad state: %w", err)}
		}
		return StateMsg{State: st.State, At: st.At}
	}
	return LinkErrMsg{Err: fmt.Errorf("unexpected channel %s", channel)}
}

func (s *Session) push(msg tea.Msg) {
	select {
	case s.MsgChan <- msg:
	case <-s.stop:
	}
}

// WaitForMsg is a tea.Cmd that waits for the next message from the channel
func (s *Session) WaitForMsg() tea.Msg {
	select {
	case msg := <-s.MsgChan:
		return msg
	case <-s.stop:
		return nil
	}
}

func (s *Session) Close() {
	s.once.Do(func() { close(s.stop) })
}
