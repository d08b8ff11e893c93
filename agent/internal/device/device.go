// Package device binds a model instance to its decoder: envelopes come in,
// actions run and desired properties land in the instance, and every outcome
// is recorded.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"azure-iot-serializer/agent/internal/command"
	"azure-iot-serializer/agent/internal/db"
	"azure-iot-serializer/agent/internal/repo"
	"azure-iot-serializer/agent/internal/state"
	"azure-iot-serializer/network"
	"azure-iot-serializer/network/auth"
	"azure-iot-serializer/serializer/commanddecoder"
	"azure-iot-serializer/serializer/schema"
)

var (
	ErrInstance      = errors.New("device: instance must be a non-nil pointer to a struct")
	ErrWrongDevice   = errors.New("device: envelope addressed to another device")
	ErrMissingToken  = errors.New("device: envelope token required")
	ErrCommandFailed = errors.New("device: command not executed")
)

type Options struct {
	ID       string
	Model    *schema.Model
	Instance any // pointer to the struct the model describes
	Manager  *command.Manager
	Commands *repo.CommandRepository // optional
	Desired  *repo.DesiredRepository // optional
	Signer   *auth.Signer            // optional; when set every envelope needs a valid token
	Strict   bool
	Logger   zerolog.Logger
	OnState  func(state []byte) error // receives the instance JSON on ReportState
}

type Device struct {
	mu       sync.Mutex
	id       string
	instance any
	base     unsafe.Pointer
	dec      *commanddecoder.Decoder
	mgr      *command.Manager
	cmds     *repo.CommandRepository
	desired  *repo.DesiredRepository
	signer   *auth.Signer
	onState  func([]byte) error
	log      zerolog.Logger
	last     *command.Outcome
}

func New(o Options) (*Device, error) {
	rv := reflect.ValueOf(o.Instance)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, ErrInstance
	}
	if o.ID == "" || o.Manager == nil {
		return nil, fmt.Errorf("%w: device id and manager are required", commanddecoder.ErrInvalidArg)
	}
	d := &Device{
		id:       o.ID,
		instance: o.Instance,
		base:     rv.UnsafePointer(),
		mgr:      o.Manager,
		cmds:     o.Commands,
		desired:  o.Desired,
		signer:   o.Signer,
		onState:  o.OnState,
		log:      o.Logger.With().Str("device", o.ID).Logger(),
	}
	opts := []commanddecoder.Option{
		commanddecoder.WithContext(o.Instance),
		commanddecoder.WithLogger(d.log),
	}
	if o.Strict {
		opts = append(opts, commanddecoder.WithStrictDesiredProperties())
	}
	dec, err := commanddecoder.New(o.Model, o.Manager.Dispatch, opts...)
	if err != nil {
		return nil, err
	}
	d.dec = dec
	o.Manager.OnOutcome = func(out command.Outcome) { d.last = &out }
	state.SetDeviceID(o.ID)
	return d, nil
}

func (d *Device) ID() string { return d.id }

// Handle authenticates env and runs it. source names the transport.
func (d *Device) Handle(env network.Envelope, source string) network.Report {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	rep := network.Report{ID: env.ID, DeviceID: d.id, Kind: env.Kind, Source: source}
	if err := d.authorize(env); err != nil {
		d.log.Warn().Err(err).Str("id", env.ID).Msg("envelope rejected")
		rep.Result, rep.Error, rep.At = network.ResultRejected, err.Error(), time.Now()
		return rep
	}
	switch env.Kind {
	case network.KindCommand:
		return d.ExecuteCommand(env.ID, source, env.Payload)
	case network.KindDesired:
		return d.IngestDesired(env.ID, source, env.Payload)
	}
	rep.Result, rep.Error, rep.At = network.ResultRejected, fmt.Sprintf("unknown kind %q", env.Kind), time.Now()
	return rep
}

func (d *Device) authorize(env network.Envelope) error {
	if env.DeviceID != "" && env.DeviceID != d.id {
		return fmt.Errorf("%w: %s", ErrWrongDevice, env.DeviceID)
	}
	if d.signer == nil {
		return nil
	}
	if env.Token == "" {
		return ErrMissingToken
	}
	return d.signer.Verify(env.Token, d.id, string(env.Kind), env.Payload)
}

// ExecuteCommand runs one command document and records it.
func (d *Device) ExecuteCommand(id, source string, payload []byte) network.Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	rep := network.Report{ID: id, DeviceID: d.id, Kind: network.KindCommand, Source: source}
	if d.cmds != nil {
		dup, err := d.cmds.Exists(id)
		switch {
		case err != nil:
			d.log.Warn().Err(err).Str("id", id).Msg("duplicate check failed")
		case dup:
			d.log.Info().Str("id", id).Msg("duplicate command ignored")
			rep.Result, rep.At = network.ResultDuplicate, time.Now()
			return rep
		}
	}

	d.last = nil
	res := d.dec.ExecuteCommand(string(payload))
	rep.Result, rep.At = res.String(), time.Now()
	if d.last != nil {
		rep.Path, rep.Action = d.last.Path, d.last.Action
		if d.last.Err != nil {
			rep.Error = d.last.Err.Error()
		}
	} else if res != commanddecoder.Success {
		rep.Error = ErrCommandFailed.Error()
	}
	state.SetLastCommand(id)
	state.CountCommand()

	if d.cmds != nil {
		rec := &db.CommandRecord{
			CommandID: id, DeviceID: d.id, Source: source,
			ActionPath: rep.Path, Action: rep.Action,
			Payload: string(payload), Result: rep.Result, Error: rep.Error,
		}
		if err := d.cmds.Create(rec); err != nil {
			d.log.Error().Err(err).Str("id", id).Msg("recording command failed")
		}
	}
	d.log.Info().Str("id", id).Str("action", command.Key(rep.Path, rep.Action)).Str("result", rep.Result).Msg("command handled")
	return rep
}

// IngestDesired applies a desired-properties document to the instance and
// stores a snapshot of the resulting state.
func (d *Device) IngestDesired(id, source string, doc []byte) network.Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := d.dec.IngestDesiredProperties(d.base, string(doc))
	rep := network.Report{ID: id, DeviceID: d.id, Kind: network.KindDesired, Source: source, Result: res.String(), At: time.Now()}
	state.CountDesired()

	st, err := json.Marshal(d.instance)
	if err != nil {
		d.log.Error().Err(err).Msg("marshal state failed")
	}
	if d.desired != nil {
		snap := &db.DesiredSnapshot{DeviceID: d.id, Document: string(doc), Result: rep.Result, State: string(st)}
		if err := d.desired.Create(snap); err != nil {
			d.log.Error().Err(err).Msg("recording desired snapshot failed")
		}
	}
	d.log.Info().Str("id", id).Str("result", rep.Result).Msg("desired properties handled")
	return rep
}

// Restore replays the newest successfully applied desired document, so the
// instance starts from the last known desired state.
func (d *Device) Restore() error {
	if d.desired == nil {
		return nil
	}
	snap, err := d.desired.LastApplied(d.id)
	if err != nil {
		return fmt.Errorf("load desired snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if res := d.dec.IngestDesiredProperties(d.base, snap.Document); res != commanddecoder.Success {
		return fmt.Errorf("replay desired snapshot %d: %s", snap.ID, res)
	}
	return nil
}

// State returns the instance as JSON.
func (d *Device) State() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return json.Marshal(d.instance)
}

// ReportState hands the current state to OnState.
func (d *Device) ReportState() error {
	st, err := d.State()
	if err != nil {
		return err
	}
	if d.onState == nil {
		return nil
	}
	return d.onState(st)
}

// Close stops running actions and releases the decoder.
func (d *Device) Close() {
	d.mgr.StopAll()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dec.Close()
}
