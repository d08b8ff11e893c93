// Package thermostat binds the sample thermostat's actions to command handlers.
package thermostat

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
	"unsafe"

	"azure-iot-serializer/agent/internal/command"
	"azure-iot-serializer/agent/internal/logger"
	model "azure-iot-serializer/models/thermostat"
	"azure-iot-serializer/serializer/codefirst"
)

// Reporter publishes the device's current state.
type Reporter interface {
	ReportState() error
}

var errNotThermostat = errors.New("thermostat: action context is not a *thermostat.Thermostat")

// telemetryUnit scales the StartTelemetry interval argument.
var telemetryUnit = time.Second

func instance(req command.Request) (*model.Thermostat, error) {
	t, ok := req.Device.(*model.Thermostat)
	if !ok || t == nil {
		return nil, errNotThermostat
	}
	return t, nil
}

// RegisterHandlers binds every thermostat action to m's registry.
func RegisterHandlers(m *command.Manager, r Reporter) {
	command.Register("SetACState", command.Once(func(req command.Request) error {
		t, err := instance(req)
		if err != nil {
			return err
		}
		on, err := req.Args[0].Bool()
		if err != nil {
			return err
		}
		t.ACOn = on
		return nil
	}))
	command.Register("SetLocation", command.Once(func(req command.Request) error {
		t, err := instance(req)
		if err != nil {
			return err
		}
		return codefirst.Write(req.Args[0], unsafe.Pointer(&t.Location), reflect.TypeOf(t.Location))
	}))
	command.Register("SetTarget", command.Once(func(req command.Request) error {
		t, err := instance(req)
		if err != nil {
			return err
		}
		f, err := req.Args[0].Float()
		if err != nil {
			return err
		}
		if f < model.MinTarget || f > model.MaxTarget {
			return fmt.Errorf("target %.1f outside [%.0f, %.0f]", f, model.MinTarget, model.MaxTarget)
		}
		t.TargetTemperature = f
		return nil
	}))
	command.Register("Reboot", command.Once(func(req command.Request) error {
		t, err := instance(req)
		if err != nil {
			return err
		}
		t.Reboots++
		t.ACOn = false
		return nil
	}))
	command.Register("StartTelemetry", command.Stream(func(req command.Request) (func() error, error) {
		n, err := req.Args[0].Int()
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %d", n)
		}
		return startTelemetry(r, time.Duration(n)*telemetryUnit), nil
	}))
	command.Register("StopTelemetry", command.Once(func(command.Request) error {
		m.Stop("StartTelemetry")
		return nil
	}))
	command.Register(command.Key("fan", "SetSpeed"), command.Once(func(req command.Request) error {
		t, err := instance(req)
		if err != nil {
			return err
		}
		return codefirst.Write(req.Args[0], unsafe.Pointer(&t.Fan.Speed), reflect.TypeOf(t.Fan.Speed))
	}))
}

// startTelemetry reports every interval until the returned stop is called.
// stop does not wait for an in-flight report, which may be blocked on the
// device lock held by the caller.
func startTelemetry(r Reporter, every time.Duration) func() error {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		tick := time.NewTicker(every)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				if err := r.ReportState(); err != nil {
					logger.Warnf("Telemetry report failed: %v", err)
				}
			}
		}
	}()
	return func() error {
		once.Do(func() { close(done) })
		return nil
	}
}
