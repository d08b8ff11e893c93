// Package thermostat is the sample device: its memory layout, the model
// derived from it and the desired-property hooks.
package thermostat

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/codefirst"
	"azure-iot-serializer/serializer/schema"
)

const (
	Namespace = "Contoso"
	ModelName = "Thermostat"

	MinTarget = 5.0
	MaxTarget = 35.0
)

type GeoLocation struct {
	Lat  float64
	Long float64
}

type Fan struct {
	Speed uint8 `iot:"desired,speed"`
}

func (*Fan) DeclareActions() []codefirst.Action {
	return []codefirst.Action{
		{Name: "SetSpeed", Args: []schema.Property{{Name: "Speed", Type: "uint8_t"}}},
	}
}

type Schedule struct {
	Enabled       bool      `iot:"desired,enabled"`
	NightSetpoint float64   `iot:"desired,nightSetpoint"`
	NightFrom     time.Time `iot:"desired,nightFrom"`
}

// Thermostat is both the model description and the device memory image.
type Thermostat struct {
	TargetTemperature float64     `iot:"desired,targetTemperature"`
	Mode              string      `iot:"desired,mode"`
	Location          GeoLocation `iot:"desired,location"`
	Schedule          Schedule    `iot:"model,schedule"`
	Fan               Fan         `iot:"model,fan"`
	Temperature       float64     `iot:"reported,temperature"`
	ACOn              bool        `iot:"reported,acOn"`
	Reboots           int32       `iot:"reported,reboots"`
	Humidity          float64     `iot:"property,humidity"`
}

func (*Thermostat) DeclareActions() []codefirst.Action {
	return []codefirst.Action{
		{Name: "SetACState", Args: []schema.Property{{Name: "State", Type: "bool"}}},
		{Name: "SetLocation", Args: []schema.Property{{Name: "Location", Type: "GeoLocation"}}},
		{Name: "SetTarget", Args: []schema.Property{{Name: "Temperature", Type: "double"}}},
		{Name: "Reboot"},
		{Name: "StartTelemetry", Args: []schema.Property{{Name: "IntervalSec", Type: "int32_t"}}},
		{Name: "StopTelemetry"},
	}
}

// NewModel registers the thermostat model in a fresh schema and attaches the
// desired-property hooks, which log to log.
func NewModel(log zerolog.Logger) (*schema.Model, error) {
	s, err := schema.New(Namespace)
	if err != nil {
		return nil, err
	}
	m, err := codefirst.Build(s, ModelName, &Thermostat{})
	if err != nil {
		return nil, fmt.Errorf("build thermostat model: %w", err)
	}
	if err := codefirst.OnDesired(m, "targetTemperature", func(base unsafe.Pointer, v agenttypes.Value) {
		t := codefirst.As[Thermostat](base)
		t.TargetTemperature = ClampTarget(t.TargetTemperature)
		log.Info().Float64("target", t.TargetTemperature).Stringer("desired", v.Kind()).Msg("target temperature updated")
	}); err != nil {
		return nil, err
	}
	if err := codefirst.OnModel(m, "schedule", func(base unsafe.Pointer) {
		sc := codefirst.As[Schedule](base)
		log.Info().Bool("enabled", sc.Enabled).Float64("night", sc.NightSetpoint).Msg("schedule updated")
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// ClampTarget limits a setpoint to [MinTarget, MaxTarget].
func ClampTarget(t float64) float64 {
	switch {
	case t < MinTarget:
		return MinTarget
	case t > MaxTarget:
		return MaxTarget
	}
	return t
}
