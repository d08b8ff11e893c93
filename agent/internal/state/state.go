package state

import "sync/atomic"

type appState struct {
	DeviceID    atomic.Value // string
	LastCommand atomic.Value // string
	Commands    atomic.Int64
	Desired     atomic.Int64
}

var s appState

func SetDeviceID(id string) { s.DeviceID.Store(id) }
func GetDeviceID() string   { return load(&s.DeviceID) }

// SetLastCommand remembers the envelope id of the most recently handled command.
func SetLastCommand(id string) { s.LastCommand.Store(id) }
func GetLastCommand() string   { return load(&s.LastCommand) }

func CountCommand() int64 { return s.Commands.Add(1) }
func CountDesired() int64 { return s.Desired.Add(1) }

// Counters returns how many commands and desired documents were handled.
func Counters() (commands, desired int64) { return s.Commands.Load(), s.Desired.Load() }

func load(v *atomic.Value) string {
	if x := v.Load(); x != nil {
		if s, ok := x.(string); ok {
			return s
		}
	}
	return ""
}
