package command

import (
	"sync"

	"azure-iot-serializer/serializer/agenttypes"
)

type Kind string

const (
	KindOnce   Kind = "once"
	KindStream Kind = "stream"
)

// Request is one decoded action. Args are only valid until the handler
// returns; handlers copy out whatever they keep.
type Request struct {
	Device any
	Path   string
	Action string
	Args   []agenttypes.Value
}

type Handler interface {
	Kind() Kind
	// HandleOnce executes a one-off action; only used when kind==once
	HandleOnce(req Request) error
	// Start starts a continuous task; only used when kind==stream
	Start(req Request) (stop func() error, err error)
}

// Once adapts a function into a one-off Handler.
type Once func(req Request) error

func (f Once) Kind() Kind                              { return KindOnce }
func (f Once) HandleOnce(req Request) error            { return f(req) }
func (f Once) Start(req Request) (func() error, error) { return nil, nil }

// Stream adapts a function into a continuous Handler.
type Stream func(req Request) (stop func() error, err error)

func (f Stream) Kind() Kind                              { return KindStream }
func (f Stream) HandleOnce(req Request) error            { return nil }
func (f Stream) Start(req Request) (func() error, error) { return f(req) }

// Registry maps "path/action" to handler
var (
	regMu    sync.RWMutex
	registry = map[string]Handler{}
)

// Key is the registry key of action reached through path.
func Key(path, action string) string {
	if path == "" {
		return action
	}
	return path + "/" + action
}

func Register(key string, h Handler) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[key] = h
}

func Get(key string) (Handler, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	h, ok := registry[key]
	return h, ok
}
