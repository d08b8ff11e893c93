package command

import (
	"errors"
	"fmt"
	"sync"

	"azure-iot-serializer/agent/internal/logger"
	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/commanddecoder"
)

var ErrNoHandler = errors.New("command: no handler registered")

// Outcome describes how one dispatched action ended.
type Outcome struct {
	Path   string
	Action string
	Result commanddecoder.Result
	Err    error
}

// Manager runs decoded actions and keeps running stream actions
type Manager struct {
	mu        sync.Mutex
	active    map[string]func() error // key->stop
	OnOutcome func(Outcome)
}

func NewManager() *Manager { return &Manager{active: map[string]func() error{}} }

// Format renders a human-friendly string of an action
func Format(path, action string, args []agenttypes.Value) string {
	return fmt.Sprintf("action=%s args=%d", Key(path, action), len(args))
}

// Dispatch is a commanddecoder.ActionFunc. A missing handler is an Error; a
// handler that fails is Failed.
func (m *Manager) Dispatch(device any, path, action string, args []agenttypes.Value) commanddecoder.Result {
	key := Key(path, action)
	res, err := m.dispatch(Request{Device: device, Path: path, Action: action, Args: args})
	if m.OnOutcome != nil {
		m.OnOutcome(Outcome{Path: path, Action: action, Result: res, Err: err})
	}
	if err != nil {
		logger.Errorf("Action %s: %v", key, err)
	}
	return res
}

func (m *Manager) dispatch(req Request) (commanddecoder.Result, error) {
	key := Key(req.Path, req.Action)
	h, ok := Get(key)
	if !ok {
		return commanddecoder.Error, fmt.Errorf("%w: %s", ErrNoHandler, key)
	}
	logger.Infof("Received %s kind=%s", Format(req.Path, req.Action, req.Args), h.Kind())
	switch h.Kind() {
	case KindOnce:
		if err := h.HandleOnce(req); err != nil {
			return commanddecoder.Failed, err
		}
		logger.Infof("Action %s completed", key)
	case KindStream:
		m.Stop(key)
		stop, err := h.Start(req)
		if err != nil {
			return commanddecoder.Failed, fmt.Errorf("start: %w", err)
		}
		if stop != nil {
			m.mu.Lock()
			m.active[key] = stop
			m.mu.Unlock()
		}
		logger.Infof("Action %s started", key)
	default:
		return commanddecoder.Error, fmt.Errorf("unknown handler kind %q", h.Kind())
	}
	return commanddecoder.Success, nil
}

// Stop stops a running stream action by key (if exists)
func (m *Manager) Stop(key string) {
	m.mu.Lock()
	stop, exists := m.active[key]
	if exists {
		delete(m.active, key)
	}
	m.mu.Unlock()
	if exists {
		if err := stop(); err != nil {
			logger.Warnf("Stopping %s: %v", key, err)
		}
		logger.Infof("Action %s stopped", key)
	}
}

// StopAll stops every running stream action.
func (m *Manager) StopAll() {
	m.mu.Lock()
	keys := make([]string, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	for _, k := range keys {
		m.Stop(k)
	}
}

// Running reports whether a stream action is active under key.
func (m *Manager) Running(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[key]
	return ok
}
