package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// DefaultQueueSize bounds each adapter's pending event queue.
const DefaultQueueSize = 256

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	QueueSize int
	// ActionContext is handed to every dispatched action.
	ActionContext *action.Context
	Logger        zerolog.Logger
}

// Manager owns the adapter set. Emit enqueues on every running adapter; each
// adapter drains its own queue so a slow or failing adapter never delays the
// others.
type Manager struct {
	mu        sync.RWMutex
	entries   []*entry
	actions   action.Map
	hc        *action.Context
	queueSize int
	log       zerolog.Logger
}

type entry struct {
	adapter Adapter
	state   atomic.Int32
	queue   chan onebot.Event
	done    chan struct{}
	cancel  context.CancelFunc
}

func (e *entry) State() State { return State(e.state.Load()) }

func (e *entry) setState(s State) { e.state.Store(int32(s)) }

// NewManager creates an empty Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ActionContext == nil {
		cfg.ActionContext = &action.Context{}
	}
	return &Manager{
		hc:        cfg.ActionContext,
		queueSize: cfg.QueueSize,
		log:       cfg.Logger.With().Str("component", "network").Logger(),
	}
}

// RegisterAdapter adds a in the Stopped state.
func (m *Manager) RegisterAdapter(a Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &entry{adapter: a})
	if r, ok := a.(ActionReceiver); ok && m.actions != nil {
		r.SetDispatcher(m)
	}
}

// RegisterAllActions installs the action map and attaches every adapter that
// accepts action calls.
func (m *Manager) RegisterAllActions(actions action.Map) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = actions
	for _, e := range m.entries {
		if r, ok := e.adapter.(ActionReceiver); ok {
			r.SetDispatcher(m)
		}
	}
}

// OpenAll starts every stopped adapter concurrently. A failed start leaves
// that adapter stopped and does not affect the others.
func (m *Manager) OpenAll(ctx context.Context) {
	m.mu.Lock()
	var starting []*entry
	for _, e := range m.entries {
		if e.State() == StateStopped {
			e.setState(StateStarting)
			starting = append(starting, e)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range starting {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			m.open(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (m *Manager) open(ctx context.Context, e *entry) {
	name := e.adapter.Name()
	if err := safeCall(func() error { return e.adapter.Open(ctx) }); err != nil {
		m.log.Error().Err(err).Str("adapter", name).Msg("Failed to start adapter")
		e.setState(StateStopped)
		return
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	e.queue = make(chan onebot.Event, m.queueSize)
	e.done = make(chan struct{})
	e.cancel = cancel
	e.setState(StateRunning)
	m.mu.Unlock()

	go m.drain(workerCtx, e, e.queue, e.done)
	m.log.Info().Str("adapter", name).Msg("Adapter running")
}

func (m *Manager) drain(ctx context.Context, e *entry, queue <-chan onebot.Event, done chan<- struct{}) {
	defer close(done)
	name := e.adapter.Name()
	for ev := range queue {
		if err := safeCall(func() error { return e.adapter.Deliver(ctx, ev) }); err != nil {
			m.log.Warn().Err(err).Str("adapter", name).Str("post_type", ev.Post()).Msg("Event delivery failed")
		}
	}
}

// CloseAll stops every running adapter after its queue has drained or ctx
// expires.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	var stopping []*entry
	for _, e := range m.entries {
		if e.State() == StateRunning {
			e.setState(StateStopping)
			close(e.queue)
			stopping = append(stopping, e)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range stopping {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			select {
			case <-e.done:
			case <-ctx.Done():
			}
			e.cancel()
			if err := safeCall(func() error { return e.adapter.Close(ctx) }); err != nil {
				m.log.Error().Err(err).Str("adapter", e.adapter.Name()).Msg("Failed to stop adapter")
			}
			e.setState(StateStopped)
		}(e)
	}
	wg.Wait()
}

// Emit enqueues ev on every running adapter. A full queue drops the event for
// that adapter only.
func (m *Manager) Emit(_ context.Context, ev onebot.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.State() != StateRunning {
			continue
		}
		select {
		case e.queue <- ev:
		default:
			m.log.Warn().Str("adapter", e.adapter.Name()).Str("post_type", ev.Post()).Msg("Adapter queue full, dropping event")
		}
	}
}

// Dispatch runs an inbound action call through the registered action map.
func (m *Manager) Dispatch(ctx context.Context, name string, params json.RawMessage) action.Response {
	m.mu.RLock()
	actions := m.actions
	m.mu.RUnlock()

	resp := actions.Dispatch(ctx, m.hc, name, params)
	if resp.Status != "ok" {
		m.log.Warn().Str("action", name).Int("retcode", resp.RetCode).Msg(resp.Message)
	} else {
		m.log.Debug().Str("action", name).Msg("Action handled")
	}
	return resp
}

// States returns a snapshot of adapter states keyed by adapter name.
func (m *Manager) States() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.entries))
	for _, e := range m.entries {
		out[e.adapter.Name()] = e.State()
	}
	return out
}

// Status reports online when any adapter runs and good when all of them do.
func (m *Manager) Status() onebot.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	running := 0
	for _, e := range m.entries {
		if e.State() == StateRunning {
			running++
		}
	}
	return onebot.Status{Online: running > 0, Good: running == len(m.entries)}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
