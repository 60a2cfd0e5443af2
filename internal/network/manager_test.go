package network

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// --- Test Helpers ---

type fakeAdapter struct {
	name       string
	openErr    error
	deliverErr error
	panics     bool
	gate       chan struct{}
	entered    chan struct{}

	mu         sync.Mutex
	events     []onebot.Event
	closed     bool
	dispatcher Dispatcher
}

func (f *fakeAdapter) Name() string               { return f.name }
func (f *fakeAdapter) Open(context.Context) error { return f.openErr }

func (f *fakeAdapter) SetDispatcher(d Dispatcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatcher = d
}

func (f *fakeAdapter) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAdapter) Deliver(_ context.Context, ev onebot.Event) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panics {
		panic("adapter exploded")
	}
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAdapter) received() []onebot.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]onebot.Event(nil), f.events...)
}

func heartbeats(n int) []onebot.Event {
	out := make([]onebot.Event, n)
	for i := range out {
		out[i] = onebot.NewHeartbeat(10000, int64(i), onebot.Status{Online: true})
	}
	return out
}

func testActionContext() *action.Context {
	api := platform.NewMemoryAPI(platform.Fixture{
		Self:    platform.SelfInfo{UID: "u_self", Uin: 10000, Nick: "bot"},
		Friends: []platform.User{{UID: "u_bob", Uin: 6, Nick: "bob"}},
		Groups:  []platform.FixtureGroup{{Group: platform.Group{GroupID: 100, Name: "g"}}},
	})
	return &action.Context{API: api, Registry: identity.NewMemoryRegistry(10), Self: api.Self(), Version: "test"}
}

func newTestManager(queueSize int) *Manager {
	return NewManager(ManagerConfig{QueueSize: queueSize, ActionContext: testActionContext(), Logger: zerolog.Nop()})
}

// --- Manager Tests ---

func TestManager_FailingAdapterDoesNotAffectOthers(t *testing.T) {
	m := newTestManager(16)
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b", deliverErr: errors.New("connection refused")}
	c := &fakeAdapter{name: "c"}
	m.RegisterAdapter(a)
	m.RegisterAdapter(b)
	m.RegisterAdapter(c)
	m.OpenAll(context.Background())

	events := heartbeats(3)
	for _, ev := range events {
		m.Emit(context.Background(), ev)
	}
	m.CloseAll(context.Background())

	assert.Equal(t, events, a.received(), "delivery keeps emission order")
	assert.Equal(t, events, c.received())
	assert.Empty(t, b.received())
}

func TestManager_PanickingAdapterIsolated(t *testing.T) {
	m := newTestManager(16)
	bad := &fakeAdapter{name: "bad", panics: true}
	good := &fakeAdapter{name: "good"}
	m.RegisterAdapter(bad)
	m.RegisterAdapter(good)
	m.OpenAll(context.Background())

	m.Emit(context.Background(), heartbeats(1)[0])
	m.Emit(context.Background(), heartbeats(1)[0])
	m.CloseAll(context.Background())

	assert.Len(t, good.received(), 2)
}

func TestManager_OpenFailureLeavesAdapterStopped(t *testing.T) {
	m := newTestManager(16)
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b", openErr: errors.New("address in use")}
	m.RegisterAdapter(a)
	m.RegisterAdapter(b)

	assert.Equal(t, map[string]State{"a": StateStopped, "b": StateStopped}, m.States())
	m.OpenAll(context.Background())
	assert.Equal(t, map[string]State{"a": StateRunning, "b": StateStopped}, m.States())
	assert.Equal(t, onebot.Status{Online: true, Good: false}, m.Status())

	m.Emit(context.Background(), heartbeats(1)[0])
	m.CloseAll(context.Background())
	assert.Len(t, a.received(), 1)
	assert.Empty(t, b.received())
	assert.True(t, a.closed)
	assert.False(t, b.closed, "never-started adapters are not closed")
	assert.Equal(t, map[string]State{"a": StateStopped, "b": StateStopped}, m.States())
}

func TestManager_FullQueueDrops(t *testing.T) {
	m := newTestManager(1)
	slow := &fakeAdapter{name: "slow", gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	m.RegisterAdapter(slow)
	m.OpenAll(context.Background())

	events := heartbeats(3)
	m.Emit(context.Background(), events[0])
	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("slow adapter never started delivering")
	}
	m.Emit(context.Background(), events[1])
	m.Emit(context.Background(), events[2])
	close(slow.gate)
	m.CloseAll(context.Background())

	assert.Equal(t, events[:2], slow.received())
}

func TestManager_EmitWithoutRunningAdapters(t *testing.T) {
	m := newTestManager(4)
	a := &fakeAdapter{name: "a"}
	m.RegisterAdapter(a)
	m.Emit(context.Background(), heartbeats(1)[0])
	assert.Empty(t, a.received())
	assert.Equal(t, onebot.Status{Online: false, Good: false}, m.Status())
}

func TestManager_Dispatch(t *testing.T) {
	m := newTestManager(4)
	early := &fakeAdapter{name: "early"}
	m.RegisterAdapter(early)
	m.RegisterAllActions(action.Default())
	late := &fakeAdapter{name: "late"}
	m.RegisterAdapter(late)

	require.NotNil(t, early.dispatcher)
	require.NotNil(t, late.dispatcher)

	resp := early.dispatcher.Dispatch(context.Background(), "get_login_info", nil)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, action.LoginInfo{UserID: 10000, Nickname: "bot"}, resp.Data)

	resp = m.Dispatch(context.Background(), "nope", json.RawMessage(`{}`))
	assert.Equal(t, action.RetCodeUnknownAction, resp.RetCode)

	resp = m.Dispatch(context.Background(), "get_stranger_info", json.RawMessage(`{}`))
	assert.Equal(t, action.RetCodeBadRequest, resp.RetCode)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
}
