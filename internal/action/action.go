// Package action implements the OneBot actions the bridge answers and the
// response envelope they are returned in.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// Return codes carried by failed responses.
const (
	RetCodeOK            = 0
	RetCodeFailed        = 1200
	RetCodeBadRequest    = 1400
	RetCodeUnknownAction = 1404
)

var (
	// ErrUnknownAction is returned for action names absent from the Map.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidParams wraps every payload validation failure.
	ErrInvalidParams = errors.New("invalid params")
)

// Context carries what handlers need to reach the platform.
type Context struct {
	API      platform.API
	Registry identity.Registry
	Self     platform.SelfInfo
	Version  string
	// Status reports liveness for get_status; nil means online and good.
	Status func() onebot.Status
}

// Handler is one named action.
type Handler interface {
	// Name returns the OneBot action name.
	Name() string
	// Schema returns the JSON schema of the accepted params.
	Schema() json.RawMessage
	// Handle validates params and runs the action. Validation failures wrap
	// ErrInvalidParams and never reach the action routine.
	Handle(ctx context.Context, hc *Context, params json.RawMessage) (any, error)
}

// Response is the OneBot action response envelope.
type Response struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    any             `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    json.RawMessage `json:"echo,omitempty"`
}

// OK wraps data in a successful response.
func OK(data any) Response {
	return Response{Status: "ok", RetCode: RetCodeOK, Data: data}
}

// Failed builds a failed response.
func Failed(code int, msg string) Response {
	return Response{Status: "failed", RetCode: code, Message: msg, Wording: msg}
}

// WithEcho returns r carrying the caller's echo value verbatim.
func (r Response) WithEcho(echo json.RawMessage) Response {
	if len(echo) > 0 {
		r.Echo = echo
	}
	return r
}

// Map is the static action name to handler table.
type Map map[string]Handler

// NewMap indexes handlers by name.
func NewMap(handlers ...Handler) Map {
	m := make(Map, len(handlers))
	for _, h := range handlers {
		m[h.Name()] = h
	}
	return m
}

// Names returns the action names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the named action and returns its raw result.
func (m Map) Call(ctx context.Context, hc *Context, name string, params json.RawMessage) (data any, err error) {
	h, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	return h.Handle(ctx, hc, params)
}

// Dispatch runs the named action and wraps the outcome in a Response.
func (m Map) Dispatch(ctx context.Context, hc *Context, name string, params json.RawMessage) Response {
	data, err := m.Call(ctx, hc, name, params)
	switch {
	case err == nil:
		return OK(data)
	case errors.Is(err, ErrUnknownAction):
		return Failed(RetCodeUnknownAction, err.Error())
	case errors.Is(err, ErrInvalidParams):
		return Failed(RetCodeBadRequest, fmt.Sprintf("%s: %v", name, err))
	default:
		return Failed(RetCodeFailed, fmt.Sprintf("%s: %v", name, err))
	}
}

// Default returns every action the bridge supports.
func Default() Map {
	return NewMap(
		GetLoginInfo,
		GetStatus,
		GetVersionInfo,
		GetFriendList,
		GetGroupList,
		GetGroupMemberInfo,
		GetStrangerInfo,
		SendPrivateMsg,
		SendGroupMsg,
		SendMsg,
		DeleteMsg,
		SetFriendAddRequest,
		SendGroupAIRecord,
	)
}
