package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Typed adapts a routine taking a decoded params struct P into a Handler.
// Fields of P without omitempty are required. Unknown keys are allowed since
// OneBot clients routinely send extras.
type Typed[P any] struct {
	name     string
	raw      json.RawMessage
	compiled *validator.Schema
	fn       func(ctx context.Context, hc *Context, p P) (any, error)
}

// NewTyped reflects P into the action's params schema and compiles it once.
func NewTyped[P any](name string, fn func(ctx context.Context, hc *Context, p P) (any, error)) *Typed[P] {
	reflector := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	var zero P
	raw, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for %s: %v", name, err))
	}
	compiled, err := compileSchema(name, raw)
	if err != nil {
		panic(fmt.Sprintf("failed to compile schema for %s: %v", name, err))
	}
	return &Typed[P]{name: name, raw: raw, compiled: compiled, fn: fn}
}

func compileSchema(name string, raw json.RawMessage) (*validator.Schema, error) {
	doc, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	loc := name + ".json"
	c := validator.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, err
	}
	return c.Compile(loc)
}

func (t *Typed[P]) Name() string            { return t.name }
func (t *Typed[P]) Schema() json.RawMessage { return t.raw }

func (t *Typed[P]) Handle(ctx context.Context, hc *Context, params json.RawMessage) (any, error) {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	doc, err := validator.UnmarshalJSON(bytes.NewReader(params))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := t.compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	var p P
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return t.fn(ctx, hc, p)
}
