// Package tools defines the typed tool layer exposed through the MCP
// catalog. Argument schemas are derived from the input struct once and
// reused for both advertising and validation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/naparnik-ai/copilot/internal/jsonschema"
	"github.com/naparnik-ai/copilot/schema"
)

// Meta carries per-invocation context into tool handlers.
type Meta struct {
	CallID string
}

// Handle is the catalog-facing view of a tool.
type Handle interface {
	Name() string
	Description() string
	InputSchema() *schema.Schema
	ValidateArgs(data []byte) error
	Execute(ctx context.Context, args json.RawMessage, meta Meta) (string, error)
}

// Func is the handler invoked when the host calls the tool.
type Func[I any] func(ctx context.Context, input I, meta Meta) (string, error)

// Tool represents a typed tool definition.
type Tool[I any] struct {
	name        string
	description string
	fn          Func[I]

	once        sync.Once
	inputSchema *schema.Schema
	validator   *jsonschema.Validator
}

// New constructs a typed tool with a derived argument schema.
func New[I any](name, description string, fn Func[I]) *Tool[I] {
	return &Tool[I]{name: name, description: description, fn: fn}
}

// Name returns the tool name.
func (t *Tool[I]) Name() string { return t.name }

// Description returns the description.
func (t *Tool[I]) Description() string { return t.description }

// InputSchema returns the JSON schema for the input type.
func (t *Tool[I]) InputSchema() *schema.Schema {
	t.ensureSchema()
	return t.inputSchema
}

// ValidateArgs checks raw arguments against the derived schema.
func (t *Tool[I]) ValidateArgs(data []byte) error {
	t.ensureSchema()
	return t.validator.Validate(data)
}

// Execute decodes the raw arguments and runs the handler.
func (t *Tool[I]) Execute(ctx context.Context, args json.RawMessage, meta Meta) (string, error) {
	var input I
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return "", fmt.Errorf("unmarshal tool input: %w", err)
		}
	}
	return t.fn(ctx, input, meta)
}

func (t *Tool[I]) ensureSchema() {
	t.once.Do(func() {
		in, err := jsonschema.Derive[I]()
		if err != nil {
			panic(fmt.Sprintf("derive input schema for %s: %v", t.name, err))
		}
		validator, err := jsonschema.Compile(in)
		if err != nil {
			panic(fmt.Sprintf("compile input schema for %s: %v", t.name, err))
		}
		t.inputSchema = in
		t.validator = validator
	})
}
