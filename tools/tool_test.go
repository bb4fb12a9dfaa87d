package tools

import (
	"context"
	"encoding/json"
	"testing"
)

type greetInput struct {
	Name   string `json:"name" description:"who to greet"`
	Formal bool   `json:"formal,omitempty" default:"false"`
}

func TestToolExecution(t *testing.T) {
	tool := New[greetInput]("greet", "Generate greeting", func(ctx context.Context, in greetInput, meta Meta) (string, error) {
		if in.Formal {
			return "Здравствуйте, " + in.Name, nil
		}
		return "Привет, " + in.Name, nil
	})

	var handle Handle = tool
	if handle.Name() != "greet" {
		t.Fatalf("unexpected name %q", handle.Name())
	}

	args := json.RawMessage(`{"name":"мир","formal":true}`)
	if err := handle.ValidateArgs(args); err != nil {
		t.Fatalf("validate: %v", err)
	}
	out, err := handle.Execute(context.Background(), args, Meta{CallID: "call-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "Здравствуйте, мир" {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestToolValidateArgsRejectsMissingRequired(t *testing.T) {
	tool := New[greetInput]("greet", "Generate greeting", func(ctx context.Context, in greetInput, meta Meta) (string, error) {
		return "", nil
	})

	if err := tool.ValidateArgs([]byte(`{"formal":true}`)); err == nil {
		t.Fatalf("expected missing name to fail validation")
	}
	if err := tool.ValidateArgs([]byte(`{"name":123}`)); err == nil {
		t.Fatalf("expected type mismatch to fail validation")
	}
}

func TestToolInputSchema(t *testing.T) {
	tool := New[greetInput]("greet", "Generate greeting", func(ctx context.Context, in greetInput, meta Meta) (string, error) {
		return "", nil
	})

	sch := tool.InputSchema()
	if sch.Type != "object" {
		t.Fatalf("expected object schema, got %q", sch.Type)
	}
	if len(sch.Required) != 1 || sch.Required[0] != "name" {
		t.Fatalf("unexpected required set %v", sch.Required)
	}
	if sch.Properties["name"].Description != "who to greet" {
		t.Fatalf("description not propagated")
	}
}
