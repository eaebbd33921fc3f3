// Package toolregistry holds the tools exposed to a worker's model loop.
// Every parameter is drawn from a closed primitive-type vocabulary (never
// raw JSON or "object"), so the registry can derive a JSON Schema for each
// tool and validate every invocation against it before the handler runs.
package toolregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
)

// ParamKind is the closed vocabulary of tool parameter types.
type ParamKind string

const (
	ParamKindString      ParamKind = "string"
	ParamKindNumber      ParamKind = "number"
	ParamKindBoolean     ParamKind = "boolean"
	ParamKindEnum        ParamKind = "enum"
	ParamKindStringList  ParamKind = "string_list"
	ParamKindNumberList  ParamKind = "number_list"
)

// ParamSpec describes one tool input field.
type ParamSpec struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
	// EnumValues is the closed set of allowed values when Kind is
	// ParamKindEnum.
	EnumValues []string
}

// Handler executes a tool call. payload is the raw JSON arguments object,
// already validated against the tool's derived schema.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Tool is one named, schema-validated operation exposed to a worker's model
// loop.
type Tool struct {
	Name        string
	Description string
	Parameters  []ParamSpec
	Handler     Handler
}

// ErrUnknownTool indicates an invocation named a tool the registry does not
// hold.
var ErrUnknownTool = errors.New("toolregistry: unknown tool")

// ErrValidation indicates a tool payload failed schema validation.
var ErrValidation = errors.New("toolregistry: invalid tool payload")

type compiledTool struct {
	tool   Tool
	schema *jsonschema.Schema
	mu     sync.Mutex // at-most-one in-flight invocation per tool name
}

// Registry holds the tools available to one worker instance.
type Registry struct {
	hooks telemetry.Hooks
	tools map[string]*compiledTool
}

// New returns an empty Registry. hooks may be nil, in which case tool
// invocations are not reported.
func New(hooks telemetry.Hooks) *Registry {
	if hooks == nil {
		hooks = telemetry.NoOp{}
	}
	return &Registry{hooks: hooks, tools: make(map[string]*compiledTool)}
}

// Register compiles t's JSON Schema and adds it to the registry. Returns an
// error if a tool with the same name is already registered or the schema
// fails to compile.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("toolregistry: tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("toolregistry: tool %q has no handler", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("toolregistry: tool %q already registered", t.Name)
	}
	schemaDoc, err := buildSchema(t.Parameters)
	if err != nil {
		return fmt.Errorf("toolregistry: tool %q: %w", t.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	resourceID := "toolregistry://" + t.Name
	if err := compiler.AddResource(resourceID, schemaDoc); err != nil {
		return fmt.Errorf("toolregistry: tool %q: compile schema: %w", t.Name, err)
	}
	schema, err := compiler.Compile(resourceID)
	if err != nil {
		return fmt.Errorf("toolregistry: tool %q: compile schema: %w", t.Name, err)
	}
	r.tools[t.Name] = &compiledTool{tool: t, schema: schema}
	return nil
}

// Definitions returns the model.ToolDefinition list for every registered
// tool, for use as Request.Tools in tool-mode model calls.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.tools))
	for _, ct := range r.tools {
		schema, _ := buildSchema(ct.tool.Parameters)
		defs = append(defs, model.ToolDefinition{
			Name:        ct.tool.Name,
			Description: ct.tool.Description,
			InputSchema: schema,
		})
	}
	return defs
}

// Invoke validates payload against the named tool's schema, then runs its
// handler. jobID and worker identify the caller for the tool_invoked
// telemetry event; at most one invocation of a given tool name runs at a
// time for this registry instance.
func (r *Registry) Invoke(ctx context.Context, jobID, worker, name string, payload json.RawMessage) (any, error) {
	ct, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	var doc any
	if len(payload) == 0 {
		doc = map[string]any{}
	} else if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := ct.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	start := time.Now()
	result, err := ct.tool.Handler(ctx, payload)
	r.hooks.ToolInvoked(jobID, worker, name, time.Since(start), len(payload))
	return result, err
}

// buildSchema derives a JSON Schema object from a closed-vocabulary
// parameter list.
func buildSchema(params []ParamSpec) (map[string]any, error) {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop, err := paramSchema(p)
		if err != nil {
			return nil, err
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc, nil
}

func paramSchema(p ParamSpec) (map[string]any, error) {
	switch p.Kind {
	case ParamKindString:
		return map[string]any{"type": "string", "description": p.Description}, nil
	case ParamKindNumber:
		return map[string]any{"type": "number", "description": p.Description}, nil
	case ParamKindBoolean:
		return map[string]any{"type": "boolean", "description": p.Description}, nil
	case ParamKindEnum:
		if len(p.EnumValues) == 0 {
			return nil, fmt.Errorf("param %q: kind enum requires EnumValues", p.Name)
		}
		values := make([]any, len(p.EnumValues))
		for i, v := range p.EnumValues {
			values[i] = v
		}
		return map[string]any{"type": "string", "enum": values, "description": p.Description}, nil
	case ParamKindStringList:
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": p.Description,
		}, nil
	case ParamKindNumberList:
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "number"},
			"description": p.Description,
		}, nil
	default:
		return nil, fmt.Errorf("param %q: unknown kind %q", p.Name, p.Kind)
	}
}
