// Package tools defines the operation registry the agent dispatches through.
package tools

import (
	"context"
	"fmt"
)

// Handler executes a tool with loosely-typed named parameters, as
// decoded from the model's JSON decision. Handlers return an arbitrary
// JSON-serializable payload or an error; the registry normalizes both
// into a Result.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Tool is a single registered operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Params maps parameter name to a human-readable type hint. It is
	// advisory only: shown to the model, never enforced.
	Params  map[string]string `json:"params"`
	Handler Handler           `json:"-"`
}

// Descriptor is the catalog entry exposed for prompt construction.
type Descriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"desc"`
	Params      map[string]string `json:"params"`
}

// Result is the uniform outcome of a tool execution. Execute never
// returns a Go error; failures are carried here so the model can read
// them and self-correct.
type Result struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Registry holds available tools. Lookup is case-sensitive exact-match.
type Registry struct {
	tools map[string]*Tool
	order []string // registration order, for List
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. Re-registering a name replaces the prior entry
// and keeps its original catalog position.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil when absent.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns catalog descriptors in registration order. Used for
// prompt construction only; callers must not mutate the maps.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			Params:      t.Params,
		})
	}
	return out
}

// Execute runs a tool by name. Unknown names and handler failures are
// absorbed into the Result; nothing propagates to the caller.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) Result {
	tool := r.tools[name]
	if tool == nil {
		return Result{Success: false, Error: fmt.Sprintf("Tool '%s' not found", name)}
	}
	if params == nil {
		params = map[string]any{}
	}

	res, err := safeCall(ctx, tool.Handler, params)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Result: res}
}

// safeCall invokes a handler and converts panics into errors so a
// misbehaving tool cannot take down the loop.
func safeCall(ctx context.Context, h Handler, params map[string]any) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panic: %v", rec)
		}
	}()
	return h(ctx, params)
}
