package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/teemow/schedassist/internal/logging"
)

// Property describes a single parameter of a tool, JSON-Schema style.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema describes the parameters a tool accepts.
type Schema struct {
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Spec declares a tool: its unique name, a description the model reads when
// deciding whether to call it, and the parameter schema.
type Spec struct {
	Name        string
	Description string
	Parameters  Schema
}

// Handler executes a tool invocation. Arguments have already been checked
// against the spec's required list. The returned string is the human-readable
// output fed back to the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Request is a tool invocation proposed by the model.
type Request struct {
	Name      string
	Arguments map[string]any
}

// Result is the outcome of dispatching a Request. Err is recorded rather than
// propagated so the conversation can continue and narrate the failure.
type Result struct {
	Name   string
	Output string
	Err    error
}

// Text returns the serialized form of the result that is appended to the
// conversation history.
func (r Result) Text() string {
	if r.Err != nil {
		return fmt.Sprintf("error: %v", r.Err)
	}
	return r.Output
}

type registration struct {
	spec    Spec
	handler Handler
}

// Registry maps capability names to executable handlers. It is populated at
// startup and treated as immutable afterwards; Dispatch only reads it.
type Registry struct {
	tools  map[string]registration
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]registration),
		logger: logger,
	}
}

// Register adds a tool to the registry. Registering a duplicate or unnamed
// tool is a wiring bug and fails loudly at startup.
func (r *Registry) Register(spec Spec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool spec has no name")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has no handler", spec.Name)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %q already registered", spec.Name)
	}
	r.tools[spec.Name] = registration{spec: spec, handler: handler}
	return nil
}

// Specs returns the registered tool specs sorted by name, for building the
// model request payload.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, reg := range r.tools {
		specs = append(specs, reg.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Dispatch validates and executes a single tool invocation. Unknown tools,
// missing required arguments, handler errors and handler panics all come back
// as a Result with Err set; Dispatch itself never fails.
func (r *Registry) Dispatch(ctx context.Context, req Request) Result {
	log := logging.WithTool(r.logger, req.Name)

	reg, ok := r.tools[req.Name]
	if !ok {
		err := fmt.Errorf("unknown tool %q", req.Name)
		log.Warn("model requested unregistered tool", logging.Err(err))
		return Result{Name: req.Name, Err: err}
	}

	for _, name := range reg.spec.Parameters.Required {
		if _, present := req.Arguments[name]; !present {
			err := fmt.Errorf("invalid arguments for %q: missing required argument %q", req.Name, name)
			log.Warn("tool invocation rejected", logging.Err(err))
			return Result{Name: req.Name, Err: err}
		}
	}

	start := time.Now()
	output, err := r.invoke(ctx, reg.handler, req.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("tool execution failed",
			logging.Err(err),
			slog.Duration(logging.KeyDuration, elapsed))
		return Result{Name: req.Name, Err: err}
	}

	log.Debug("tool executed",
		logging.Status(logging.StatusSuccess),
		slog.Duration(logging.KeyDuration, elapsed))
	return Result{Name: req.Name, Output: output}
}

// invoke runs the handler, converting a panic into an error so a broken tool
// cannot take the orchestration loop down with it.
func (r *Registry) invoke(ctx context.Context, handler Handler, args map[string]any) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return handler(ctx, args)
}
