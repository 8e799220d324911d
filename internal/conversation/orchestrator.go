package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/schedassist/internal/instrumentation"
	"github.com/teemow/schedassist/internal/logging"
	"github.com/teemow/schedassist/internal/tools"
)

// DefaultCallTimeout bounds each individual model call.
const DefaultCallTimeout = 2 * time.Minute

// Session holds the conversational state for a single user. Turns for one
// session are processed strictly one at a time; the session mutex serializes
// concurrent Respond calls for the same user.
type Session struct {
	UserID string

	mu      sync.Mutex
	history *History
}

// Turns returns a snapshot of the session's history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// Config configures an Orchestrator.
type Config struct {
	// SystemInstruction is prepended to every model request. It is not part
	// of the history and is never evicted.
	SystemInstruction string

	// HistoryCapacity bounds each session's history (default
	// DefaultHistoryCapacity).
	HistoryCapacity int

	// CallTimeout bounds each individual model call (default
	// DefaultCallTimeout). A call exceeding it fails; it is not retried.
	CallTimeout time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Orchestrator drives the bounded tool-calling protocol against the model,
// one session per user.
type Orchestrator struct {
	model    ModelClient
	registry *tools.Registry
	config   Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Orchestrator for the given model backend and tool registry.
func New(model ModelClient, registry *tools.Registry, config Config) *Orchestrator {
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Orchestrator{
		model:    model,
		registry: registry,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for a user, creating it on first use.
func (o *Orchestrator) Session(userID string) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.sessions[userID]; ok {
		return s
	}
	s := &Session{
		UserID:  userID,
		history: NewHistory(o.config.HistoryCapacity),
	}
	o.sessions[userID] = s
	return s
}

// Respond handles one user turn: it appends the input to the session history,
// runs the two-phase model protocol, and returns the assistant's final text.
//
// On a model failure the error is returned unretried and no assistant turn is
// appended; the user turn stays in the history so the next attempt has
// context about what was asked.
func (o *Orchestrator) Respond(ctx context.Context, userID, userText string) (string, error) {
	session := o.Session(userID)
	session.mu.Lock()
	defer session.mu.Unlock()

	log := logging.WithUser(logging.WithOperation(o.logger, "respond"), userID)

	session.history.Append(Turn{Role: RoleUser, Text: userText})

	initial, err := o.generate(ctx, session, "initial")
	if err != nil {
		return "", &UpstreamModelError{Call: "initial", Err: err}
	}

	if len(initial.ToolCalls) == 0 {
		session.history.Append(Turn{Role: RoleAssistant, Text: initial.Text})
		return initial.Text, nil
	}

	// One round of tool execution, in the order the model requested. Each
	// tool's failure is recorded in its result turn and narrated by the
	// follow-up call; a failed tool never aborts the batch.
	toolCtx := tools.WithUserID(ctx, userID)
	for _, call := range initial.ToolCalls {
		start := time.Now()
		result := o.registry.Dispatch(toolCtx, tools.Request{
			Name:      call.Name,
			Arguments: call.Arguments,
		})
		status := "success"
		if result.Err != nil {
			status = "error"
		}
		o.metrics.RecordToolDispatch(ctx, call.Name, status, time.Since(start))
		session.history.Append(Turn{
			Role:     RoleToolResult,
			ToolName: call.Name,
			Text:     result.Text(),
		})
	}

	followup, err := o.generate(ctx, session, "followup")
	if err != nil {
		return "", &UpstreamModelError{Call: "followup", Err: err}
	}

	// The follow-up call closes the round. If the model nests another tool
	// request here we refuse to recurse: the enforced bound is what
	// guarantees termination.
	if len(followup.ToolCalls) > 0 {
		log.Warn("follow-up call requested further tools; bound reached, ignoring",
			slog.Int("requested", len(followup.ToolCalls)))
	}

	session.history.Append(Turn{Role: RoleAssistant, Text: followup.Text})
	return followup.Text, nil
}

func (o *Orchestrator) generate(ctx context.Context, session *Session, phase string) (*ModelResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.model.Generate(callCtx, ModelRequest{
		UserID:            session.UserID,
		SystemInstruction: o.config.SystemInstruction,
		Turns:             session.history.Turns(),
		Tools:             o.registry.Specs(),
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordModelCall(ctx, phase, status, time.Since(start))
	return res, err
}
