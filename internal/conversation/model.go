package conversation

import (
	"context"
	"fmt"

	"github.com/teemow/schedassist/internal/tools"
)

// ToolCall is a tool invocation the model proposed in a response.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ModelResponse is the outcome of one model call: either final text, or one
// batch of tool calls to execute (possibly with interim text alongside).
type ModelResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// ModelRequest carries everything a backend needs for one model call. The
// system instruction is static configuration and never part of the history.
type ModelRequest struct {
	UserID            string
	SystemInstruction string
	Turns             []Turn
	Tools             []tools.Spec
}

// ModelClient is the language model backend. Implementations translate the
// request into their wire format and surface transport, auth and quota
// failures as errors; they do not retry.
type ModelClient interface {
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// UpstreamModelError wraps a failure from the model backend, marking which
// phase of the protocol failed.
type UpstreamModelError struct {
	Call string // "initial" or "followup"
	Err  error
}

func (e *UpstreamModelError) Error() string {
	return fmt.Sprintf("model %s call failed: %v", e.Call, e.Err)
}

func (e *UpstreamModelError) Unwrap() error {
	return e.Err
}
