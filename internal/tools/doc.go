// Package tools provides the capability registry the orchestrator exposes to
// the language model.
//
// Each tool is registered once at startup with a name, a description and a
// typed parameter schema; the model proposes invocations by name and the
// dispatcher validates and executes them. A tool failure never aborts the
// conversation: it is converted into an error-carrying result that the
// follow-up model call can narrate to the user.
package tools
