// Package gemini adapts the Gemini API to the conversation orchestrator's
// model interface, translating tool registrations into function declarations
// and function calls back into tool requests.
package gemini
