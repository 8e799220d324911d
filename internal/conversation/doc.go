// Package conversation owns the per-user dialogue with the language model.
//
// Each user has a Session holding a capacity-bounded history of turns. A call
// to Respond runs the bounded tool-calling protocol: one initial model call,
// at most one round of tool execution, and one follow-up call whose answer is
// final. The follow-up call is never allowed to trigger further tools, which
// bounds latency and cost per user turn by construction.
package conversation
