// Package scheduling registers the assistant's scheduling tools: availability
// lookups, meeting creation, and email sending.
//
// Handlers resolve the acting user from the dispatch context and build
// per-user API clients through the injected factories, so one registry serves
// every session.
package scheduling
