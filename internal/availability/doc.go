// Package availability computes free time windows from calendar busy data.
//
// The computation is pure: given a query range and the busy intervals the
// calendar reported for it, it derives the complementary free intervals.
// Nothing here talks to Google APIs; the calendar package feeds this one.
package availability
