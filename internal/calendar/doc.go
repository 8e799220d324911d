// Package calendar wraps the Google Calendar API for the scheduling tools.
//
// Two operations matter here: querying the free/busy state of the primary
// calendar (feeding the availability computation) and inserting meetings the
// assistant sets up.
package calendar
