package store

import "strconv"

// CursorAdvances reports whether candidate represents forward progress over
// current. Gmail history ids are decimal integers, so both sides are compared
// numerically when they parse; an unparsable candidate never advances. An
// empty current cursor is always advanced.
func CursorAdvances(current, candidate string) bool {
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}

	cur, errCur := strconv.ParseUint(current, 10, 64)
	cand, errCand := strconv.ParseUint(candidate, 10, 64)
	if errCur != nil || errCand != nil {
		// Opaque non-numeric cursors: any change counts as progress, a
		// replay of the same value does not.
		return current != candidate
	}
	return cand > cur
}
