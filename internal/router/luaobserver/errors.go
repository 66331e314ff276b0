package luaobserver

import "errors"

// Errors for Lua observers.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotTable is returned when a script does not return a table.
	ErrNotTable = errors.New("script did not return a table")

	// ErrInvalidAnnotation is returned for a malformed __observe entry.
	ErrInvalidAnnotation = errors.New("invalid __observe entry")
)
