package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

// ErrClosed is returned for operations on a closed session.
var ErrClosed = errors.New("session closed")

// OverflowError rejects an append that would push accumulated input past the
// configured maximum. The session is left untouched; nothing is truncated.
type OverflowError struct {
	CurrentSize  int `json:"current_size"`
	FragmentSize int `json:"fragment_size"`
	MaxSize      int `json:"max_size"`
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("buffer overflow: %d bytes buffered + %d byte fragment exceeds maximum %d",
		e.CurrentSize, e.FragmentSize, e.MaxSize)
}

// EngineError wraps an internal fault inside the parsing engine or the
// conversion step, caught at the session boundary. The session stays usable.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("parsing engine failure: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
