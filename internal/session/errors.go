package session

import (
	"fmt"
	"time"
)

// SpawnError reports that the operating system refused to create a
// process. No session is registered when spawn fails.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SessionNotFoundError reports an operation against an unknown or
// no-longer-running session. This is a caller error, surfaced immediately.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found or not running: %s", e.ID)
}

// TimeoutError reports that a bounded wait exceeded its limit. It always
// names the configured limit so scenario authors can tune it.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Limit)
}
