package session

import (
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

// Status is the lifecycle state of a supervised session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// StreamType distinguishes which pipe an output chunk arrived on.
type StreamType string

const (
	StreamStdout StreamType = "stdout"
	StreamStderr StreamType = "stderr"
)

// OutputEvent is one decoded chunk of process output. Events are appended
// in arrival order and never reordered or trimmed by the supervisor.
type OutputEvent struct {
	Stream     StreamType           `json:"stream"`
	Raw        string               `json:"raw"`
	Text       string               `json:"text"`
	ColorSpans []terminal.ColorSpan `json:"colorSpans,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Session is one spawned terminal program instance. All fields are owned
// by the Supervisor; other components read them through accessors.
type Session struct {
	ID           string
	PID          int
	Command      string
	Args         []string
	StartTime    time.Time
	Status       Status
	TerminalSize terminal.Size
	ExitCode     int

	events     []OutputEvent
	transcript *terminal.Transcript
	done       chan struct{}
}

// Info is an immutable snapshot of session state for reporting.
type Info struct {
	ID           string        `json:"id"`
	PID          int           `json:"pid"`
	Command      string        `json:"command"`
	Args         []string      `json:"args,omitempty"`
	StartTime    time.Time     `json:"startTime"`
	Status       Status        `json:"status"`
	TerminalSize terminal.Size `json:"terminalSize"`
	EventCount   int           `json:"eventCount"`
	ExitCode     int           `json:"exitCode"`
}

func (s *Session) info() Info {
	return Info{
		ID:           s.ID,
		PID:          s.PID,
		Command:      s.Command,
		Args:         append([]string(nil), s.Args...),
		StartTime:    s.StartTime,
		Status:       s.Status,
		TerminalSize: s.TerminalSize,
		EventCount:   len(s.events),
		ExitCode:     s.ExitCode,
	}
}
