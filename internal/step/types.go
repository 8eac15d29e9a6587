// Package step maps abstract scenario actions onto the session
// supervisor, input simulator and menu navigator, and validates the
// results uniformly.
package step

import (
	"time"
)

// Step is one abstract action from a scenario. Target is overloaded by
// action: a command line for spawn, a session id for session actions,
// a URL for the protocol agents.
type Step struct {
	Name      string            `yaml:"name,omitempty" json:"name,omitempty"`
	Action    string            `yaml:"action" json:"action"`
	Target    string            `yaml:"target" json:"target"`
	Value     string            `yaml:"value,omitempty" json:"value,omitempty"`
	Expected  any               `yaml:"expected,omitempty" json:"expected,omitempty"`
	TimeoutMS int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	UsePTY    bool              `yaml:"use_pty,omitempty" json:"usePty,omitempty"`
	// ContinueOnFailure lets the runner proceed past this step's failure.
	ContinueOnFailure bool `yaml:"continue_on_failure,omitempty" json:"continueOnFailure,omitempty"`
}

// Timeout returns the step timeout as a duration, zero when unset.
func (s Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Status is the outcome of one executed step.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Result is the uniform outcome record for every action.
type Result struct {
	Step      string        `json:"step,omitempty"`
	Action    string        `json:"action"`
	Target    string        `json:"target,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Status    Status        `json:"status"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	// Output carries captured text for capture_output and the session id
	// for spawn.
	Output string `json:"output,omitempty"`
}

// Passed is a convenience for result consumers.
func (r Result) Passed() bool { return r.Status == StatusPassed }
