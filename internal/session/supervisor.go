package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

const (
	DefaultGracePeriod    = 1000 * time.Millisecond
	DefaultTranscriptSize = 256 * 1024

	readChunkSize = 4096
)

// SpawnConfig describes one process to start.
type SpawnConfig struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Size       terminal.Size
	UsePTY     bool
}

// Config tunes supervisor behavior.
type Config struct {
	GracePeriod    time.Duration
	TranscriptSize int
}

// EventSink observes decoded output events as they are appended.
// Called outside the registry lock; must not block.
type EventSink func(sessionID string, ev OutputEvent)

// Supervisor owns the session registry. It is the only component that
// mutates sessions; everything else reads through accessors.
type Supervisor struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	procs    map[string]*proc

	cfg  Config
	log  *slog.Logger
	sink EventSink
	wg   sync.WaitGroup
}

// NewSupervisor creates a supervisor with the given configuration.
func NewSupervisor(cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.TranscriptSize <= 0 {
		cfg.TranscriptSize = DefaultTranscriptSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		sessions: make(map[string]*Session),
		procs:    make(map[string]*proc),
		cfg:      cfg,
		log:      logger.With("component", "supervisor"),
	}
}

// SetEventSink registers an observer for decoded output events.
func (s *Supervisor) SetEventSink(sink EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Spawn starts a process and registers a running session for it.
// It fails with *SpawnError when the OS refuses to create the process;
// no session is registered in that case.
func (s *Supervisor) Spawn(ctx context.Context, cfg SpawnConfig) (string, error) {
	if cfg.Command == "" {
		return "", &SpawnError{Command: cfg.Command, Err: errors.New("command cannot be empty")}
	}
	if cfg.Size.Cols <= 0 {
		cfg.Size.Cols = 80
	}
	if cfg.Size.Rows <= 0 {
		cfg.Size.Rows = 24
	}

	p, err := startProc(cfg)
	if err != nil {
		return "", &SpawnError{Command: cfg.Command, Err: err}
	}

	sess := &Session{
		ID:           newSessionID(),
		PID:          p.cmd.Process.Pid,
		Command:      cfg.Command,
		Args:         append([]string(nil), cfg.Args...),
		StartTime:    time.Now(),
		Status:       StatusRunning,
		TerminalSize: cfg.Size,
		transcript:   terminal.NewTranscript(s.cfg.TranscriptSize),
		done:         make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.procs[sess.ID] = p
	s.mu.Unlock()

	var readers sync.WaitGroup
	if p.ptmx != nil {
		readers.Add(1)
		go s.readStream(&readers, sess, p.ptmx, StreamStdout)
	} else {
		readers.Add(2)
		go s.readStream(&readers, sess, p.stdout, StreamStdout)
		go s.readStream(&readers, sess, p.stderr, StreamStderr)
	}

	s.wg.Add(1)
	go s.watchExit(sess, p, &readers)

	s.log.Info("spawned session",
		"session", sess.ID, "command", cfg.Command, "pid", sess.PID, "pty", cfg.UsePTY)
	return sess.ID, nil
}

// readStream drains one output stream into the session buffer, decoding
// each chunk as it arrives.
func (s *Supervisor) readStream(readers *sync.WaitGroup, sess *Session, r io.Reader, stream StreamType) {
	defer readers.Done()
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.appendEvent(sess, stream, buf[:n])
		}
		if err != nil {
			// A pty read fails with EIO once the child exits; either way
			// the stream is finished.
			return
		}
	}
}

func (s *Supervisor) appendEvent(sess *Session, stream StreamType, chunk []byte) {
	raw := string(chunk)
	text, spans := terminal.Decode(raw)
	_, _ = sess.transcript.Write(chunk)

	s.mu.Lock()
	ev := OutputEvent{
		Stream:     stream,
		Raw:        raw,
		Text:       text,
		ColorSpans: spans,
		Timestamp:  time.Now(),
	}
	sess.events = append(sess.events, ev)
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(sess.ID, ev)
	}
}

// watchExit records the process's natural exit once its streams are
// drained, so the last output chunk is never lost.
func (s *Supervisor) watchExit(sess *Session, p *proc, readers *sync.WaitGroup) {
	defer s.wg.Done()
	readers.Wait()
	err := p.cmd.Wait()

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	s.mu.Lock()
	delete(s.procs, sess.ID)
	sess.ExitCode = exitCode
	if sess.Status == StatusRunning {
		if exitCode == 0 {
			sess.Status = StatusCompleted
		} else {
			sess.Status = StatusFailed
		}
	}
	s.mu.Unlock()
	close(sess.done)

	s.log.Info("session exited", "session", sess.ID, "exitCode", exitCode)
}

// Kill terminates a session: SIGTERM, a bounded grace period, then
// SIGKILL. The session is marked killed and removed from the live
// registry regardless of whether the process had already exited.
// Unknown or already-finished sessions are a logged no-op.
func (s *Supervisor) Kill(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	p, live := s.procs[id]
	s.mu.Unlock()

	if !ok || !live {
		s.log.Warn("kill requested for unknown or finished session", "session", id)
		return nil
	}

	if err := p.signalTerm(); err != nil {
		s.log.Debug("SIGTERM failed, process likely gone", "session", id, "error", err)
	}

	select {
	case <-sess.done:
	case <-time.After(s.cfg.GracePeriod):
		s.log.Warn("grace period elapsed, escalating to SIGKILL",
			"session", id, "grace", s.cfg.GracePeriod)
		if err := p.kill(); err != nil {
			s.log.Debug("SIGKILL failed", "session", id, "error", err)
		}
		select {
		case <-sess.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	p.closeIO()

	s.mu.Lock()
	sess.Status = StatusKilled
	delete(s.procs, id)
	s.mu.Unlock()

	s.log.Info("session killed", "session", id)
	return nil
}

// KillAll kills every live session concurrently and waits for all to
// finish. Individual failures are collected, never fatal to the rest.
func (s *Supervisor) KillAll(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		killErr []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Kill(ctx, id); err != nil {
				s.log.Warn("kill failed during killAll", "session", id, "error", err)
				errMu.Lock()
				killErr = append(killErr, fmt.Errorf("kill %s: %w", id, err))
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errors.Join(killErr...)
}

// Get returns a snapshot of a session's state. Finished sessions remain
// addressable until Cleanup removes them.
func (s *Supervisor) Get(id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Info{}, &SessionNotFoundError{ID: id}
	}
	return sess.info(), nil
}

// List returns snapshots of every addressable session.
func (s *Supervisor) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.info())
	}
	return infos
}

// Events returns a copy of the session's buffered output events.
func (s *Supervisor) Events(id string) ([]OutputEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}
	return append([]OutputEvent(nil), sess.events...), nil
}

// EventCount returns the number of buffered output events. The count is
// monotonically increasing, which is what the quiescence detector polls.
func (s *Supervisor) EventCount(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0, &SessionNotFoundError{ID: id}
	}
	return len(sess.events), nil
}

// CombinedText returns the decoded text of every buffered event joined in
// arrival order.
func (s *Supervisor) CombinedText(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", &SessionNotFoundError{ID: id}
	}
	var b strings.Builder
	for _, ev := range sess.events {
		b.WriteString(ev.Text)
	}
	return b.String(), nil
}

// TextSince returns the decoded text of events buffered at index from
// onward, joined in arrival order. A from at or past the buffer end
// yields the empty string.
func (s *Supervisor) TextSince(id string, from int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", &SessionNotFoundError{ID: id}
	}
	if from < 0 {
		from = 0
	}
	var b strings.Builder
	for i := from; i < len(sess.events); i++ {
		b.WriteString(sess.events[i].Text)
	}
	return b.String(), nil
}

// LatestEvent returns the most recent output event, or ok=false when the
// session has produced no output yet.
func (s *Supervisor) LatestEvent(id string) (OutputEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return OutputEvent{}, false, &SessionNotFoundError{ID: id}
	}
	if len(sess.events) == 0 {
		return OutputEvent{}, false, nil
	}
	return sess.events[len(sess.events)-1], true, nil
}

// Transcript returns the retained raw byte stream for artifact capture.
func (s *Supervisor) Transcript(id string) ([]byte, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, &SessionNotFoundError{ID: id}
	}
	raw, truncated := sess.transcript.Bytes()
	return raw, truncated, nil
}

// Resize records a new terminal geometry and, for pty sessions, applies
// it to the pseudo-terminal.
func (s *Supervisor) Resize(id string, size terminal.Size) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return &SessionNotFoundError{ID: id}
	}
	sess.TerminalSize = size
	p := s.procs[id]
	s.mu.Unlock()

	if p != nil {
		return p.resize(size)
	}
	return nil
}

// WriteInput writes bytes to a running session's input stream.
func (s *Supervisor) WriteInput(id string, b []byte) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	p, live := s.procs[id]
	s.mu.RUnlock()
	if !ok || !live || sess.Status != StatusRunning {
		return &SessionNotFoundError{ID: id}
	}
	_, err := p.Write(b)
	return err
}

// Running reports whether the session exists and is still running.
func (s *Supervisor) Running(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return ok && sess.Status == StatusRunning
}

// Done returns a channel closed when the session's process has exited.
func (s *Supervisor) Done(id string) (<-chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}
	return sess.done, nil
}

// Cleanup removes a finished session and its buffers from the registry.
// Running sessions are never removed.
func (s *Supervisor) Cleanup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status == StatusRunning {
		return
	}
	delete(s.sessions, id)
}

// Shutdown kills everything and waits for exit watchers to drain.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	err := s.KillAll(ctx)
	s.wg.Wait()
	return err
}
