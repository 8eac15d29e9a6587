package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

// proc wraps one child process and its I/O endpoints. In pipe mode the
// process gets distinct stdin/stdout/stderr pipes; in pty mode it runs
// under a pseudo-terminal and all output arrives on a single stream.
type proc struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	// ioMu guards the writable endpoints, which kill tears down while
	// input may still be in flight on another goroutine.
	ioMu  sync.Mutex
	stdin io.WriteCloser
	ptmx  *os.File
}

// buildEnv layers the caller's variables over a snapshot of the inherited
// environment, with agent defaults (terminal type and size) in between.
// Nothing here mutates ambient process-wide state.
func buildEnv(size terminal.Size, extra map[string]string) []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	merged["TERM"] = "xterm-256color"
	merged["COLUMNS"] = fmt.Sprintf("%d", size.Cols)
	merged["LINES"] = fmt.Sprintf("%d", size.Rows)
	for k, v := range extra {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// startProc starts the process described by cfg and returns its handle.
func startProc(cfg SpawnConfig) (*proc, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Env = buildEnv(cfg.Size, cfg.Env)

	if cfg.UsePTY {
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
			Cols: uint16(cfg.Size.Cols),
			Rows: uint16(cfg.Size.Rows),
		})
		if err != nil {
			return nil, err
		}
		return &proc{cmd: cmd, ptmx: ptmx}, nil
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, err
	}

	return &proc{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// Write sends bytes to the process's input stream.
func (p *proc) Write(b []byte) (int, error) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()
	if p.ptmx != nil {
		return p.ptmx.Write(b)
	}
	if p.stdin == nil {
		return 0, fmt.Errorf("stdin closed")
	}
	return p.stdin.Write(b)
}

// signalTerm asks for graceful termination.
func (p *proc) signalTerm() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// kill forcefully terminates the process.
func (p *proc) kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// resize applies a new geometry to the pty, when the process has one.
// Pipe-mode sessions only record the new size.
func (p *proc) resize(size terminal.Size) error {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()
	if p.ptmx == nil {
		return nil
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{
		Cols: uint16(size.Cols),
		Rows: uint16(size.Rows),
	})
}

func (p *proc) closeIO() {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()
	if p.stdin != nil {
		_ = p.stdin.Close()
		p.stdin = nil
	}
	if p.ptmx != nil {
		_ = p.ptmx.Close()
		p.ptmx = nil
	}
}
