// Package monitor samples host load, memory, and per-session RSS on an
// interval, keeps a bounded window of samples, and logs threshold
// breaches. Readings come from /proc, so on non-Linux hosts the host
// fields stay zero and only session data is populated.
package monitor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultWindow   = 120
)

// SessionUsage is one session's memory footprint at sample time.
type SessionUsage struct {
	SessionID string `json:"sessionId"`
	PID       int    `json:"pid"`
	RSSBytes  int64  `json:"rssBytes"`
}

// Sample is one point-in-time reading.
type Sample struct {
	Taken         time.Time      `json:"taken"`
	Load1         float64        `json:"load1"`
	MemTotalBytes int64          `json:"memTotalBytes"`
	MemAvailBytes int64          `json:"memAvailBytes"`
	Sessions      []SessionUsage `json:"sessions,omitempty"`
	RunningCount  int            `json:"runningCount"`
}

// Thresholds trigger warnings when exceeded. Zero disables a check.
type Thresholds struct {
	Load1          float64
	MemAvailBytes  int64
	SessionRSSByte int64
}

// Config tunes the sampler.
type Config struct {
	Interval   time.Duration
	Window     int
	Thresholds Thresholds
	// ProcRoot overrides /proc for tests.
	ProcRoot string
}

// Monitor runs the sampling loop.
type Monitor struct {
	cfg Config
	sup *session.Supervisor
	log *slog.Logger

	mu      sync.RWMutex
	samples []Sample

	stop chan struct{}
	done chan struct{}
}

func New(cfg Config, sup *session.Supervisor, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.ProcRoot == "" {
		cfg.ProcRoot = "/proc"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:  cfg,
		sup:  sup,
		log:  logger.With("component", "monitor"),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the sampling loop. Stop with Stop.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.record(m.Sample())
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

// Sample takes one reading immediately.
func (m *Monitor) Sample() Sample {
	s := Sample{Taken: time.Now()}
	s.Load1 = m.readLoad1()
	s.MemTotalBytes, s.MemAvailBytes = m.readMeminfo()

	if m.sup != nil {
		for _, info := range m.sup.List() {
			if info.Status != session.StatusRunning {
				continue
			}
			s.RunningCount++
			s.Sessions = append(s.Sessions, SessionUsage{
				SessionID: info.ID,
				PID:       info.PID,
				RSSBytes:  m.readRSS(info.PID),
			})
		}
	}
	return s
}

func (m *Monitor) record(s Sample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	if len(m.samples) > m.cfg.Window {
		m.samples = m.samples[len(m.samples)-m.cfg.Window:]
	}
	m.mu.Unlock()

	m.warn(s)
}

func (m *Monitor) warn(s Sample) {
	th := m.cfg.Thresholds
	if th.Load1 > 0 && s.Load1 > th.Load1 {
		m.log.Warn("load above threshold", "load1", s.Load1, "threshold", th.Load1)
	}
	if th.MemAvailBytes > 0 && s.MemAvailBytes > 0 && s.MemAvailBytes < th.MemAvailBytes {
		m.log.Warn("available memory below threshold", "available", s.MemAvailBytes, "threshold", th.MemAvailBytes)
	}
	if th.SessionRSSByte > 0 {
		for _, su := range s.Sessions {
			if su.RSSBytes > th.SessionRSSByte {
				m.log.Warn("session memory above threshold", "session", su.SessionID, "rss", su.RSSBytes, "threshold", th.SessionRSSByte)
			}
		}
	}
}

// Samples returns a copy of the retained window, oldest first.
func (m *Monitor) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Latest returns the most recent sample, if any.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

func (m *Monitor) readLoad1() float64 {
	data, err := os.ReadFile(m.cfg.ProcRoot + "/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

func (m *Monitor) readMeminfo() (total, available int64) {
	f, err := os.Open(m.cfg.ProcRoot + "/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseMeminfoKB(line) * 1024
		case strings.HasPrefix(line, "MemAvailable:"):
			available = parseMeminfoKB(line) * 1024
		}
		if total > 0 && available > 0 {
			break
		}
	}
	return total, available
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseInt(fields[1], 10, 64)
	return v
}

// readRSS reads VmRSS from /proc/<pid>/status, zero when unavailable.
func (m *Monitor) readRSS(pid int) int64 {
	f, err := os.Open(fmt.Sprintf("%s/%d/status", m.cfg.ProcRoot, pid))
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "VmRSS:") {
			return parseMeminfoKB(line) * 1024
		}
	}
	return 0
}
