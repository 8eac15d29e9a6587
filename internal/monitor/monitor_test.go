package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeProc lays out a fake /proc with one process.
func writeProc(t *testing.T, pid string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "loadavg"),
		[]byte("1.25 0.80 0.55 2/345 9999\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "meminfo"),
		[]byte("MemTotal:       16384000 kB\nMemFree:         1000000 kB\nMemAvailable:    8192000 kB\n"), 0o644))
	if pid != "" {
		dir := filepath.Join(root, pid)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "status"),
			[]byte("Name:\tmyapp\nVmRSS:\t   20480 kB\n"), 0o644))
	}
	return root
}

func TestSampleReadsProc(t *testing.T) {
	m := New(Config{ProcRoot: writeProc(t, "")}, nil, nil)

	s := m.Sample()
	require.InDelta(t, 1.25, s.Load1, 0.001)
	require.Equal(t, int64(16384000)*1024, s.MemTotalBytes)
	require.Equal(t, int64(8192000)*1024, s.MemAvailBytes)
	require.Zero(t, s.RunningCount)
}

func TestSampleMissingProcIsZero(t *testing.T) {
	m := New(Config{ProcRoot: filepath.Join(t.TempDir(), "nope")}, nil, nil)

	s := m.Sample()
	require.Zero(t, s.Load1)
	require.Zero(t, s.MemTotalBytes)
}

func TestReadRSS(t *testing.T) {
	m := New(Config{ProcRoot: writeProc(t, "4242")}, nil, nil)
	require.Equal(t, int64(20480)*1024, m.readRSS(4242))
	require.Zero(t, m.readRSS(999999))
}

func TestWindowIsBounded(t *testing.T) {
	m := New(Config{ProcRoot: writeProc(t, ""), Window: 3}, nil, nil)

	for i := 0; i < 5; i++ {
		m.record(Sample{Taken: time.Now().Add(time.Duration(i) * time.Second)})
	}
	samples := m.Samples()
	require.Len(t, samples, 3)
	require.True(t, samples[0].Taken.Before(samples[2].Taken))
}

func TestLatest(t *testing.T) {
	m := New(Config{ProcRoot: writeProc(t, "")}, nil, nil)

	_, ok := m.Latest()
	require.False(t, ok)

	m.record(Sample{Load1: 0.5})
	m.record(Sample{Load1: 2.5})
	latest, ok := m.Latest()
	require.True(t, ok)
	require.InDelta(t, 2.5, latest.Load1, 0.001)
}

func TestStartStopLoop(t *testing.T) {
	m := New(Config{ProcRoot: writeProc(t, ""), Interval: 10 * time.Millisecond}, nil, nil)

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(m.Samples()) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	m.Stop()

	n := len(m.Samples())
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, n, len(m.Samples()), "loop should stop sampling")
}
