package terminal

import (
	"bytes"
	"testing"
)

func TestTranscriptRetainsWrites(t *testing.T) {
	tr := NewTranscript(64)
	_, _ = tr.Write([]byte("hello "))
	_, _ = tr.Write([]byte("world"))

	raw, truncated := tr.Bytes()
	if !bytes.Equal(raw, []byte("hello world")) {
		t.Errorf("raw = %q", raw)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
}

func TestTranscriptWrapsAndReportsTruncation(t *testing.T) {
	tr := NewTranscript(8)
	_, _ = tr.Write([]byte("abcdefgh"))
	_, _ = tr.Write([]byte("XY"))

	raw, truncated := tr.Bytes()
	if string(raw) != "cdefghXY" {
		t.Errorf("raw = %q, want cdefghXY", raw)
	}
	if !truncated {
		t.Error("expected truncation after wrap")
	}
}

func TestTranscriptOversizedWriteKeepsTail(t *testing.T) {
	tr := NewTranscript(4)
	_, _ = tr.Write([]byte("abcdefgh"))

	raw, truncated := tr.Bytes()
	if string(raw) != "efgh" {
		t.Errorf("raw = %q, want efgh", raw)
	}
	if !truncated {
		t.Error("expected truncation")
	}
	if tr.Total() != 8 {
		t.Errorf("total = %d, want 8", tr.Total())
	}
}

func TestTranscriptClear(t *testing.T) {
	tr := NewTranscript(8)
	_, _ = tr.Write([]byte("abc"))
	tr.Clear()
	raw, truncated := tr.Bytes()
	if len(raw) != 0 || truncated {
		t.Errorf("after clear: raw=%q truncated=%v", raw, truncated)
	}
}
