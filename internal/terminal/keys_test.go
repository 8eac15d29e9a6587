package terminal

import "testing"

func TestKeyMapForPlatforms(t *testing.T) {
	if got := KeyMapFor("win32")["Enter"]; got != "\r\n" {
		t.Errorf("win32 Enter = %q, want CRLF", got)
	}
	if got := KeyMapFor("darwin")["Enter"]; got != "\n" {
		t.Errorf("darwin Enter = %q, want LF", got)
	}
	if got := KeyMapFor("linux")["ArrowUp"]; got != "\x1b[A" {
		t.Errorf("linux ArrowUp = %q", got)
	}
}

func TestKeyMapForUnknownFallsBackToLinux(t *testing.T) {
	km := KeyMapFor("plan9")
	if km["Enter"] != "\n" || km["ArrowDown"] != "\x1b[B" {
		t.Errorf("fallback map = %v, want linux table", km)
	}
}

func TestExpandSubstitutesTokens(t *testing.T) {
	km := KeyMapFor("linux")
	got := km.Expand("hello{Enter}{ArrowDown}{Tab}")
	want := "hello\n\x1b[B\t"
	if got != want {
		t.Errorf("Expand = %q, want %q", got, want)
	}
}

func TestExpandUnmappedTokenPassesThrough(t *testing.T) {
	km := KeyMapFor("linux")
	if got := km.Expand("{NoSuchKey}x"); got != "{NoSuchKey}x" {
		t.Errorf("Expand = %q, want literal passthrough", got)
	}
}
