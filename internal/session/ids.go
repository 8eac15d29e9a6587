package session

import (
	"crypto/rand"
	"fmt"
	"time"
)

const idTokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newSessionID generates an identifier of the form
// tui_<millis-since-epoch>_<9-char-token>. Callers treat it as opaque.
func newSessionID() string {
	buf := make([]byte, 9)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = idTokenAlphabet[int(b)%len(idTokenAlphabet)]
	}
	return fmt.Sprintf("tui_%d_%s", time.Now().UnixMilli(), buf)
}
