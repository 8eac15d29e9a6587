package terminal

import (
	"regexp"
	"runtime"
)

// KeyMap translates symbolic key names to the literal byte sequences a
// platform's terminal expects. Loaded once at startup and never mutated.
type KeyMap map[string]string

var keyTables = map[string]KeyMap{
	"win32": {
		"Enter":      "\r\n",
		"Tab":        "\t",
		"Escape":     "\x1b",
		"ArrowUp":    "\x1b[A",
		"ArrowDown":  "\x1b[B",
		"ArrowRight": "\x1b[C",
		"ArrowLeft":  "\x1b[D",
	},
	"darwin": {
		"Enter":      "\n",
		"Tab":        "\t",
		"Escape":     "\x1b",
		"ArrowUp":    "\x1b[A",
		"ArrowDown":  "\x1b[B",
		"ArrowRight": "\x1b[C",
		"ArrowLeft":  "\x1b[D",
	},
	"linux": {
		"Enter":      "\n",
		"Tab":        "\t",
		"Escape":     "\x1b",
		"ArrowUp":    "\x1b[A",
		"ArrowDown":  "\x1b[B",
		"ArrowRight": "\x1b[C",
		"ArrowLeft":  "\x1b[D",
	},
}

// KeyMapFor returns the key table for a platform identifier
// ("win32", "darwin", "linux"). Unknown platforms fall back to linux.
func KeyMapFor(platform string) KeyMap {
	if km, ok := keyTables[platform]; ok {
		return km
	}
	return keyTables["linux"]
}

// HostKeyMap returns the key table for the running operating system.
func HostKeyMap() KeyMap {
	switch runtime.GOOS {
	case "windows":
		return keyTables["win32"]
	case "darwin":
		return keyTables["darwin"]
	default:
		return keyTables["linux"]
	}
}

var keyTokenPattern = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// Expand substitutes {KeyName} tokens in an input string with their
// mapped byte sequences. Unmapped tokens pass through literally.
func (km KeyMap) Expand(s string) string {
	return keyTokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if seq, ok := km[name]; ok {
			return seq
		}
		return tok
	})
}
