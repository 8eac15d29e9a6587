package terminal

import (
	"regexp"
	"strconv"
	"strings"
)

// csiPattern matches any CSI escape sequence: ESC [ params final-byte.
// All matches are stripped from the decoded text; only SGR sequences
// (final byte 'm') contribute styling information.
var csiPattern = regexp.MustCompile(`\x1b\[([0-9;?]*)([@-~])`)

var sgrColors = [...]string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

// sgrState is the styling established by the most recent SGR sequence.
type sgrState struct {
	fg     string
	bg     string
	styles []string
}

func (st sgrState) active() bool {
	return st.fg != "" || st.bg != "" || len(st.styles) > 0
}

// Decode strips recognized escape sequences from a raw output chunk and
// extracts the styled runs the SGR subset describes.
//
// The decoder is stateless per chunk: styling that spans a chunk boundary
// is not merged, and each SGR sequence establishes the active style from
// scratch out of its own parameters. A bare reset (ESC[0m) therefore ends
// styling without being modeled as a distinct attribute. Plain text that
// no styling sequence precedes is never emitted as a span.
func Decode(raw string) (string, []ColorSpan) {
	matches := csiPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw, nil
	}

	var text strings.Builder
	var spans []ColorSpan
	var state sgrState
	prev := 0

	flush := func(segment string) {
		if segment == "" {
			return
		}
		start := text.Len()
		text.WriteString(segment)
		if state.active() {
			spans = append(spans, ColorSpan{
				Text:   segment,
				FG:     state.fg,
				BG:     state.bg,
				Styles: state.styles,
				Start:  start,
				End:    start + len(segment),
			})
		}
	}

	for _, m := range matches {
		flush(raw[prev:m[0]])
		prev = m[1]
		if raw[m[4]:m[5]] == "m" {
			state = parseSGR(raw[m[2]:m[3]])
		}
	}
	flush(raw[prev:])

	return text.String(), spans
}

// parseSGR builds the active style from a semicolon-separated SGR
// parameter list. Unrecognized codes are accepted and ignored.
func parseSGR(params string) sgrState {
	var st sgrState
	for _, p := range strings.Split(params, ";") {
		code, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		switch {
		case code == 1:
			st.styles = append(st.styles, "bold")
		case code == 3:
			st.styles = append(st.styles, "italic")
		case code == 4:
			st.styles = append(st.styles, "underline")
		case code >= 30 && code <= 37:
			st.fg = sgrColors[code-30]
		case code >= 40 && code <= 47:
			st.bg = sgrColors[code-40]
		}
	}
	return st
}
