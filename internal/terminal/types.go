package terminal

// Size is a terminal geometry in character cells.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ColorSpan is one styled run of decoded output text. Start and End are
// offsets into the decoded text stream of the chunk the span came from.
type ColorSpan struct {
	Text   string   `json:"text"`
	FG     string   `json:"fg,omitempty"`
	BG     string   `json:"bg,omitempty"`
	Styles []string `json:"styles,omitempty"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
}

// HasStyle reports whether the span carries the named style attribute.
func (s ColorSpan) HasStyle(name string) bool {
	for _, st := range s.Styles {
		if st == name {
			return true
		}
	}
	return false
}

// Equivalent reports whether two spans describe the same styled text,
// ignoring position. Used by color validation, where expected spans are
// written by hand and carry no offsets.
func (s ColorSpan) Equivalent(o ColorSpan) bool {
	if s.Text != o.Text || s.FG != o.FG || s.BG != o.BG {
		return false
	}
	if len(s.Styles) != len(o.Styles) {
		return false
	}
	for _, st := range o.Styles {
		if !s.HasStyle(st) {
			return false
		}
	}
	return true
}
