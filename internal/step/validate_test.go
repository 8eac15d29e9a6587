package step

import (
	"errors"
	"testing"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

func TestValidateTextPredicates(t *testing.T) {
	cases := []struct {
		name     string
		captured string
		expected any
		want     bool
	}{
		{"exact match", "  Build succeeded  ", "Build succeeded", true},
		{"exact mismatch", "Build failed", "Build succeeded", false},
		{"contains hit", "...\nBuild succeeded\n", "contains:Build succeeded", true},
		{"contains miss", "Build failed", "contains:Build succeeded", false},
		{"regex case-insensitive", "READY.", "regex:^ready", true},
		{"regex miss", "loading", "regex:^ready", false},
		{"starts_with", "hello world", "starts_with:hello", true},
		{"ends_with", "hello world", "ends_with:world", true},
		{"empty on blank", "   \n", "empty", true},
		{"empty on text", "x", "empty", false},
		{"not_empty", "x", "not_empty", true},
		{"structured contains", "a b c", map[string]any{"type": "contains", "value": "b"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateText(tc.captured, tc.expected)
			if err != nil {
				t.Fatalf("ValidateText: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateTextUnsupportedKind(t *testing.T) {
	_, err := ValidateText("x", map[string]any{"type": "fuzzy", "value": "x"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if vErr.Error() != "unsupported validation type: fuzzy" {
		t.Errorf("message = %q", vErr.Error())
	}
}

func TestValidateTextInvalidRegex(t *testing.T) {
	if _, err := ValidateText("x", "regex:("); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestValidateSpansPresence(t *testing.T) {
	captured := []terminal.ColorSpan{
		{Text: "ERROR", FG: "red", Start: 0, End: 5},
		{Text: "ok", FG: "green", Styles: []string{"bold"}, Start: 10, End: 12},
	}

	ok, _ := validateSpans(captured, []terminal.ColorSpan{{Text: "ERROR", FG: "red"}})
	if !ok {
		t.Error("expected red ERROR span to be found")
	}

	ok, detail := validateSpans(captured, []terminal.ColorSpan{{Text: "ERROR", FG: "blue"}})
	if ok {
		t.Error("blue ERROR span should be absent")
	}
	if detail == "" {
		t.Error("missing span detail")
	}

	// Styles must match as a set.
	ok, _ = validateSpans(captured, []terminal.ColorSpan{{Text: "ok", FG: "green", Styles: []string{"bold"}}})
	if !ok {
		t.Error("bold green span should be found")
	}
}

func TestResolveExpectedSpans(t *testing.T) {
	spans, err := resolveExpectedSpans([]any{
		map[string]any{"text": "hi", "fg": "red", "styles": []any{"bold"}},
	})
	if err != nil {
		t.Fatalf("resolveExpectedSpans: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "hi" || spans[0].FG != "red" || !spans[0].HasStyle("bold") {
		t.Errorf("spans = %+v", spans)
	}

	if _, err := resolveExpectedSpans("not a list"); err == nil {
		t.Error("expected error for non-list expectation")
	}
}
