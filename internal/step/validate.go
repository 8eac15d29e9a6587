package step

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

// ValidationError reports an expectation the dispatcher cannot evaluate,
// as opposed to one that evaluated to false.
type ValidationError struct {
	Kind string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsupported validation type: %s", e.Kind)
}

// textPredicate is the resolved form of a text expectation. Loose YAML
// payloads are resolved into this exactly once, at the dispatcher
// boundary.
type textPredicate struct {
	kind  string
	value string
}

var textPredicateKinds = map[string]bool{
	"exact":       true,
	"regex":       true,
	"contains":    true,
	"starts_with": true,
	"ends_with":   true,
	"empty":       true,
	"not_empty":   true,
}

// resolveTextPredicate accepts either the string shorthand
// ("contains:Build succeeded", "regex:^ok$", "empty", plain text for
// exact equality) or the structured {type, value} map form. Unknown
// kinds fail with a ValidationError rather than silently passing.
func resolveTextPredicate(expected any) (textPredicate, error) {
	switch v := expected.(type) {
	case string:
		switch v {
		case "empty", "not_empty":
			return textPredicate{kind: v}, nil
		}
		for _, kind := range []string{"regex", "contains", "starts_with", "ends_with"} {
			if strings.HasPrefix(v, kind+":") {
				return textPredicate{kind: kind, value: v[len(kind)+1:]}, nil
			}
		}
		return textPredicate{kind: "exact", value: v}, nil
	case map[string]any:
		kind, _ := v["type"].(string)
		if !textPredicateKinds[kind] {
			return textPredicate{}, &ValidationError{Kind: kind}
		}
		value, _ := v["value"].(string)
		return textPredicate{kind: kind, value: value}, nil
	default:
		return textPredicate{}, &ValidationError{Kind: fmt.Sprintf("%T", expected)}
	}
}

// evalText applies a resolved predicate to captured text. The boolean is
// the verdict; the error marks expectations that cannot be evaluated.
func evalText(captured string, p textPredicate) (bool, error) {
	switch p.kind {
	case "exact":
		return strings.TrimSpace(captured) == strings.TrimSpace(p.value), nil
	case "regex":
		re, err := regexp.Compile("(?i)" + p.value)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", p.value, err)
		}
		return re.MatchString(captured), nil
	case "contains":
		return strings.Contains(captured, p.value), nil
	case "starts_with":
		return strings.HasPrefix(captured, p.value), nil
	case "ends_with":
		return strings.HasSuffix(captured, p.value), nil
	case "empty":
		return strings.TrimSpace(captured) == "", nil
	case "not_empty":
		return strings.TrimSpace(captured) != "", nil
	default:
		return false, &ValidationError{Kind: p.kind}
	}
}

// ValidateText resolves and applies a text expectation in one call.
func ValidateText(captured string, expected any) (bool, error) {
	p, err := resolveTextPredicate(expected)
	if err != nil {
		return false, err
	}
	return evalText(captured, p)
}

// resolveExpectedSpans converts the loose YAML form of a color
// expectation (a list of {text, fg, bg, styles} maps) into spans.
func resolveExpectedSpans(expected any) ([]terminal.ColorSpan, error) {
	list, ok := expected.([]any)
	if !ok {
		return nil, &ValidationError{Kind: fmt.Sprintf("%T", expected)}
	}
	spans := make([]terminal.ColorSpan, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &ValidationError{Kind: fmt.Sprintf("%T", entry)}
		}
		span := terminal.ColorSpan{}
		span.Text, _ = m["text"].(string)
		span.FG, _ = m["fg"].(string)
		span.BG, _ = m["bg"].(string)
		if styles, ok := m["styles"].([]any); ok {
			for _, st := range styles {
				if name, ok := st.(string); ok {
					span.Styles = append(span.Styles, name)
				}
			}
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// validateSpans requires every expected span to be present among the
// captured spans. Absence is a failed validation, not an error.
func validateSpans(captured []terminal.ColorSpan, expected []terminal.ColorSpan) (bool, string) {
	for _, want := range expected {
		found := false
		for _, got := range captured {
			if got.Equivalent(want) {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("expected span not found: %q fg=%s bg=%s styles=%v",
				want.Text, want.FG, want.BG, want.Styles)
		}
	}
	return true, ""
}
