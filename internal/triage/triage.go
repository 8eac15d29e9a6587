// Package triage classifies failed step results into failure
// categories, folds duplicates together by signature, and renders the
// markdown bodies used when filing issues.
package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

// Category is a coarse failure class used for labeling and dedup.
type Category string

const (
	CategoryTimeout    Category = "timeout"
	CategorySpawn      Category = "spawn"
	CategoryValidation Category = "validation"
	CategoryMenu       Category = "menu"
	CategoryConnection Category = "connection"
	CategoryUnknown    Category = "unknown"
)

// rules are checked in order; the first match wins. Timeout outranks
// the others because timeouts surface through every action's error.
var rules = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategoryTimeout, regexp.MustCompile(`timed out|deadline exceeded|did not stabilize|no message matching`)},
	{CategorySpawn, regexp.MustCompile(`failed to spawn|executable file not found|no such file or directory|empty command line`)},
	{CategoryMenu, regexp.MustCompile(`menu item .* not found|empty path`)},
	{CategoryValidation, regexp.MustCompile(`validation failed|unsupported validation type|color span|unexpected status|status \d+, expected`)},
	{CategoryConnection, regexp.MustCompile(`connection refused|connection closed|no connection to|dial|websocket`)},
}

// Classify maps one failure message to a category.
func Classify(message string) Category {
	for _, r := range rules {
		if r.pattern.MatchString(message) {
			return r.category
		}
	}
	return CategoryUnknown
}

// Finding is one deduplicated failure: a category, a stable signature,
// and every occurrence that folded into it.
type Finding struct {
	Category    Category
	Signature   string
	Occurrences []Occurrence
}

// Occurrence ties a failed step result back to its scenario.
type Occurrence struct {
	Scenario string
	Result   step.Result
}

// Signature produces a stable dedup key for a failure. Volatile parts
// of the message (session ids, durations) are normalized out first.
func Signature(scenario string, res step.Result) string {
	normalized := normalize(res.Error)
	h := sha256.Sum256([]byte(scenario + "\x00" + res.Action + "\x00" + res.Step + "\x00" + normalized))
	return hex.EncodeToString(h[:8])
}

var (
	sessionIDPattern = regexp.MustCompile(`tui_\d+_[a-z0-9]+`)
	durationPattern  = regexp.MustCompile(`after [0-9.]+[a-zµ]+`)
)

func normalize(message string) string {
	s := sessionIDPattern.ReplaceAllString(message, "<session>")
	s = durationPattern.ReplaceAllString(s, "after <duration>")
	return s
}

// Triage groups failures by signature. Findings come back ordered by
// occurrence count, most frequent first.
func Triage(occurrences []Occurrence) []Finding {
	bySignature := make(map[string]*Finding)
	var order []string
	for _, occ := range occurrences {
		if occ.Result.Status != step.StatusFailed {
			continue
		}
		sig := Signature(occ.Scenario, occ.Result)
		f, ok := bySignature[sig]
		if !ok {
			f = &Finding{
				Category:  Classify(occ.Result.Error),
				Signature: sig,
			}
			bySignature[sig] = f
			order = append(order, sig)
		}
		f.Occurrences = append(f.Occurrences, occ)
	}

	findings := make([]Finding, 0, len(order))
	for _, sig := range order {
		findings = append(findings, *bySignature[sig])
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Occurrences) > len(findings[j].Occurrences)
	})
	return findings
}

// Title renders a one-line issue title for a finding.
func (f Finding) Title() string {
	first := f.Occurrences[0]
	return fmt.Sprintf("[%s] %s: step %q failed", f.Category, first.Scenario, first.Result.Step)
}

// Body renders the markdown issue body for a finding.
func (f Finding) Body() string {
	first := f.Occurrences[0]
	var b strings.Builder
	fmt.Fprintf(&b, "## Automated test failure\n\n")
	fmt.Fprintf(&b, "- **Scenario:** %s\n", first.Scenario)
	fmt.Fprintf(&b, "- **Step:** %s\n", first.Result.Step)
	fmt.Fprintf(&b, "- **Action:** `%s`\n", first.Result.Action)
	fmt.Fprintf(&b, "- **Category:** %s\n", f.Category)
	fmt.Fprintf(&b, "- **Occurrences:** %d\n", len(f.Occurrences))
	fmt.Fprintf(&b, "- **Signature:** `%s`\n\n", f.Signature)
	fmt.Fprintf(&b, "### Error\n\n```\n%s\n```\n", first.Result.Error)
	if out := strings.TrimSpace(first.Result.Output); out != "" {
		fmt.Fprintf(&b, "\n### Captured output\n\n```\n%s\n```\n", out)
	}
	return b.String()
}

// Labels returns the issue labels for a finding.
func (f Finding) Labels() []string {
	return []string{"automated-test", string(f.Category)}
}
