// Package issue files GitHub issues for triaged failures through the
// REST v3 API.
package issue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/triage"
)

const defaultBaseURL = "https://api.github.com"

// Config identifies the repository and credentials.
type Config struct {
	// BaseURL overrides the API endpoint, for GitHub Enterprise and tests.
	BaseURL string
	// Repo is "owner/name".
	Repo  string
	Token string
}

// Issue is the subset of the API response the framework needs.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.Repo == "" || !strings.Contains(cfg.Repo, "/") {
		return nil, fmt.Errorf("issue: repo must be owner/name, got %q", cfg.Repo)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, log: logger.With("component", "issue")}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Create opens a new issue and returns it.
func (c *Client) Create(ctx context.Context, title, body string, labels []string) (Issue, error) {
	var created Issue
	err := c.do(ctx, http.MethodPost, "/repos/"+c.cfg.Repo+"/issues", map[string]any{
		"title":  title,
		"body":   body,
		"labels": labels,
	}, &created)
	if err != nil {
		return Issue{}, err
	}
	c.log.Info("issue created", "number", created.Number, "title", title)
	return created, nil
}

// ListOpen returns open issues carrying the given label.
func (c *Client) ListOpen(ctx context.Context, label string) ([]Issue, error) {
	var issues []Issue
	path := fmt.Sprintf("/repos/%s/issues?state=open&labels=%s&per_page=100", c.cfg.Repo, label)
	if err := c.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// FileFindings creates one issue per finding, skipping findings whose
// signature already appears in an open issue body. Returns the issues
// it created.
func (c *Client) FileFindings(ctx context.Context, findings []triage.Finding) ([]Issue, error) {
	open, err := c.ListOpen(ctx, "automated-test")
	if err != nil {
		return nil, fmt.Errorf("list open issues: %w", err)
	}

	var created []Issue
	for _, f := range findings {
		if existing, ok := findBySignature(open, f.Signature); ok {
			c.log.Info("issue already filed", "signature", f.Signature, "number", existing.Number)
			continue
		}
		issue, err := c.Create(ctx, f.Title(), f.Body(), f.Labels())
		if err != nil {
			return created, fmt.Errorf("file finding %s: %w", f.Signature, err)
		}
		created = append(created, issue)
	}
	return created, nil
}

func findBySignature(issues []Issue, signature string) (Issue, bool) {
	for _, is := range issues {
		if strings.Contains(is.Body, signature) {
			return is, true
		}
	}
	return Issue{}, false
}
