// Package githost is the narrow client for the source repository host. It
// covers exactly what resurrection needs: reading a repository's tree and
// blobs, and committing a generated file set back as a pull-request branch.
package githost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lazarus-engine/lazarus/log"
)

const DefaultBaseURL = "https://api.github.com"

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/.\s]+)`)

// ParseRepoURL extracts the owner and repository name from a GitHub URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	match := repoURLPattern.FindStringSubmatch(repoURL)
	if match == nil {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %q", repoURL)
	}
	return match[1], match[2], nil
}

// APIError is a host API failure carrying the HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.StatusCode, e.Message)
}

// IsRecoverable reports whether the request may succeed on retry.
func (e *APIError) IsRecoverable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusInternalServerError ||
		e.StatusCode == http.StatusBadGateway ||
		e.StatusCode == http.StatusServiceUnavailable ||
		e.StatusCode == http.StatusGatewayTimeout
}

// TreeEntry is one node of a repository tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// Client talks to the GitHub REST API v3.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the client logger.
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a GitHub client. An empty token means unauthenticated
// read-only access; commits require a token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github response read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("github response decode failed: %w", err)
		}
	}
	return nil
}

// DefaultBranch returns the repository's configured default branch.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &info); err != nil {
		return "", err
	}
	if info.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, repo)
	}
	return info.DefaultBranch, nil
}

// ListTree returns all blob entries of the given branch, recursively.
func (c *Client) ListTree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error) {
	var tree struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, branch)
	if err := c.do(ctx, http.MethodGet, path, nil, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		c.logger.Warn("tree listing truncated by host", "repo", owner+"/"+repo, "branch", branch)
	}
	var blobs []TreeEntry
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			blobs = append(blobs, entry)
		}
	}
	return blobs, nil
}

// GetContent fetches and decodes one file's content at the given ref.
func (c *Client) GetContent(ctx context.Context, owner, repo, filePath, ref string) (string, error) {
	var content struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	path := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, filePath, ref)
	if err := c.do(ctx, http.MethodGet, path, nil, &content); err != nil {
		return "", err
	}
	if content.Encoding != "base64" {
		return content.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filePath, err)
	}
	return string(decoded), nil
}
