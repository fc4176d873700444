package githost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ResurrectionBranch is the branch generated code is committed to. An open
// pull request against the default branch reuses this branch on later runs.
const ResurrectionBranch = "lazarus-resurrection"

// CommitFile is one file to commit.
type CommitFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// CommitResult reports the outcome of a commit operation. Status is either
// "success" or "error"; the result is always well-formed, commit failures are
// carried in Message rather than raised.
type CommitResult struct {
	Status  string `json:"status"`
	PRURL   string `json:"pr_url,omitempty"`
	Message string `json:"message"`
}

func commitError(format string, args ...any) CommitResult {
	return CommitResult{Status: "error", Message: fmt.Sprintf(format, args...)}
}

// Commit writes the given files to the resurrection branch, creating the
// branch from the default branch when missing, and returns a compare URL that
// opens a pull request.
func (c *Client) Commit(ctx context.Context, repoURL string, files []CommitFile) CommitResult {
	if c.token == "" {
		return commitError("GITHUB_TOKEN is missing")
	}
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return commitError("invalid GitHub URL: %v", err)
	}
	if len(files) == 0 {
		return commitError("no files to commit")
	}

	defaultBranch, err := c.DefaultBranch(ctx, owner, repo)
	if err != nil {
		return commitError("could not resolve default branch: %v", err)
	}

	if err := c.ensureBranch(ctx, owner, repo, defaultBranch); err != nil {
		return commitError("branch setup failed: %v", err)
	}

	for _, file := range files {
		if err := c.putFile(ctx, owner, repo, file); err != nil {
			return commitError("commit of %s failed: %v", file.Filename, err)
		}
	}

	return CommitResult{
		Status: "success",
		PRURL: fmt.Sprintf("https://github.com/%s/%s/compare/%s...%s?expand=1",
			owner, repo, defaultBranch, ResurrectionBranch),
		Message: fmt.Sprintf("Committed %d files to %s. Ready to merge.", len(files), ResurrectionBranch),
	}
}

func (c *Client) ensureBranch(ctx context.Context, owner, repo, defaultBranch string) error {
	refPath := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, ResurrectionBranch)
	err := c.do(ctx, http.MethodGet, refPath, nil, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return err
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	basePath := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, defaultBranch)
	if err := c.do(ctx, http.MethodGet, basePath, nil, &ref); err != nil {
		return fmt.Errorf("default branch lookup: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"ref": "refs/heads/" + ResurrectionBranch,
		"sha": ref.Object.SHA,
	})
	if err != nil {
		return err
	}
	createPath := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
	if err := c.do(ctx, http.MethodPost, createPath, bytes.NewReader(body), nil); err != nil {
		return fmt.Errorf("branch create: %w", err)
	}
	return nil
}

func (c *Client) putFile(ctx context.Context, owner, repo string, file CommitFile) error {
	// An existing file on the branch needs its blob SHA for update.
	var existing struct {
		SHA string `json:"sha"`
	}
	getPath := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, file.Filename, ResurrectionBranch)
	if err := c.do(ctx, http.MethodGet, getPath, nil, &existing); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			c.logger.Warn("existing file lookup failed", "path", file.Filename, "error", err)
		}
	}

	payload := map[string]string{
		"message": "Lazarus Resurrection: " + file.Filename,
		"content": base64.StdEncoding.EncodeToString([]byte(file.Content)),
		"branch":  ResurrectionBranch,
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	putPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, file.Filename)
	return c.do(ctx, http.MethodPut, putPath, bytes.NewReader(body), nil)
}
