// Package scanner performs best-effort analysis of a legacy repository. Its
// output biases downstream generation; it never fails hard, degrading to
// partial results with a descriptive placeholder instead.
package scanner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"

	"github.com/lazarus-engine/lazarus/githost"
	"github.com/lazarus-engine/lazarus/log"
)

// Host is the read side of the repository host API.
type Host interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	ListTree(ctx context.Context, owner, repo, branch string) ([]githost.TreeEntry, error)
	GetContent(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// File is one scanned file with decoded content.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Backend describes the detected server-side stack.
type Backend struct {
	Framework string `json:"framework"`
	Database  string `json:"database"`
}

// Frontend describes the detected client-side stack.
type Frontend struct {
	Framework string `json:"framework"`
}

// TechStack is the detected technology snapshot of a repository.
type TechStack struct {
	Backend  Backend  `json:"backend"`
	Frontend Frontend `json:"frontend"`
}

// Result is the output of a deep scan.
type Result struct {
	Files        []File    `json:"files"`
	TechStack    TechStack `json:"tech_stack"`
	MustPreserve []string  `json:"must_preserve"`
	CanModernize []string  `json:"can_modernize"`
	APIEndpoints []string  `json:"api_endpoints"`
	Branch       string    `json:"branch"`
}

// Placeholder content recorded when the host is unreachable, so a degraded
// scan is never silently empty.
const unavailablePath = "SCAN_UNAVAILABLE"

// Conventional branch names tried before asking the host.
var branchCandidates = []string{"main", "master"}

var contentExtensions = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".html": "html",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
	".yml":  "yaml",
	".yaml": "yaml",
	".sql":  "sql",
	".php":  "php",
	".rb":   "ruby",
	".txt":  "text",
}

// Important files fetched regardless of extension.
var importantNames = []glob.Glob{
	glob.MustCompile("package.json"),
	glob.MustCompile("requirements*.txt"),
	glob.MustCompile("Pipfile"),
	glob.MustCompile("Dockerfile*"),
	glob.MustCompile("docker-compose*"),
	glob.MustCompile(".env*"),
	glob.MustCompile("Procfile"),
	glob.MustCompile("Makefile"),
}

// Dependency and build output directories are never fetched.
var excludedDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/venv/**",
	"**/.next/**",
	"**/coverage/**",
}

type Scanner struct {
	host   Host
	logger log.Logger
}

func New(host Host, logger log.Logger) *Scanner {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Scanner{host: host, logger: logger}
}

// resolveTree finds a listable branch, trying conventional names first and
// the host's reported default branch last.
func (s *Scanner) resolveTree(ctx context.Context, owner, repo string) (string, []githost.TreeEntry, error) {
	var lastErr error
	for _, branch := range branchCandidates {
		entries, err := s.host.ListTree(ctx, owner, repo, branch)
		if err == nil && len(entries) > 0 {
			return branch, entries, nil
		}
		lastErr = err
	}
	branch, err := s.host.DefaultBranch(ctx, owner, repo)
	if err != nil {
		if lastErr != nil {
			return "", nil, lastErr
		}
		return "", nil, err
	}
	entries, err := s.host.ListTree(ctx, owner, repo, branch)
	if err != nil {
		return "", nil, err
	}
	return branch, entries, nil
}

// ScanPaths lists all blob paths on the repository's default branch. On any
// failure it returns a single descriptive placeholder entry and never errors.
func (s *Scanner) ScanPaths(ctx context.Context, repoURL string) []string {
	owner, repo, err := githost.ParseRepoURL(repoURL)
	if err != nil {
		return []string{placeholder(err)}
	}
	_, entries, err := s.resolveTree(ctx, owner, repo)
	if err != nil {
		s.logger.Warn("path scan failed", "repo", repoURL, "error", err)
		return []string{placeholder(err)}
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}
	return paths
}

func placeholder(err error) string {
	return fmt.Sprintf("[%s] %v", unavailablePath, err)
}

// ScanDeep fetches the content of every interesting file and derives the
// tech stack, preservation signals, and API endpoints. It never errors: on
// transport failure the result is partially populated, with a placeholder
// file entry when nothing could be listed at all.
func (s *Scanner) ScanDeep(ctx context.Context, repoURL string) *Result {
	result := &Result{}

	owner, repo, err := githost.ParseRepoURL(repoURL)
	if err != nil {
		result.Files = []File{{Path: unavailablePath, Content: err.Error(), Language: "text"}}
		return result
	}

	branch, entries, err := s.resolveTree(ctx, owner, repo)
	if err != nil {
		s.logger.Warn("deep scan degraded", "repo", repoURL, "error", err)
		result.Files = []File{{Path: unavailablePath, Content: err.Error(), Language: "text"}}
		return result
	}
	result.Branch = branch

	for _, entry := range entries {
		if !s.shouldFetch(entry.Path) {
			continue
		}
		content, err := s.host.GetContent(ctx, owner, repo, entry.Path, branch)
		if err != nil {
			s.logger.Warn("content fetch skipped", "path", entry.Path, "error", err)
			continue
		}
		file := File{
			Path:     entry.Path,
			Content:  content,
			Language: languageFor(entry.Path),
		}
		result.Files = append(result.Files, file)
		s.analyze(result, file)
	}

	if len(result.Files) == 0 {
		result.Files = []File{{
			Path:     unavailablePath,
			Content:  "no scannable files found on branch " + branch,
			Language: "text",
		}}
	}
	return result
}

func (s *Scanner) shouldFetch(filePath string) bool {
	for _, pattern := range excludedDirs {
		if ok, _ := doublestar.Match(pattern, filePath); ok {
			return false
		}
	}
	if _, ok := contentExtensions[strings.ToLower(path.Ext(filePath))]; ok {
		return true
	}
	base := path.Base(filePath)
	for _, g := range importantNames {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func languageFor(filePath string) string {
	if lang, ok := contentExtensions[strings.ToLower(path.Ext(filePath))]; ok {
		return lang
	}
	return "text"
}
