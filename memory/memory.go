// Package memory stores durable per-repository resurrection history. Past
// failures, successes, and dependency pain points are rendered into a context
// block that is injected into future planning and generation prompts.
package memory

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Bounds on the durable lists. Oldest entries are dropped first.
const (
	maxFailures  = 10
	maxPatterns  = 15
	maxDecisions = 20
	maxHistory   = 10

	maxMessageLen = 500
	maxContextLen = 300
)

// RepoID derives a stable identity from a repository URL. URLs differing only
// by case or a trailing slash map to the same identity.
func RepoID(repoURL string) string {
	normalized := strings.TrimRight(strings.TrimSpace(strings.ToLower(repoURL)), "/")
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// TechStack is the last-seen technology snapshot for a repository.
type TechStack struct {
	DetectedBackend        string `json:"detected_backend,omitempty"`
	DetectedFrontend       string `json:"detected_frontend,omitempty"`
	DetectedDatabase       string `json:"detected_database,omitempty"`
	PreferredModernization string `json:"preferred_modernization,omitempty"`
}

// Failure records one failed resurrection attempt and what it taught us.
type Failure struct {
	Timestamp     time.Time `json:"timestamp"`
	ErrorType     string    `json:"error_type"`
	ErrorMessage  string    `json:"error_message"`
	Context       string    `json:"context,omitempty"`
	LessonLearned string    `json:"lesson_learned"`
}

// Decision records a technology choice and how it turned out.
type Decision struct {
	Timestamp time.Time `json:"timestamp"`
	Decision  string    `json:"decision"`
	Reasoning string    `json:"reasoning,omitempty"`
	Outcome   string    `json:"outcome"`
}

// DependencyIssue records a package that caused trouble during deployment.
type DependencyIssue struct {
	Package   string    `json:"package"`
	Issue     string    `json:"issue"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry summarizes one completed resurrection.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Decisions []string  `json:"decisions"`
}

// Record is the durable memory for one repository identity.
type Record struct {
	RepoURL            string            `json:"repo_url"`
	RepoID             string            `json:"repo_id"`
	CreatedAt          time.Time         `json:"created_at"`
	LastResurrection   *time.Time        `json:"last_resurrection"`
	TotalAttempts      int               `json:"total_attempts"`
	SuccessfulAttempts int               `json:"successful_attempts"`
	FailedAttempts     int               `json:"failed_attempts"`
	TechStack          TechStack         `json:"tech_stack"`
	Decisions          []Decision        `json:"decisions"`
	Failures           []Failure         `json:"failures"`
	DependencyIssues   []DependencyIssue `json:"dependency_issues"`
	SuccessfulPatterns []string          `json:"successful_patterns"`
	History            []HistoryEntry    `json:"resurrection_history"`
}

func newRecord(repoURL string) *Record {
	return &Record{
		RepoURL:            repoURL,
		RepoID:             RepoID(repoURL),
		CreatedAt:          time.Now().UTC(),
		Decisions:          []Decision{},
		Failures:           []Failure{},
		DependencyIssues:   []DependencyIssue{},
		SuccessfulPatterns: []string{},
		History:            []HistoryEntry{},
	}
}

// Summary is a compact view of a record for API responses.
type Summary struct {
	TotalAttempts      int        `json:"total_attempts"`
	SuccessfulAttempts int        `json:"successful_attempts"`
	FailedAttempts     int        `json:"failed_attempts"`
	LastResurrection   *time.Time `json:"last_resurrection"`
	HasPastFailures    bool       `json:"has_past_failures"`
	HasLearnedPatterns bool       `json:"has_learned_patterns"`
}

// lesson pairs an error-type key with the advice recorded alongside a
// failure. Matching is by substring on the error type, in table order.
type lesson struct {
	key  string
	text string
}

var lessons = []lesson{
	{"NODE_MODULE_NOT_FOUND", "Ensure npm install runs in the correct directory where dependencies are expected."},
	{"FRONTEND_BUILD_ERROR", "Check for TypeScript errors and missing dependencies before building."},
	{"NODE_CRASH", "Verify all required modules are installed and paths are correct."},
	{"MONGODB_CONNECTION_ERROR", "MongoDB connection string may need updating or the database server may be unreachable."},
	{"SYNTAX_ERROR", "Code has syntax issues - review generated code for typos."},
	{"PORT_IN_USE", "The port is already in use - try a different port."},
	{"FILE_NOT_FOUND", "A required file is missing - check file paths."},
	{"PYTHON_IMPORT_ERROR", "Python module not installed - add to requirements.txt."},
	{"BACKEND_CRASH", "Server crashed on startup - check logs for details."},
}

const genericLesson = "Review the error and adjust the approach accordingly."

// LessonFor returns the lesson associated with an error type, falling back to
// generic advice when no key matches.
func LessonFor(errorType string) string {
	for _, l := range lessons {
		if strings.Contains(errorType, l.key) {
			return l.text
		}
	}
	return genericLesson
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
