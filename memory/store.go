package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/lazarus-engine/lazarus/log"
)

// Store persists one JSON record per repository identity under a single
// directory. All read-modify-write cycles for the same identity are
// serialized by a per-identity mutex, so concurrent resurrections of the same
// repository cannot lose updates.
type Store struct {
	dir    string
	logger log.Logger

	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore returns a Store rooted at dir. The directory is created lazily on
// first save.
func NewStore(dir string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  map[string]*sync.Mutex{},
	}
}

func (s *Store) lockFor(repoID string) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	lock, ok := s.locks[repoID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[repoID] = lock
	}
	return lock
}

func (s *Store) path(repoURL string) string {
	return filepath.Join(s.dir, RepoID(repoURL)+"_memory.json")
}

// Load returns the record for a repository, or a default-initialized record
// when none exists. Corrupt storage degrades to a fresh record with a
// warning; Load never fails.
func (s *Store) Load(repoURL string) *Record {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()
	return s.load(repoURL)
}

func (s *Store) load(repoURL string) *Record {
	data, err := os.ReadFile(s.path(repoURL))
	if err != nil {
		return newRecord(repoURL)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("memory record corrupt, starting fresh",
			"repo_id", RepoID(repoURL), "error", err)
		return newRecord(repoURL)
	}
	return &record
}

func (s *Store) save(repoURL string, record *Record) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("memory dir create failed", "dir", s.dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		s.logger.Error("memory encode failed", "repo_id", record.RepoID, "error", err)
		return
	}
	if err := os.WriteFile(s.path(repoURL), data, 0o644); err != nil {
		s.logger.Error("memory save failed", "repo_id", record.RepoID, "error", err)
	}
}

// RecordAttemptStart increments the attempt counter, stamps the attempt time,
// and optionally refreshes the tech-stack snapshot. The updated record is
// persisted and returned.
func (s *Store) RecordAttemptStart(repoURL string, stack *TechStack) *Record {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	record.TotalAttempts++
	now := time.Now().UTC()
	record.LastResurrection = &now
	if stack != nil {
		if stack.DetectedBackend != "" {
			record.TechStack.DetectedBackend = stack.DetectedBackend
		}
		if stack.DetectedFrontend != "" {
			record.TechStack.DetectedFrontend = stack.DetectedFrontend
		}
		if stack.DetectedDatabase != "" {
			record.TechStack.DetectedDatabase = stack.DetectedDatabase
		}
	}
	s.save(repoURL, record)
	return record
}

// UpdateTechStack overwrites the non-empty fields of the stack snapshot and
// persists. Used once the deep scan has produced fresh detections.
func (s *Store) UpdateTechStack(repoURL string, stack *TechStack) {
	if stack == nil {
		return
	}
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	if stack.DetectedBackend != "" {
		record.TechStack.DetectedBackend = stack.DetectedBackend
	}
	if stack.DetectedFrontend != "" {
		record.TechStack.DetectedFrontend = stack.DetectedFrontend
	}
	if stack.DetectedDatabase != "" {
		record.TechStack.DetectedDatabase = stack.DetectedDatabase
	}
	if stack.PreferredModernization != "" {
		record.TechStack.PreferredModernization = stack.PreferredModernization
	}
	s.save(repoURL, record)
}

// RecordFailure appends a failure with its derived lesson and persists.
func (s *Store) RecordFailure(repoURL, errorType, message, context string) {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	record.FailedAttempts++
	record.Failures = append(record.Failures, Failure{
		Timestamp:     time.Now().UTC(),
		ErrorType:     errorType,
		ErrorMessage:  truncate(message, maxMessageLen),
		Context:       truncate(context, maxContextLen),
		LessonLearned: LessonFor(errorType),
	})
	if len(record.Failures) > maxFailures {
		record.Failures = record.Failures[len(record.Failures)-maxFailures:]
	}
	s.save(repoURL, record)
}

// RecordSuccess appends decisions (outcome success), merges patterns without
// duplicates, appends a history entry, and persists.
func (s *Store) RecordSuccess(repoURL string, decisions, patternsUsed []string) {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	record.SuccessfulAttempts++
	now := time.Now().UTC()
	for _, decision := range decisions {
		record.Decisions = append(record.Decisions, Decision{
			Timestamp: now,
			Decision:  decision,
			Outcome:   "success",
		})
	}
	if len(record.Decisions) > maxDecisions {
		record.Decisions = record.Decisions[len(record.Decisions)-maxDecisions:]
	}
	for _, pattern := range patternsUsed {
		if !slices.Contains(record.SuccessfulPatterns, pattern) {
			record.SuccessfulPatterns = append(record.SuccessfulPatterns, pattern)
		}
	}
	if len(record.SuccessfulPatterns) > maxPatterns {
		record.SuccessfulPatterns = record.SuccessfulPatterns[len(record.SuccessfulPatterns)-maxPatterns:]
	}
	record.History = append(record.History, HistoryEntry{
		Timestamp: now,
		Outcome:   "success",
		Decisions: decisions,
	})
	if len(record.History) > maxHistory {
		record.History = record.History[len(record.History)-maxHistory:]
	}
	s.save(repoURL, record)
}

// RecordDependencyIssue notes a troublesome package, keyed by package name.
func (s *Store) RecordDependencyIssue(repoURL, pkg, issue string) {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	for _, existing := range record.DependencyIssues {
		if existing.Package == pkg {
			s.save(repoURL, record)
			return
		}
	}
	record.DependencyIssues = append(record.DependencyIssues, DependencyIssue{
		Package:   pkg,
		Issue:     issue,
		Timestamp: time.Now().UTC(),
	})
	s.save(repoURL, record)
}

// RecordDecision records a pending tech decision made mid-resurrection.
func (s *Store) RecordDecision(repoURL, decision, reasoning string) {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	record := s.load(repoURL)
	record.Decisions = append(record.Decisions, Decision{
		Timestamp: time.Now().UTC(),
		Decision:  decision,
		Reasoning: reasoning,
		Outcome:   "pending",
	})
	s.save(repoURL, record)
}

// Summarize returns a compact view for API responses.
func (s *Store) Summarize(repoURL string) Summary {
	record := s.Load(repoURL)
	return Summary{
		TotalAttempts:      record.TotalAttempts,
		SuccessfulAttempts: record.SuccessfulAttempts,
		FailedAttempts:     record.FailedAttempts,
		LastResurrection:   record.LastResurrection,
		HasPastFailures:    len(record.Failures) > 0,
		HasLearnedPatterns: len(record.SuccessfulPatterns) > 0,
	}
}

// Clear removes the record for a repository. Records are never removed
// automatically; this exists for explicit resets.
func (s *Store) Clear(repoURL string) error {
	lock := s.lockFor(RepoID(repoURL))
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(repoURL))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}
