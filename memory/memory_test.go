package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), nil)
}

func TestRepoIDNormalization(t *testing.T) {
	base := RepoID("https://github.com/acme/legacy-app")
	assert.Equal(t, base, RepoID("https://github.com/ACME/Legacy-App"))
	assert.Equal(t, base, RepoID("https://github.com/acme/legacy-app/"))
	assert.Equal(t, base, RepoID("  https://github.com/acme/legacy-app  "))
	assert.NotEqual(t, base, RepoID("https://github.com/acme/other-app"))
	assert.Len(t, base, 16)
}

func TestLoadReturnsFreshRecord(t *testing.T) {
	store := newTestStore(t)
	record := store.Load("https://github.com/acme/app")
	require.NotNil(t, record)
	assert.Equal(t, 0, record.TotalAttempts)
	assert.Equal(t, RepoID("https://github.com/acme/app"), record.RepoID)
}

func TestLoadDegradesOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	repoURL := "https://github.com/acme/app"

	path := filepath.Join(dir, RepoID(repoURL)+"_memory.json")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	record := store.Load(repoURL)
	require.NotNil(t, record)
	assert.Equal(t, 0, record.TotalAttempts)
}

func TestRecordAttemptStart(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	record := store.RecordAttemptStart(repoURL, &TechStack{
		DetectedBackend:  "flask",
		DetectedDatabase: "mongodb",
	})
	assert.Equal(t, 1, record.TotalAttempts)
	assert.NotNil(t, record.LastResurrection)
	assert.Equal(t, "flask", record.TechStack.DetectedBackend)

	// Empty fields must not clobber the stored snapshot.
	record = store.RecordAttemptStart(repoURL, &TechStack{DetectedFrontend: "react"})
	assert.Equal(t, 2, record.TotalAttempts)
	assert.Equal(t, "flask", record.TechStack.DetectedBackend)
	assert.Equal(t, "react", record.TechStack.DetectedFrontend)
}

func TestRecordFailureDerivesLessonAndBounds(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	for i := 0; i < 13; i++ {
		store.RecordFailure(repoURL, "NODE_MODULE_NOT_FOUND", fmt.Sprintf("failure %d", i), "ctx")
	}
	record := store.Load(repoURL)
	assert.Equal(t, 13, record.FailedAttempts)
	require.Len(t, record.Failures, 10)
	assert.Equal(t, "failure 12", record.Failures[9].ErrorMessage)
	assert.Equal(t,
		"Ensure npm install runs in the correct directory where dependencies are expected.",
		record.Failures[9].LessonLearned)
}

func TestLessonFallback(t *testing.T) {
	assert.Equal(t, genericLesson, LessonFor("SOMETHING_NOVEL"))
	// Substring match against the error type.
	assert.NotEqual(t, genericLesson, LessonFor("FATAL_BACKEND_CRASH"))
}

func TestRecordSuccessMergesPatterns(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	store.RecordSuccess(repoURL, []string{"fastapi backend"}, []string{"python", "uvicorn"})
	store.RecordSuccess(repoURL, []string{"kept api contract"}, []string{"python"})

	record := store.Load(repoURL)
	assert.Equal(t, 2, record.SuccessfulAttempts)
	assert.Equal(t, []string{"python", "uvicorn"}, record.SuccessfulPatterns)
	require.Len(t, record.Decisions, 2)
	assert.Equal(t, "success", record.Decisions[0].Outcome)
	assert.Len(t, record.History, 2)
}

func TestRecordDependencyIssueDeduplicates(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	store.RecordDependencyIssue(repoURL, "bcrypt", "needs native build tools")
	store.RecordDependencyIssue(repoURL, "bcrypt", "still broken")
	record := store.Load(repoURL)
	require.Len(t, record.DependencyIssues, 1)
	assert.Equal(t, "needs native build tools", record.DependencyIssues[0].Issue)
}

func TestRenderContext(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	// No attempts yet: context must be empty.
	assert.Empty(t, store.RenderContext(repoURL))

	store.RecordAttemptStart(repoURL, nil)
	context := store.RenderContext(repoURL)
	assert.Contains(t, context, "Total Attempts: 1")

	store.RecordFailure(repoURL, "NODE_MODULE_NOT_FOUND", "Cannot find module 'express'", "")
	context = store.RenderContext(repoURL)
	assert.Contains(t, context, "NODE_MODULE_NOT_FOUND")
	assert.Contains(t, context,
		"Ensure npm install runs in the correct directory where dependencies are expected.")

	store.RecordSuccess(repoURL, []string{"express backend"}, []string{"node"})
	context = store.RenderContext(repoURL)
	assert.Contains(t, context, "SUCCESSFUL PATTERNS")
	assert.Contains(t, context, "node")
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	store.RecordAttemptStart(repoURL, nil)
	require.NoError(t, store.Clear(repoURL))
	assert.Equal(t, 0, store.Load(repoURL).TotalAttempts)
	// Clearing a missing record is not an error.
	require.NoError(t, store.Clear(repoURL))
}

func TestConcurrentWritesSameRepo(t *testing.T) {
	store := newTestStore(t)
	repoURL := "https://github.com/acme/app"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RecordAttemptStart(repoURL, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, store.Load(repoURL).TotalAttempts)
}
