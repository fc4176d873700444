package githost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	owner, repo, err := ParseRepoURL("https://github.com/acme/legacy-app")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "legacy-app", repo)

	owner, repo, err = ParseRepoURL("git@github.com/acme/thing.git")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "thing", repo)

	_, _, err = ParseRepoURL("https://gitlab.com/acme/app")
	assert.Error(t, err)
}

func TestAPIErrorRecoverable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).IsRecoverable())
	assert.True(t, (&APIError{StatusCode: 503}).IsRecoverable())
	assert.False(t, (&APIError{StatusCode: 404}).IsRecoverable())
	assert.False(t, (&APIError{StatusCode: 401}).IsRecoverable())
}

func TestDefaultBranchAndTree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/app":
			json.NewEncoder(w).Encode(map[string]string{"default_branch": "trunk"})
		case "/repos/acme/app/git/trees/trunk":
			json.NewEncoder(w).Encode(map[string]any{
				"tree": []map[string]string{
					{"path": "server.js", "type": "blob", "sha": "abc"},
					{"path": "lib", "type": "tree", "sha": "def"},
					{"path": "lib/db.js", "type": "blob", "sha": "ghi"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL))
	branch, err := client.DefaultBranch(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)

	entries, err := client.ListTree(context.Background(), "acme", "app", "trunk")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "server.js", entries[0].Path)
	assert.Equal(t, "lib/db.js", entries[1].Path)
}

func TestGetContentDecodesBase64(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("const x = 1;\n"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  content,
			"encoding": "base64",
		})
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL))
	got, err := client.GetContent(context.Background(), "acme", "app", "index.js", "main")
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;\n", got)
}

func TestCommitCreatesBranchAndFiles(t *testing.T) {
	var sawBranchCreate, sawPut bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/app" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
		case r.URL.Path == "/repos/acme/app/git/ref/heads/lazarus-resurrection":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/repos/acme/app/git/ref/heads/main":
			json.NewEncoder(w).Encode(map[string]any{"object": map[string]string{"sha": "abc123"}})
		case r.URL.Path == "/repos/acme/app/git/refs" && r.Method == http.MethodPost:
			sawBranchCreate = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("{}"))
		case r.URL.Path == "/repos/acme/app/contents/main.py" && r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/repos/acme/app/contents/main.py" && r.Method == http.MethodPut:
			sawPut = true
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "lazarus-resurrection", payload["branch"])
			assert.NotContains(t, payload, "sha")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient("testtoken", WithBaseURL(server.URL))
	result := client.Commit(context.Background(), "https://github.com/acme/app", []CommitFile{
		{Filename: "main.py", Content: "print('hi')"},
	})
	require.Equal(t, "success", result.Status, result.Message)
	assert.True(t, sawBranchCreate)
	assert.True(t, sawPut)
	assert.Contains(t, result.PRURL, "/compare/main...lazarus-resurrection")
}

func TestCommitWithoutToken(t *testing.T) {
	client := NewClient("")
	result := client.Commit(context.Background(), "https://github.com/acme/app", []CommitFile{
		{Filename: "a", Content: "b"},
	})
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "GITHUB_TOKEN")
}
