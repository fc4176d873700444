package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazarus-engine/lazarus/githost"
)

type fakeHost struct {
	branch  string
	files   map[string]string
	fail    bool
	listErr error
}

func (f *fakeHost) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	if f.fail {
		return "", errors.New("host unreachable")
	}
	return f.branch, nil
}

func (f *fakeHost) ListTree(ctx context.Context, owner, repo, branch string) ([]githost.TreeEntry, error) {
	if f.fail || f.listErr != nil {
		return nil, errors.New("host unreachable")
	}
	if branch != f.branch {
		return nil, &githost.APIError{StatusCode: 404, Message: "no such branch"}
	}
	var entries []githost.TreeEntry
	for path := range f.files {
		entries = append(entries, githost.TreeEntry{Path: path, Type: "blob"})
	}
	return entries, nil
}

func (f *fakeHost) GetContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	content, ok := f.files[path]
	if !ok {
		return "", &githost.APIError{StatusCode: 404, Message: "not found"}
	}
	return content, nil
}

func TestScanPaths(t *testing.T) {
	host := &fakeHost{branch: "main", files: map[string]string{
		"server.js":    "",
		"package.json": "",
	}}
	s := New(host, nil)
	paths := s.ScanPaths(context.Background(), "https://github.com/acme/app")
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, "server.js")
}

func TestScanPathsPlaceholderOnFailure(t *testing.T) {
	s := New(&fakeHost{fail: true}, nil)
	paths := s.ScanPaths(context.Background(), "https://github.com/acme/app")
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "SCAN_UNAVAILABLE")
}

func TestScanPathsInvalidURL(t *testing.T) {
	s := New(&fakeHost{branch: "main"}, nil)
	paths := s.ScanPaths(context.Background(), "not-a-url")
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "SCAN_UNAVAILABLE")
}

func TestScanDeepDetectsStackAndEndpoints(t *testing.T) {
	host := &fakeHost{branch: "master", files: map[string]string{
		"server.js": `const express = require('express');
const mongoose = require('mongoose');
const app = express();
app.get('/api/users', handler);
app.post('/api/login', handler);`,
		"models/user.js":       "const schema = new mongoose.Schema({});",
		"public/index.html":    `<script src="jquery.min.js"></script>`,
		"node_modules/x/x.js":  "ignored",
		"image.png":            "binary",
		"views/components.ejs": "unused extension",
	}}
	s := New(host, nil)
	result := s.ScanDeep(context.Background(), "https://github.com/acme/app")

	assert.Equal(t, "master", result.Branch)
	assert.Equal(t, "express", result.TechStack.Backend.Framework)
	assert.Equal(t, "mongodb", result.TechStack.Backend.Database)
	assert.Equal(t, "jquery", result.TechStack.Frontend.Framework)
	assert.ElementsMatch(t, []string{"/api/users", "/api/login"}, result.APIEndpoints)
	assert.Contains(t, result.MustPreserve, "models/user.js")

	for _, file := range result.Files {
		assert.NotContains(t, file.Path, "node_modules")
		assert.NotEqual(t, "image.png", file.Path)
	}
}

func TestScanDeepFallsBackToDefaultBranch(t *testing.T) {
	host := &fakeHost{branch: "develop", files: map[string]string{
		"app.py": "from flask import Flask\napp = Flask(__name__)\n@app.route('/health')\ndef health(): pass",
	}}
	s := New(host, nil)
	result := s.ScanDeep(context.Background(), "https://github.com/acme/app")
	assert.Equal(t, "develop", result.Branch)
	assert.Equal(t, "flask", result.TechStack.Backend.Framework)
	assert.Contains(t, result.APIEndpoints, "/health")
}

func TestScanDeepNeverSilentlyEmpty(t *testing.T) {
	s := New(&fakeHost{fail: true}, nil)
	result := s.ScanDeep(context.Background(), "https://github.com/acme/app")
	require.NotEmpty(t, result.Files)
	assert.Equal(t, "SCAN_UNAVAILABLE", result.Files[0].Path)
	assert.NotEmpty(t, result.Files[0].Content)
}
