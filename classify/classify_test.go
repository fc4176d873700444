package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEmptyInput(t *testing.T) {
	result := Classify("")
	assert.False(t, result.Detected)
	assert.Empty(t, result.ErrorType)
}

func TestClassifyNoMatch(t *testing.T) {
	result := Classify("server listening on port 8000\nready to accept connections")
	assert.False(t, result.Detected)
}

func TestClassifyKnownPatterns(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"backend crash marker", "FATAL: Backend failed to start\nlog tail here", "FATAL_BACKEND_CRASH"},
		{"frontend build", "FATAL: Frontend build failed\nType error in page.tsx", "FRONTEND_BUILD_ERROR"},
		{"node module", "Error: Cannot find module 'express'", "NODE_MODULE_NOT_FOUND"},
		{"python import", "ModuleNotFoundError: No module named 'fastapi'", "PYTHON_IMPORT_ERROR"},
		{"port in use", "Error: listen EADDRINUSE: address already in use :::8000", "PORT_IN_USE"},
		{"file not found", "ENOENT: no such file or directory, open 'index.js'", "FILE_NOT_FOUND"},
		{"syntax", "SyntaxError: Unexpected token '}'", "SYNTAX_ERROR"},
		{"npm", "npm ERR! code E404", "BUILD_TOOL_ERROR"},
		{"shell", "bash: pythn: command not found", "SHELL_ERROR"},
		{"permission", "EACCES: permission denied", "PERMISSION_DENIED"},
		{"mongo", "MongooseServerSelectionError: connect ECONNREFUSED", "MONGODB_CONNECTION_ERROR"},
		{"connection refused", "dial tcp: Connection refused", "CONNECTION_REFUSED"},
		{"python traceback", "Traceback (most recent call last):\n  File \"main.py\"", "BACKEND_CRASH"},
		{"empty generation", "[EMPTY_GENERATION] the model returned no files", "EMPTY_GENERATION"},
		{"sandbox", "Sandbox Error: session expired", "SANDBOX_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.output)
			require.True(t, result.Detected)
			assert.Equal(t, tt.want, result.ErrorType)
			assert.NotEmpty(t, result.Context)
		})
	}
}

// Table order decides priority, not position in the text.
func TestClassifyTableOrderWins(t *testing.T) {
	output := "npm ERR! install failed\nthen later: FATAL: Backend failed to start"
	result := Classify(output)
	require.True(t, result.Detected)
	assert.Equal(t, "FATAL_BACKEND_CRASH", result.ErrorType)

	output = "Traceback (most recent call last):\nModuleNotFoundError: No module named 'jwt'"
	result = Classify(output)
	assert.Equal(t, "PYTHON_IMPORT_ERROR", result.ErrorType)
}

func TestClassifyContextWindowIsBounded(t *testing.T) {
	padding := strings.Repeat("x", 5000)
	output := padding + "EADDRINUSE" + padding
	result := Classify(output)
	require.True(t, result.Detected)
	assert.LessOrEqual(t, len(result.Context), 2*contextWindow+len("EADDRINUSE"))
	assert.Contains(t, result.Context, "EADDRINUSE")
}

func TestRulesExposesPriorityTable(t *testing.T) {
	table := Rules()
	require.NotEmpty(t, table)
	assert.Equal(t, "FATAL_BACKEND_CRASH", table[0].ErrorType)
}
