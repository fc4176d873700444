// Package classify labels sandbox execution output with a failure taxonomy.
// It only labels; retry and abort decisions belong to the engine.
package classify

import "strings"

// Result describes the first failure pattern found in a block of output.
type Result struct {
	Detected  bool   `json:"detected"`
	ErrorType string `json:"error_type"`
	Context   string `json:"context"`
}

// Rule pairs an error tag with the substrings that indicate it. Rules are
// evaluated in table order: the table is a priority list, with specific and
// fatal conditions ahead of generic ones.
type Rule struct {
	ErrorType string
	Patterns  []string
}

// contextWindow is the number of characters captured on each side of a match.
const contextWindow = 240

var rules = []Rule{
	{ErrorType: "FATAL_BACKEND_CRASH", Patterns: []string{
		"FATAL: Backend failed to start",
	}},
	{ErrorType: "FRONTEND_BUILD_ERROR", Patterns: []string{
		"FATAL: Frontend build failed",
		"Failed to compile",
	}},
	{ErrorType: "MONGODB_CONNECTION_ERROR", Patterns: []string{
		"MongoNetworkError",
		"MongooseServerSelectionError",
		"ECONNREFUSED 127.0.0.1:27017",
	}},
	{ErrorType: "NODE_MODULE_NOT_FOUND", Patterns: []string{
		"Cannot find module",
		"MODULE_NOT_FOUND",
	}},
	{ErrorType: "PYTHON_IMPORT_ERROR", Patterns: []string{
		"ModuleNotFoundError",
		"ImportError:",
	}},
	{ErrorType: "PORT_IN_USE", Patterns: []string{
		"EADDRINUSE",
		"Address already in use",
		"address already in use",
	}},
	{ErrorType: "PERMISSION_DENIED", Patterns: []string{
		"EACCES",
		"Permission denied",
	}},
	{ErrorType: "FILE_NOT_FOUND", Patterns: []string{
		"ENOENT",
		"No such file or directory",
		"FileNotFoundError",
	}},
	{ErrorType: "SYNTAX_ERROR", Patterns: []string{
		"SyntaxError",
		"Unexpected token",
	}},
	{ErrorType: "PYTHON_TYPE_ERROR", Patterns: []string{
		"TypeError:",
	}},
	{ErrorType: "PYTHON_NAME_ERROR", Patterns: []string{
		"NameError:",
	}},
	{ErrorType: "BUILD_TOOL_ERROR", Patterns: []string{
		"npm ERR!",
		"yarn error",
	}},
	{ErrorType: "SHELL_ERROR", Patterns: []string{
		"command not found",
		"is not recognized as an internal or external command",
	}},
	{ErrorType: "CONNECTION_REFUSED", Patterns: []string{
		"ECONNREFUSED",
		"Connection refused",
	}},
	{ErrorType: "NODE_CRASH", Patterns: []string{
		"UnhandledPromiseRejection",
		"node:internal/",
		"throw er;",
	}},
	{ErrorType: "BACKEND_CRASH", Patterns: []string{
		"Traceback (most recent call last)",
	}},
	{ErrorType: "EMPTY_GENERATION", Patterns: []string{
		"[EMPTY_GENERATION]",
	}},
	{ErrorType: "SANDBOX_ERROR", Patterns: []string{
		"Sandbox Error",
	}},
}

// Rules returns a copy of the priority table, first match wins.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Classify tests output against the rule table and returns the first match
// in table order, along with a bounded window of surrounding text.
func Classify(output string) Result {
	if output == "" {
		return Result{}
	}
	for _, rule := range rules {
		for _, pattern := range rule.Patterns {
			idx := strings.Index(output, pattern)
			if idx < 0 {
				continue
			}
			return Result{
				Detected:  true,
				ErrorType: rule.ErrorType,
				Context:   window(output, idx, len(pattern)),
			}
		}
	}
	return Result{}
}

func window(s string, idx, matchLen int) string {
	start := idx - contextWindow
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + contextWindow
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
