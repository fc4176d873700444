package scanner

import (
	"regexp"
	"slices"
	"strings"
)

// Keyword heuristics are deliberately loose. The scan biases code generation,
// it does not produce a verified contract, so false positives are acceptable.

type stackSignal struct {
	keyword string
	value   string
}

var backendFrameworks = []stackSignal{
	{"fastapi", "fastapi"},
	{"from flask", "flask"},
	{"Flask(", "flask"},
	{"django", "django"},
	{"express()", "express"},
	{"require('express')", "express"},
	{`require("express")`, "express"},
	{"sinatra", "sinatra"},
	{"laravel", "laravel"},
}

var databases = []stackSignal{
	{"mongoose", "mongodb"},
	{"mongodb://", "mongodb"},
	{"pymongo", "mongodb"},
	{"psycopg2", "postgresql"},
	{"postgres://", "postgresql"},
	{"postgresql://", "postgresql"},
	{"mysql", "mysql"},
	{"sqlite", "sqlite"},
	{"sequelize", "sql"},
}

var frontendFrameworks = []stackSignal{
	{"from 'react'", "react"},
	{`from "react"`, "react"},
	{"react-dom", "react"},
	{"vue", "vue"},
	{"angular", "angular"},
	{"jquery", "jquery"},
	{"$(document)", "jquery"},
}

var preserveKeywords = []string{"model", "schema", "database", "auth", "middleware", "migration"}
var modernizeKeywords = []string{"component", "page", "view", "style", "template"}

var endpointPatterns = []*regexp.Regexp{
	// Express-style: app.get('/path', ...) and router.post("/path", ...)
	regexp.MustCompile(`(?:app|router)\.(?:get|post|put|delete|patch)\s*\(\s*['"]([^'"]+)['"]`),
	// Flask-style: @app.route('/path')
	regexp.MustCompile(`@(?:app|bp|blueprint)\.route\s*\(\s*['"]([^'"]+)['"]`),
	// FastAPI-style: @app.get("/path")
	regexp.MustCompile(`@(?:app|router)\.(?:get|post|put|delete|patch)\s*\(\s*['"]([^'"]+)['"]`),
}

func (s *Scanner) analyze(result *Result, file File) {
	lower := strings.ToLower(file.Content)
	lowerPath := strings.ToLower(file.Path)

	if result.TechStack.Backend.Framework == "" {
		for _, signal := range backendFrameworks {
			if strings.Contains(lower, strings.ToLower(signal.keyword)) {
				result.TechStack.Backend.Framework = signal.value
				break
			}
		}
	}
	if result.TechStack.Backend.Database == "" {
		for _, signal := range databases {
			if strings.Contains(lower, signal.keyword) {
				result.TechStack.Backend.Database = signal.value
				break
			}
		}
	}
	if result.TechStack.Frontend.Framework == "" {
		for _, signal := range frontendFrameworks {
			if strings.Contains(lower, strings.ToLower(signal.keyword)) {
				result.TechStack.Frontend.Framework = signal.value
				break
			}
		}
	}

	for _, keyword := range preserveKeywords {
		if strings.Contains(lowerPath, keyword) || strings.Contains(lower, keyword) {
			appendUnique(&result.MustPreserve, file.Path)
			break
		}
	}
	for _, keyword := range modernizeKeywords {
		if strings.Contains(lowerPath, keyword) {
			appendUnique(&result.CanModernize, file.Path)
			break
		}
	}

	for _, pattern := range endpointPatterns {
		for _, match := range pattern.FindAllStringSubmatch(file.Content, -1) {
			appendUnique(&result.APIEndpoints, match[1])
		}
	}
}

func appendUnique(items *[]string, value string) {
	if !slices.Contains(*items, value) {
		*items = append(*items, value)
	}
}
