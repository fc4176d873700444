package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// GeneratedFile is one file produced by the code-generation stage.
type GeneratedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// FileSet is the parsed output of a code-generation call.
type FileSet struct {
	Files      []GeneratedFile `json:"files"`
	Entrypoint string          `json:"entrypoint"`
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:javascript|python|bash|json)?\n(.*?)```")

// CleanCode extracts code from a markdown fence, or returns the trimmed text
// unchanged when no fence is present.
func CleanCode(text string) string {
	if match := codeFencePattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

// ParseFileSet decodes a generation response into a FileSet. Markdown fences
// around the JSON are tolerated. A response that cannot be decoded degrades
// to a single error.log artifact carrying the raw output, so the caller
// always receives a well-formed set.
func ParseFileSet(raw string) FileSet {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var set FileSet
	if err := json.Unmarshal([]byte(cleaned), &set); err == nil && len(set.Files) > 0 {
		return set
	}

	// Some models wrap the object in prose; try the outermost braces.
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &set); err == nil && len(set.Files) > 0 {
			return set
		}
	}

	return FileSet{
		Files:      []GeneratedFile{{Filename: "error.log", Content: raw}},
		Entrypoint: "error.log",
	}
}
