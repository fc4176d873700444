// Package deps computes the minimal installable package set for a generated
// file tree by walking import statements with tree-sitter. Heuristic baseline
// packages are always included so a generated server can boot even when
// detection misses something.
package deps

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/lazarus-engine/lazarus/log"
)

// Runtime selects which import grammar and package ecosystem applies.
const (
	RuntimePython = "python"
	RuntimeNode   = "node"
)

// File is one generated source file considered for inference.
type File struct {
	Path    string
	Content string
}

// Baseline packages unioned into every result, regardless of detected
// imports. These are the minimum needed to boot a generated server.
var baselines = map[string][]string{
	RuntimePython: {"fastapi", "uvicorn", "flask", "flask-cors"},
	RuntimeNode:   {"express", "cors"},
}

// Import roots mapped to installable package names. Entries may expand to
// several packages (email validation pulls in its DNS resolver).
var pythonPackages = map[string][]string{
	"flask_cors":      {"flask-cors"},
	"jwt":             {"PyJWT"},
	"dotenv":          {"python-dotenv"},
	"PIL":             {"pillow"},
	"cv2":             {"opencv-python"},
	"sklearn":         {"scikit-learn"},
	"yaml":            {"PyYAML"},
	"bs4":             {"beautifulsoup4"},
	"email_validator": {"email-validator", "dnspython"},
	"psycopg2":        {"psycopg2-binary"},
	"sqlalchemy":      {"SQLAlchemy"},
	"multipart":       {"python-multipart"},
	"fitz":            {"PyMuPDF"},
}

var pythonStdlib = map[string]bool{
	"abc": true, "asyncio": true, "base64": true, "collections": true,
	"contextlib": true, "copy": true, "csv": true, "dataclasses": true,
	"datetime": true, "enum": true, "functools": true, "hashlib": true,
	"http": true, "io": true, "itertools": true, "json": true,
	"logging": true, "math": true, "os": true, "pathlib": true,
	"random": true, "re": true, "secrets": true, "shutil": true,
	"signal": true, "sqlite3": true, "string": true, "subprocess": true,
	"sys": true, "tempfile": true, "threading": true, "time": true,
	"typing": true, "unittest": true, "urllib": true, "uuid": true,
	"warnings": true,
}

var nodeBuiltins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "crypto": true,
	"events": true, "fs": true, "http": true, "https": true, "net": true,
	"os": true, "path": true, "querystring": true, "stream": true,
	"url": true, "util": true, "zlib": true,
}

// Infer returns the sorted package set needed to run the given files under
// the given runtime. Identical inputs always yield identical output. Files
// that fail to parse are skipped with a warning, never a fatal error.
func Infer(ctx context.Context, runtime string, files []File, logger log.Logger) []string {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	packages := map[string]bool{}
	for _, pkg := range baselines[runtime] {
		packages[pkg] = true
	}

	for _, file := range files {
		var roots []string
		var err error
		switch {
		case runtime == RuntimePython && strings.HasSuffix(file.Path, ".py"):
			roots, err = pythonImports(ctx, file.Content)
		case runtime == RuntimeNode && hasJSExtension(file.Path):
			roots, err = jsImports(ctx, file.Content)
		default:
			continue
		}
		if err != nil {
			logger.Warn("dependency parse skipped", "path", file.Path, "error", err)
			continue
		}
		for _, root := range roots {
			for _, pkg := range resolvePackage(runtime, root) {
				packages[pkg] = true
			}
		}
	}

	result := make([]string, 0, len(packages))
	for pkg := range packages {
		result = append(result, pkg)
	}
	sort.Strings(result)
	return result
}

func hasJSExtension(path string) bool {
	return strings.HasSuffix(path, ".js") ||
		strings.HasSuffix(path, ".mjs") ||
		strings.HasSuffix(path, ".cjs")
}

func resolvePackage(runtime, root string) []string {
	switch runtime {
	case RuntimePython:
		if pythonStdlib[root] {
			return nil
		}
		if mapped, ok := pythonPackages[root]; ok {
			return mapped
		}
		return []string{root}
	case RuntimeNode:
		if nodeBuiltins[root] || strings.HasPrefix(root, "node:") {
			return nil
		}
		return []string{root}
	}
	return nil
}

// pythonImports extracts top-level module roots from import and from-import
// statements, including those nested in functions or conditionals.
func pythonImports(ctx context.Context, content string) ([]string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var roots []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					roots = append(roots, rootSegment(child.Content(source)))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						roots = append(roots, rootSegment(name.Content(source)))
					}
				}
			}
		case "import_from_statement":
			if module := n.ChildByFieldName("module_name"); module != nil {
				if module.Type() == "dotted_name" {
					roots = append(roots, rootSegment(module.Content(source)))
				}
				// relative_import nodes refer to the generated tree itself
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return roots, nil
}

// jsImports extracts module names from ES import statements and require
// calls.
func jsImports(ctx context.Context, content string) ([]string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var roots []string
	record := func(module string) {
		module = strings.Trim(module, `'"`+"`")
		if module == "" || strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/") {
			return
		}
		roots = append(roots, moduleRoot(module))
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				record(src.Content(source))
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			args := n.ChildByFieldName("arguments")
			if fn != nil && args != nil && fn.Type() == "identifier" &&
				fn.Content(source) == "require" && args.NamedChildCount() > 0 {
				arg := args.NamedChild(0)
				if arg.Type() == "string" {
					record(arg.Content(source))
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return roots, nil
}

func rootSegment(dotted string) string {
	if idx := strings.Index(dotted, "."); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}

// moduleRoot keeps both segments of a scoped package and the first segment
// of everything else.
func moduleRoot(module string) string {
	parts := strings.Split(module, "/")
	if strings.HasPrefix(module, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
