// Package lazarus drives the resurrection pipeline: scan a legacy
// repository, plan and generate a modern replacement with an LLM, deploy it
// into a sandbox, classify failures, and retry with accumulated error
// context until the deployment is healthy or the retry ceiling is reached.
package lazarus

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/lazarus-engine/lazarus/classify"
	"github.com/lazarus-engine/lazarus/deps"
	"github.com/lazarus-engine/lazarus/llm"
	"github.com/lazarus-engine/lazarus/log"
	"github.com/lazarus-engine/lazarus/memory"
	"github.com/lazarus-engine/lazarus/sandbox"
	"github.com/lazarus-engine/lazarus/scanner"
)

// Status is the terminal classification of a run.
type Status string

const (
	StatusResurrected Status = "Resurrected"
	StatusFallback    Status = "Fallback"
)

// MaxRetries is the number of regeneration attempts beyond the first, so a
// run makes at most MaxRetries+1 generate-deploy cycles.
const MaxRetries = 3

// ErrorTypeException tags failures raised by the pipeline itself rather than
// classified from sandbox output: generation returning no usable files, LLM
// transport errors, or a panic inside a loop iteration.
const ErrorTypeException = "EXCEPTION"

const (
	defaultErrorContextEntries = 10
	defaultErrorContextChars   = 6000

	defaultEntrypoint = "modernized_stack/backend/main.py"
	planErrorSentinel = "[ERROR]"
)

var (
	previewURLPattern = regexp.MustCompile(`\[PREVIEW_URL\]\s*(\S+)`)
	backendURLPattern = regexp.MustCompile(`\[BACKEND_URL\]\s*(\S+)`)

	missingModulePatterns = []*regexp.Regexp{
		regexp.MustCompile(`No module named '([^']+)'`),
		regexp.MustCompile(`Cannot find module '([^']+)'`),
	}
)

// RepoScanner is the slice of the scanner the engine needs.
type RepoScanner interface {
	ScanDeep(ctx context.Context, repoURL string) *scanner.Result
}

// Deployer is the slice of the sandbox driver the engine needs.
type Deployer interface {
	Deploy(ctx context.Context, plan sandbox.Plan) string
}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	Client  llm.Client
	Scanner RepoScanner
	Memory  *memory.Store
	Driver  Deployer
	Logger  log.Logger

	// MaxRetries overrides the regeneration ceiling when positive.
	MaxRetries int

	// ErrorContextEntries and ErrorContextChars bound the accumulated
	// error block injected into regeneration prompts.
	ErrorContextEntries int
	ErrorContextChars   int
}

// Engine runs resurrections. Create one engine per in-flight run if the
// underlying Deployer holds a single sandbox session.
type Engine struct {
	client              llm.Client
	scanner             RepoScanner
	memory              *memory.Store
	driver              Deployer
	logger              log.Logger
	maxRetries          int
	errorContextEntries int
	errorContextChars   int
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if opts.Memory == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("sandbox driver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNullLogger()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	entries := opts.ErrorContextEntries
	if entries <= 0 {
		entries = defaultErrorContextEntries
	}
	chars := opts.ErrorContextChars
	if chars <= 0 {
		chars = defaultErrorContextChars
	}
	return &Engine{
		client:              opts.Client,
		scanner:             opts.Scanner,
		memory:              opts.Memory,
		driver:              opts.Driver,
		logger:              logger,
		maxRetries:          maxRetries,
		errorContextEntries: entries,
		errorContextChars:   chars,
	}, nil
}

// Run starts a resurrection and returns its event stream. The stream emits
// log and debug events as stages complete and always terminates with exactly
// one result event, whatever happens inside the pipeline.
func (e *Engine) Run(ctx context.Context, repoURL, instructions string) *RunStream {
	stream, pub := newRunStream()
	go func() {
		defer pub.Close()
		result := e.resurrect(ctx, repoURL, instructions, pub)
		pub.Send(ctx, &Event{Type: EventTypeResult, Data: result})
	}()
	return stream
}

// emitter accumulates the log transcript while forwarding events.
type emitter struct {
	pub  *publisher
	logs []string
}

func (em *emitter) log(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	em.logs = append(em.logs, msg)
	em.pub.Send(ctx, &Event{Type: EventTypeLog, Content: msg})
}

func (em *emitter) debug(ctx context.Context, format string, args ...any) {
	em.pub.Send(ctx, &Event{Type: EventTypeDebug, Content: fmt.Sprintf(format, args...)})
}

func (em *emitter) transcript() string {
	return strings.Join(em.logs, "\n")
}

func (e *Engine) resurrect(ctx context.Context, repoURL, instructions string, pub *publisher) (result *ResultData) {
	em := &emitter{pub: pub}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("resurrection panicked", "repo_url", repoURL, "panic", r)
			result = &ResultData{
				Logs:   em.transcript(),
				Status: StatusFallback,
				Errors: []AttemptError{{Attempt: 1, ErrorType: ErrorTypeException, Message: fmt.Sprint(r)}},
			}
		}
	}()

	e.memory.RecordAttemptStart(repoURL, nil)

	em.log(ctx, "Initiating Deep Scan of Legacy Repository...")
	scan := e.scanner.ScanDeep(ctx, repoURL)
	em.log(ctx, "Deep scan complete: %d files, %d endpoints detected",
		len(scan.Files), len(scan.APIEndpoints))
	e.memory.UpdateTechStack(repoURL, stackFromScan(scan))

	memoryContext := e.memory.RenderContext(repoURL)
	if memoryContext != "" {
		em.debug(ctx, "Memory context loaded for %s", repoURL)
	}

	em.log(ctx, "Architecting Resurrection Blueprint...")
	fallbackMode := false
	plan, err := e.client.Generate(ctx, buildPlanPrompt(repoURL, instructions, memoryContext, scan))
	if err != nil {
		plan = planErrorSentinel + " " + err.Error()
	}
	if strings.Contains(plan, planErrorSentinel) {
		fallbackMode = true
		em.log(ctx, "Warning: Connection Unstable. Engaged Fallback Protocols.")
	}

	var (
		runErrors []AttemptError
		files     []llm.GeneratedFile
		last      attemptOutcome
		success   bool
		attempts  int
	)
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			em.log(ctx, "Auto-Heal: regenerating with error context (attempt %d of %d)...",
				attempt+1, e.maxRetries+1)
		} else {
			em.log(ctx, "Synthesizing Modern Cloud Infrastructure...")
		}

		last = e.attempt(ctx, em, repoURL, plan, memoryContext, scan, runErrors, attempt)
		if len(last.files) > 0 {
			files = last.files
		}

		if last.err == nil {
			success = true
			break
		}
		runErrors = append(runErrors, *last.err)
		em.log(ctx, "Error detected (%s), attempt %d failed", last.err.ErrorType, attempt+1)
		em.debug(ctx, "Failure context: %s", last.err.Message)
		e.recordDependencyIssue(repoURL, last.err)
	}
	output := last.output

	if success {
		e.memory.RecordSuccess(repoURL,
			[]string{fmt.Sprintf("Deployed %s stack from %s", last.runtime, last.entrypoint)},
			[]string{fmt.Sprintf("%s:%s", last.runtime, last.entrypoint)})
		em.log(ctx, "Resurrection complete. System is live.")
	} else if len(runErrors) > 0 {
		final := runErrors[len(runErrors)-1]
		e.memory.RecordFailure(repoURL, final.ErrorType, final.Message, "retry ceiling reached")
		em.log(ctx, "Retry ceiling reached. Engaging static fallback.")
	}

	preview := extractPreview(output, files)
	status := StatusResurrected
	if fallbackMode || !success || containsFatalMarker(output) {
		status = StatusFallback
	}
	retryCount := attempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	return &ResultData{
		Logs:       em.transcript(),
		Artifacts:  toArtifacts(files),
		Preview:    preview,
		Status:     status,
		RetryCount: retryCount,
		Errors:     runErrors,
	}
}

// attemptOutcome is the result of one generate-deploy-classify cycle. A nil
// err means the deployment came up healthy.
type attemptOutcome struct {
	files      []llm.GeneratedFile
	output     string
	runtime    string
	entrypoint string
	err        *AttemptError
}

// attempt runs one generate-deploy-classify cycle. Panics inside the cycle
// are captured and returned as exceptions so the loop always proceeds to a
// terminal result.
func (e *Engine) attempt(ctx context.Context, em *emitter, repoURL, plan, memoryContext string, scan *scanner.Result, priorErrors []AttemptError, attempt int) (outcome attemptOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("attempt panicked", "repo_url", repoURL, "attempt", attempt+1, "panic", r)
			outcome.err = &AttemptError{
				Attempt:   attempt + 1,
				ErrorType: ErrorTypeException,
				Message:   fmt.Sprint(r),
			}
		}
	}()

	errorContext := ""
	if attempt > 0 {
		errorContext = errorContextBlock(priorErrors, e.errorContextEntries, e.errorContextChars)
	}

	raw, err := e.client.Generate(ctx, buildCodePrompt(plan, memoryContext, errorContext, scan))
	if err != nil {
		outcome.err = &AttemptError{
			Attempt:   attempt + 1,
			ErrorType: ErrorTypeException,
			Message:   fmt.Sprintf("code generation failed: %v", err),
		}
		return outcome
	}

	set := llm.ParseFileSet(raw)
	outcome.files = dedupeFiles(set.Files)
	if generationEmpty(outcome.files) {
		outcome.files = nil
		outcome.err = &AttemptError{
			Attempt:   attempt + 1,
			ErrorType: ErrorTypeException,
			Message:   "generation produced no usable files",
		}
		return outcome
	}
	em.log(ctx, "Generated %d System Modules...", len(outcome.files))

	outcome.runtime, outcome.entrypoint = detectRuntime(outcome.files, set.Entrypoint)
	inferred := e.inferPackages(ctx, outcome.runtime, outcome.files)

	em.log(ctx, "Booting Neural Sandbox Environment...")
	outcome.output = e.driver.Deploy(ctx, sandbox.Plan{
		Runtime:          outcome.runtime,
		Entrypoint:       outcome.entrypoint,
		Files:            toSandboxFiles(outcome.files),
		InferredPackages: inferred,
		ScannedManifest:  scannedManifest(scan),
	})
	em.log(ctx, "Verifying System Integrity...")

	if verdict := classify.Classify(outcome.output); verdict.Detected {
		outcome.err = &AttemptError{
			Attempt:   attempt + 1,
			ErrorType: verdict.ErrorType,
			Message:   verdict.Context,
		}
	}
	return outcome
}

func (e *Engine) inferPackages(ctx context.Context, runtime string, files []llm.GeneratedFile) []string {
	depFiles := make([]deps.File, 0, len(files))
	for _, f := range files {
		depFiles = append(depFiles, deps.File{Path: f.Filename, Content: f.Content})
	}
	return deps.Infer(ctx, runtime, depFiles, e.logger)
}

// recordDependencyIssue persists the missing package name when a failure is
// a missing-module error, so future runs see it in the memory context.
func (e *Engine) recordDependencyIssue(repoURL string, attemptErr *AttemptError) {
	for _, pattern := range missingModulePatterns {
		if match := pattern.FindStringSubmatch(attemptErr.Message); match != nil {
			e.memory.RecordDependencyIssue(repoURL, match[1], attemptErr.ErrorType)
			return
		}
	}
}

func stackFromScan(scan *scanner.Result) *memory.TechStack {
	if scan == nil {
		return nil
	}
	return &memory.TechStack{
		DetectedBackend:  scan.TechStack.Backend.Framework,
		DetectedFrontend: scan.TechStack.Frontend.Framework,
		DetectedDatabase: scan.TechStack.Backend.Database,
	}
}

// dedupeFiles resolves duplicate paths last-wins, keeping the position of
// the first occurrence.
func dedupeFiles(files []llm.GeneratedFile) []llm.GeneratedFile {
	seen := make(map[string]int, len(files))
	out := make([]llm.GeneratedFile, 0, len(files))
	for _, f := range files {
		if idx, ok := seen[f.Filename]; ok {
			out[idx] = f
			continue
		}
		seen[f.Filename] = len(out)
		out = append(out, f)
	}
	return out
}

func generationEmpty(files []llm.GeneratedFile) bool {
	if len(files) == 0 {
		return true
	}
	// The parser degrades unparseable output to a lone error.log artifact.
	return len(files) == 1 && files[0].Filename == "error.log"
}

// detectRuntime picks the backend runtime and entrypoint from the generated
// set. The declared entrypoint wins when present; otherwise known server
// filenames are searched, preferring python.
func detectRuntime(files []llm.GeneratedFile, declared string) (runtime, entrypoint string) {
	entrypoint = declared
	if entrypoint == "" {
		for _, name := range []string{"main.py", "app.py", "server.js", "index.js"} {
			for _, f := range files {
				if path.Base(f.Filename) == name {
					entrypoint = f.Filename
					break
				}
			}
			if entrypoint != "" {
				break
			}
		}
	}
	if entrypoint == "" {
		entrypoint = defaultEntrypoint
	}
	switch path.Ext(entrypoint) {
	case ".js", ".mjs", ".cjs":
		return deps.RuntimeNode, entrypoint
	default:
		return deps.RuntimePython, entrypoint
	}
}

func toSandboxFiles(files []llm.GeneratedFile) []sandbox.File {
	out := make([]sandbox.File, 0, len(files))
	for _, f := range files {
		out = append(out, sandbox.File{Path: f.Filename, Content: f.Content})
	}
	return out
}

func toArtifacts(files []llm.GeneratedFile) []Artifact {
	out := make([]Artifact, 0, len(files))
	for _, f := range files {
		out = append(out, Artifact{Filename: f.Filename, Content: f.Content})
	}
	return out
}

// scannedManifest returns the original repository's package.json content, if
// the deep scan captured one.
func scannedManifest(scan *scanner.Result) string {
	if scan == nil {
		return ""
	}
	for _, f := range scan.Files {
		if path.Base(f.Path) == "package.json" {
			return f.Content
		}
	}
	return ""
}

// extractPreview prefers a live preview URL from the deployment output and
// falls back to generated static preview content.
func extractPreview(output string, files []llm.GeneratedFile) string {
	if match := previewURLPattern.FindStringSubmatch(output); match != nil {
		return match[1]
	}
	if match := backendURLPattern.FindStringSubmatch(output); match != nil {
		return match[1]
	}
	for _, f := range files {
		if strings.Contains(f.Filename, "preview.html") {
			return f.Content
		}
	}
	return ""
}

func containsFatalMarker(output string) bool {
	return strings.Contains(output, sandbox.FatalBackendPrefix) ||
		strings.Contains(output, sandbox.FatalFrontendPrefix) ||
		strings.Contains(output, "Sandbox Error")
}
