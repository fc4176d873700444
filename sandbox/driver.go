package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lazarus-engine/lazarus/log"
)

// Markers the engine extracts from a deployment result string. The result
// string is the sole channel between the driver and its caller.
const (
	MarkerPreviewURL = "[PREVIEW_URL]"
	MarkerBackendURL = "[BACKEND_URL]"

	FatalBackendPrefix  = "FATAL: Backend failed to start"
	FatalFrontendPrefix = "FATAL: Frontend build failed"
	sandboxErrorPrefix  = "Sandbox Error"
)

const (
	pythonBackendPort = 8000
	nodeBackendPort   = 3000
	frontendPort      = 3001

	backendLogPath  = "/tmp/lazarus_backend.log"
	frontendLogPath = "/tmp/lazarus_frontend.log"

	logExcerptLen = 800
)

// Fallback packages installed when a node deployment has no manifest at all.
var nodeFallbackPackages = []string{"express", "cors", "mongoose", "dotenv", "body-parser"}

// Driver deploys generated codebases into sandbox sessions. One driver holds
// at most one live session; each deploy tears down the previous session
// first. Deploys are serialized by an internal mutex.
type Driver struct {
	provisioner    Provisioner
	logger         log.Logger
	healthAttempts int
	healthInterval time.Duration
	settleWait     time.Duration

	mutex   sync.Mutex
	session Session
}

type DriverOption func(*Driver)

// WithHealthPolicy overrides the poll ceiling and interval.
func WithHealthPolicy(attempts int, interval time.Duration) DriverOption {
	return func(d *Driver) {
		d.healthAttempts = attempts
		d.healthInterval = interval
	}
}

// WithSettleWait overrides the post-launch wait for the frontend.
func WithSettleWait(wait time.Duration) DriverOption {
	return func(d *Driver) { d.settleWait = wait }
}

func NewDriver(provisioner Provisioner, logger log.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	d := &Driver{
		provisioner:    provisioner,
		logger:         logger,
		healthAttempts: 20,
		healthInterval: 2 * time.Second,
		settleWait:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close tears down any live session.
func (d *Driver) Close(ctx context.Context) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.teardown(ctx)
}

func (d *Driver) teardown(ctx context.Context) {
	if d.session == nil {
		return
	}
	if err := d.session.Close(ctx); err != nil {
		d.logger.Warn("sandbox teardown failed", "session", d.session.ID(), "error", err)
	}
	d.session = nil
}

// Deploy runs the full deployment state machine and returns a result string:
// URL markers on success, a tagged fatal string with a log excerpt on
// failure. Individual file writes and installs degrade to log-and-continue;
// only launch, health-check, and frontend build are hard-fail points.
func (d *Driver) Deploy(ctx context.Context, plan Plan) string {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.teardown(ctx)

	session, err := d.provisioner.Provision(ctx)
	if err != nil {
		return fmt.Sprintf("%s: provisioning failed: %v", sandboxErrorPrefix, err)
	}
	d.session = session
	d.logger.Info("sandbox provisioned", "session", session.ID())

	d.materialize(ctx, plan.Files)
	d.installDependencies(ctx, plan)

	backendURL, result := d.launchBackend(ctx, plan)
	if result != "" {
		return result
	}

	previewURL := backendURL
	if frontendDir := findFrontendDir(plan.Files); frontendDir != "" {
		url, failure := d.deployFrontend(ctx, frontendDir, backendURL)
		if failure != "" {
			return failure
		}
		previewURL = url
	}

	return fmt.Sprintf("%s %s\n%s %s", MarkerPreviewURL, previewURL, MarkerBackendURL, backendURL)
}

func (d *Driver) materialize(ctx context.Context, files []File) {
	for _, file := range files {
		clean := SanitizePath(file.Path)
		if dir := path.Dir(clean); dir != "." && dir != "/" {
			if err := d.session.MkdirAll(ctx, dir); err != nil {
				d.logger.Warn("mkdir skipped", "dir", dir, "error", err)
			}
		}
		if err := d.session.WriteFile(ctx, clean, []byte(file.Content)); err != nil {
			d.logger.Warn("file write skipped", "path", clean, "error", err)
		}
	}
}

func (d *Driver) installDependencies(ctx context.Context, plan Plan) {
	switch plan.Runtime {
	case "python":
		// Manifest first, then the inferred set to force known-good
		// versions over anything the manifest pinned.
		if manifest := findGeneratedManifest(plan.Files, "requirements.txt"); manifest != "" {
			d.run(ctx, "", "pip install -r "+SanitizePath(manifest))
		}
		if len(plan.InferredPackages) > 0 {
			d.run(ctx, "", "pip install "+strings.Join(plan.InferredPackages, " "))
		}
	case "node":
		dir := path.Dir(SanitizePath(plan.Entrypoint))
		packages := nodeManifestPackages(plan)
		if len(packages) == 0 {
			packages = nodeFallbackPackages
		}
		d.run(ctx, dir, "npm install "+strings.Join(packages, " "))
	}
}

// nodeManifestPackages prefers a manifest among the generated files, then
// the manifest scanned from the original repository.
func nodeManifestPackages(plan Plan) []string {
	for _, file := range plan.Files {
		if path.Base(file.Path) == "package.json" && !strings.Contains(file.Path, "frontend") {
			if packages := parseManifestDependencies(file.Content); len(packages) > 0 {
				return packages
			}
		}
	}
	if plan.ScannedManifest != "" {
		return parseManifestDependencies(plan.ScannedManifest)
	}
	return nil
}

func parseManifestDependencies(manifest string) []string {
	var parsed struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(manifest), &parsed); err != nil {
		return nil
	}
	packages := make([]string, 0, len(parsed.Dependencies))
	for name := range parsed.Dependencies {
		packages = append(packages, name)
	}
	sort.Strings(packages)
	return packages
}

func (d *Driver) launchBackend(ctx context.Context, plan Plan) (backendURL, failure string) {
	entrypoint := SanitizePath(plan.Entrypoint)
	port := pythonBackendPort
	command := "python " + entrypoint
	if plan.Runtime == "node" {
		port = nodeBackendPort
		command = "node " + entrypoint
	}

	if err := d.session.Start(ctx, "", command, backendLogPath); err != nil {
		return "", fmt.Sprintf("%s\n%s", FatalBackendPrefix, err.Error())
	}

	if !d.waitHealthy(ctx, port) {
		excerpt := d.logExcerpt(ctx, backendLogPath)
		return "", fmt.Sprintf("%s\n--- log excerpt ---\n%s", FatalBackendPrefix, excerpt)
	}

	url, err := d.session.HostURL(ctx, port)
	if err != nil {
		d.logger.Warn("backend url resolution failed", "error", err)
		url = fmt.Sprintf("http://localhost:%d", port)
	}
	return url, ""
}

// waitHealthy polls until the port answers HTTP. Any syntactically valid
// status code counts: the generated app's routes are unknown, so a 404 is
// still proof of life.
func (d *Driver) waitHealthy(ctx context.Context, port int) bool {
	for attempt := 0; attempt < d.healthAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(d.healthInterval):
			}
		}
		status, err := d.session.Probe(ctx, port)
		if err == nil && status >= 100 && status < 600 {
			return true
		}
	}
	return false
}

func (d *Driver) deployFrontend(ctx context.Context, dir, backendURL string) (url, failure string) {
	d.run(ctx, dir, "npm install")

	env := fmt.Sprintf("NEXT_PUBLIC_API_URL=%s REACT_APP_API_URL=%s", backendURL, backendURL)
	result, err := d.session.Run(ctx, dir, env+" npm run build")
	if err != nil || result.ExitCode != 0 {
		output := result.Output()
		if err != nil {
			output = err.Error()
		}
		return "", fmt.Sprintf("%s\n--- build output ---\n%s", FatalFrontendPrefix, tail(output, logExcerptLen))
	}

	start := fmt.Sprintf("%s PORT=%d npm run start", env, frontendPort)
	if err := d.session.Start(ctx, dir, start, frontendLogPath); err != nil {
		return "", fmt.Sprintf("%s\n%s", FatalFrontendPrefix, err.Error())
	}

	select {
	case <-ctx.Done():
	case <-time.After(d.settleWait):
	}

	resolved, err := d.session.HostURL(ctx, frontendPort)
	if err != nil {
		d.logger.Warn("frontend url resolution failed", "error", err)
		resolved = fmt.Sprintf("http://localhost:%d", frontendPort)
	}
	return resolved, ""
}

func (d *Driver) run(ctx context.Context, dir, command string) {
	result, err := d.session.Run(ctx, dir, command)
	if err != nil {
		d.logger.Warn("sandbox command failed", "command", command, "error", err)
		return
	}
	if result.ExitCode != 0 {
		d.logger.Warn("sandbox command exited nonzero",
			"command", command, "exit_code", result.ExitCode,
			"output", tail(result.Output(), 200))
	}
}

func (d *Driver) logExcerpt(ctx context.Context, logPath string) string {
	content, err := d.session.ReadFile(ctx, logPath)
	if err != nil {
		return fmt.Sprintf("(log unavailable: %v)", err)
	}
	return tail(content, logExcerptLen)
}

func findGeneratedManifest(files []File, name string) string {
	for _, file := range files {
		if path.Base(file.Path) == name {
			return file.Path
		}
	}
	return ""
}

// findFrontendDir locates a frontend package.json among the generated files.
func findFrontendDir(files []File) string {
	for _, file := range files {
		if path.Base(file.Path) == "package.json" && strings.Contains(file.Path, "frontend") {
			return path.Dir(SanitizePath(file.Path))
		}
	}
	return ""
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
