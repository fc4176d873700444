// Package sandbox deploys a generated codebase into an ephemeral execution
// environment: it materializes files, installs dependencies, launches the
// backend (and optionally a frontend) in the background, and health-checks
// until reachable or a bounded wait elapses.
package sandbox

import "context"

// ExecResult is the outcome of a foreground command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output concatenates stdout and stderr for classification.
func (r ExecResult) Output() string {
	out := r.Stdout
	if r.Stderr != "" {
		if out != "" {
			out += "\n"
		}
		out += r.Stderr
	}
	return out
}

// Session is one live sandbox environment. Implementations wrap a remote
// execution service or a local container.
type Session interface {
	// ID identifies the session for logging.
	ID() string

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(ctx context.Context, dir string) error

	// WriteFile writes content to a path inside the sandbox.
	WriteFile(ctx context.Context, path string, content []byte) error

	// ReadFile reads a file back, typically a log.
	ReadFile(ctx context.Context, path string) (string, error)

	// Run executes a shell command in the foreground, in dir when non-empty.
	Run(ctx context.Context, dir, command string) (ExecResult, error)

	// Start launches a shell command in the background with stdout and
	// stderr redirected to logPath.
	Start(ctx context.Context, dir, command, logPath string) error

	// Probe performs an HTTP request to a port from inside the sandbox and
	// returns the status code.
	Probe(ctx context.Context, port int) (int, error)

	// HostURL resolves the externally reachable URL for a sandbox port.
	HostURL(ctx context.Context, port int) (string, error)

	// Close terminates the session.
	Close(ctx context.Context) error
}

// Provisioner creates sandbox sessions.
type Provisioner interface {
	Provision(ctx context.Context) (Session, error)
}

// File is one file to materialize in the sandbox.
type File struct {
	Path    string
	Content string
}

// Plan is everything the driver needs for one deployment.
type Plan struct {
	// Runtime is "python" or "node" and gates the install and launch steps.
	Runtime string

	// Entrypoint is the backend server script path.
	Entrypoint string

	// Files is the generated file set, already deduplicated by the caller.
	Files []File

	// InferredPackages is the package set computed by dependency inference.
	InferredPackages []string

	// ScannedManifest is the package.json content found in the original
	// repository, if any. Used when generation produced no manifest.
	ScannedManifest string
}
