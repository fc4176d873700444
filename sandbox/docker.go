package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lazarus-engine/lazarus/log"
)

// DefaultImage carries both runtimes the generated servers need.
const DefaultImage = "nikolaik/python-nodejs:latest"

// DefaultSessionTimeout bounds a sandbox lifetime; the container exits on
// its own when the deployment is abandoned.
const DefaultSessionTimeout = 10 * time.Minute

// DockerProvisioner creates container-backed sandbox sessions. Podman is
// preferred when present.
type DockerProvisioner struct {
	Image   string
	Command string
	Timeout time.Duration
	Logger  log.Logger
}

func NewDockerProvisioner(image string, timeout time.Duration, logger log.Logger) *DockerProvisioner {
	command := "docker"
	if _, err := exec.LookPath("podman"); err == nil {
		command = "podman"
	}
	if image == "" {
		image = DefaultImage
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &DockerProvisioner{Image: image, Command: command, Timeout: timeout, Logger: logger}
}

// Available reports whether the container runtime is usable.
func (p *DockerProvisioner) Available() bool {
	if _, err := exec.LookPath(p.Command); err != nil {
		return false
	}
	cmd := exec.Command(p.Command, "info")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

func (p *DockerProvisioner) Provision(ctx context.Context) (Session, error) {
	name := "lazarus-" + strings.ToLower(ulid.Make().String())
	seconds := int(p.Timeout.Seconds())
	args := []string{
		"run", "-d", "--rm",
		"--name", name,
		"-p", fmt.Sprintf("0:%d", pythonBackendPort),
		"-p", fmt.Sprintf("0:%d", nodeBackendPort),
		"-p", fmt.Sprintf("0:%d", frontendPort),
		p.Image,
		"sleep", strconv.Itoa(seconds),
	}
	out, err := exec.CommandContext(ctx, p.Command, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("container start: %s: %w", strings.TrimSpace(string(out)), err)
	}
	p.Logger.Debug("container started", "name", name, "image", p.Image)
	return &DockerSession{name: name, command: p.Command}, nil
}

// DockerSession executes sandbox operations through docker exec.
type DockerSession struct {
	name    string
	command string
}

func (s *DockerSession) ID() string { return s.name }

func (s *DockerSession) exec(ctx context.Context, stdin []byte, args ...string) (ExecResult, error) {
	full := append([]string{"exec"}, args...)
	cmd := exec.CommandContext(ctx, s.command, full...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *DockerSession) MkdirAll(ctx context.Context, dir string) error {
	result, err := s.exec(ctx, nil, s.name, "mkdir", "-p", dir)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("mkdir %s: %s", dir, result.Stderr)
	}
	return nil
}

func (s *DockerSession) WriteFile(ctx context.Context, path string, content []byte) error {
	result, err := s.exec(ctx, content, "-i", s.name, "sh", "-c", "cat > "+shellQuote(path))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("write %s: %s", path, result.Stderr)
	}
	return nil
}

func (s *DockerSession) ReadFile(ctx context.Context, path string) (string, error) {
	result, err := s.exec(ctx, nil, s.name, "cat", path)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("read %s: %s", path, result.Stderr)
	}
	return result.Stdout, nil
}

func (s *DockerSession) Run(ctx context.Context, dir, command string) (ExecResult, error) {
	shell := command
	if dir != "" {
		shell = "cd " + shellQuote(dir) + " && " + command
	}
	return s.exec(ctx, nil, s.name, "sh", "-c", shell)
}

func (s *DockerSession) Start(ctx context.Context, dir, command, logPath string) error {
	shell := fmt.Sprintf("%s > %s 2>&1", command, logPath)
	if dir != "" {
		shell = "cd " + shellQuote(dir) + " && " + shell
	}
	result, err := s.exec(ctx, nil, "-d", s.name, "sh", "-c", shell)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("start %q: %s", command, result.Stderr)
	}
	return nil
}

func (s *DockerSession) Probe(ctx context.Context, port int) (int, error) {
	probe := fmt.Sprintf("curl -s -o /dev/null -w '%%{http_code}' http://localhost:%d/", port)
	result, err := s.exec(ctx, nil, s.name, "sh", "-c", probe)
	if err != nil {
		return 0, err
	}
	status, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	if err != nil || status == 0 {
		return 0, fmt.Errorf("port %d not answering", port)
	}
	return status, nil
}

func (s *DockerSession) HostURL(ctx context.Context, port int) (string, error) {
	out, err := exec.CommandContext(ctx, s.command, "port", s.name, strconv.Itoa(port)).Output()
	if err != nil {
		return "", fmt.Errorf("port lookup: %w", err)
	}
	addr := strings.TrimSpace(strings.Split(string(out), "\n")[0])
	if addr == "" {
		return "", fmt.Errorf("port %d not published", port)
	}
	addr = strings.Replace(addr, "0.0.0.0", "localhost", 1)
	return "http://" + addr, nil
}

func (s *DockerSession) Close(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, s.command, "rm", "-f", s.name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("container remove: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
