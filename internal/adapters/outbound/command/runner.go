// Package command runs external CLIs such as ibmcloud and kubectl.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// DefaultTimeout bounds CLI fetcher subprocesses.
const DefaultTimeout = 30 * time.Second

// PluginMissingCode is the exit code the ibmcloud CLI returns when a
// command needs a plugin that is not installed.
const PluginMissingCode = 2

const redacted = "***"

// ExecutionError is a subprocess that exited non-zero. Secrets are already
// replaced with *** in every field.
type ExecutionError struct {
	Cmd        string
	Stdout     string
	Stderr     string
	ReturnCode int
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("Error running command: %s\nreturncode: %d\nstdout: %s\nstderr: %s",
		e.Cmd, e.ReturnCode, e.Stdout, e.Stderr)
}

// ReturnCode returns the exit code carried by an ExecutionError, or -1.
func ReturnCode(err error) int {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ReturnCode
	}
	return -1
}

// Runner implements domain.CommandRunner with os/exec.
type Runner struct {
	log *zap.Logger
}

// New creates a runner.
func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// Run executes cmd. A zero Timeout means DefaultTimeout.
func (r *Runner) Run(ctx context.Context, cmd domain.Command) (string, string, error) {
	if len(cmd.Args) == 0 {
		return "", "", errors.New("empty command")
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	if err == nil {
		return stdout.String(), stderr.String(), nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	execErr := &ExecutionError{
		Cmd:        Redact(strings.Join(cmd.Args, " "), cmd.Secrets),
		Stdout:     Redact(stdout.String(), cmd.Secrets),
		Stderr:     Redact(stderr.String(), cmd.Secrets),
		ReturnCode: code,
	}
	if ctx.Err() != nil {
		r.log.Warn("command timed out", zap.String("cmd", execErr.Cmd), zap.Duration("timeout", timeout))
		return execErr.Stdout, execErr.Stderr, fmt.Errorf("%w: %w", execErr, ctx.Err())
	}
	r.log.Debug("command failed", zap.String("cmd", execErr.Cmd), zap.Int("returncode", code))
	return execErr.Stdout, execErr.Stderr, execErr
}

// Redact replaces every occurrence of each non-empty secret with ***.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	return s
}

// RunWithPluginRetry runs cmd and, if it exits with PluginMissingCode, runs
// install once and retries cmd exactly once.
func RunWithPluginRetry(ctx context.Context, runner domain.CommandRunner, cmd, install domain.Command) (string, string, error) {
	stdout, stderr, err := runner.Run(ctx, cmd)
	if err == nil || ReturnCode(err) != PluginMissingCode {
		return stdout, stderr, err
	}
	if _, _, err := runner.Run(ctx, install); err != nil {
		return "", "", fmt.Errorf("installing plugin: %w", err)
	}
	return runner.Run(ctx, cmd)
}

var _ domain.CommandRunner = (*Runner)(nil)
