package client

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/metrics"
)

// CommandRunner executes an external command and returns its stdout.
// Implementations must report a nonzero exit as an error carrying the
// captured stderr text.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// Sudo prefixes every invocation with sudo, required for the
	// administrative lfs subcommands on most deployments
	Sudo    bool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewExecRunner creates a command runner. The metrics argument may be
// nil to disable instrumentation.
func NewExecRunner(sudo bool, logger *zap.Logger, m *metrics.Metrics) *ExecRunner {
	return &ExecRunner{Sudo: sudo, logger: logger, metrics: m}
}

// Run executes the command and returns its stdout. A nonzero exit or a
// context cancellation is reported as an external tool error carrying
// the captured stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.Sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}

	r.logger.Debug("Running command", zap.String("command", name), zap.Strings("args", args))

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.countInvocation(name, args, "error")

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", lfserrors.ExternalTool(err, "%s", msg)
	}

	r.countInvocation(name, args, "ok")

	return stdout.String(), nil
}

func (r *ExecRunner) countInvocation(name string, args []string, result string) {
	if r.metrics == nil {
		return
	}

	command := name
	if r.Sudo && len(args) > 0 {
		command = args[0]
	}

	r.metrics.ToolInvocations.WithLabelValues(command, result).Inc()
}
