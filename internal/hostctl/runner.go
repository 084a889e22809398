package hostctl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes one control-tool subcommand and returns its stdout.
//
// In production this is satisfied by the exec-backed runner below.
// In tests it is satisfied by fake implementations.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// execRunner invokes the control tool as a subprocess.
type execRunner struct {
	tool string
}

// NewExecRunner returns a Runner that invokes the given control tool
// executable for every call.
func NewExecRunner(tool string) Runner {
	return &execRunner{tool: tool}
}

// Run executes the tool with the given arguments. Stdout is returned as-is;
// stderr is folded into the error on failure so the operator sees what the
// tool complained about.
func (r *execRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.tool, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", r.tool, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", r.tool, strings.Join(args, " "), err)
	}

	return stdout.String(), nil
}
