// Package runner provides the CLI's default bootstrap action and lock probe.
//
// A bootstrap task is an opaque shell unit with an exit code: the node
// payload's "command" entry is executed through the shell, and lines of the
// form "output:key=value" on stdout become the node's outputs. Commands are
// expected to be idempotent; the orchestrator may invoke them more than once
// for the same node.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/tierctl/tierctl/internal/observe"
)

// CommandKey is the payload entry naming the shell unit to execute.
const CommandKey = "command"

// outputPrefix marks stdout lines that publish a node output.
const outputPrefix = "output:"

// ShellRunner executes bootstrap commands through the shell.
type ShellRunner struct {
	observer observe.Observer
	shell    string
}

// NewShellRunner creates a shell runner.
func NewShellRunner(observer observe.Observer) *ShellRunner {
	if observer == nil {
		observer = observe.Nop
	}
	return &ShellRunner{observer: observer, shell: "/bin/sh"}
}

// Run implements the bootstrap action contract. A payload without a command
// converges immediately with no outputs (a purely declarative node).
func (r *ShellRunner) Run(ctx context.Context, payload map[string]string) (map[string]string, error) {
	command := payload[CommandKey]
	if command == "" {
		return nil, nil
	}

	// #nosec G204 - the command comes from the operator's own plan document
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Env = os.Environ()
	combined, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("bootstrap command failed: %w\noutput: %s", err, strings.TrimSpace(string(combined)))
	}

	return ParseOutputs(combined), nil
}

// ParseOutputs extracts "output:key=value" lines from command output.
func ParseOutputs(out []byte) map[string]string {
	var outputs map[string]string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, outputPrefix) {
			continue
		}
		kv := strings.SplitN(strings.TrimPrefix(line, outputPrefix), "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		if outputs == nil {
			outputs = make(map[string]string)
		}
		outputs[kv[0]] = kv[1]
	}
	return outputs
}

// CommandProbe returns a wait-condition probe that reports ready when the
// given shell command exits zero. A non-zero exit means "not live yet", not
// an error; the caller keeps polling until its timeout.
func CommandProbe(command string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		// #nosec G204 - the probe command comes from the operator's own plan document
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		if err := cmd.Run(); err != nil {
			return false, nil
		}
		return true, nil
	}
}

// FileLockProbe treats a contended resource as a filesystem path: the
// resource counts as released once the path no longer exists. This is
// advisory cooperation with processes the orchestrator does not own, such as
// a package manager holding its lock file.
func FileLockProbe(_ context.Context, resource string) (bool, error) {
	_, err := os.Stat(resource)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
