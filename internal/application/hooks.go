package application

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"sync"
)

// execFunc runs one shell command and returns its captured stdout and
// stderr. Swappable for tests.
type execFunc func(ctx context.Context, command string) (stdout, stderr string, err error)

func shellExec(ctx context.Context, command string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// HookRunner executes configured shell hook commands. Hooks are fire-and-
// forget side effects: a non-zero exit is logged but never aborts sibling
// hooks or the caller. Wait lets the webhook handler track completion before
// closing its response lifecycle.
type HookRunner struct {
	execFn execFunc
	wg     sync.WaitGroup
}

// NewHookRunner creates a HookRunner backed by /bin/sh.
func NewHookRunner() *HookRunner {
	return &HookRunner{execFn: shellExec}
}

// Run dispatches every command as a detached child process and returns
// without waiting. The commands run on a context stripped of the caller's
// cancelation: a hook must outlive the webhook response that triggered it.
// Execution order across commands is unspecified.
func (r *HookRunner) Run(ctx context.Context, commands []string) {
	ctx = context.WithoutCancel(ctx)
	for _, command := range commands {
		r.wg.Add(1)
		go func(command string) {
			defer r.wg.Done()
			r.runOne(ctx, command)
		}(command)
	}
}

// Wait blocks until every previously dispatched hook command has finished.
func (r *HookRunner) Wait() {
	r.wg.Wait()
}

func (r *HookRunner) runOne(ctx context.Context, command string) {
	slog.Warn("executing hook command", "command", command)

	stdout, stderr, err := r.execFn(ctx, command)
	if stdout != "" {
		slog.Debug("hook command stdout", "command", command, "output", stdout)
	}
	if stderr != "" {
		slog.Warn("hook command stderr", "command", command, "output", stderr)
	}
	if err != nil {
		slog.Error("hook command failed", "command", command, "error", err)
	}
}
