// Package runner launches the external simulation and its pre-kill cleanup
// command under a wall-clock deadline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Outcome is the result class of a simulation attempt.
type Outcome string

const (
	// OutcomeCompleted means the process exited before the deadline,
	// whatever its exit code.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTimedOut means the deadline elapsed and the process was killed.
	OutcomeTimedOut Outcome = "timed_out"
)

// Command is an external command and the directory it runs in.
type Command struct {
	Path string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// AttemptResult describes one simulation run.
type AttemptResult struct {
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
}

// Invoker runs the external processes of a trial attempt.
type Invoker interface {
	// PreKill runs the cleanup command. Its result is ignored.
	PreKill(ctx context.Context, log io.Writer)

	// Simulate runs cmd with combined output written to log and kills it
	// when timeout elapses. An error is returned only when the process
	// could not be started or ctx itself was cancelled.
	Simulate(ctx context.Context, cmd Command, log io.Writer, timeout time.Duration) (AttemptResult, error)
}

// DefaultPreKillTimeout bounds the cleanup command when no other limit is
// configured.
const DefaultPreKillTimeout = time.Minute

// ExecInvoker implements Invoker with os/exec. Processes run in their own
// process group so that the whole tree spawned by the launcher is killed
// on timeout.
type ExecInvoker struct {
	preKill Command

	// PreKillTimeout is the wall-clock limit of the cleanup command. A
	// cleanup that overruns it is killed and the attempt goes ahead.
	PreKillTimeout time.Duration

	// WaitDelay bounds how long Simulate waits for output pipes to close
	// after the process group has been killed.
	WaitDelay time.Duration
}

// NewExecInvoker creates an invoker that runs preKill before every attempt.
// An empty preKill.Path disables the cleanup step.
func NewExecInvoker(preKill Command) *ExecInvoker {
	return &ExecInvoker{
		preKill:        preKill,
		PreKillTimeout: DefaultPreKillTimeout,
		WaitDelay:      5 * time.Second,
	}
}

// PreKill runs the cleanup command and discards its outcome.
func (e *ExecInvoker) PreKill(ctx context.Context, log io.Writer) {
	if e.preKill.Path == "" {
		return
	}

	timeout := e.PreKillTimeout
	if timeout <= 0 {
		timeout = DefaultPreKillTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.preKill.Path, e.preKill.Args...)
	cmd.Dir = e.preKill.Dir
	cmd.Stdout = log
	cmd.Stderr = log
	configureProcessGroup(cmd)
	cmd.WaitDelay = e.WaitDelay

	err := cmd.Run()
	switch {
	case deadlineHit(runCtx, err):
		slog.Debug("Pre-kill command killed after timeout", "command", e.preKill.String(), "timeout", timeout)
	case err != nil:
		slog.Debug("Pre-kill command failed", "command", e.preKill.String(), "error", err)
	}
}

// Simulate runs the simulation command under the given deadline.
func (e *ExecInvoker) Simulate(ctx context.Context, c Command, log io.Writer, timeout time.Duration) (AttemptResult, error) {
	if timeout <= 0 {
		return AttemptResult{}, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = log
	cmd.Stderr = log
	configureProcessGroup(cmd)
	cmd.WaitDelay = e.WaitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return AttemptResult{}, fmt.Errorf("failed to start simulation: %w", err)
	}

	slog.Debug("Simulation started", "pid", cmd.Process.Pid, "command", c.String(), "dir", c.Dir)

	waitErr := cmd.Wait()
	result := AttemptResult{
		Outcome:  OutcomeCompleted,
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	// The parent being cancelled is an abort, not a trial timeout.
	if ctx.Err() != nil {
		return result, fmt.Errorf("simulation interrupted: %w", ctx.Err())
	}
	if deadlineHit(runCtx, waitErr) {
		result.Outcome = OutcomeTimedOut
		return result, nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("failed to wait for simulation: %w", waitErr)
	}

	return result, nil
}

// deadlineHit reports whether the process was cut short by the deadline of
// runCtx. A process that exited cleanly just before the deadline fired was
// not.
func deadlineHit(runCtx context.Context, waitErr error) bool {
	return waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
