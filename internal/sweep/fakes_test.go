package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/runner"
	"github.com/cwbudde/weightsweep/internal/store"
)

// fakeInvoker scripts simulation outcomes without launching processes.
type fakeInvoker struct {
	mu       sync.Mutex
	preKills int
	calls    []runner.Command
	// outcome decides the result of the n-th (0-based) simulation call.
	outcome func(n int, cmd runner.Command) (runner.AttemptResult, error)
}

func (f *fakeInvoker) PreKill(ctx context.Context, log io.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preKills++
	fmt.Fprintln(log, "prekill")
}

func (f *fakeInvoker) Simulate(ctx context.Context, cmd runner.Command, log io.Writer, timeout time.Duration) (runner.AttemptResult, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	fmt.Fprintf(log, "simulation call %d\n", n)
	if f.outcome == nil {
		return runner.AttemptResult{Outcome: runner.OutcomeCompleted}, nil
	}
	return f.outcome(n, cmd)
}

func (f *fakeInvoker) simulations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func completed() (runner.AttemptResult, error) {
	return runner.AttemptResult{Outcome: runner.OutcomeCompleted, Duration: time.Millisecond}, nil
}

func timedOut() (runner.AttemptResult, error) {
	return runner.AttemptResult{Outcome: runner.OutcomeTimedOut, ExitCode: -1, Duration: time.Millisecond}, nil
}

// timeoutsThenComplete times out the first n calls and completes afterwards.
func timeoutsThenComplete(n int) func(int, runner.Command) (runner.AttemptResult, error) {
	return func(call int, _ runner.Command) (runner.AttemptResult, error) {
		if call < n {
			return timedOut()
		}
		return completed()
	}
}

func alwaysTimeout(int, runner.Command) (runner.AttemptResult, error) {
	return timedOut()
}

// fakeRecorder collects attempt records.
type fakeRecorder struct {
	records []AttemptRecord
	err     error
}

func (f *fakeRecorder) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

// failingStore wraps an FSStore and fails selected operations.
type failingStore struct {
	*store.FSStore
	failEnsure bool
	failMark   bool
	failClose  bool
}

var errDiskFull = errors.New("no space left on device")

func (s *failingStore) EnsureDirectory(trial grid.Trial) error {
	if s.failEnsure {
		return errDiskFull
	}
	return s.FSStore.EnsureDirectory(trial)
}

func (s *failingStore) OpenLog(trial grid.Trial) (io.WriteCloser, error) {
	w, err := s.FSStore.OpenLog(trial)
	if err != nil || !s.failClose {
		return w, err
	}
	return &unflushableLog{WriteCloser: w}, nil
}

// unflushableLog reports a failed flush on Close.
type unflushableLog struct {
	io.WriteCloser
}

func (l *unflushableLog) Close() error {
	l.WriteCloser.Close()
	return errDiskFull
}

func (s *failingStore) MarkComplete(trial grid.Trial) error {
	if s.failMark {
		return errDiskFull
	}
	return s.FSStore.MarkComplete(trial)
}

func testCommand(trial grid.Trial, trialDir string) runner.Command {
	return runner.Command{Path: "./launch.sh", Args: []string{"--logdir=" + trialDir}}
}

func newTestStore(t *testing.T) *store.FSStore {
	t.Helper()
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func newTestRunner(t *testing.T, s store.Store, inv runner.Invoker, maxRetries int, rec Recorder) *TrialRunner {
	t.Helper()
	tr, err := NewTrialRunner(TrialRunnerConfig{
		Store:      s,
		Invoker:    inv,
		Command:    testCommand,
		Timeout:    time.Minute,
		MaxRetries: maxRetries,
		Recorder:   rec,
	})
	require.NoError(t, err)
	return tr
}
