package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// FSStore implements the Store interface on top of a base log directory:
//
//	<baseDir>/pb_pwt_<p>_cr_pwt_<c>/trial_<i>/{output.log,COMPLETE,TIMEOUT}
//	<baseDir>/timeouts/pb_pwt_<p>_cr_pwt_<c>/trial_<i>_timeout_<n>/
//
// Every mutation is a single directory creation, marker creation, rename or
// recursive removal, so a crash between steps always leaves a directory that
// Inspect can classify. FSStore is meant for a single writer.
type FSStore struct {
	baseDir string
}

var archiveNamePattern = regexp.MustCompile(`^trial_(\d+)_timeout_(\d+)$`)

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// CombinationDir returns the directory holding all trials of a combination.
func (fs *FSStore) CombinationDir(c grid.Combination) string {
	return filepath.Join(fs.baseDir, c.Dir())
}

// TrialDir returns the directory path for a given trial.
func (fs *FSStore) TrialDir(trial grid.Trial) string {
	return filepath.Join(fs.CombinationDir(trial.Combination), fmt.Sprintf("trial_%d", trial.Index))
}

// ArchiveDir returns the timeout archive directory of a combination.
func (fs *FSStore) ArchiveDir(c grid.Combination) string {
	return filepath.Join(fs.baseDir, ArchiveDirName, c.Dir())
}

// LogPath returns the path of the trial's output log.
func (fs *FSStore) LogPath(trial grid.Trial) string {
	return filepath.Join(fs.TrialDir(trial), LogFileName)
}

// Inspect classifies the trial using only directory existence and the
// presence of the two marker files.
func (fs *FSStore) Inspect(trial grid.Trial) (TrialState, error) {
	dir := fs.TrialDir(trial)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return StateAbsent, nil
	} else if err != nil {
		return "", fmt.Errorf("failed to stat trial directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("trial path is not a directory: %s", dir)
	}

	complete, err := fileExists(filepath.Join(dir, CompleteMarker))
	if err != nil {
		return "", err
	}
	timedOut, err := fileExists(filepath.Join(dir, TimeoutMarker))
	if err != nil {
		return "", err
	}

	return classify(complete, timedOut), nil
}

// EnsureDirectory creates the trial directory (and parents) for a fresh attempt.
func (fs *FSStore) EnsureDirectory(trial grid.Trial) error {
	dir := fs.TrialDir(trial)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create trial directory: %w", err)
	}
	return nil
}

// OpenLog creates or truncates output.log inside the trial directory.
func (fs *FSStore) OpenLog(trial grid.Trial) (io.WriteCloser, error) {
	f, err := os.Create(fs.LogPath(trial))
	if err != nil {
		return nil, fmt.Errorf("failed to create output log: %w", err)
	}
	return f, nil
}

// MarkComplete creates the completion marker.
func (fs *FSStore) MarkComplete(trial grid.Trial) error {
	path := filepath.Join(fs.TrialDir(trial), CompleteMarker)
	if err := touch(path); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	slog.Debug("Marked trial complete", "trial", trial.String())
	return nil
}

// MarkTimeout creates the timeout marker.
func (fs *FSStore) MarkTimeout(trial grid.Trial) error {
	path := filepath.Join(fs.TrialDir(trial), TimeoutMarker)
	if err := touch(path); err != nil {
		return fmt.Errorf("failed to write timeout marker: %w", err)
	}
	slog.Debug("Marked trial timed out", "trial", trial.String())
	return nil
}

// ArchiveTimeout renames a timed-out trial directory into the archive.
// The archive number is one past the highest number already used by the
// same trial index; entries of other indices are ignored.
func (fs *FSStore) ArchiveTimeout(trial grid.Trial) (string, error) {
	state, err := fs.Inspect(trial)
	if err != nil {
		return "", err
	}
	if state != StateTimedOut {
		return "", &StateError{Trial: trial, Op: "archive", Expected: StateTimedOut, Actual: state}
	}

	archiveDir := fs.ArchiveDir(trial.Combination)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	n, err := fs.nextArchiveNumber(trial)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(archiveDir, archiveName(trial.Index, n))
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("archive entry already exists: %s", dest)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat archive entry: %w", err)
	}

	if err := os.Rename(fs.TrialDir(trial), dest); err != nil {
		return "", fmt.Errorf("failed to archive timed out trial: %w", err)
	}

	slog.Info("Archived timed out trial", "trial", trial.String(), "archive_dir", dest)
	return dest, nil
}

// DiscardIncomplete removes an interrupted attempt's directory.
func (fs *FSStore) DiscardIncomplete(trial grid.Trial) error {
	state, err := fs.Inspect(trial)
	if err != nil {
		return err
	}
	if state != StateIncomplete {
		return &StateError{Trial: trial, Op: "discard", Expected: StateIncomplete, Actual: state}
	}

	dir := fs.TrialDir(trial)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove incomplete trial directory: %w", err)
	}

	slog.Info("Discarded incomplete trial", "trial", trial.String(), "path", dir)
	return nil
}

// ListArchives returns the archived attempts of a combination ordered by
// trial index, then archive number.
func (fs *FSStore) ListArchives(c grid.Combination) ([]ArchiveEntry, error) {
	dir := fs.ArchiveDir(c)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []ArchiveEntry{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	archives := []ArchiveEntry{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		index, n, ok := parseArchiveName(entry.Name())
		if !ok {
			continue
		}

		archive := ArchiveEntry{
			Combination: c,
			Index:       index,
			Number:      n,
			Path:        filepath.Join(dir, entry.Name()),
		}
		if info, err := entry.Info(); err == nil {
			archive.ModTime = info.ModTime()
		}
		archives = append(archives, archive)
	}

	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Index != archives[j].Index {
			return archives[i].Index < archives[j].Index
		}
		return archives[i].Number < archives[j].Number
	})
	return archives, nil
}

// Summarize inspects every trial and groups the state counts per
// combination, in the order the combinations first appear.
func (fs *FSStore) Summarize(trials []grid.Trial) ([]Summary, error) {
	var summaries []Summary
	byCombo := make(map[grid.Combination]int)

	for _, trial := range trials {
		idx, ok := byCombo[trial.Combination]
		if !ok {
			archives, err := fs.ListArchives(trial.Combination)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, Summary{
				Combination: trial.Combination,
				Counts:      make(map[TrialState]int),
				Archived:    len(archives),
			})
			idx = len(summaries) - 1
			byCombo[trial.Combination] = idx
		}

		state, err := fs.Inspect(trial)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", trial, err)
		}
		summaries[idx].Counts[state]++
	}

	return summaries, nil
}

func (fs *FSStore) nextArchiveNumber(trial grid.Trial) (int, error) {
	entries, err := os.ReadDir(fs.ArchiveDir(trial.Combination))
	if os.IsNotExist(err) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	next := 0
	for _, entry := range entries {
		index, n, ok := parseArchiveName(entry.Name())
		if !ok || index != trial.Index {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

func archiveName(index, n int) string {
	return fmt.Sprintf("trial_%d_timeout_%d", index, n)
}

func parseArchiveName(name string) (index, n int, ok bool) {
	m := archiveNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	n, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return index, n, true
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
}

// touch creates an empty file, leaving an existing one untouched.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}
