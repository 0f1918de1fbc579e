// Package engine provides pipeline run persistence and orchestration.
// This file implements the storage layer for run results, with atomic
// writes and file locking for data integrity.
//
// The store is the explicit persisted state behind change detection: the
// previous run's result is read at run start and the current result written
// at run end, rather than living in any process-wide singleton.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/domain"
	gantryerrors "github.com/mrz1836/gantry/internal/errors"
	"github.com/mrz1836/gantry/internal/flock"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validRunIDRegex matches valid run IDs (run-YYYYMMDD-HHMMSS with optional ms suffix).
var validRunIDRegex = regexp.MustCompile(`^run-\d{8}-\d{6}(-\d{3})?$`)

// Store defines the interface for run result persistence.
type Store interface {
	// Save persists a completed run result and updates the pipeline's latest
	// pointer. It finalizes any interim record checkpointed for the same run.
	// Returns ErrRunExists if the run ID is already finalized.
	Save(ctx context.Context, result *domain.PipelineResult) error

	// Checkpoint persists an interim snapshot of a run still in progress,
	// overwriting any earlier snapshot for the same run. A crashed run is
	// then still visible to the next run's change detection.
	Checkpoint(ctx context.Context, result *domain.PipelineResult) error

	// Get retrieves a run result by pipeline name and run ID.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, pipelineName, runID string) (*domain.PipelineResult, error)

	// Latest returns the most recently saved result for a pipeline.
	// Returns ErrNoPreviousRun if the pipeline has never completed a run.
	Latest(ctx context.Context, pipelineName string) (*domain.PipelineResult, error)

	// List returns all recorded results for a pipeline, newest first.
	List(ctx context.Context, pipelineName string) ([]*domain.PipelineResult, error)

	// ReportDir returns the directory where a run's collected report
	// artifacts belong. The directory is not created.
	ReportDir(pipelineName, runID string) string
}

// FileStore implements Store using the local filesystem under the GANTRY
// home directory (~/.gantry/runs/<pipeline>/<run-id>/result.json).
type FileStore struct {
	gantryHome string // Usually ~/.gantry
}

// NewFileStore creates a new FileStore with the given gantry home directory.
// If gantryHome is empty, uses the default ~/.gantry directory.
func NewFileStore(gantryHome string) (*FileStore, error) {
	if gantryHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		gantryHome = filepath.Join(home, constants.GantryHome)
	}
	return &FileStore{gantryHome: gantryHome}, nil
}

// Save persists a completed run result and updates the pipeline's latest
// pointer.
func (s *FileStore) Save(ctx context.Context, result *domain.PipelineResult) error {
	return s.writeResult(ctx, result, false)
}

// Checkpoint persists an interim snapshot of a run still in progress.
func (s *FileStore) Checkpoint(ctx context.Context, result *domain.PipelineResult) error {
	return s.writeResult(ctx, result, true)
}

// writeResult persists a run record. An existing interim record for the same
// run is overwritten; a finalized one is ErrRunExists.
func (s *FileStore) writeResult(ctx context.Context, result *domain.PipelineResult, interim bool) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	// Validate inputs
	if result == nil {
		return fmt.Errorf("failed to save run: result %w", gantryerrors.ErrEmptyValue)
	}
	if result.Pipeline == "" {
		return fmt.Errorf("failed to save run: pipeline name %w", gantryerrors.ErrEmptyValue)
	}
	if result.RunID == "" {
		return fmt.Errorf("failed to save run: run ID %w", gantryerrors.ErrEmptyValue)
	}

	runDir := s.runDir(result.Pipeline, result.RunID)
	resultFile := filepath.Join(runDir, constants.ResultFileName)

	// Only an interim record may be overwritten
	if data, err := os.ReadFile(resultFile); err == nil { //#nosec G304 -- path is constructed internally from validated names
		var existing domain.PipelineResult
		if jerr := json.Unmarshal(data, &existing); jerr != nil || !existing.Interim {
			return fmt.Errorf("failed to save run '%s': %w", result.RunID, gantryerrors.ErrRunExists)
		}
	}

	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	// Set schema version and finality before saving
	result.SchemaVersion = constants.ResultSchemaVersion
	result.Interim = interim

	// Acquire the pipeline lock for the write
	lockFile, err := s.acquireLock(ctx, result.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to save run '%s': %w", result.RunID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save run '%s': %w", result.RunID, err)
	}

	if err := atomicWrite(resultFile, data); err != nil {
		return fmt.Errorf("failed to save run '%s': %w", result.RunID, err)
	}

	// Mirror into latest.json so change detection reads one stable path
	latestFile := filepath.Join(s.pipelineDir(result.Pipeline), constants.LatestFileName)
	if err := atomicWrite(latestFile, data); err != nil {
		return fmt.Errorf("failed to update latest for '%s': %w", result.Pipeline, err)
	}

	return nil
}

// Get retrieves a run result by pipeline name and run ID.
func (s *FileStore) Get(ctx context.Context, pipelineName, runID string) (*domain.PipelineResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	// Validate inputs
	if pipelineName == "" {
		return nil, fmt.Errorf("failed to get run: pipeline name %w", gantryerrors.ErrEmptyValue)
	}
	if runID == "" {
		return nil, fmt.Errorf("failed to get run: run ID %w", gantryerrors.ErrEmptyValue)
	}
	if !validRunIDRegex.MatchString(runID) {
		return nil, fmt.Errorf("failed to get run: run ID %q is malformed: %w", runID, gantryerrors.ErrRunNotFound)
	}

	resultFile := filepath.Join(s.runDir(pipelineName, runID), constants.ResultFileName)
	return s.readResult(ctx, pipelineName, resultFile, gantryerrors.ErrRunNotFound)
}

// Latest returns the most recently saved result for a pipeline.
func (s *FileStore) Latest(ctx context.Context, pipelineName string) (*domain.PipelineResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if pipelineName == "" {
		return nil, fmt.Errorf("failed to get latest run: pipeline name %w", gantryerrors.ErrEmptyValue)
	}

	latestFile := filepath.Join(s.pipelineDir(pipelineName), constants.LatestFileName)
	return s.readResult(ctx, pipelineName, latestFile, gantryerrors.ErrNoPreviousRun)
}

// List returns all recorded results for a pipeline, newest first.
func (s *FileStore) List(ctx context.Context, pipelineName string) ([]*domain.PipelineResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if pipelineName == "" {
		return nil, fmt.Errorf("failed to list runs: pipeline name %w", gantryerrors.ErrEmptyValue)
	}

	entries, err := os.ReadDir(s.pipelineDir(pipelineName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var results []*domain.PipelineResult
	for _, entry := range entries {
		if !entry.IsDir() || !validRunIDRegex.MatchString(entry.Name()) {
			continue
		}
		resultFile := filepath.Join(s.pipelineDir(pipelineName), entry.Name(), constants.ResultFileName)
		result, rerr := s.readResult(ctx, pipelineName, resultFile, gantryerrors.ErrRunNotFound)
		if rerr != nil {
			// Skip partially written or corrupted runs rather than failing the listing
			continue
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})

	return results, nil
}

// ReportDir returns the directory where a run's report artifacts belong.
func (s *FileStore) ReportDir(pipelineName, runID string) string {
	return filepath.Join(s.runDir(pipelineName, runID), constants.ReportsDir)
}

// readResult loads and unmarshals a result file under the pipeline lock.
func (s *FileStore) readResult(ctx context.Context, pipelineName, path string, notFound error) (*domain.PipelineResult, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("pipeline '%s': %w", pipelineName, notFound)
	}

	lockFile, err := s.acquireLock(ctx, pipelineName)
	if err != nil {
		return nil, fmt.Errorf("failed to read run result: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally from validated names
	if err != nil {
		return nil, fmt.Errorf("failed to read run result: %w", err)
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}

	return &result, nil
}

// pipelineDir returns the directory holding all runs for a pipeline.
func (s *FileStore) pipelineDir(pipelineName string) string {
	return filepath.Join(s.gantryHome, constants.RunsDir, pipelineName)
}

// runDir returns the directory for a single run.
func (s *FileStore) runDir(pipelineName, runID string) string {
	return filepath.Join(s.pipelineDir(pipelineName), runID)
}

// lockFilePath returns the path of the per-pipeline lock file.
func (s *FileStore) lockFilePath(pipelineName string) string {
	return filepath.Join(s.pipelineDir(pipelineName), ".lock")
}

// acquireLock takes the per-pipeline flock with a bounded wait.
func (s *FileStore) acquireLock(ctx context.Context, pipelineName string) (*os.File, error) {
	lockPath := s.lockFilePath(pipelineName)

	// Ensure the pipeline directory exists for the lock file
	if err := os.MkdirAll(s.pipelineDir(pipelineName), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from validated name
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	// Try to acquire lock with timeout
	deadline := time.Now().Add(LockTimeout)
	for {
		if cerr := ctxutil.Canceled(ctx); cerr != nil {
			_ = f.Close()
			return nil, cerr
		}

		if err := flock.Exclusive(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", gantryerrors.ErrLockTimeout)
		}

		// Wait a bit before retrying
		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases the flock and closes the lock file.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}

	// Release the lock
	if err := flock.Unlock(f.Fd()); err != nil {
		// Still try to close the file
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return f.Close()
}

// atomicWrite writes data to path via a temp file and rename so readers
// never observe a partially written result.
func atomicWrite(path string, data []byte) error {
	// Write to temp file
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	// Write data
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Sync to disk (ensure data is persisted before rename)
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	// Close file before rename
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// GenerateRunID generates a run ID with format run-YYYYMMDD-HHMMSS.
// IDs generated within the same second will be identical.
// Use GenerateRunIDUnique for scenarios requiring uniqueness checks.
func GenerateRunID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("run-%s-%s",
		now.Format("20060102"),
		now.Format("150405"))
}

// GenerateRunIDUnique generates a run ID, adding milliseconds if needed for
// uniqueness. It checks against the provided set of existing IDs.
func GenerateRunIDUnique(existing map[string]bool) string {
	id := GenerateRunID()
	if !existing[id] {
		return id
	}
	now := time.Now().UTC()
	return fmt.Sprintf("run-%s-%s-%03d",
		now.Format("20060102"),
		now.Format("150405"),
		now.Nanosecond()/1e6)
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
