package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opspilot/opspilot/internal/errors"
)

const (
	backendFile   = "file"
	runFileSuffix = ".json"
)

var validRunID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRunID rejects IDs that cannot be used as a storage key.
func ValidateRunID(id string) error {
	if !validRunID.MatchString(id) {
		return errors.NewValidationError("invalid run id").WithField("run_id").WithValue(id)
	}
	return nil
}

// FileStore keeps one JSON document per run in a directory. Writes are
// atomic and serialized across processes by an flock on the directory.
// Every operation takes its own lock handle, so a FileStore is safe for
// concurrent use.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewValidationError("storage directory is required").WithField("storage.dir")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageError("create run directory", err).WithBackend(backendFile)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

// acquire takes the directory lock on a new handle. The caller must unlock it.
func (s *FileStore) acquire(shared bool) (*fileLock, error) {
	fl := newFileLock(s.dir)
	if err := fl.lock(shared); err != nil {
		return nil, errors.NewStorageError("lock run directory", err).WithBackend(backendFile)
	}
	return fl, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+runFileSuffix)
}

// Save writes the snapshot to <dir>/<run-id>.json.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateRunID(snap.RunID); err != nil {
		return "", err
	}

	fl, err := s.acquire(false)
	if err != nil {
		return "", err
	}
	defer func() { _ = fl.unlock() }()

	target := s.path(snap.RunID)
	if _, err := os.Stat(target); err == nil {
		return "", errors.NewStorageError("save run", errors.ErrRunExists).
			WithBackend(backendFile).WithRunID(snap.RunID)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", errors.NewStorageError("marshal run", err).WithBackend(backendFile).WithRunID(snap.RunID)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errors.NewStorageError("write run", err).WithBackend(backendFile).WithRunID(snap.RunID)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", errors.NewStorageError("commit run", err).WithBackend(backendFile).WithRunID(snap.RunID)
	}
	return snap.RunID, nil
}

// Load reads one run.
func (s *FileStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateRunID(id); err != nil {
		return nil, errors.NewNotFoundError("run", id).WithCause(err)
	}

	fl, err := s.acquire(true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fl.unlock() }()

	return s.read(s.path(id), id)
}

func (s *FileStore) read(path, id string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("run", id)
		}
		return nil, errors.NewStorageError("read run", err).WithBackend(backendFile).WithRunID(id)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewStorageError("decode run", err).WithBackend(backendFile).WithRunID(id)
	}
	return &snap, nil
}

// snapshots reads every stored run. Unreadable files are skipped.
func (s *FileStore) snapshots(ctx context.Context) ([]*Snapshot, error) {
	fl, err := s.acquire(true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fl.unlock() }()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewStorageError("list runs", err).WithBackend(backendFile)
	}

	var out []*Snapshot
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, runFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, runFileSuffix)
		snap, err := s.read(filepath.Join(s.dir, name), id)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// List returns every run, newest first.
func (s *FileStore) List(ctx context.Context) ([]RunInfo, error) {
	snaps, err := s.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]RunInfo, 0, len(snaps))
	for _, snap := range snaps {
		runs = append(runs, snap.Info())
	}
	sortRuns(runs)
	return runs, nil
}

// Delete removes a run file.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateRunID(id); err != nil {
		return errors.NewNotFoundError("run", id).WithCause(err)
	}

	fl, err := s.acquire(false)
	if err != nil {
		return err
	}
	defer func() { _ = fl.unlock() }()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("run", id)
		}
		return errors.NewStorageError("delete run", err).WithBackend(backendFile).WithRunID(id)
	}
	return nil
}

// Stats aggregates every stored run.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	snaps, err := s.snapshots(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := newStats()
	for _, snap := range snaps {
		st.add(snap)
	}
	return st, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

// String describes the store for logs.
func (s *FileStore) String() string {
	return fmt.Sprintf("file:%s", s.dir)
}
