package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
)

// Run is a workspace for one current capture. Its images never touch the
// baseline until the snapshot is explicitly saved.
type Run struct {
	dir string
}

// NewRun creates runs/<stamp>/ under the store root.
func (s *Store) NewRun(t time.Time) (*Run, error) {
	dir := filepath.Join(s.root, RunsDir, t.UTC().Format(stampFormat))
	if _, err := os.Stat(dir); err == nil {
		dir = fmt.Sprintf("%s-%d", dir, t.UnixNano()%1e6)
	}
	if err := os.MkdirAll(filepath.Join(dir, VisualDir), 0755); err != nil {
		return nil, &PersistenceError{Op: "run", Path: dir, Message: "failed to create run workspace", Cause: err}
	}
	return &Run{dir: dir}, nil
}

// OpenRun wraps an existing directory as a run workspace.
func OpenRun(dir string) (*Run, error) {
	if err := os.MkdirAll(filepath.Join(dir, VisualDir), 0755); err != nil {
		return nil, &PersistenceError{Op: "run", Path: dir, Message: "failed to create run workspace", Cause: err}
	}
	return &Run{dir: dir}, nil
}

// Dir is the directory current image references resolve against.
func (r *Run) Dir() string {
	return r.dir
}

// WriteArtifact stores an image in the workspace and returns its "visual/<name>" reference.
func (r *Run) WriteArtifact(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	path := filepath.Join(r.dir, VisualDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &PersistenceError{Op: "artifact", Path: path, Message: "failed to write artifact", Cause: err}
	}
	return VisualDir + "/" + name, nil
}

// SaveSnapshot writes the current snapshot into the workspace for later inspection.
func (r *Run) SaveSnapshot(snapshot *types.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", &PersistenceError{Op: "run", Path: r.dir, Message: "failed to encode snapshot", Cause: err}
	}
	path := filepath.Join(r.dir, "current.json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", &PersistenceError{Op: "run", Path: path, Message: "failed to write snapshot", Cause: err}
	}
	return path, nil
}

// Remove deletes the workspace.
func (r *Run) Remove() error {
	return os.RemoveAll(r.dir)
}
