// Package store persists the single-slot baseline snapshot and its image
// artifacts on the filesystem, keeps dated history copies and provides
// workspaces for current captures.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/regression-baseline/internal/schemas"
	"github.com/jonathan/regression-baseline/internal/types"
	"golang.org/x/sync/errgroup"
)

// Layout of the store root.
const (
	BaselineFile       = "baseline.json"
	BaselineReportFile = "BASELINE_REPORT.md"
	VisualDir          = "visual"
	ReportsDir         = "reports"
	HistoryDir         = "history"
	RunsDir            = "runs"

	stagingPrefix = ".staging-"
	stampFormat   = "20060102T150405Z"
	copyLimit     = 4
)

// Store is a filesystem baseline store rooted at one directory.
type Store struct {
	root    string
	verbose bool
	now     func() time.Time
}

// New returns a store rooted at root. The directory is created on first write.
func New(root string, verbose bool) *Store {
	return &Store{root: root, verbose: verbose, now: time.Now}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// VisualRoot returns the directory baseline image references resolve against.
// References are of the form "visual/<file>".
func (s *Store) VisualRoot() string {
	return s.root
}

// Exists reports whether a baseline has been saved.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.root, BaselineFile))
	return err == nil
}

// Load reads the stored baseline. A missing baseline is reported as found=false
// with no error; an unreadable or invalid one is a PersistenceError.
func (s *Store) Load(ctx context.Context) (*types.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path := filepath.Join(s.root, BaselineFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Op: "load", Path: path, Message: "failed to read baseline", Cause: err}
	}

	if err := schemas.ValidateSnapshot(data); err != nil {
		return nil, false, &PersistenceError{Op: "load", Path: path, Message: "baseline does not match snapshot schema", Cause: err}
	}

	var snapshot types.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, &PersistenceError{Op: "load", Path: path, Message: "failed to decode baseline", Cause: err}
	}

	if s.verbose {
		log.Printf("[STORE] Loaded baseline %s captured %s", snapshot.ID, snapshot.Timestamp.Format(time.RFC3339))
	}
	return &snapshot, true, nil
}

// Save replaces the stored baseline with snapshot. Image references are read
// from artifactRoot and copied into the store.
//
// Everything is first written to a staging directory. A dated copy is added to
// history, the visual directory is swapped in and baseline.json is renamed into
// place last. The two renames are not atomic together: a concurrent reader may
// briefly pair the previous baseline.json with the new images. If either rename
// fails, the previous images are restored and the history copy is removed.
func (s *Store) Save(ctx context.Context, snapshot *types.Snapshot, artifactRoot string) error {
	if snapshot == nil {
		return &PersistenceError{Op: "save", Path: s.root, Message: "nil snapshot"}
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return &PersistenceError{Op: "save", Path: s.root, Message: "failed to create store root", Cause: err}
	}

	staging := filepath.Join(s.root, stagingPrefix+uuid.NewString())
	defer os.RemoveAll(staging)

	if err := os.MkdirAll(filepath.Join(staging, VisualDir), 0755); err != nil {
		return &PersistenceError{Op: "save", Path: staging, Message: "failed to create staging directory", Cause: err}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: staging, Message: "failed to encode snapshot", Cause: err}
	}
	if err := schemas.ValidateSnapshot(data); err != nil {
		return &PersistenceError{Op: "save", Path: staging, Message: "snapshot does not match schema", Cause: err}
	}
	if err := os.WriteFile(filepath.Join(staging, BaselineFile), data, 0644); err != nil {
		return &PersistenceError{Op: "save", Path: staging, Message: "failed to write snapshot", Cause: err}
	}

	if err := s.stageArtifacts(ctx, snapshot, artifactRoot, staging); err != nil {
		return err
	}

	stamp := snapshot.Timestamp.UTC().Format(stampFormat)
	historyDir := filepath.Join(s.root, HistoryDir, stamp)
	if _, err := os.Stat(historyDir); err == nil {
		historyDir += "-" + shortID(snapshot.ID)
	}
	if err := copyTree(staging, historyDir); err != nil {
		return &PersistenceError{Op: "save", Path: historyDir, Message: "failed to write history copy", Cause: err}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	visual := filepath.Join(s.root, VisualDir)
	retired := filepath.Join(s.root, stagingPrefix+"old-"+uuid.NewString())
	hadVisual := false
	if _, err := os.Stat(visual); err == nil {
		if err := os.Rename(visual, retired); err != nil {
			return &PersistenceError{Op: "save", Path: visual, Message: "failed to retire previous images", Cause: err}
		}
		hadVisual = true
	}
	restore := func() {
		if hadVisual {
			_ = os.Rename(retired, visual)
		}
		_ = os.RemoveAll(historyDir)
	}
	if err := os.Rename(filepath.Join(staging, VisualDir), visual); err != nil {
		restore()
		return &PersistenceError{Op: "save", Path: visual, Message: "failed to install images", Cause: err}
	}
	if err := os.Rename(filepath.Join(staging, BaselineFile), filepath.Join(s.root, BaselineFile)); err != nil {
		// staging is removed on return, taking the new images with it.
		if rerr := os.Rename(visual, filepath.Join(staging, VisualDir)); rerr != nil {
			_ = os.RemoveAll(visual)
		}
		restore()
		return &PersistenceError{Op: "save", Path: s.root, Message: "failed to install baseline", Cause: err}
	}
	if hadVisual {
		_ = os.RemoveAll(retired)
	}

	if s.verbose {
		log.Printf("[STORE] Saved baseline %s (%d views, history %s)", snapshot.ID, len(snapshot.Visual.Views), filepath.Base(historyDir))
	}
	return nil
}

func (s *Store) stageArtifacts(ctx context.Context, snapshot *types.Snapshot, artifactRoot, staging string) error {
	names := make([]string, 0, len(snapshot.Visual.Views))
	for name := range snapshot.Visual.Views {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make([]string, 0, len(names))
	for _, name := range names {
		view := snapshot.Visual.Views[name]
		if view.Absent || view.Ref == "" {
			continue
		}
		ref, err := cleanRef(view.Ref)
		if err != nil {
			return &PersistenceError{Op: "save", Path: view.Ref, Message: "invalid artifact reference", Cause: err}
		}
		refs = append(refs, ref)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyLimit)
	for _, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src := filepath.Join(artifactRoot, ref)
			if err := copyFile(src, filepath.Join(staging, ref)); err != nil {
				return &PersistenceError{Op: "save", Path: src, Message: "failed to copy image", Cause: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// HistoryEntry is one dated baseline copy.
type HistoryEntry struct {
	Stamp     string    `json:"stamp"`
	Dir       string    `json:"dir"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	TargetURL string    `json:"target_url"`
}

// History lists dated baseline copies, newest first.
func (s *Store) History() ([]HistoryEntry, error) {
	dir := filepath.Join(s.root, HistoryDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "history", Path: dir, Message: "failed to list history", Cause: err}
	}

	var out []HistoryEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), BaselineFile)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var head struct {
			ID        string    `json:"id"`
			Timestamp time.Time `json:"timestamp"`
			TargetURL string    `json:"target_url"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			continue
		}
		out = append(out, HistoryEntry{
			Stamp:     e.Name(),
			Dir:       filepath.Join(dir, e.Name()),
			ID:        head.ID,
			Timestamp: head.Timestamp,
			TargetURL: head.TargetURL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stamp > out[j].Stamp })
	return out, nil
}

// SaveReport writes a comparison report artifact under reports/ and returns its path.
func (s *Store) SaveReport(name string, data []byte) (string, error) {
	dir := filepath.Join(s.root, ReportsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &PersistenceError{Op: "report", Path: dir, Message: "failed to create reports directory", Cause: err}
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := writeFileAtomic(path, data); err != nil {
		return "", &PersistenceError{Op: "report", Path: path, Message: "failed to write report", Cause: err}
	}
	return path, nil
}

// SaveBaselineReport writes the human-readable baseline summary next to baseline.json.
func (s *Store) SaveBaselineReport(markdown []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", &PersistenceError{Op: "report", Path: s.root, Message: "failed to create store root", Cause: err}
	}
	path := filepath.Join(s.root, BaselineReportFile)
	if err := writeFileAtomic(path, markdown); err != nil {
		return "", &PersistenceError{Op: "report", Path: path, Message: "failed to write baseline report", Cause: err}
	}
	return path, nil
}

// ReportName returns a timestamped report file name with the given extension.
func ReportName(t time.Time, ext string) string {
	return fmt.Sprintf("regression-%s.%s", t.UTC().Format(stampFormat), strings.TrimPrefix(ext, "."))
}

func cleanRef(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || !strings.HasPrefix(clean, VisualDir+string(filepath.Separator)) {
		return "", fmt.Errorf("reference %q is not under %s/", ref, VisualDir)
	}
	return clean, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}
