// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/source"
)

// FileAdapter is an Adapter backed by a single JSON snapshot file,
// rewritten atomically (write-then-rename) after every mutation. It
// exists so cmd/atlas's `ingest resume`/`ingest retry-dlq` can recover
// checkpoint and DLQ state across separate process invocations, which
// MemoryAdapter (a single process's lifetime only) cannot do. spec.md
// §1 treats the backing store as an assumed "DatabaseAdapter"; this is
// the documented swap-in for a CLI that runs once per invocation
// rather than as a long-lived service.
//
// Grounded on pkg/registry's write-then-rename-under-lock discipline
// (pkg/registry/registry.go's writeFile), generalized from three
// NDJSON files to one JSON snapshot of the whole Adapter surface.
type FileAdapter struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	mem  *MemoryAdapter
}

// snapshot is the on-disk representation of a FileAdapter's state.
type snapshot struct {
	Sources     map[string]source.Source   `json:"sources"`
	Artifacts   map[string]Artifact        `json:"artifacts"`
	Heads       map[string]string          `json:"heads"`
	Events      []Event                    `json:"events"`
	DLQ         map[string]DLQEntry        `json:"dlq"`
	Checkpoints map[string]CheckpointState `json:"checkpoints"`
}

// NewFileAdapter constructs a FileAdapter rooted at path on fs, loading
// any existing snapshot. A missing file is treated as empty state
// (first run), matching pkg/registry.Registry.Load's convention.
func NewFileAdapter(fs afero.Fs, path string) (*FileAdapter, error) {
	a := &FileAdapter{fs: fs, path: path, mem: NewMemoryAdapter()}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "stat adapter snapshot", err)
	}
	if !exists {
		return a, nil
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "read adapter snapshot", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "decode adapter snapshot", err)
	}
	a.mem.restore(snap)
	return a, nil
}

// persistLocked serializes the in-memory state and rewrites the
// snapshot file atomically. Caller must hold a.mu.
func (a *FileAdapter) persistLocked() error {
	snap := a.mem.snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errs.Wrap(errs.SchemaError, "encode adapter snapshot", err)
	}
	tmp := a.path + ".tmp"
	if err := afero.WriteFile(a.fs, tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.StorageError, "write adapter snapshot", err)
	}
	if err := a.fs.Rename(tmp, a.path); err != nil {
		return errs.Wrap(errs.StorageError, "rename adapter snapshot", err)
	}
	return nil
}

func (a *FileAdapter) UpsertSource(s source.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.UpsertSource(s); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) GetSource(id string) (source.Source, bool, error) {
	return a.mem.GetSource(id)
}

func (a *FileAdapter) ListSources() ([]source.Source, error) {
	return a.mem.ListSources()
}

func (a *FileAdapter) InsertArtifact(art Artifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.InsertArtifact(art); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) GetArtifact(id string) (Artifact, bool, error) {
	return a.mem.GetArtifact(id)
}

func (a *FileAdapter) GetHead(jurisdictionID string) (string, bool, error) {
	return a.mem.GetHead(jurisdictionID)
}

func (a *FileAdapter) SetHead(jurisdictionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.SetHead(jurisdictionID, artifactID); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) AppendEvent(e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.AppendEvent(e); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) ListEvents(runID string) ([]Event, error) {
	return a.mem.ListEvents(runID)
}

func (a *FileAdapter) UpsertDLQ(e DLQEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.UpsertDLQ(e); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) GetDLQ(id string) (DLQEntry, bool, error) {
	return a.mem.GetDLQ(id)
}

func (a *FileAdapter) ListRetryableDLQ(limit int, now time.Time) ([]DLQEntry, error) {
	return a.mem.ListRetryableDLQ(limit, now)
}

func (a *FileAdapter) SaveCheckpoint(c CheckpointState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mem.SaveCheckpoint(c); err != nil {
		return err
	}
	return a.persistLocked()
}

func (a *FileAdapter) GetCheckpoint(id string) (CheckpointState, bool, error) {
	return a.mem.GetCheckpoint(id)
}

var _ Adapter = (*FileAdapter)(nil)
