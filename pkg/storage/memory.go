// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/voterprotocol/shadowatlas/pkg/source"
)

// MemoryAdapter is an in-process Adapter implementation. Each table is
// guarded by its own RWMutex (spec.md §5: "mutating operations serialize
// under a per-table lock"), matching pkg/storage/embedded.go's single
// top-level mutex generalized to one lock per concern.
type MemoryAdapter struct {
	sourcesMu sync.RWMutex
	sources   map[string]source.Source

	artifactsMu sync.RWMutex
	artifacts   map[string]Artifact

	headsMu sync.RWMutex
	heads   map[string]string

	eventsMu sync.RWMutex
	events   []Event

	dlqMu sync.RWMutex
	dlq   map[string]DLQEntry

	checkpointsMu sync.RWMutex
	checkpoints   map[string]CheckpointState
}

// NewMemoryAdapter constructs an empty in-memory Adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		sources:     make(map[string]source.Source),
		artifacts:   make(map[string]Artifact),
		heads:       make(map[string]string),
		dlq:         make(map[string]DLQEntry),
		checkpoints: make(map[string]CheckpointState),
	}
}

func (m *MemoryAdapter) UpsertSource(s source.Source) error {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()
	m.sources[s.ID] = s
	return nil
}

func (m *MemoryAdapter) GetSource(id string) (source.Source, bool, error) {
	m.sourcesMu.RLock()
	defer m.sourcesMu.RUnlock()
	s, ok := m.sources[id]
	return s, ok, nil
}

func (m *MemoryAdapter) ListSources() ([]source.Source, error) {
	m.sourcesMu.RLock()
	defer m.sourcesMu.RUnlock()
	out := make([]source.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) InsertArtifact(a Artifact) error {
	m.artifactsMu.Lock()
	defer m.artifactsMu.Unlock()
	// Artifacts are immutable; re-inserting the same ID is a no-op, not
	// an overwrite, matching spec.md §3's "artifacts are never mutated".
	if _, exists := m.artifacts[a.ID]; exists {
		return nil
	}
	m.artifacts[a.ID] = a
	return nil
}

func (m *MemoryAdapter) GetArtifact(id string) (Artifact, bool, error) {
	m.artifactsMu.RLock()
	defer m.artifactsMu.RUnlock()
	a, ok := m.artifacts[id]
	return a, ok, nil
}

func (m *MemoryAdapter) GetHead(jurisdictionID string) (string, bool, error) {
	m.headsMu.RLock()
	defer m.headsMu.RUnlock()
	id, ok := m.heads[jurisdictionID]
	return id, ok, nil
}

func (m *MemoryAdapter) SetHead(jurisdictionID, artifactID string) error {
	m.headsMu.Lock()
	defer m.headsMu.Unlock()
	m.heads[jurisdictionID] = artifactID
	return nil
}

func (m *MemoryAdapter) AppendEvent(e Event) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryAdapter) ListEvents(runID string) ([]Event, error) {
	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	out := make([]Event, 0)
	for _, e := range m.events {
		if runID == "" || e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryAdapter) UpsertDLQ(e DLQEntry) error {
	m.dlqMu.Lock()
	defer m.dlqMu.Unlock()
	m.dlq[e.ID] = e
	return nil
}

func (m *MemoryAdapter) GetDLQ(id string) (DLQEntry, bool, error) {
	m.dlqMu.RLock()
	defer m.dlqMu.RUnlock()
	e, ok := m.dlq[id]
	return e, ok, nil
}

func (m *MemoryAdapter) ListRetryableDLQ(limit int, now time.Time) ([]DLQEntry, error) {
	m.dlqMu.RLock()
	defer m.dlqMu.RUnlock()

	var candidates []DLQEntry
	for _, e := range m.dlq {
		if e.Status != DLQPending && e.Status != DLQRetrying {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastAttemptAt.Before(candidates[j].LastAttemptAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *MemoryAdapter) SaveCheckpoint(c CheckpointState) error {
	m.checkpointsMu.Lock()
	defer m.checkpointsMu.Unlock()
	m.checkpoints[c.ID] = c
	return nil
}

func (m *MemoryAdapter) GetCheckpoint(id string) (CheckpointState, bool, error) {
	m.checkpointsMu.RLock()
	defer m.checkpointsMu.RUnlock()
	c, ok := m.checkpoints[id]
	return c, ok, nil
}

// snapshot copies every table into a plain snapshot value for
// serialization by FileAdapter. Locks each table independently, same
// as every other read path here.
func (m *MemoryAdapter) snapshot() snapshot {
	m.sourcesMu.RLock()
	sources := make(map[string]source.Source, len(m.sources))
	for k, v := range m.sources {
		sources[k] = v
	}
	m.sourcesMu.RUnlock()

	m.artifactsMu.RLock()
	artifacts := make(map[string]Artifact, len(m.artifacts))
	for k, v := range m.artifacts {
		artifacts[k] = v
	}
	m.artifactsMu.RUnlock()

	m.headsMu.RLock()
	heads := make(map[string]string, len(m.heads))
	for k, v := range m.heads {
		heads[k] = v
	}
	m.headsMu.RUnlock()

	m.eventsMu.RLock()
	events := make([]Event, len(m.events))
	copy(events, m.events)
	m.eventsMu.RUnlock()

	m.dlqMu.RLock()
	dlq := make(map[string]DLQEntry, len(m.dlq))
	for k, v := range m.dlq {
		dlq[k] = v
	}
	m.dlqMu.RUnlock()

	m.checkpointsMu.RLock()
	checkpoints := make(map[string]CheckpointState, len(m.checkpoints))
	for k, v := range m.checkpoints {
		checkpoints[k] = v
	}
	m.checkpointsMu.RUnlock()

	return snapshot{
		Sources:     sources,
		Artifacts:   artifacts,
		Heads:       heads,
		Events:      events,
		DLQ:         dlq,
		Checkpoints: checkpoints,
	}
}

// restore replaces every table's contents with snap's, used only by
// FileAdapter on load, before any concurrent access is possible.
func (m *MemoryAdapter) restore(snap snapshot) {
	if snap.Sources != nil {
		m.sources = snap.Sources
	}
	if snap.Artifacts != nil {
		m.artifacts = snap.Artifacts
	}
	if snap.Heads != nil {
		m.heads = snap.Heads
	}
	if snap.Events != nil {
		m.events = snap.Events
	}
	if snap.DLQ != nil {
		m.dlq = snap.DLQ
	}
	if snap.Checkpoints != nil {
		m.checkpoints = snap.Checkpoints
	}
}

var _ Adapter = (*MemoryAdapter)(nil)
