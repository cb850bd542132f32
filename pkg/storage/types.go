// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage defines the Adapter interface that exclusively owns
// Shadow Atlas's persisted state (sources, artifacts, heads, events,
// DLQ rows, checkpoints — spec.md §3 "Ownership"), plus MemoryAdapter,
// an in-process reference implementation.
//
// Grounded on pkg/storage/embedded.go's Backend-interface-plus-single-
// implementation shape from the teacher repo: a narrow interface here
// lets a real SQL/KV adapter be swapped in later without touching any
// caller, exactly as EmbeddedBackend is one of several possible
// Backend implementations there.
package storage

import (
	"time"

	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/source"
)

// Artifact is the immutable content-addressed snapshot spec.md §3
// defines. Once inserted, an Artifact is never mutated.
type Artifact struct {
	ID             string
	JurisdictionID string
	ContentSHA256  string
	RecordCount    int
	BBox           *boundary.BBox
	ETag           string
	LastModified   string
	CreatedAt      time.Time
}

// EventKind discriminates the kinds of provenance event C8 logs.
type EventKind string

const (
	EventFetch  EventKind = "FETCH"
	EventUpdate EventKind = "UPDATE"
	EventError  EventKind = "ERROR"
	EventSkip   EventKind = "SKIP"
)

// Event is an append-only provenance record (spec.md §3).
type Event struct {
	ID             string
	RunID          string
	JurisdictionID string
	Kind           EventKind
	Payload        map[string]any
	DurationMS     *int64
	Error          string
	Ts             time.Time
}

// DLQStatus is the C3 state-machine status.
type DLQStatus string

const (
	DLQPending   DLQStatus = "pending"
	DLQRetrying  DLQStatus = "retrying"
	DLQExhausted DLQStatus = "exhausted"
	DLQResolved  DLQStatus = "resolved"
)

// DLQEntry is a persistent record of a failed download (spec.md §3).
type DLQEntry struct {
	ID            string
	JobID         string
	URL           string
	Layer         string
	StateFIPS     string // empty means national
	Year          int
	AttemptCount  int
	MaxAttempts   int
	LastError     string
	LastAttemptAt time.Time
	NextRetryAt   *time.Time
	Status        DLQStatus
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// CheckpointState is the persisted batch-progress record (spec.md §3).
type CheckpointState struct {
	ID                 string
	StartedAt          time.Time
	UpdatedAt          time.Time
	CompletedStates    []string
	FailedStates       []string
	PendingStates      []string
	Options            BatchOptionsSnapshot
	CircuitOpen        bool
	ConsecutiveFailures int
	BoundaryCount      int
}

// BatchOptionsSnapshot is the subset of batch orchestrator options a
// checkpoint must preserve verbatim to support resume (spec.md §4.7).
type BatchOptionsSnapshot struct {
	States                  []string
	Layers                  []string
	Year                    int
	MaxConcurrentStates     int
	CircuitBreakerThreshold int
	ForceRefresh            bool
}

// Adapter is the persisted-state interface every other Shadow Atlas
// package depends on instead of a concrete database. spec.md §1 treats
// the concrete "DatabaseAdapter" as an assumed external collaborator;
// this interface is that assumption made concrete and swappable.
type Adapter interface {
	// Sources
	UpsertSource(s source.Source) error
	GetSource(id string) (source.Source, bool, error)
	ListSources() ([]source.Source, error)

	// Artifacts (immutable; insert-only)
	InsertArtifact(a Artifact) error
	GetArtifact(id string) (Artifact, bool, error)

	// Heads
	GetHead(jurisdictionID string) (artifactID string, ok bool, err error)
	SetHead(jurisdictionID, artifactID string) error

	// Events (append-only)
	AppendEvent(e Event) error
	ListEvents(runID string) ([]Event, error)

	// DLQ
	UpsertDLQ(e DLQEntry) error
	GetDLQ(id string) (DLQEntry, bool, error)
	ListRetryableDLQ(limit int, now time.Time) ([]DLQEntry, error)

	// Checkpoints
	SaveCheckpoint(c CheckpointState) error
	GetCheckpoint(id string) (CheckpointState, bool, error)
}
