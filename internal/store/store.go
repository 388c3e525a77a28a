// Package store provides the persistence collaborator: the storage interface
// and its SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

// Filter selects candidate memories. Ranking is applied on top by the
// retrieval engine; the store only narrows the candidate set.
type Filter struct {
	Text            string
	Types           []model.MemoryType
	Importance      []model.Importance
	Tags            []string // any-match
	Since           *time.Time
	Until           *time.Time
	MinConfidence   *float64
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Patch is a field-level update to a memory. Nil fields are left unchanged.
// The patched record is re-validated before it is written.
type Patch struct {
	Content         *string
	Context         *string
	Importance      *model.Importance
	Tags            *[]string
	IsConsolidated  *bool
	Confidence      *float64  // semantic only
	SourceMemoryIDs *[]string // semantic only
	ContradictsIDs  *[]string // semantic only
}

// ReconMutation bundles everything one labile update changes: the field
// patch, the update recorded on the open event, the provenance entries
// logging it, and an optional archival for a belief weakened below the
// deletion threshold. The store applies all of it in one transaction.
type ReconMutation struct {
	Patch     Patch
	Update    model.AppliedUpdate
	Entries   []*model.ProvenanceEntry
	ArchiveAt *time.Time
}

// SnapshotRecord is the stored metadata of one exported snapshot.
type SnapshotRecord struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	ExportedAt  time.Time `json:"exported_at"`
	Checksum    string    `json:"checksum"`
	MemoryCount int       `json:"memory_count"`
}

// Store is the persistence contract consumed by the engine components.
type Store interface {
	// CreateMemory validates and persists a new memory and its `created`
	// provenance entry in one transaction.
	CreateMemory(ctx context.Context, m *model.Memory) error

	// GetMemory returns a consistent snapshot of one memory.
	GetMemory(ctx context.Context, id string) (*model.Memory, error)

	// MemoryExists reports whether an id resolves, archived included.
	MemoryExists(ctx context.Context, id string) (bool, error)

	// UpdateMemory applies a patch, re-validates and persists the record.
	UpdateMemory(ctx context.Context, id string, p Patch) (*model.Memory, error)

	// RecordAccess bumps access_count and last_accessed, appending the
	// `accessed` provenance entry in the same transaction.
	RecordAccess(ctx context.Context, id string, at time.Time, entry *model.ProvenanceEntry) error

	// ArchiveMemory and RestoreMemory toggle the logical-delete marker.
	ArchiveMemory(ctx context.Context, id string, at time.Time) error
	RestoreMemory(ctx context.Context, id string) error

	// QueryMemories returns candidates matching the filter.
	QueryMemories(ctx context.Context, f Filter) ([]model.Memory, error)

	// AppendProvenance stores an entry, assigning id and timestamp.
	// It never rejects a well-formed entry for business reasons.
	AppendProvenance(ctx context.Context, e *model.ProvenanceEntry) (string, error)

	// ProvenanceHistory returns a memory's entries in creation order.
	ProvenanceHistory(ctx context.Context, memoryID string, limit, offset int) ([]model.ProvenanceEntry, error)

	// AllProvenance returns every entry in creation order (for export).
	AllProvenance(ctx context.Context) ([]model.ProvenanceEntry, error)

	// OpenReconEvent persists a new open-window event. It fails with
	// ErrWindowAlreadyOpen when the memory already has an open window;
	// the uniqueness is enforced by the storage layer, not the caller.
	OpenReconEvent(ctx context.Context, e *model.ReconsolidationEvent) error

	// OpenWindowFor returns the open event for a memory, or nil.
	OpenWindowFor(ctx context.Context, memoryID string) (*model.ReconsolidationEvent, error)

	// ApplyReconUpdate applies a mutation to a labile memory in one
	// transaction, so the memory can never end up changed while the
	// change is unlogged. It fails with ErrNoActiveLabilityWindow when
	// the event is already closed.
	ApplyReconUpdate(ctx context.Context, memoryID, eventID string, mu ReconMutation) (*model.Memory, error)

	// CloseReconEvent sets the window end and final state, logging the
	// `reconsolidated` provenance entry atomically with the close.
	CloseReconEvent(ctx context.Context, e *model.ReconsolidationEvent, end time.Time, final model.FinalState, timedOut bool) error

	// LastClosedWindowEnd returns the most recent window close for a
	// memory, or nil when it has never been reconsolidated.
	LastClosedWindowEnd(ctx context.Context, memoryID string) (*time.Time, error)

	// ReconEvents returns a memory's events, oldest first.
	ReconEvents(ctx context.Context, memoryID string) ([]model.ReconsolidationEvent, error)

	// AllReconEvents returns every event (for export).
	AllReconEvents(ctx context.Context) ([]model.ReconsolidationEvent, error)

	// GetSelfSchema returns the agent's schema, or ErrNotFound.
	GetSelfSchema(ctx context.Context, agentID string) (*model.SelfSchema, error)

	// PutSelfSchema stores the agent's schema.
	PutSelfSchema(ctx context.Context, s *model.SelfSchema) error

	// SaveSnapshot records an export; ListSnapshots returns them newest first.
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error
	ListSnapshots(ctx context.Context) ([]SnapshotRecord, error)

	// Close releases the store handle.
	Close() error
}
