// Package export serializes the whole memory system into a checksummed,
// self-describing snapshot and reads it back.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// SchemaVersion is the snapshot format version.
const SchemaVersion = 1

// ErrChecksumMismatch means a snapshot was altered after export.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// MemorySystemSnapshot is the complete exported state: every memory
// (archived included), the self-schema, the full provenance log and all
// reconsolidation events. Checksum is the sha256 hex of the canonical JSON
// with the checksum field blanked.
type MemorySystemSnapshot struct {
	ExportedAt    time.Time                    `json:"exported_at"`
	AgentID       string                       `json:"agent_id"`
	SchemaVersion int                          `json:"schema_version"`
	Memories      []model.Memory               `json:"memories"`
	SelfSchema    *model.SelfSchema            `json:"self_schema,omitempty"`
	Provenance    []model.ProvenanceEntry      `json:"provenance"`
	ReconEvents   []model.ReconsolidationEvent `json:"recon_events"`
	Checksum      string                       `json:"checksum"`
}

// Snapshot exports the full system state for one agent.
func Snapshot(ctx context.Context, s store.Store, agentID string) (*MemorySystemSnapshot, error) {
	memories, err := s.QueryMemories(ctx, store.Filter{IncludeArchived: true, Limit: -1})
	if err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}
	provenance, err := s.AllProvenance(ctx)
	if err != nil {
		return nil, fmt.Errorf("export provenance: %w", err)
	}
	events, err := s.AllReconEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("export recon events: %w", err)
	}
	schema, err := s.GetSelfSchema(ctx, agentID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("export self-schema: %w", err)
	}

	snap := &MemorySystemSnapshot{
		ExportedAt:    time.Now().UTC().Truncate(time.Second),
		AgentID:       agentID,
		SchemaVersion: SchemaVersion,
		Memories:      memories,
		SelfSchema:    schema,
		Provenance:    provenance,
		ReconEvents:   events,
	}
	sum, err := checksum(snap)
	if err != nil {
		return nil, err
	}
	snap.Checksum = sum
	return snap, nil
}

// Verify recomputes the checksum and compares it against the recorded one.
func Verify(snap *MemorySystemSnapshot) error {
	sum, err := checksum(snap)
	if err != nil {
		return err
	}
	if sum != snap.Checksum {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrChecksumMismatch, snap.Checksum, sum)
	}
	return nil
}

func checksum(snap *MemorySystemSnapshot) (string, error) {
	clone := *snap
	clone.Checksum = ""
	b, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// WriteJSON writes the snapshot as indented JSON.
func WriteJSON(w io.Writer, snap *MemorySystemSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadJSON decodes a snapshot and verifies its checksum.
func ReadJSON(r io.Reader) (*MemorySystemSnapshot, error) {
	var snap MemorySystemSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := Verify(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Import re-creates the snapshot's memories and self-schema after verifying
// the checksum. Memories that already exist are skipped; each imported
// memory gets a `restored` provenance entry marking the import.
func Import(ctx context.Context, s store.Store, snap *MemorySystemSnapshot) (int, error) {
	if err := Verify(snap); err != nil {
		return 0, err
	}

	imported := 0
	for i := range snap.Memories {
		m := snap.Memories[i]
		exists, err := s.MemoryExists(ctx, m.ID)
		if err != nil {
			return imported, err
		}
		if exists {
			continue
		}
		if err := s.CreateMemory(ctx, &m); err != nil {
			return imported, fmt.Errorf("import %s: %w", m.ID, err)
		}
		if _, err := s.AppendProvenance(ctx, &model.ProvenanceEntry{
			MemoryID:  m.ID,
			EventType: model.EventRestored,
		}); err != nil {
			return imported, err
		}
		imported++
	}

	if snap.SelfSchema != nil {
		if err := s.PutSelfSchema(ctx, snap.SelfSchema); err != nil {
			return imported, err
		}
	}
	return imported, nil
}

// Record builds the stored metadata row for a snapshot.
func Record(snap *MemorySystemSnapshot) store.SnapshotRecord {
	return store.SnapshotRecord{
		AgentID:     snap.AgentID,
		ExportedAt:  snap.ExportedAt,
		Checksum:    snap.Checksum,
		MemoryCount: len(snap.Memories),
	}
}
