package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

// GetSelfSchema returns the agent's self-schema, or ErrNotFound.
func (s *SQLite) GetSelfSchema(ctx context.Context, agentID string) (*model.SelfSchema, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM self_schemas WHERE agent_id = ?`, agentID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: self-schema for agent %s", model.ErrNotFound, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get self-schema: %v", model.ErrStorage, err)
	}

	var schema model.SelfSchema
	if err := json.Unmarshal([]byte(doc), &schema); err != nil {
		return nil, fmt.Errorf("%w: decode self-schema: %v", model.ErrStorage, err)
	}
	return &schema, nil
}

// PutSelfSchema stores (or replaces) the agent's self-schema.
func (s *SQLite) PutSelfSchema(ctx context.Context, schema *model.SelfSchema) error {
	doc, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal self-schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO self_schemas (agent_id, doc, version, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET doc = excluded.doc,
		     version = excluded.version, updated_at = excluded.updated_at`,
		schema.AgentID, string(doc), schema.Version,
		schema.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: put self-schema: %v", model.ErrStorage, err)
	}
	return nil
}

// SaveSnapshot records the metadata of one export.
func (s *SQLite) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	if rec.ID == "" {
		rec.ID = s.gen.Generate("snap")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, agent_id, exported_at, checksum, memory_count)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentID, rec.ExportedAt.UTC().Format(time.RFC3339Nano),
		rec.Checksum, rec.MemoryCount)
	if err != nil {
		return fmt.Errorf("%w: save snapshot: %v", model.ErrStorage, err)
	}
	return nil
}

// ListSnapshots returns export records, newest first.
func (s *SQLite) ListSnapshots(ctx context.Context) ([]SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, exported_at, checksum, memory_count
		 FROM snapshots ORDER BY exported_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var recs []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var exportedAt string
		if err := rows.Scan(&r.ID, &r.AgentID, &exportedAt, &r.Checksum, &r.MemoryCount); err != nil {
			return nil, fmt.Errorf("%w: scan snapshot: %v", model.ErrStorage, err)
		}
		r.ExportedAt, _ = time.Parse(time.RFC3339Nano, exportedAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
