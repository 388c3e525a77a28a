package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

// entryPayload is the event-specific part of a provenance row, stored as one
// JSON object keyed by payload kind.
type entryPayload struct {
	Created           *model.CreatedPayload           `json:"created,omitempty"`
	Accessed          *model.AccessedPayload          `json:"accessed,omitempty"`
	Modified          *model.ModifiedPayload          `json:"modified,omitempty"`
	Reconsolidated    *model.ReconsolidatedPayload    `json:"reconsolidated,omitempty"`
	Link              *model.LinkPayload              `json:"link,omitempty"`
	ImportanceChanged *model.ImportanceChangedPayload `json:"importance_changed,omitempty"`
	Consolidated      *model.ConsolidatedPayload      `json:"consolidated,omitempty"`
	Archived          *model.ArchivedPayload          `json:"archived,omitempty"`
}

// AppendProvenance validates structure, assigns id and timestamp, and stores
// the entry. The log never rejects a well-formed entry for business reasons.
func (s *SQLite) AppendProvenance(ctx context.Context, e *model.ProvenanceEntry) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	id, err := s.appendProvenanceTx(ctx, tx, e)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return id, nil
}

func (s *SQLite) appendProvenanceTx(ctx context.Context, tx *sql.Tx, e *model.ProvenanceEntry) (string, error) {
	if err := model.ValidateEntry(e); err != nil {
		return "", err
	}

	e.ID = s.gen.Generate("prov")
	e.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(entryPayload{
		Created: e.Created, Accessed: e.Accessed, Modified: e.Modified,
		Reconsolidated: e.Reconsolidated, Link: e.Link,
		ImportanceChanged: e.ImportanceChanged, Consolidated: e.Consolidated,
		Archived: e.Archived,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var version any
	if e.Version > 0 {
		version = e.Version
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO provenance (id, memory_id, event_type, session_id, version, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MemoryID, e.EventType, nullStr(e.SessionID), version,
		string(payload), e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("%w: append provenance: %v", model.ErrStorage, err)
	}
	return e.ID, nil
}

// ProvenanceHistory returns a memory's entries in creation order. Limit <= 0
// returns the full history; offset paginates.
func (s *SQLite) ProvenanceHistory(ctx context.Context, memoryID string, limit, offset int) ([]model.ProvenanceEntry, error) {
	query := `SELECT id, memory_id, event_type, session_id, version, payload, created_at
	          FROM provenance WHERE memory_id = ? ORDER BY rowid`
	args := []any{memoryID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	} else if offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, offset)
	}
	return s.queryProvenance(ctx, query, args...)
}

// AllProvenance returns every entry in creation order.
func (s *SQLite) AllProvenance(ctx context.Context) ([]model.ProvenanceEntry, error) {
	return s.queryProvenance(ctx,
		`SELECT id, memory_id, event_type, session_id, version, payload, created_at
		 FROM provenance ORDER BY rowid`)
}

func (s *SQLite) queryProvenance(ctx context.Context, query string, args ...any) ([]model.ProvenanceEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query provenance: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var entries []model.ProvenanceEntry
	for rows.Next() {
		var e model.ProvenanceEntry
		var sessionID sql.NullString
		var version sql.NullInt64
		var payload, createdAt string

		if err := rows.Scan(&e.ID, &e.MemoryID, &e.EventType, &sessionID, &version, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan provenance: %v", model.ErrStorage, err)
		}
		if sessionID.Valid {
			e.SessionID = sessionID.String
		}
		if version.Valid {
			e.Version = int(version.Int64)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		var p entryPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", model.ErrStorage, err)
		}
		e.Created, e.Accessed, e.Modified = p.Created, p.Accessed, p.Modified
		e.Reconsolidated, e.Link = p.Reconsolidated, p.Link
		e.ImportanceChanged, e.Consolidated, e.Archived = p.ImportanceChanged, p.Consolidated, p.Archived

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
