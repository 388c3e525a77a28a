package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

// OpenReconEvent persists a new open-window event. The partial unique index
// on (memory_id) WHERE window_end IS NULL makes this a compare-and-set: a
// concurrent open on the same memory loses with ErrWindowAlreadyOpen.
func (s *SQLite) OpenReconEvent(ctx context.Context, e *model.ReconsolidationEvent) error {
	if e.ID == "" {
		e.ID = s.gen.Generate("rcn")
	}
	updates, err := json.Marshal(e.Updates)
	if err != nil {
		return fmt.Errorf("marshal updates: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recon_events (id, memory_id, window_start, window_end,
		                           retrieval_trigger, trigger_context, updates, final_state)
		 VALUES (?, ?, ?, NULL, ?, ?, ?, NULL)`,
		e.ID, e.MemoryID, e.WindowStart.UTC().Format(time.RFC3339Nano),
		e.Trigger, nullStr(e.TriggerContext), string(updates))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: memory %s", model.ErrWindowAlreadyOpen, e.MemoryID)
		}
		return fmt.Errorf("%w: open recon event: %v", model.ErrStorage, err)
	}
	return nil
}

// OpenWindowFor returns the open event for a memory, or nil when stable.
func (s *SQLite) OpenWindowFor(ctx context.Context, memoryID string) (*model.ReconsolidationEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reconColumns+` FROM recon_events
		 WHERE memory_id = ? AND window_end IS NULL`, memoryID)
	e, err := scanReconEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open window: %v", model.ErrStorage, err)
	}
	return &e, nil
}

// ApplyReconUpdate applies one labile mutation atomically: the field patch,
// the update appended to the open event, the provenance entries logging it,
// and the optional archival. A failure in any step rolls back all of them,
// so a memory can never end up mutated while the mutation is unlogged.
func (s *SQLite) ApplyReconUpdate(ctx context.Context, memoryID, eventID string, mu ReconMutation) (*model.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	m, err := s.applyPatchTx(ctx, tx, memoryID, mu.Patch)
	if err != nil {
		return nil, err
	}

	if err := s.appendReconUpdateTx(ctx, tx, eventID, mu.Update); err != nil {
		return nil, err
	}

	for _, e := range mu.Entries {
		if _, err := s.appendProvenanceTx(ctx, tx, e); err != nil {
			return nil, err
		}
	}

	if mu.ArchiveAt != nil {
		at := mu.ArchiveAt.UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET archived_at = ? WHERE id = ? AND archived_at IS NULL`,
			at.Format(time.RFC3339Nano), memoryID); err != nil {
			return nil, fmt.Errorf("%w: archive: %v", model.ErrStorage, err)
		}
		m.ArchivedAt = &at
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return m, nil
}

// appendReconUpdateTx appends one applied update to an open event. A closed
// event rejects the append with ErrNoActiveLabilityWindow.
func (s *SQLite) appendReconUpdateTx(ctx context.Context, tx *sql.Tx, eventID string, u model.AppliedUpdate) error {
	var raw string
	var end sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT updates, window_end FROM recon_events WHERE id = ?`, eventID).Scan(&raw, &end)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	if err != nil {
		return fmt.Errorf("%w: read event: %v", model.ErrStorage, err)
	}
	if end.Valid {
		return fmt.Errorf("%w: event %s is closed", model.ErrNoActiveLabilityWindow, eventID)
	}

	var updates []model.AppliedUpdate
	if raw != "" {
		json.Unmarshal([]byte(raw), &updates)
	}
	updates = append(updates, u)
	b, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("marshal updates: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE recon_events SET updates = ? WHERE id = ?`, string(b), eventID); err != nil {
		return fmt.Errorf("%w: append update: %v", model.ErrStorage, err)
	}
	return nil
}

// CloseReconEvent sets window end and final state, and appends the
// `reconsolidated` provenance entry in the same transaction: the window can
// never end up closed while its closure is unlogged. Closing an
// already-closed event is a protocol violation.
func (s *SQLite) CloseReconEvent(ctx context.Context, e *model.ReconsolidationEvent, end time.Time, final model.FinalState, timedOut bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE recon_events SET window_end = ?, final_state = ?
		 WHERE id = ? AND window_end IS NULL`,
		end.UTC().Format(time.RFC3339Nano), final, e.ID)
	if err != nil {
		return fmt.Errorf("%w: close event: %v", model.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: event %s", model.ErrNoActiveLabilityWindow, e.ID)
	}

	entry := &model.ProvenanceEntry{
		MemoryID:  e.MemoryID,
		EventType: model.EventReconsolidated,
		Reconsolidated: &model.ReconsolidatedPayload{
			EventID:    e.ID,
			FinalState: final,
			Updates:    len(e.Updates),
			TimedOut:   timedOut,
		},
	}
	if _, err := s.appendProvenanceTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

// LastClosedWindowEnd returns the latest window close for a memory, if any.
func (s *SQLite) LastClosedWindowEnd(ctx context.Context, memoryID string) (*time.Time, error) {
	var end string
	err := s.db.QueryRowContext(ctx,
		`SELECT window_end FROM recon_events
		 WHERE memory_id = ? AND window_end IS NOT NULL
		 ORDER BY window_end DESC LIMIT 1`, memoryID).Scan(&end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: last window: %v", model.ErrStorage, err)
	}
	t, err := time.Parse(time.RFC3339Nano, end)
	if err != nil {
		return nil, fmt.Errorf("%w: parse window end: %v", model.ErrStorage, err)
	}
	return &t, nil
}

// ReconEvents returns a memory's events, oldest first.
func (s *SQLite) ReconEvents(ctx context.Context, memoryID string) ([]model.ReconsolidationEvent, error) {
	return s.queryReconEvents(ctx,
		`SELECT `+reconColumns+` FROM recon_events WHERE memory_id = ? ORDER BY rowid`, memoryID)
}

// AllReconEvents returns every event, oldest first.
func (s *SQLite) AllReconEvents(ctx context.Context) ([]model.ReconsolidationEvent, error) {
	return s.queryReconEvents(ctx, `SELECT `+reconColumns+` FROM recon_events ORDER BY rowid`)
}

const reconColumns = `id, memory_id, window_start, window_end, retrieval_trigger,
	trigger_context, updates, final_state`

func scanReconEvent(row scanner) (model.ReconsolidationEvent, error) {
	var e model.ReconsolidationEvent
	var windowStart string
	var windowEnd, triggerCtx, updates, finalState sql.NullString

	err := row.Scan(&e.ID, &e.MemoryID, &windowStart, &windowEnd, &e.Trigger,
		&triggerCtx, &updates, &finalState)
	if err != nil {
		return e, err
	}

	e.WindowStart, _ = time.Parse(time.RFC3339Nano, windowStart)
	if windowEnd.Valid {
		t, _ := time.Parse(time.RFC3339Nano, windowEnd.String)
		e.WindowEnd = &t
	}
	if triggerCtx.Valid {
		e.TriggerContext = triggerCtx.String
	}
	if updates.Valid && updates.String != "" {
		json.Unmarshal([]byte(updates.String), &e.Updates)
	}
	if finalState.Valid {
		e.FinalState = model.FinalState(finalState.String)
	}
	return e, nil
}

func (s *SQLite) queryReconEvents(ctx context.Context, query string, args ...any) ([]model.ReconsolidationEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query recon events: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var events []model.ReconsolidationEvent
	for rows.Next() {
		e, err := scanReconEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan recon event: %v", model.ErrStorage, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
