// Package recon implements the reconsolidation engine: the Stable -> Labile
// -> Stable state machine that permits auditable mutation of a memory while
// its lability window is open.
package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// Engine coordinates lability windows over the store. The "at most one open
// window per memory" invariant is enforced twice: by the per-memory lock
// here and by the storage layer's compare-and-set on window state.
type Engine struct {
	store store.Store
	cfg   config.Reconsolidation
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	timerMu sync.Mutex
	timers  map[string]*time.Timer // event id -> auto-close timer
	closed  bool
}

// NewEngine creates a reconsolidation engine.
func NewEngine(s store.Store, cfg config.Reconsolidation, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  s,
		cfg:    cfg,
		log:    logger,
		locks:  map[string]*sync.Mutex{},
		timers: map[string]*time.Timer{},
	}
}

// Stop cancels all pending auto-close timers. Open windows remain open in
// the store and are expired lazily on their next touch.
func (e *Engine) Stop() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) lockMemory(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// AccessResult reports the outcome of a recorded access.
type AccessResult struct {
	Memory                   *model.Memory               `json:"memory"`
	TriggeredReconsolidation bool                        `json:"triggered_reconsolidation"`
	Event                    *model.ReconsolidationEvent `json:"event,omitempty"`
}

// RecordAccess registers a retrieval of a memory: bumps its access counter,
// logs an `accessed` provenance entry, and opens a lability window when the
// trigger qualifies, no window is open, and the minimum interval since the
// last closed window has elapsed.
func (e *Engine) RecordAccess(ctx context.Context, memoryID string, rc model.RetrievalContext) (*AccessResult, error) {
	if !model.ValidTriggers[rc.Trigger] {
		return nil, &model.ValidationError{Field: "trigger", Reason: fmt.Sprintf("unknown retrieval trigger %q", rc.Trigger)}
	}

	unlock := e.lockMemory(memoryID)
	defer unlock()

	if ok, err := e.store.MemoryExists(ctx, memoryID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, memoryID)
	}

	if err := e.expireIfTimedOut(ctx, memoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	qualify, err := e.qualifies(ctx, memoryID, rc.Trigger, now)
	if err != nil {
		return nil, err
	}

	var event *model.ReconsolidationEvent
	if qualify {
		event = &model.ReconsolidationEvent{
			MemoryID:       memoryID,
			WindowStart:    now,
			Trigger:        rc.Trigger,
			TriggerContext: rc.Query,
		}
		err := e.store.OpenReconEvent(ctx, event)
		switch {
		case errors.Is(err, model.ErrWindowAlreadyOpen):
			// lost a cross-process race; record a plain access
			event = nil
		case err != nil:
			return nil, err
		default:
			e.scheduleAutoClose(event)
		}
	}

	entry := &model.ProvenanceEntry{
		MemoryID:  memoryID,
		EventType: model.EventAccessed,
		SessionID: rc.SessionID,
		Accessed: &model.AccessedPayload{
			Trigger:                  rc.Trigger,
			Context:                  rc.Query,
			TriggeredReconsolidation: event != nil,
		},
	}
	if err := e.store.RecordAccess(ctx, memoryID, now, entry); err != nil {
		// an unrecorded access must not leave a window open
		if event != nil {
			e.cancelTimer(event.ID)
			if cerr := e.store.CloseReconEvent(ctx, event, time.Now().UTC(), model.StateUnchanged, false); cerr != nil {
				e.log.Error("orphaned lability window: close after failed access record",
					zap.String("memory_id", memoryID),
					zap.String("event_id", event.ID),
					zap.Error(cerr))
			}
		}
		return nil, err
	}

	mem, err := e.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	if event != nil {
		e.log.Info("lability window opened",
			zap.String("memory_id", memoryID),
			zap.String("event_id", event.ID),
			zap.String("trigger", string(rc.Trigger)))
	}
	return &AccessResult{Memory: mem, TriggeredReconsolidation: event != nil, Event: event}, nil
}

func (e *Engine) qualifies(ctx context.Context, memoryID string, trigger model.RetrievalTrigger, now time.Time) (bool, error) {
	if !e.cfg.Qualifies(trigger) {
		return false, nil
	}
	open, err := e.store.OpenWindowFor(ctx, memoryID)
	if err != nil {
		return false, err
	}
	if open != nil {
		return false, nil
	}
	last, err := e.store.LastClosedWindowEnd(ctx, memoryID)
	if err != nil {
		return false, err
	}
	if last != nil && now.Sub(*last) < e.cfg.MinInterval() {
		return false, nil
	}
	return true, nil
}

// ApplyUpdate submits one field-level update to a labile memory. The update
// is validated against the model, recorded on the event, and logged as a
// `modified` (or `importance_changed`) provenance entry. It fails with
// ErrNoActiveLabilityWindow when the memory is stable.
func (e *Engine) ApplyUpdate(ctx context.Context, memoryID, field string, value any, reason string) (*model.Memory, error) {
	unlock := e.lockMemory(memoryID)
	defer unlock()

	if err := e.expireIfTimedOut(ctx, memoryID); err != nil {
		return nil, err
	}

	event, err := e.store.OpenWindowFor(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: memory %s", model.ErrNoActiveLabilityWindow, memoryID)
	}

	before, err := e.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	patch, prev, next, err := buildPatch(before, field, value)
	if err != nil {
		return nil, err
	}

	if !e.cfg.AllowWeakening && weakens(before, field, patch) {
		return nil, &model.ValidationError{Field: field, Reason: "weakening is disabled (allow_weakening=false)"}
	}

	mu := store.ReconMutation{
		Patch: patch,
		Update: model.AppliedUpdate{
			Field:     field,
			Previous:  prev,
			New:       next,
			Reason:    reason,
			Timestamp: time.Now().UTC(),
		},
		Entries: updateEntries(event.ID, before, field, patch, prev, next, reason),
	}

	// a weakened belief that falls below the deletion threshold is
	// archived, never physically deleted; the archival commits with the
	// update so neither can land without the other
	archived := false
	if before.SemanticDetail != nil && !before.IsArchived() {
		conf := before.SemanticDetail.Confidence
		if patch.Confidence != nil {
			conf = *patch.Confidence
		}
		if conf < e.cfg.DeletionThreshold {
			now := time.Now().UTC()
			mu.ArchiveAt = &now
			mu.Entries = append(mu.Entries, &model.ProvenanceEntry{
				MemoryID:  memoryID,
				EventType: model.EventArchived,
				Archived: &model.ArchivedPayload{
					Reason: fmt.Sprintf("confidence %.3f fell below deletion threshold %.3f", conf, e.cfg.DeletionThreshold),
				},
			})
			archived = true
		}
	}

	after, err := e.store.ApplyReconUpdate(ctx, memoryID, event.ID, mu)
	if err != nil {
		return nil, err
	}

	if archived {
		e.log.Info("memory archived by weakening",
			zap.String("memory_id", memoryID),
			zap.Float64("confidence", after.SemanticDetail.Confidence))
	}
	return after, nil
}

// updateEntries builds the provenance entries one update produces: a
// `modified` (or `importance_changed`) entry, plus linked/unlinked diffs for
// link-field updates.
func updateEntries(eventID string, before *model.Memory, field string, patch store.Patch, prev, next json.RawMessage, reason string) []*model.ProvenanceEntry {
	if field == "importance" {
		return []*model.ProvenanceEntry{{
			MemoryID:  before.ID,
			EventType: model.EventImportanceChanged,
			ImportanceChanged: &model.ImportanceChangedPayload{
				Previous: before.Importance,
				New:      *patch.Importance,
			},
		}}
	}

	entries := []*model.ProvenanceEntry{{
		MemoryID:  before.ID,
		EventType: model.EventModified,
		Modified: &model.ModifiedPayload{
			EventID:  eventID,
			Field:    field,
			Previous: prev,
			New:      next,
			Reason:   reason,
		},
	}}

	if field == "source_memory_ids" || field == "contradicts_ids" {
		relation := "derives_from"
		var beforeIDs, afterIDs []string
		if field == "contradicts_ids" {
			relation = "contradicts"
			beforeIDs = semanticIDs(before, false)
			afterIDs = *patch.ContradictsIDs
		} else {
			beforeIDs = semanticIDs(before, true)
			afterIDs = *patch.SourceMemoryIDs
		}
		for _, added := range diff(afterIDs, beforeIDs) {
			entries = append(entries, &model.ProvenanceEntry{
				MemoryID:  before.ID,
				EventType: model.EventLinked,
				Link:      &model.LinkPayload{TargetID: added, Relation: relation},
			})
		}
		for _, removed := range diff(beforeIDs, afterIDs) {
			entries = append(entries, &model.ProvenanceEntry{
				MemoryID:  before.ID,
				EventType: model.EventUnlinked,
				Link:      &model.LinkPayload{TargetID: removed, Relation: relation},
			})
		}
	}
	return entries
}

// CloseWindow explicitly closes a memory's open lability window, computing
// the final state from the net effect of the applied updates.
func (e *Engine) CloseWindow(ctx context.Context, memoryID string) (*model.ReconsolidationEvent, error) {
	unlock := e.lockMemory(memoryID)
	defer unlock()
	return e.closeLocked(ctx, memoryID, false)
}

func (e *Engine) closeLocked(ctx context.Context, memoryID string, timedOut bool) (*model.ReconsolidationEvent, error) {
	event, err := e.store.OpenWindowFor(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: memory %s", model.ErrNoActiveLabilityWindow, memoryID)
	}

	e.cancelTimer(event.ID)

	end := time.Now().UTC()
	if timedOut {
		// the timer fires at windowStart+duration; clamp drift
		deadline := event.WindowStart.Add(e.cfg.WindowDuration())
		if end.Before(deadline) {
			end = deadline
		}
	}
	final := finalState(event.Updates)

	if err := e.store.CloseReconEvent(ctx, event, end, final, timedOut); err != nil {
		return nil, err
	}

	event.WindowEnd = &end
	event.FinalState = final
	e.log.Info("lability window closed",
		zap.String("memory_id", memoryID),
		zap.String("event_id", event.ID),
		zap.String("final_state", string(final)),
		zap.Bool("timed_out", timedOut))
	return event, nil
}

// expireIfTimedOut lazily closes a window whose duration elapsed while no
// timer was running (e.g. it was opened by an earlier process).
func (e *Engine) expireIfTimedOut(ctx context.Context, memoryID string) error {
	event, err := e.store.OpenWindowFor(ctx, memoryID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}
	if time.Now().UTC().Before(event.WindowStart.Add(e.cfg.WindowDuration())) {
		return nil
	}
	_, err = e.closeLocked(ctx, memoryID, true)
	if err != nil && errors.Is(err, model.ErrNoActiveLabilityWindow) {
		return nil // raced with the timer
	}
	return err
}

func (e *Engine) scheduleAutoClose(event *model.ReconsolidationEvent) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.closed {
		return
	}
	memoryID, eventID := event.MemoryID, event.ID
	e.timers[eventID] = time.AfterFunc(e.cfg.WindowDuration(), func() {
		unlock := e.lockMemory(memoryID)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := e.closeLocked(ctx, memoryID, true); err != nil &&
			!errors.Is(err, model.ErrNoActiveLabilityWindow) {
			e.log.Error("auto-close failed", zap.String("event_id", eventID), zap.Error(err))
		}
	})
}

func (e *Engine) cancelTimer(eventID string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if t, ok := e.timers[eventID]; ok {
		t.Stop()
		delete(e.timers, eventID)
	}
}
