package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

func openEvent(t *testing.T, s *SQLite, memoryID string) *model.ReconsolidationEvent {
	t.Helper()
	e := &model.ReconsolidationEvent{
		MemoryID:    memoryID,
		WindowStart: time.Now().UTC(),
		Trigger:     model.TriggerExplicitRecall,
	}
	if err := s.OpenReconEvent(context.Background(), e); err != nil {
		t.Fatalf("open event: %v", err)
	}
	return e
}

func TestOpenReconEventSingleWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := episodic("an event")
	s.CreateMemory(ctx, m)

	openEvent(t, s, m.ID)

	second := &model.ReconsolidationEvent{
		MemoryID:    m.ID,
		WindowStart: time.Now().UTC(),
		Trigger:     model.TriggerSearch,
	}
	err := s.OpenReconEvent(ctx, second)
	if !errors.Is(err, model.ErrWindowAlreadyOpen) {
		t.Errorf("expected ErrWindowAlreadyOpen, got %v", err)
	}
}

func TestOpenReconEventConcurrentCAS(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := episodic("contended memory")
	s.CreateMemory(ctx, m)

	const attempts = 100
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.OpenReconEvent(ctx, &model.ReconsolidationEvent{
				MemoryID:    m.ID,
				WindowStart: time.Now().UTC(),
				Trigger:     model.TriggerExplicitRecall,
			})
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, model.ErrWindowAlreadyOpen):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != attempts-1 {
		t.Errorf("expected 1 winner and %d losers, got %d/%d", attempts-1, wins, losses)
	}
}

func TestReconWindowLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := semantic("fact", 0.9)
	s.CreateMemory(ctx, m)

	e := openEvent(t, s, m.ID)

	open, err := s.OpenWindowFor(ctx, m.ID)
	if err != nil || open == nil || open.ID != e.ID {
		t.Fatalf("open window lookup: %v %v", open, err)
	}

	conf := 0.95
	prev, _ := json.Marshal(0.9)
	next, _ := json.Marshal(0.95)
	u := model.AppliedUpdate{Field: "confidence", Previous: prev, New: next, Timestamp: time.Now()}
	mu := ReconMutation{
		Patch:  Patch{Confidence: &conf},
		Update: u,
		Entries: []*model.ProvenanceEntry{{
			MemoryID:  m.ID,
			EventType: model.EventModified,
			Modified:  &model.ModifiedPayload{EventID: e.ID, Field: "confidence", Previous: prev, New: next},
		}},
	}
	after, err := s.ApplyReconUpdate(ctx, m.ID, e.ID, mu)
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if after.SemanticDetail.Confidence != 0.95 {
		t.Errorf("patch not applied: %+v", after.SemanticDetail)
	}

	end := time.Now().UTC()
	e.Updates = append(e.Updates, u)
	if err := s.CloseReconEvent(ctx, e, end, model.StateStrengthened, false); err != nil {
		t.Fatalf("close: %v", err)
	}

	// closed window no longer accepts updates or a second close
	if _, err := s.ApplyReconUpdate(ctx, m.ID, e.ID, mu); !errors.Is(err, model.ErrNoActiveLabilityWindow) {
		t.Errorf("expected ErrNoActiveLabilityWindow, got %v", err)
	}
	if err := s.CloseReconEvent(ctx, e, end, model.StateUnchanged, false); !errors.Is(err, model.ErrNoActiveLabilityWindow) {
		t.Errorf("expected ErrNoActiveLabilityWindow, got %v", err)
	}

	// closing logged a reconsolidated entry
	hist, _ := s.ProvenanceHistory(ctx, m.ID, 0, 0)
	var reconLogged bool
	for _, en := range hist {
		if en.EventType == model.EventReconsolidated && en.Reconsolidated.EventID == e.ID {
			reconLogged = true
		}
	}
	if !reconLogged {
		t.Error("close must log a reconsolidated entry")
	}

	events, _ := s.ReconEvents(ctx, m.ID)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.WindowEnd == nil || got.FinalState != model.StateStrengthened || len(got.Updates) != 1 {
		t.Errorf("event not closed correctly: %+v", got)
	}

	last, _ := s.LastClosedWindowEnd(ctx, m.ID)
	if last == nil {
		t.Error("expected last closed window end")
	}

	// window can reopen after close
	openEvent(t, s, m.ID)
}

func TestApplyReconUpdateRollsBackAsOne(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := semantic("fact", 0.9)
	s.CreateMemory(ctx, m)

	e := openEvent(t, s, m.ID)
	end := time.Now().UTC()
	if err := s.CloseReconEvent(ctx, e, end, model.StateUnchanged, false); err != nil {
		t.Fatalf("close: %v", err)
	}

	conf := 0.2
	prev, _ := json.Marshal(0.9)
	next, _ := json.Marshal(0.2)
	mu := ReconMutation{
		Patch:  Patch{Confidence: &conf},
		Update: model.AppliedUpdate{Field: "confidence", Previous: prev, New: next, Timestamp: time.Now()},
		Entries: []*model.ProvenanceEntry{{
			MemoryID:  m.ID,
			EventType: model.EventModified,
			Modified:  &model.ModifiedPayload{EventID: e.ID, Field: "confidence", Previous: prev, New: next},
		}},
	}

	// the closed event rejects the mutation, and the already-applied
	// patch rolls back with it: no change without its log entry
	if _, err := s.ApplyReconUpdate(ctx, m.ID, e.ID, mu); !errors.Is(err, model.ErrNoActiveLabilityWindow) {
		t.Fatalf("expected ErrNoActiveLabilityWindow, got %v", err)
	}
	back, _ := s.GetMemory(ctx, m.ID)
	if back.SemanticDetail.Confidence != 0.9 {
		t.Errorf("failed mutation leaked: confidence %v", back.SemanticDetail.Confidence)
	}
	hist, _ := s.ProvenanceHistory(ctx, m.ID, 0, 0)
	for _, en := range hist {
		if en.EventType == model.EventModified {
			t.Error("failed mutation must not log a modified entry")
		}
	}

	// a malformed entry rolls back the patch and event update the same way
	second := openEvent(t, s, m.ID)
	mu.Entries = []*model.ProvenanceEntry{{MemoryID: m.ID, EventType: model.EventModified}}
	if _, err := s.ApplyReconUpdate(ctx, m.ID, second.ID, mu); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	back, _ = s.GetMemory(ctx, m.ID)
	if back.SemanticDetail.Confidence != 0.9 {
		t.Errorf("failed mutation leaked: confidence %v", back.SemanticDetail.Confidence)
	}
	ev, _ := s.OpenWindowFor(ctx, m.ID)
	if ev == nil || len(ev.Updates) != 0 {
		t.Errorf("failed mutation must not record an event update: %+v", ev)
	}

	// archival commits with the mutation when requested
	at := time.Now().UTC()
	mu.Entries = []*model.ProvenanceEntry{{
		MemoryID:  m.ID,
		EventType: model.EventModified,
		Modified:  &model.ModifiedPayload{EventID: second.ID, Field: "confidence", Previous: prev, New: next},
	}}
	mu.ArchiveAt = &at
	after, err := s.ApplyReconUpdate(ctx, m.ID, second.ID, mu)
	if err != nil {
		t.Fatalf("apply with archival: %v", err)
	}
	if !after.IsArchived() || after.SemanticDetail.Confidence != 0.2 {
		t.Errorf("mutation with archival not applied: %+v", after)
	}
}

func TestProvenanceAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := episodic("an event")
	s.CreateMemory(ctx, m) // writes `created`

	const extra = 5
	for i := 0; i < extra; i++ {
		_, err := s.AppendProvenance(ctx, &model.ProvenanceEntry{
			MemoryID:  m.ID,
			EventType: model.EventAccessed,
			Accessed:  &model.AccessedPayload{Trigger: model.TriggerSearch},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	hist, err := s.ProvenanceHistory(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != extra+1 {
		t.Fatalf("expected %d entries, got %d", extra+1, len(hist))
	}
	if hist[0].EventType != model.EventCreated {
		t.Errorf("first entry must be created, got %s", hist[0].EventType)
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].CreatedAt.Before(hist[i-1].CreatedAt) {
			t.Errorf("history out of creation order at %d", i)
		}
	}

	// pagination
	page, _ := s.ProvenanceHistory(ctx, m.ID, 2, 1)
	if len(page) != 2 || page[0].ID != hist[1].ID {
		t.Errorf("pagination wrong: %+v", page)
	}
}

func TestAppendProvenanceRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendProvenance(ctx, &model.ProvenanceEntry{EventType: model.EventCreated})
	if !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSelfSchemaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetSelfSchema(ctx, "agent-1")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	schema := model.NewSelfSchema("agent-1")
	schema.Present.CurrentState = "steady"
	if err := s.PutSelfSchema(ctx, schema); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetSelfSchema(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Present.CurrentState != "steady" || got.Version != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}

	got.Version = 2
	got.Present.CurrentState = "busy"
	s.PutSelfSchema(ctx, got)
	again, _ := s.GetSelfSchema(ctx, "agent-1")
	if again.Version != 2 || again.Present.CurrentState != "busy" {
		t.Errorf("upsert failed: %+v", again)
	}
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recs, _ := s.ListSnapshots(ctx)
	if len(recs) != 0 {
		t.Fatalf("expected empty, got %d", len(recs))
	}

	s.SaveSnapshot(ctx, SnapshotRecord{AgentID: "agent-1", ExportedAt: time.Now().Add(-time.Hour), Checksum: "aaa", MemoryCount: 1})
	s.SaveSnapshot(ctx, SnapshotRecord{AgentID: "agent-1", ExportedAt: time.Now(), Checksum: "bbb", MemoryCount: 2})

	recs, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Checksum != "bbb" {
		t.Errorf("expected newest first, got %+v", recs)
	}
}
