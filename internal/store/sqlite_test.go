package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func episodic(content string) *model.Memory {
	return model.NewEpisodic(content, model.EpisodicDetail{EventType: "test"})
}

func semantic(content string, confidence float64) *model.Memory {
	return model.NewSemantic(content, model.SemanticDetail{Domain: "test", Confidence: confidence})
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("Deployed feature X")
	m.Importance = model.High
	m.Tags = []string{"deploy", "infra"}
	m.Context = "release week"
	m.Embedding = []float32{0.25, -0.5, 1}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "Deployed feature X" {
		t.Errorf("content: got %q", got.Content)
	}
	if got.Importance != model.High {
		t.Errorf("importance: got %q", got.Importance)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags: got %v", got.Tags)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.25 {
		t.Errorf("embedding: got %v", got.Embedding)
	}
	if got.EpisodicDetail == nil || got.EpisodicDetail.EventType != "test" {
		t.Errorf("detail: got %+v", got.EpisodicDetail)
	}
	if got.AccessCount != 0 {
		t.Errorf("get must not count as access, got %d", got.AccessCount)
	}
}

func TestCreateWritesCreatedProvenance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("something happened")
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	hist, err := s.ProvenanceHistory(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(hist))
	}
	if hist[0].EventType != model.EventCreated {
		t.Errorf("expected created entry, got %s", hist[0].EventType)
	}
	if hist[0].Created == nil || hist[0].Created.MemoryType != model.Episodic {
		t.Errorf("created payload missing or wrong: %+v", hist[0].Created)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("  ")
	if err := s.CreateMemory(ctx, m); err == nil {
		t.Fatal("expected validation error")
	}
	if n, _ := s.MemoryExists(ctx, m.ID); n {
		t.Error("invalid memory must not be persisted")
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetMemory(ctx, "mem_missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMemoryPatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := semantic("Service Y owns billing", 0.9)
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	imp := model.Critical
	conf := 0.95
	got, err := s.UpdateMemory(ctx, m.ID, Patch{Importance: &imp, Confidence: &conf})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Importance != model.Critical || got.SemanticDetail.Confidence != 0.95 {
		t.Errorf("patch not applied: %+v", got)
	}

	// malformed patch mutates nothing
	bad := 1.5
	if _, err := s.UpdateMemory(ctx, m.ID, Patch{Confidence: &bad}); err == nil {
		t.Fatal("expected validation error")
	}
	back, _ := s.GetMemory(ctx, m.ID)
	if back.SemanticDetail.Confidence != 0.95 {
		t.Errorf("failed patch leaked: %v", back.SemanticDetail.Confidence)
	}
}

func TestUpdateConfidenceOnNonSemantic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("an event")
	s.CreateMemory(ctx, m)

	conf := 0.5
	_, err := s.UpdateMemory(ctx, m.ID, Patch{Confidence: &conf})
	if !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("an event")
	s.CreateMemory(ctx, m)

	entry := &model.ProvenanceEntry{
		MemoryID:  m.ID,
		EventType: model.EventAccessed,
		Accessed:  &model.AccessedPayload{Trigger: model.TriggerExplicitRecall},
	}
	if err := s.RecordAccess(ctx, m.ID, time.Now(), entry); err != nil {
		t.Fatalf("record access: %v", err)
	}
	got, _ := s.GetMemory(ctx, m.ID)
	if got.AccessCount != 1 {
		t.Errorf("expected access_count 1, got %d", got.AccessCount)
	}
	if got.LastAccessed == nil {
		t.Error("expected last_accessed set")
	}

	// the bump and its log entry commit together
	history, err := s.ProvenanceHistory(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[1].EventType != model.EventAccessed {
		t.Errorf("expected created+accessed, got %d entries", len(history))
	}
}

func TestRecordAccessRejectsMalformedEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("an event")
	s.CreateMemory(ctx, m)

	// missing payload fails validation; the counter must not advance
	bad := &model.ProvenanceEntry{MemoryID: m.ID, EventType: model.EventAccessed}
	if err := s.RecordAccess(ctx, m.ID, time.Now(), bad); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := s.GetMemory(ctx, m.ID)
	if got.AccessCount != 0 {
		t.Errorf("failed access record leaked: count %d", got.AccessCount)
	}
}

func TestArchiveRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := episodic("an event")
	s.CreateMemory(ctx, m)

	if err := s.ArchiveMemory(ctx, m.ID, time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}
	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("archived memory must stay readable: %v", err)
	}
	if !got.IsArchived() {
		t.Error("expected archived marker")
	}

	// archived memories are excluded from default queries
	res, _ := s.QueryMemories(ctx, Filter{})
	if len(res) != 0 {
		t.Errorf("expected 0 visible, got %d", len(res))
	}
	res, _ = s.QueryMemories(ctx, Filter{IncludeArchived: true})
	if len(res) != 1 {
		t.Errorf("expected 1 with IncludeArchived, got %d", len(res))
	}

	if err := s.RestoreMemory(ctx, m.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ = s.GetMemory(ctx, m.ID)
	if got.IsArchived() {
		t.Error("expected archive marker cleared")
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLite(dbPath, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestProceduralRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := model.NewProcedural("How to roll back", model.ProceduralDetail{
		SkillName: "rollback",
		Steps: []model.Step{
			{Order: 1, Description: "freeze deploys"},
			{Order: 2, Description: "revert tag", Command: "git revert",
				Recoveries: []model.RecoveryPair{{Failure: "conflict", Recovery: "resolve by hand"}}},
		},
		SuccessCount: 3,
	})
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.GetMemory(ctx, m.ID)
	d := got.ProceduralDetail
	if d == nil || d.SkillName != "rollback" || len(d.Steps) != 2 {
		t.Fatalf("detail lost: %+v", d)
	}
	if d.Steps[1].Recoveries[0].Recovery != "resolve by hand" {
		t.Errorf("recovery pair lost: %+v", d.Steps[1])
	}
}
