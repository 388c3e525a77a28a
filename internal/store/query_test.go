package store

import (
	"context"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

func seedQueryFixtures(t *testing.T, s *SQLite) (ids []string) {
	t.Helper()
	ctx := context.Background()

	a := episodic("deployed the billing service")
	a.Tags = []string{"deploy", "billing"}
	a.Importance = model.High

	b := semantic("billing is owned by team atlas", 0.8)
	b.Tags = []string{"ownership"}

	c := semantic("low confidence rumor about caching", 0.2)

	d := model.NewProcedural("rollback procedure", model.ProceduralDetail{
		SkillName: "rollback",
		Steps:     []model.Step{{Order: 1, Description: "revert"}},
	})
	d.Importance = model.Critical

	for _, m := range []*model.Memory{a, b, c, d} {
		if err := s.CreateMemory(ctx, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func TestQueryByType(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	res, err := s.QueryMemories(context.Background(), Filter{Types: []model.MemoryType{model.Semantic}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Errorf("expected 2 semantic, got %d", len(res))
	}
}

func TestQueryByImportance(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	res, _ := s.QueryMemories(context.Background(), Filter{
		Importance: []model.Importance{model.High, model.Critical},
	})
	if len(res) != 2 {
		t.Errorf("expected 2, got %d", len(res))
	}
}

func TestQueryByTagsAnyMatch(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	res, _ := s.QueryMemories(context.Background(), Filter{Tags: []string{"billing", "ownership"}})
	if len(res) != 2 {
		t.Errorf("expected 2 (any-match), got %d", len(res))
	}
}

func TestQueryMinConfidence(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	min := 0.5
	res, _ := s.QueryMemories(context.Background(), Filter{MinConfidence: &min})
	// the 0.2-confidence semantic memory drops out; non-semantic rows stay
	if len(res) != 3 {
		t.Errorf("expected 3, got %d", len(res))
	}
	for _, m := range res {
		if m.SemanticDetail != nil && m.SemanticDetail.Confidence < min {
			t.Errorf("memory %s below min confidence", m.ID)
		}
	}
}

func TestQueryTextAcrossFields(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	res, _ := s.QueryMemories(context.Background(), Filter{Text: "BILLING"})
	if len(res) != 2 {
		t.Errorf("case-insensitive text match: expected 2, got %d", len(res))
	}
}

func TestQueryTimeRange(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	future := time.Now().Add(time.Hour)
	res, _ := s.QueryMemories(context.Background(), Filter{Since: &future})
	if len(res) != 0 {
		t.Errorf("expected 0 in the future, got %d", len(res))
	}

	res, _ = s.QueryMemories(context.Background(), Filter{Until: &future})
	if len(res) != 4 {
		t.Errorf("expected all 4, got %d", len(res))
	}
}

func TestQueryLimitOffset(t *testing.T) {
	s := newTestStore(t)
	seedQueryFixtures(t, s)

	page1, _ := s.QueryMemories(context.Background(), Filter{Limit: 2})
	page2, _ := s.QueryMemories(context.Background(), Filter{Limit: 2, Offset: 2})
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("pagination: got %d and %d", len(page1), len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Error("pages overlap")
	}
}
