package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolabs/mnemo/internal/model"
)

func fixture(n int) []model.Memory {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]model.Memory, 0, n)
	for i := 0; i < n; i++ {
		m := model.NewEpisodic(fmt.Sprintf("event %d", i), model.EpisodicDetail{EventType: "note"})
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		out = append(out, *m)
	}
	return out
}

func TestApplyOrdersNewestFirst(t *testing.T) {
	p := NewProjection(10)
	res := p.Apply(fixture(5))

	require.Len(t, res.Memories, 5)
	for i := 1; i < len(res.Memories); i++ {
		prev, cur := res.Memories[i-1], res.Memories[i]
		assert.False(t, prev.CreatedAt.Before(cur.CreatedAt))
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	p := NewProjection(3)
	p.SetSearch("event")
	mems := fixture(8)

	first := p.Apply(mems)
	second := p.Apply(mems)

	require.Equal(t, first.Total, second.Total)
	require.Equal(t, len(first.Memories), len(second.Memories))
	for i := range first.Memories {
		assert.Equal(t, first.Memories[i].ID, second.Memories[i].ID)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	mems := fixture(4)
	orig := make([]string, len(mems))
	for i, m := range mems {
		orig[i] = m.ID
	}

	NewProjection(2).Apply(mems)

	for i, m := range mems {
		assert.Equal(t, orig[i], m.ID, "input order must survive Apply")
	}
}

func TestFilters(t *testing.T) {
	sem := model.NewSemantic("a belief", model.SemanticDetail{Domain: "d", Confidence: 0.9})
	sem.Importance = model.Critical
	mems := append(fixture(3), *sem)

	p := NewProjection(10)
	p.SetType(model.Semantic)
	res := p.Apply(mems)
	require.Len(t, res.Memories, 1)
	assert.Equal(t, sem.ID, res.Memories[0].ID)

	p = NewProjection(10)
	p.SetImportance(model.Critical)
	res = p.Apply(mems)
	require.Len(t, res.Memories, 1)

	p = NewProjection(10)
	p.SetSearch("BELIEF")
	res = p.Apply(mems)
	require.Len(t, res.Memories, 1, "search is case-insensitive")
}

func TestShowMoreExtendsWindowOnly(t *testing.T) {
	p := NewProjection(2)
	p.SetSearch("event")
	mems := fixture(7)

	res := p.Apply(mems)
	assert.Len(t, res.Memories, 2)
	assert.Equal(t, 7, res.Total)
	assert.True(t, res.HasMore)

	p.ShowMore()
	res = p.Apply(mems)
	assert.Len(t, res.Memories, 4)
	assert.Equal(t, "event", p.Search, "filters untouched")

	p.ShowMore()
	p.ShowMore()
	res = p.Apply(mems)
	assert.Len(t, res.Memories, 7)
	assert.False(t, res.HasMore)
}

func TestFilterChangeResetsPaging(t *testing.T) {
	p := NewProjection(2)
	mems := fixture(6)

	p.ShowMore()
	require.Len(t, p.Apply(mems).Memories, 4)

	p.SetSearch("event")
	assert.Len(t, p.Apply(mems).Memories, 2, "new filter starts at one page")
}

func TestTieBreakOnEqualTimestamps(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mems := fixture(4)
	for i := range mems {
		mems[i].CreatedAt = at
	}

	p := NewProjection(10)
	res := p.Apply(mems)
	for i := 1; i < len(res.Memories); i++ {
		assert.Greater(t, res.Memories[i-1].ID, res.Memories[i].ID)
	}
}
