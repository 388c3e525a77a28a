package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEpisodic() *Memory {
	return NewEpisodic("Deployed feature X", EpisodicDetail{
		EventType:    "deployment",
		Participants: []string{"ci"},
	})
}

func validSemantic() *Memory {
	return NewSemantic("Service Y owns billing", SemanticDetail{
		Domain:     "architecture",
		Confidence: 0.9,
	})
}

func validProcedural() *Memory {
	return NewProcedural("How to roll back a release", ProceduralDetail{
		SkillName: "rollback",
		Steps: []Step{
			{Order: 1, Description: "freeze deploys"},
			{Order: 2, Description: "revert the release tag", Command: "git revert"},
		},
	})
}

func TestValidateAcceptsWellFormedVariants(t *testing.T) {
	for _, m := range []*Memory{validEpisodic(), validSemantic(), validProcedural()} {
		assert.NoError(t, Validate(m), "type %s", m.Type)
	}
}

func TestValidateRejections(t *testing.T) {
	valence := 1.5
	from := time.Now()
	until := from.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(*Memory)
		base   func() *Memory
	}{
		{"empty content", func(m *Memory) { m.Content = "   " }, validEpisodic},
		{"unknown importance", func(m *Memory) { m.Importance = "urgent" }, validEpisodic},
		{"negative access count", func(m *Memory) { m.AccessCount = -1 }, validEpisodic},
		{"zero schema version", func(m *Memory) { m.SchemaVersion = 0 }, validEpisodic},
		{"unknown type", func(m *Memory) { m.Type = "prospective" }, validEpisodic},
		{"missing detail", func(m *Memory) { m.EpisodicDetail = nil }, validEpisodic},
		{"foreign detail", func(m *Memory) { m.SemanticDetail = &SemanticDetail{Domain: "x"} }, validEpisodic},
		{"valence out of range", func(m *Memory) { m.EpisodicDetail.EmotionalValence = &valence }, validEpisodic},
		{"empty event type", func(m *Memory) { m.EpisodicDetail.EventType = "" }, validEpisodic},
		{"confidence above 1", func(m *Memory) { m.SemanticDetail.Confidence = 1.01 }, validSemantic},
		{"confidence below 0", func(m *Memory) { m.SemanticDetail.Confidence = -0.1 }, validSemantic},
		{"empty domain", func(m *Memory) { m.SemanticDetail.Domain = "" }, validSemantic},
		{"valid_from after valid_until", func(m *Memory) {
			m.SemanticDetail.ValidFrom = &from
			m.SemanticDetail.ValidUntil = &until
		}, validSemantic},
		{"no steps", func(m *Memory) { m.ProceduralDetail.Steps = nil }, validProcedural},
		{"duplicate step order", func(m *Memory) { m.ProceduralDetail.Steps[1].Order = 1 }, validProcedural},
		{"decreasing step order", func(m *Memory) { m.ProceduralDetail.Steps[1].Order = 0 }, validProcedural},
		{"negative failure count", func(m *Memory) { m.ProceduralDetail.FailureCount = -2 }, validProcedural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.base()
			tt.mutate(m)
			err := Validate(m)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected ValidationError, got %v", err)
		})
	}
}

func TestValidateSerializeRoundTrip(t *testing.T) {
	valence := -0.4
	m := validEpisodic()
	m.Tags = []string{"deploy", "infra"}
	m.Context = "release week"
	m.Embedding = []float32{0.1, 0.2, 0.3}
	m.EpisodicDetail.EmotionalValence = &valence
	require.NoError(t, Validate(m))

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var back Memory
	require.NoError(t, json.Unmarshal(b, &back))
	require.NoError(t, Validate(&back))

	b2, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(b2))
}

func TestConstructorDefaults(t *testing.T) {
	m := validSemantic()
	assert.Equal(t, Normal, m.Importance)
	assert.Equal(t, 1, m.SchemaVersion)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.False(t, m.IsArchived())

	e := validEpisodic()
	assert.False(t, e.EpisodicDetail.EventTimestamp.IsZero(), "event timestamp defaults to createdAt")
}

func TestImportanceWeightLadder(t *testing.T) {
	if !(ImportanceWeight(Critical) > ImportanceWeight(High) &&
		ImportanceWeight(High) > ImportanceWeight(Normal) &&
		ImportanceWeight(Normal) > ImportanceWeight(Low)) {
		t.Error("importance weights must strictly descend")
	}
}
