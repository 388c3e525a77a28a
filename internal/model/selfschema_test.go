package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverOf(ids ...string) MemoryResolver {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func validSchema() *SelfSchema {
	s := NewSelfSchema("agent-1")
	s.Present.Statements = []IdentityStatement{{
		ID: "stmt_1", Text: "I maintain the deploy pipeline",
		Centrality: 0.8, Confidence: 0.9,
		SourceMemoryIDs: []string{"mem_a"},
	}}
	s.Present.Capabilities = []Capability{{
		Name: "rollback", Proficiency: 0.7, Trajectory: Improving,
		EvidenceMemoryIDs: []string{"mem_b"},
	}}
	s.Narrative.Chapters = []Chapter{{
		ID: "ch_1", Title: "First quarter", From: time.Now().Add(-90 * 24 * time.Hour),
		SourceMemoryIDs: []string{"mem_a", "mem_b"},
	}}
	return s
}

func TestValidateSelfSchemaAccepts(t *testing.T) {
	assert.NoError(t, ValidateSelfSchema(validSchema(), resolverOf("mem_a", "mem_b")))
}

func TestValidateSelfSchemaMissingEvidence(t *testing.T) {
	s := validSchema()
	s.Present.Statements[0].SourceMemoryIDs = nil
	assert.ErrorIs(t, ValidateSelfSchema(s, resolverOf("mem_a", "mem_b")), ErrMissingEvidence)

	s = validSchema()
	s.Present.Capabilities[0].EvidenceMemoryIDs = []string{}
	assert.ErrorIs(t, ValidateSelfSchema(s, resolverOf("mem_a", "mem_b")), ErrMissingEvidence)

	s = validSchema()
	s.Narrative.Chapters[0].SourceMemoryIDs = nil
	assert.ErrorIs(t, ValidateSelfSchema(s, resolverOf("mem_a", "mem_b")), ErrMissingEvidence)
}

func TestValidateSelfSchemaDanglingReference(t *testing.T) {
	s := validSchema()
	s.Present.Statements[0].SourceMemoryIDs = []string{"mem_missing"}
	err := ValidateSelfSchema(s, resolverOf("mem_a", "mem_b"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "mem_missing")
}

func TestValidateSelfSchemaBounds(t *testing.T) {
	s := validSchema()
	s.Present.Statements[0].Centrality = 1.2
	assert.True(t, IsValidation(ValidateSelfSchema(s, resolverOf("mem_a", "mem_b"))))

	s = validSchema()
	s.Present.Capabilities[0].Proficiency = -0.1
	assert.True(t, IsValidation(ValidateSelfSchema(s, resolverOf("mem_a", "mem_b"))))

	s = validSchema()
	s.Present.Capabilities[0].Trajectory = "oscillating"
	assert.True(t, IsValidation(ValidateSelfSchema(s, resolverOf("mem_a", "mem_b"))))

	s = validSchema()
	end := s.Narrative.Chapters[0].From.Add(-time.Hour)
	s.Narrative.Chapters[0].To = &end
	assert.True(t, IsValidation(ValidateSelfSchema(s, resolverOf("mem_a", "mem_b"))))
}
