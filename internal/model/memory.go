// Package model defines the core memory data types and their validation.
package model

import (
	"time"

	"github.com/mnemolabs/mnemo/internal/ident"
)

// MemoryType discriminates the memory variants.
type MemoryType string

// Memory variants.
const (
	Episodic   MemoryType = "episodic"
	Semantic   MemoryType = "semantic"
	Procedural MemoryType = "procedural"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	Episodic:   true,
	Semantic:   true,
	Procedural: true,
}

// Importance levels, strongest first.
type Importance string

const (
	Critical Importance = "critical"
	High     Importance = "high"
	Normal   Importance = "normal"
	Low      Importance = "low"
)

// ValidImportances are the allowed importance levels.
var ValidImportances = map[Importance]bool{
	Critical: true,
	High:     true,
	Normal:   true,
	Low:      true,
}

// ImportanceWeight maps an importance level onto a fixed descending scale.
func ImportanceWeight(p Importance) float64 {
	switch p {
	case Critical:
		return 1.0
	case High:
		return 0.75
	case Normal:
		return 0.5
	case Low:
		return 0.25
	default:
		return 0.5
	}
}

// Memory is a stored memory record. Exactly one of the detail fields is set,
// matching Type; Validate enforces this.
type Memory struct {
	ID             string     `json:"id"`
	Type           MemoryType `json:"type"`
	Content        string     `json:"content"`
	Context        string     `json:"context,omitempty"`
	Importance     Importance `json:"importance"`
	Tags           []string   `json:"tags,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AccessCount    int        `json:"access_count"`
	LastAccessed   *time.Time `json:"last_accessed,omitempty"`
	IsConsolidated bool       `json:"is_consolidated,omitempty"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	SchemaVersion  int        `json:"schema_version"`

	EpisodicDetail   *EpisodicDetail   `json:"episodic,omitempty"`
	SemanticDetail   *SemanticDetail   `json:"semantic,omitempty"`
	ProceduralDetail *ProceduralDetail `json:"procedural,omitempty"`
}

// EpisodicDetail holds the fields specific to episodic memories.
type EpisodicDetail struct {
	EventTimestamp   time.Time `json:"event_timestamp"`
	EventType        string    `json:"event_type"`
	Participants     []string  `json:"participants,omitempty"`
	Location         string    `json:"location,omitempty"`
	EmotionalValence *float64  `json:"emotional_valence,omitempty"` // [-1, 1]
	EmotionalTags    []string  `json:"emotional_tags,omitempty"`
	SourceReferences []string  `json:"source_references,omitempty"`
}

// SemanticDetail holds the fields specific to semantic memories.
type SemanticDetail struct {
	Domain          string     `json:"domain"`
	Confidence      float64    `json:"confidence"` // [0, 1]
	SourceMemoryIDs []string   `json:"source_memory_ids,omitempty"`
	ContradictsIDs  []string   `json:"contradicts_ids,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
}

// Step is one ordered step of a procedural memory.
type Step struct {
	Order           int            `json:"order"`
	Description     string         `json:"description"`
	Command         string         `json:"command,omitempty"`
	ExpectedOutcome string         `json:"expected_outcome,omitempty"`
	Recoveries      []RecoveryPair `json:"recoveries,omitempty"`
}

// RecoveryPair maps a known failure to its recovery action.
type RecoveryPair struct {
	Failure  string `json:"failure"`
	Recovery string `json:"recovery"`
}

// ProceduralDetail holds the fields specific to procedural memories.
type ProceduralDetail struct {
	SkillName     string     `json:"skill_name"`
	Steps         []Step     `json:"steps"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
	AvgDurationMs *float64   `json:"avg_duration_ms,omitempty"`
}

// IsArchived reports whether the memory has been logically deleted.
func (m *Memory) IsArchived() bool { return m.ArchivedAt != nil }

// Confidence returns the semantic confidence, or 1 for other variants.
func (m *Memory) Confidence() float64 {
	if m.SemanticDetail != nil {
		return m.SemanticDetail.Confidence
	}
	return 1
}

func newMemory(typ MemoryType, content string) Memory {
	return Memory{
		ID:            ident.Generate("mem"),
		Type:          typ,
		Content:       content,
		Importance:    Normal,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: 1,
	}
}

// NewEpisodic builds an episodic memory with a fresh id.
func NewEpisodic(content string, detail EpisodicDetail) *Memory {
	m := newMemory(Episodic, content)
	if detail.EventTimestamp.IsZero() {
		detail.EventTimestamp = m.CreatedAt
	}
	m.EpisodicDetail = &detail
	return &m
}

// NewSemantic builds a semantic memory with a fresh id.
func NewSemantic(content string, detail SemanticDetail) *Memory {
	m := newMemory(Semantic, content)
	m.SemanticDetail = &detail
	return &m
}

// NewProcedural builds a procedural memory with a fresh id.
func NewProcedural(content string, detail ProceduralDetail) *Memory {
	m := newMemory(Procedural, content)
	m.ProceduralDetail = &detail
	return &m
}
