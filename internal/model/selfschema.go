package model

import "time"

// Trajectory describes how a capability is trending.
type Trajectory string

const (
	Improving Trajectory = "improving"
	Stable    Trajectory = "stable"
	Declining Trajectory = "declining"
)

var validTrajectories = map[Trajectory]bool{
	Improving: true, Stable: true, Declining: true,
}

// IdentityStatement is one belief the agent holds about itself.
type IdentityStatement struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Centrality      float64   `json:"centrality"` // [0, 1]
	Confidence      float64   `json:"confidence"` // [0, 1]
	SourceMemoryIDs []string  `json:"source_memory_ids"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Capability is a skill the agent attributes to itself.
type Capability struct {
	Name              string     `json:"name"`
	Proficiency       float64    `json:"proficiency"` // [0, 1]
	Trajectory        Trajectory `json:"trajectory"`
	EvidenceMemoryIDs []string   `json:"evidence_memory_ids"`
}

// Relationship is a known counterpart of the agent.
type Relationship struct {
	Name              string   `json:"name"`
	Relation          string   `json:"relation"`
	EvidenceMemoryIDs []string `json:"evidence_memory_ids,omitempty"`
}

// Value is a principle the agent reports holding.
type Value struct {
	Name              string   `json:"name"`
	Statement         string   `json:"statement,omitempty"`
	EvidenceMemoryIDs []string `json:"evidence_memory_ids,omitempty"`
}

// Limitation is a self-reported constraint.
type Limitation struct {
	Description       string   `json:"description"`
	EvidenceMemoryIDs []string `json:"evidence_memory_ids,omitempty"`
}

// PresentSelf is the agent's current identity model.
type PresentSelf struct {
	Statements    []IdentityStatement `json:"statements,omitempty"`
	Capabilities  []Capability        `json:"capabilities,omitempty"`
	Relationships []Relationship      `json:"relationships,omitempty"`
	CurrentState  string              `json:"current_state,omitempty"`
	Values        []Value             `json:"values,omitempty"`
	Limitations   []Limitation        `json:"limitations,omitempty"`
}

// Milestone is a past event the agent considers formative.
type Milestone struct {
	Description     string    `json:"description"`
	OccurredAt      time.Time `json:"occurred_at"`
	SourceMemoryIDs []string  `json:"source_memory_ids,omitempty"`
}

// TemporalTrajectory is the agent's model of its own timeline.
type TemporalTrajectory struct {
	Milestones         []Milestone `json:"milestones,omitempty"`
	CurrentPhase       string      `json:"current_phase,omitempty"`
	AnticipatedFutures []string    `json:"anticipated_futures,omitempty"`
	Patterns           []string    `json:"patterns,omitempty"`
}

// Chapter is one span of the autobiographical narrative.
type Chapter struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary,omitempty"`
	From            time.Time  `json:"from"`
	To              *time.Time `json:"to,omitempty"`
	SourceMemoryIDs []string   `json:"source_memory_ids"`
}

// NarrativeRevision records a rewrite of the narrative.
type NarrativeRevision struct {
	Reason    string    `json:"reason"`
	RevisedAt time.Time `json:"revised_at"`
}

// AutobiographicalNarrative is the agent's story of itself.
type AutobiographicalNarrative struct {
	Chapters  []Chapter           `json:"chapters,omitempty"`
	Themes    []string            `json:"themes,omitempty"`
	Revisions []NarrativeRevision `json:"revisions,omitempty"`
}

// SelfSchema is the single identity model held per agent.
type SelfSchema struct {
	AgentID    string                    `json:"agent_id"`
	Present    PresentSelf               `json:"present_self"`
	Trajectory TemporalTrajectory        `json:"temporal_trajectory"`
	Narrative  AutobiographicalNarrative `json:"autobiographical_narrative"`
	Version    int                       `json:"version"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// NewSelfSchema builds an empty schema for an agent.
func NewSelfSchema(agentID string) *SelfSchema {
	now := time.Now().UTC()
	return &SelfSchema{AgentID: agentID, Version: 1, CreatedAt: now, UpdatedAt: now}
}

// MemoryResolver reports whether a memory id exists (live or archived).
type MemoryResolver func(id string) bool

// ValidateSelfSchema checks bounds, evidence presence and reference
// integrity. Every cited memory id must resolve via the resolver; dangling
// references are validation errors, not silently dropped. Statements,
// capabilities and chapters with no evidence at all fail with
// ErrMissingEvidence.
func ValidateSelfSchema(s *SelfSchema, resolve MemoryResolver) error {
	if s == nil {
		return invalid("self_schema", "nil schema")
	}
	if s.AgentID == "" {
		return invalid("self_schema.agent_id", "must not be empty")
	}
	if s.Version < 1 {
		return invalid("self_schema.version", "must be >= 1, got %d", s.Version)
	}

	for i, st := range s.Present.Statements {
		if st.Text == "" {
			return invalid("statements", "statement %d has no text", i)
		}
		if st.Centrality < 0 || st.Centrality > 1 {
			return invalid("statements", "statement %d centrality must be in [0, 1]", i)
		}
		if st.Confidence < 0 || st.Confidence > 1 {
			return invalid("statements", "statement %d confidence must be in [0, 1]", i)
		}
		if len(st.SourceMemoryIDs) == 0 {
			return ErrMissingEvidence
		}
		if err := checkRefs("statements", st.SourceMemoryIDs, resolve); err != nil {
			return err
		}
	}

	for i, c := range s.Present.Capabilities {
		if c.Name == "" {
			return invalid("capabilities", "capability %d has no name", i)
		}
		if c.Proficiency < 0 || c.Proficiency > 1 {
			return invalid("capabilities", "capability %q proficiency must be in [0, 1]", c.Name)
		}
		if !validTrajectories[c.Trajectory] {
			return invalid("capabilities", "capability %q has unknown trajectory %q", c.Name, c.Trajectory)
		}
		if len(c.EvidenceMemoryIDs) == 0 {
			return ErrMissingEvidence
		}
		if err := checkRefs("capabilities", c.EvidenceMemoryIDs, resolve); err != nil {
			return err
		}
	}

	for _, r := range s.Present.Relationships {
		if err := checkRefs("relationships", r.EvidenceMemoryIDs, resolve); err != nil {
			return err
		}
	}
	for _, v := range s.Present.Values {
		if err := checkRefs("values", v.EvidenceMemoryIDs, resolve); err != nil {
			return err
		}
	}
	for _, l := range s.Present.Limitations {
		if err := checkRefs("limitations", l.EvidenceMemoryIDs, resolve); err != nil {
			return err
		}
	}
	for _, m := range s.Trajectory.Milestones {
		if err := checkRefs("milestones", m.SourceMemoryIDs, resolve); err != nil {
			return err
		}
	}

	for i, ch := range s.Narrative.Chapters {
		if ch.Title == "" {
			return invalid("chapters", "chapter %d has no title", i)
		}
		if ch.To != nil && ch.From.After(*ch.To) {
			return invalid("chapters", "chapter %q starts after it ends", ch.Title)
		}
		if len(ch.SourceMemoryIDs) == 0 {
			return ErrMissingEvidence
		}
		if err := checkRefs("chapters", ch.SourceMemoryIDs, resolve); err != nil {
			return err
		}
	}

	return nil
}

func checkRefs(field string, ids []string, resolve MemoryResolver) error {
	if resolve == nil {
		return nil
	}
	for _, id := range ids {
		if !resolve(id) {
			return invalid(field, "dangling memory reference %q", id)
		}
	}
	return nil
}
