package model

import "strings"

// Validate checks a memory against the record-model invariants: non-empty
// content, enum membership, numeric bounds, step ordering, and a detail
// payload consistent with the type discriminant. It performs no I/O.
func Validate(m *Memory) error {
	if m == nil {
		return invalid("memory", "nil memory")
	}
	if strings.TrimSpace(m.Content) == "" {
		return invalid("content", "must not be empty")
	}
	if !ValidImportances[m.Importance] {
		return invalid("importance", "unknown level %q", m.Importance)
	}
	if m.AccessCount < 0 {
		return invalid("access_count", "must be >= 0, got %d", m.AccessCount)
	}
	if m.SchemaVersion < 1 {
		return invalid("schema_version", "must be >= 1, got %d", m.SchemaVersion)
	}

	switch m.Type {
	case Episodic:
		if m.SemanticDetail != nil || m.ProceduralDetail != nil {
			return invalid("type", "episodic memory carries a foreign detail payload")
		}
		if m.EpisodicDetail == nil {
			return invalid("episodic", "episodic memory requires an episodic detail")
		}
		return validateEpisodic(m.EpisodicDetail)
	case Semantic:
		if m.EpisodicDetail != nil || m.ProceduralDetail != nil {
			return invalid("type", "semantic memory carries a foreign detail payload")
		}
		if m.SemanticDetail == nil {
			return invalid("semantic", "semantic memory requires a semantic detail")
		}
		return validateSemantic(m.SemanticDetail)
	case Procedural:
		if m.EpisodicDetail != nil || m.SemanticDetail != nil {
			return invalid("type", "procedural memory carries a foreign detail payload")
		}
		if m.ProceduralDetail == nil {
			return invalid("procedural", "procedural memory requires a procedural detail")
		}
		return validateProcedural(m.ProceduralDetail)
	default:
		return invalid("type", "unknown memory type %q", m.Type)
	}
}

func validateEpisodic(d *EpisodicDetail) error {
	if d.EventTimestamp.IsZero() {
		return invalid("episodic.event_timestamp", "must be set")
	}
	if d.EventType == "" {
		return invalid("episodic.event_type", "must not be empty")
	}
	if v := d.EmotionalValence; v != nil && (*v < -1 || *v > 1) {
		return invalid("episodic.emotional_valence", "must be in [-1, 1], got %v", *v)
	}
	return nil
}

func validateSemantic(d *SemanticDetail) error {
	if d.Domain == "" {
		return invalid("semantic.domain", "must not be empty")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return invalid("semantic.confidence", "must be in [0, 1], got %v", d.Confidence)
	}
	if d.ValidFrom != nil && d.ValidUntil != nil && d.ValidFrom.After(*d.ValidUntil) {
		return invalid("semantic.valid_from", "must not be after valid_until")
	}
	return nil
}

func validateProcedural(d *ProceduralDetail) error {
	if d.SkillName == "" {
		return invalid("procedural.skill_name", "must not be empty")
	}
	if len(d.Steps) == 0 {
		return invalid("procedural.steps", "must contain at least one step")
	}
	prev := -1 << 62
	for i, s := range d.Steps {
		if s.Description == "" {
			return invalid("procedural.steps", "step %d has no description", i)
		}
		if s.Order <= prev {
			return invalid("procedural.steps", "step orders must be strictly increasing (step %d: %d after %d)", i, s.Order, prev)
		}
		prev = s.Order
	}
	if d.SuccessCount < 0 || d.FailureCount < 0 {
		return invalid("procedural.counters", "success/failure counts must be >= 0")
	}
	if d.AvgDurationMs != nil && *d.AvgDurationMs < 0 {
		return invalid("procedural.avg_duration_ms", "must be >= 0")
	}
	return nil
}
