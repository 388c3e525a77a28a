package recon

import (
	"encoding/json"
	"fmt"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// Mutable fields a lability window exposes.
const (
	FieldContent         = "content"
	FieldContext         = "context"
	FieldImportance      = "importance"
	FieldTags            = "tags"
	FieldConfidence      = "confidence"
	FieldSourceMemoryIDs = "source_memory_ids"
	FieldContradictsIDs  = "contradicts_ids"
)

// buildPatch turns a (field, value) pair into a store patch, returning the
// JSON-encoded previous and new values for the audit trail.
func buildPatch(m *model.Memory, field string, value any) (store.Patch, json.RawMessage, json.RawMessage, error) {
	var p store.Patch
	var prev, next any

	switch field {
	case FieldContent:
		s, err := toString(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.Content = &s
		prev, next = m.Content, s
	case FieldContext:
		s, err := toString(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.Context = &s
		prev, next = m.Context, s
	case FieldImportance:
		s, err := toString(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		imp := model.Importance(s)
		if !model.ValidImportances[imp] {
			return p, nil, nil, &model.ValidationError{Field: field, Reason: fmt.Sprintf("unknown level %q", s)}
		}
		p.Importance = &imp
		prev, next = m.Importance, imp
	case FieldTags:
		tags, err := toStringSlice(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.Tags = &tags
		prev, next = m.Tags, tags
	case FieldConfidence:
		f, err := toFloat(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.Confidence = &f
		prev, next = m.Confidence(), f
	case FieldSourceMemoryIDs:
		ids, err := toStringSlice(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.SourceMemoryIDs = &ids
		prev, next = semanticIDs(m, true), ids
	case FieldContradictsIDs:
		ids, err := toStringSlice(value)
		if err != nil {
			return p, nil, nil, invalidField(field, err)
		}
		p.ContradictsIDs = &ids
		prev, next = semanticIDs(m, false), ids
	default:
		return p, nil, nil, &model.ValidationError{Field: field, Reason: "field is not mutable in a lability window"}
	}

	prevJSON, _ := json.Marshal(prev)
	nextJSON, _ := json.Marshal(next)
	return p, prevJSON, nextJSON, nil
}

func invalidField(field string, err error) error {
	return &model.ValidationError{Field: field, Reason: err.Error()}
}

// weakens reports whether a patch reduces importance or confidence.
func weakens(m *model.Memory, field string, p store.Patch) bool {
	switch field {
	case FieldImportance:
		return p.Importance != nil &&
			model.ImportanceWeight(*p.Importance) < model.ImportanceWeight(m.Importance)
	case FieldConfidence:
		return p.Confidence != nil && *p.Confidence < m.Confidence()
	}
	return false
}

// finalState summarizes a window's applied updates: strengthened/weakened
// when the net importance/confidence change is positive/negative, updated
// when anything else changed, unchanged otherwise.
func finalState(updates []model.AppliedUpdate) model.FinalState {
	if len(updates) == 0 {
		return model.StateUnchanged
	}

	net := 0.0
	for _, u := range updates {
		switch u.Field {
		case FieldConfidence:
			var prev, next float64
			if json.Unmarshal(u.Previous, &prev) == nil && json.Unmarshal(u.New, &next) == nil {
				net += next - prev
			}
		case FieldImportance:
			var prev, next string
			if json.Unmarshal(u.Previous, &prev) == nil && json.Unmarshal(u.New, &next) == nil {
				net += model.ImportanceWeight(model.Importance(next)) - model.ImportanceWeight(model.Importance(prev))
			}
		}
	}

	switch {
	case net > 0:
		return model.StateStrengthened
	case net < 0:
		return model.StateWeakened
	default:
		return model.StateUpdated
	}
}

func semanticIDs(m *model.Memory, sources bool) []string {
	if m.SemanticDetail == nil {
		return nil
	}
	if sources {
		return m.SemanticDetail.SourceMemoryIDs
	}
	return m.SemanticDetail.ContradictsIDs
}

// diff returns the elements of a not present in b.
func diff(a, b []string) []string {
	in := map[string]bool{}
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if !in[s] {
			out = append(out, s)
		}
	}
	return out
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func toFloat(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toStringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string list, got %T", v)
}
