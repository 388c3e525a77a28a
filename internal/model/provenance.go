package model

import (
	"encoding/json"
	"time"
)

// ProvenanceEventType names a lifecycle event in a memory's audit trail.
type ProvenanceEventType string

const (
	EventCreated           ProvenanceEventType = "created"
	EventAccessed          ProvenanceEventType = "accessed"
	EventModified          ProvenanceEventType = "modified"
	EventReconsolidated    ProvenanceEventType = "reconsolidated"
	EventLinked            ProvenanceEventType = "linked"
	EventUnlinked          ProvenanceEventType = "unlinked"
	EventImportanceChanged ProvenanceEventType = "importance_changed"
	EventConsolidated      ProvenanceEventType = "consolidated"
	EventArchived          ProvenanceEventType = "archived"
	EventRestored          ProvenanceEventType = "restored"
)

// ValidEventTypes are the allowed provenance event types.
var ValidEventTypes = map[ProvenanceEventType]bool{
	EventCreated: true, EventAccessed: true, EventModified: true,
	EventReconsolidated: true, EventLinked: true, EventUnlinked: true,
	EventImportanceChanged: true, EventConsolidated: true,
	EventArchived: true, EventRestored: true,
}

// ProvenanceEntry is one immutable audit record. At most one payload field is
// set, matching EventType; entries are never updated or deleted.
type ProvenanceEntry struct {
	ID        string              `json:"id"`
	MemoryID  string              `json:"memory_id"`
	EventType ProvenanceEventType `json:"event_type"`
	SessionID string              `json:"session_id,omitempty"`
	Version   int                 `json:"version,omitempty"`
	CreatedAt time.Time           `json:"created_at"`

	Created           *CreatedPayload           `json:"created,omitempty"`
	Accessed          *AccessedPayload          `json:"accessed,omitempty"`
	Modified          *ModifiedPayload          `json:"modified,omitempty"`
	Reconsolidated    *ReconsolidatedPayload    `json:"reconsolidated,omitempty"`
	Link              *LinkPayload              `json:"link,omitempty"`
	ImportanceChanged *ImportanceChangedPayload `json:"importance_changed,omitempty"`
	Consolidated      *ConsolidatedPayload      `json:"consolidated,omitempty"`
	Archived          *ArchivedPayload          `json:"archived,omitempty"`
}

// CreatedPayload records the birth of a memory.
type CreatedPayload struct {
	MemoryType MemoryType `json:"memory_type"`
	Importance Importance `json:"importance"`
}

// AccessedPayload records a retrieval of a memory.
type AccessedPayload struct {
	Trigger                  RetrievalTrigger `json:"trigger"`
	Context                  string           `json:"context,omitempty"`
	TriggeredReconsolidation bool             `json:"triggered_reconsolidation"`
}

// ModifiedPayload records one field-level update inside a lability window.
type ModifiedPayload struct {
	EventID  string          `json:"event_id"` // owning reconsolidation event
	Field    string          `json:"field"`
	Previous json.RawMessage `json:"previous"`
	New      json.RawMessage `json:"new"`
	Reason   string          `json:"reason,omitempty"`
}

// ReconsolidatedPayload records the closure of a lability window.
type ReconsolidatedPayload struct {
	EventID    string     `json:"event_id"`
	FinalState FinalState `json:"final_state"`
	Updates    int        `json:"updates"`
	TimedOut   bool       `json:"timed_out,omitempty"`
}

// LinkPayload records a link added to or removed from another memory.
type LinkPayload struct {
	TargetID string `json:"target_id"`
	Relation string `json:"relation"` // derives_from | contradicts
}

// ImportanceChangedPayload records an importance transition.
type ImportanceChangedPayload struct {
	Previous Importance `json:"previous"`
	New      Importance `json:"new"`
}

// ConsolidatedPayload records a consolidation into a derived memory.
type ConsolidatedPayload struct {
	DerivedMemoryID string   `json:"derived_memory_id,omitempty"`
	SourceMemoryIDs []string `json:"source_memory_ids,omitempty"`
}

// ArchivedPayload records a logical deletion (or its reason).
type ArchivedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ValidateEntry checks that an entry is well formed and that its payload
// matches its event type. The log accepts any entry that passes here.
func ValidateEntry(e *ProvenanceEntry) error {
	if e == nil {
		return invalid("entry", "nil entry")
	}
	if e.MemoryID == "" {
		return invalid("entry.memory_id", "must not be empty")
	}
	if !ValidEventTypes[e.EventType] {
		return invalid("entry.event_type", "unknown event type %q", e.EventType)
	}

	payloads := 0
	for _, set := range []bool{
		e.Created != nil, e.Accessed != nil, e.Modified != nil,
		e.Reconsolidated != nil, e.Link != nil, e.ImportanceChanged != nil,
		e.Consolidated != nil, e.Archived != nil,
	} {
		if set {
			payloads++
		}
	}
	if payloads > 1 {
		return invalid("entry", "multiple payloads set")
	}

	switch e.EventType {
	case EventCreated:
		if e.Created == nil {
			return invalid("entry.created", "created entry requires a created payload")
		}
	case EventAccessed:
		if e.Accessed == nil {
			return invalid("entry.accessed", "accessed entry requires an accessed payload")
		}
	case EventModified:
		if e.Modified == nil || e.Modified.Field == "" {
			return invalid("entry.modified", "modified entry requires a field-level payload")
		}
	case EventReconsolidated:
		if e.Reconsolidated == nil || e.Reconsolidated.EventID == "" {
			return invalid("entry.reconsolidated", "reconsolidated entry must reference its event")
		}
	case EventLinked, EventUnlinked:
		if e.Link == nil || e.Link.TargetID == "" {
			return invalid("entry.link", "link entry requires a target")
		}
	case EventImportanceChanged:
		if e.ImportanceChanged == nil {
			return invalid("entry.importance_changed", "requires previous/new levels")
		}
	case EventConsolidated, EventArchived, EventRestored:
		// payload optional
	}
	return nil
}
