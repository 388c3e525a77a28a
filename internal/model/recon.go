package model

import (
	"encoding/json"
	"time"
)

// RetrievalTrigger names the cause of a memory access.
type RetrievalTrigger string

const (
	TriggerExplicitRecall RetrievalTrigger = "explicit_recall"
	TriggerSearch         RetrievalTrigger = "search"
	TriggerAssociative    RetrievalTrigger = "associative"
	TriggerCueMatch       RetrievalTrigger = "cue_match"
	TriggerRandom         RetrievalTrigger = "random"
)

// ValidTriggers are the recognized retrieval triggers.
var ValidTriggers = map[RetrievalTrigger]bool{
	TriggerExplicitRecall: true,
	TriggerSearch:         true,
	TriggerAssociative:    true,
	TriggerCueMatch:       true,
	TriggerRandom:         true,
}

// RetrievalContext describes why a memory was accessed.
type RetrievalContext struct {
	Trigger   RetrievalTrigger `json:"trigger"`
	Query     string           `json:"query,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
}

// FinalState summarizes the net effect of a closed lability window.
type FinalState string

const (
	StateUpdated      FinalState = "updated"
	StateUnchanged    FinalState = "unchanged"
	StateStrengthened FinalState = "strengthened"
	StateWeakened     FinalState = "weakened"
)

// AppliedUpdate is one accepted field-level mutation inside a window.
type AppliedUpdate struct {
	Field     string          `json:"field"`
	Previous  json.RawMessage `json:"previous"`
	New       json.RawMessage `json:"new"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReconsolidationEvent tracks one lability window of a memory. At most one
// event per memory may have a nil WindowEnd at any time.
type ReconsolidationEvent struct {
	ID             string           `json:"id"`
	MemoryID       string           `json:"memory_id"`
	WindowStart    time.Time        `json:"lability_window_start"`
	WindowEnd      *time.Time       `json:"lability_window_end,omitempty"`
	Trigger        RetrievalTrigger `json:"trigger"`
	TriggerContext string           `json:"trigger_context,omitempty"`
	Updates        []AppliedUpdate  `json:"updates_applied,omitempty"`
	FinalState     FinalState       `json:"final_state,omitempty"`
}

// Open reports whether the event's lability window is still open.
func (e *ReconsolidationEvent) Open() bool { return e.WindowEnd == nil }
