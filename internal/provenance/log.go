// Package provenance exposes the append-only audit log and belief tracing.
//
// The log for a memory, ordered by creation, is the sole source of truth for
// why a belief exists. Entries are never updated or deleted.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// Log is the provenance surface over the persistence collaborator.
type Log struct {
	store store.Store
	log   *zap.Logger
}

// NewLog creates a provenance log over a store.
func NewLog(s store.Store, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: s, log: logger}
}

// Append stores a well-formed entry, returning its assigned id. Storage
// failures surface to the caller; they are never swallowed.
func (l *Log) Append(ctx context.Context, e *model.ProvenanceEntry) (string, error) {
	id, err := l.store.AppendProvenance(ctx, e)
	if err != nil {
		return "", err
	}
	l.log.Debug("provenance appended",
		zap.String("memory_id", e.MemoryID),
		zap.String("event", string(e.EventType)))
	return id, nil
}

// History returns a memory's entries in creation order.
func (l *Log) History(ctx context.Context, memoryID string, limit, offset int) ([]model.ProvenanceEntry, error) {
	return l.store.ProvenanceHistory(ctx, memoryID, limit, offset)
}

// TraceOptions bound a provenance walk.
type TraceOptions struct {
	// MaxDepth bounds the derivation-chain walk; <= 0 means depth 1
	// (the memory itself, no sources).
	MaxDepth int
	// IncludeAccessHistory adds plain access entries to the result.
	IncludeAccessHistory bool
	// IncludeReconsolidations adds closed-window events to the result.
	IncludeReconsolidations bool
}

// BeliefProvenance is the assembled history of why a memory exists.
type BeliefProvenance struct {
	MemoryID         string                       `json:"memory_id"`
	MemoryType       model.MemoryType             `json:"memory_type"`
	Created          *model.ProvenanceEntry       `json:"created,omitempty"`
	Modifications    []model.ProvenanceEntry      `json:"modifications,omitempty"`
	Accesses         []model.ProvenanceEntry      `json:"accesses,omitempty"`
	Reconsolidations []model.ReconsolidationEvent `json:"reconsolidations,omitempty"`
	DerivedFrom      []*BeliefProvenance          `json:"derived_from,omitempty"`
	Truncated        bool                         `json:"truncated,omitempty"`
	Summary          string                       `json:"summary"`
}

// Trace walks a memory's creation entry and its derivation chain, bounded by
// MaxDepth. Cyclic or malformed links are truncated via a visited set, not
// treated as errors.
func (l *Log) Trace(ctx context.Context, memoryID string, opts TraceOptions) (*BeliefProvenance, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	visited := map[string]bool{}
	root, err := l.trace(ctx, memoryID, opts, opts.MaxDepth, visited)
	if err != nil {
		return nil, err
	}
	root.Summary = summarize(root, 0)
	return root, nil
}

func (l *Log) trace(ctx context.Context, memoryID string, opts TraceOptions, depth int, visited map[string]bool) (*BeliefProvenance, error) {
	visited[memoryID] = true

	mem, err := l.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	history, err := l.store.ProvenanceHistory(ctx, memoryID, 0, 0)
	if err != nil {
		return nil, err
	}

	bp := &BeliefProvenance{MemoryID: memoryID, MemoryType: mem.Type}
	sourceIDs := map[string]bool{}
	if mem.SemanticDetail != nil {
		for _, id := range mem.SemanticDetail.SourceMemoryIDs {
			sourceIDs[id] = true
		}
	}

	for i := range history {
		e := history[i]
		switch e.EventType {
		case model.EventCreated:
			if bp.Created == nil {
				bp.Created = &history[i]
			}
		case model.EventModified, model.EventImportanceChanged:
			bp.Modifications = append(bp.Modifications, e)
		case model.EventAccessed:
			if opts.IncludeAccessHistory {
				bp.Accesses = append(bp.Accesses, e)
			}
		case model.EventLinked:
			if e.Link != nil && e.Link.Relation == "derives_from" {
				sourceIDs[e.Link.TargetID] = true
			}
		case model.EventUnlinked:
			if e.Link != nil && e.Link.Relation == "derives_from" {
				delete(sourceIDs, e.Link.TargetID)
			}
		}
	}

	if opts.IncludeReconsolidations {
		events, err := l.store.ReconEvents(ctx, memoryID)
		if err != nil {
			return nil, err
		}
		bp.Reconsolidations = events
	}

	// children recurse in sorted id order so a trace is stable across runs
	ids := make([]string, 0, len(sourceIDs))
	for id := range sourceIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if visited[id] {
			bp.Truncated = true
			continue
		}
		if depth <= 1 {
			bp.Truncated = true
			continue
		}
		child, err := l.trace(ctx, id, opts, depth-1, visited)
		if err != nil {
			// a dangling source link truncates the walk rather than
			// failing the whole trace
			if errors.Is(err, model.ErrNotFound) {
				bp.Truncated = true
				continue
			}
			return nil, err
		}
		bp.DerivedFrom = append(bp.DerivedFrom, child)
	}

	return bp, nil
}

func summarize(bp *BeliefProvenance, indent int) string {
	var b strings.Builder
	pad := strings.Repeat("  ", indent)

	fmt.Fprintf(&b, "%s%s (%s)", pad, bp.MemoryID, bp.MemoryType)
	if bp.Created != nil {
		fmt.Fprintf(&b, " created %s", bp.Created.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if n := len(bp.Modifications); n > 0 {
		fmt.Fprintf(&b, ", modified %d time(s)", n)
	}
	if n := len(bp.Reconsolidations); n > 0 {
		fmt.Fprintf(&b, ", reconsolidated %d time(s)", n)
	}
	if n := len(bp.Accesses); n > 0 {
		fmt.Fprintf(&b, ", accessed %d time(s)", n)
	}
	if bp.Truncated {
		b.WriteString(" [chain truncated]")
	}
	for _, child := range bp.DerivedFrom {
		b.WriteString("\n" + pad + "derives from:\n")
		b.WriteString(summarize(child, indent+1))
	}
	return b.String()
}
