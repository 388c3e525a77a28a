// Package schema manages the per-agent self-schema: the structured model of
// who the agent is, grounded in evidence memories.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// Manager serializes self-schema mutations for an agent. Every identity
// statement, capability, and narrative chapter must cite at least one
// evidence memory that resolves against the store; archived memories still
// count as evidence.
type Manager struct {
	store store.Store
	log   *zap.Logger

	mu sync.Mutex
}

func NewManager(s store.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: s, log: logger}
}

// Get returns the agent's current self-schema, or model.ErrNotFound when
// the agent has never had one written.
func (m *Manager) Get(ctx context.Context, agentID string) (*model.SelfSchema, error) {
	return m.store.GetSelfSchema(ctx, agentID)
}

// Mutator applies a structural change to the schema in place.
type Mutator func(*model.SelfSchema) error

// Update loads the agent's schema (starting from an empty one on first use),
// applies the mutator, bumps version and updatedAt, validates the result
// against the store, and persists it. The whole sequence runs under a lock,
// so concurrent updates see each other's writes.
func (m *Manager) Update(ctx context.Context, agentID string, mutate Mutator) (*model.SelfSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	schema, err := m.store.GetSelfSchema(ctx, agentID)
	fresh := errors.Is(err, model.ErrNotFound)
	if fresh {
		schema = model.NewSelfSchema(agentID)
	} else if err != nil {
		return nil, err
	}

	if err := mutate(schema); err != nil {
		return nil, err
	}
	schema.AgentID = agentID
	if !fresh {
		schema.Version++
	}
	schema.UpdatedAt = time.Now().UTC()

	var resolveErr error
	resolve := func(id string) bool {
		ok, err := m.store.MemoryExists(ctx, id)
		if err != nil && resolveErr == nil {
			resolveErr = err
		}
		return ok
	}
	if err := model.ValidateSelfSchema(schema, resolve); err != nil {
		if resolveErr != nil {
			return nil, fmt.Errorf("resolve evidence: %w", resolveErr)
		}
		return nil, err
	}

	if err := m.store.PutSelfSchema(ctx, schema); err != nil {
		return nil, err
	}
	m.log.Debug("self-schema updated",
		zap.String("agent_id", agentID),
		zap.Int("version", schema.Version))
	return schema, nil
}

// AddStatement appends an identity statement backed by evidence memories.
func (m *Manager) AddStatement(ctx context.Context, agentID string, st model.IdentityStatement) (*model.SelfSchema, error) {
	return m.Update(ctx, agentID, func(s *model.SelfSchema) error {
		s.Present.Statements = append(s.Present.Statements, st)
		return nil
	})
}

// AddCapability appends a capability backed by evidence memories.
func (m *Manager) AddCapability(ctx context.Context, agentID string, c model.Capability) (*model.SelfSchema, error) {
	return m.Update(ctx, agentID, func(s *model.SelfSchema) error {
		s.Present.Capabilities = append(s.Present.Capabilities, c)
		return nil
	})
}

// AddChapter appends a narrative chapter backed by evidence memories.
func (m *Manager) AddChapter(ctx context.Context, agentID string, ch model.Chapter) (*model.SelfSchema, error) {
	return m.Update(ctx, agentID, func(s *model.SelfSchema) error {
		s.Narrative.Chapters = append(s.Narrative.Chapters, ch)
		return nil
	})
}
