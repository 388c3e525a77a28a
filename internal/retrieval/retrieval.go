// Package retrieval ranks stored memories with a hybrid score and packs
// results under a token budget.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

// SortKey selects the ranking order of query results.
type SortKey string

const (
	SortRelevance   SortKey = "relevance"
	SortRecency     SortKey = "recency"
	SortImportance  SortKey = "importance"
	SortAccessCount SortKey = "access_count"
)

var validSortKeys = map[SortKey]bool{
	SortRelevance: true, SortRecency: true, SortImportance: true, SortAccessCount: true,
}

// Criteria describes one retrieval query. The zero value sorts by relevance
// with the configured default limit.
type Criteria struct {
	Text            string
	Types           []model.MemoryType
	Importance      []model.Importance
	Tags            []string // any-match
	Since           *time.Time
	Until           *time.Time
	MinConfidence   *float64
	IncludeArchived bool
	Limit           int
	Offset          int
	SortBy          SortKey
}

// ScoredMemory pairs a memory with its hybrid relevance score.
type ScoredMemory struct {
	Memory *model.Memory
	Score  float64
}

// BudgetResult is a budget-packed retrieval: records are whole, never
// truncated, and TotalCost never exceeds the budget.
type BudgetResult struct {
	Selected  []ScoredMemory
	TotalCost int
	Budget    int
}

// CostFn prices one memory in budget units (tokens by default).
type CostFn func(m *model.Memory) int

// Engine ranks candidates from the store. Queries never count as accesses;
// recording an access is the reconsolidation engine's job.
type Engine struct {
	store store.Store
	cfg   config.Retrieval
	log   *zap.Logger
	now   func() time.Time
}

func NewEngine(s store.Store, cfg config.Retrieval, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, cfg: cfg, log: logger, now: time.Now}
}

// Query validates the criteria, fetches candidates and ranks them.
func (e *Engine) Query(ctx context.Context, c Criteria) ([]ScoredMemory, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if c.Limit == 0 {
		c.Limit = e.cfg.DefaultLimit
	}
	if c.SortBy == "" {
		c.SortBy = SortRelevance
	}

	// The store narrows candidates; limit and offset apply after ranking,
	// so the full candidate set is fetched here.
	candidates, err := e.store.QueryMemories(ctx, store.Filter{
		Text:            c.Text,
		Types:           c.Types,
		Importance:      c.Importance,
		Tags:            c.Tags,
		Since:           c.Since,
		Until:           c.Until,
		MinConfidence:   c.MinConfidence,
		IncludeArchived: c.IncludeArchived,
		Limit:           -1,
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	scored := make([]ScoredMemory, 0, len(candidates))
	for i := range candidates {
		m := &candidates[i]
		scored = append(scored, ScoredMemory{Memory: m, Score: e.score(m, c.Text, now)})
	}
	e.sortBy(scored, c.SortBy)

	if c.Offset >= len(scored) {
		return nil, nil
	}
	scored = scored[c.Offset:]
	if c.Limit > 0 && len(scored) > c.Limit {
		scored = scored[:c.Limit]
	}
	e.log.Debug("query ranked",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(scored)),
		zap.String("sort", string(c.SortBy)))
	return scored, nil
}

// QueryWithinBudget ranks by relevance and greedily packs whole records in
// descending score order. A record that does not fit is skipped, never
// truncated; packing continues with cheaper records further down.
func (e *Engine) QueryWithinBudget(ctx context.Context, c Criteria, budget int, cost CostFn) (*BudgetResult, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: budget must be positive, got %d", model.ErrInvalidQuery, budget)
	}
	if cost == nil {
		return nil, fmt.Errorf("%w: nil cost function", model.ErrInvalidQuery)
	}
	c.SortBy = SortRelevance
	scored, err := e.Query(ctx, c)
	if err != nil {
		return nil, err
	}

	res := &BudgetResult{Budget: budget}
	for _, s := range scored {
		price := cost(s.Memory)
		if price <= 0 {
			price = 1
		}
		if res.TotalCost+price > budget {
			continue
		}
		res.Selected = append(res.Selected, s)
		res.TotalCost += price
	}
	return res, nil
}

func validate(c Criteria) error {
	if c.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", model.ErrInvalidQuery, c.Limit)
	}
	if c.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", model.ErrInvalidQuery, c.Offset)
	}
	if c.SortBy != "" && !validSortKeys[c.SortBy] {
		return fmt.Errorf("%w: unknown sort key %q", model.ErrInvalidQuery, c.SortBy)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("%w: min confidence must be in [0, 1], got %v", model.ErrInvalidQuery, *c.MinConfidence)
	}
	for _, t := range c.Types {
		if !model.ValidTypes[t] {
			return fmt.Errorf("%w: unknown memory type %q", model.ErrInvalidQuery, t)
		}
	}
	for _, p := range c.Importance {
		if !model.ValidImportances[p] {
			return fmt.Errorf("%w: unknown importance %q", model.ErrInvalidQuery, p)
		}
	}
	if c.Since != nil && c.Until != nil && c.Since.After(*c.Until) {
		return fmt.Errorf("%w: since is after until", model.ErrInvalidQuery)
	}
	return nil
}

// score blends text match, recency, importance and access frequency.
func (e *Engine) score(m *model.Memory, text string, now time.Time) float64 {
	recency := 0.0
	if e.cfg.RecencyHalfLifeHours > 0 {
		age := now.Sub(m.CreatedAt).Hours()
		if age < 0 {
			age = 0
		}
		recency = math.Exp(-math.Ln2 * age / e.cfg.RecencyHalfLifeHours)
	}
	frequency := math.Log1p(float64(m.AccessCount)) / math.Log1p(100)
	if frequency > 1 {
		frequency = 1
	}

	return e.cfg.TextWeight*textMatch(m, text) +
		e.cfg.RecencyWeight*recency +
		e.cfg.ImportanceWeight*model.ImportanceWeight(m.Importance) +
		e.cfg.FrequencyWeight*frequency
}

// textMatch scores each query term by where it hits: content beats context
// beats tags. The result is the mean over terms, in [0, 1].
func textMatch(m *model.Memory, text string) float64 {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return 0
	}
	content := strings.ToLower(m.Content)
	context := strings.ToLower(m.Context)
	tags := make([]string, len(m.Tags))
	for i, t := range m.Tags {
		tags[i] = strings.ToLower(t)
	}

	total := 0.0
	for _, term := range terms {
		switch {
		case strings.Contains(content, term):
			total += 1.0
		case strings.Contains(context, term):
			total += 0.6
		case anyContains(tags, term):
			total += 0.3
		}
	}
	return total / float64(len(terms))
}

func anyContains(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

func (e *Engine) sortBy(scored []ScoredMemory, key SortKey) {
	less := func(a, b ScoredMemory) bool { return a.Score > b.Score }
	switch key {
	case SortRecency:
		less = func(a, b ScoredMemory) bool {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
	case SortImportance:
		less = func(a, b ScoredMemory) bool {
			return model.ImportanceWeight(a.Memory.Importance) > model.ImportanceWeight(b.Memory.Importance)
		}
	case SortAccessCount:
		less = func(a, b ScoredMemory) bool {
			return a.Memory.AccessCount > b.Memory.AccessCount
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		return a.Memory.ID > b.Memory.ID
	})
}
