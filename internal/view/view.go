// Package view projects a materialized memory set into a filtered,
// paginated read model. The projection never mutates the records it is
// given and never touches the store.
package view

import (
	"sort"
	"strings"

	"github.com/mnemolabs/mnemo/internal/model"
)

// DefaultPageSize is the page increment used when none is configured.
const DefaultPageSize = 25

// Projection is the view state: active filters plus how many records are
// currently visible. The zero value shows one default page, unfiltered.
type Projection struct {
	Type       model.MemoryType // empty means all types
	Importance model.Importance // empty means all levels
	Search     string           // case-insensitive substring over content and context
	PageSize   int
	visible    int
}

// NewProjection returns a projection showing one page.
func NewProjection(pageSize int) *Projection {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Projection{PageSize: pageSize, visible: pageSize}
}

// SetType replaces the type filter and resets paging.
func (p *Projection) SetType(t model.MemoryType) {
	p.Type = t
	p.resetPaging()
}

// SetImportance replaces the importance filter and resets paging.
func (p *Projection) SetImportance(imp model.Importance) {
	p.Importance = imp
	p.resetPaging()
}

// SetSearch replaces the search substring and resets paging.
func (p *Projection) SetSearch(q string) {
	p.Search = q
	p.resetPaging()
}

// ShowMore extends the visible window by one page. Filters are untouched.
func (p *Projection) ShowMore() {
	p.visible += p.pageSize()
}

// Result is one application of the projection.
type Result struct {
	Memories []model.Memory
	Total    int  // matches before pagination
	HasMore  bool // more matches beyond the visible window
}

// Apply filters, orders and paginates the given records. It is a pure
// function of the projection state and its input: applying twice yields the
// same result, and the input slice is never reordered in place.
func (p *Projection) Apply(memories []model.Memory) Result {
	matched := make([]model.Memory, 0, len(memories))
	for _, m := range memories {
		if p.matches(&m) {
			matched = append(matched, m)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	window := p.visibleCount()
	if window > total {
		window = total
	}
	return Result{
		Memories: matched[:window],
		Total:    total,
		HasMore:  total > window,
	}
}

func (p *Projection) matches(m *model.Memory) bool {
	if p.Type != "" && m.Type != p.Type {
		return false
	}
	if p.Importance != "" && m.Importance != p.Importance {
		return false
	}
	if p.Search != "" {
		q := strings.ToLower(p.Search)
		if !strings.Contains(strings.ToLower(m.Content), q) &&
			!strings.Contains(strings.ToLower(m.Context), q) {
			return false
		}
	}
	return true
}

func (p *Projection) pageSize() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

func (p *Projection) visibleCount() int {
	if p.visible <= 0 {
		return p.pageSize()
	}
	return p.visible
}

func (p *Projection) resetPaging() {
	p.visible = p.pageSize()
}
