package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mnemolabs/mnemo/internal/model"
)

// QueryMemories returns candidate memories matching the filter, newest
// first. Text matching here is a coarse candidate cut; the retrieval engine
// re-scores and re-orders on top.
func (s *SQLite) QueryMemories(ctx context.Context, f Filter) ([]model.Memory, error) {
	var conds []string
	var args []any

	if !f.IncludeArchived {
		conds = append(conds, "archived_at IS NULL")
	}

	if len(f.Types) > 0 {
		ph := make([]string, len(f.Types))
		for i, t := range f.Types {
			ph[i] = "?"
			args = append(args, t)
		}
		conds = append(conds, "type IN ("+strings.Join(ph, ", ")+")")
	}

	if len(f.Importance) > 0 {
		ph := make([]string, len(f.Importance))
		for i, p := range f.Importance {
			ph[i] = "?"
			args = append(args, p)
		}
		conds = append(conds, "importance IN ("+strings.Join(ph, ", ")+")")
	}

	if len(f.Tags) > 0 {
		// any-match across the JSON-encoded tag list
		ors := make([]string, len(f.Tags))
		for i, tag := range f.Tags {
			ors[i] = "tags LIKE ?"
			args = append(args, `%"`+tag+`"%`)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if f.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if f.Until != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
	}

	if f.MinConfidence != nil {
		conds = append(conds, "(type != 'semantic' OR json_extract(detail, '$.confidence') >= ?)")
		args = append(args, *f.MinConfidence)
	}

	if f.Text != "" {
		like := "%" + f.Text + "%"
		conds = append(conds, "(content LIKE ? OR context LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like)
	}

	query := fmt.Sprintf(`SELECT %s FROM memories WHERE %s ORDER BY created_at DESC, id DESC`,
		memoryColumns, whereClause(conds))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query memories: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", model.ErrStorage, err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
