package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath           string         `json:"db_path"`
	DBSizeBytes      int64          `json:"db_size_bytes"`
	TotalMemories    int            `json:"total_memories"`
	ActiveMemories   int            `json:"active_memories"`
	ArchivedMemories int            `json:"archived_memories"`
	ProvenanceCount  int            `json:"provenance_count"`
	OpenWindows      int            `json:"open_windows"`
	ByType           map[string]int `json:"by_type"`
	ByImportance     map[string]int `json:"by_importance"`
}

// Stats returns database statistics.
func (s *SQLite) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, ByType: map[string]int{}, ByImportance: map[string]int{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE archived_at IS NULL`).Scan(&st.ActiveMemories)
	st.ArchivedMemories = st.TotalMemories - st.ActiveMemories
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provenance`).Scan(&st.ProvenanceCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recon_events WHERE window_end IS NULL`).Scan(&st.OpenWindows)

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM memories GROUP BY type`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		rows.Scan(&typ, &n)
		st.ByType[typ] = n
	}

	irows, err := s.db.QueryContext(ctx, `SELECT importance, COUNT(*) FROM memories GROUP BY importance`)
	if err != nil {
		return st, err
	}
	defer irows.Close()
	for irows.Next() {
		var imp string
		var n int
		irows.Scan(&imp, &n)
		st.ByImportance[imp] = n
	}

	return st, nil
}
