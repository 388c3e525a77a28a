package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mnemolabs/mnemo/internal/ident"
	"github.com/mnemolabs/mnemo/internal/model"
)

// SQLite implements Store on a single SQLite database file.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
	gen *ident.Generator
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens or creates a database at the given path.
func NewSQLite(dbPath string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db dir: %v", model.ErrStorage, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", model.ErrStorage, err)
	}

	s := &SQLite{db: db, log: log, gen: ident.NewGenerator()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", model.ErrStorage, err)
	}

	log.Debug("store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id              TEXT PRIMARY KEY,
		type            TEXT NOT NULL,
		content         TEXT NOT NULL,
		context         TEXT,
		importance      TEXT NOT NULL DEFAULT 'normal',
		tags            TEXT,
		embedding       BLOB,
		created_at      TEXT NOT NULL,
		access_count    INTEGER NOT NULL DEFAULT 0,
		last_accessed   TEXT,
		is_consolidated INTEGER NOT NULL DEFAULT 0,
		archived_at     TEXT,
		schema_version  INTEGER NOT NULL DEFAULT 1,
		detail          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_archived ON memories(archived_at);
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);

	CREATE TABLE IF NOT EXISTS provenance (
		id         TEXT PRIMARY KEY,
		memory_id  TEXT NOT NULL REFERENCES memories(id),
		event_type TEXT NOT NULL,
		session_id TEXT,
		version    INTEGER,
		payload    TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_provenance_memory ON provenance(memory_id);

	CREATE TABLE IF NOT EXISTS recon_events (
		id                TEXT PRIMARY KEY,
		memory_id         TEXT NOT NULL REFERENCES memories(id),
		window_start      TEXT NOT NULL,
		window_end        TEXT,
		retrieval_trigger TEXT NOT NULL,
		trigger_context   TEXT,
		updates           TEXT,
		final_state       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_recon_memory ON recon_events(memory_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_recon_open
		ON recon_events(memory_id) WHERE window_end IS NULL;

	CREATE TABLE IF NOT EXISTS self_schemas (
		agent_id   TEXT PRIMARY KEY,
		doc        TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id           TEXT PRIMARY KEY,
		agent_id     TEXT NOT NULL,
		exported_at  TEXT NOT NULL,
		checksum     TEXT NOT NULL,
		memory_count INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateMemory validates the memory and persists it together with its
// `created` provenance entry in one transaction.
func (s *SQLite) CreateMemory(ctx context.Context, m *model.Memory) error {
	if err := model.Validate(m); err != nil {
		return err
	}

	detail, err := marshalDetail(m)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, type, content, context, importance, tags, embedding,
		                       created_at, access_count, last_accessed, is_consolidated,
		                       archived_at, schema_version, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Type, m.Content, nullStr(m.Context), m.Importance, tagsJSON(m.Tags),
		encodeVector(m.Embedding), m.CreatedAt.UTC().Format(time.RFC3339Nano),
		m.AccessCount, nullTime(m.LastAccessed), boolInt(m.IsConsolidated),
		nullTime(m.ArchivedAt), m.SchemaVersion, detail)
	if err != nil {
		return fmt.Errorf("%w: insert memory: %v", model.ErrStorage, err)
	}

	created := &model.ProvenanceEntry{
		MemoryID:  m.ID,
		EventType: model.EventCreated,
		Created:   &model.CreatedPayload{MemoryType: m.Type, Importance: m.Importance},
	}
	if _, err := s.appendProvenanceTx(ctx, tx, created); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	s.log.Debug("memory created", zap.String("id", m.ID), zap.String("type", string(m.Type)))
	return nil
}

// GetMemory returns one memory by id, archived included.
func (s *SQLite) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get memory: %v", model.ErrStorage, err)
	}
	return &m, nil
}

// MemoryExists reports whether an id resolves, archived included.
func (s *SQLite) MemoryExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", model.ErrStorage, err)
	}
	return true, nil
}

// UpdateMemory applies a field-level patch inside a transaction. The patched
// record is validated before the write, so a malformed patch mutates nothing.
func (s *SQLite) UpdateMemory(ctx context.Context, id string, p Patch) (*model.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	m, err := s.applyPatchTx(ctx, tx, id, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return m, nil
}

func (s *SQLite) applyPatchTx(ctx context.Context, tx *sql.Tx, id string, p Patch) (*model.Memory, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read memory: %v", model.ErrStorage, err)
	}

	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Context != nil {
		m.Context = *p.Context
	}
	if p.Importance != nil {
		m.Importance = *p.Importance
	}
	if p.Tags != nil {
		m.Tags = *p.Tags
	}
	if p.IsConsolidated != nil {
		m.IsConsolidated = *p.IsConsolidated
	}
	if p.Confidence != nil || p.SourceMemoryIDs != nil || p.ContradictsIDs != nil {
		if m.SemanticDetail == nil {
			return nil, &model.ValidationError{Field: "patch", Reason: fmt.Sprintf("memory %s is not semantic", id)}
		}
		if p.Confidence != nil {
			m.SemanticDetail.Confidence = *p.Confidence
		}
		if p.SourceMemoryIDs != nil {
			m.SemanticDetail.SourceMemoryIDs = *p.SourceMemoryIDs
		}
		if p.ContradictsIDs != nil {
			m.SemanticDetail.ContradictsIDs = *p.ContradictsIDs
		}
	}

	if err := model.Validate(&m); err != nil {
		return nil, err
	}

	detail, err := marshalDetail(&m)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET content = ?, context = ?, importance = ?, tags = ?,
		                     is_consolidated = ?, detail = ?
		 WHERE id = ?`,
		m.Content, nullStr(m.Context), m.Importance, tagsJSON(m.Tags),
		boolInt(m.IsConsolidated), detail, id)
	if err != nil {
		return nil, fmt.Errorf("%w: update memory: %v", model.ErrStorage, err)
	}
	return &m, nil
}

// RecordAccess bumps the access counter and last_accessed timestamp,
// appending the `accessed` provenance entry in the same transaction: the
// counter can never advance while the access is unlogged.
func (s *SQLite) RecordAccess(ctx context.Context, id string, at time.Time, entry *model.ProvenanceEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("%w: record access: %v", model.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}

	if _, err := s.appendProvenanceTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

// ArchiveMemory marks a memory as logically deleted. The record and its
// provenance persist for audit.
func (s *SQLite) ArchiveMemory(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived_at = ? WHERE id = ? AND archived_at IS NULL`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("%w: archive: %v", model.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if ok, _ := s.MemoryExists(ctx, id); !ok {
			return fmt.Errorf("%w: %s", model.ErrNotFound, id)
		}
	}
	return nil
}

// RestoreMemory clears the logical-delete marker.
func (s *SQLite) RestoreMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET archived_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: restore: %v", model.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return nil
}

const memoryColumns = `id, type, content, context, importance, tags, embedding,
	created_at, access_count, last_accessed, is_consolidated, archived_at,
	schema_version, detail`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var ctxStr, tags, lastAccessed, archivedAt sql.NullString
	var embedding []byte
	var createdAt, detail string
	var consolidated int

	err := row.Scan(
		&m.ID, &m.Type, &m.Content, &ctxStr, &m.Importance, &tags, &embedding,
		&createdAt, &m.AccessCount, &lastAccessed, &consolidated, &archivedAt,
		&m.SchemaVersion, &detail,
	)
	if err != nil {
		return m, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.IsConsolidated = consolidated != 0
	if ctxStr.Valid {
		m.Context = ctxStr.String
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &m.Tags)
	}
	m.Embedding = decodeVector(embedding)
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAccessed.String)
		m.LastAccessed = &t
	}
	if archivedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, archivedAt.String)
		m.ArchivedAt = &t
	}

	if err := unmarshalDetail(&m, detail); err != nil {
		return m, err
	}
	return m, nil
}

func marshalDetail(m *model.Memory) (string, error) {
	var v any
	switch m.Type {
	case model.Episodic:
		v = m.EpisodicDetail
	case model.Semantic:
		v = m.SemanticDetail
	case model.Procedural:
		v = m.ProceduralDetail
	default:
		return "", &model.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown memory type %q", m.Type)}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(b), nil
}

func unmarshalDetail(m *model.Memory, detail string) error {
	switch m.Type {
	case model.Episodic:
		m.EpisodicDetail = &model.EpisodicDetail{}
		return json.Unmarshal([]byte(detail), m.EpisodicDetail)
	case model.Semantic:
		m.SemanticDetail = &model.SemanticDetail{}
		return json.Unmarshal([]byte(detail), m.SemanticDetail)
	case model.Procedural:
		m.ProceduralDetail = &model.ProceduralDetail{}
		return json.Unmarshal([]byte(detail), m.ProceduralDetail)
	}
	return fmt.Errorf("unknown memory type %q", m.Type)
}

func tagsJSON(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// whereClause joins conditions, tolerating an empty set.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return "1=1"
	}
	return strings.Join(conds, " AND ")
}
