package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSystem(t *testing.T, s *store.SQLite) []*model.Memory {
	t.Helper()
	ctx := context.Background()

	ep := model.NewEpisodic("Fixed the flaky integration test", model.EpisodicDetail{EventType: "work"})
	sem := model.NewSemantic("Flakiness came from a shared port", model.SemanticDetail{
		Domain: "testing", Confidence: 0.8, SourceMemoryIDs: []string{ep.ID},
	})
	archived := model.NewEpisodic("Obsolete note", model.EpisodicDetail{EventType: "note"})
	for _, m := range []*model.Memory{ep, sem, archived} {
		require.NoError(t, s.CreateMemory(ctx, m))
	}
	require.NoError(t, s.ArchiveMemory(ctx, archived.ID, time.Now().UTC()))

	schema := model.NewSelfSchema("agent-1")
	schema.Present.Statements = []model.IdentityStatement{{
		ID: "stmt-1", Text: "I debug flaky tests", Centrality: 0.5, Confidence: 0.8,
		SourceMemoryIDs: []string{ep.ID},
	}}
	require.NoError(t, s.PutSelfSchema(ctx, schema))
	return []*model.Memory{ep, sem, archived}
}

func TestSnapshotIncludesEverything(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	assert.Len(t, snap.Memories, 3, "archived memories are exported")
	require.NotNil(t, snap.SelfSchema)
	assert.Equal(t, "agent-1", snap.SelfSchema.AgentID)
	assert.NotEmpty(t, snap.Provenance)
	assert.NotEmpty(t, snap.Checksum)
	assert.Equal(t, SchemaVersion, snap.SchemaVersion)

	assert.NoError(t, Verify(snap))
}

func TestSnapshotWithoutSchema(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	snap, err := Snapshot(ctx, s, "nobody")
	require.NoError(t, err)
	assert.Nil(t, snap.SelfSchema)
	assert.NoError(t, Verify(snap))
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	snap.Memories[0].Content = "rewritten after export"
	assert.ErrorIs(t, Verify(snap), ErrChecksumMismatch)
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, got.Checksum)
	assert.Len(t, got.Memories, 3)
}

func TestReadJSONRejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))
	tampered := strings.Replace(buf.String(), "Fixed the flaky", "Broke the flaky", 1)

	_, err = ReadJSON(strings.NewReader(tampered))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestImportIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	seeded := seedSystem(t, src)

	snap, err := Snapshot(ctx, src, "agent-1")
	require.NoError(t, err)

	dst := newStore(t)
	n, err := Import(ctx, dst, snap)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, m := range seeded {
		got, err := dst.GetMemory(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Content, got.Content)

		hist, err := dst.ProvenanceHistory(ctx, m.ID, 0, 0)
		require.NoError(t, err)
		var restored bool
		for _, en := range hist {
			if en.EventType == model.EventRestored {
				restored = true
			}
		}
		assert.True(t, restored, "import marks each memory restored")
	}

	schema, err := dst.GetSelfSchema(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, schema.Present.Statements, 1)
}

func TestImportSkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	n, err := Import(ctx, s, snap)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "all records already present")
}

func TestImportRejectsTamperedSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)
	snap.AgentID = "someone-else"

	_, err = Import(ctx, newStore(t), snap)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestWriteHTMLIsSelfContained(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedSystem(t, s)

	snap, err := Snapshot(ctx, s, "agent-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, snap))
	doc := buf.String()

	assert.Contains(t, doc, "<!DOCTYPE html>")
	assert.Contains(t, doc, `type="application/json"`)
	assert.Contains(t, doc, snap.Checksum)
	assert.Contains(t, doc, "Fixed the flaky integration test")
	assert.NotContains(t, doc, "http://", "document must work offline")
	assert.NotContains(t, doc, "https://")
}
