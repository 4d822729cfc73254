package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Record{
		RunID:      "run-1",
		DocumentID: "email-abc",
		Status:     StatusAnonymized,
		Entities:   3,
		Categories: []string{"email_address", "gender", "phone_number"},
		DurationMS: 12,
	}))
	require.NoError(t, store.Record(ctx, Record{
		RunID:      "run-1",
		DocumentID: "resume-def",
		Status:     StatusFailed,
		Error:      "scanning document resume-def: analyzer offline",
	}))
	require.NoError(t, store.Record(ctx, Record{
		RunID:      "run-2",
		DocumentID: "email-abc",
		Status:     StatusSkipped,
	}))

	recs, err := store.ListRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "email-abc", recs[0].DocumentID)
	assert.Equal(t, StatusAnonymized, recs[0].Status)
	assert.Equal(t, 3, recs[0].Entities)
	assert.Equal(t, []string{"email_address", "gender", "phone_number"}, recs[0].Categories)
	assert.Equal(t, int64(12), recs[0].DurationMS)
	assert.False(t, recs[0].Timestamp.IsZero())

	assert.Equal(t, StatusFailed, recs[1].Status)
	assert.Contains(t, recs[1].Error, "analyzer offline")
	assert.Nil(t, recs[1].Categories)
}

func TestListRunUnknownRunIsEmpty(t *testing.T) {
	store := testStore(t)
	recs, err := store.ListRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStoreReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), Record{
		RunID: "run-1", DocumentID: "d1", Status: StatusAnonymized,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.ListRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
