package ledger

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/veil/internal/entity"
)

func candidate(cat entity.Category, text string) entity.Candidate {
	return entity.Candidate{Category: cat, Text: text, Score: 0.9}
}

func TestRecordDeduplicatesPerCategory(t *testing.T) {
	l := New()
	l.Record("email-abc", []entity.Candidate{
		candidate(entity.PhoneNumber, "555-123-4567"),
		candidate(entity.PhoneNumber, "555-999-0000"),
		candidate(entity.PhoneNumber, "555-123-4567"),
		candidate(entity.EmailAddress, "a@b.com"),
	})

	snap := l.Snapshot()
	require.Contains(t, snap, "email-abc")
	assert.Equal(t, []string{"555-123-4567", "555-999-0000"}, snap["email-abc"]["phone_number"])
	assert.Equal(t, []string{"a@b.com"}, snap["email-abc"]["email_address"])
}

func TestRecordSameValueAcrossCategoriesKeptSeparately(t *testing.T) {
	l := New()
	l.Record("d1", []entity.Candidate{
		candidate(entity.Age, "1990"),
		candidate(entity.WorkDates, "1990"),
	})

	snap := l.Snapshot()
	assert.Equal(t, []string{"1990"}, snap["d1"]["age"])
	assert.Equal(t, []string{"1990"}, snap["d1"]["work_dates"])
}

func TestRecordEmptyIsSparse(t *testing.T) {
	l := New()
	l.Record("clean-doc", nil)

	assert.False(t, l.Has("clean-doc"))
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Snapshot())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l := New()
	l.Record("d1", []entity.Candidate{candidate(entity.Gender, "Male")})

	snap := l.Snapshot()
	snap["d1"]["gender"][0] = "mutated"
	snap["d2"] = map[string][]string{}

	again := l.Snapshot()
	assert.Equal(t, []string{"Male"}, again["d1"]["gender"])
	assert.NotContains(t, again, "d2")
}

func TestCheckpointWritesIncrementingParts(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "entities.json")

	l := New()
	l.Record("d1", []entity.Candidate{candidate(entity.EmailAddress, "a@b.com")})

	p1, err := l.Checkpoint(base)
	require.NoError(t, err)
	assert.Equal(t, base+".part1", p1)

	l.Record("d2", []entity.Candidate{candidate(entity.Gender, "F")})
	p2, err := l.Checkpoint(base)
	require.NoError(t, err)
	assert.Equal(t, base+".part2", p2)

	// Earlier parts are never truncated.
	snap1, err := Load(p1, nil)
	require.NoError(t, err)
	assert.Len(t, snap1, 1)

	snap2, err := Load(p2, nil)
	require.NoError(t, err)
	assert.Len(t, snap2, 2)
}

func TestFinalizeLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.json")

	l := New()
	l.Record("email-abc", []entity.Candidate{
		candidate(entity.PhoneNumber, "555-123-4567"),
		candidate(entity.Gender, "Male"),
		candidate(entity.EmailAddress, "a@b.com"),
	})
	require.NoError(t, l.Finalize(path))

	// Plain output is valid key-ordered JSON.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string][]string
	require.NoError(t, json.Unmarshal(data, &raw))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot(), loaded)
}

func TestMergeResumesPriorRun(t *testing.T) {
	l := New()
	l.Merge(map[string]map[string][]string{
		"d1": {"gender": {"Male"}},
	})
	l.Record("d1", []entity.Candidate{
		candidate(entity.Gender, "Male"),
		candidate(entity.Age, "30"),
	})

	assert.True(t, l.Has("d1"))
	snap := l.Snapshot()
	assert.Equal(t, []string{"Male"}, snap["d1"]["gender"])
	assert.Equal(t, []string{"30"}, snap["d1"]["age"])
}

func TestSealedRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.json")

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	l := New(WithEncryptionKey(key))
	l.Record("d1", []entity.Candidate{candidate(entity.EmailAddress, "a@b.com")})
	require.NoError(t, l.Finalize(path))

	// Sealed file is not plain JSON.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "VEILBOX1", string(data[:8]))

	loaded, err := Load(path, key)
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot(), loaded)
}

func TestLoadSealedRequiresCorrectKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.json")

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	l := New(WithEncryptionKey(key))
	l.Record("d1", []entity.Candidate{candidate(entity.EmailAddress, "a@b.com")})
	require.NoError(t, l.Finalize(path))

	_, err = Load(path, nil)
	assert.Error(t, err)

	wrong := make([]byte, 32)
	_, err = Load(path, wrong)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	l := New()
	l.Record("d1", []entity.Candidate{
		candidate(entity.EmailAddress, "a@b.com"),
		candidate(entity.PhoneNumber, "111"),
		candidate(entity.PhoneNumber, "222"),
	})
	l.Record("d2", []entity.Candidate{
		candidate(entity.EmailAddress, "c@d.com"),
	})

	s := l.Stats()
	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 4, s.TotalEntities)
	assert.Equal(t, 2, s.PerCategory["phone_number"])
	assert.Equal(t, 2, s.PerCategory["email_address"])
}
