package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestOpen_CreatesDatabase(t *testing.T) {
	_, path := openTemp(t)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	j, _ := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, j.Record(ctx, "apply", "joints [0 0 90 0 0 0]", true))
	require.NoError(t, j.Record(ctx, "emergency stop", "", false))
	require.NoError(t, j.Record(ctx, "speed", "50%", true))

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "speed", entries[0].Action)
	assert.Equal(t, "50%", entries[0].Detail)
	assert.True(t, entries[0].Success)
	assert.True(t, entries[0].Time.Equal(base.Add(3*time.Second)))

	assert.Equal(t, "emergency stop", entries[1].Action)
	assert.False(t, entries[1].Success)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestCount(t *testing.T) {
	j, _ := openTemp(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, j.Record(ctx, "apply", "", true))
	}
	require.NoError(t, j.Record(ctx, "emergency stop", "", true))

	n, err := j.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = j.Count(ctx, "apply")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, "apply", "", true))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "apply", entries[0].Action)
}

func TestRecent_Empty(t *testing.T) {
	j, _ := openTemp(t)
	entries, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
