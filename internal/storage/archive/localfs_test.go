package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/orb/internal/core"
)

func TestLocalFS_PutGet(t *testing.T) {
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reports/run.json", []byte(`{"ok":true}`)))
	got, err := store.Get(ctx, "reports/run.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))

	_, err = store.Get(ctx, "reports/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalFS_Exists(t *testing.T) {
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "nonexistent.json")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "exists.json", []byte("{}")))
	exists, err = store.Exists(ctx, "exists.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalFS_ListSorted(t *testing.T) {
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []string{"reports/2024/01/b.json", "reports/2024/01/a.json", "reports/2024/02/c.json"} {
		require.NoError(t, store.Put(ctx, k, []byte("{}")))
	}

	keys, err := store.List(ctx, "reports/2024/01")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2024/01/a.json", "reports/2024/01/b.json"}, keys)

	keys, err = store.List(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalFS_Delete(t *testing.T) {
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "delete.json", []byte("{}")))
	require.NoError(t, store.Delete(ctx, "delete.json"))
	require.NoError(t, store.Delete(ctx, "delete.json"), "deleting twice is not an error")

	exists, err := store.Exists(ctx, "delete.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalFS_KeysStayInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalFS(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// A leading ../ is clamped to the root rather than escaping it.
	require.NoError(t, store.Put(ctx, "../../escape.json", []byte("{}")))
	exists, err := store.Exists(ctx, "escape.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveLoadJSON(t *testing.T) {
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	type report struct {
		RunID  string
		Trades int
	}
	key := ReportKey("abc", time.Date(2024, 3, 4, 23, 30, 0, 0, time.FixedZone("AEST", 10*3600)))
	assert.Equal(t, "reports/2024/03/04/abc.json", key)

	require.NoError(t, SaveJSON(ctx, store, key, report{RunID: "abc", Trades: 3}))

	var got report
	require.NoError(t, LoadJSON(ctx, store, key, &got))
	assert.Equal(t, report{RunID: "abc", Trades: 3}, got)

	assert.ErrorIs(t, LoadJSON(ctx, store, "reports/none.json", &got), ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Backend: "localfs", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s)

	s, err = Open(Config{Backend: "s3", S3: S3Config{Bucket: "b", Region: "us-east-1"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, s)

	_, err = Open(Config{Backend: "localfs"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = Open(Config{Backend: "tape"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
