package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

func newLocalStore(t *testing.T) ArtifactStore {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)

	store, err := NewArtifactStore(context.Background(), log, Config{Mode: ModeLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStore_PutOpenDeleteRoundTrip(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jobs/tok-1/manifest.json", strings.NewReader(`{"ok":true}`)))

	exists, err := store.Exists(ctx, "jobs/tok-1/manifest.json")
	require.NoError(t, err)
	require.True(t, exists)

	rc, err := store.Open(ctx, "jobs/tok-1/manifest.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, store.Delete(ctx, "jobs/tok-1/manifest.json"))

	exists, err = store.Exists(ctx, "jobs/tok-1/manifest.json")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLocalStore_OpenMissingReturnsError(t *testing.T) {
	store := newLocalStore(t)
	_, err := store.Open(context.Background(), "never/written.bin")
	require.Error(t, err)
}

func TestLocalStore_NeutralizesPathTraversal(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "../../etc/passwd", strings.NewReader("x")))

	exists, err := store.Exists(ctx, "etc/passwd")
	require.NoError(t, err)
	require.True(t, exists, "traversal should be collapsed to a path inside the storage root")
}

func TestLocalStore_DeleteMissingIsNotAnError(t *testing.T) {
	store := newLocalStore(t)
	require.NoError(t, store.Delete(context.Background(), "never/written.bin"))
}
