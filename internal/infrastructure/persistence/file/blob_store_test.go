package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entitle/internal/infrastructure/persistence/file"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

func TestBlobStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store, err := file.NewBlobStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, "authorization")
	assert.True(t, errors.IsNotFoundError(err))

	require.NoError(t, store.Save(ctx, "authorization", []byte("first")))
	require.NoError(t, store.Save(ctx, "authorization", []byte("second")))
	data, err := store.Load(ctx, "authorization")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(filepath.Join(dir, "authorization.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, "authorization"))
	require.NoError(t, store.Delete(ctx, "authorization"))
	_, err = store.Load(ctx, "authorization")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestBlobStore_ExpandsEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ENTITLE_TEST_ROOT", root)
	_, err := file.NewBlobStore("$ENTITLE_TEST_ROOT/nested", logger.NewNoopLogger())
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "nested"))
}

func TestBlobStore_RequiresDir(t *testing.T) {
	_, err := file.NewBlobStore("", logger.NewNoopLogger())
	assert.True(t, errors.IsConfigurationError(err))
}
