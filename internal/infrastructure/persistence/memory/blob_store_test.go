package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entitle/internal/infrastructure/persistence/memory"
	"github.com/turtacn/entitle/pkg/errors"
)

func TestBlobStore(t *testing.T) {
	store := memory.NewBlobStore()
	ctx := context.Background()

	data := []byte("value")
	require.NoError(t, store.Save(ctx, "k", data))
	data[0] = 'X'

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Load(ctx, "k")
	assert.True(t, errors.IsNotFoundError(err))
}
