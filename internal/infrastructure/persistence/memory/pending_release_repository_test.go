package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/memory"
)

func TestPendingReleaseRepository(t *testing.T) {
	repo := memory.NewPendingReleaseRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Record(ctx, &models.PendingRelease{TokenID: "b", ConsumedAt: now}))
	require.NoError(t, repo.Record(ctx, &models.PendingRelease{TokenID: "a", ConsumedAt: now}))
	require.NoError(t, repo.Record(ctx, &models.PendingRelease{TokenID: "c", ConsumedAt: now.Add(-time.Hour)}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{list[0].TokenID, list[1].TokenID, list[2].TokenID})

	require.NoError(t, repo.Remove(ctx, "a"))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
