package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/entitle/internal/domain/models"
)

// PendingReleaseRepository keeps the pending-release ledger in a map.
type PendingReleaseRepository struct {
	mu      sync.RWMutex
	pending map[string]models.PendingRelease
}

func NewPendingReleaseRepository() *PendingReleaseRepository {
	return &PendingReleaseRepository{pending: make(map[string]models.PendingRelease)}
}

func (r *PendingReleaseRepository) Record(_ context.Context, pending *models.PendingRelease) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[pending.TokenID] = *pending
	return nil
}

func (r *PendingReleaseRepository) Remove(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, tokenID)
	return nil
}

// List returns every pending entry, oldest first.
func (r *PendingReleaseRepository) List(_ context.Context) ([]*models.PendingRelease, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.PendingRelease, 0, len(r.pending))
	for _, p := range r.pending {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConsumedAt.Equal(out[j].ConsumedAt) {
			return out[i].TokenID < out[j].TokenID
		}
		return out[i].ConsumedAt.Before(out[j].ConsumedAt)
	})
	return out, nil
}
