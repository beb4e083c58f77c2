// Package machine provides the stable per-installation identifier sent to the
// entitlement service with every request.
package machine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// Identifier generates a random UUID on first use and persists it in the blob
// store so later runs report the same machine.
type Identifier struct {
	store  service.BlobStore
	logger logger.Logger

	mu sync.Mutex
	id string
}

func NewIdentifier(store service.BlobStore, log logger.Logger) *Identifier {
	return &Identifier{store: store, logger: log.WithComponent("MachineIdentifier")}
}

// MachineID returns the persisted identifier, creating it when absent.
// A stored value that is not a UUID is replaced.
func (i *Identifier) MachineID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id, nil
	}

	data, err := i.store.Load(ctx, constants.BlobKeyMachineID)
	switch {
	case err == nil:
		if id, parseErr := uuid.Parse(strings.TrimSpace(string(data))); parseErr == nil {
			i.id = id.String()
			return i.id, nil
		}
		i.logger.Warn(ctx, "Stored machine identifier is not a UUID, regenerating")
	case !errors.IsNotFoundError(err):
		return "", err
	}

	id := uuid.NewString()
	if err := i.store.Save(ctx, constants.BlobKeyMachineID, []byte(id)); err != nil {
		return "", err
	}
	i.logger.Info(ctx, "Generated machine identifier", logger.String("machine_id", id))
	i.id = id
	return id, nil
}
