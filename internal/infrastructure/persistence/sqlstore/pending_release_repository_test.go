package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/sqlstore"
	"github.com/turtacn/entitle/pkg/errors"
)

type PendingReleaseRepositoryTestSuite struct {
	suite.Suite
	repo *sqlstore.PendingReleaseRepository
}

func (s *PendingReleaseRepositoryTestSuite) SetupTest() {
	db, err := sqlstore.Open(config.PendingConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(s.T().TempDir(), "pending.db"),
	})
	s.Require().NoError(err)
	s.repo = sqlstore.NewPendingReleaseRepository(db)
}

func TestPendingReleaseRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(PendingReleaseRepositoryTestSuite))
}

func (s *PendingReleaseRepositoryTestSuite) TestRecordListRemove() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.repo.Record(ctx, &models.PendingRelease{TokenID: "t2", Item: "b", ConsumedAt: now}))
	s.Require().NoError(s.repo.Record(ctx, &models.PendingRelease{TokenID: "t1", Item: "a", ConsumedAt: now.Add(-time.Minute)}))

	pending, err := s.repo.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal("t1", pending[0].TokenID)
	s.Equal("b", pending[1].Item)

	s.Require().NoError(s.repo.Remove(ctx, "t1"))
	s.Require().NoError(s.repo.Remove(ctx, "unknown"))
	pending, err = s.repo.List(ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *PendingReleaseRepositoryTestSuite) TestRecordReplaces() {
	ctx := context.Background()
	s.Require().NoError(s.repo.Record(ctx, &models.PendingRelease{TokenID: "t1", Item: "a", ConsumedAt: time.Now()}))
	s.Require().NoError(s.repo.Record(ctx, &models.PendingRelease{TokenID: "t1", Item: "a2", ConsumedAt: time.Now()}))

	pending, err := s.repo.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("a2", pending[0].Item)
}

func (s *PendingReleaseRepositoryTestSuite) TestOpenRejectsUnknownDriver() {
	_, err := sqlstore.Open(config.PendingConfig{Driver: "oracle"})
	s.True(errors.IsConfigurationError(err))
}
