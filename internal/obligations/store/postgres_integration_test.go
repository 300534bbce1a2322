//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"fiscus/internal/obligations/models"
	"fiscus/internal/obligations/store"
	"fiscus/internal/platform/postgres"
	"fiscus/pkg/platform/sentinel"
	"fiscus/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	profiles *store.PostgresProfiles
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
	s.profiles = store.NewPostgresProfiles(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "client_fiscal_records", "client_profiles"))
}

func (s *PostgresStoreSuite) TestRecordRoundTrip() {
	ctx := context.Background()

	_, err := s.store.GetClientRecord(ctx, "c1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.UpdateClientRecord(ctx, "c1", []byte(`{"hiddenFromDashboard": false}`)))
	s.Require().NoError(s.store.UpdateClientRecord(ctx, "c1", []byte(`{"hiddenFromDashboard": true}`)))

	got, err := s.store.GetClientRecord(ctx, "c1")
	s.Require().NoError(err)
	s.JSONEq(`{"hiddenFromDashboard": true}`, string(got))
}

func (s *PostgresStoreSuite) TestInvalidPayloadIsRejected() {
	err := s.store.UpdateClientRecord(context.Background(), "c1", []byte(`not json`))
	s.ErrorIs(err, sentinel.ErrRejected)
}

func (s *PostgresStoreSuite) TestProfiles() {
	ctx := context.Background()
	want := models.ClientProfile{
		ID:             "c1",
		PersonType:     models.PersonCorporate,
		TaxRegime:      models.RegimeSimplifiedTax,
		PropertyStatus: models.PropertyOwner,
	}
	s.Require().NoError(s.profiles.SaveProfile(ctx, want))

	got, err := s.profiles.Profile(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(want, got)

	_, err = s.profiles.Profile(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
