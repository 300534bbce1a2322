package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fiscus/internal/obligations/gateway/mocks"
	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/migrate"
	"fiscus/internal/obligations/models"
	"fiscus/internal/platform/logger"
	"fiscus/pkg/platform/clock"
	"fiscus/pkg/platform/sentinel"
)

var errNetwork = errors.New("connection reset by peer")

type GatewaySuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	store   *mocks.MockRemoteStore
	clock   *clock.Fake
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	gateway *Gateway
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockRemoteStore(s.ctrl)
	s.clock = clock.NewFake(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}

	gw, err := New(s.store, migrate.New(),
		WithClock(s.clock),
		WithMetrics(s.metrics),
		WithLogger(logger.NewWithWriter(s.logs, "debug", "json")),
	)
	s.Require().NoError(err)
	s.gateway = gw
}

func (s *GatewaySuite) record() models.ClientFiscalRecord {
	rec := models.NewClientFiscalRecord("c1")
	set := models.NewObligationSet()
	set.SetSubject(models.KeyPatente, true)
	s.Require().NoError(set.Apply(models.KeyPatente, models.FieldPaid, true))
	rec.ObligationsByYear["2024"] = set
	rec.SelectedYear = "2024"
	created := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	rec.Attestation = models.NewAttestation(&created, true)
	return rec
}

func (s *GatewaySuite) payload(rec models.ClientFiscalRecord) []byte {
	raw, err := json.Marshal(rec)
	s.Require().NoError(err)
	return raw
}

func (s *GatewaySuite) TestNewRequiresCollaborators() {
	_, err := New(nil, migrate.New())
	s.Error(err)
	_, err = New(s.store, nil)
	s.Error(err)
}

// =============================================================================
// Read
// =============================================================================

func (s *GatewaySuite) TestRead() {
	s.Run("returns migrated record", func() {
		s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").
			Return([]byte(`{"obligations": {"2024": {"lease": {"subject": true, "paid": "oui"}}}}`), nil)

		rec, found, err := s.gateway.Read(s.ctx, "c1")

		s.Require().NoError(err)
		s.True(found)
		s.Equal("c1", rec.ClientID)
		s.True(rec.ObligationsByYear["2024"].Taxes[models.KeyCommercialLease].Paid)
	})

	s.Run("absent record is not an error", func() {
		s.store.EXPECT().GetClientRecord(gomock.Any(), "c2").Return(nil, sentinel.ErrNotFound)

		rec, found, err := s.gateway.Read(s.ctx, "c2")

		s.Require().NoError(err)
		s.False(found)
		s.Equal("c2", rec.ClientID)
	})
}

func (s *GatewaySuite) TestReadRetriesWithLinearBackoff() {
	gomock.InOrder(
		s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(nil, errNetwork),
		s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(nil, errNetwork),
		s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(s.payload(s.record()), nil),
	)

	rec, found, err := s.gateway.Read(s.ctx, "c1")

	s.Require().NoError(err)
	s.True(found)
	s.True(rec.ObligationsByYear["2024"].Taxes[models.KeyPatente].Paid)
	s.Equal([]time.Duration{time.Second, 2 * time.Second}, s.clock.Sleeps())
}

func (s *GatewaySuite) TestReadExhaustedIsTransient() {
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(nil, errNetwork).Times(3)

	_, found, err := s.gateway.Read(s.ctx, "c1")

	s.False(found)
	s.True(IsTransient(err))
	var te *TransientIOError
	s.Require().ErrorAs(err, &te)
	s.Equal("read", te.Op)
	s.Equal(3, te.Attempts)
	s.ErrorIs(err, errNetwork)
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.StoreAttempts.WithLabelValues("read", "transient")))
}

func (s *GatewaySuite) TestReadStopsOnCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").DoAndReturn(func(context.Context, string) ([]byte, error) {
		cancel()
		return nil, errNetwork
	})

	_, _, err := s.gateway.Read(ctx, "c1")

	s.ErrorIs(err, context.Canceled)
	s.False(IsTransient(err))
}

// =============================================================================
// Write
// =============================================================================

func (s *GatewaySuite) TestWrite() {
	s.Run("persists the canonical payload", func() {
		rec := s.record()
		s.store.EXPECT().UpdateClientRecord(gomock.Any(), "c1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, payload []byte) error {
				s.JSONEq(string(s.payload(rec)), string(payload))
				return nil
			})

		s.True(s.gateway.Write(s.ctx, "c1", rec))
		s.Empty(s.clock.Sleeps())
	})
}

func (s *GatewaySuite) TestWriteRetriesThenSucceeds() {
	gomock.InOrder(
		s.store.EXPECT().UpdateClientRecord(gomock.Any(), "c1", gomock.Any()).Return(errNetwork),
		s.store.EXPECT().UpdateClientRecord(gomock.Any(), "c1", gomock.Any()).Return(nil),
	)

	s.True(s.gateway.Write(s.ctx, "c1", s.record()))
	s.Equal([]time.Duration{1500 * time.Millisecond}, s.clock.Sleeps())
}

func (s *GatewaySuite) TestWriteExhaustedReturnsFalse() {
	s.store.EXPECT().UpdateClientRecord(gomock.Any(), "c1", gomock.Any()).Return(errNetwork).Times(3)

	s.False(s.gateway.Write(s.ctx, "c1", s.record()))
	s.Equal([]time.Duration{1500 * time.Millisecond, 3 * time.Second}, s.clock.Sleeps())
	s.Contains(s.logs.String(), "client record not written")
}

func (s *GatewaySuite) TestWriteRejectedIsNotRetried() {
	s.store.EXPECT().UpdateClientRecord(gomock.Any(), "c1", gomock.Any()).
		Return(sentinel.ErrRejected).Times(1)

	err := s.gateway.Persist(s.ctx, "c1", s.record())

	s.ErrorIs(err, sentinel.ErrRejected)
	s.False(IsTransient(err))
	s.Empty(s.clock.Sleeps())
}

// =============================================================================
// Verify
// =============================================================================

func (s *GatewaySuite) TestVerifyMatch() {
	rec := s.record()
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(s.payload(rec), nil)

	s.True(s.gateway.Verify(s.ctx, "c1", rec))
	s.Equal([]time.Duration{DefaultSettleDelay}, s.clock.Sleeps())
}

func (s *GatewaySuite) TestVerifyIgnoresBookkeepingFields() {
	rec := s.record()
	stored := rec.Clone()
	stored.SelectedYear = "2023"
	stored.UpdatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(s.payload(stored), nil)

	s.True(s.gateway.Verify(s.ctx, "c1", rec))
}

func (s *GatewaySuite) TestVerifyMismatchIsLoggedPerField() {
	rec := s.record()
	stale := rec.Clone()
	set := stale.ObligationsByYear["2024"]
	s.Require().NoError(set.Apply(models.KeyPatente, models.FieldPaid, false))
	stale.HiddenFromDashboard = true
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(s.payload(stale), nil)

	err := s.gateway.Confirm(s.ctx, "c1", rec)

	s.ErrorIs(err, sentinel.ErrVerificationMismatch)
	s.Contains(err.Error(), "obligations.2024.patente.paid")
	s.Contains(err.Error(), "hiddenFromDashboard")
	s.Equal(2, strings.Count(s.logs.String(), "verification mismatch"))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.VerifyMismatches))
}

func (s *GatewaySuite) TestVerifyAbsentRecord() {
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(nil, sentinel.ErrNotFound)

	s.False(s.gateway.Verify(s.ctx, "c1", s.record()))
}

func (s *GatewaySuite) TestVerifyReadFailure() {
	s.store.EXPECT().GetClientRecord(gomock.Any(), "c1").Return(nil, errNetwork).Times(3)

	err := s.gateway.Confirm(s.ctx, "c1", s.record())

	s.True(IsTransient(err))
}
