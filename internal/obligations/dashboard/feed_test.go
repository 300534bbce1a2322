package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"fiscus/internal/obligations/cache"
	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/clock"
	"fiscus/pkg/platform/httputil"
	"fiscus/pkg/testutil"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubReader struct {
	mu      sync.Mutex
	records map[string]models.ClientFiscalRecord
	errs    map[string]error
	calls   map[string]int
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newStubReader() *stubReader {
	return &stubReader{
		records: map[string]models.ClientFiscalRecord{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (r *stubReader) Read(ctx context.Context, clientID string) (models.ClientFiscalRecord, bool, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		m := r.maxInFlight.Load()
		if n <= m || r.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return models.ClientFiscalRecord{}, false, ctx.Err()
		case <-time.After(r.delay):
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[clientID]++
	if err, ok := r.errs[clientID]; ok {
		return models.ClientFiscalRecord{}, false, err
	}
	rec, ok := r.records[clientID]
	if !ok {
		return models.NewClientFiscalRecord(clientID), false, nil
	}
	return rec, true, nil
}

func (r *stubReader) callsFor(clientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[clientID]
}

func record(clientID string, created *time.Time, showInAlert, hidden bool) models.ClientFiscalRecord {
	rec := models.NewClientFiscalRecord(clientID)
	rec.Attestation = models.NewAttestation(created, showInAlert)
	rec.HiddenFromDashboard = hidden
	return rec
}

func daysAgo(n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

type FeedSuite struct {
	suite.Suite
	ctx    context.Context
	reader *stubReader
	cache  *cache.FreshnessCache
	feed   *Feed
}

func TestFeedSuite(t *testing.T) {
	suite.Run(t, new(FeedSuite))
}

func (s *FeedSuite) SetupTest() {
	s.ctx = context.Background()
	s.reader = newStubReader()
	s.cache = cache.New(cache.WithClock(clock.NewFake(now)))
	feed, err := New(s.reader, s.cache)
	s.Require().NoError(err)
	s.feed = feed
}

// =============================================================================
// Selection
// =============================================================================

func (s *FeedSuite) TestAlertsSelectsExpiringAndExpired() {
	// validity is three months from creation
	s.reader.records["expired"] = record("expired", daysAgo(120), true, false)
	s.reader.records["soon"] = record("soon", daysAgo(80), true, false)
	s.reader.records["valid"] = record("valid", daysAgo(10), true, false)
	s.reader.records["muted"] = record("muted", daysAgo(120), false, false)
	s.reader.records["hidden"] = record("hidden", daysAgo(120), true, true)
	s.reader.records["missing"] = record("missing", nil, true, false)

	res, err := s.feed.Alerts(s.ctx, []string{"valid", "soon", "muted", "expired", "hidden", "missing", "unknown"}, now)

	s.Require().NoError(err)
	s.Require().Len(res.Alerts, 2)
	s.Equal("expired", res.Alerts[0].ClientID)
	s.Equal(models.AttestationExpired, res.Alerts[0].Status)
	s.Equal("soon", res.Alerts[1].ClientID)
	s.Equal(models.AttestationExpiringSoon, res.Alerts[1].Status)
	s.Empty(res.Failed)
}

func (s *FeedSuite) TestAlertsOrderedByValidityEnd() {
	s.reader.records["b"] = record("b", daysAgo(100), true, false)
	s.reader.records["a"] = record("a", daysAgo(100), true, false)
	s.reader.records["c"] = record("c", daysAgo(200), true, false)

	res, err := s.feed.Alerts(s.ctx, []string{"a", "b", "c"}, now)

	s.Require().NoError(err)
	var ids []string
	for _, a := range res.Alerts {
		ids = append(ids, a.ClientID)
	}
	s.Equal([]string{"c", "a", "b"}, ids)
}

func (s *FeedSuite) TestAlertWindowOption() {
	s.reader.records["soon"] = record("soon", daysAgo(80), true, false)
	feed, err := New(s.reader, s.cache, WithAlertWindow(24*time.Hour))
	s.Require().NoError(err)

	res, err := feed.Alerts(s.ctx, []string{"soon"}, now)

	s.Require().NoError(err)
	s.Empty(res.Alerts)
}

// =============================================================================
// Reads
// =============================================================================

func (s *FeedSuite) TestReadFailureIsReportedPerClient() {
	s.reader.records["ok"] = record("ok", daysAgo(120), true, false)
	s.reader.errs["down"] = errors.New("store unavailable")

	res, err := s.feed.Alerts(s.ctx, []string{"ok", "down"}, now)

	s.Require().NoError(err)
	s.Len(res.Alerts, 1)
	s.Equal(map[string]string{"down": "store unavailable"}, res.Failed)
}

func (s *FeedSuite) TestCacheIsReadFirstAndFilled() {
	s.cache.Put("cached", record("cached", daysAgo(120), true, false))
	s.reader.records["remote"] = record("remote", daysAgo(120), true, false)

	_, err := s.feed.Alerts(s.ctx, []string{"cached", "remote", " remote ", ""}, now)
	s.Require().NoError(err)
	_, err = s.feed.Alerts(s.ctx, []string{"remote"}, now)
	s.Require().NoError(err)

	s.Equal(0, s.reader.callsFor("cached"))
	s.Equal(1, s.reader.callsFor("remote"))
}

func (s *FeedSuite) TestParallelismIsBounded() {
	s.reader.delay = 5 * time.Millisecond
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	feed, err := New(s.reader, s.cache, WithParallelism(3))
	s.Require().NoError(err)

	_, err = feed.Alerts(s.ctx, ids, now)

	s.Require().NoError(err)
	s.LessOrEqual(s.reader.maxInFlight.Load(), int32(3))
}

func (s *FeedSuite) TestCancelledContext() {
	s.reader.delay = time.Second
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()

	_, err := s.feed.Alerts(ctx, []string{"a", "b"}, now)

	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *FeedSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.cache)
	s.Error(err)
	_, err = New(s.reader, nil)
	s.Error(err)
}

// =============================================================================
// HTTP
// =============================================================================

func (s *FeedSuite) TestHandleAlerts() {
	s.reader.records["expired"] = record("expired", daysAgo(120), true, false)
	r := chi.NewRouter()
	NewHandler(s.feed, clock.NewFake(now), nil).Register(r)

	s.Run("returns the feed", func() {
		rr := testutil.Get(s.T(), r, "/alerts?client=expired&client=other")

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeJSON[Result](s.T(), rr)
		s.Require().Len(body.Alerts, 1)
		s.Equal("expired", body.Alerts[0].ClientID)
	})

	s.Run("requires a client", func() {
		rr := testutil.Get(s.T(), r, "/alerts")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, httputil.CodeBadRequest)
	})

	s.Run("cancelled feed is unavailable", func() {
		failing := NewHandler(failingService{}, clock.NewFake(now), nil)
		router := chi.NewRouter()
		failing.Register(router)

		rr := testutil.Get(s.T(), router, "/alerts?client=a")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, httputil.CodeUnavailable)
	})
}

type failingService struct{}

func (failingService) Alerts(context.Context, []string, time.Time) (Result, error) {
	return Result{}, context.Canceled
}
