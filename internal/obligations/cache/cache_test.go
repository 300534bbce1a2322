package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/clock"
)

func newRecord(clientID string) models.ClientFiscalRecord {
	rec := models.NewClientFiscalRecord(clientID)
	set := models.NewObligationSet()
	set.SetSubject(models.KeyPatente, true)
	rec.ObligationsByYear["2024"] = set
	rec.SelectedYear = "2024"
	return rec
}

func TestGetWithinTTL(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	c := New(WithClock(clk))

	c.Put("c1", newRecord("c1"))
	clk.Advance(DefaultTTL - time.Millisecond)

	got, ok := c.Get("c1")
	require.True(t, ok)
	assert.True(t, got.ObligationsByYear["2024"].Subject(models.KeyPatente))
}

func TestGetAfterTTLIsMissButStaleSurvives(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	c := New(WithClock(clk), WithTTL(time.Minute))

	c.Put("c1", newRecord("c1"))
	clk.Advance(time.Minute + time.Nanosecond)

	_, ok := c.Get("c1")
	assert.False(t, ok)

	stale, storedAt, ok := c.GetStale("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", stale.ClientID)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), storedAt)
	assert.Equal(t, 1, c.Len())
}

func TestGetAtExactTTLIsMiss(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	c := New(WithClock(clk))

	c.Put("c1", newRecord("c1"))
	clk.Advance(DefaultTTL)

	_, ok := c.Get("c1")
	assert.False(t, ok)
}

func TestPutOverwritesAndRefreshesTimestamp(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	c := New(WithClock(clk))

	c.Put("c1", newRecord("c1"))
	clk.Advance(4 * time.Minute)
	updated := newRecord("c1")
	updated.HiddenFromDashboard = true
	c.Put("c1", updated)
	clk.Advance(4 * time.Minute)

	got, ok := c.Get("c1")
	require.True(t, ok)
	assert.True(t, got.HiddenFromDashboard)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	c := New()
	rec := newRecord("c1")
	c.Put("c1", rec)

	rec.ObligationsByYear["2024"].Taxes[models.KeyPatente] = models.TaxObligationStatus{Paid: true}
	got, ok := c.Get("c1")
	require.True(t, ok)
	got.ObligationsByYear["2024"].Taxes[models.KeyIGS] = models.TaxObligationStatus{Paid: true}

	again, ok := c.Get("c1")
	require.True(t, ok)
	assert.False(t, again.ObligationsByYear["2024"].Taxes[models.KeyPatente].Paid)
	assert.False(t, again.ObligationsByYear["2024"].Taxes[models.KeyIGS].Paid)
}

func TestInvalidate(t *testing.T) {
	c := New()
	c.Put("c1", newRecord("c1"))
	c.Put("c2", newRecord("c2"))

	c.Invalidate("c1")

	_, ok := c.Get("c1")
	assert.False(t, ok)
	_, _, ok = c.GetStale("c1")
	assert.False(t, ok)
	_, ok = c.Get("c2")
	assert.True(t, ok)
}

func TestInvalidateAllSoftExpires(t *testing.T) {
	c := New()
	c.Put("c1", newRecord("c1"))
	c.Put("c2", newRecord("c2"))

	c.InvalidateAll()

	_, ok := c.Get("c1")
	assert.False(t, ok)
	_, _, ok = c.GetStale("c2")
	assert.True(t, ok, "stale entries remain for fallback")

	c.Put("c1", newRecord("c1"))
	_, ok = c.Get("c1")
	assert.True(t, ok, "entries written after invalidation are fresh")
}

func TestLookupMetrics(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(WithClock(clk), WithMetrics(m))

	c.Get("c1")
	c.Put("c1", newRecord("c1"))
	c.Get("c1")
	clk.Advance(DefaultTTL)
	c.Get("c1")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultMiss)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultHit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultStale)))
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i%4)
			for j := 0; j < 100; j++ {
				c.Put(id, newRecord(id))
				if rec, ok := c.Get(id); ok {
					assert.Equal(t, id, rec.ClientID)
				}
				if j%25 == 0 {
					c.InvalidateAll()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, c.Len())
}
