package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wisefido-census/internal/domain"
	"wisefido-census/internal/notify"
	"wisefido-census/internal/repository"
	"wisefido-census/internal/store"
)

func TestSummaryService_Incomplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	assert.True(t, errors.Is(err, domain.ErrIncomplete), "no records")

	f.submit(t, key("W1", "2024-05-01", domain.ShiftMorning), domain.Movements{NewAdmit: 2, Discharge: 1}, intPtr(30))
	_, err = f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	assert.True(t, errors.Is(err, domain.ErrIncomplete), "morning FINAL")

	f.approve(t, key("W1", "2024-05-01", domain.ShiftMorning))
	f.submit(t, key("W1", "2024-05-01", domain.ShiftNight), domain.Movements{Discharge: 3}, nil)
	_, err = f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	assert.True(t, errors.Is(err, domain.ErrIncomplete), "night FINAL")

	_, err = f.summaries.GetDailySummary(ctx, "W1", "2024-05-01")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "nothing stored while incomplete")

	f.approve(t, key("W1", "2024-05-01", domain.ShiftNight))
	_, err = f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	assert.NoError(t, err)
}

func TestSummaryService_ComputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")

	first, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	require.NoError(t, err)
	second, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), second.Version)
}

func TestSummaryService_RefreshAfterApprovedEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")

	first, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	require.NoError(t, err)

	_, err = f.shifts.EditApprovedShift(ctx, EditApprovedShiftRequest{
		Key: key("W1", "2024-05-01", domain.ShiftNight), ActorID: "sup-1",
		Changes: map[string]int{domain.FieldReferIn: 1},
	})
	require.NoError(t, err)

	refreshed, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, first.SummaryID, refreshed.SummaryID)
	assert.Equal(t, int64(2), refreshed.Version)
	assert.Equal(t, 29, refreshed.ClosingCensus)
	assert.Equal(t, 3, refreshed.TotalAdmissions)
}

func TestSummaryService_Attest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W1", Date: "2024-05-01", ActorID: "sup-1", FirstName: "Ada", LastName: "King"})
	assert.True(t, errors.Is(err, domain.ErrIncomplete))

	f.approvedDay(t, "W1", "2024-05-01")

	_, err = f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W1", Date: "2024-05-01", ActorID: "sup-1", FirstName: " ", LastName: "King"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	attested, err := f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W1", Date: "2024-05-01", ActorID: "sup-1", FirstName: " Ada ", LastName: "King"})
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryAttested, attested.Status)
	require.NotNil(t, attested.Attestation)
	assert.Equal(t, "Ada", attested.Attestation.FirstName)
	assert.False(t, attested.Attestation.AttestedAt.IsZero())

	_, err = f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W1", Date: "2024-05-01", ActorID: "sup-2", FirstName: "Bo", LastName: "Lee"})
	assert.True(t, errors.Is(err, domain.ErrAlreadyAttested))

	// attested summaries are frozen
	_, err = f.shifts.EditApprovedShift(ctx, EditApprovedShiftRequest{
		Key: key("W1", "2024-05-01", domain.ShiftNight), ActorID: "sup-1", Changes: map[string]int{domain.FieldRN: 9},
	})
	require.NoError(t, err)
	again, err := f.summary.ComputeDailySummary(ctx, "W1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, attested, again)

	assert.Contains(t, f.events.types(), notify.EventSummaryAttested)
}

func TestSummaryService_Rollup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")
	f.submit(t, key("W2", "2024-05-01", domain.ShiftMorning), domain.Movements{NewAdmit: 1}, intPtr(10))

	r, err := f.summary.GetDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, r.Wards, 1)
	assert.Equal(t, "W1", r.Wards[0].WardID)
	require.Len(t, r.PendingWards, 1, "inactive W9 is not listed")
	assert.Equal(t, "W2", r.PendingWards[0].WardID)
	assert.Equal(t, "Surgical", r.PendingWards[0].WardName)
	assert.Contains(t, r.PendingWards[0].Reason, "incomplete")

	assert.Equal(t, 30, r.OpeningCensus)
	assert.Equal(t, 28, r.ClosingCensus)
	assert.Equal(t, 2, r.TotalAdmissions)
	assert.Equal(t, 4, r.TotalDischarges)
	assert.Equal(t, 0, r.AttestedWards)
}

func TestSummaryService_RollupFoldsWards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")
	f.approvedDay(t, "W2", "2024-05-01")
	_, err := f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W2", Date: "2024-05-01", ActorID: "sup-1", FirstName: "Ada", LastName: "King"})
	require.NoError(t, err)

	r, err := f.summary.GetDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, r.Wards, 2)
	assert.Empty(t, r.PendingWards)
	assert.Equal(t, 56, r.ClosingCensus)
	assert.Equal(t, 4, r.TotalAdmissions)
	assert.Equal(t, 8, r.TotalDischarges)
	assert.Equal(t, 8, r.TotalDepartures)
	assert.Equal(t, 1, r.AttestedWards)
}

func TestSummaryService_RollupDirectoryFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Wards = failingWards{}
	f.rebuild()

	_, err := f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	require.Error(t, err)

	_, err = f.summary.GetDailyRollup(context.Background(), "yesterday")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestSummaryService_RollupCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	f.deps.Cache = store.NewRedisKV(client)
	f.deps.CacheTTL = time.Minute
	f.rebuild()
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")

	first, err := f.summary.GetDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.True(t, mr.Exists(store.RollupKey("2024-05-01")))
	assert.Equal(t, time.Minute, mr.TTL(store.RollupKey("2024-05-01")))

	// cached rollup is served even though the store changed underneath
	f.wards.UpsertWard(domain.Ward{WardID: "W3", WardName: "ICU", Active: true})
	cached, err := f.summary.GetDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, cached.GeneratedAt)
	assert.Empty(t, cached.PendingWards)

	// a transition on the date invalidates
	f.submit(t, key("W3", "2024-05-01", domain.ShiftMorning), domain.Movements{}, intPtr(4))
	assert.False(t, mr.Exists(store.RollupKey("2024-05-01")))

	fresh, err := f.summary.GetDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, fresh.PendingWards, 1)
	assert.Equal(t, "W3", fresh.PendingWards[0].WardID)

	// attestation invalidates too
	_, err = f.summary.AttestDailySummary(ctx, AttestDailySummaryRequest{WardID: "W1", Date: "2024-05-01", ActorID: "sup-1", FirstName: "Ada", LastName: "King"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(store.RollupKey("2024-05-01")))
}

func TestSummaryService_RollupCacheDownStillServes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	f := newFixture(t)
	f.deps.Cache = store.NewRedisKV(client)
	f.rebuild()
	f.approvedDay(t, "W1", "2024-05-01")

	r, err := f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, r.Wards, 1)
}

func TestSummaryService_ExportDailyRollup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDay(t, "W1", "2024-05-01")

	data, err := f.summary.ExportDailyRollup(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(rollupSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header, W1, totals")
	assert.Equal(t, "Ward", rows[0][0])
	assert.Equal(t, "W1", rows[1][0])
	assert.Equal(t, "28", rows[1][3])
	assert.Equal(t, "TOTAL", rows[2][0])

	pending, err := wb.GetRows(pendingSheet)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "W2", pending[1][0])
}

// slowSummaries widens the gap between reading the stored summary and writing it.
type slowSummaries struct {
	repository.DailySummariesRepository
	delay time.Duration
}

func (s slowSummaries) GetDailySummary(ctx context.Context, wardID, date string) (*domain.DailySummary, error) {
	time.Sleep(s.delay)
	return s.DailySummariesRepository.GetDailySummary(ctx, wardID, date)
}

func TestSummaryService_ConcurrentFirstCompute(t *testing.T) {
	f := newFixture(t)
	f.deps.Summaries = slowSummaries{DailySummariesRepository: f.summaries, delay: 20 * time.Millisecond}
	f.rebuild()
	f.approvedDay(t, "W1", "2024-05-01")

	var wg sync.WaitGroup
	results := make([]*domain.DailySummary, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.summary.ComputeDailySummary(context.Background(), "W1", "2024-05-01")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].SummaryID, results[1].SummaryID)
	assert.Equal(t, int64(1), results[0].Version)
	assert.Equal(t, int64(1), results[1].Version)
	assert.Equal(t, 28, results[1].ClosingCensus)
}

func TestSummaryService_RollupRacingFirstCompute(t *testing.T) {
	f := newFixture(t)
	f.deps.Summaries = slowSummaries{DailySummariesRepository: f.summaries, delay: 20 * time.Millisecond}
	f.rebuild()
	f.approvedDay(t, "W1", "2024-05-01")

	var wg sync.WaitGroup
	var rollup *domain.DailyRollup
	var rollupErr, getErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		rollup, rollupErr = f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	}()
	go func() {
		defer wg.Done()
		_, getErr = f.summary.ComputeDailySummary(context.Background(), "W1", "2024-05-01")
	}()
	wg.Wait()

	require.NoError(t, rollupErr)
	require.NoError(t, getErr)
	require.Len(t, rollup.Wards, 1)
	assert.Equal(t, 28, rollup.ClosingCensus)
}

// hookedWards runs after once, right after the first ListWards read.
type hookedWards struct {
	repository.WardsRepository
	once  sync.Once
	after func()
}

func (w *hookedWards) ListWards(ctx context.Context, activeOnly bool) ([]*domain.Ward, error) {
	wards, err := w.WardsRepository.ListWards(ctx, activeOnly)
	w.once.Do(w.after)
	return wards, err
}

func TestSummaryService_RollupCacheDropsBuildOverlappingWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	hooked := &hookedWards{WardsRepository: f.wards}
	f.deps.Wards = hooked
	f.deps.Cache = store.NewRedisKV(client)
	f.deps.CacheTTL = time.Minute
	f.rebuild()
	f.approvedDay(t, "W1", "2024-05-01")

	// W3 opens and records a shift while the rollup is being built from the old ward list
	hooked.after = func() {
		f.wards.UpsertWard(domain.Ward{WardID: "W3", WardName: "ICU", Active: true})
		f.submit(t, key("W3", "2024-05-01", domain.ShiftMorning), domain.Movements{}, intPtr(4))
	}

	racing, err := f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Len(t, racing.PendingWards, 1)
	assert.Equal(t, "W2", racing.PendingWards[0].WardID)
	assert.True(t, mr.Exists(store.RollupKey("2024-05-01")), "the racing build still wrote its result")
	assert.True(t, mr.Exists(store.RollupStampKey("2024-05-01")))

	fresh, err := f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Len(t, fresh.PendingWards, 2)
	assert.Equal(t, "W3", fresh.PendingWards[1].WardID)
	assert.True(t, fresh.GeneratedAt.After(racing.GeneratedAt))

	cached, err := f.summary.GetDailyRollup(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, fresh.GeneratedAt, cached.GeneratedAt, "a build newer than the stamp is served from cache")
}
