package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-census/internal/domain"
	"wisefido-census/internal/notify"
	"wisefido-census/internal/repository"
)

// fixture memory-backed services sharing one store, a stepping clock and sequential ids.
type fixture struct {
	records   *repository.MemoryShiftRecordsRepo
	summaries *repository.MemoryDailySummariesRepo
	wards     *repository.MemoryWardsRepo
	events    *recordingPublisher
	deps      Dependencies
	shifts    ShiftService
	summary   SummaryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		records:   repository.NewMemoryShiftRecordsRepo(),
		summaries: repository.NewMemoryDailySummariesRepo(),
		wards: repository.NewMemoryWardsRepo(
			domain.Ward{WardID: "W1", WardName: "Medical", Active: true},
			domain.Ward{WardID: "W2", WardName: "Surgical", Active: true},
			domain.Ward{WardID: "W9", WardName: "Closed", Active: false},
		),
		events: &recordingPublisher{},
	}

	clock := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	seq := 0
	f.deps = Dependencies{
		Records:   f.records,
		Summaries: f.summaries,
		Wards:     f.wards,
		Publisher: f.events,
		Logger:    zap.NewNop(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}
	f.rebuild()
	return f
}

func (f *fixture) rebuild() {
	f.shifts = NewShiftService(f.deps)
	f.summary = NewSummaryService(f.deps)
}

func key(ward, date string, shift domain.ShiftKind) domain.ShiftKey {
	return domain.ShiftKey{WardID: ward, Date: date, Shift: shift}
}

func intPtr(v int) *int { return &v }

func (f *fixture) submit(t *testing.T, k domain.ShiftKey, m domain.Movements, baseline *int) *domain.ShiftRecord {
	t.Helper()
	rec, err := f.shifts.SubmitShift(context.Background(), SubmitShiftRequest{
		Key:            k,
		ActorID:        "nurse-1",
		Movements:      m,
		Staffing:       domain.Staffing{Manager: 1, RN: 3, PN: 2, Aide: 1},
		BaselineCensus: baseline,
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) approve(t *testing.T, k domain.ShiftKey) *domain.ShiftRecord {
	t.Helper()
	rec, err := f.shifts.ApproveShift(context.Background(), ReviewShiftRequest{Key: k, ActorID: "sup-1"})
	require.NoError(t, err)
	return rec
}

// approvedDay W/date with MORNING 30 -> 31 and NIGHT 31 -> 28, both APPROVED.
func (f *fixture) approvedDay(t *testing.T, ward, date string) {
	t.Helper()
	f.submit(t, key(ward, date, domain.ShiftMorning), domain.Movements{NewAdmit: 2, Discharge: 1}, intPtr(30))
	f.approve(t, key(ward, date, domain.ShiftMorning))
	f.submit(t, key(ward, date, domain.ShiftNight), domain.Movements{Discharge: 3}, nil)
	f.approve(t, key(ward, date, domain.ShiftNight))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// failingWards ward directory that is down.
type failingWards struct{}

func (failingWards) GetWard(context.Context, string) (*domain.Ward, error) {
	return nil, errors.New("directory unavailable")
}

func (failingWards) ListWards(context.Context, bool) ([]*domain.Ward, error) {
	return nil, errors.New("directory unavailable")
}
