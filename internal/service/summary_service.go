package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wisefido-census/internal/domain"
	"wisefido-census/internal/notify"
)

// SummaryService per-ward daily summaries, their attestation and the cross-ward rollup.
type SummaryService interface {
	// ComputeDailySummary derives (and stores) the ward/date summary.
	// domain.ErrIncomplete unless both shifts exist and are APPROVED.
	// Repeated calls with unchanged shifts return the stored summary untouched.
	ComputeDailySummary(ctx context.Context, wardID, date string) (*domain.DailySummary, error)

	// AttestDailySummary write-once supervisor sign-off.
	AttestDailySummary(ctx context.Context, req AttestDailySummaryRequest) (*domain.DailySummary, error)

	// GetDailyRollup folds the summaries of every active ward. Wards without two
	// APPROVED shifts are listed as pending instead of failing the rollup.
	GetDailyRollup(ctx context.Context, date string) (*domain.DailyRollup, error)

	// ExportDailyRollup the rollup as an xlsx workbook.
	ExportDailyRollup(ctx context.Context, date string) ([]byte, error)
}

// AttestDailySummaryRequest supervisor signature.
type AttestDailySummaryRequest struct {
	WardID    string
	Date      string
	ActorID   string
	FirstName string
	LastName  string
}

type summaryService struct {
	deps  Dependencies
	cache *rollupCache
}

// NewSummaryService builds the daily summary aggregator.
func NewSummaryService(deps Dependencies) SummaryService {
	deps = deps.withDefaults()
	return &summaryService{deps: deps, cache: newRollupCache(deps)}
}

func (s *summaryService) ComputeDailySummary(ctx context.Context, wardID, date string) (sum *domain.DailySummary, err error) {
	defer func() { s.deps.Metrics.Operation("compute_summary", outcome(err)) }()

	if strings.TrimSpace(wardID) == "" {
		return nil, fmt.Errorf("%w: ward_id is required", domain.ErrValidation)
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	return s.compute(ctx, wardID, date)
}

func (s *summaryService) compute(ctx context.Context, wardID, date string) (*domain.DailySummary, error) {
	records, err := s.deps.Records.ListShiftRecordsByWardDate(ctx, wardID, date)
	if err != nil {
		return nil, err
	}
	derived, err := deriveSummary(wardID, date, records)
	if err != nil {
		return nil, err
	}

	sum, err := s.store(ctx, derived)
	if errors.Is(err, domain.ErrVersionConflict) {
		// a concurrent computation stored the summary first; settle against its copy once
		s.deps.Logger.Debug("Daily summary write raced, re-reading",
			zap.String("ward_id", wardID),
			zap.String("date", date),
		)
		sum, err = s.store(ctx, derived)
	}
	return sum, err
}

// store persists derived unless the stored summary already matches it or is attested.
func (s *summaryService) store(ctx context.Context, derived *domain.DailySummary) (*domain.DailySummary, error) {
	wardID, date := derived.WardID, derived.Date
	stored, err := s.deps.Summaries.GetDailySummary(ctx, wardID, date)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.deps.Now()
	switch {
	case stored == nil:
		created := derived.Clone()
		created.SummaryID = s.deps.NewID()
		created.Status = domain.SummaryPendingAttestation
		created.CreatedAt = now
		created.UpdatedAt = now
		if err := s.deps.Summaries.PutDailySummaryIfVersion(ctx, created, 0); err != nil {
			return nil, err
		}
		s.deps.Logger.Info("Daily summary created",
			zap.String("ward_id", wardID),
			zap.String("date", date),
			zap.Int("closing_census", created.ClosingCensus),
		)
		return created, nil

	case stored.Attested(), stored.SameDerivation(derived):
		return stored, nil
	}

	// pending and stale: an approved shift was edited since the last computation
	refreshed := stored.Clone()
	refreshed.MorningRecordID, refreshed.MorningVersion = derived.MorningRecordID, derived.MorningVersion
	refreshed.NightRecordID, refreshed.NightVersion = derived.NightRecordID, derived.NightVersion
	refreshed.OpeningCensus = derived.OpeningCensus
	refreshed.MorningCensus = derived.MorningCensus
	refreshed.ClosingCensus = derived.ClosingCensus
	refreshed.Movements = derived.Movements
	refreshed.TotalAdmissions = derived.TotalAdmissions
	refreshed.TotalDepartures = derived.TotalDepartures
	refreshed.TotalDischarges = derived.TotalDischarges
	refreshed.MorningStaffing = derived.MorningStaffing
	refreshed.NightStaffing = derived.NightStaffing
	refreshed.UpdatedAt = now
	if err := s.deps.Summaries.PutDailySummaryIfVersion(ctx, refreshed, stored.Version); err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Daily summary refreshed",
		zap.String("ward_id", wardID),
		zap.String("date", date),
		zap.Int64("version", refreshed.Version),
	)
	return refreshed, nil
}

// deriveSummary totals of an APPROVED morning/night pair.
func deriveSummary(wardID, date string, records []*domain.ShiftRecord) (*domain.DailySummary, error) {
	var morning, night *domain.ShiftRecord
	for _, r := range records {
		switch r.Shift {
		case domain.ShiftMorning:
			morning = r
		case domain.ShiftNight:
			night = r
		}
	}
	for _, p := range []struct {
		kind domain.ShiftKind
		rec  *domain.ShiftRecord
	}{{domain.ShiftMorning, morning}, {domain.ShiftNight, night}} {
		if p.rec == nil {
			return nil, fmt.Errorf("%w: %s/%s has no %s record", domain.ErrIncomplete, wardID, date, p.kind)
		}
		if p.rec.Status != domain.StatusApproved {
			return nil, fmt.Errorf("%w: %s of %s/%s is %s", domain.ErrIncomplete, p.kind, wardID, date, p.rec.Status)
		}
	}

	movements := morning.Movements.Add(night.Movements)
	return &domain.DailySummary{
		WardID:          wardID,
		Date:            date,
		MorningRecordID: morning.RecordID,
		MorningVersion:  morning.Version,
		NightRecordID:   night.RecordID,
		NightVersion:    night.Version,
		OpeningCensus:   morning.PreviousCensus,
		MorningCensus:   morning.PatientCensus,
		ClosingCensus:   night.PatientCensus,
		Movements:       movements,
		TotalAdmissions: movements.Admissions(),
		TotalDepartures: movements.Departures(),
		TotalDischarges: movements.Discharge,
		MorningStaffing: morning.Staffing,
		NightStaffing:   night.Staffing,
	}, nil
}

func (s *summaryService) AttestDailySummary(ctx context.Context, req AttestDailySummaryRequest) (sum *domain.DailySummary, err error) {
	defer func() { s.deps.Metrics.Operation("attest_summary", outcome(err)) }()

	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	switch {
	case strings.TrimSpace(req.WardID) == "":
		return nil, fmt.Errorf("%w: ward_id is required", domain.ErrValidation)
	case strings.TrimSpace(req.ActorID) == "":
		return nil, fmt.Errorf("%w: actor_id is required", domain.ErrValidation)
	case first == "" || last == "":
		return nil, fmt.Errorf("%w: signature first and last name are required", domain.ErrValidation)
	}
	if _, err := domain.ParseDate(req.Date); err != nil {
		return nil, err
	}

	current, err := s.compute(ctx, req.WardID, req.Date)
	if err != nil {
		return nil, err
	}
	if current.Attested() {
		return nil, fmt.Errorf("%w: %s/%s attested by %s at %s", domain.ErrAlreadyAttested,
			req.WardID, req.Date, current.Attestation.ActorID, current.Attestation.AttestedAt.Format(time.RFC3339))
	}

	now := s.deps.Now()
	next := current.Clone()
	next.Status = domain.SummaryAttested
	next.Attestation = &domain.Attestation{
		ActorID:    req.ActorID,
		FirstName:  first,
		LastName:   last,
		AttestedAt: now,
	}
	next.UpdatedAt = now
	if err := s.deps.Summaries.PutDailySummaryIfVersion(ctx, next, current.Version); err != nil {
		s.deps.Logger.Warn("Daily summary attestation write failed",
			zap.String("ward_id", req.WardID),
			zap.String("date", req.Date),
			zap.String("actor_id", req.ActorID),
			zap.Error(err),
		)
		return nil, err
	}

	s.deps.Logger.Info("Daily summary attested",
		zap.String("ward_id", req.WardID),
		zap.String("date", req.Date),
		zap.String("actor_id", req.ActorID),
	)
	s.cache.invalidate(ctx, req.Date)
	publish(ctx, s.deps.Publisher, s.deps.Logger, notify.Event{
		Type:       notify.EventSummaryAttested,
		WardID:     next.WardID,
		Date:       next.Date,
		RecordID:   next.SummaryID,
		Status:     string(next.Status),
		Version:    next.Version,
		ActorID:    req.ActorID,
		OccurredAt: now,
	})
	return next, nil
}

func (s *summaryService) GetDailyRollup(ctx context.Context, date string) (r *domain.DailyRollup, err error) {
	defer func() { s.deps.Metrics.Operation("rollup", outcome(err)) }()

	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.get(ctx, date); ok {
		return cached, nil
	}

	started := time.Now()
	rollup, err := s.buildRollup(ctx, date)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.ObserveRollup(time.Since(started).Seconds())
	s.cache.set(ctx, rollup)
	return rollup, nil
}

func (s *summaryService) buildRollup(ctx context.Context, date string) (*domain.DailyRollup, error) {
	// stamped before any read so a write landing mid-build marks the result stale
	generatedAt := s.deps.Now()
	wards, err := s.deps.Wards.ListWards(ctx, true)
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.DailySummary, len(wards))
	pending := make([]*domain.PendingWard, len(wards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.RollupConcurrency)
	for i, w := range wards {
		i, w := i, w
		g.Go(func() error {
			sum, err := s.compute(gctx, w.WardID, date)
			switch {
			case errors.Is(err, domain.ErrIncomplete):
				pending[i] = &domain.PendingWard{WardID: w.WardID, WardName: w.WardName, Reason: err.Error()}
				return nil
			case err != nil:
				return fmt.Errorf("ward %s: %w", w.WardID, err)
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.deps.Logger.Error("Daily rollup failed", zap.String("date", date), zap.Error(err))
		return nil, err
	}

	rollup := &domain.DailyRollup{
		Date:         date,
		Wards:        []*domain.DailySummary{},
		PendingWards: []domain.PendingWard{},
		GeneratedAt:  generatedAt,
	}
	for i := range wards {
		if p := pending[i]; p != nil {
			rollup.PendingWards = append(rollup.PendingWards, *p)
			continue
		}
		sum := summaries[i]
		rollup.Wards = append(rollup.Wards, sum)
		rollup.OpeningCensus += sum.OpeningCensus
		rollup.ClosingCensus += sum.ClosingCensus
		rollup.Movements = rollup.Movements.Add(sum.Movements)
		if sum.Attested() {
			rollup.AttestedWards++
		}
	}
	rollup.TotalAdmissions = rollup.Movements.Admissions()
	rollup.TotalDepartures = rollup.Movements.Departures()
	rollup.TotalDischarges = rollup.Movements.Discharge
	return rollup, nil
}
