package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wisefido-census/internal/census"
	"wisefido-census/internal/domain"
	"wisefido-census/internal/notify"
)

// ShiftService lifecycle of shift records: DRAFT -> FINAL -> APPROVED | REJECTED,
// REJECTED -> DRAFT. Every operation commits at most one version-checked write
// and never retries a conflicting one.
type ShiftService interface {
	// SaveDraft creates or updates a DRAFT record. A REJECTED record is reopened
	// to DRAFT in the same write; FINAL and APPROVED records are refused.
	SaveDraft(ctx context.Context, req SaveDraftRequest) (*domain.ShiftRecord, error)

	// SubmitShift finalizes a record, freezing its patient census.
	// NIGHT requires the same day's MORNING to be APPROVED.
	SubmitShift(ctx context.Context, req SubmitShiftRequest) (*domain.ShiftRecord, error)

	// ApproveShift FINAL -> APPROVED.
	ApproveShift(ctx context.Context, req ReviewShiftRequest) (*domain.ShiftRecord, error)

	// RejectShift FINAL -> REJECTED with a non-empty reason.
	RejectShift(ctx context.Context, req ReviewShiftRequest) (*domain.ShiftRecord, error)

	// ReopenShift REJECTED -> DRAFT on the same record.
	ReopenShift(ctx context.Context, req ReviewShiftRequest) (*domain.ShiftRecord, error)

	// EditApprovedShift audited change of an APPROVED record. No status change.
	EditApprovedShift(ctx context.Context, req EditApprovedShiftRequest) (*domain.ShiftRecord, error)

	GetShift(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error)
	ListShifts(ctx context.Context, wardID, date string) ([]*domain.ShiftRecord, error)
}

// ============================================
// Request DTOs
// ============================================

// SaveDraftRequest fields captured while a shift is still being recorded.
type SaveDraftRequest struct {
	Key       domain.ShiftKey
	ActorID   string
	Movements domain.Movements
	Staffing  domain.Staffing
	Notes     string
}

// SubmitShiftRequest the complete shift entry.
type SubmitShiftRequest struct {
	Key       domain.ShiftKey
	ActorID   string
	Movements domain.Movements
	Staffing  domain.Staffing
	Notes     string

	// BaselineCensus starting census used when no APPROVED predecessor shift exists.
	// Ignored when one does.
	BaselineCensus *int
}

// ReviewShiftRequest approve, reject or reopen. Reason is required for reject only.
type ReviewShiftRequest struct {
	Key     domain.ShiftKey
	ActorID string
	Reason  string
}

// EditApprovedShiftRequest field name -> new value, see domain.EditableFields.
type EditApprovedShiftRequest struct {
	Key     domain.ShiftKey
	ActorID string
	Changes map[string]int
}

type shiftService struct {
	deps  Dependencies
	audit *AuditRecorder
	cache *rollupCache
}

// NewShiftService builds the shift lifecycle service.
func NewShiftService(deps Dependencies) ShiftService {
	deps = deps.withDefaults()
	return &shiftService{
		deps:  deps,
		audit: NewAuditRecorder(deps.NewID),
		cache: newRollupCache(deps),
	}
}

func (s *shiftService) SaveDraft(ctx context.Context, req SaveDraftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("save_draft", outcome(err)) }()

	if err := validateEntry(req.Key, req.ActorID, req.Movements, req.Staffing); err != nil {
		return nil, err
	}
	if err := s.checkWard(ctx, req.Key.WardID); err != nil {
		return nil, err
	}

	current, err := s.lookup(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	var next *domain.ShiftRecord
	var expected int64
	from := domain.ShiftStatus("")

	switch {
	case current == nil:
		next = &domain.ShiftRecord{
			RecordID:  s.deps.NewID(),
			WardID:    req.Key.WardID,
			Date:      req.Key.Date,
			Shift:     req.Key.Shift,
			Status:    domain.StatusDraft,
			CreatedAt: now,
		}
	case current.Status == domain.StatusDraft:
		next, expected = current.Clone(), current.Version
	case current.Status == domain.StatusRejected:
		next, expected, from = current.Clone(), current.Version, current.Status
		if err := next.Transition(domain.StatusDraft); err != nil {
			return nil, err
		}
		clearSubmission(next)
	default:
		return nil, fmt.Errorf("%w: %s is %s and no longer editable as a draft",
			domain.ErrInvalidTransition, req.Key, current.Status)
	}

	next.Movements = req.Movements
	next.Staffing = req.Staffing
	next.Notes = req.Notes
	next.RecordedBy = req.ActorID
	next.UpdatedAt = now

	if err := s.deps.Records.PutShiftRecordIfVersion(ctx, next, expected); err != nil {
		return nil, s.writeFailed("save draft", req.Key, req.ActorID, err)
	}

	if from != "" {
		s.deps.Metrics.Transition(string(from), string(domain.StatusDraft))
		s.committed(ctx, notify.EventShiftReopened, next, req.ActorID)
	}
	return next, nil
}

func (s *shiftService) SubmitShift(ctx context.Context, req SubmitShiftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("submit", outcome(err)) }()

	if err := validateEntry(req.Key, req.ActorID, req.Movements, req.Staffing); err != nil {
		return nil, err
	}
	if err := s.checkWard(ctx, req.Key.WardID); err != nil {
		return nil, err
	}

	current, err := s.lookup(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status != domain.StatusDraft && current.Status != domain.StatusRejected {
		return nil, fmt.Errorf("%w: %s is already %s", domain.ErrInvalidTransition, req.Key, current.Status)
	}

	predecessor, err := s.predecessor(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	start, err := census.Resolve(predecessor, req.BaselineCensus)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", req.Key, err)
	}
	patientCensus, err := census.Propagate(start.Census, req.Movements)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", req.Key, err)
	}

	now := s.deps.Now()
	var next *domain.ShiftRecord
	var expected int64
	if current == nil {
		next = &domain.ShiftRecord{
			RecordID:  s.deps.NewID(),
			WardID:    req.Key.WardID,
			Date:      req.Key.Date,
			Shift:     req.Key.Shift,
			Status:    domain.StatusDraft,
			CreatedAt: now,
		}
	} else {
		next, expected = current.Clone(), current.Version
		if next.Status == domain.StatusRejected {
			if err := next.Transition(domain.StatusDraft); err != nil {
				return nil, err
			}
		}
	}
	from := next.Status
	if err := next.Transition(domain.StatusFinal); err != nil {
		return nil, err
	}

	next.Movements = req.Movements
	next.Staffing = req.Staffing
	next.Notes = req.Notes
	next.RecordedBy = req.ActorID
	next.PreviousCensus = start.Census
	next.CensusSource = start.Source
	next.PatientCensus = patientCensus
	next.RejectedBy, next.RejectionReason, next.RejectedAt = "", "", nil
	next.FinalizedAt = &now
	next.UpdatedAt = now

	if err := s.deps.Records.PutShiftRecordIfVersion(ctx, next, expected); err != nil {
		return nil, s.writeFailed("submit", req.Key, req.ActorID, err)
	}

	s.deps.Logger.Info("Shift submitted",
		zap.String("ward_id", req.Key.WardID),
		zap.String("date", req.Key.Date),
		zap.String("shift", string(req.Key.Shift)),
		zap.Int("patient_census", patientCensus),
		zap.String("census_source", string(start.Source)),
	)
	s.deps.Metrics.Transition(string(from), string(domain.StatusFinal))
	s.committed(ctx, notify.EventShiftSubmitted, next, req.ActorID)
	return next, nil
}

// predecessor returns the record whose census feeds key, or nil.
// For NIGHT the same day's MORNING must be APPROVED.
func (s *shiftService) predecessor(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error) {
	prevKey, err := key.PredecessorKey()
	if err != nil {
		return nil, err
	}
	prev, err := s.lookup(ctx, prevKey)
	if err != nil {
		return nil, err
	}
	if key.Shift == domain.ShiftNight {
		if prev == nil {
			return nil, fmt.Errorf("%w: %s has no MORNING record yet", domain.ErrSequenceViolation, key)
		}
		if prev.Status != domain.StatusApproved {
			return nil, fmt.Errorf("%w: MORNING of %s/%s is %s, not APPROVED",
				domain.ErrSequenceViolation, key.WardID, key.Date, prev.Status)
		}
	}
	return prev, nil
}

func (s *shiftService) ApproveShift(ctx context.Context, req ReviewShiftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("approve", outcome(err)) }()

	return s.review(ctx, req, domain.StatusApproved, notify.EventShiftApproved, func(next *domain.ShiftRecord) {
		now := next.UpdatedAt
		next.ApprovedBy = req.ActorID
		next.ApprovedAt = &now
	})
}

func (s *shiftService) RejectShift(ctx context.Context, req ReviewShiftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("reject", outcome(err)) }()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", domain.ErrValidation)
	}
	return s.review(ctx, req, domain.StatusRejected, notify.EventShiftRejected, func(next *domain.ShiftRecord) {
		now := next.UpdatedAt
		next.RejectedBy = req.ActorID
		next.RejectionReason = reason
		next.RejectedAt = &now
	})
}

// ReopenShift keeps the rejection reason on the draft until it is resubmitted.
func (s *shiftService) ReopenShift(ctx context.Context, req ReviewShiftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("reopen", outcome(err)) }()

	return s.review(ctx, req, domain.StatusDraft, notify.EventShiftReopened, clearSubmission)
}

// clearSubmission drops what the rejected submission froze. The rejection
// fields stay until the record is submitted again.
func clearSubmission(rec *domain.ShiftRecord) {
	rec.FinalizedAt = nil
	rec.PatientCensus = 0
	rec.PreviousCensus = 0
	rec.CensusSource = ""
}

// review a single status transition on an existing record.
func (s *shiftService) review(ctx context.Context, req ReviewShiftRequest, to domain.ShiftStatus, event string, apply func(*domain.ShiftRecord)) (*domain.ShiftRecord, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, fmt.Errorf("%w: actor_id is required", domain.ErrValidation)
	}

	current, err := s.deps.Records.GetShiftRecord(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	from := next.Status
	if err := next.Transition(to); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.deps.Now()
	apply(next)

	if err := s.deps.Records.PutShiftRecordIfVersion(ctx, next, current.Version); err != nil {
		return nil, s.writeFailed(strings.ToLower(string(to)), req.Key, req.ActorID, err)
	}

	s.deps.Logger.Info("Shift status changed",
		zap.String("ward_id", req.Key.WardID),
		zap.String("date", req.Key.Date),
		zap.String("shift", string(req.Key.Shift)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", req.ActorID),
	)
	s.deps.Metrics.Transition(string(from), string(to))
	s.committed(ctx, event, next, req.ActorID)
	return next, nil
}

func (s *shiftService) EditApprovedShift(ctx context.Context, req EditApprovedShiftRequest) (rec *domain.ShiftRecord, err error) {
	defer func() { s.deps.Metrics.Operation("edit_approved", outcome(err)) }()

	if err := req.Key.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, fmt.Errorf("%w: actor_id is required", domain.ErrValidation)
	}

	current, err := s.deps.Records.GetShiftRecord(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	res, err := s.audit.RecordEdit(current, req.ActorID, req.Changes, s.deps.Now())
	if err != nil {
		return nil, err
	}
	if res.Entry == nil {
		return current, nil
	}
	if res.MovementsChanged {
		if err := s.checkMovementEditAllowed(ctx, req.Key); err != nil {
			return nil, err
		}
	}

	if err := s.deps.Records.PutShiftRecordIfVersion(ctx, res.Record, current.Version); err != nil {
		return nil, s.writeFailed("edit approved", req.Key, req.ActorID, err)
	}

	s.deps.Logger.Info("Approved shift edited",
		zap.String("ward_id", req.Key.WardID),
		zap.String("date", req.Key.Date),
		zap.String("shift", string(req.Key.Shift)),
		zap.String("actor_id", req.ActorID),
		zap.Int("changed_fields", len(res.Entry.ChangedFields)),
	)
	s.deps.Metrics.AuditEntry()
	s.committed(ctx, notify.EventShiftEdited, res.Record, req.ActorID)
	return res.Record, nil
}

// checkMovementEditAllowed a census change must not desynchronise a successor
// shift that already froze this census, nor an attested day.
func (s *shiftService) checkMovementEditAllowed(ctx context.Context, key domain.ShiftKey) error {
	succKey, err := key.SuccessorKey()
	if err != nil {
		return err
	}
	succ, err := s.lookup(ctx, succKey)
	if err != nil {
		return err
	}
	if succ != nil && (succ.Status == domain.StatusFinal || succ.Status == domain.StatusApproved) &&
		succ.CensusSource == domain.CensusFromPredecessor {
		return fmt.Errorf("%w: %s is %s and derived its census from %s",
			domain.ErrSequenceViolation, succKey, succ.Status, key)
	}

	summary, err := s.deps.Summaries.GetDailySummary(ctx, key.WardID, key.Date)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case summary.Attested():
		return fmt.Errorf("%w: daily summary %s/%s is attested", domain.ErrAlreadyAttested, key.WardID, key.Date)
	}
	return nil
}

func (s *shiftService) GetShift(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.deps.Records.GetShiftRecord(ctx, key)
}

func (s *shiftService) ListShifts(ctx context.Context, wardID, date string) ([]*domain.ShiftRecord, error) {
	if strings.TrimSpace(wardID) == "" {
		return nil, fmt.Errorf("%w: ward_id is required", domain.ErrValidation)
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	return s.deps.Records.ListShiftRecordsByWardDate(ctx, wardID, date)
}

// lookup GetShiftRecord with absence as (nil, nil).
func (s *shiftService) lookup(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error) {
	rec, err := s.deps.Records.GetShiftRecord(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *shiftService) checkWard(ctx context.Context, wardID string) error {
	ward, err := s.deps.Wards.GetWard(ctx, wardID)
	if err != nil {
		return err
	}
	if !ward.Active {
		return fmt.Errorf("%w: ward %s is inactive", domain.ErrValidation, wardID)
	}
	return nil
}

// committed runs the post-commit side effects of a write.
func (s *shiftService) committed(ctx context.Context, event string, rec *domain.ShiftRecord, actorID string) {
	s.cache.invalidate(ctx, rec.Date)
	publish(ctx, s.deps.Publisher, s.deps.Logger, notify.Event{
		Type:       event,
		WardID:     rec.WardID,
		Date:       rec.Date,
		Shift:      string(rec.Shift),
		RecordID:   rec.RecordID,
		Status:     string(rec.Status),
		Version:    rec.Version,
		ActorID:    actorID,
		OccurredAt: rec.UpdatedAt,
	})
}

func (s *shiftService) writeFailed(op string, key domain.ShiftKey, actorID string, err error) error {
	level := s.deps.Logger.Error
	if errors.Is(err, domain.ErrVersionConflict) {
		level = s.deps.Logger.Warn
	}
	level("Shift write failed",
		zap.String("operation", op),
		zap.String("ward_id", key.WardID),
		zap.String("date", key.Date),
		zap.String("shift", string(key.Shift)),
		zap.String("actor_id", actorID),
		zap.Error(err),
	)
	return err
}

func validateEntry(key domain.ShiftKey, actorID string, m domain.Movements, st domain.Staffing) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: recorder id is required", domain.ErrValidation)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return st.Validate()
}
