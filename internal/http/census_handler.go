package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"wisefido-census/internal/domain"
	"wisefido-census/internal/service"
)

// DefaultReviewerRoles roles allowed to approve, reject, edit and attest.
var DefaultReviewerRoles = []string{"Manager", "Admin", "SystemAdmin", "Supervisor"}

// CensusHandler HTTP surface of the shift and summary services.
type CensusHandler struct {
	shifts        service.ShiftService
	summaries     service.SummaryService
	reviewerRoles map[string]bool
	logger        *zap.Logger
}

// NewCensusHandler reviewerRoles are compared case-insensitively; empty means DefaultReviewerRoles.
func NewCensusHandler(shifts service.ShiftService, summaries service.SummaryService, reviewerRoles []string, logger *zap.Logger) *CensusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(reviewerRoles) == 0 {
		reviewerRoles = DefaultReviewerRoles
	}
	roles := make(map[string]bool, len(reviewerRoles))
	for _, r := range reviewerRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles[strings.ToLower(r)] = true
		}
	}
	return &CensusHandler{shifts: shifts, summaries: summaries, reviewerRoles: roles, logger: logger}
}

// ============================================
// Request bodies
// ============================================

type shiftKeyBody struct {
	WardID string `json:"ward_id"`
	Date   string `json:"date"`
	Shift  string `json:"shift"`
}

func (b shiftKeyBody) key() (domain.ShiftKey, error) {
	kind, err := domain.ParseShiftKind(b.Shift)
	if err != nil {
		return domain.ShiftKey{}, err
	}
	k := domain.ShiftKey{WardID: strings.TrimSpace(b.WardID), Date: strings.TrimSpace(b.Date), Shift: kind}
	return k, k.Validate()
}

type shiftEntryBody struct {
	shiftKeyBody
	Movements      domain.Movements `json:"movements"`
	Staffing       domain.Staffing  `json:"staffing"`
	Notes          string           `json:"notes"`
	BaselineCensus *int             `json:"baseline_census"`
}

type reviewBody struct {
	shiftKeyBody
	Reason string `json:"reason"`
}

type editBody struct {
	shiftKeyBody
	Changes map[string]int `json:"changes"`
}

type attestBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ============================================
// Identity
// ============================================

// actor X-User-Id is required on every write.
func (h *CensusHandler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing user identity"))
		return "", false
	}
	return userID, true
}

// reviewer X-User-Id plus a reviewer X-User-Role.
func (h *CensusHandler) reviewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := h.actor(w, r)
	if !ok {
		return "", false
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role")))
	if !h.reviewerRoles[role] {
		h.logger.Warn("Reviewer role required",
			zap.String("user_id", userID),
			zap.String("role", r.Header.Get("X-User-Role")),
			zap.String("path", r.URL.Path),
		)
		writeJSON(w, http.StatusForbidden, Fail("reviewer role required"))
		return "", false
	}
	return userID, true
}

// ============================================
// Shifts
// ============================================

func (h *CensusHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body shiftEntryBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	key, err := body.key()
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	rec, err := h.shifts.SaveDraft(r.Context(), service.SaveDraftRequest{
		Key:       key,
		ActorID:   actorID,
		Movements: body.Movements,
		Staffing:  body.Staffing,
		Notes:     body.Notes,
	})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *CensusHandler) SubmitShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body shiftEntryBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	key, err := body.key()
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	rec, err := h.shifts.SubmitShift(r.Context(), service.SubmitShiftRequest{
		Key:            key,
		ActorID:        actorID,
		Movements:      body.Movements,
		Staffing:       body.Staffing,
		Notes:          body.Notes,
		BaselineCensus: body.BaselineCensus,
	})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *CensusHandler) ApproveShift(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, true, h.shifts.ApproveShift)
}

func (h *CensusHandler) RejectShift(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, true, h.shifts.RejectShift)
}

func (h *CensusHandler) ReopenShift(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, false, h.shifts.ReopenShift)
}

func (h *CensusHandler) handleReview(w http.ResponseWriter, r *http.Request, needReviewer bool,
	fn func(context.Context, service.ReviewShiftRequest) (*domain.ShiftRecord, error)) {
	var actorID string
	var ok bool
	if needReviewer {
		actorID, ok = h.reviewer(w, r)
	} else {
		actorID, ok = h.actor(w, r)
	}
	if !ok {
		return
	}
	var body reviewBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	key, err := body.key()
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	rec, err := fn(r.Context(), service.ReviewShiftRequest{Key: key, ActorID: actorID, Reason: body.Reason})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *CensusHandler) EditApprovedShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.reviewer(w, r)
	if !ok {
		return
	}
	var body editBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	key, err := body.key()
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	rec, err := h.shifts.EditApprovedShift(r.Context(), service.EditApprovedShiftRequest{
		Key:     key,
		ActorID: actorID,
		Changes: body.Changes,
	})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// ListShifts GET /census/api/v1/shifts?ward_id=&date=[&shift=]
func (h *CensusHandler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wardID := strings.TrimSpace(q.Get("ward_id"))
	date := strings.TrimSpace(q.Get("date"))
	if wardID == "" || date == "" {
		writeJSON(w, http.StatusBadRequest, Fail("ward_id and date are required"))
		return
	}

	if shift := q.Get("shift"); shift != "" {
		kind, err := domain.ParseShiftKind(shift)
		if err != nil {
			failFromError(w, h.logger, err)
			return
		}
		rec, err := h.shifts.GetShift(r.Context(), domain.ShiftKey{WardID: wardID, Date: date, Shift: kind})
		if err != nil {
			failFromError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok([]*domain.ShiftRecord{rec}))
		return
	}

	recs, err := h.shifts.ListShifts(r.Context(), wardID, date)
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	if recs == nil {
		recs = []*domain.ShiftRecord{}
	}
	writeJSON(w, http.StatusOK, Ok(recs))
}

// ============================================
// Summaries and rollups
// ============================================

// ServeSummaries /census/api/v1/summaries/{ward}/{date}[/attest]
func (h *CensusHandler) ServeSummaries(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/census/api/v1/summaries/"), "/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getSummary(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "attest":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.attestSummary(w, r, parts[0], parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CensusHandler) getSummary(w http.ResponseWriter, r *http.Request, wardID, date string) {
	sum, err := h.summaries.ComputeDailySummary(r.Context(), wardID, date)
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sum))
}

func (h *CensusHandler) attestSummary(w http.ResponseWriter, r *http.Request, wardID, date string) {
	actorID, ok := h.reviewer(w, r)
	if !ok {
		return
	}
	var body attestBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	sum, err := h.summaries.AttestDailySummary(r.Context(), service.AttestDailySummaryRequest{
		WardID:    wardID,
		Date:      date,
		ActorID:   actorID,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sum))
}

// ServeRollups /census/api/v1/rollups/{date}[/export]
func (h *CensusHandler) ServeRollups(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/census/api/v1/rollups/"), "/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		rollup, err := h.summaries.GetDailyRollup(r.Context(), parts[0])
		if err != nil {
			failFromError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(rollup))
	case len(parts) == 2 && parts[1] == "export":
		data, err := h.summaries.ExportDailyRollup(r.Context(), parts[0])
		if err != nil {
			failFromError(w, h.logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=census-"+parts[0]+".xlsx")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
