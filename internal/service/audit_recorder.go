package service

import (
	"fmt"
	"sort"
	"time"

	"wisefido-census/internal/census"
	"wisefido-census/internal/domain"
)

// AuditRecorder applies edits to APPROVED shift records as audited changes.
type AuditRecorder struct {
	newID func() string
}

func NewAuditRecorder(newID func() string) *AuditRecorder {
	return &AuditRecorder{newID: newID}
}

// EditResult outcome of RecordEdit.
type EditResult struct {
	Record *domain.ShiftRecord
	// Entry nil when no field changed value.
	Entry *domain.AuditEntry
	// MovementsChanged the census derivation inputs changed.
	MovementsChanged bool
}

// RecordEdit returns a copy of rec with changes applied and one AuditEntry
// appended. rec itself is not modified. Fields whose value does not change are
// skipped; with nothing left (an empty changes map included) the copy is
// returned without an entry.
// A movement change recomputes patient_census from the stored previous census
// and records the census delta in the same entry.
func (a *AuditRecorder) RecordEdit(rec *domain.ShiftRecord, actorID string, changes map[string]int, now time.Time) (*EditResult, error) {
	if rec.Status != domain.StatusApproved {
		return nil, fmt.Errorf("%w: %s is %s, only APPROVED records take audited edits",
			domain.ErrInvalidTransition, rec.Key(), rec.Status)
	}
	if err := validateChanges(changes); err != nil {
		return nil, err
	}

	next := rec.Clone()
	deltas := map[string]domain.FieldDelta{}
	movementsChanged := false

	for _, name := range domain.EditableFields() {
		v, ok := changes[name]
		if !ok {
			continue
		}
		prev, _ := next.FieldValue(name)
		if prev == v {
			continue
		}
		next.SetField(name, v)
		deltas[name] = domain.FieldDelta{Previous: prev, New: v}
		if domain.IsMovementField(name) {
			movementsChanged = true
		}
	}
	if len(deltas) == 0 {
		return &EditResult{Record: next}, nil
	}

	if movementsChanged {
		c, err := census.Propagate(next.PreviousCensus, next.Movements)
		if err != nil {
			return nil, fmt.Errorf("edit %s: %w", rec.Key(), err)
		}
		if c != next.PatientCensus {
			deltas[domain.FieldPatientCensus] = domain.FieldDelta{Previous: next.PatientCensus, New: c}
			next.PatientCensus = c
		}
	}

	entry := domain.AuditEntry{
		EntryID:       a.newID(),
		Timestamp:     now,
		ActorID:       actorID,
		ChangedFields: deltas,
	}
	history := make([]domain.AuditEntry, len(rec.EditHistory), len(rec.EditHistory)+1)
	copy(history, next.EditHistory)
	next.EditHistory = append(history, entry)
	next.UpdatedAt = now

	return &EditResult{Record: next, Entry: &entry, MovementsChanged: movementsChanged}, nil
}

func validateChanges(changes map[string]int) error {
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := (&domain.ShiftRecord{}).FieldValue(name); !ok {
			return fmt.Errorf("%w: field %q is not editable", domain.ErrValidation, name)
		}
		if changes[name] < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", domain.ErrValidation, name, changes[name])
		}
	}
	return nil
}
