package domain

import "fmt"

// ShiftStatus lifecycle state of a ShiftRecord.
type ShiftStatus string

const (
	StatusDraft    ShiftStatus = "DRAFT"
	StatusFinal    ShiftStatus = "FINAL"
	StatusApproved ShiftStatus = "APPROVED"
	StatusRejected ShiftStatus = "REJECTED"
)

// shiftTransitions legal status moves. APPROVED is terminal: later changes go
// through the audit trail, never through a status change.
var shiftTransitions = map[ShiftStatus]map[ShiftStatus]struct{}{
	StatusDraft:    {StatusFinal: {}},
	StatusFinal:    {StatusApproved: {}, StatusRejected: {}},
	StatusRejected: {StatusDraft: {}},
	StatusApproved: {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to ShiftStatus) bool {
	next, ok := shiftTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Valid reports whether s is a known status.
func (s ShiftStatus) Valid() bool {
	_, ok := shiftTransitions[s]
	return ok
}

// Transition moves the record to status `to` or returns ErrInvalidTransition.
// Timestamps and actors are the caller's responsibility.
func (r *ShiftRecord) Transition(to ShiftStatus) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, r.Key(), r.Status, to)
	}
	r.Status = to
	return nil
}
