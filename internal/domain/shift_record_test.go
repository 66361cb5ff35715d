package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ShiftStatus
		ok       bool
	}{
		{StatusDraft, StatusFinal, true},
		{StatusFinal, StatusApproved, true},
		{StatusFinal, StatusRejected, true},
		{StatusRejected, StatusDraft, true},
		{StatusDraft, StatusApproved, false},
		{StatusApproved, StatusApproved, false},
		{StatusApproved, StatusDraft, false},
		{StatusRejected, StatusFinal, false},
		{ShiftStatus("BOGUS"), StatusFinal, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestShiftRecord_Transition_InvalidWrapsSentinel(t *testing.T) {
	r := &ShiftRecord{WardID: "W1", Date: "2024-05-01", Shift: ShiftMorning, Status: StatusDraft}
	err := r.Transition(StatusApproved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusDraft, r.Status)

	require.NoError(t, r.Transition(StatusFinal))
	assert.Equal(t, StatusFinal, r.Status)
}

func TestShiftKey_PredecessorAndSuccessor(t *testing.T) {
	morning := ShiftKey{WardID: "W1", Date: "2024-03-01", Shift: ShiftMorning}
	prev, err := morning.PredecessorKey()
	require.NoError(t, err)
	assert.Equal(t, ShiftKey{WardID: "W1", Date: "2024-02-29", Shift: ShiftNight}, prev)

	next, err := morning.SuccessorKey()
	require.NoError(t, err)
	assert.Equal(t, ShiftKey{WardID: "W1", Date: "2024-03-01", Shift: ShiftNight}, next)

	night := ShiftKey{WardID: "W1", Date: "2024-12-31", Shift: ShiftNight}
	prev, err = night.PredecessorKey()
	require.NoError(t, err)
	assert.Equal(t, ShiftMorning, prev.Shift)
	assert.Equal(t, "2024-12-31", prev.Date)

	next, err = night.SuccessorKey()
	require.NoError(t, err)
	assert.Equal(t, ShiftKey{WardID: "W1", Date: "2025-01-01", Shift: ShiftMorning}, next)
}

func TestShiftKey_Validate(t *testing.T) {
	assert.NoError(t, ShiftKey{WardID: "W1", Date: "2024-05-01", Shift: ShiftNight}.Validate())

	for _, k := range []ShiftKey{
		{WardID: "", Date: "2024-05-01", Shift: ShiftNight},
		{WardID: "W1", Date: "05/01/2024", Shift: ShiftNight},
		{WardID: "W1", Date: "2024-02-30", Shift: ShiftNight},
		{WardID: "W1", Date: "2024-05-01", Shift: "EVENING"},
	} {
		err := k.Validate()
		require.Error(t, err, k.String())
		assert.True(t, errors.Is(err, ErrValidation), k.String())
	}
}

func TestParseShiftKind(t *testing.T) {
	k, err := ParseShiftKind(" night ")
	require.NoError(t, err)
	assert.Equal(t, ShiftNight, k)

	_, err = ParseShiftKind("afternoon")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestMovements_TotalsAndValidate(t *testing.T) {
	m := Movements{NewAdmit: 2, TransferIn: 1, ReferIn: 1, TransferOut: 1, ReferOut: 0, Discharge: 3, Dead: 1}
	assert.Equal(t, 4, m.Admissions())
	assert.Equal(t, 5, m.Departures())
	assert.Equal(t, -1, m.Net())
	assert.NoError(t, m.Validate())

	m.Dead = -1
	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), FieldDead)

	assert.Error(t, Staffing{RN: -2}.Validate())
	assert.Equal(t, 7, Staffing{Manager: 1, RN: 3, PN: 2, Aide: 1}.Total())
}

func TestShiftRecord_FieldAccess(t *testing.T) {
	r := &ShiftRecord{}
	for i, name := range EditableFields() {
		require.True(t, r.SetField(name, i+1), name)
		v, ok := r.FieldValue(name)
		require.True(t, ok)
		assert.Equal(t, i+1, v)
	}
	assert.False(t, r.SetField(FieldPatientCensus, 10))
	_, ok := r.FieldValue("unknown")
	assert.False(t, ok)

	assert.True(t, IsMovementField(FieldDischarge))
	assert.False(t, IsMovementField(FieldRN))
}

func TestShiftRecord_CloneIsDeep(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	r := &ShiftRecord{
		ApprovedAt: &now,
		EditHistory: []AuditEntry{{
			EntryID:       "e1",
			ChangedFields: map[string]FieldDelta{FieldRN: {Previous: 1, New: 2}},
		}},
	}
	c := r.Clone()
	*c.ApprovedAt = now.Add(time.Hour)
	c.EditHistory[0].ChangedFields[FieldRN] = FieldDelta{Previous: 9, New: 9}
	c.EditHistory = append(c.EditHistory, AuditEntry{EntryID: "e2"})

	assert.Equal(t, now, *r.ApprovedAt)
	assert.Equal(t, FieldDelta{Previous: 1, New: 2}, r.EditHistory[0].ChangedFields[FieldRN])
	assert.Len(t, r.EditHistory, 1)
}

func TestBaselineRequired_IsValidationError(t *testing.T) {
	assert.True(t, errors.Is(ErrBaselineRequired, ErrValidation))
	assert.False(t, errors.Is(ErrValidation, ErrBaselineRequired))
}
