package census

import (
	"testing"

	"wisefido-census/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approved(date string, shift domain.ShiftKind, prev, patient int, src domain.CensusSource, m domain.Movements) *domain.ShiftRecord {
	return &domain.ShiftRecord{
		WardID: "W1", Date: date, Shift: shift,
		PreviousCensus: prev, PatientCensus: patient, CensusSource: src,
		Movements: m, Status: domain.StatusApproved,
	}
}

func TestCheckChain_Consistent(t *testing.T) {
	records := []*domain.ShiftRecord{
		approved("2024-05-02", domain.ShiftMorning, 28, 28, domain.CensusFromPredecessor, domain.Movements{}),
		approved("2024-05-01", domain.ShiftNight, 31, 28, domain.CensusFromPredecessor, domain.Movements{Discharge: 3}),
		approved("2024-05-01", domain.ShiftMorning, 30, 31, domain.CensusFromBaseline, domain.Movements{NewAdmit: 2, Discharge: 1}),
	}
	assert.Empty(t, CheckChain(records))
}

func TestCheckChain_Issues(t *testing.T) {
	records := []*domain.ShiftRecord{
		approved("2024-05-01", domain.ShiftMorning, 30, 31, domain.CensusFromBaseline, domain.Movements{NewAdmit: 2, Discharge: 1}),
		// predecessor census drifted after this record froze it
		approved("2024-05-01", domain.ShiftNight, 30, 27, domain.CensusFromPredecessor, domain.Movements{Discharge: 3}),
		// equation broken
		approved("2024-05-03", domain.ShiftNight, 10, 12, domain.CensusFromBaseline, domain.Movements{NewAdmit: 1}),
		// 2024-05-02 NIGHT absent
		approved("2024-05-03", domain.ShiftMorning, 27, 27, domain.CensusFromPredecessor, domain.Movements{}),
		// drafts are not checked
		{WardID: "W1", Date: "2024-05-04", Shift: domain.ShiftMorning, PatientCensus: 99, Status: domain.StatusDraft},
	}

	issues := CheckChain(records)
	require.Len(t, issues, 3)
	assert.Equal(t, IssuePredecessorMismatch, issues[0].Kind)
	assert.Equal(t, domain.ShiftNight, issues[0].Key.Shift)
	assert.Equal(t, IssuePredecessorMissing, issues[1].Kind)
	assert.Equal(t, "W1/2024-05-02/NIGHT", issues[1].Detail)
	assert.Equal(t, IssueEquation, issues[2].Kind)
	assert.Equal(t, "2024-05-03", issues[2].Key.Date)
}

func TestCheckChain_PredecessorBeforeRangeIsIgnored(t *testing.T) {
	records := []*domain.ShiftRecord{
		approved("2024-05-01", domain.ShiftMorning, 30, 30, domain.CensusFromPredecessor, domain.Movements{}),
	}
	assert.Empty(t, CheckChain(records))
}
