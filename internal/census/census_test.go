package census

import (
	"errors"
	"testing"

	"wisefido-census/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestPropagate(t *testing.T) {
	cases := []struct {
		name     string
		previous int
		m        domain.Movements
		want     int
	}{
		{"no movement keeps census", 30, domain.Movements{}, 30},
		{"morning scenario", 30, domain.Movements{NewAdmit: 2, Discharge: 1}, 31},
		{"night scenario", 31, domain.Movements{Discharge: 3}, 28},
		{"every field", 10, domain.Movements{NewAdmit: 1, TransferIn: 2, ReferIn: 3, TransferOut: 1, ReferOut: 1, Discharge: 2, Dead: 1}, 11},
		{"down to zero", 3, domain.Movements{Discharge: 2, Dead: 1}, 0},
		{"empty ward", 0, domain.Movements{}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Propagate(c.previous, c.m)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.previous+c.m.Admissions()-c.m.Departures(), got)
		})
	}
}

func TestPropagate_NegativeCensus(t *testing.T) {
	_, err := Propagate(2, domain.Movements{Discharge: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNegativeCensus))
}

func TestPropagate_RejectsNegativeInputs(t *testing.T) {
	_, err := Propagate(-1, domain.Movements{})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = Propagate(5, domain.Movements{TransferIn: -1})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestResolve(t *testing.T) {
	approved := &domain.ShiftRecord{Status: domain.StatusApproved, PatientCensus: 28}
	start, err := Resolve(approved, intPtr(99))
	require.NoError(t, err)
	assert.Equal(t, Start{Census: 28, Source: domain.CensusFromPredecessor}, start)

	final := &domain.ShiftRecord{Status: domain.StatusFinal, PatientCensus: 28}
	start, err = Resolve(final, intPtr(30))
	require.NoError(t, err)
	assert.Equal(t, Start{Census: 30, Source: domain.CensusFromBaseline}, start)

	start, err = Resolve(nil, intPtr(0))
	require.NoError(t, err)
	assert.Equal(t, 0, start.Census)

	_, err = Resolve(nil, nil)
	assert.True(t, errors.Is(err, domain.ErrBaselineRequired))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = Resolve(final, nil)
	assert.True(t, errors.Is(err, domain.ErrBaselineRequired))

	_, err = Resolve(nil, intPtr(-4))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
