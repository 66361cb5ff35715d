package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-census/internal/domain"
)

func TestPrintShifts(t *testing.T) {
	var buf bytes.Buffer
	printShifts(&buf, []*domain.ShiftRecord{{
		Shift:          domain.ShiftMorning,
		Status:         domain.StatusApproved,
		PreviousCensus: 30,
		PatientCensus:  31,
		CensusSource:   domain.CensusFromBaseline,
		Movements:      domain.Movements{NewAdmit: 2, Discharge: 1},
		Staffing:       domain.Staffing{Manager: 1, RN: 3, PN: 2, Aide: 1},
		Version:        2,
	}})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "CENSUS")
	assert.Equal(t, []string{"MORNING", "APPROVED", "30", "31", "BASELINE", "2", "1", "7", "0", "2"},
		strings.Fields(string(lines[1])))
}

func TestChainCmd_RejectsBadRange(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"chain", "--ward", "W1", "--from", "2024-05-02", "--to", "2024-05-01"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before")
}

func TestShiftsCmd_RequiresFlags(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"shifts", "--ward", "W1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
