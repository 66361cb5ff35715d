package census

import (
	"fmt"
	"sort"

	"wisefido-census/internal/domain"
)

// Issue kinds reported by CheckChain.
const (
	IssueEquation            = "equation"
	IssuePredecessorMissing  = "predecessor_missing"
	IssuePredecessorMismatch = "predecessor_mismatch"
)

// Issue one inconsistency in a ward's census chain.
type Issue struct {
	Key    domain.ShiftKey `json:"key"`
	Kind   string          `json:"kind"`
	Detail string          `json:"detail"`
}

// CheckChain verifies the frozen census of every FINAL or APPROVED record:
// the census equation must hold and a record that took its census from its
// predecessor must still agree with it. Predecessors outside records are
// reported only when they fall inside the covered date range.
func CheckChain(records []*domain.ShiftRecord) []Issue {
	byKey := make(map[domain.ShiftKey]*domain.ShiftRecord, len(records))
	var first string
	for _, r := range records {
		byKey[r.Key()] = r
		if first == "" || r.Date < first {
			first = r.Date
		}
	}

	ordered := make([]*domain.ShiftRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].WardID != ordered[j].WardID {
			return ordered[i].WardID < ordered[j].WardID
		}
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date < ordered[j].Date
		}
		return ordered[i].Shift == domain.ShiftMorning && ordered[j].Shift == domain.ShiftNight
	})

	var issues []Issue
	for _, r := range ordered {
		if r.Status != domain.StatusFinal && r.Status != domain.StatusApproved {
			continue
		}
		if want, err := Propagate(r.PreviousCensus, r.Movements); err != nil || want != r.PatientCensus {
			issues = append(issues, Issue{
				Key:    r.Key(),
				Kind:   IssueEquation,
				Detail: fmt.Sprintf("patient_census %d, previous %d with net %d", r.PatientCensus, r.PreviousCensus, r.Movements.Net()),
			})
		}
		if r.CensusSource != domain.CensusFromPredecessor {
			continue
		}
		prevKey, err := r.Key().PredecessorKey()
		if err != nil {
			continue
		}
		prev, ok := byKey[prevKey]
		switch {
		case !ok && prevKey.Date >= first:
			issues = append(issues, Issue{Key: r.Key(), Kind: IssuePredecessorMissing, Detail: prevKey.String()})
		case ok && prev.PatientCensus != r.PreviousCensus:
			issues = append(issues, Issue{
				Key:    r.Key(),
				Kind:   IssuePredecessorMismatch,
				Detail: fmt.Sprintf("previous_census %d, %s patient_census %d", r.PreviousCensus, prevKey, prev.PatientCensus),
			})
		}
	}
	return issues
}
