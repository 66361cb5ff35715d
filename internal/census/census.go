// Package census derives a shift's patient census from the census it starts
// from and the movements recorded during the shift. It has no side effects.
package census

import (
	"fmt"

	"wisefido-census/internal/domain"
)

// Propagate returns previous + admissions - departures.
// A negative result is a data-entry inconsistency and is reported as
// domain.ErrNegativeCensus rather than clamped.
func Propagate(previous int, m domain.Movements) (int, error) {
	if previous < 0 {
		return 0, fmt.Errorf("%w: previous census must be >= 0, got %d", domain.ErrValidation, previous)
	}
	if err := m.Validate(); err != nil {
		return 0, err
	}
	next := previous + m.Net()
	if next < 0 {
		return 0, fmt.Errorf("%w: %d + %d admissions - %d departures = %d",
			domain.ErrNegativeCensus, previous, m.Admissions(), m.Departures(), next)
	}
	return next, nil
}

// Start the census a shift starts from and where it came from.
type Start struct {
	Census int
	Source domain.CensusSource
}

// Resolve picks the starting census for a shift: the predecessor's census when
// the predecessor is APPROVED, otherwise the caller's explicit baseline.
// With neither, domain.ErrBaselineRequired; an implicit zero is never assumed.
func Resolve(predecessor *domain.ShiftRecord, baseline *int) (Start, error) {
	if predecessor != nil && predecessor.Status == domain.StatusApproved {
		return Start{Census: predecessor.PatientCensus, Source: domain.CensusFromPredecessor}, nil
	}
	if baseline == nil {
		return Start{}, domain.ErrBaselineRequired
	}
	if *baseline < 0 {
		return Start{}, fmt.Errorf("%w: baseline census must be >= 0, got %d", domain.ErrValidation, *baseline)
	}
	return Start{Census: *baseline, Source: domain.CensusFromBaseline}, nil
}
