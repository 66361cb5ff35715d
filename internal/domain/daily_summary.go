package domain

import "time"

// SummaryStatus lifecycle of a DailySummary.
type SummaryStatus string

const (
	SummaryPendingAttestation SummaryStatus = "PENDING_ATTESTATION"
	SummaryAttested           SummaryStatus = "ATTESTED"
)

// Attestation supervisor sign-off on a daily summary. Write-once.
type Attestation struct {
	ActorID    string    `json:"actor_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	AttestedAt time.Time `json:"attested_at"`
}

// DailySummary per-ward day aggregate (table daily_summaries), derived only from
// an APPROVED morning and an APPROVED night record.
type DailySummary struct {
	SummaryID string `db:"summary_id" json:"summary_id"`
	WardID    string `db:"ward_id" json:"ward_id"`
	Date      string `db:"summary_date" json:"date"`

	// Source records and the versions the totals were derived from.
	MorningRecordID string `db:"morning_record_id" json:"morning_record_id"`
	MorningVersion  int64  `db:"morning_version" json:"morning_version"`
	NightRecordID   string `db:"night_record_id" json:"night_record_id"`
	NightVersion    int64  `db:"night_version" json:"night_version"`

	OpeningCensus   int       `db:"opening_census" json:"opening_census"`
	MorningCensus   int       `db:"morning_census" json:"morning_census"`
	ClosingCensus   int       `db:"closing_census" json:"closing_census"`
	Movements       Movements `db:"movements" json:"movements"` // both shifts, field-wise
	TotalAdmissions int       `db:"total_admissions" json:"total_admissions"`
	TotalDepartures int       `db:"total_departures" json:"total_departures"`
	TotalDischarges int       `db:"total_discharges" json:"total_discharges"`
	MorningStaffing Staffing  `db:"morning_staffing" json:"morning_staffing"`
	NightStaffing   Staffing  `db:"night_staffing" json:"night_staffing"`

	Status      SummaryStatus `db:"status" json:"status"`
	Attestation *Attestation  `db:"attestation" json:"attestation,omitempty"`

	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Attested reports whether the summary has been signed off.
func (s *DailySummary) Attested() bool {
	return s.Status == SummaryAttested && s.Attestation != nil
}

// SameDerivation reports whether o carries identical source references and totals.
// Identity, version and timestamps are ignored.
func (s *DailySummary) SameDerivation(o *DailySummary) bool {
	return s.WardID == o.WardID &&
		s.Date == o.Date &&
		s.MorningRecordID == o.MorningRecordID &&
		s.MorningVersion == o.MorningVersion &&
		s.NightRecordID == o.NightRecordID &&
		s.NightVersion == o.NightVersion &&
		s.OpeningCensus == o.OpeningCensus &&
		s.MorningCensus == o.MorningCensus &&
		s.ClosingCensus == o.ClosingCensus &&
		s.Movements == o.Movements &&
		s.MorningStaffing == o.MorningStaffing &&
		s.NightStaffing == o.NightStaffing
}

// Clone deep copy.
func (s *DailySummary) Clone() *DailySummary {
	if s == nil {
		return nil
	}
	c := *s
	if s.Attestation != nil {
		a := *s.Attestation
		c.Attestation = &a
	}
	return &c
}

// PendingWard a ward excluded from a rollup and why.
type PendingWard struct {
	WardID   string `json:"ward_id"`
	WardName string `json:"ward_name"`
	Reason   string `json:"reason"`
}

// DailyRollup cross-ward fold of per-ward summaries for one date. Derived, not persisted.
type DailyRollup struct {
	Date            string          `json:"date"`
	Wards           []*DailySummary `json:"wards"`
	PendingWards    []PendingWard   `json:"pending_wards"`
	OpeningCensus   int             `json:"opening_census"`
	ClosingCensus   int             `json:"closing_census"`
	Movements       Movements       `json:"movements"`
	TotalAdmissions int             `json:"total_admissions"`
	TotalDepartures int             `json:"total_departures"`
	TotalDischarges int             `json:"total_discharges"`
	AttestedWards   int             `json:"attested_wards"`
	GeneratedAt     time.Time       `json:"generated_at"` // build start
}
