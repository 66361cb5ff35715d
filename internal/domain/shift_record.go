package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout calendar date format used for every date string in the pipeline.
const DateLayout = "2006-01-02"

// ShiftKind one of the two daily recording windows.
type ShiftKind string

const (
	ShiftMorning ShiftKind = "MORNING"
	ShiftNight   ShiftKind = "NIGHT"
)

// Valid reports whether k is MORNING or NIGHT.
func (k ShiftKind) Valid() bool {
	return k == ShiftMorning || k == ShiftNight
}

// ParseShiftKind accepts the canonical names case-insensitively.
func ParseShiftKind(s string) (ShiftKind, error) {
	k := ShiftKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: invalid shift %q (must be MORNING or NIGHT)", ErrValidation, s)
	}
	return k, nil
}

// CensusSource where a record's previous census came from.
type CensusSource string

const (
	CensusFromPredecessor CensusSource = "PREDECESSOR"
	CensusFromBaseline    CensusSource = "BASELINE"
)

// ShiftKey identifies one shift record: (ward, date, shift).
type ShiftKey struct {
	WardID string    `json:"ward_id"`
	Date   string    `json:"date"`
	Shift  ShiftKind `json:"shift"`
}

func (k ShiftKey) String() string {
	return k.WardID + "/" + k.Date + "/" + string(k.Shift)
}

// Validate checks every component of the key.
func (k ShiftKey) Validate() error {
	if strings.TrimSpace(k.WardID) == "" {
		return fmt.Errorf("%w: ward_id is required", ErrValidation)
	}
	if _, err := ParseDate(k.Date); err != nil {
		return err
	}
	if !k.Shift.Valid() {
		return fmt.Errorf("%w: invalid shift %q (must be MORNING or NIGHT)", ErrValidation, k.Shift)
	}
	return nil
}

// PredecessorKey the shift whose approved census feeds this one:
// NIGHT <- MORNING of the same date, MORNING <- NIGHT of the prior date.
func (k ShiftKey) PredecessorKey() (ShiftKey, error) {
	if k.Shift == ShiftNight {
		return ShiftKey{WardID: k.WardID, Date: k.Date, Shift: ShiftMorning}, nil
	}
	prev, err := AddDays(k.Date, -1)
	if err != nil {
		return ShiftKey{}, err
	}
	return ShiftKey{WardID: k.WardID, Date: prev, Shift: ShiftNight}, nil
}

// SuccessorKey the shift whose census is derived from this one.
func (k ShiftKey) SuccessorKey() (ShiftKey, error) {
	if k.Shift == ShiftMorning {
		return ShiftKey{WardID: k.WardID, Date: k.Date, Shift: ShiftNight}, nil
	}
	next, err := AddDays(k.Date, 1)
	if err != nil {
		return ShiftKey{}, err
	}
	return ShiftKey{WardID: k.WardID, Date: next, Shift: ShiftMorning}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (expected YYYY-MM-DD)", ErrValidation, date)
	}
	return t, nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// Movements admission and departure counts recorded during a shift.
type Movements struct {
	NewAdmit    int `json:"new_admit"`
	TransferIn  int `json:"transfer_in"`
	ReferIn     int `json:"refer_in"`
	TransferOut int `json:"transfer_out"`
	ReferOut    int `json:"refer_out"`
	Discharge   int `json:"discharge"`
	Dead        int `json:"dead"`
}

// Admissions patients entering the ward.
func (m Movements) Admissions() int {
	return m.NewAdmit + m.TransferIn + m.ReferIn
}

// Departures patients leaving the ward, deaths included.
func (m Movements) Departures() int {
	return m.TransferOut + m.ReferOut + m.Discharge + m.Dead
}

// Net admissions minus departures.
func (m Movements) Net() int {
	return m.Admissions() - m.Departures()
}

// Add field-wise sum.
func (m Movements) Add(o Movements) Movements {
	return Movements{
		NewAdmit:    m.NewAdmit + o.NewAdmit,
		TransferIn:  m.TransferIn + o.TransferIn,
		ReferIn:     m.ReferIn + o.ReferIn,
		TransferOut: m.TransferOut + o.TransferOut,
		ReferOut:    m.ReferOut + o.ReferOut,
		Discharge:   m.Discharge + o.Discharge,
		Dead:        m.Dead + o.Dead,
	}
}

// Validate rejects negative counts.
func (m Movements) Validate() error {
	return nonNegative(map[string]int{
		FieldNewAdmit:    m.NewAdmit,
		FieldTransferIn:  m.TransferIn,
		FieldReferIn:     m.ReferIn,
		FieldTransferOut: m.TransferOut,
		FieldReferOut:    m.ReferOut,
		FieldDischarge:   m.Discharge,
		FieldDead:        m.Dead,
	})
}

// Staffing head counts per role on shift.
type Staffing struct {
	Manager int `json:"manager"`
	RN      int `json:"rn"`
	PN      int `json:"pn"`
	Aide    int `json:"aide"`
}

// Total all roles.
func (s Staffing) Total() int {
	return s.Manager + s.RN + s.PN + s.Aide
}

// Validate rejects negative counts.
func (s Staffing) Validate() error {
	return nonNegative(map[string]int{
		FieldManager: s.Manager,
		FieldRN:      s.RN,
		FieldPN:      s.PN,
		FieldAide:    s.Aide,
	})
}

func nonNegative(fields map[string]int) error {
	for _, name := range editableFields {
		if v, ok := fields[name]; ok && v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrValidation, name, v)
		}
	}
	return nil
}

// Field names accepted by approved-record edits and recorded in audit entries.
const (
	FieldNewAdmit      = "new_admit"
	FieldTransferIn    = "transfer_in"
	FieldReferIn       = "refer_in"
	FieldTransferOut   = "transfer_out"
	FieldReferOut      = "refer_out"
	FieldDischarge     = "discharge"
	FieldDead          = "dead"
	FieldManager       = "manager"
	FieldRN            = "rn"
	FieldPN            = "pn"
	FieldAide          = "aide"
	FieldPatientCensus = "patient_census"
)

// editableFields in canonical order; movement fields first.
var editableFields = []string{
	FieldNewAdmit, FieldTransferIn, FieldReferIn,
	FieldTransferOut, FieldReferOut, FieldDischarge, FieldDead,
	FieldManager, FieldRN, FieldPN, FieldAide,
}

// EditableFields returns the field names an approved-record edit may change, in canonical order.
func EditableFields() []string {
	out := make([]string, len(editableFields))
	copy(out, editableFields)
	return out
}

// IsMovementField reports whether name feeds the census derivation.
func IsMovementField(name string) bool {
	switch name {
	case FieldNewAdmit, FieldTransferIn, FieldReferIn, FieldTransferOut, FieldReferOut, FieldDischarge, FieldDead:
		return true
	}
	return false
}

// FieldDelta previous and new value of one changed field.
type FieldDelta struct {
	Previous int `json:"previous_value"`
	New      int `json:"new_value"`
}

// AuditEntry immutable record of one edit applied after approval.
type AuditEntry struct {
	EntryID       string                `json:"entry_id"`
	Timestamp     time.Time             `json:"timestamp"`
	ActorID       string                `json:"actor_id"`
	ChangedFields map[string]FieldDelta `json:"changed_fields"`
}

// ShiftRecord one ward's census and staffing for one shift (table shift_records).
type ShiftRecord struct {
	RecordID string    `db:"record_id" json:"record_id"`
	WardID   string    `db:"ward_id" json:"ward_id"`
	Date     string    `db:"shift_date" json:"date"`
	Shift    ShiftKind `db:"shift" json:"shift"`

	// Census derivation, frozen at submit.
	PatientCensus  int          `db:"patient_census" json:"patient_census"`
	PreviousCensus int          `db:"previous_census" json:"previous_census"`
	CensusSource   CensusSource `db:"census_source" json:"census_source,omitempty"`

	Movements Movements `db:"movements" json:"movements"` // JSONB
	Staffing  Staffing  `db:"staffing" json:"staffing"`   // JSONB
	Notes     string    `db:"notes" json:"notes,omitempty"`

	Status          ShiftStatus `db:"status" json:"status"`
	RecordedBy      string      `db:"recorded_by" json:"recorded_by"`
	ApprovedBy      string      `db:"approved_by" json:"approved_by,omitempty"`
	RejectedBy      string      `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectionReason string      `db:"rejection_reason" json:"rejection_reason,omitempty"`

	EditHistory []AuditEntry `db:"edit_history" json:"edit_history"` // JSONB, append-only

	// Version optimistic concurrency token, incremented by every successful write.
	Version int64 `db:"version" json:"version"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	FinalizedAt *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt  *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
}

// Key the record's (ward, date, shift) identity.
func (r *ShiftRecord) Key() ShiftKey {
	return ShiftKey{WardID: r.WardID, Date: r.Date, Shift: r.Shift}
}

// FieldValue reads an editable field by name.
func (r *ShiftRecord) FieldValue(name string) (int, bool) {
	p := r.fieldPtr(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetField writes an editable field by name.
func (r *ShiftRecord) SetField(name string, v int) bool {
	p := r.fieldPtr(name)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (r *ShiftRecord) fieldPtr(name string) *int {
	switch name {
	case FieldNewAdmit:
		return &r.Movements.NewAdmit
	case FieldTransferIn:
		return &r.Movements.TransferIn
	case FieldReferIn:
		return &r.Movements.ReferIn
	case FieldTransferOut:
		return &r.Movements.TransferOut
	case FieldReferOut:
		return &r.Movements.ReferOut
	case FieldDischarge:
		return &r.Movements.Discharge
	case FieldDead:
		return &r.Movements.Dead
	case FieldManager:
		return &r.Staffing.Manager
	case FieldRN:
		return &r.Staffing.RN
	case FieldPN:
		return &r.Staffing.PN
	case FieldAide:
		return &r.Staffing.Aide
	}
	return nil
}

// Clone deep-copies the record so a transition can be prepared without touching
// the caller's (or the store's) copy.
func (r *ShiftRecord) Clone() *ShiftRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.FinalizedAt = cloneTime(r.FinalizedAt)
	c.ApprovedAt = cloneTime(r.ApprovedAt)
	c.RejectedAt = cloneTime(r.RejectedAt)
	if r.EditHistory != nil {
		c.EditHistory = make([]AuditEntry, len(r.EditHistory))
		for i, e := range r.EditHistory {
			c.EditHistory[i] = e.clone()
		}
	}
	return &c
}

func (e AuditEntry) clone() AuditEntry {
	c := e
	if e.ChangedFields != nil {
		c.ChangedFields = make(map[string]FieldDelta, len(e.ChangedFields))
		for k, v := range e.ChangedFields {
			c.ChangedFields[k] = v
		}
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
