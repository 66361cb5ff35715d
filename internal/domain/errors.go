package domain

import "errors"

// Error taxonomy for the census pipeline. Callers match with errors.Is; the
// wrapping message carries the ward/date/shift context.
var (
	// ErrValidation a required field is missing or a count is negative. Nothing is persisted.
	ErrValidation = errors.New("validation error")

	// ErrBaselineRequired no approved predecessor census exists and no explicit baseline was supplied.
	ErrBaselineRequired error = &wrapped{msg: "baseline census required", parent: ErrValidation}

	// ErrSequenceViolation NIGHT submitted before MORNING of the same ward/date was approved,
	// or a movement edit would desynchronise an already finalized successor shift.
	ErrSequenceViolation = errors.New("sequence violation")

	// ErrInvalidTransition the record status does not permit the requested transition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNegativeCensus the derived census would be negative; movement counts need correction.
	ErrNegativeCensus = errors.New("negative census")

	// ErrVersionConflict the record changed since it was read. The only retry-safe error:
	// re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrIncomplete the daily summary was requested before both shifts were approved.
	ErrIncomplete = errors.New("incomplete")

	// ErrAlreadyAttested the daily summary carries an attestation already.
	ErrAlreadyAttested = errors.New("already attested")

	// ErrNotFound no record under the requested key.
	ErrNotFound = errors.New("not found")
)

// wrapped is a sentinel that also matches its parent under errors.Is.
type wrapped struct {
	msg    string
	parent error
}

func (e *wrapped) Error() string { return e.msg }
func (e *wrapped) Unwrap() error { return e.parent }
