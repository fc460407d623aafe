package generator

// Outcome is the state of one title as it moves through a run.
//
//	PENDING -> SKIPPED
//	PENDING -> CALLING -> REJECTED_MALFORMED
//	                   -> VALIDATING -> REJECTED_INVALID
//	                                 -> ACCEPTED -> WRITTEN
//
// A title that is retried goes back to CALLING. BACKEND_FAILED and
// WRITE_FAILED record why the last attempt of a title ended without a page.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSkipped
	OutcomeCalling
	OutcomeBackendFailed
	OutcomeRejectedMalformed
	OutcomeValidating
	OutcomeRejectedInvalid
	OutcomeAccepted
	OutcomeWritten
	OutcomeWriteFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeCalling:
		return "CALLING"
	case OutcomeBackendFailed:
		return "BACKEND_FAILED"
	case OutcomeRejectedMalformed:
		return "REJECTED_MALFORMED"
	case OutcomeValidating:
		return "VALIDATING"
	case OutcomeRejectedInvalid:
		return "REJECTED_INVALID"
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeWritten:
		return "WRITTEN"
	case OutcomeWriteFailed:
		return "WRITE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can follow o.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSkipped, OutcomeBackendFailed, OutcomeRejectedMalformed,
		OutcomeRejectedInvalid, OutcomeWritten, OutcomeWriteFailed:
		return true
	}
	return false
}
