package services

import "errors"

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrTutorNotFound = errors.New("tutor not found")

	// Invalid-state family: precondition on a status or timing window failed.
	ErrSessionNotScheduled  = errors.New("session is not in a scheduled state")
	ErrSessionNotInProgress = errors.New("session is not in progress")
	ErrSessionFinished      = errors.New("session has already finished")
	ErrStartWindow          = errors.New("session can only be started within 15 minutes of its scheduled time")
	ErrJoinWindowNotOpen    = errors.New("session can only be joined within 30 minutes of its scheduled start")
	ErrJoinWindowClosed     = errors.New("session join window has closed")
	ErrBookingNotPayable    = errors.New("booking is not awaiting payment")
	ErrPaymentNotRefundable = errors.New("payment cannot be refunded")
	ErrPastSessionRefund    = errors.New("past sessions cannot be refunded")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// IsInvalidState reports whether err belongs to the invalid-state family,
// which handlers surface as 400 with the sentinel's message.
func IsInvalidState(err error) bool {
	for _, candidate := range []error{
		ErrSessionNotScheduled,
		ErrSessionNotInProgress,
		ErrSessionFinished,
		ErrStartWindow,
		ErrJoinWindowNotOpen,
		ErrJoinWindowClosed,
		ErrBookingNotPayable,
		ErrPaymentNotRefundable,
		ErrPastSessionRefund,
		ErrInvalidRating,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
