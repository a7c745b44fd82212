package models

import "testing"

func TestSessionStatusTransitions(t *testing.T) {
	tests := []struct {
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{SessionScheduled, SessionInProgress, true},
		{SessionScheduled, SessionCancelled, true},
		{SessionScheduled, SessionCompleted, false},
		{SessionInProgress, SessionCompleted, true},
		{SessionInProgress, SessionCancelled, true},
		{SessionInProgress, SessionScheduled, false},
		{SessionCompleted, SessionInProgress, false},
		{SessionCancelled, SessionScheduled, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	if SessionScheduled.Terminal() || SessionInProgress.Terminal() {
		t.Error("active statuses must not be terminal")
	}
	if !SessionCompleted.Terminal() || !SessionCancelled.Terminal() {
		t.Error("completed and cancelled are terminal")
	}
}

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingCompleted, BookingCancelled, false},
		{BookingCancelled, BookingPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentCompleted, PaymentPartiallyRefunded, true},
		{PaymentPartiallyRefunded, PaymentRefunded, true},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentRefunded, PaymentCompleted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestSessionParticipants(t *testing.T) {
	session := Session{TutorID: 1, StudentID: 2}

	if !session.IsParticipant(1) || !session.IsParticipant(2) {
		t.Error("both tutor and student are participants")
	}
	if session.IsParticipant(3) {
		t.Error("outsiders are not participants")
	}
	if session.OtherParticipant(1) != 2 || session.OtherParticipant(2) != 1 {
		t.Error("OtherParticipant must return the counterpart")
	}
}
