package models

import "time"

type Session struct {
	ID                int64         `json:"id"`
	TutorID           int64         `json:"tutor_id"`
	StudentID         int64         `json:"student_id"`
	ScheduledAt       time.Time     `json:"scheduled_at"`
	DurationMinutes   int           `json:"duration_minutes"`
	Price             float64       `json:"price"`
	Status            SessionStatus `json:"status"`
	MeetingLink       *string       `json:"meeting_link,omitempty"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	ActualDurationMin *int          `json:"actual_duration_minutes,omitempty"`
	Notes             *string       `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ScheduledEnd is the scheduled finish time, not the actual one.
func (s *Session) ScheduledEnd() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *Session) IsParticipant(userID int64) bool {
	return s.TutorID == userID || s.StudentID == userID
}

// OtherParticipant returns the counterpart of userID in the session.
func (s *Session) OtherParticipant(userID int64) int64 {
	if userID == s.TutorID {
		return s.StudentID
	}
	return s.TutorID
}

type Booking struct {
	ID        int64         `json:"id"`
	SessionID int64         `json:"session_id"`
	StudentID int64         `json:"student_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Payment struct {
	ID            int64         `json:"id"`
	BookingID     int64         `json:"booking_id"`
	UserID        int64         `json:"user_id"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	TransactionID *string       `json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty"`
	RefundReason  *string       `json:"refund_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type SessionDetail struct {
	Session
	Booking *Booking `json:"booking,omitempty"`
	Payment *Payment `json:"payment,omitempty"`
}

type PaymentMethod struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	ProviderMethodID string    `json:"provider_method_id"`
	Brand            *string   `json:"brand,omitempty"`
	Last4            *string   `json:"last4,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
