package models

import "time"

const (
	NotificationSessionStarted  = "session_started"
	NotificationSessionEnded    = "session_ended"
	NotificationSessionLeft     = "session_left"
	NotificationPaymentReceived = "payment_received"
	NotificationPaymentFailed   = "payment_failed"
	NotificationPaymentRefunded = "payment_refunded"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
