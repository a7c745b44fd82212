package models

import "time"

type Review struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	TutorID   int64     `json:"tutor_id"`
	StudentID int64     `json:"student_id"`
	Rating    int       `json:"rating"`
	Feedback  *string   `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
