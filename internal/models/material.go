package models

import "time"

type LessonMaterial struct {
	ID          int64     `json:"id"`
	TutorID     int64     `json:"tutor_id"`
	StudentID   int64     `json:"student_id"`
	SessionID   int64     `json:"session_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	FileURL     string    `json:"file_url"`
	CreatedAt   time.Time `json:"created_at"`
}
