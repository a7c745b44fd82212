package models

import "time"

type TutorProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	FullName           *string   `json:"full_name"`
	AvatarURL          *string   `json:"avatar_url"`
	Bio                *string   `json:"bio"`
	Subjects           *[]string `json:"subjects"`
	Qualifications     *[]string `json:"qualifications"`
	ExperienceYears    *int      `json:"experience_years"`
	HourlyRate         *float64  `json:"hourly_rate"`
	Rating             *float64  `json:"rating"`
	TotalStudents      *int      `json:"total_students"`
	IsVerified         *bool     `json:"is_verified"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TutorWithScore struct {
	TutorProfile
	MatchScore int `json:"match_score"`
}

type TutorListResponse struct {
	ID              string   `json:"id"`
	FullName        string   `json:"full_name"`
	AvatarURL       string   `json:"avatar_url"`
	Subjects        []string `json:"subjects"`
	ExperienceYears int      `json:"experience_years"`
	HourlyRate      float64  `json:"hourly_rate"`
	Rating          float64  `json:"rating"`
	TotalStudents   int      `json:"total_students"`
	IsVerified      bool     `json:"is_verified"`
	MatchScore      int      `json:"match_score,omitempty"`
}

type TutorDetailResponse struct {
	TutorListResponse
	Bio                string   `json:"bio"`
	Qualifications     []string `json:"qualifications"`
	OnboardingComplete bool     `json:"onboarding_complete"`
	Reviews            []Review `json:"reviews"`
}
