package repository

import (
	"context"
	"fmt"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

const studentProfileColumns = `id, user_id, full_name, avatar_url, grade_level, subjects,
		max_hourly_rate, onboarding_complete, created_at, updated_at`

type StudentOnboardingInput struct {
	FullName      string
	GradeLevel    string
	Subjects      []string
	MaxHourlyRate *float64
}

type UpdateStudentProfileInput struct {
	FullName      *string
	GradeLevel    *string
	Subjects      *[]string
	MaxHourlyRate *float64
}

type StudentProfileRepository struct {
	db DBTX
}

func NewStudentProfileRepository(db DBTX) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

func scanStudentProfile(row interface{ Scan(dest ...any) error }) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.GradeLevel,
		&profile.Subjects,
		&profile.MaxHourlyRate,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *StudentProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO student_profiles (user_id) VALUES ($1)`, userID)
	return err
}

func (r *StudentProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1`, studentProfileColumns)
	return scanStudentProfile(r.db.QueryRow(ctx, query, userID))
}

func (r *StudentProfileRepository) UpdateOnboarding(
	ctx context.Context,
	userID int64,
	req StudentOnboardingInput,
) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`
		UPDATE student_profiles
		SET full_name = $1,
			grade_level = $2,
			subjects = $3,
			max_hourly_rate = $4,
			onboarding_complete = TRUE,
			updated_at = NOW()
		WHERE user_id = $5
		RETURNING %s
	`, studentProfileColumns)
	return scanStudentProfile(r.db.QueryRow(ctx, query,
		req.FullName,
		req.GradeLevel,
		req.Subjects,
		req.MaxHourlyRate,
		userID,
	))
}

func (r *StudentProfileRepository) UpdatePartial(
	ctx context.Context,
	userID int64,
	req UpdateStudentProfileInput,
) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`
		UPDATE student_profiles
		SET full_name = COALESCE($1, full_name),
			grade_level = COALESCE($2, grade_level),
			subjects = COALESCE($3, subjects),
			max_hourly_rate = COALESCE($4, max_hourly_rate),
			updated_at = NOW()
		WHERE user_id = $5
		RETURNING %s
	`, studentProfileColumns)
	return scanStudentProfile(r.db.QueryRow(ctx, query,
		req.FullName,
		req.GradeLevel,
		req.Subjects,
		req.MaxHourlyRate,
		userID,
	))
}

func (r *StudentProfileRepository) UpdateAvatar(
	ctx context.Context,
	userID int64,
	avatarURL string,
) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`
		UPDATE student_profiles
		SET avatar_url = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s
	`, studentProfileColumns)
	return scanStudentProfile(r.db.QueryRow(ctx, query, userID, avatarURL))
}
