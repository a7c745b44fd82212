package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

const tutorProfileColumns = `id, user_id, full_name, avatar_url, bio, subjects, qualifications,
		experience_years, hourly_rate, rating, total_students, is_verified,
		onboarding_complete, created_at, updated_at`

type TutorOnboardingInput struct {
	FullName        string
	Bio             string
	Subjects        []string
	Qualifications  []string
	ExperienceYears int
	HourlyRate      float64
}

type UpdateTutorProfileInput struct {
	FullName        *string
	Bio             *string
	Subjects        *[]string
	Qualifications  *[]string
	ExperienceYears *int
	HourlyRate      *float64
}

type TutorListFilter struct {
	Subject      string
	MaxRate      float64
	VerifiedOnly bool
}

type TutorProfileRepository struct {
	db DBTX
}

func NewTutorProfileRepository(db DBTX) *TutorProfileRepository {
	return &TutorProfileRepository{db: db}
}

func scanTutorProfile(row interface{ Scan(dest ...any) error }) (*models.TutorProfile, error) {
	var profile models.TutorProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.Subjects,
		&profile.Qualifications,
		&profile.ExperienceYears,
		&profile.HourlyRate,
		&profile.Rating,
		&profile.TotalStudents,
		&profile.IsVerified,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *TutorProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO tutor_profiles (user_id) VALUES ($1)`, userID)
	return err
}

func (r *TutorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutor_profiles WHERE user_id = $1`, tutorProfileColumns)
	return scanTutorProfile(r.db.QueryRow(ctx, query, userID))
}

func (r *TutorProfileRepository) UpdateOnboarding(
	ctx context.Context,
	userID int64,
	req TutorOnboardingInput,
) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`
		UPDATE tutor_profiles
		SET full_name = $1,
			bio = $2,
			subjects = $3,
			qualifications = $4,
			experience_years = $5,
			hourly_rate = $6,
			onboarding_complete = TRUE,
			updated_at = NOW()
		WHERE user_id = $7
		RETURNING %s
	`, tutorProfileColumns)
	return scanTutorProfile(r.db.QueryRow(ctx, query,
		req.FullName,
		req.Bio,
		req.Subjects,
		req.Qualifications,
		req.ExperienceYears,
		req.HourlyRate,
		userID,
	))
}

func (r *TutorProfileRepository) UpdatePartial(
	ctx context.Context,
	userID int64,
	req UpdateTutorProfileInput,
) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`
		UPDATE tutor_profiles
		SET full_name = COALESCE($1, full_name),
			bio = COALESCE($2, bio),
			subjects = COALESCE($3, subjects),
			qualifications = COALESCE($4, qualifications),
			experience_years = COALESCE($5, experience_years),
			hourly_rate = COALESCE($6, hourly_rate),
			updated_at = NOW()
		WHERE user_id = $7
		RETURNING %s
	`, tutorProfileColumns)
	return scanTutorProfile(r.db.QueryRow(ctx, query,
		req.FullName,
		req.Bio,
		req.Subjects,
		req.Qualifications,
		req.ExperienceYears,
		req.HourlyRate,
		userID,
	))
}

func (r *TutorProfileRepository) ListAll(ctx context.Context) ([]models.TutorProfile, error) {
	return r.List(ctx, TutorListFilter{})
}

func (r *TutorProfileRepository) List(
	ctx context.Context,
	filter TutorListFilter,
) ([]models.TutorProfile, error) {
	args := []any{}
	whereParts := []string{"onboarding_complete = TRUE"}

	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		args = append(args, subject)
		whereParts = append(whereParts, fmt.Sprintf("$%d = ANY(subjects)", len(args)))
	}
	if filter.MaxRate > 0 {
		args = append(args, filter.MaxRate)
		whereParts = append(whereParts, fmt.Sprintf("hourly_rate <= $%d", len(args)))
	}
	if filter.VerifiedOnly {
		whereParts = append(whereParts, "is_verified = TRUE")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tutor_profiles
		WHERE %s
		ORDER BY rating DESC NULLS LAST, id ASC
	`, tutorProfileColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]models.TutorProfile, 0)
	for rows.Next() {
		profile, err := scanTutorProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *TutorProfileRepository) UpdateAvatar(
	ctx context.Context,
	userID int64,
	avatarURL string,
) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`
		UPDATE tutor_profiles
		SET avatar_url = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s
	`, tutorProfileColumns)
	return scanTutorProfile(r.db.QueryRow(ctx, query, userID, avatarURL))
}

func (r *TutorProfileRepository) IncrementTotalStudents(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tutor_profiles
		SET total_students = COALESCE(total_students, 0) + 1, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}
