package repository

import (
	"context"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type CreateReviewInput struct {
	SessionID int64
	TutorID   int64
	StudentID int64
	Rating    int
	Feedback  *string
}

type ReviewRepository struct {
	db DBTX
}

func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create is idempotent per session: a second review for the same session is
// ignored and the existing row returned.
func (r *ReviewRepository) Create(ctx context.Context, input CreateReviewInput) (*models.Review, error) {
	query := `
		INSERT INTO reviews (session_id, tutor_id, student_id, rating, feedback)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id)
		DO UPDATE SET session_id = reviews.session_id
		RETURNING id, session_id, tutor_id, student_id, rating, feedback, created_at
	`
	var review models.Review
	err := r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.TutorID,
		input.StudentID,
		input.Rating,
		input.Feedback,
	).Scan(
		&review.ID,
		&review.SessionID,
		&review.TutorID,
		&review.StudentID,
		&review.Rating,
		&review.Feedback,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) ListByTutorID(ctx context.Context, tutorID int64) ([]models.Review, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, tutor_id, student_id, rating, feedback, created_at
		FROM reviews
		WHERE tutor_id = $1
		ORDER BY created_at DESC, id DESC
	`, tutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]models.Review, 0)
	for rows.Next() {
		var review models.Review
		if err := rows.Scan(
			&review.ID,
			&review.SessionID,
			&review.TutorID,
			&review.StudentID,
			&review.Rating,
			&review.Feedback,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}

// RefreshTutorRating recomputes the denormalized average on the tutor profile.
func (r *ReviewRepository) RefreshTutorRating(ctx context.Context, tutorID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tutor_profiles
		SET rating = (
			SELECT ROUND(AVG(rating)::numeric, 2)
			FROM reviews
			WHERE tutor_id = $1
		),
		updated_at = NOW()
		WHERE user_id = $1
	`, tutorID)
	return err
}
