package repository

import (
	"context"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type CreateMaterialInput struct {
	TutorID     int64
	StudentID   int64
	SessionID   int64
	Title       string
	Description *string
	FileURL     string
}

type MaterialRepository struct {
	db DBTX
}

func NewMaterialRepository(db DBTX) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func scanMaterial(row interface{ Scan(dest ...any) error }) (*models.LessonMaterial, error) {
	var material models.LessonMaterial
	err := row.Scan(
		&material.ID,
		&material.TutorID,
		&material.StudentID,
		&material.SessionID,
		&material.Title,
		&material.Description,
		&material.FileURL,
		&material.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *MaterialRepository) Create(
	ctx context.Context,
	input CreateMaterialInput,
) (*models.LessonMaterial, error) {
	query := `
		INSERT INTO materials (tutor_id, student_id, session_id, title, description, file_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tutor_id, student_id, session_id, title, description, file_url, created_at
	`
	return scanMaterial(r.db.QueryRow(
		ctx,
		query,
		input.TutorID,
		input.StudentID,
		input.SessionID,
		input.Title,
		input.Description,
		input.FileURL,
	))
}

func (r *MaterialRepository) GetByID(ctx context.Context, materialID int64) (*models.LessonMaterial, error) {
	query := `
		SELECT id, tutor_id, student_id, session_id, title, description, file_url, created_at
		FROM materials
		WHERE id = $1
	`
	return scanMaterial(r.db.QueryRow(ctx, query, materialID))
}

func (r *MaterialRepository) ListByTutorID(ctx context.Context, tutorID int64) ([]models.LessonMaterial, error) {
	return r.list(ctx, "tutor_id", tutorID)
}

func (r *MaterialRepository) ListByStudentID(ctx context.Context, studentID int64) ([]models.LessonMaterial, error) {
	return r.list(ctx, "student_id", studentID)
}

func (r *MaterialRepository) list(ctx context.Context, column string, actorID int64) ([]models.LessonMaterial, error) {
	query := `
		SELECT id, tutor_id, student_id, session_id, title, description, file_url, created_at
		FROM materials
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]models.LessonMaterial, 0)
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *material)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return materials, nil
}
