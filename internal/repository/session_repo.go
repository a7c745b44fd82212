package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

const sessionColumns = `id, tutor_id, student_id, scheduled_at, duration_min, price, status,
		meeting_link, started_at, ended_at, actual_duration_min, notes, created_at, updated_at`

type CreateSessionInput struct {
	TutorID         int64
	StudentID       int64
	ScheduledAt     time.Time
	DurationMinutes int
	Price           float64
	Notes           *string
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.StudentID,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.Price,
		&session.Status,
		&session.MeetingLink,
		&session.StartedAt,
		&session.EndedAt,
		&session.ActualDurationMin,
		&session.Notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (tutor_id, student_id, scheduled_at, duration_min, price, status, notes)
		VALUES ($1, $2, $3, $4, $5, 'SCHEDULED', $6)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.TutorID,
		input.StudentID,
		input.ScheduledAt,
		input.DurationMinutes,
		input.Price,
		input.Notes,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "student_id"
	if filter.Role == models.RoleTutor {
		actorColumn = "tutor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// UpdateStatusIfCurrent is a compare-and-swap: it only applies when the row is
// still in currentStatus, so two racing transitions cannot both win.
func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// Start transitions SCHEDULED -> IN_PROGRESS and records the wall-clock start.
func (r *SessionRepository) Start(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'IN_PROGRESS', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'SCHEDULED'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// Complete transitions IN_PROGRESS -> COMPLETED with the measured duration.
func (r *SessionRepository) Complete(
	ctx context.Context,
	sessionID int64,
	actualDurationMin int,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'COMPLETED', ended_at = NOW(), actual_duration_min = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'IN_PROGRESS'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, actualDurationMin))
}

// Cancel moves a SCHEDULED or IN_PROGRESS session to CANCELLED.
func (r *SessionRepository) Cancel(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status IN ('SCHEDULED', 'IN_PROGRESS')
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) SetMeetingLink(
	ctx context.Context,
	sessionID int64,
	meetingLink string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET meeting_link = COALESCE(meeting_link, $2), updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, meetingLink))
}

func (r *SessionRepository) HasConflict(
	ctx context.Context,
	tutorID int64,
	requestedTime time.Time,
	durationMinutes int,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE tutor_id = $1
			  AND status NOT IN ('CANCELLED', 'COMPLETED')
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_min * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, tutorID, requestedTime, durationMinutes).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}
