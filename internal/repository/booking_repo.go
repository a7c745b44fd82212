package repository

import (
	"context"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row interface{ Scan(dest ...any) error }) (*models.Booking, error) {
	var booking models.Booking
	err := row.Scan(
		&booking.ID,
		&booking.SessionID,
		&booking.StudentID,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) Create(
	ctx context.Context,
	sessionID int64,
	studentID int64,
) (*models.Booking, error) {
	query := `
		INSERT INTO bookings (session_id, student_id, status)
		VALUES ($1, $2, 'PENDING')
		RETURNING id, session_id, student_id, status, created_at, updated_at
	`
	return scanBooking(r.db.QueryRow(ctx, query, sessionID, studentID))
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := `
		SELECT id, session_id, student_id, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Booking, error) {
	query := `
		SELECT id, session_id, student_id, status, created_at, updated_at
		FROM bookings
		WHERE session_id = $1
	`
	return scanBooking(r.db.QueryRow(ctx, query, sessionID))
}

func (r *BookingRepository) ListBySessionIDs(
	ctx context.Context,
	sessionIDs []int64,
) (map[int64]models.Booking, error) {
	bookings := make(map[int64]models.Booking, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return bookings, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, student_id, status, created_at, updated_at
		FROM bookings
		WHERE session_id = ANY($1)
	`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings[booking.SessionID] = *booking
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

// Cancel moves any non-terminal booking to CANCELLED.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'CONFIRMED')
		RETURNING id, session_id, student_id, status, created_at, updated_at
	`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	bookingID int64,
	currentStatus models.BookingStatus,
	nextStatus models.BookingStatus,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, session_id, student_id, status, created_at, updated_at
	`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID, currentStatus, nextStatus))
}
