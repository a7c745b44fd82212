package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type tutorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
}

type BookingService struct {
	db               *pgxpool.Pool
	userRepo         userReader
	tutorProfileRepo tutorProfileReader
}

func NewBookingService(
	db *pgxpool.Pool,
	userRepo userReader,
	tutorProfileRepo tutorProfileReader,
) *BookingService {
	return &BookingService{
		db:               db,
		userRepo:         userRepo,
		tutorProfileRepo: tutorProfileRepo,
	}
}

type BookSessionInput struct {
	TutorID         int64
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           *string
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// BookSession creates the session plus its PENDING booking. Payment happens
// separately through the payment-intent flow.
func (s *BookingService) BookSession(
	ctx context.Context,
	studentID int64,
	input BookSessionInput,
) (*models.SessionDetail, error) {
	if input.TutorID <= 0 || input.DurationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	if input.ScheduledAt.Before(time.Now().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}
	if studentID == input.TutorID {
		return nil, ErrInvalidInput
	}

	tutor, err := s.userRepo.GetByID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if tutor.Role != models.RoleTutor {
		return nil, ErrInvalidInput
	}

	profile, err := s.tutorProfileRepo.GetByUserID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if !profile.OnboardingComplete || profile.HourlyRate == nil || *profile.HourlyRate <= 0 {
		return nil, ErrInvalidInput
	}

	price := roundToCents(*profile.HourlyRate * float64(input.DurationMinutes) / 60)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txBookingRepo := repository.NewBookingRepository(tx)

	// Serializes bookings per tutor so overlap checks cannot race.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.TutorID); err != nil {
		return nil, err
	}

	hasConflict, err := txSessionRepo.HasConflict(
		ctx,
		input.TutorID,
		input.ScheduledAt.UTC(),
		input.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		return nil, ErrConflict
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		TutorID:         input.TutorID,
		StudentID:       studentID,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		Price:           price,
		Notes:           input.Notes,
	})
	if err != nil {
		return nil, err
	}

	booking, err := txBookingRepo.Create(ctx, session.ID, studentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.SessionDetail{
		Session: *session,
		Booking: booking,
	}, nil
}

func (s *BookingService) CheckAvailability(
	ctx context.Context,
	tutorID int64,
	requestedTime time.Time,
	durationMins int,
) (bool, error) {
	hasConflict, err := repository.NewSessionRepository(s.db).
		HasConflict(ctx, tutorID, requestedTime.UTC(), durationMins)
	if err != nil {
		return false, err
	}
	return !hasConflict, nil
}
