package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

const (
	startEarlyWindow = 15 * time.Minute
	joinEarlyWindow  = 30 * time.Minute
	joinLateGrace    = 15 * time.Minute
	autoStartWindow  = 15 * time.Minute
)

type sessionStore interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	Start(ctx context.Context, sessionID int64) (*models.Session, error)
	Complete(ctx context.Context, sessionID int64, actualDurationMin int) (*models.Session, error)
	SetMeetingLink(ctx context.Context, sessionID int64, meetingLink string) (*models.Session, error)
}

type bookingStore interface {
	GetBySessionID(ctx context.Context, sessionID int64) (*models.Booking, error)
	ListBySessionIDs(ctx context.Context, sessionIDs []int64) (map[int64]models.Booking, error)
	UpdateStatusIfCurrent(ctx context.Context, bookingID int64, currentStatus, nextStatus models.BookingStatus) (*models.Booking, error)
}

type paymentSettler interface {
	GetByBookingID(ctx context.Context, bookingID int64) (*models.Payment, error)
	ListByBookingIDs(ctx context.Context, bookingIDs []int64) (map[int64]models.Payment, error)
	SettleAmount(ctx context.Context, paymentID int64, amount float64) (*models.Payment, error)
}

type reviewStore interface {
	Create(ctx context.Context, input repository.CreateReviewInput) (*models.Review, error)
	RefreshTutorRating(ctx context.Context, tutorID int64) error
}

type SessionService struct {
	sessions      sessionStore
	bookings      bookingStore
	payments      paymentSettler
	reviews       reviewStore
	notifications notifier
}

func NewSessionService(
	sessions sessionStore,
	bookings bookingStore,
	payments paymentSettler,
	reviews reviewStore,
	notifications notifier,
) *SessionService {
	return &SessionService{
		sessions:      sessions,
		bookings:      bookings,
		payments:      payments,
		reviews:       reviews,
		notifications: notifications,
	}
}

type EndSessionInput struct {
	Reason   *string
	Rating   *int
	Feedback *string
}

type JoinSessionResult struct {
	Session           models.Session `json:"session"`
	TutorID           int64          `json:"tutor_id"`
	StudentID         int64          `json:"student_id"`
	MinutesUntilStart int            `json:"minutes_until_start"`
	MinutesRemaining  int            `json:"minutes_remaining"`
}

func newMeetingLink() string {
	return fmt.Sprintf("https://meet.tutorapp.io/%s", uuid.NewString())
}

// Start moves a SCHEDULED session to IN_PROGRESS. Allowed from 15 minutes
// before the scheduled time onward; late starts are not bounded.
func (s *SessionService) Start(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionScheduled {
		return nil, ErrSessionNotScheduled
	}
	if time.Now().UTC().Before(session.ScheduledAt.Add(-startEarlyWindow)) {
		return nil, ErrStartWindow
	}

	if session.MeetingLink == nil {
		if session, err = s.sessions.SetMeetingLink(ctx, sessionID, newMeetingLink()); err != nil {
			return nil, err
		}
	}

	started, err := s.sessions.Start(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against a concurrent start.
			return nil, ErrSessionNotScheduled
		}
		return nil, err
	}

	s.notifications.Notify(
		ctx,
		started.OtherParticipant(actorID),
		models.NotificationSessionStarted,
		"Session started",
		"Your tutoring session has started. Join now.",
	)

	return s.buildDetail(ctx, started), nil
}

// Join validates the [-30m, scheduled end +15m] window, hands out the meeting
// link, and auto-starts a SCHEDULED session near its scheduled time.
func (s *SessionService) Join(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*JoinSessionResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	if session.Status.Terminal() {
		return nil, ErrSessionFinished
	}

	now := time.Now().UTC()
	if now.Before(session.ScheduledAt.Add(-joinEarlyWindow)) {
		return nil, ErrJoinWindowNotOpen
	}
	if now.After(session.ScheduledEnd().Add(joinLateGrace)) {
		return nil, ErrJoinWindowClosed
	}

	if session.MeetingLink == nil {
		if session, err = s.sessions.SetMeetingLink(ctx, sessionID, newMeetingLink()); err != nil {
			return nil, err
		}
	}

	sinceScheduled := now.Sub(session.ScheduledAt)
	if session.Status == models.SessionScheduled &&
		sinceScheduled >= -autoStartWindow && sinceScheduled <= autoStartWindow {
		started, err := s.sessions.Start(ctx, sessionID)
		switch {
		case err == nil:
			session = started
			s.notifications.Notify(
				ctx,
				session.OtherParticipant(actorID),
				models.NotificationSessionStarted,
				"Session started",
				"Your tutoring session has started. Join now.",
			)
		case errors.Is(err, pgx.ErrNoRows):
			// Someone else started it first; carry on with the join.
		default:
			return nil, err
		}
	}

	result := &JoinSessionResult{
		Session:   *session,
		TutorID:   session.TutorID,
		StudentID: session.StudentID,
	}
	if now.Before(session.ScheduledAt) {
		result.MinutesUntilStart = int(session.ScheduledAt.Sub(now).Minutes())
	}
	if session.Status == models.SessionInProgress && now.Before(session.ScheduledEnd()) {
		result.MinutesRemaining = int(session.ScheduledEnd().Sub(now).Minutes())
	}
	return result, nil
}

// Leave only notifies the counterpart; a departed tutor is logged, not
// terminated.
func (s *SessionService) Leave(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	reason *string,
) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsParticipant(actorID) {
		return ErrForbidden
	}
	if session.Status != models.SessionInProgress {
		return ErrSessionNotInProgress
	}

	message := "The other participant left the session."
	if reason != nil && *reason != "" {
		message = fmt.Sprintf("The other participant left the session: %s", *reason)
	}
	s.notifications.Notify(
		ctx,
		session.OtherParticipant(actorID),
		models.NotificationSessionLeft,
		"Participant left",
		message,
	)

	if actorID == session.TutorID {
		log.Printf("tutor %d left in-progress session %d", actorID, sessionID)
	}
	return nil
}

// End settles the session: the billed duration is clamped to the scheduled
// one, so the final cost never exceeds the booked price.
func (s *SessionService) End(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	input EndSessionInput,
) (*models.SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrSessionNotInProgress
	}
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return nil, ErrInvalidRating
	}

	now := time.Now().UTC()
	startedAt := session.ScheduledAt
	if session.StartedAt != nil {
		startedAt = *session.StartedAt
	}
	elapsedMin := int(now.Sub(startedAt).Minutes())
	if elapsedMin < 0 {
		elapsedMin = 0
	}
	actualDuration := elapsedMin
	if actualDuration > session.DurationMinutes {
		actualDuration = session.DurationMinutes
	}
	actualCost := roundToCents(session.Price * float64(actualDuration) / float64(session.DurationMinutes))

	completed, err := s.sessions.Complete(ctx, sessionID, actualDuration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotInProgress
		}
		return nil, err
	}

	booking, err := s.bookings.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if booking != nil {
		if _, err := s.bookings.UpdateStatusIfCurrent(
			ctx,
			booking.ID,
			models.BookingConfirmed,
			models.BookingCompleted,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		if actualCost != session.Price {
			payment, err := s.payments.GetByBookingID(ctx, booking.ID)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
			if payment != nil {
				if _, err := s.payments.SettleAmount(ctx, payment.ID, actualCost); err != nil &&
					!errors.Is(err, pgx.ErrNoRows) {
					return nil, err
				}
			}
		}
	}

	if input.Rating != nil && actorID == session.StudentID {
		if _, err := s.reviews.Create(ctx, repository.CreateReviewInput{
			SessionID: sessionID,
			TutorID:   session.TutorID,
			StudentID: session.StudentID,
			Rating:    *input.Rating,
			Feedback:  input.Feedback,
		}); err != nil {
			log.Printf("create review for session %d: %v", sessionID, err)
		} else if err := s.reviews.RefreshTutorRating(ctx, session.TutorID); err != nil {
			log.Printf("refresh rating for tutor %d: %v", session.TutorID, err)
		}
	}

	s.notifications.Notify(
		ctx,
		completed.OtherParticipant(actorID),
		models.NotificationSessionEnded,
		"Session ended",
		fmt.Sprintf("Your tutoring session ended after %d minutes.", actualDuration),
	)

	return s.buildDetail(ctx, completed), nil
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	return s.buildDetail(ctx, session), nil
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
	if err != nil {
		return nil, err
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	bookingsBySession, err := s.bookings.ListBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}

	bookingIDs := make([]int64, 0, len(bookingsBySession))
	for _, booking := range bookingsBySession {
		bookingIDs = append(bookingIDs, booking.ID)
	}
	paymentsByBooking, err := s.payments.ListByBookingIDs(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail := models.SessionDetail{Session: session}
		if booking, ok := bookingsBySession[session.ID]; ok {
			bookingCopy := booking
			detail.Booking = &bookingCopy
			if payment, ok := paymentsByBooking[booking.ID]; ok {
				paymentCopy := payment
				detail.Payment = &paymentCopy
			}
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *SessionService) buildDetail(ctx context.Context, session *models.Session) *models.SessionDetail {
	detail := &models.SessionDetail{Session: *session}

	booking, err := s.bookings.GetBySessionID(ctx, session.ID)
	if err != nil {
		return detail
	}
	detail.Booking = booking

	payment, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return detail
	}
	detail.Payment = payment
	return detail
}
