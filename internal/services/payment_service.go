package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/payments"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

type paymentStore interface {
	Upsert(ctx context.Context, input repository.UpsertPaymentInput) (*models.Payment, error)
	GetByID(ctx context.Context, paymentID int64) (*models.Payment, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.Payment, error)
	MarkCompleted(ctx context.Context, paymentID int64) (*models.Payment, error)
	MarkFailed(ctx context.Context, paymentID int64) (*models.Payment, error)
	MarkRefunded(ctx context.Context, paymentID int64, nextStatus models.PaymentStatus, reason string) (*models.Payment, error)
}

type bookingReader interface {
	GetByID(ctx context.Context, bookingID int64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID int64) (*models.Booking, error)
	UpdateStatusIfCurrent(ctx context.Context, bookingID int64, currentStatus, nextStatus models.BookingStatus) (*models.Booking, error)
}

type sessionCanceller interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	Cancel(ctx context.Context, sessionID int64) (*models.Session, error)
}

type webhookEventStore interface {
	MarkProcessed(ctx context.Context, eventID, kind string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type paymentMethodStore interface {
	Create(ctx context.Context, userID int64, providerMethodID string, brand, last4 *string) (*models.PaymentMethod, error)
	GetByID(ctx context.Context, methodID int64, userID int64) (*models.PaymentMethod, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.PaymentMethod, error)
}

type tutorStatsUpdater interface {
	IncrementTotalStudents(ctx context.Context, userID int64) error
}

type PaymentService struct {
	gateway       payments.Gateway
	payments      paymentStore
	bookings      bookingReader
	sessions      sessionCanceller
	webhookEvents webhookEventStore
	methods       paymentMethodStore
	tutorStats    tutorStatsUpdater
	notifications notifier
}

func NewPaymentService(
	gateway payments.Gateway,
	paymentRepo paymentStore,
	bookings bookingReader,
	sessions sessionCanceller,
	webhookEvents webhookEventStore,
	methods paymentMethodStore,
	tutorStats tutorStatsUpdater,
	notifications notifier,
) *PaymentService {
	return &PaymentService{
		gateway:       gateway,
		payments:      paymentRepo,
		bookings:      bookings,
		sessions:      sessions,
		webhookEvents: webhookEvents,
		methods:       methods,
		tutorStats:    tutorStats,
		notifications: notifications,
	}
}

type CreateIntentResult struct {
	PaymentID    int64   `json:"payment_id"`
	ClientSecret string  `json:"client_secret"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
}

type RefundInput struct {
	PaymentID int64
	Amount    *float64
	Reason    string
}

// CreatePaymentIntent creates (or refreshes) the processor intent for a
// pending booking. Retrying reuses the existing intent when it still matches.
func (s *PaymentService) CreatePaymentIntent(
	ctx context.Context,
	actorID int64,
	bookingID int64,
	methodID *int64,
) (*CreateIntentResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != actorID {
		return nil, ErrForbidden
	}
	if booking.Status != models.BookingPending {
		return nil, ErrBookingNotPayable
	}

	session, err := s.sessions.GetByID(ctx, booking.SessionID)
	if err != nil {
		return nil, err
	}

	var providerMethodID *string
	if methodID != nil {
		method, err := s.methods.GetByID(ctx, *methodID, actorID)
		if err != nil {
			return nil, err
		}
		providerMethodID = &method.ProviderMethodID
	}

	amountCents := payments.Cents(session.Price)
	currency := "usd"

	existing, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.Status == models.PaymentPending && existing.TransactionID != nil {
		intent, err := s.gateway.GetIntent(ctx, *existing.TransactionID)
		if err == nil && intent.AmountCents == amountCents {
			return &CreateIntentResult{
				PaymentID:    existing.ID,
				ClientSecret: intent.ClientSecret,
				Amount:       session.Price,
				Currency:     currency,
			}, nil
		}
	}

	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentInput{
		AmountCents:     amountCents,
		Currency:        currency,
		PaymentMethodID: providerMethodID,
		BookingID:       bookingID,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.Upsert(ctx, repository.UpsertPaymentInput{
		BookingID:     bookingID,
		UserID:        actorID,
		Amount:        session.Price,
		Currency:      currency,
		TransactionID: intent.ID,
	})
	if err != nil {
		return nil, err
	}

	return &CreateIntentResult{
		PaymentID:    payment.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
	}, nil
}

// HandleWebhook reconciles a verified processor event against stored state.
// Replays and events for unknown intents are acknowledged without changes.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if event.Kind == payments.EventIgnored {
		return nil
	}

	first, err := s.webhookEvents.MarkProcessed(ctx, event.ID, string(event.Kind))
	if err != nil {
		return err
	}
	if !first {
		log.Printf("webhook event %s already processed", event.ID)
		return nil
	}

	if err := s.applyEvent(ctx, event); err != nil {
		// Release the marker so the processor's retry is applied, not
		// skipped; otherwise a transient failure here would strand the
		// payment short of its terminal state.
		if forgetErr := s.webhookEvents.Forget(ctx, event.ID); forgetErr != nil {
			log.Printf("release webhook event %s after failure: %v", event.ID, forgetErr)
		}
		return err
	}
	return nil
}

func (s *PaymentService) applyEvent(ctx context.Context, event *payments.Event) error {
	payment, err := s.payments.GetByTransactionID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("webhook event %s references unknown intent %s", event.ID, event.IntentID)
			return nil
		}
		return err
	}

	switch event.Kind {
	case payments.EventPaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, payment)
	case payments.EventPaymentFailed:
		return s.applyPaymentFailed(ctx, payment, event.Reason)
	case payments.EventRefund:
		return s.applyRefundEvent(ctx, payment, event.Reason)
	}
	return nil
}

func (s *PaymentService) applyPaymentSucceeded(ctx context.Context, payment *models.Payment) error {
	updated, err := s.payments.MarkCompleted(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already settled by an earlier delivery.
			return nil
		}
		return err
	}

	booking, err := s.bookings.UpdateStatusIfCurrent(
		ctx,
		payment.BookingID,
		models.BookingPending,
		models.BookingConfirmed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	session, err := s.sessions.GetByID(ctx, booking.SessionID)
	if err != nil {
		log.Printf("load session %d after payment %d: %v", booking.SessionID, updated.ID, err)
		return nil
	}

	// The CAS above fired exactly once per booking, so the tutor's student
	// counter moves with it. Losing the counter is not worth failing the
	// settlement.
	if err := s.tutorStats.IncrementTotalStudents(ctx, session.TutorID); err != nil {
		log.Printf("increment student count for tutor %d: %v", session.TutorID, err)
	}

	message := fmt.Sprintf("Payment of %.2f %s received. Your session is confirmed.",
		updated.Amount, updated.Currency)
	s.notifications.Notify(ctx, session.StudentID, models.NotificationPaymentReceived,
		"Payment confirmed", message)
	s.notifications.Notify(ctx, session.TutorID, models.NotificationPaymentReceived,
		"Booking confirmed", "A student's payment cleared. The session is confirmed.")
	return nil
}

func (s *PaymentService) applyPaymentFailed(ctx context.Context, payment *models.Payment, reason string) error {
	updated, err := s.payments.MarkFailed(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	message := "Your payment could not be processed. Please try again."
	if reason != "" {
		message = fmt.Sprintf("Your payment could not be processed: %s", reason)
	}
	s.notifications.Notify(ctx, updated.UserID, models.NotificationPaymentFailed,
		"Payment failed", message)
	return nil
}

// applyRefundEvent mirrors a processor-side refund. Refunds landing after the
// scheduled start are logged and dropped so a finished session keeps its
// settled state.
func (s *PaymentService) applyRefundEvent(ctx context.Context, payment *models.Payment, reason string) error {
	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return err
	}
	session, err := s.sessions.GetByID(ctx, booking.SessionID)
	if err != nil {
		return err
	}
	if time.Now().UTC().After(session.ScheduledAt) {
		log.Printf("dropping refund event for payment %d: session %d already past its scheduled start",
			payment.ID, session.ID)
		return nil
	}

	if reason == "" {
		reason = "refunded by processor"
	}
	updated, err := s.payments.MarkRefunded(ctx, payment.ID, models.PaymentRefunded, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	s.cancelBookedSession(ctx, booking, session)

	s.notifications.Notify(ctx, updated.UserID, models.NotificationPaymentRefunded,
		"Payment refunded",
		fmt.Sprintf("Your payment of %.2f %s was refunded.", updated.Amount, updated.Currency))
	return nil
}

// RefundPayment is the in-app refund path: payer or admin, settled payments
// only, and never for a session whose scheduled start has passed.
func (s *PaymentService) RefundPayment(
	ctx context.Context,
	actorID int64,
	actorRole string,
	input RefundInput,
) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != actorID && actorRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if payment.Status != models.PaymentCompleted {
		return nil, ErrPaymentNotRefundable
	}
	if payment.TransactionID == nil {
		return nil, ErrPaymentNotRefundable
	}

	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, booking.SessionID)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(session.ScheduledAt) {
		return nil, ErrPastSessionRefund
	}

	nextStatus := models.PaymentRefunded
	var amountCents *int64
	if input.Amount != nil {
		if *input.Amount <= 0 || *input.Amount > payment.Amount {
			return nil, ErrInvalidInput
		}
		if *input.Amount < payment.Amount {
			nextStatus = models.PaymentPartiallyRefunded
		}
		cents := payments.Cents(*input.Amount)
		amountCents = &cents
	}

	if _, err := s.gateway.Refund(ctx, *payment.TransactionID, amountCents, input.Reason); err != nil {
		return nil, err
	}

	reason := input.Reason
	if reason == "" {
		reason = "requested by payer"
	}
	updated, err := s.payments.MarkRefunded(ctx, payment.ID, nextStatus, reason)
	if err != nil {
		return nil, err
	}

	if nextStatus == models.PaymentRefunded {
		s.cancelBookedSession(ctx, booking, session)
	}

	s.notifications.Notify(ctx, updated.UserID, models.NotificationPaymentRefunded,
		"Payment refunded",
		fmt.Sprintf("Your refund of %.2f %s has been issued.", refundedAmount(updated, input.Amount), updated.Currency))
	s.notifications.Notify(ctx, session.TutorID, models.NotificationPaymentRefunded,
		"Session refunded", "A booked session was refunded and cancelled.")

	return updated, nil
}

func refundedAmount(payment *models.Payment, requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return payment.Amount
}

// cancelBookedSession tears down the booking and session after a full refund.
// Failures are logged; the refund itself already happened.
func (s *PaymentService) cancelBookedSession(
	ctx context.Context,
	booking *models.Booking,
	session *models.Session,
) {
	if _, err := s.bookings.Cancel(ctx, booking.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("cancel booking %d after refund: %v", booking.ID, err)
	}
	if _, err := s.sessions.Cancel(ctx, session.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("cancel session %d after refund: %v", session.ID, err)
	}
}

func (s *PaymentService) History(ctx context.Context, actorID int64) ([]models.Payment, error) {
	return s.payments.ListByUserID(ctx, actorID)
}

type SaveMethodInput struct {
	ProviderMethodID string
	Brand            *string
	Last4            *string
}

func (s *PaymentService) SaveMethod(
	ctx context.Context,
	actorID int64,
	input SaveMethodInput,
) (*models.PaymentMethod, error) {
	if input.ProviderMethodID == "" {
		return nil, ErrInvalidInput
	}
	return s.methods.Create(ctx, actorID, input.ProviderMethodID, input.Brand, input.Last4)
}

func (s *PaymentService) ListMethods(ctx context.Context, actorID int64) ([]models.PaymentMethod, error) {
	return s.methods.ListByUserID(ctx, actorID)
}
