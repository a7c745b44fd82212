package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/payments"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

type stubGateway struct {
	intent    *payments.Intent
	event     *payments.Event
	verifyErr error

	createCalled bool
	refundCalled bool
	refundCents  *int64
}

func (g *stubGateway) CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.Intent, error) {
	g.createCalled = true
	return &payments.Intent{ID: "pi_new", ClientSecret: "secret_new", AmountCents: input.AmountCents}, nil
}

func (g *stubGateway) GetIntent(ctx context.Context, intentID string) (*payments.Intent, error) {
	if g.intent == nil || g.intent.ID != intentID {
		return nil, errors.New("no such intent")
	}
	return g.intent, nil
}

func (g *stubGateway) Refund(ctx context.Context, intentID string, amountCents *int64, reason string) (string, error) {
	g.refundCalled = true
	g.refundCents = amountCents
	return "re_1", nil
}

func (g *stubGateway) VerifyEvent(payload []byte, signature string) (*payments.Event, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.event, nil
}

type stubPaymentStore struct {
	payment *models.Payment

	completeErrOnce error

	completedCalls int
	failedCalls    int
	refundedStatus models.PaymentStatus
	refundedReason string
	upserted       *repository.UpsertPaymentInput
}

func (s *stubPaymentStore) Upsert(ctx context.Context, input repository.UpsertPaymentInput) (*models.Payment, error) {
	s.upserted = &input
	s.payment = &models.Payment{
		ID:            1,
		BookingID:     input.BookingID,
		UserID:        input.UserID,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Status:        models.PaymentPending,
		TransactionID: &input.TransactionID,
	}
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) GetByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != paymentID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) GetByBookingID(ctx context.Context, bookingID int64) (*models.Payment, error) {
	if s.payment == nil || s.payment.BookingID != bookingID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	if s.payment == nil || s.payment.TransactionID == nil || *s.payment.TransactionID != transactionID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) ListByUserID(ctx context.Context, userID int64) ([]models.Payment, error) {
	if s.payment == nil {
		return nil, nil
	}
	return []models.Payment{*s.payment}, nil
}

func (s *stubPaymentStore) MarkCompleted(ctx context.Context, paymentID int64) (*models.Payment, error) {
	if err := s.completeErrOnce; err != nil {
		s.completeErrOnce = nil
		return nil, err
	}
	if s.payment.Status != models.PaymentPending {
		return nil, pgx.ErrNoRows
	}
	s.completedCalls++
	s.payment.Status = models.PaymentCompleted
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) MarkFailed(ctx context.Context, paymentID int64) (*models.Payment, error) {
	if s.payment.Status != models.PaymentPending {
		return nil, pgx.ErrNoRows
	}
	s.failedCalls++
	s.payment.Status = models.PaymentFailed
	copied := *s.payment
	return &copied, nil
}

func (s *stubPaymentStore) MarkRefunded(
	ctx context.Context,
	paymentID int64,
	nextStatus models.PaymentStatus,
	reason string,
) (*models.Payment, error) {
	if s.payment.Status != models.PaymentCompleted && s.payment.Status != models.PaymentPartiallyRefunded {
		return nil, pgx.ErrNoRows
	}
	s.refundedStatus = nextStatus
	s.refundedReason = reason
	s.payment.Status = nextStatus
	copied := *s.payment
	return &copied, nil
}

type stubBookingReader struct {
	booking *models.Booking

	cancelled   bool
	updatedFrom models.BookingStatus
	updatedTo   models.BookingStatus
}

func (s *stubBookingReader) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	if s.booking == nil || s.booking.ID != bookingID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.booking
	return &copied, nil
}

func (s *stubBookingReader) Cancel(ctx context.Context, bookingID int64) (*models.Booking, error) {
	s.cancelled = true
	s.booking.Status = models.BookingCancelled
	copied := *s.booking
	return &copied, nil
}

func (s *stubBookingReader) UpdateStatusIfCurrent(
	ctx context.Context,
	bookingID int64,
	currentStatus, nextStatus models.BookingStatus,
) (*models.Booking, error) {
	if s.booking == nil || s.booking.Status != currentStatus {
		return nil, pgx.ErrNoRows
	}
	s.updatedFrom = currentStatus
	s.updatedTo = nextStatus
	s.booking.Status = nextStatus
	copied := *s.booking
	return &copied, nil
}

type stubSessionCanceller struct {
	session *models.Session

	cancelled bool
}

func (s *stubSessionCanceller) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	if s.session == nil || s.session.ID != sessionID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionCanceller) Cancel(ctx context.Context, sessionID int64) (*models.Session, error) {
	s.cancelled = true
	s.session.Status = models.SessionCancelled
	copied := *s.session
	return &copied, nil
}

type stubWebhookEventStore struct {
	seen    map[string]bool
	forgets int
}

func (s *stubWebhookEventStore) MarkProcessed(ctx context.Context, eventID, kind string) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *stubWebhookEventStore) Forget(ctx context.Context, eventID string) error {
	s.forgets++
	delete(s.seen, eventID)
	return nil
}

type stubTutorStats struct {
	increments []int64
}

func (s *stubTutorStats) IncrementTotalStudents(ctx context.Context, userID int64) error {
	s.increments = append(s.increments, userID)
	return nil
}

type stubPaymentMethodStore struct {
	methods []models.PaymentMethod
}

func (s *stubPaymentMethodStore) Create(
	ctx context.Context,
	userID int64,
	providerMethodID string,
	brand, last4 *string,
) (*models.PaymentMethod, error) {
	method := models.PaymentMethod{
		ID:               int64(len(s.methods) + 1),
		UserID:           userID,
		ProviderMethodID: providerMethodID,
		Brand:            brand,
		Last4:            last4,
	}
	s.methods = append(s.methods, method)
	return &method, nil
}

func (s *stubPaymentMethodStore) GetByID(ctx context.Context, methodID int64, userID int64) (*models.PaymentMethod, error) {
	for _, method := range s.methods {
		if method.ID == methodID && method.UserID == userID {
			copied := method
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubPaymentMethodStore) ListByUserID(ctx context.Context, userID int64) ([]models.PaymentMethod, error) {
	return s.methods, nil
}

type paymentFixture struct {
	service  *PaymentService
	gateway  *stubGateway
	payments *stubPaymentStore
	bookings *stubBookingReader
	sessions *stubSessionCanceller
	events   *stubWebhookEventStore
	methods  *stubPaymentMethodStore
	stats    *stubTutorStats
	notifier *stubNotifier
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		gateway:  &stubGateway{},
		payments: &stubPaymentStore{},
		bookings: &stubBookingReader{},
		sessions: &stubSessionCanceller{},
		events:   &stubWebhookEventStore{},
		methods:  &stubPaymentMethodStore{},
		stats:    &stubTutorStats{},
		notifier: &stubNotifier{},
	}
	f.service = NewPaymentService(
		f.gateway, f.payments, f.bookings, f.sessions, f.events, f.methods, f.stats, f.notifier,
	)
	return f
}

func (f *paymentFixture) seedPendingPayment(scheduledAt time.Time) {
	transactionID := "pi_1"
	f.sessions.session = &models.Session{
		ID:              2,
		TutorID:         testTutorID,
		StudentID:       testStudentID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: 60,
		Price:           45,
		Status:          models.SessionScheduled,
	}
	f.bookings.booking = &models.Booking{
		ID:        3,
		SessionID: 2,
		StudentID: testStudentID,
		Status:    models.BookingPending,
	}
	f.payments.payment = &models.Payment{
		ID:            1,
		BookingID:     3,
		UserID:        testStudentID,
		Amount:        45,
		Currency:      "usd",
		Status:        models.PaymentPending,
		TransactionID: &transactionID,
	}
}

func succeededEvent(eventID string) *payments.Event {
	return &payments.Event{ID: eventID, Kind: payments.EventPaymentSucceeded, IntentID: "pi_1"}
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.verifyErr = errors.New("signature mismatch")

	err := f.service.HandleWebhook(context.Background(), []byte("{}"), "bad")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestWebhookPaymentSucceededConfirmsBooking(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.event = succeededEvent("evt_1")

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if f.payments.completedCalls != 1 {
		t.Fatalf("expected one completion, got %d", f.payments.completedCalls)
	}
	if f.bookings.updatedFrom != models.BookingPending || f.bookings.updatedTo != models.BookingConfirmed {
		t.Fatalf("expected booking PENDING -> CONFIRMED, got %s -> %s", f.bookings.updatedFrom, f.bookings.updatedTo)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("expected both participants notified, got %d notifications", len(f.notifier.sent))
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.event = succeededEvent("evt_1")

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("replay must be acknowledged, got %v", err)
	}
	if f.payments.completedCalls != 1 {
		t.Fatalf("replay applied twice: %d completions", f.payments.completedCalls)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("replay sent duplicate notifications: %d", len(f.notifier.sent))
	}
}

func TestWebhookRetryAfterTransientFailureConverges(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.event = succeededEvent("evt_1")
	f.payments.completeErrOnce = errors.New("connection reset")

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err == nil {
		t.Fatal("expected the first delivery to fail")
	}
	if f.events.forgets != 1 {
		t.Fatalf("expected the event marker released after the failure, got %d releases", f.events.forgets)
	}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if f.payments.payment.Status != models.PaymentCompleted {
		t.Fatalf("retry did not converge, payment still %s", f.payments.payment.Status)
	}
	if f.bookings.booking.Status != models.BookingConfirmed {
		t.Fatalf("retry did not confirm the booking, got %s", f.bookings.booking.Status)
	}
}

func TestWebhookSuccessCountsTutorStudent(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.event = succeededEvent("evt_1")

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if len(f.stats.increments) != 1 || f.stats.increments[0] != testTutorID {
		t.Fatalf("expected one student counted for the tutor, got %v", f.stats.increments)
	}

	// Replays must not inflate the counter.
	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(f.stats.increments) != 1 {
		t.Fatalf("replay inflated the counter: %v", f.stats.increments)
	}
}

func TestWebhookUnknownIntentAcknowledged(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.event = &payments.Event{ID: "evt_x", Kind: payments.EventPaymentSucceeded, IntentID: "pi_unknown"}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("unknown intent must be dropped without error, got %v", err)
	}
}

func TestWebhookPaymentFailedNotifiesPayer(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.event = &payments.Event{ID: "evt_f", Kind: payments.EventPaymentFailed, IntentID: "pi_1", Reason: "card declined"}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if f.payments.failedCalls != 1 {
		t.Fatalf("expected one failure mark, got %d", f.payments.failedCalls)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].UserID != testStudentID {
		t.Fatalf("expected the payer to be notified, got %+v", f.notifier.sent)
	}
}

func TestWebhookRefundAfterScheduledStartDropped(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(-time.Hour))
	f.payments.payment.Status = models.PaymentCompleted
	f.gateway.event = &payments.Event{ID: "evt_r", Kind: payments.EventRefund, IntentID: "pi_1"}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if f.payments.payment.Status != models.PaymentCompleted {
		t.Fatalf("late refund must not touch the payment, got %s", f.payments.payment.Status)
	}
	if f.sessions.cancelled || f.bookings.cancelled {
		t.Fatal("late refund must not cancel the booked session")
	}
}

func TestWebhookRefundCancelsFutureSession(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.payments.payment.Status = models.PaymentCompleted
	f.gateway.event = &payments.Event{ID: "evt_r", Kind: payments.EventRefund, IntentID: "pi_1"}

	if err := f.service.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if f.payments.refundedStatus != models.PaymentRefunded {
		t.Fatalf("expected REFUNDED, got %s", f.payments.refundedStatus)
	}
	if !f.sessions.cancelled || !f.bookings.cancelled {
		t.Fatal("full refund must cancel both the booking and the session")
	}
}

func TestCreateIntentReusesMatchingPendingIntent(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.gateway.intent = &payments.Intent{ID: "pi_1", ClientSecret: "secret_1", AmountCents: 4500}

	result, err := f.service.CreatePaymentIntent(context.Background(), testStudentID, 3, nil)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if f.gateway.createCalled {
		t.Fatal("a matching pending intent must be reused, not recreated")
	}
	if result.ClientSecret != "secret_1" || result.Amount != 45 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateIntentRejectsOtherStudents(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))

	_, err := f.service.CreatePaymentIntent(context.Background(), 999, 3, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateIntentRequiresPendingBooking(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.bookings.booking.Status = models.BookingConfirmed

	_, err := f.service.CreatePaymentIntent(context.Background(), testStudentID, 3, nil)
	if !errors.Is(err, ErrBookingNotPayable) {
		t.Fatalf("expected ErrBookingNotPayable, got %v", err)
	}
}

func TestRefundRejectsPastSession(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(-time.Hour))
	f.payments.payment.Status = models.PaymentCompleted

	_, err := f.service.RefundPayment(context.Background(), testStudentID, models.RoleStudent, RefundInput{PaymentID: 1})
	if !errors.Is(err, ErrPastSessionRefund) {
		t.Fatalf("expected ErrPastSessionRefund, got %v", err)
	}
	if f.gateway.refundCalled {
		t.Fatal("gateway refund must not run for past sessions")
	}
}

func TestRefundPartialAmountKeepsBooking(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.payments.payment.Status = models.PaymentCompleted
	amount := 20.0

	updated, err := f.service.RefundPayment(context.Background(), testStudentID, models.RoleStudent, RefundInput{
		PaymentID: 1,
		Amount:    &amount,
		Reason:    "ran short",
	})
	if err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	if updated.Status != models.PaymentPartiallyRefunded {
		t.Fatalf("expected PARTIALLY_REFUNDED, got %s", updated.Status)
	}
	if f.gateway.refundCents == nil || *f.gateway.refundCents != 2000 {
		t.Fatalf("expected 2000 cents sent to the gateway, got %v", f.gateway.refundCents)
	}
	if f.sessions.cancelled || f.bookings.cancelled {
		t.Fatal("a partial refund must leave the session booked")
	}
}

func TestRefundFullAmountCancelsSession(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.payments.payment.Status = models.PaymentCompleted

	updated, err := f.service.RefundPayment(context.Background(), testStudentID, models.RoleStudent, RefundInput{PaymentID: 1})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if updated.Status != models.PaymentRefunded {
		t.Fatalf("expected REFUNDED, got %s", updated.Status)
	}
	if !f.sessions.cancelled || !f.bookings.cancelled {
		t.Fatal("full refund must cancel the booking and session")
	}
}

func TestRefundRejectsExcessAmount(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.payments.payment.Status = models.PaymentCompleted
	amount := 100.0

	_, err := f.service.RefundPayment(context.Background(), testStudentID, models.RoleStudent, RefundInput{
		PaymentID: 1,
		Amount:    &amount,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRefundAllowsAdmin(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))
	f.payments.payment.Status = models.PaymentCompleted

	if _, err := f.service.RefundPayment(context.Background(), 999, models.RoleAdmin, RefundInput{PaymentID: 1}); err != nil {
		t.Fatalf("admin refund failed: %v", err)
	}
}

func TestRefundRejectsUnsettledPayment(t *testing.T) {
	f := newPaymentFixture()
	f.seedPendingPayment(time.Now().UTC().Add(24 * time.Hour))

	_, err := f.service.RefundPayment(context.Background(), testStudentID, models.RoleStudent, RefundInput{PaymentID: 1})
	if !errors.Is(err, ErrPaymentNotRefundable) {
		t.Fatalf("expected ErrPaymentNotRefundable, got %v", err)
	}
}
