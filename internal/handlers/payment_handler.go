package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

type paymentApplicationService interface {
	CreatePaymentIntent(ctx context.Context, actorID int64, bookingID int64, methodID *int64) (*services.CreateIntentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	RefundPayment(ctx context.Context, actorID int64, actorRole string, input services.RefundInput) (*models.Payment, error)
	History(ctx context.Context, actorID int64) ([]models.Payment, error)
	SaveMethod(ctx context.Context, actorID int64, input services.SaveMethodInput) (*models.PaymentMethod, error)
	ListMethods(ctx context.Context, actorID int64) ([]models.PaymentMethod, error)
}

type PaymentHandler struct {
	service paymentApplicationService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type createIntentRequest struct {
	BookingID int64  `json:"booking_id"`
	MethodID  *int64 `json:"payment_method_id"`
}

type refundRequest struct {
	PaymentID int64    `json:"payment_id"`
	Amount    *float64 `json:"amount"`
	Reason    string   `json:"reason"`
}

type saveMethodRequest struct {
	ProviderMethodID string  `json:"provider_method_id"`
	Brand            *string `json:"brand"`
	Last4            *string `json:"last4"`
}

func (h *PaymentHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.BookingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	result, err := h.service.CreatePaymentIntent(c.Context(), userID, req.BookingID, req.MethodID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(result)
}

// Webhook verifies the raw body against the processor signature. It is mounted
// without auth middleware; the signature is the authentication.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("stripe-signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing signature"})
	}

	if err := h.service.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process webhook"})
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	userID, role, ok := requireRole(c, models.RoleStudent, models.RoleAdmin)
	if !ok {
		return nil
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.PaymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	payment, err := h.service.RefundPayment(c.Context(), userID, role, services.RefundInput{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) History(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	paymentsList, err := h.service.History(c.Context(), userID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payments": paymentsList})
}

func (h *PaymentHandler) SaveMethod(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	var req saveMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	method, err := h.service.SaveMethod(c.Context(), userID, services.SaveMethodInput{
		ProviderMethodID: req.ProviderMethodID,
		Brand:            req.Brand,
		Last4:            req.Last4,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment_method": method})
}

func (h *PaymentHandler) ListMethods(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	methods, err := h.service.ListMethods(c.Context(), userID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment_methods": methods})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), services.IsInvalidState(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process payment request"})
	}
}
