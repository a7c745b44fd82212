package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

type sessionBooker interface {
	BookSession(ctx context.Context, studentID int64, input services.BookSessionInput) (*models.SessionDetail, error)
	CheckAvailability(ctx context.Context, tutorID int64, requestedTime time.Time, durationMins int) (bool, error)
}

type sessionLifecycle interface {
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error)
	Start(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error)
	Join(ctx context.Context, actorID int64, sessionID int64) (*services.JoinSessionResult, error)
	Leave(ctx context.Context, actorID int64, sessionID int64, reason *string) error
	End(ctx context.Context, actorID int64, sessionID int64, input services.EndSessionInput) (*models.SessionDetail, error)
}

type SessionHandler struct {
	booker    sessionBooker
	lifecycle sessionLifecycle
}

func NewSessionHandler(booker *services.BookingService, lifecycle *services.SessionService) *SessionHandler {
	return &SessionHandler{booker: booker, lifecycle: lifecycle}
}

type bookSessionRequest struct {
	TutorID         int64   `json:"tutor_id"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           *string `json:"notes"`
}

type leaveSessionRequest struct {
	Reason *string `json:"reason"`
}

type endSessionRequest struct {
	Reason   *string `json:"reason"`
	Rating   *int    `json:"rating"`
	Feedback *string `json:"feedback"`
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	studentID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}
	if req.DurationMinutes <= 0 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "duration_minutes must be greater than 0"})
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "notes must not be empty"})
	}

	detail, err := h.booker.BookSession(c.Context(), studentID, services.BookSessionInput{
		TutorID:         req.TutorID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) CheckAvailability(c *fiber.Ctx) error {
	if _, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor); !ok {
		return nil
	}

	tutorID, err := strconv.ParseInt(c.Query("tutor_id"), 10, 64)
	if err != nil || tutorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}
	requestedTime, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("scheduled_at")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
	}
	duration, err := strconv.Atoi(c.Query("duration_minutes", "60"))
	if err != nil || duration <= 0 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "duration_minutes must be greater than 0"})
	}

	available, err := h.booker.CheckAvailability(c.Context(), tutorID, requestedTime, duration)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"available": available})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, role, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.lifecycle.ListSessions(c.Context(), userID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.lifecycle.GetSession(c.Context(), userID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.lifecycle.Start(c.Context(), userID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) JoinSession(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	result, err := h.lifecycle.Join(c.Context(), userID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(result)
}

func (h *SessionHandler) LeaveSession(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req leaveSessionRequest
	_ = c.BodyParser(&req)

	if err := h.lifecycle.Leave(c.Context(), userID, sessionID, req.Reason); err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Left session"})
}

func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req endSessionRequest
	_ = c.BodyParser(&req)

	session, err := h.lifecycle.End(c.Context(), userID, sessionID, services.EndSessionInput{
		Reason:   req.Reason,
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return sessionID, nil
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), services.IsInvalidState(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Requested time conflicts with another session"})
	case errors.Is(err, services.ErrTutorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
