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
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

const maxMaterialSizeBytes = 25 * 1024 * 1024

type materialApplicationService interface {
	CreateMaterial(
		ctx context.Context,
		tutorID int64,
		input services.CreateMaterialInput,
	) (*models.LessonMaterial, error)
	ListMaterials(ctx context.Context, actorID int64, role string) ([]models.LessonMaterial, error)
	GetMaterial(
		ctx context.Context,
		actorID int64,
		role string,
		materialID int64,
	) (*models.LessonMaterial, error)
	GetDownloadURL(ctx context.Context, actorID int64, role string, materialID int64) (string, error)
}

type lessonMaterialResponse struct {
	ID          int64     `json:"id"`
	TutorID     int64     `json:"tutor_id"`
	StudentID   int64     `json:"student_id"`
	SessionID   int64     `json:"session_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type MaterialHandler struct {
	service materialApplicationService
}

func NewMaterialHandler(service materialApplicationService) *MaterialHandler {
	return &MaterialHandler{service: service}
}

func (h *MaterialHandler) CreateMaterial(c *fiber.Ctx) error {
	tutorID, _, ok := requireRole(c, models.RoleTutor)
	if !ok {
		return nil
	}

	studentID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("student_id")), 10, 64)
	if err != nil || studentID <= 0 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "student_id must be a positive integer"})
	}

	sessionID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("session_id")), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "session_id must be a positive integer"})
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	var description *string
	if rawDescription := c.FormValue("description"); rawDescription != "" {
		description = &rawDescription
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}
	if fileHeader.Size > maxMaterialSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file exceeds 25MB limit"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	material, err := h.service.CreateMaterial(c.Context(), tutorID, services.CreateMaterialInput{
		StudentID:   studentID,
		SessionID:   sessionID,
		Title:       title,
		Description: description,
		File:        file,
		Filename:    fileHeader.Filename,
	})
	if err != nil {
		return mapMaterialError(c, err)
	}

	return c.Status(fiber.StatusCreated).
		JSON(fiber.Map{"material": newLessonMaterialResponse(material)})
}

func (h *MaterialHandler) ListMaterials(c *fiber.Ctx) error {
	actorID, role, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	materials, err := h.service.ListMaterials(c.Context(), actorID, role)
	if err != nil {
		return mapMaterialError(c, err)
	}

	return c.JSON(fiber.Map{"materials": newLessonMaterialResponses(materials)})
}

func (h *MaterialHandler) GetMaterial(c *fiber.Ctx) error {
	actorID, role, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	materialID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || materialID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid material id"})
	}

	material, err := h.service.GetMaterial(c.Context(), actorID, role, materialID)
	if err != nil {
		return mapMaterialError(c, err)
	}

	return c.JSON(fiber.Map{"material": newLessonMaterialResponse(material)})
}

func (h *MaterialHandler) DownloadMaterial(c *fiber.Ctx) error {
	actorID, role, ok := requireRole(c, models.RoleStudent, models.RoleTutor)
	if !ok {
		return nil
	}

	materialID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || materialID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid material id"})
	}

	signedURL, err := h.service.GetDownloadURL(c.Context(), actorID, role, materialID)
	if err != nil {
		return mapMaterialError(c, err)
	}

	return c.JSON(fiber.Map{"download_url": signedURL, "expires_in_seconds": 3600})
}

func mapMaterialError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"error": "Material or related resource not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process material request"})
	}
}

func newLessonMaterialResponse(material *models.LessonMaterial) *lessonMaterialResponse {
	if material == nil {
		return nil
	}
	return &lessonMaterialResponse{
		ID:          material.ID,
		TutorID:     material.TutorID,
		StudentID:   material.StudentID,
		SessionID:   material.SessionID,
		Title:       material.Title,
		Description: material.Description,
		CreatedAt:   material.CreatedAt,
	}
}

func newLessonMaterialResponses(materials []models.LessonMaterial) []lessonMaterialResponse {
	responses := make([]lessonMaterialResponse, 0, len(materials))
	for i := range materials {
		material := materials[i]
		responses = append(responses, lessonMaterialResponse{
			ID:          material.ID,
			TutorID:     material.TutorID,
			StudentID:   material.StudentID,
			SessionID:   material.SessionID,
			Title:       material.Title,
			Description: material.Description,
			CreatedAt:   material.CreatedAt,
		})
	}
	return responses
}
