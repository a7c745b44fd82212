package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

type studentOnboardingProfileStore interface {
	UpdateOnboarding(ctx context.Context, userID int64, req repository.StudentOnboardingInput) (*models.StudentProfile, error)
}

type tutorOnboardingProfileStore interface {
	UpdateOnboarding(ctx context.Context, userID int64, req repository.TutorOnboardingInput) (*models.TutorProfile, error)
}

type OnboardingHandler struct {
	studentProfileRepo studentOnboardingProfileStore
	tutorProfileRepo   tutorOnboardingProfileStore
}

func NewOnboardingHandler(
	studentProfileRepo studentOnboardingProfileStore,
	tutorProfileRepo tutorOnboardingProfileStore,
) *OnboardingHandler {
	return &OnboardingHandler{
		studentProfileRepo: studentProfileRepo,
		tutorProfileRepo:   tutorProfileRepo,
	}
}

type studentOnboardingRequest struct {
	FullName      string   `json:"full_name"`
	GradeLevel    string   `json:"grade_level"`
	Subjects      []string `json:"subjects"`
	MaxHourlyRate *float64 `json:"max_hourly_rate"`
}

type tutorOnboardingRequest struct {
	FullName        string   `json:"full_name"`
	Bio             string   `json:"bio"`
	Subjects        []string `json:"subjects"`
	Qualifications  []string `json:"qualifications"`
	ExperienceYears int      `json:"experience_years"`
	HourlyRate      float64  `json:"hourly_rate"`
}

func (h *OnboardingHandler) StudentOnboarding(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	var req studentOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateStudentOnboardingRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.studentProfileRepo.UpdateOnboarding(c.Context(), userID, repository.StudentOnboardingInput{
		FullName:      req.FullName,
		GradeLevel:    req.GradeLevel,
		Subjects:      req.Subjects,
		MaxHourlyRate: req.MaxHourlyRate,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *OnboardingHandler) TutorOnboarding(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleTutor)
	if !ok {
		return nil
	}

	var req tutorOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateTutorOnboardingRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.tutorProfileRepo.UpdateOnboarding(c.Context(), userID, repository.TutorOnboardingInput{
		FullName:        req.FullName,
		Bio:             req.Bio,
		Subjects:        req.Subjects,
		Qualifications:  req.Qualifications,
		ExperienceYears: req.ExperienceYears,
		HourlyRate:      req.HourlyRate,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}
