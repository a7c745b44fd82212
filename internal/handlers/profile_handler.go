package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

const maxAvatarSizeBytes = 5 * 1024 * 1024

type ProfileHandler struct {
	profileService     *services.ProfileService
	studentProfileRepo studentProfileStore
	tutorProfileRepo   tutorProfileStore
	storageService     services.StorageService
}

type studentProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error)
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) (*models.StudentProfile, error)
}

type tutorProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) (*models.TutorProfile, error)
}

func NewProfileHandler(
	profileService *services.ProfileService,
	studentProfileRepo studentProfileStore,
	tutorProfileRepo tutorProfileStore,
	storageService services.StorageService,
) *ProfileHandler {
	return &ProfileHandler{
		profileService:     profileService,
		studentProfileRepo: studentProfileRepo,
		tutorProfileRepo:   tutorProfileRepo,
		storageService:     storageService,
	}
}

type updateStudentProfileRequest struct {
	FullName      *string   `json:"full_name"`
	GradeLevel    *string   `json:"grade_level"`
	Subjects      *[]string `json:"subjects"`
	MaxHourlyRate *float64  `json:"max_hourly_rate"`
}

type updateTutorProfileRequest struct {
	FullName        *string   `json:"full_name"`
	Bio             *string   `json:"bio"`
	Subjects        *[]string `json:"subjects"`
	Qualifications  *[]string `json:"qualifications"`
	ExperienceYears *int      `json:"experience_years"`
	HourlyRate      *float64  `json:"hourly_rate"`
}

func (h *ProfileHandler) UpdateStudentProfile(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	var req updateStudentProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateStudentProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profileService.UpdateStudentProfile(c.Context(), userID, repository.UpdateStudentProfileInput{
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

func (h *ProfileHandler) UpdateTutorProfile(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleTutor)
	if !ok {
		return nil
	}

	var req updateTutorProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateTutorProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profileService.UpdateTutorProfile(c.Context(), userID, repository.UpdateTutorProfileInput{
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

func (h *ProfileHandler) GetStudentProfile(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	profile, err := h.studentProfileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *ProfileHandler) GetTutorProfile(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleTutor)
	if !ok {
		return nil
	}

	profile, err := h.tutorProfileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *ProfileHandler) UploadStudentAvatar(c *fiber.Ctx) error {
	return h.uploadAvatar(c, models.RoleStudent)
}

func (h *ProfileHandler) UploadTutorAvatar(c *fiber.Ctx) error {
	return h.uploadAvatar(c, models.RoleTutor)
}

func (h *ProfileHandler) uploadAvatar(c *fiber.Ctx, expectedRole string) error {
	userID, _, ok := requireRole(c, expectedRole)
	if !ok {
		return nil
	}
	if h.storageService == nil {
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "Storage service is not configured"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is empty"})
	}
	if fileHeader.Size > maxAvatarSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file exceeds 5MB limit"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open avatar file"})
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "avatar must be a jpg, jpeg, png, or webp file"})
	}

	filename := fmt.Sprintf("%d-%d%s", userID, time.Now().UnixNano(), ext)
	folder := expectedRole + "s/avatars"
	avatarURL, err := h.storageService.UploadFile(c.Context(), file, filename, folder)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload avatar"})
	}

	var profile any
	if expectedRole == models.RoleStudent {
		currentProfile, err := h.studentProfileRepo.GetByUserID(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
		}
		if currentProfile.AvatarURL != nil && *currentProfile.AvatarURL != "" && *currentProfile.AvatarURL != avatarURL {
			_ = h.storageService.DeleteFile(c.Context(), *currentProfile.AvatarURL)
		}
		profile, err = h.studentProfileRepo.UpdateAvatar(c.Context(), userID, avatarURL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
		}
	} else {
		currentProfile, err := h.tutorProfileRepo.GetByUserID(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
		}
		if currentProfile.AvatarURL != nil && *currentProfile.AvatarURL != "" && *currentProfile.AvatarURL != avatarURL {
			_ = h.storageService.DeleteFile(c.Context(), *currentProfile.AvatarURL)
		}
		profile, err = h.tutorProfileRepo.UpdateAvatar(c.Context(), userID, avatarURL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
		}
	}

	return c.JSON(fiber.Map{
		"avatar_url": avatarURL,
		"profile":    profile,
	})
}
