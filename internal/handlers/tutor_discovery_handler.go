package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

type tutorDiscoveryRepository interface {
	List(ctx context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
}

type studentDiscoveryRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error)
}

type tutorReviewReader interface {
	ListByTutorID(ctx context.Context, tutorID int64) ([]models.Review, error)
}

type tutorRecommender interface {
	GetRecommendedTutors(ctx context.Context, studentProfile *models.StudentProfile, limit int) ([]models.TutorWithScore, error)
}

type TutorDiscoveryHandler struct {
	tutorRepo          tutorDiscoveryRepository
	studentProfileRepo studentDiscoveryRepository
	reviewRepo         tutorReviewReader
	recommender        tutorRecommender
}

func NewTutorDiscoveryHandler(
	tutorRepo tutorDiscoveryRepository,
	studentProfileRepo studentDiscoveryRepository,
	reviewRepo tutorReviewReader,
	recommender tutorRecommender,
) *TutorDiscoveryHandler {
	return &TutorDiscoveryHandler{
		tutorRepo:          tutorRepo,
		studentProfileRepo: studentProfileRepo,
		reviewRepo:         reviewRepo,
		recommender:        recommender,
	}
}

func (h *TutorDiscoveryHandler) ListTutors(c *fiber.Ctx) error {
	maxRate, err := parseNonNegativeFloat(c.Query("max_rate"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "max_rate must be a valid non-negative number"})
	}

	tutors, err := h.tutorRepo.List(c.Context(), repository.TutorListFilter{
		Subject:      strings.TrimSpace(c.Query("subject")),
		MaxRate:      maxRate,
		VerifiedOnly: c.QueryBool("verified_only"),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor, 0))
	}

	return c.JSON(fiber.Map{"tutors": response})
}

func (h *TutorDiscoveryHandler) GetRecommendedTutors(c *fiber.Ctx) error {
	userID, _, ok := requireRole(c, models.RoleStudent)
	if !ok {
		return nil
	}

	_, limit := parsePageParams(c)

	studentProfile, err := h.studentProfileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to fetch student profile"})
	}

	tutors, err := h.recommender.GetRecommendedTutors(c.Context(), studentProfile, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to fetch recommended tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor.TutorProfile, tutor.MatchScore))
	}

	return c.JSON(fiber.Map{"tutors": response})
}

func (h *TutorDiscoveryHandler) GetTutorDetail(c *fiber.Ctx) error {
	tutorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tutorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	tutor, err := h.tutorRepo.GetByUserID(c.Context(), tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutor"})
	}

	reviews, err := h.reviewRepo.ListByTutorID(c.Context(), tutorID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to fetch tutor reviews"})
	}

	return c.JSON(fiber.Map{
		"tutor": buildTutorDetailResponse(*tutor, reviews),
	})
}

func buildTutorListResponse(tutor models.TutorProfile, matchScore int) models.TutorListResponse {
	response := models.TutorListResponse{
		ID:              strconv.FormatInt(tutor.UserID, 10),
		FullName:        stringValue(tutor.FullName),
		AvatarURL:       stringValue(tutor.AvatarURL),
		Subjects:        stringSliceValue(tutor.Subjects),
		ExperienceYears: intValueResponse(tutor.ExperienceYears),
		HourlyRate:      floatValueResponse(tutor.HourlyRate),
		Rating:          floatValueResponse(tutor.Rating),
		TotalStudents:   intValueResponse(tutor.TotalStudents),
		IsVerified:      boolValue(tutor.IsVerified),
	}
	if matchScore > 0 {
		response.MatchScore = matchScore
	}
	return response
}

func buildTutorDetailResponse(tutor models.TutorProfile, reviews []models.Review) models.TutorDetailResponse {
	return models.TutorDetailResponse{
		TutorListResponse:  buildTutorListResponse(tutor, 0),
		Bio:                stringValue(tutor.Bio),
		Qualifications:     stringSliceValue(tutor.Qualifications),
		OnboardingComplete: tutor.OnboardingComplete,
		Reviews:            reviews,
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseNonNegativeFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, errInvalidNumber
	}
	return value, nil
}

var errInvalidNumber = errors.New("invalid number")

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringSliceValue(value *[]string) []string {
	if value == nil {
		return []string{}
	}
	return *value
}

func floatValueResponse(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func intValueResponse(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func boolValue(value *bool) bool {
	if value == nil {
		return false
	}
	return *value
}

var _ services.TutorMatcher = (*repository.TutorProfileRepository)(nil)
