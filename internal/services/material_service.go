package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
)

var ErrStorageUnavailable = errors.New("storage service is not configured")

type materialStore interface {
	Create(ctx context.Context, input repository.CreateMaterialInput) (*models.LessonMaterial, error)
	GetByID(ctx context.Context, materialID int64) (*models.LessonMaterial, error)
	ListByTutorID(ctx context.Context, tutorID int64) ([]models.LessonMaterial, error)
	ListByStudentID(ctx context.Context, studentID int64) ([]models.LessonMaterial, error)
}

type sessionReader interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
}

type MaterialService struct {
	materialRepo   materialStore
	sessionRepo    sessionReader
	userRepo       userReader
	storageService StorageService
}

type CreateMaterialInput struct {
	StudentID   int64
	SessionID   int64
	Title       string
	Description *string
	File        multipart.File
	Filename    string
}

func NewMaterialService(
	materialRepo materialStore,
	sessionRepo sessionReader,
	userRepo userReader,
	storageService StorageService,
) *MaterialService {
	return &MaterialService{
		materialRepo:   materialRepo,
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		storageService: storageService,
	}
}

// CreateMaterial lets a tutor share a file with a student of one of their
// sessions. The upload happens before the row insert; a failed insert cleans
// the object up again.
func (s *MaterialService) CreateMaterial(
	ctx context.Context,
	tutorID int64,
	input CreateMaterialInput,
) (*models.LessonMaterial, error) {
	if s.storageService == nil {
		return nil, ErrStorageUnavailable
	}
	if tutorID <= 0 || input.StudentID <= 0 || input.SessionID <= 0 || input.File == nil {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrInvalidInput
	}

	var description *string
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			return nil, ErrInvalidInput
		}
		description = &trimmed
	}

	student, err := s.userRepo.GetByID(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Role != models.RoleStudent {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.TutorID != tutorID || session.StudentID != input.StudentID {
		return nil, ErrForbidden
	}

	filename := buildMaterialFilename(tutorID, input.StudentID, input.Filename)
	fileURL, err := s.storageService.UploadFile(ctx, input.File, filename, "materials")
	if err != nil {
		return nil, err
	}

	material, err := s.materialRepo.Create(ctx, repository.CreateMaterialInput{
		TutorID:     tutorID,
		StudentID:   input.StudentID,
		SessionID:   input.SessionID,
		Title:       title,
		Description: description,
		FileURL:     fileURL,
	})
	if err != nil {
		cleanupErr := s.storageService.DeleteFile(ctx, fileURL)
		if cleanupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, err
	}

	return material, nil
}

func (s *MaterialService) ListMaterials(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.LessonMaterial, error) {
	switch role {
	case models.RoleTutor:
		return s.materialRepo.ListByTutorID(ctx, actorID)
	case models.RoleStudent:
		return s.materialRepo.ListByStudentID(ctx, actorID)
	default:
		return nil, ErrForbidden
	}
}

func (s *MaterialService) GetMaterial(
	ctx context.Context,
	actorID int64,
	role string,
	materialID int64,
) (*models.LessonMaterial, error) {
	material, err := s.materialRepo.GetByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	if !canAccessMaterial(role, actorID, material) {
		return nil, ErrForbidden
	}
	return material, nil
}

func (s *MaterialService) GetDownloadURL(
	ctx context.Context,
	actorID int64,
	role string,
	materialID int64,
) (string, error) {
	if s.storageService == nil {
		return "", ErrStorageUnavailable
	}

	material, err := s.GetMaterial(ctx, actorID, role, materialID)
	if err != nil {
		return "", err
	}

	return s.storageService.GetSignedURL(ctx, material.FileURL)
}

func canAccessMaterial(role string, actorID int64, material *models.LessonMaterial) bool {
	if material == nil {
		return false
	}

	switch role {
	case models.RoleTutor:
		return actorID == material.TutorID
	case models.RoleStudent:
		return actorID == material.StudentID
	default:
		return false
	}
}

func buildMaterialFilename(tutorID int64, studentID int64, original string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%d-%d-%d%s", tutorID, studentID, time.Now().UnixNano(), ext)
}
