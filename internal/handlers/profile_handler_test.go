package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type stubStudentProfiles struct {
	profile       *models.StudentProfile
	savedAvatar   string
	savedForUser  int64
	updateAvatErr error
}

func (s *stubStudentProfiles) GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	return s.profile, nil
}

func (s *stubStudentProfiles) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) (*models.StudentProfile, error) {
	if s.updateAvatErr != nil {
		return nil, s.updateAvatErr
	}
	s.savedForUser = userID
	s.savedAvatar = avatarURL
	updated := *s.profile
	updated.AvatarURL = &avatarURL
	return &updated, nil
}

type stubTutorProfiles struct {
	profile     *models.TutorProfile
	savedAvatar string
}

func (s *stubTutorProfiles) GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error) {
	return s.profile, nil
}

func (s *stubTutorProfiles) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) (*models.TutorProfile, error) {
	s.savedAvatar = avatarURL
	updated := *s.profile
	updated.AvatarURL = &avatarURL
	return &updated, nil
}

type stubStorage struct {
	uploadedURL string
	deleted     []string
}

func (s *stubStorage) UploadFile(ctx context.Context, file multipart.File, filename, folder string) (string, error) {
	return s.uploadedURL, nil
}

func (s *stubStorage) DeleteFile(ctx context.Context, fileURL string) error {
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *stubStorage) GetSignedURL(ctx context.Context, fileURL string) (string, error) {
	return fileURL, nil
}

func newProfileTestApp(handler *ProfileHandler, userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(fakeAuth(userID, role))
	app.Post("/api/v1/students/profile/avatar", handler.UploadStudentAvatar)
	app.Post("/api/v1/tutors/profile/avatar", handler.UploadTutorAvatar)
	return app
}

func avatarRequest(t *testing.T, target, filename string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("avatar", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStudentAvatarPersistsURL(t *testing.T) {
	oldURL := "https://cdn.example.com/old-avatar.png"
	students := &stubStudentProfiles{
		profile: &models.StudentProfile{UserID: 11, AvatarURL: &oldURL},
	}
	storage := &stubStorage{uploadedURL: "https://cdn.example.com/new-avatar.png"}
	handler := NewProfileHandler(nil, students, &stubTutorProfiles{}, storage)
	app := newProfileTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(avatarRequest(t, "/api/v1/students/profile/avatar", "me.png"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if students.savedAvatar != storage.uploadedURL {
		t.Fatalf("expected avatar %q persisted, got %q", storage.uploadedURL, students.savedAvatar)
	}
	if students.savedForUser != 11 {
		t.Fatalf("expected avatar saved for user 11, got %d", students.savedForUser)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != oldURL {
		t.Fatalf("expected previous avatar %q deleted, got %v", oldURL, storage.deleted)
	}

	body := decodeBody(t, resp)
	if body["avatar_url"] != storage.uploadedURL {
		t.Fatalf("expected avatar_url %q in response, got %v", storage.uploadedURL, body["avatar_url"])
	}
}

func TestUploadTutorAvatarPersistsURL(t *testing.T) {
	tutors := &stubTutorProfiles{profile: &models.TutorProfile{UserID: 7}}
	storage := &stubStorage{uploadedURL: "https://cdn.example.com/tutor.webp"}
	handler := NewProfileHandler(nil, &stubStudentProfiles{}, tutors, storage)
	app := newProfileTestApp(handler, "7", models.RoleTutor)

	resp, err := app.Test(avatarRequest(t, "/api/v1/tutors/profile/avatar", "portrait.webp"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if tutors.savedAvatar != storage.uploadedURL {
		t.Fatalf("expected avatar %q persisted, got %q", storage.uploadedURL, tutors.savedAvatar)
	}
	if len(storage.deleted) != 0 {
		t.Fatalf("expected no deletions for a profile without an avatar, got %v", storage.deleted)
	}
}

func TestUploadAvatarRejectsUnsupportedExtension(t *testing.T) {
	students := &stubStudentProfiles{profile: &models.StudentProfile{UserID: 11}}
	handler := NewProfileHandler(nil, students, &stubTutorProfiles{}, &stubStorage{})
	app := newProfileTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(avatarRequest(t, "/api/v1/students/profile/avatar", "avatar.gif"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if students.savedAvatar != "" {
		t.Fatalf("expected no avatar persisted, got %q", students.savedAvatar)
	}
}

func TestUploadAvatarWithoutStorageConfigured(t *testing.T) {
	handler := NewProfileHandler(nil, &stubStudentProfiles{profile: &models.StudentProfile{}}, &stubTutorProfiles{}, nil)
	app := newProfileTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(avatarRequest(t, "/api/v1/students/profile/avatar", "me.png"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
