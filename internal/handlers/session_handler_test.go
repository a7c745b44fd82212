package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
)

type stubBooker struct {
	detail       *models.SessionDetail
	bookErr      error
	available    bool
	lastStudent  int64
	lastInput    services.BookSessionInput
	lastTutorID  int64
	lastDuration int
}

func (s *stubBooker) BookSession(ctx context.Context, studentID int64, input services.BookSessionInput) (*models.SessionDetail, error) {
	s.lastStudent = studentID
	s.lastInput = input
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.detail, nil
}

func (s *stubBooker) CheckAvailability(ctx context.Context, tutorID int64, requestedTime time.Time, durationMins int) (bool, error) {
	s.lastTutorID = tutorID
	s.lastDuration = durationMins
	return s.available, nil
}

type stubLifecycle struct {
	detail     *models.SessionDetail
	joinResult *services.JoinSessionResult
	err        error

	lastActor   int64
	lastSession int64
	lastEnd     services.EndSessionInput
}

func (s *stubLifecycle) ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.detail == nil {
		return nil, nil
	}
	return []models.SessionDetail{*s.detail}, nil
}

func (s *stubLifecycle) GetSession(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastActor, s.lastSession = actorID, sessionID
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func (s *stubLifecycle) Start(ctx context.Context, actorID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastActor, s.lastSession = actorID, sessionID
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func (s *stubLifecycle) Join(ctx context.Context, actorID int64, sessionID int64) (*services.JoinSessionResult, error) {
	s.lastActor, s.lastSession = actorID, sessionID
	if s.err != nil {
		return nil, s.err
	}
	return s.joinResult, nil
}

func (s *stubLifecycle) Leave(ctx context.Context, actorID int64, sessionID int64, reason *string) error {
	s.lastActor, s.lastSession = actorID, sessionID
	return s.err
}

func (s *stubLifecycle) End(ctx context.Context, actorID int64, sessionID int64, input services.EndSessionInput) (*models.SessionDetail, error) {
	s.lastActor, s.lastSession, s.lastEnd = actorID, sessionID, input
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

// fakeAuth injects the locals the real auth middleware would set.
func fakeAuth(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	}
}

func newSessionTestApp(handler *SessionHandler, userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(fakeAuth(userID, role))
	app.Post("/api/v1/sessions/book", handler.BookSession)
	app.Get("/api/v1/sessions/availability", handler.CheckAvailability)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/start", handler.StartSession)
	app.Post("/api/v1/sessions/:id/join", handler.JoinSession)
	app.Post("/api/v1/sessions/:id/leave", handler.LeaveSession)
	app.Post("/api/v1/sessions/:id/end", handler.EndSession)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestBookSessionRequiresStudentRole(t *testing.T) {
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "7", models.RoleTutor)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book", `{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionValidatesTimestamp(t *testing.T) {
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book",
		`{"tutor_id": 7, "scheduled_at": "tomorrow", "duration_minutes": 60}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBookSessionCreated(t *testing.T) {
	booker := &stubBooker{detail: &models.SessionDetail{
		Session: models.Session{ID: 1, TutorID: 7, StudentID: 11, Status: models.SessionScheduled},
	}}
	handler := &SessionHandler{booker: booker, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book",
		`{"tutor_id": 7, "scheduled_at": "2026-09-01T10:00:00Z", "duration_minutes": 60}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if booker.lastStudent != 11 || booker.lastInput.TutorID != 7 {
		t.Fatalf("unexpected booking call: student=%d input=%+v", booker.lastStudent, booker.lastInput)
	}
}

func TestBookSessionConflictMapsTo409(t *testing.T) {
	booker := &stubBooker{bookErr: services.ErrConflict}
	handler := &SessionHandler{booker: booker, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/book",
		`{"tutor_id": 7, "scheduled_at": "2026-09-01T10:00:00Z", "duration_minutes": 60}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCheckAvailabilityDefaultsDuration(t *testing.T) {
	booker := &stubBooker{available: true}
	handler := &SessionHandler{booker: booker, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v1/sessions/availability?tutor_id=7&scheduled_at=2026-09-01T10:00:00Z", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if booker.lastDuration != 60 {
		t.Fatalf("expected default duration 60, got %d", booker.lastDuration)
	}
	body := decodeBody(t, resp)
	if body["available"] != true {
		t.Fatalf("expected available true, got %v", body["available"])
	}
}

func TestListSessionsRejectsUnknownTimeframe(t *testing.T) {
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=yesterday", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	lifecycle := &stubLifecycle{err: pgx.ErrNoRows}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/42", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStartSessionWindowViolationIs400(t *testing.T) {
	lifecycle := &stubLifecycle{err: services.ErrStartWindow}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "7", models.RoleTutor)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/42/start", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != services.ErrStartWindow.Error() {
		t.Fatalf("expected the sentinel message, got %v", body["error"])
	}
}

func TestStartSessionForbiddenForOutsider(t *testing.T) {
	lifecycle := &stubLifecycle{err: services.ErrForbidden}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "99", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/42/start", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestJoinSessionReturnsCountdown(t *testing.T) {
	lifecycle := &stubLifecycle{joinResult: &services.JoinSessionResult{
		Session:           models.Session{ID: 42, Status: models.SessionScheduled},
		TutorID:           7,
		StudentID:         11,
		MinutesUntilStart: 12,
	}}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/42/join", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["minutes_until_start"] != float64(12) {
		t.Fatalf("expected minutes_until_start 12, got %v", body["minutes_until_start"])
	}
	if lifecycle.lastSession != 42 {
		t.Fatalf("expected session 42, got %d", lifecycle.lastSession)
	}
}

func TestJoinSessionEarlyIs400(t *testing.T) {
	lifecycle := &stubLifecycle{err: services.ErrJoinWindowNotOpen}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/42/join", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEndSessionForwardsRating(t *testing.T) {
	lifecycle := &stubLifecycle{detail: &models.SessionDetail{
		Session: models.Session{ID: 42, Status: models.SessionCompleted},
	}}
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: lifecycle}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/42/end",
		`{"rating": 5, "feedback": "great"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastEnd.Rating == nil || *lifecycle.lastEnd.Rating != 5 {
		t.Fatalf("expected rating forwarded, got %+v", lifecycle.lastEnd)
	}
}

func TestEndSessionInvalidIDIs400(t *testing.T) {
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: &stubLifecycle{}}
	app := newSessionTestApp(handler, "11", models.RoleStudent)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/sessions/abc/end", ""))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMissingAuthLocalsIs401(t *testing.T) {
	handler := &SessionHandler{booker: &stubBooker{}, lifecycle: &stubLifecycle{}}
	app := fiber.New()
	app.Get("/api/v1/sessions", handler.ListSessions)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
