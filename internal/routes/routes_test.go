package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:   testSecret,
		AdminEmails: "admin@example.com,ops@example.com",
	}

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reportService := services.NewReportService(
		repository.NewReportRepository(db),
		services.NewNotificationService(db),
		log,
	)

	app := fiber.New()
	Setup(app, cfg, db,
		handlers.NewHealthHandler(db),
		handlers.NewReportHandler(reportService, handlers.NewRequestValidator()),
	)
	return &testServer{app: app, db: db}
}

func (s *testServer) user(t *testing.T, name, role string) models.User {
	t.Helper()
	u := models.User{Email: name + "@example.com", Name: name, Role: role, Active: true}
	require.NoError(t, s.db.Create(&u).Error)
	return u
}

func token(t *testing.T, u models.User) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID.String(),
		"email": u.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path string, as *models.User, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *as))
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (s *testServer) submit(t *testing.T, as models.User, targetUser *models.User) string {
	t.Helper()
	body := map[string]interface{}{
		"target_type": "USER",
		"target_id":   "u123",
		"category":    "ABUSE",
		"description": "  This user sent threatening messages.  ",
	}
	if targetUser != nil {
		body["target_user_id"] = targetUser.ID.String()
	}
	resp, out := s.do(t, http.MethodPost, "/api/reports", &as, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	return out["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, out := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReports_RequireToken(t *testing.T) {
	s := newTestServer(t)

	resp, out := s.do(t, http.MethodGet, "/api/reports/my", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, true, out["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/reports/my", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, r.StatusCode)
}

func TestCreateReport(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)

	resp, out := s.do(t, http.MethodPost, "/api/reports", &reporter, map[string]interface{}{
		"target_type": "USER",
		"target_id":   "u123",
		"category":    "ABUSE",
		"description": "  This user sent threatening messages.  ",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "SUBMITTED", out["status"])
	assert.Equal(t, "This user sent threatening messages.", out["description"])
	assert.Equal(t, reporter.ID.String(), out["reporter_id"])

	var notes []models.Notification
	require.NoError(t, s.db.Where("user_id = ?", reporter.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Report Submitted", notes[0].Title)
}

func TestCreateReport_Validation(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)

	tests := []struct {
		name    string
		body    map[string]interface{}
		message string
	}{
		{
			name:    "missing target",
			body:    map[string]interface{}{"target_type": "USER", "category": "FRAUD", "description": "long enough text"},
			message: "Target type and ID are required",
		},
		{
			name:    "missing category",
			body:    map[string]interface{}{"target_type": "USER", "target_id": "u1", "description": "long enough text"},
			message: "Category is required",
		},
		{
			name:    "short description",
			body:    map[string]interface{}{"target_type": "USER", "target_id": "u1", "category": "FRAUD", "description": "short"},
			message: "Description must be at least 10 characters",
		},
		{
			name:    "unknown category",
			body:    map[string]interface{}{"target_type": "USER", "target_id": "u1", "category": "SPAM", "description": "long enough text"},
			message: "Invalid category",
		},
		{
			name: "malformed target user",
			body: map[string]interface{}{
				"target_type": "USER", "target_id": "u1", "category": "FRAUD",
				"description": "long enough text", "target_user_id": "nope",
			},
			message: "target_user_id must be a valid UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := s.do(t, http.MethodPost, "/api/reports", &reporter, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.message, out["message"])
		})
	}

	var count int64
	require.NoError(t, s.db.Model(&models.Report{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetMyReports(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)

	for i := 0; i < 3; i++ {
		s.submit(t, alice, nil)
	}
	s.submit(t, bob, nil)

	resp, out := s.do(t, http.MethodGet, "/api/reports/my?page=2&limit=2", &alice, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, out["total"])
	assert.EqualValues(t, 2, out["page"])
	assert.EqualValues(t, 2, out["limit"])
	assert.EqualValues(t, 2, out["total_pages"])
	assert.Len(t, out["reports"], 1)

	resp, out = s.do(t, http.MethodGet, "/api/reports/my?limit=500&page=0", &alice, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 100, out["limit"])
	assert.EqualValues(t, 1, out["page"])

	resp, _ = s.do(t, http.MethodGet, "/api/reports/my?status=OPEN", &alice, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetReport_Access(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)
	other := s.user(t, "other", models.RoleUser)
	admin := s.user(t, "admin", models.RoleUser)
	roleAdmin := s.user(t, "moderator", models.RoleAdmin)

	id := s.submit(t, reporter, nil)

	resp, out := s.do(t, http.MethodGet, "/api/reports/"+id, &reporter, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, id, out["id"])
	assert.NotNil(t, out["reporter"])

	resp, out = s.do(t, http.MethodGet, "/api/reports/"+id, &other, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You do not have permission to view this report", out["message"])

	resp, _ = s.do(t, http.MethodGet, "/api/reports/"+id, &admin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/reports/"+id, &roleAdmin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, out = s.do(t, http.MethodGet, "/api/reports/"+uuid.NewString(), &reporter, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Report not found", out["message"])

	resp, _ = s.do(t, http.MethodGet, "/api/reports/not-a-uuid", &reporter, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "user", models.RoleUser)

	resp, out := s.do(t, http.MethodGet, "/api/admin/reports", &user, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Admin access required", out["message"])
}

func TestAdmin_ListReports(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)
	target := s.user(t, "target", models.RoleUser)
	admin := s.user(t, "admin", models.RoleUser)

	s.submit(t, reporter, &target)
	s.submit(t, reporter, nil)

	resp, out := s.do(t, http.MethodGet, "/api/admin/reports?category=ABUSE", &admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, out["total"])
	reports := out["reports"].([]interface{})
	require.Len(t, reports, 2)
	first := reports[0].(map[string]interface{})
	assert.Contains(t, first, "action_count")
	assert.Contains(t, first, "file_count")

	resp, out = s.do(t, http.MethodGet, "/api/admin/reports?status=RESOLVED", &admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, out["total"])
	assert.EqualValues(t, 0, out["total_pages"])
}

func TestAdmin_UpdateStatus(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)
	admin := s.user(t, "admin", models.RoleUser)
	id := s.submit(t, reporter, nil)

	resp, out := s.do(t, http.MethodPut, "/api/admin/reports/"+id+"/status", &admin, map[string]interface{}{
		"status": "RESOLVED",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot transition from SUBMITTED to RESOLVED", out["message"])

	resp, out = s.do(t, http.MethodPut, "/api/admin/reports/"+id+"/status", &admin, map[string]interface{}{
		"status": "UNDER_REVIEW",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "UNDER_REVIEW", out["status"])
	actions := out["actions"].([]interface{})
	require.Len(t, actions, 1)
	assert.Equal(t, "STATUS_CHANGE", actions[0].(map[string]interface{})["action_type"])
	assert.Equal(t, "Status changed to UNDER_REVIEW", actions[0].(map[string]interface{})["details"])

	resp, _ = s.do(t, http.MethodPut, "/api/admin/reports/"+id+"/status", &admin, map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/admin/reports/"+uuid.NewString()+"/status", &admin, map[string]interface{}{
		"status": "UNDER_REVIEW",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var notes []models.Notification
	require.NoError(t, s.db.Where("user_id = ? AND title = ?", reporter.ID, "Report Status Updated").Find(&notes).Error)
	assert.Len(t, notes, 1)
}

func TestAdmin_TakeActionAndUnsuspend(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)
	target := s.user(t, "target", models.RoleUser)
	admin := s.user(t, "admin", models.RoleUser)

	withTarget := s.submit(t, reporter, &target)
	withoutTarget := s.submit(t, reporter, nil)

	isActive := func() bool {
		var u models.User
		require.NoError(t, s.db.First(&u, "id = ?", target.ID).Error)
		return u.Active
	}

	resp, out := s.do(t, http.MethodPost, "/api/admin/reports/"+withTarget+"/actions", &admin, map[string]interface{}{
		"action_type": "SUSPEND",
		"details":     "Repeated harassment",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	assert.Equal(t, "SUSPEND", out["action_type"])
	assert.False(t, isActive())

	var notes []models.Notification
	require.NoError(t, s.db.Where("user_id = ?", target.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Account Suspended", notes[0].Title)

	resp, out = s.do(t, http.MethodPost, "/api/admin/reports/"+withoutTarget+"/actions", &admin, map[string]interface{}{
		"action_type": "WARNING",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "This report does not have a target user for actions", out["message"])

	resp, out = s.do(t, http.MethodPost, "/api/admin/reports/"+withTarget+"/actions", &admin, map[string]interface{}{
		"action_type": "STATUS_CHANGE",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid action type", out["message"])

	resp, _ = s.do(t, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/unsuspend", &admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, isActive())

	resp, out = s.do(t, http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/unsuspend", &admin, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", out["message"])
}

func TestAdmin_ConfigAdminWithoutUserRow(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)
	target := s.user(t, "target", models.RoleUser)
	ops := models.User{ID: uuid.New(), Email: "ops@example.com"}

	id := s.submit(t, reporter, &target)

	resp, out := s.do(t, http.MethodPut, "/api/admin/reports/"+id+"/status", &ops, map[string]interface{}{
		"status": "UNDER_REVIEW",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "UNDER_REVIEW", out["status"])

	resp, out = s.do(t, http.MethodPost, "/api/admin/reports/"+id+"/actions", &ops, map[string]interface{}{
		"action_type": "WARNING",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	assert.Equal(t, ops.ID.String(), out["admin_id"])
}

func TestCreateReport_EvidenceFiles(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)

	file := models.File{OwnerID: reporter.ID, Name: "chat.png", URL: "https://cdn.example.com/chat.png"}
	require.NoError(t, s.db.Create(&file).Error)

	body := func(fileIDs ...string) map[string]interface{} {
		return map[string]interface{}{
			"target_type": "USER",
			"target_id":   "u123",
			"category":    "FRAUD",
			"description": "The seller never shipped the order.",
			"file_ids":    fileIDs,
		}
	}

	resp, out := s.do(t, http.MethodPost, "/api/reports", &reporter, body(file.ID.String(), uuid.NewString()))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "One or more files do not exist", out["message"])

	var count int64
	require.NoError(t, s.db.Model(&models.Report{}).Count(&count).Error)
	assert.Zero(t, count)

	resp, out = s.do(t, http.MethodPost, "/api/reports", &reporter, body(file.ID.String()))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)

	resp, out = s.do(t, http.MethodGet, "/api/reports/"+out["id"].(string), &reporter, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	files := out["files"].([]interface{})
	require.Len(t, files, 1)
	assert.Equal(t, file.ID.String(), files[0].(map[string]interface{})["file_id"])
}

func TestCreateReport_UnknownTargetUser(t *testing.T) {
	s := newTestServer(t)
	reporter := s.user(t, "reporter", models.RoleUser)

	resp, out := s.do(t, http.MethodPost, "/api/reports", &reporter, map[string]interface{}{
		"target_type":    "USER",
		"target_id":      "u123",
		"target_user_id": uuid.NewString(),
		"category":       "ABUSE",
		"description":    "This user sent threatening messages.",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Target user does not exist", out["message"])
}
