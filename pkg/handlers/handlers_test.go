package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/kindnest/kindnest-api/internal/donations"
	"github.com/kindnest/kindnest-api/internal/scheduling"
	"github.com/kindnest/kindnest-api/pkg/auth"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/metrics"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
)

const (
	adminEmail    = "admin@kindnest.test"
	adminPassword = "admin-pass"
	serviceSecret = "service-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
	auth.HashCost = bcrypt.MinCost
}

type testServer struct {
	router *gin.Engine
	h      *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.InitDB(database.Options{
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	store := database.NewStore(db)
	require.NoError(t, auth.EnsureAdminExists(context.Background(), store, adminEmail, adminPassword))

	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := metrics.New()
	d := notify.NewDispatcher(log, m, notify.LogNotifier{Log: log})
	sched := scheduling.NewService(store, scheduling.Options{Notifier: d, Metrics: m, Logger: log})
	h := &Handler{
		Store:           store,
		Auth:            auth.New("jwt-secret", serviceSecret, time.Hour),
		Donations:       donations.NewService(store, sched, d, m, log),
		Schedules:       sched,
		Notifier:        d,
		Metrics:         m,
		Log:             log,
		AdminSecretCode: "letmein",
	}
	t.Cleanup(func() {
		d.Wait()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	r := NewRouter(h, RouterOptions{StaleScheduleAge: 24 * time.Hour, Version: "test"})
	return &testServer{router: r, h: h}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (s *testServer) doList(t *testing.T, method, path, token string) (int, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var out []map[string]any
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	code, body := s.do(t, "POST", "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	return body["access_token"].(string)
}

func (s *testServer) registerDonor(t *testing.T, email string) string {
	t.Helper()
	code, body := s.do(t, "POST", "/api/auth/register", "", gin.H{
		"name": "Dana Donor", "email": email, "password": "secret1", "phone": "555-0100",
	})
	require.Equal(t, http.StatusOK, code, body)
	return body["access_token"].(string)
}

func (s *testServer) createNeed(t *testing.T, admin string, goal int) string {
	t.Helper()
	code, body := s.do(t, "POST", "/api/needs", admin, gin.H{
		"title": "Winter coats", "description": "Coats for kids", "category": "clothes", "goal": goal,
	})
	require.Equal(t, http.StatusCreated, code, body)
	return body["id"].(string)
}

func (s *testServer) createVolunteer(t *testing.T, admin, name, phone, avail string) string {
	t.Helper()
	code, body := s.do(t, "POST", "/api/volunteers", admin, gin.H{
		"name": name, "phone": phone, "role": models.DriverRole, "availability": avail,
	})
	require.Equal(t, http.StatusCreated, code, body)
	return body["volunteer"].(map[string]any)["id"].(string)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	token := s.registerDonor(t, "dana@example.com")

	code, body := s.do(t, "POST", "/api/auth/register", "", gin.H{
		"name": "Again", "email": "DANA@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User already exists", body["error"])

	code, body = s.do(t, "GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.RoleDonor, body["role"])

	code, body = s.do(t, "POST", "/api/auth/login", "", gin.H{"email": "dana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["error"])

	code, _ = s.do(t, "GET", "/api/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterAdminRequiresSecretCode(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "POST", "/api/auth/register", "", gin.H{
		"name": "Eve", "email": "eve@example.com", "password": "secret1", "role": "admin", "adminCode": "guess",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, "POST", "/api/auth/register", "", gin.H{
		"name": "Ada", "email": "ada@example.com", "password": "secret1", "role": "admin", "adminCode": "letmein",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, models.RoleAdmin, body["user"].(map[string]any)["role"])
}

func TestRoleGating(t *testing.T) {
	s := newTestServer(t)
	donor := s.registerDonor(t, "dana@example.com")

	tests := []struct {
		method, path string
	}{
		{"POST", "/api/needs"},
		{"GET", "/api/donations"},
		{"GET", "/api/schedules"},
		{"GET", "/api/volunteers"},
		{"GET", "/api/inventory"},
	}
	for _, tt := range tests {
		code, body := s.do(t, tt.method, tt.path, donor, gin.H{})
		if code != http.StatusForbidden {
			t.Errorf("%s %s as donor: got %d, want 403", tt.method, tt.path, code)
		}
		if body["error"] != "Access denied" {
			t.Errorf("%s %s as donor: error = %v", tt.method, tt.path, body["error"])
		}
	}

	code, _ := s.do(t, "GET", "/api/needs", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDonationOverGoalIsConflict(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	donor := s.registerDonor(t, "dana@example.com")
	needID := s.createNeed(t, admin, 10)

	donate := func(qty int) (int, map[string]any) {
		return s.do(t, "POST", "/api/donations", donor, gin.H{
			"needId": needID, "type": "physical", "items": "coats", "quantity": qty,
			"scheduleData": gin.H{"date": "2025-01-08", "time": "12:00", "deliveryMethod": "drop-off"},
		})
	}

	code, body := donate(4)
	require.Equal(t, http.StatusCreated, code, body)
	assert.NotNil(t, body["schedule"])

	code, body = donate(7)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "This need only requires 6 more items. The goal is 10 items and 4 have already been donated.", body["error"])

	code, body = s.do(t, "GET", "/api/needs/"+needID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["current"])
}

func TestPickupLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	donor := s.registerDonor(t, "dana@example.com")
	needID := s.createNeed(t, admin, 10)
	v1 := s.createVolunteer(t, admin, "Val", "555-0201", "Weekdays 09:00 - 17:00")
	s.createVolunteer(t, admin, "Walt", "555-0202", "Sat, Sun 09:00 - 17:00")

	code, body := s.do(t, "POST", "/api/donations", donor, gin.H{
		"needId": needID, "type": "physical", "items": "coats", "quantity": 3,
		"scheduleData": gin.H{"date": "2025-01-08", "time": "12:00", "deliveryMethod": "pickup", "address": "1 Main St"},
	})
	require.Equal(t, http.StatusCreated, code, body)
	schedID := body["schedule"].(map[string]any)["id"].(string)

	code, body = s.do(t, "GET", "/api/schedules/"+schedID+"/eligible", admin, nil)
	require.Equal(t, http.StatusOK, code, body)
	eligible := body["eligible"].([]any)
	require.Len(t, eligible, 1)
	assert.Equal(t, v1, eligible[0].(map[string]any)["id"])
	assert.Equal(t, "Wednesday", body["day"])

	code, body = s.do(t, "PUT", "/api/schedules/"+schedID+"/assign", admin, gin.H{"volunteerId": v1})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "confirmed", body["status"])
	_, hasOTP := body["otp"]
	assert.False(t, hasOTP, "code must not be exposed to the admin response")

	code, _ = s.do(t, "PUT", "/api/schedules/"+schedID+"/assign", admin, gin.H{"volunteerId": v1})
	assert.Equal(t, http.StatusConflict, code)

	code, mine := s.doList(t, "GET", "/api/schedules/mine", donor)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, mine, 1)
	otp, _ := mine[0]["otp"].(string)
	require.Len(t, otp, 6)

	code, body = s.do(t, "POST", "/api/auth/volunteer-login", "", gin.H{"phone": "555-0201"})
	require.Equal(t, http.StatusOK, code, body)
	vol := body["access_token"].(string)

	code, body = s.do(t, "POST", "/api/auth/volunteer-login", "", gin.H{"phone": "555-0202"})
	require.Equal(t, http.StatusOK, code, body)
	other := body["access_token"].(string)

	code, assigned := s.doList(t, "GET", "/api/schedules/assigned", vol)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, assigned, 1)

	code, body = s.do(t, "PUT", "/api/schedules/"+schedID+"/status", other, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied", body["error"])

	code, body = s.do(t, "PUT", "/api/schedules/"+schedID+"/status", vol, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusConflict, code, body)

	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}
	code, body = s.do(t, "POST", "/api/schedules/"+schedID+"/verify-otp", vol, gin.H{"otp": wrong})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid code", body["error"])

	code, body = s.do(t, "POST", "/api/schedules/"+schedID+"/verify-otp", vol, gin.H{"otp": otp})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["verified"])

	code, body = s.do(t, "PUT", "/api/schedules/"+schedID+"/status", vol, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["status"])

	code, _ = s.do(t, "PUT", "/api/schedules/"+schedID+"/status", admin, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestEligibleVolunteersFallsBackToRoster(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	s.createVolunteer(t, admin, "Walt", "555-0202", "Sat, Sun 09:00 - 17:00")

	code, body := s.do(t, "GET", "/api/volunteers/eligible?date=2025-01-08&time=12:00", admin, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "No volunteers available at this time", body["message"])
	assert.Len(t, body["roster"], 1)

	code, body = s.do(t, "GET", "/api/volunteers/eligible?date=2025-01-08&time=noon", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, _ = s.do(t, "GET", "/api/volunteers/eligible?date=tomorrow&time=12:00", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidateAvailability(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "POST", "/api/volunteers/availability/validate", "", gin.H{"availability": "mon, wed 10:00-14:00"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "10:00", body["start"])
	assert.Equal(t, "14:00", body["end"])
	assert.Equal(t, []any{"Monday", "Wednesday"}, body["days"])

	code, body = s.do(t, "POST", "/api/volunteers/availability/validate", "", gin.H{"availability": "whenever"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
}

func TestRegisterVolunteerNeedsApproval(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	code, body := s.do(t, "POST", "/api/volunteers/register", "", gin.H{
		"name": "Pat", "phone": "555-0300", "role": models.DriverRole, "availability": "sometime",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.NotEmpty(t, body["warning"])
	id := body["volunteer"].(map[string]any)["id"].(string)

	code, _ = s.do(t, "POST", "/api/auth/volunteer-login", "", gin.H{"phone": "555-0300"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, "POST", "/api/volunteers/register", "", gin.H{
		"name": "Pat Again", "phone": "555-0300", "role": models.DriverRole,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, "PUT", "/api/volunteers/"+id, admin, gin.H{"status": "active", "availability": "Weekends 10:00 - 12:00"})
	require.Equal(t, http.StatusOK, code, body)

	code, _ = s.do(t, "POST", "/api/auth/volunteer-login", "", gin.H{"phone": "555-0300"})
	assert.Equal(t, http.StatusOK, code)
}

func TestInventoryCRUD(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	code, body := s.do(t, "POST", "/api/inventory", admin, gin.H{"name": "Coats", "category": "weapons", "quantity": 1, "location": "A1"})
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = s.do(t, "POST", "/api/inventory", admin, gin.H{"name": "Coats", "category": "clothes", "quantity": 4, "location": "A1"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)

	code, body = s.do(t, "PUT", "/api/inventory/"+id, admin, gin.H{"quantity": 9})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 9, body["quantity"])

	code, _ = s.do(t, "DELETE", "/api/inventory/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, "DELETE", "/api/inventory/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSweepRequiresServiceKey(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "POST", "/ops/schedules/sweep", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, "POST", "/ops/schedules/sweep", "cron.deadbeef", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	key, err := s.h.Auth.GenerateServiceKey("cron")
	require.NoError(t, err)
	code, body := s.do(t, "POST", "/ops/schedules/sweep", key, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 0, body["updated"])

	code, _ = s.do(t, "POST", "/ops/schedules/sweep?age=soon", key, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
