package routes_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/logger"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/realtime"
	"ehealthwave-server/internal/routes"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/storage"
	"ehealthwave-server/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type server struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	cfg    *config.Config
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := logger.Discard()
	cfg := &config.Config{
		Environment:       "test",
		JWTSecret:         "test-secret",
		SessionCookieName: "session",
		Uploads:           config.UploadConfig{Dir: t.TempDir(), MaxSizeMB: 1, MaxRequest: 1 << 20},
	}
	files, err := storage.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.MaxRequest)
	require.NoError(t, err)
	hub := realtime.NewHub(log)
	svc := services.New(services.Deps{
		DB:          db,
		Files:       files,
		Broadcaster: hub,
		Log:         log,
		SessionTTL:  time.Hour,
	})

	router := gin.New()
	ws := realtime.NewHandler(hub, hub, svc.Messaging, "*", log)
	routes.SetupRoutes(router, svc, ws, cfg, log)
	return &server{t: t, db: db, router: router, cfg: cfg}
}

func (s *server) do(method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *server) json(method, path, token string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(s.t, err)
	return s.do(method, path, token, bytes.NewReader(data), "application/json")
}

func (s *server) form(method, path, token string, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	require.NoError(s.t, mw.Close())
	return s.do(method, path, token, &buf, mw.FormDataContentType())
}

func (s *server) login(username string) string {
	s.t.Helper()
	w, env := s.json(http.MethodPost, "/login", "", gin.H{"username": username, "password": testutil.Password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.t, "Logged in", env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(s.t, data.Token)
	return data.Token
}

func TestWorkdayCreatedThenRejectedAsDuplicate(t *testing.T) {
	s := newServer(t)
	testutil.Doctor(t, s.db, "dr_days")
	token := s.login("dr_days")

	body := gin.H{"day": "monday", "start_time": "09:00", "end_time": "17:00"}
	w, env := s.json(http.MethodPost, "/doctor/workdays/create", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Workday created", env.Message)

	w, env = s.json(http.MethodPost, "/doctor/workdays/create", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Day already exists", env.Message)
	assert.Equal(t, "CONFLICT", env.Code)

	w, env = s.json(http.MethodGet, "/doctor/dr_days/workdays", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var days []models.WorkingHours
	require.NoError(t, json.Unmarshal(env.Data, &days))
	require.Len(t, days, 1)
	assert.Equal(t, "Monday", days[0].Day)
}

func TestAppointmentCreatedThenRejectedAsDuplicate(t *testing.T) {
	s := newServer(t)
	testutil.Doctor(t, s.db, "dr_appt")
	testutil.Patient(t, s.db, "pat_appt")
	token := s.login("dr_appt")

	body := gin.H{
		"username":                "pat_appt",
		"appointment_name":        "Follow-up",
		"appointment_type":        "telemedicine",
		"appointment_date":        "2025-06-10",
		"appointment_time":        "14:30:00",
		"appointment_description": "Check results",
	}
	w, env := s.json(http.MethodPost, "/doctor/appointment/create", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Appointment created", env.Message)

	body["appointment_name"] = "Follow-up again"
	w, env = s.json(http.MethodPost, "/doctor/appointment/create", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Appointment already exists", env.Message)

	patientToken := s.login("pat_appt")
	w, env = s.json(http.MethodGet, "/patient/appointments", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []models.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "doctor", views[0].Source)
}

func TestCertificateWithIssueAfterExpiryRejected(t *testing.T) {
	s := newServer(t)
	testutil.Doctor(t, s.db, "dr_certs")
	token := s.login("dr_certs")

	w, env := s.form(http.MethodPost, "/doctor/certificate/create", token, map[string]string{
		"certificate_name":   "Board",
		"certificate_number": "B-1",
		"issue_date":         "2025-01-02",
		"expiry_date":        "2025-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Issue date cannot be greater than expiry date", env.Message)
	assert.Equal(t, env.Message, env.Error)

	var count int64
	require.NoError(t, s.db.Model(&models.Certificate{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMessageToUnknownRoomRejected(t *testing.T) {
	s := newServer(t)
	testutil.Doctor(t, s.db, "dr_room")
	token := s.login("dr_room")

	w, env := s.json(http.MethodPost, "/chat/does-not-exist/messages", token, gin.H{"message": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid room ID", env.Message)

	var count int64
	require.NoError(t, s.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChatRoundTrip(t *testing.T) {
	s := newServer(t)
	testutil.Doctor(t, s.db, "dr_talk")
	testutil.Patient(t, s.db, "pat_talk")
	doctorToken := s.login("dr_talk")
	patientToken := s.login("pat_talk")

	w, _ := s.json(http.MethodPost, "/chat/create", patientToken, gin.H{"username": "pat_talk"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.json(http.MethodPost, "/chat/create", doctorToken, gin.H{"username": "pat_talk"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var room models.ChatRoom
	require.NoError(t, json.Unmarshal(env.Data, &room))

	w, env = s.json(http.MethodPost, "/chat/"+room.ID+"/messages", patientToken, gin.H{"message": "Hello doctor"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"senderUsername":"pat_talk"`)

	w, env = s.json(http.MethodGet, "/chat/"+room.ID+"/messages", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []models.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello doctor", messages[0].Body)
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newServer(t)

	w, env := s.json(http.MethodPost, "/register", "", gin.H{
		"username": "newbie", "password": "pa55word", "email": "newbie@example.com", "role": "patient",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "User created", env.Message)
	assert.NotContains(t, w.Body.String(), "pa55word")

	w, env = s.json(http.MethodPost, "/register", "", gin.H{
		"username": "newbie2", "password": "pa55word", "email": "newbie2@example.com", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", env.Code)

	w, _ = s.json(http.MethodPost, "/login", "", gin.H{"username": "newbie", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.json(http.MethodPost, "/login", "", gin.H{"username": "newbie", "password": "pa55word"})
	require.Equal(t, http.StatusOK, w.Code)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"newbie"`)

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	s := newServer(t)
	testutil.Patient(t, s.db, "pat_role")
	token := s.login("pat_role")

	w, _ := s.json(http.MethodPost, "/doctor/workdays/create", token, gin.H{"day": "Monday", "start_time": "09:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.json(http.MethodPost, "/redcross/appointment/create", token, gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.json(http.MethodGet, "/patient/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRedCrossMirrorsDoctorRoutes(t *testing.T) {
	s := newServer(t)
	testutil.RedCross(t, s.db, "rc_mirror")
	testutil.Patient(t, s.db, "pat_mirror")
	token := s.login("rc_mirror")

	w, _ := s.json(http.MethodPost, "/redcross/workdays/create", token, gin.H{"day": "friday", "start_time": "08:00", "end_time": "12:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.json(http.MethodPut, "/redcross/workdays/active/Friday", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Workday deactivated", env.Message)

	w, _ = s.json(http.MethodPost, "/redcross/appointment/create", token, gin.H{
		"username":         "pat_mirror",
		"appointment_name": "Blood drive",
		"appointment_type": "in-person",
		"appointment_date": "2025-07-01",
		"appointment_time": "08:30:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = s.form(http.MethodPost, "/redcross/appointment/documents/create", token, map[string]string{
		"appointment_name": "Blood drive",
		"document_name":    "Donor form",
		"document_type":    "form",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Document created", env.Message)

	w, _ = s.json(http.MethodPost, "/redcross/medical-history/create", token, gin.H{"username": "pat_mirror"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.json(http.MethodGet, "/redcross/profile/rc_mirror", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(string(env.Data), "Red Cross rc_mirror"))
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}
