package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/config"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"github.com/mehrbod2002/masjidmap/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "api-test-secret"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Error   apperrors.Kind    `json:"error"`
	Fields  map[string]string `json:"fields"`
}

type server struct {
	router   *gin.Engine
	accounts *repository.MemoryAccountRepository
	svc      Services
}

func newServer(t *testing.T, rate string) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()

	accounts := repository.NewMemoryAccountRepository()
	places := repository.NewMemoryPlaceRepository()
	requests := repository.NewMemoryChangeRequestRepository()
	logs := repository.NewMemoryLogRepository()

	logService := service.NewLogService(logs)
	rt := service.Runtime{Logger: logger, Metrics: service.NewMetrics(reg), Audit: logService}
	placeService := service.NewPlaceService(places, rt)
	requestService := service.NewChangeRequestService(requests, accounts, places, repository.NewMemoryTransactor(), rt)
	svc := Services{
		Accounts:  service.NewAccountService(accounts, rt),
		Places:    placeService,
		Proximity: service.NewProximityService(places, rt),
		Gate:      service.NewGateService(placeService, requestService, rt),
		Requests:  requestService,
		Logs:      logService,
	}

	cfg := &config.Config{
		JWTSecret:           testSecret,
		JWTTTL:              time.Hour,
		NearbyDefaultRadius: 5000,
		NearbyMaxRadius:     100000,
		RateLimit:           rate,
		CORSOrigins:         []string{"*"},
		SwaggerFile:         "docs/swagger.json",
	}
	hub := ws.NewHub(logger)
	r := gin.New()
	require.NoError(t, SetupRoutes(r, cfg, svc, ws.NewWebSocketHandler(hub, svc.Accounts, testSecret, cfg.CORSOrigins), reg, logger))
	return &server{router: r, accounts: accounts, svc: svc}
}

func (s *server) token(t *testing.T, name string, role models.Role) (string, *models.Account) {
	t.Helper()
	account := &models.Account{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	require.NoError(t, s.accounts.SaveAccount(context.Background(), account))
	token, err := middleware.GenerateJWT(account.ID, testSecret, time.Hour)
	require.NoError(t, err)
	return token, account
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
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

	var env envelope
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func placeBody(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":      name,
		"address":   "7 Mosque Lane",
		"latitude":  51.5074,
		"longitude": -0.1278,
		"prayerTimes": map[string]string{
			"fajr": "04:10", "dhuhr": "13:05", "asr": "17:15", "maghrib": "20:55", "isha": "22:20",
		},
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type mutationBody struct {
	Applied bool `json:"applied"`
	Masjid  *struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"masjid"`
	Request *struct {
		ID          string `json:"_id"`
		Type        string `json:"type"`
		Status      string `json:"status"`
		RequestedBy struct {
			Name string `json:"name"`
		} `json:"requestedBy"`
	} `json:"request"`
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newServer(t, "100-M")

	code, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Aisha", "email": "Aisha@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	reg := decode[AuthResponse](t, env.Data)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, models.RoleUser, reg.User.Role)
	assert.Equal(t, "aisha@example.com", reg.User.Email)
	assert.NotContains(t, string(env.Data), "password")

	code, env = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "aisha@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperrors.KindConflict, env.Error)

	code, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "aisha@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "aisha@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	login := decode[AuthResponse](t, env.Data)

	code, env = s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, reg.User.ID, decode[models.Account](t, env.Data).ID)
}

func TestUnauthenticatedMutationRejected(t *testing.T) {
	s := newServer(t, "100-M")
	code, env := s.do(t, http.MethodPost, "/api/masjids", "", placeBody("Central"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperrors.KindAuthenticationRequired, env.Error)
}

func TestMainAdminCreatesDirectly(t *testing.T) {
	s := newServer(t, "100-M")
	token, _ := s.token(t, "root", models.RoleMainAdmin)

	code, env := s.do(t, http.MethodPost, "/api/masjids", token, placeBody("Central"))
	require.Equal(t, http.StatusCreated, code, env.Message)
	body := decode[mutationBody](t, env.Data)
	assert.True(t, body.Applied)
	require.NotNil(t, body.Masjid)
	assert.Equal(t, "Central", body.Masjid.Name)

	code, env = s.do(t, http.MethodGet, "/api/masjids/"+body.Masjid.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	place := decode[models.Place](t, env.Data)
	assert.Equal(t, []float64{-0.1278, 51.5074}, place.Location.Coordinates)

	code, env = s.do(t, http.MethodDelete, "/api/masjids/"+body.Masjid.ID, token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.True(t, decode[mutationBody](t, env.Data).Applied)

	code, _ = s.do(t, http.MethodGet, "/api/masjids/"+body.Masjid.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNullCoordinatesRejected(t *testing.T) {
	s := newServer(t, "100-M")
	root, _ := s.token(t, "root", models.RoleMainAdmin)
	user, _ := s.token(t, "user", models.RoleUser)

	body := placeBody("Nowhere")
	body["latitude"] = nil
	delete(body, "longitude")

	code, env := s.do(t, http.MethodPost, "/api/masjids", root, body)
	require.Equal(t, http.StatusBadRequest, code, env.Message)
	assert.Contains(t, env.Fields, "latitude")
	assert.Contains(t, env.Fields, "longitude")

	code, env = s.do(t, http.MethodPost, "/api/requests", user, map[string]interface{}{"type": "add_place", "masjidData": body})
	require.Equal(t, http.StatusBadRequest, code, env.Message)

	code, env = s.do(t, http.MethodGet, "/api/masjids", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestUserProposalApprovedByMainAdmin(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	userToken, _ := s.token(t, "yusuf", models.RoleUser)

	code, env := s.do(t, http.MethodPost, "/api/masjids", userToken, placeBody("Proposed"))
	require.Equal(t, http.StatusAccepted, code, env.Message)
	body := decode[mutationBody](t, env.Data)
	assert.False(t, body.Applied)
	require.NotNil(t, body.Request)
	assert.Equal(t, "add_place", body.Request.Type)
	assert.Equal(t, "pending", body.Request.Status)
	assert.Equal(t, "yusuf", body.Request.RequestedBy.Name)

	code, env = s.do(t, http.MethodGet, "/api/masjids", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.Place](t, env.Data))

	code, env = s.do(t, http.MethodGet, "/api/requests?status=pending", rootToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 1)

	code, env = s.do(t, http.MethodPut, "/api/requests/"+body.Request.ID+"/process", rootToken, map[string]string{
		"status": "approved", "adminResponse": "welcome",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"status":"approved"`)

	code, env = s.do(t, http.MethodPut, "/api/requests/"+body.Request.ID+"/resolve", rootToken, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperrors.KindInvalidState, env.Error)

	code, env = s.do(t, http.MethodGet, "/api/masjids", "", nil)
	require.Equal(t, http.StatusOK, code)
	places := decode[[]models.Place](t, env.Data)
	require.Len(t, places, 1)
	assert.Equal(t, "Proposed", places[0].Name)
}

func TestAdminDeleteRefusedWithoutRequest(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	adminToken, _ := s.token(t, "moderator", models.RoleAdmin)

	_, env := s.do(t, http.MethodPost, "/api/masjids", rootToken, placeBody("Keep"))
	id := decode[mutationBody](t, env.Data).Masjid.ID

	code, env := s.do(t, http.MethodDelete, "/api/masjids/"+id, adminToken, map[string]string{"reason": "closed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, apperrors.KindPermission, env.Error)

	_, env = s.do(t, http.MethodGet, "/api/requests", rootToken, nil)
	assert.Empty(t, decode[[]json.RawMessage](t, env.Data))
}

func TestSubmitRequestEndpoint(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	userToken, user := s.token(t, "zaid", models.RoleUser)
	otherToken, _ := s.token(t, "omar", models.RoleUser)

	code, env := s.do(t, http.MethodPost, "/api/requests", userToken, map[string]string{"type": "admin_access"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "reason")

	code, env = s.do(t, http.MethodPost, "/api/requests", userToken, map[string]string{"type": "promote", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "type")

	code, env = s.do(t, http.MethodPost, "/api/requests", userToken, map[string]string{"type": "admin_access", "reason": "I help moderate"})
	require.Equal(t, http.StatusAccepted, code, env.Message)
	requestID := decode[mutationBody](t, env.Data).Request.ID

	code, env = s.do(t, http.MethodPost, "/api/requests", rootToken, map[string]string{"type": "admin_access", "reason": "more"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/requests", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/requests/my-requests", userToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 1)

	code, env = s.do(t, http.MethodGet, "/api/requests?status=withdrawn", rootToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodDelete, "/api/requests/"+requestID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodDelete, "/api/requests/"+requestID, userToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"status":"withdrawn"`)

	code, env = s.do(t, http.MethodGet, "/api/requests/my-requests", userToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]json.RawMessage](t, env.Data))

	stored, err := s.accounts.GetAccountByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestNearbyEndpoints(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	_, env := s.do(t, http.MethodPost, "/api/masjids", rootToken, placeBody("London"))
	require.True(t, env.Success, env.Message)

	code, env := s.do(t, http.MethodGet, "/api/masjids/nearby?latitude=51.5080&longitude=-0.1281&maxDistance=1000", "", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Len(t, decode[[]models.Place](t, env.Data), 1)

	code, env = s.do(t, http.MethodGet, "/api/masjids?near=48.8566,2.3522&radius=10000", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.Place](t, env.Data))

	code, env = s.do(t, http.MethodGet, "/api/masjids/nearby?latitude=95&longitude=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperrors.KindValidation, env.Error)

	code, _ = s.do(t, http.MethodGet, "/api/masjids/nearby?latitude=51&longitude=0&maxDistance=500000", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/masjids?near=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetRoleAndLogs(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	userToken, user := s.token(t, "hana", models.RoleUser)

	code, _ := s.do(t, http.MethodPut, "/api/auth/users/"+user.ID.Hex()+"/role", userToken, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodPut, "/api/auth/users/"+user.ID.Hex()+"/role", rootToken, map[string]string{"role": "main_admin"})
	assert.Equal(t, http.StatusBadRequest, code, env.Message)

	code, env = s.do(t, http.MethodPut, "/api/auth/users/"+user.ID.Hex()+"/role", rootToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, models.RoleAdmin, decode[models.Account](t, env.Data).Role)

	code, env = s.do(t, http.MethodGet, "/api/auth/users", rootToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Account](t, env.Data), 2)

	code, env = s.do(t, http.MethodGet, "/api/admin/logs?limit=10", rootToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotEmpty(t, decode[[]models.LogEntry](t, env.Data))

	code, _ = s.do(t, http.MethodGet, "/api/admin/logs?page=x", rootToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/admin/logs", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAuthRateLimited(t *testing.T) {
	s := newServer(t, "2-M")
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	var codes []int
	for i := 0; i < 3; i++ {
		code, _ := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
		codes = append(codes, code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestMetricsExposed(t *testing.T) {
	s := newServer(t, "100-M")
	userToken, _ := s.token(t, "sara", models.RoleUser)
	s.do(t, http.MethodPost, "/api/masjids", userToken, placeBody("Queued"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gate_decisions_total{operation="create",outcome="queued",role="user"} 1`)
}

func TestOverview(t *testing.T) {
	s := newServer(t, "100-M")
	rootToken, _ := s.token(t, "root", models.RoleMainAdmin)
	userToken, _ := s.token(t, "bilal", models.RoleUser)
	s.token(t, "mod", models.RoleAdmin)

	s.do(t, http.MethodPost, "/api/masjids", rootToken, placeBody("Direct"))
	s.do(t, http.MethodPost, "/api/masjids", userToken, placeBody("Queued"))
	s.do(t, http.MethodPost, "/api/requests", userToken, map[string]string{"type": "admin_access", "reason": "help"})

	code, env := s.do(t, http.MethodGet, "/api/admin/overview", rootToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	overview := decode[OverviewResponse](t, env.Data)
	assert.Equal(t, 1, overview.Places)
	assert.Equal(t, map[models.Role]int{models.RoleUser: 1, models.RoleAdmin: 1, models.RoleMainAdmin: 1}, overview.Accounts)
	assert.Equal(t, 2, overview.Requests[models.StatusPending])
	assert.Equal(t, 1, overview.PendingByType[models.RequestAddPlace])
	assert.Equal(t, 1, overview.PendingByType[models.RequestAdminAccess])

	code, _ = s.do(t, http.MethodGet, "/api/admin/overview", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
}
