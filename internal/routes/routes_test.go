package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/auth"
	"github.com/limistah/conciliation-service/internal/config"
	"github.com/limistah/conciliation-service/internal/database"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/locking"
	"github.com/limistah/conciliation-service/internal/logger"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:      config.AppConfig{Environment: "production", JWTSecret: "test-secret"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Admin:    config.AdminConfig{Name: "Admin", Email: "Admin@Example.com", Password: "admin-password"},
		Reconciliation: config.ReconciliationConfig{
			AmountTolerance: matching.DefaultTolerance().Amount,
			DayTolerance:    matching.DefaultTolerance().Days,
		},
	}
	log := logger.NewWithWriter("info", &bytes.Buffer{})

	db, err := database.Initialize(cfg, log)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, Dependencies{
		UseCases:   usecases.NewUseCases(repositories.NewRepositories(db), locking.NewMemoryLocker(), cfg.Reconciliation, log),
		JWTService: auth.NewJWTService(cfg.App.JWTSecret, "conciliation-service"),
		Tolerance:  matching.DefaultTolerance(),
		DB:         sqlDB,
	})
	return router
}

func call(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func login(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	resp := call(router, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var response struct {
		Data dto.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &response))
	require.NotEmpty(t, response.Data.Token)
	return response.Data.Token
}

func TestSetupRoutes_AdminDeactivatesTerminal(t *testing.T) {
	router := setupRouter(t)

	adminToken := login(t, router, "admin@example.com", "admin-password")

	resp := call(router, http.MethodPost, "/api/v1/terminals", adminToken,
		`{"name":"Loja Centro","serial_number":"PAX-0001"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created struct {
		Data dto.TerminalResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = call(router, http.MethodPost, "/api/v1/auth/register", "",
		`{"name":"Operadora","email":"ops@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	operatorToken := login(t, router, "ops@example.com", "secret123")

	path := "/api/v1/terminals/" + strconv.FormatUint(uint64(created.Data.ID), 10)

	resp = call(router, http.MethodDelete, path, operatorToken, "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = call(router, http.MethodDelete, path, adminToken, "")
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = call(router, http.MethodGet, path, operatorToken, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var fetched struct {
		Data dto.TerminalResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fetched))
	assert.False(t, fetched.Data.Active)
}

func TestSetupRoutes_SystemAccountCannotLogin(t *testing.T) {
	router := setupRouter(t)

	resp := call(router, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"system@conciliation.internal","password":"system-account-password"}`)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

