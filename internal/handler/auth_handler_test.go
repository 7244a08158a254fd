package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/classbook/classbook-api/internal/middleware"
	"github.com/classbook/classbook-api/internal/models"
	"github.com/classbook/classbook-api/internal/service"
)

type userRepoStub struct {
	byEmail map[string]models.User
	byID    map[string]models.User
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[strings.ToLower(email)]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	user.ID = "u-new"
	return nil
}

func authRouter(repo *userRepoStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	authSvc := service.NewAuthService(repo, nil, nil, service.AuthConfig{AccessTokenSecret: "test-secret"})
	h := NewAuthHandler(authSvc)

	router := gin.New()
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.GET("/auth/me", middleware.JWT(authSvc), h.Me)
	return router
}

func TestAuthRegisterLoginMe(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sup3rsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &userRepoStub{
		byEmail: map[string]models.User{
			"member@example.com": {ID: "u1", Email: "member@example.com", PasswordHash: string(hash), Role: models.RoleMember, Active: true},
		},
		byID: map[string]models.User{
			"u1": {ID: "u1", Email: "member@example.com", FullName: "Member", Role: models.RoleMember, Active: true},
		},
	}
	router := authRouter(repo)

	resp := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"email":"fresh@example.com","password":"sup3rsecret","full_name":"Fresh"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"access_token"`)

	resp = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"member@example.com","password":"sup3rsecret"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	token := extractToken(t, resp.Body.String())
	resp = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"member@example.com"`)
}

func TestAuthLoginBadCredentials(t *testing.T) {
	router := authRouter(&userRepoStub{})

	resp := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ghost@example.com","password":"whatever1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthMeRequiresBearer(t *testing.T) {
	router := authRouter(&userRepoStub{})

	resp := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func extractToken(t *testing.T, body string) string {
	t.Helper()
	const marker = `"access_token":"`
	idx := strings.Index(body, marker)
	require.NotEqual(t, -1, idx)
	rest := body[idx+len(marker):]
	end := strings.Index(rest, `"`)
	require.NotEqual(t, -1, end)
	return rest[:end]
}
