package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/classbook/classbook-api/internal/models"
	appErrors "github.com/classbook/classbook-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]models.User
	usersByID    map[string]models.User
	created      []models.User
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[strings.ToLower(email)]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	m.created = append(m.created, *user)
	return nil
}

func TestRegisterIssuesToken(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "New.User@Example.com",
		Password: "sup3rsecret",
		FullName: "New User",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleMember, resp.User.Role)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "new.user@example.com", repo.created[0].Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("sup3rsecret")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{usersByEmail: map[string]models.User{
		"taken@example.com": {ID: "u1", Email: "taken@example.com"},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "sup3rsecret",
		FullName: "Someone",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginAndValidateToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sup3rsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{usersByEmail: map[string]models.User{
		"member@example.com": {ID: "u1", Email: "member@example.com", PasswordHash: string(hash), Role: models.RoleMember, Active: true},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "member@example.com", Password: "sup3rsecret"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleMember, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sup3rsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{usersByEmail: map[string]models.User{
		"member@example.com": {ID: "u1", Email: "member@example.com", PasswordHash: string(hash), Active: true},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "member@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sup3rsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{usersByEmail: map[string]models.User{
		"member@example.com": {ID: "u1", Email: "member@example.com", PasswordHash: string(hash), Active: false},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "member@example.com", Password: "sup3rsecret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenForeignSecret(t *testing.T) {
	repo := &mockUserRepo{}
	issuer := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret-a"})
	verifier := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret-b"})

	resp, err := issuer.Register(context.Background(), models.RegisterRequest{
		Email:    "user@example.com",
		Password: "sup3rsecret",
		FullName: "User",
	})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(resp.AccessToken)
	assert.Error(t, err)
}

func TestMe(t *testing.T) {
	repo := &mockUserRepo{usersByID: map[string]models.User{
		"u1": {ID: "u1", Email: "member@example.com", FullName: "Member", Role: models.RoleMember},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"})

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", info.Email)

	_, err = svc.Me(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
