package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charter-reporter/internal/auth"
	"charter-reporter/internal/config"
	"charter-reporter/internal/models"
)

// AuthHelper wraps a real token service with an ephemeral signing key, so
// handler tests exercise the same validation path production uses.
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{
		Service: auth.NewService(&config.JWTConfig{
			Expiration:        time.Hour,
			RefreshExpiration: 24 * time.Hour,
		}),
	}
}

// GenerateToken issues an access token for the user, recording its JTI in
// the sessions table so the session check in the auth middleware passes.
func (h *AuthHelper) GenerateToken(t *testing.T, tc *TestContainers, user *models.User) string {
	t.Helper()

	token, jti, err := h.Service.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	sessionID, err := auth.GenerateRandomToken(16)
	if err != nil {
		t.Fatalf("Failed to generate session id: %v", err)
	}
	_, err = tc.DB.Exec(`
		INSERT INTO sessions (id, user_id, session_id, jti, token_type, expires_at, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, 'access', $5, $6, '127.0.0.1', 'test')`,
		jti, user.ID, sessionID, jti, time.Now().Add(time.Hour), time.Now(),
	)
	if err != nil {
		t.Fatalf("Failed to record session: %v", err)
	}

	return token
}

// AddAuthHeader adds an authorization header to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, tc *TestContainers, req *http.Request, user *models.User) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+h.GenerateToken(t, tc, user))
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// AssertStatusOK asserts 200 OK
func (r *TestResponse) AssertStatusOK(t *testing.T) {
	r.AssertStatus(t, http.StatusOK)
}

// AssertStatusUnauthorized asserts 401 Unauthorized
func (r *TestResponse) AssertStatusUnauthorized(t *testing.T) {
	r.AssertStatus(t, http.StatusUnauthorized)
}

// AssertStatusForbidden asserts 403 Forbidden
func (r *TestResponse) AssertStatusForbidden(t *testing.T) {
	r.AssertStatus(t, http.StatusForbidden)
}

// AssertStatusBadRequest asserts 400 Bad Request
func (r *TestResponse) AssertStatusBadRequest(t *testing.T) {
	r.AssertStatus(t, http.StatusBadRequest)
}
