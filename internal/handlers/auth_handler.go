package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"charter-reporter/internal/middleware"
	"charter-reporter/internal/service"
	"charter-reporter/pkg/validator"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
	auditMw     *middleware.AuditMiddleware
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, auditMw *middleware.AuditMiddleware) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		auditMw:     auditMw,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Description Authenticate user and return JWT tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Login successful with tokens"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	accessToken, refreshToken, accessJTI, refreshJTI, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Email, "error", err, "ip", getIP(r))
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		_ = h.auditMw.LogAction(nil, "user.login.failed", "users", "Failed login attempt for "+req.Email, getIP(r), r.UserAgent())
		return
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "email", user.Email, "ip", getIP(r))
	_ = h.auditMw.LogAction(&user.ID, "user.login", "users", "User logged in", getIP(r), r.UserAgent())

	// Generate a session ID that links the access and refresh tokens
	sessionID, err := h.authService.GenerateSessionID()
	if err != nil {
		_ = h.auditMw.LogAction(&user.ID, "user.login.session.error", "users", "Session ID generation failed during login", getIP(r), r.UserAgent())
		respondWithError(w, http.StatusInternalServerError, "Failed to generate session ID")
		return
	}

	// Create session for refresh token
	if err := h.authService.CreateSession(user.ID, sessionID, refreshJTI, "refresh", getIP(r), r.UserAgent(), time.Now().Add(7*24*time.Hour)); err != nil {
		_ = h.auditMw.LogAction(&user.ID, "user.login.session.error", "users", "Session creation failed during login", getIP(r), r.UserAgent())
		respondWithError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// Create session for access token (linked via same sessionID)
	_ = h.authService.CreateSession(user.ID, sessionID, accessJTI, "access", getIP(r), r.UserAgent(), time.Now().Add(24*time.Hour))

	// Set refresh token as HTTP-only cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     AuthAPIBasePath,
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		Secure:   r.TLS != nil, // Only send over HTTPS in production
		SameSite: http.SameSiteStrictMode,
	})

	roles, _ := h.authService.GetUserRoles(user.ID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    86400, // 24 hours in seconds
		"user": map[string]interface{}{
			"id":            user.ID,
			"email":         user.Email,
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"is_active":     user.IsActive,
			"last_login_at": user.LastLoginAt,
			"created_at":    user.CreatedAt,
			"updated_at":    user.UpdatedAt,
			"roles":         roles,
		},
	})
}

// RefreshToken handles token refresh requests
// @Summary Refresh access token
// @Description Get a new access token using refresh token from cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "New access token"
// @Failure 401 {object} map[string]string "Invalid refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	accessToken, newRefreshToken, user, err := h.authService.RefreshToken(cookie.Value, getIP(r), r.UserAgent())
	if err != nil {
		_ = h.auditMw.LogAction(nil, "user.token.refresh.error", "users", "Token refresh failed: "+err.Error(), getIP(r), r.UserAgent())
		// Clear invalid cookie
		http.SetCookie(w, &http.Cookie{
			Name:     "refresh_token",
			Value:    "",
			Path:     AuthAPIBasePath,
			MaxAge:   -1,
			HttpOnly: true,
		})
		respondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    newRefreshToken,
		Path:     AuthAPIBasePath,
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	roles, _ := h.authService.GetUserRoles(user.ID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": newRefreshToken,
		"token_type":    "Bearer",
		"expires_in":    86400, // 24 hours in seconds
		"user": map[string]interface{}{
			"id":            user.ID,
			"email":         user.Email,
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"is_active":     user.IsActive,
			"last_login_at": user.LastLoginAt,
			"created_at":    user.CreatedAt,
			"updated_at":    user.UpdatedAt,
			"roles":         roles,
		},
	})
}

// Logout handles user logout
// @Summary User logout
// @Description Clear refresh token cookie and invalidate session
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, hasUserID := middleware.GetUserID(r)

	cookie, err := r.Cookie("refresh_token")
	if err == nil && cookie.Value != "" {
		// Invalidate only the current session (access + refresh tokens from this login)
		if err := h.authService.InvalidateCurrentSession(cookie.Value); err != nil {
			slog.Error("Failed to invalidate session during logout", "error", err)
			if hasUserID {
				_ = h.auditMw.LogAction(&userID, "user.logout.error", "users", "Failed to invalidate session: "+err.Error(), getIP(r), r.UserAgent())
			}
		}
	}

	if hasUserID {
		slog.Info("User logged out", "user_id", userID, "ip", getIP(r))
		_ = h.auditMw.LogAction(&userID, "user.logout", "users", "User logged out", getIP(r), r.UserAgent())
	}

	// Clear refresh token cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     AuthAPIBasePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated user's profile
// @Summary Get current user
// @Description Get the profile and roles of the authenticated user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Current user"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	roles, _ := h.authService.GetUserRoles(user.ID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"is_active":     user.IsActive,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
		"roles":         roles,
	})
}
