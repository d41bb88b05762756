package handlers

import (
	"net/http"
	"strings"

	"charter-reporter/internal/middleware"
	"charter-reporter/internal/repository"
	"charter-reporter/internal/service"
)

// SessionHandler handles session management requests
type SessionHandler struct {
	sessionRepo *repository.SessionRepository
	authService *service.AuthService
	auditMw     *middleware.AuditMiddleware
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessionRepo *repository.SessionRepository,
	authService *service.AuthService,
	auditMw *middleware.AuditMiddleware,
) *SessionHandler {
	return &SessionHandler{
		sessionRepo: sessionRepo,
		authService: authService,
		auditMw:     auditMw,
	}
}

// GetMySessions gets the current user's active sessions
// @Summary Get user sessions
// @Description Get all active sessions for the authenticated user
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} object "List of active sessions"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /users/sessions [get]
func (h *SessionHandler) GetMySessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	sessions, err := h.sessionRepo.GetByUserID(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get sessions")
		return
	}

	// Access and refresh tokens of one login share a session_id; collapse
	// them into one entry
	seen := make(map[string]bool)
	var result []map[string]interface{}
	for _, session := range sessions {
		if seen[session.SessionID] {
			continue
		}
		seen[session.SessionID] = true
		result = append(result, map[string]interface{}{
			"session_id": session.SessionID,
			"created_at": session.CreatedAt,
			"ip_address": session.IPAddress,
			"user_agent": session.UserAgent,
			"expires_at": session.ExpiresAt,
		})
	}

	respondWithJSON(w, http.StatusOK, result)
}

// DeleteAllMySessions deletes all sessions except the current one
// @Summary Delete all user sessions except current
// @Description Sign out everywhere else, keeping the current session alive
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "All other sessions deleted"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /users/sessions/delete-all [delete]
func (h *SessionHandler) DeleteAllMySessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" || token == authHeader {
		respondWithError(w, http.StatusUnauthorized, "Invalid authorization header")
		return
	}

	currentJTI, err := h.authService.ExtractJTI(token)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	currentSession, err := h.sessionRepo.GetByJTI(currentJTI)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get current session")
		return
	}

	sessions, err := h.sessionRepo.GetByUserID(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get sessions")
		return
	}

	for _, session := range sessions {
		if session.SessionID != currentSession.SessionID {
			_ = h.sessionRepo.DeleteBySessionID(session.SessionID)
		}
	}

	_ = h.auditMw.LogAction(&userID, "session.delete.all", "sessions", "User deleted all other sessions", getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "All other sessions deleted",
	})
}
