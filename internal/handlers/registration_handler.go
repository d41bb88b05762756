package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"charter-reporter/internal/middleware"
	"charter-reporter/internal/repository"
	"charter-reporter/internal/service"
	"charter-reporter/pkg/validator"
)

// RegistrationHandler handles account registration requests and their review
type RegistrationHandler struct {
	registrationService *service.RegistrationService
	auditMw             *middleware.AuditMiddleware
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrationService *service.RegistrationService, auditMw *middleware.AuditMiddleware) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		auditMw:             auditMw,
	}
}

// SubmitRegistrationRequest represents a registration submission
type SubmitRegistrationRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name" validate:"required"`
	RequestedRole string `json:"requested_role" validate:"required"`
}

// DecideRegistrationRequest identifies the registration request to decide
type DecideRegistrationRequest struct {
	RequestID uint `json:"request_id" validate:"required"`
}

// Submit handles a new registration request
// @Summary Submit a registration request
// @Description Request an account. An administrator reviews and approves or rejects the request.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body SubmitRegistrationRequest true "Registration details"
// @Success 202 {object} map[string]string "Request accepted for review"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Already registered or pending"
// @Router /registrations/submit [post]
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.registrationService.Submit(req.Email, req.Password, req.FirstName, req.LastName, req.RequestedRole)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRegistrationExists):
			respondWithError(w, http.StatusConflict, "An account or pending request already exists for this email")
		case errors.Is(err, service.ErrUnknownRole):
			respondWithError(w, http.StatusBadRequest, "Unknown requested role")
		default:
			slog.Error("Registration submission failed", "email", req.Email, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to submit registration request")
		}
		return
	}

	slog.Info("Registration request submitted", "request_id", request.ID, "email", request.Email, "role", request.RequestedRole)
	_ = h.auditMw.LogAction(nil, "registration.submit", "registrations", "Registration requested for "+request.Email, getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "Registration request submitted. You will receive an email once it has been reviewed.",
	})
}

// Pending lists pending registration requests
// @Summary List pending registration requests
// @Description Get pending registration requests awaiting review (admin only)
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {object} map[string]interface{} "Paginated pending requests"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/registrations/pending [get]
func (h *RegistrationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	requests, total, err := h.registrationService.Pending(limit, (page-1)*limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve registration requests")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// Approve approves a pending registration request
// @Summary Approve a registration request
// @Description Approve a pending request, creating the user account (admin only)
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DecideRegistrationRequest true "Request to approve"
// @Success 200 {object} map[string]interface{} "Created user"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Request already decided"
// @Router /admin/registrations/approve [post]
func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req DecideRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.registrationService.Approve(req.RequestID, adminID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRegistrationNotFound):
			respondWithError(w, http.StatusNotFound, "Registration request not found")
		case errors.Is(err, repository.ErrRegistrationDecided):
			respondWithError(w, http.StatusConflict, "Registration request has already been decided")
		default:
			slog.Error("Registration approval failed", "request_id", req.RequestID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to approve registration request")
		}
		return
	}

	slog.Info("Registration request approved", "request_id", req.RequestID, "user_id", user.ID, "approved_by", adminID)
	_ = h.auditMw.LogAction(&adminID, "registration.approve", "registrations",
		"Approved registration request "+strconv.FormatUint(uint64(req.RequestID), 10)+" for "+user.Email, getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Registration request approved",
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"is_active":  user.IsActive,
		},
	})
}

// Reject rejects a pending registration request
// @Summary Reject a registration request
// @Description Reject a pending request (admin only)
// @Tags Registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DecideRegistrationRequest true "Request to reject"
// @Success 200 {object} map[string]string "Request rejected"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Request already decided"
// @Router /admin/registrations/reject [post]
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req DecideRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := h.registrationService.Reject(req.RequestID, adminID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRegistrationNotFound):
			respondWithError(w, http.StatusNotFound, "Registration request not found")
		case errors.Is(err, repository.ErrRegistrationDecided):
			respondWithError(w, http.StatusConflict, "Registration request has already been decided")
		default:
			slog.Error("Registration rejection failed", "request_id", req.RequestID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to reject registration request")
		}
		return
	}

	slog.Info("Registration request rejected", "request_id", req.RequestID, "rejected_by", adminID)
	_ = h.auditMw.LogAction(&adminID, "registration.reject", "registrations",
		"Rejected registration request "+strconv.FormatUint(uint64(req.RequestID), 10), getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Registration request rejected",
	})
}
