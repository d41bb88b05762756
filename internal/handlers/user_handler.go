package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"charter-reporter/internal/middleware"
	"charter-reporter/internal/models"
	"charter-reporter/internal/repository"
	"charter-reporter/internal/service"
	"charter-reporter/pkg/validator"
)

// UserHandler handles user management requests
type UserHandler struct {
	userRepo *repository.UserRepository
	roleRepo *repository.RoleRepository
	auditMw  *middleware.AuditMiddleware
	authSvc  *service.AuthService
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	auditMw *middleware.AuditMiddleware,
	authSvc *service.AuthService,
) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		roleRepo: roleRepo,
		auditMw:  auditMw,
		authSvc:  authSvc,
	}
}

func (h *UserHandler) buildUserListResponse(users []models.User) []map[string]interface{} {
	var userList []map[string]interface{}
	for _, user := range users {
		roles, err := h.userRepo.GetUserRoles(user.ID)
		if err != nil {
			roles = []models.Role{}
		}

		userList = append(userList, map[string]interface{}{
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
	return userList
}

// parsePaginationParams parses and validates pagination parameters from the request
func parsePaginationParams(r *http.Request) (page, limit, offset int) {
	page = 1
	limit = 20

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

	offset = (page - 1) * limit
	return page, limit, offset
}

// parseUserFilters parses filter parameters from the request
func parseUserFilters(r *http.Request) repository.UserFilters {
	filters := repository.UserFilters{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	if roleIDsStr := r.URL.Query().Get("role_ids"); roleIDsStr != "" {
		for _, idStr := range strings.Split(roleIDsStr, ",") {
			if id, err := strconv.Atoi(strings.TrimSpace(idStr)); err == nil {
				filters.RoleIDs = append(filters.RoleIDs, id)
			}
		}
	}

	if activeStr := r.URL.Query().Get("is_active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filters.IsActive = &active
		}
	}

	return filters
}

// ListUsers lists all users with pagination and filters (admin only)
// @Summary List users
// @Description Get a paginated, filterable list of all users (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param search query string false "Search in name and email"
// @Param role_ids query string false "Comma-separated role IDs"
// @Param is_active query bool false "Filter by active status"
// @Param sort_by query string false "Sort by field"
// @Param sort_order query string false "Sort order (asc, desc)"
// @Success 200 {object} map[string]interface{} "Paginated users"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/users/list [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePaginationParams(r)
	filters := parseUserFilters(r)

	total, err := h.userRepo.CountWithFilters(filters)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to count users")
		return
	}

	users, err := h.userRepo.GetAllWithFilters(filters, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"users": h.buildUserListResponse(users),
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUser gets a user by ID (admin only)
// @Summary Get user by ID
// @Description Get any user's information by ID (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id query int true "User ID"
// @Success 200 {object} map[string]interface{} "User information with roles"
// @Failure 400 {object} map[string]string "Invalid user ID"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/get [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.userRepo.GetByID(uint(id))
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	roles, _ := h.userRepo.GetUserRoles(uint(id))

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"is_active":     user.IsActive,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
		"roles":         roles,
	})
}

// UpdateUserActiveStatus activates or deactivates a user (admin only)
// @Summary Update user active status
// @Description Activate or deactivate a user account (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "user_id and is_active"
// @Success 200 {object} map[string]string "User status updated"
// @Failure 400 {object} map[string]string "Invalid request or last active admin"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/update-status [post]
func (h *UserHandler) UpdateUserActiveStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   uint `json:"user_id"`
		IsActive bool `json:"is_active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.userRepo.GetByID(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	// Never deactivate the last active admin
	if !req.IsActive {
		isLastAdmin, err := h.userRepo.IsLastActiveAdmin(req.UserID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to verify admin status")
			return
		}
		if isLastAdmin {
			respondWithError(w, http.StatusBadRequest, "Cannot deactivate the last active admin")
			return
		}
	}

	if err := h.userRepo.UpdateActiveStatus(req.UserID, req.IsActive); err != nil {
		actorID, _ := middleware.GetUserID(r)
		_ = h.auditMw.LogAction(&actorID, "user.status.update.error", "users", "User status update failed: "+err.Error(), getIP(r), r.UserAgent())
		respondWithError(w, http.StatusInternalServerError, "Failed to update user status")
		return
	}

	// Revoke sessions so a deactivated user is signed out everywhere
	if !req.IsActive {
		_ = h.authSvc.InvalidateAllUserSessions(req.UserID)
	}

	actorID, _ := middleware.GetUserID(r)
	statusStr := "inactive"
	if req.IsActive {
		statusStr = "active"
	}
	_ = h.auditMw.LogAction(&actorID, "user.status.update", "users",
		"User "+user.Email+" status changed to "+statusStr, getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User status updated successfully",
	})
}

// AssignRole assigns a role to a user (admin only)
// @Summary Assign role to user
// @Description Assign a role to a user (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "user_id and role_id"
// @Success 200 {object} map[string]string "Role assigned successfully"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "User or role not found"
// @Router /admin/users/assign-role [post]
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uint `json:"user_id"`
		RoleID uint `json:"role_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.userRepo.GetByID(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	role, err := h.roleRepo.GetByID(req.RoleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Role not found")
		return
	}

	if err := h.userRepo.AssignRole(req.UserID, req.RoleID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to assign role")
		return
	}

	actorID, _ := middleware.GetUserID(r)
	_ = h.auditMw.LogAction(&actorID, "user.role.assign", "users",
		"Role "+role.Name+" assigned to "+user.Email, getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Role assigned successfully",
	})
}

// RemoveRole removes a role from a user (admin only)
// @Summary Remove role from user
// @Description Remove a role from a user (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "user_id and role_id"
// @Success 200 {object} map[string]string "Role removed successfully"
// @Failure 400 {object} map[string]string "Invalid request or last active admin"
// @Failure 404 {object} map[string]string "User or role not found"
// @Router /admin/users/remove-role [post]
func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uint `json:"user_id"`
		RoleID uint `json:"role_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.userRepo.GetByID(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	role, err := h.roleRepo.GetByID(req.RoleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Role not found")
		return
	}

	// Taking the admin role away from the last active admin would lock
	// everyone out
	if role.Name == models.RoleCharterAdmin {
		isLastAdmin, err := h.userRepo.IsLastActiveAdmin(req.UserID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to verify admin status")
			return
		}
		if isLastAdmin {
			respondWithError(w, http.StatusBadRequest, "Cannot remove the admin role from the last active admin")
			return
		}
	}

	if err := h.userRepo.RemoveRole(req.UserID, req.RoleID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to remove role")
		return
	}

	actorID, _ := middleware.GetUserID(r)
	_ = h.auditMw.LogAction(&actorID, "user.role.remove", "users",
		"Role "+role.Name+" removed from "+user.Email, getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Role removed successfully",
	})
}

// ListRoles lists all roles (admin only)
// @Summary List roles
// @Description Get all assignable roles (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Role "Roles"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /admin/roles/list [get]
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleRepo.GetAll()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve roles")
		return
	}

	respondWithJSON(w, http.StatusOK, roles)
}

// ChangePasswordRequest represents a password change for the own account
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword changes the authenticated user's password
// @Summary Change own password
// @Description Change the password of the authenticated user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} map[string]string "Password changed"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Wrong current password"
// @Router /users/password/change [post]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authSvc.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	_ = h.auditMw.LogAction(&userID, "user.password.change", "users", "Password changed", getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// DeleteUser deletes a user (admin only)
// @Summary Delete user
// @Description Permanently delete a user account (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "user_id"
// @Success 200 {object} map[string]string "User deleted"
// @Failure 400 {object} map[string]string "Invalid request or last active admin"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/delete [post]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uint `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.userRepo.GetByID(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	isLastAdmin, err := h.userRepo.IsLastActiveAdmin(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to verify admin status")
		return
	}
	if isLastAdmin {
		respondWithError(w, http.StatusBadRequest, "Cannot delete the last active admin")
		return
	}

	_ = h.authSvc.InvalidateAllUserSessions(req.UserID)

	if err := h.userRepo.Delete(req.UserID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	actorID, _ := middleware.GetUserID(r)
	_ = h.auditMw.LogAction(&actorID, "user.delete", "users",
		"User "+user.Email+" deleted", getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted successfully",
	})
}
