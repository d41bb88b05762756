package middleware

import (
	"database/sql"
	"net/http"

	"charter-reporter/internal/repository"
)

// RBACMiddleware handles role-based access control
type RBACMiddleware struct {
	userRepo *repository.UserRepository
}

// NewRBACMiddleware creates a new RBAC middleware
func NewRBACMiddleware(db *sql.DB) *RBACMiddleware {
	return &RBACMiddleware{
		userRepo: repository.NewUserRepository(db),
	}
}

// RequireRole checks if the user has the required role
func (m *RBACMiddleware) RequireRole(roleName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			roles, err := m.userRepo.GetUserRoles(userID)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
				return
			}

			hasRole := false
			for _, role := range roles {
				if role.Name == roleName {
					hasRole = true
					break
				}
			}

			if !hasRole {
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole checks if the user has any of the required roles
func (m *RBACMiddleware) RequireAnyRole(roleNames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			roles, err := m.userRepo.GetUserRoles(userID)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
				return
			}

			hasRole := false
			for _, role := range roles {
				for _, requiredRole := range roleNames {
					if role.Name == requiredRole {
						hasRole = true
						break
					}
				}
				if hasRole {
					break
				}
			}

			if !hasRole {
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
