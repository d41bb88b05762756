package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"charter-reporter/internal/auth"
	"charter-reporter/internal/models"
	"charter-reporter/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")
)

// AuthService handles authentication business logic. Accounts are only
// created through the registration approval flow, never directly here.
type AuthService struct {
	userRepo    *repository.UserRepository
	roleRepo    *repository.RoleRepository
	sessionRepo *repository.SessionRepository
	authSvc     *auth.Service
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	sessionRepo *repository.SessionRepository,
	authSvc *auth.Service,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		sessionRepo: sessionRepo,
		authSvc:     authSvc,
	}
}

// Login authenticates a user and returns JWT tokens with their JTIs
func (s *AuthService) Login(email, password string) (accessToken, refreshToken, accessJTI, refreshJTI string, user *models.User, err error) {
	user, err = s.userRepo.GetByEmail(email)
	if err != nil {
		return "", "", "", "", nil, ErrInvalidCredentials
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return "", "", "", "", nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return "", "", "", "", nil, ErrUserInactive
	}

	accessToken, accessJTI, err = s.authSvc.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, refreshJTI, err = s.authSvc.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	_ = s.userRepo.UpdateLastLogin(user.ID)

	return accessToken, refreshToken, accessJTI, refreshJTI, user, nil
}

// ChangePassword verifies the current password and stores a new hash
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.authSvc.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(userID, hash)
}

// ExtractJTI reads the JTI claim out of a token without validating it
func (s *AuthService) ExtractJTI(token string) (string, error) {
	return s.authSvc.ExtractJTI(token)
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// GetUserRoles retrieves all roles for a user
func (s *AuthService) GetUserRoles(userID uint) ([]models.Role, error) {
	return s.userRepo.GetUserRoles(userID)
}

// CreateSession records an issued token JTI so it can be revoked later
func (s *AuthService) CreateSession(userID uint, sessionID, jti, tokenType, ipAddress, userAgent string, expiresAt time.Time) error {
	id, err := auth.GenerateRandomToken(16)
	if err != nil {
		return fmt.Errorf("failed to generate session entry ID: %w", err)
	}

	session := &models.Session{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		JTI:       jti,
		TokenType: tokenType,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	return s.sessionRepo.Create(session)
}

// GenerateSessionID generates a unique session identifier
func (s *AuthService) GenerateSessionID() (string, error) {
	return auth.GenerateRandomToken(16)
}

// RefreshToken rotates a refresh token: the old session pair is revoked
// and a fresh access and refresh token are issued.
func (s *AuthService) RefreshToken(refreshToken, ipAddress, userAgent string) (accessToken, newRefreshToken string, user *models.User, err error) {
	claims, err := s.authSvc.ValidateToken(refreshToken)
	if err != nil {
		return "", "", nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	if claims.ID == "" {
		return "", "", nil, errors.New("token missing JTI")
	}

	session, err := s.sessionRepo.GetByJTI(claims.ID)
	if err != nil {
		return "", "", nil, fmt.Errorf("session not found or expired: %w", err)
	}

	if session.UserID != claims.UserID {
		return "", "", nil, errors.New("session user mismatch")
	}

	if session.TokenType != "refresh" {
		return "", "", nil, errors.New("invalid token type")
	}

	user, err = s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return "", "", nil, fmt.Errorf("user not found: %w", err)
	}
	if !user.IsActive {
		return "", "", nil, ErrUserInactive
	}

	_ = s.sessionRepo.DeleteBySessionID(session.SessionID)

	newSessionID, err := auth.GenerateRandomToken(16)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	accessToken, accessJTI, err := s.authSvc.GenerateToken(claims.UserID, claims.Email)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	var refreshJTI string
	newRefreshToken, refreshJTI, err = s.authSvc.GenerateRefreshToken(claims.UserID, claims.Email)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.CreateSession(claims.UserID, newSessionID, refreshJTI, "refresh", ipAddress, userAgent, time.Now().Add(7*24*time.Hour)); err != nil {
		return "", "", nil, fmt.Errorf("failed to create refresh session: %w", err)
	}

	if err := s.CreateSession(claims.UserID, newSessionID, accessJTI, "access", ipAddress, userAgent, time.Now().Add(24*time.Hour)); err != nil {
		slog.Warn("failed to create access token session", "error", err)
	}

	return accessToken, newRefreshToken, user, nil
}

// InvalidateCurrentSession revokes the access and refresh tokens minted by
// the login the given token belongs to. The JTI is extracted without
// validation so expired tokens can still log out.
func (s *AuthService) InvalidateCurrentSession(token string) error {
	jti, err := s.authSvc.ExtractJTI(token)
	if err != nil {
		return fmt.Errorf("failed to extract JTI: %w", err)
	}

	session, err := s.sessionRepo.GetByJTI(jti)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	return s.sessionRepo.DeleteBySessionID(session.SessionID)
}

// InvalidateAllUserSessions invalidates all sessions for a user
func (s *AuthService) InvalidateAllUserSessions(userID uint) error {
	return s.sessionRepo.DeleteAllUserSessions(userID)
}
