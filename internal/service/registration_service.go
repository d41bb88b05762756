package service

import (
	"errors"
	"fmt"
	"log/slog"

	"charter-reporter/internal/auth"
	"charter-reporter/internal/email"
	"charter-reporter/internal/models"
	"charter-reporter/internal/repository"
)

var (
	ErrRegistrationExists = errors.New("a request for this email is already pending")
	ErrUnknownRole        = errors.New("unknown role requested")
)

// RegistrationService handles the access request workflow: applicants file
// a request, a Charter admin approves or rejects it, and approval creates
// the account with the requested role.
type RegistrationService struct {
	registrationRepo *repository.RegistrationRepository
	userRepo         *repository.UserRepository
	roleRepo         *repository.RoleRepository
	authSvc          *auth.Service
	emailSvc         *email.Service
	auditSvc         *AuditService
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	registrationRepo *repository.RegistrationRepository,
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	authSvc *auth.Service,
	emailSvc *email.Service,
	auditSvc *AuditService,
) *RegistrationService {
	return &RegistrationService{
		registrationRepo: registrationRepo,
		userRepo:         userRepo,
		roleRepo:         roleRepo,
		authSvc:          authSvc,
		emailSvc:         emailSvc,
		auditSvc:         auditSvc,
	}
}

// Submit files a new pending registration request. The password is hashed
// immediately; the plaintext is never stored.
func (s *RegistrationService) Submit(emailAddr, password, firstName, lastName, requestedRole string) (*models.RegistrationRequest, error) {
	if requestedRole != models.RoleCharterAdmin && requestedRole != models.RoleRebosaAdmin {
		return nil, ErrUnknownRole
	}

	if existing, _ := s.userRepo.GetByEmail(emailAddr); existing != nil {
		return nil, repository.ErrUserExists
	}

	pending, err := s.registrationRepo.HasPendingByEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrRegistrationExists
	}

	passwordHash, err := s.authSvc.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	req := &models.RegistrationRequest{
		Email:         emailAddr,
		PasswordHash:  passwordHash,
		FirstName:     firstName,
		LastName:      lastName,
		RequestedRole: requestedRole,
	}

	if err := s.registrationRepo.Create(req); err != nil {
		return nil, err
	}

	if err := s.emailSvc.SendRegistrationReceived(emailAddr, firstName); err != nil {
		slog.Warn("failed to send registration confirmation", "email", emailAddr, "error", err)
	}
	s.notifyAdmins(req)

	return req, nil
}

// notifyAdmins emails every active Charter admin about a new request.
func (s *RegistrationService) notifyAdmins(req *models.RegistrationRequest) {
	admins, err := s.roleRepo.GetUsersByRole(models.RoleCharterAdmin)
	if err != nil {
		slog.Warn("failed to look up admins for registration notice", "error", err)
		return
	}
	name := req.FirstName + " " + req.LastName
	for _, admin := range admins {
		if !admin.IsActive {
			continue
		}
		if err := s.emailSvc.SendNewRegistrationNotice(admin.Email, name, req.Email, req.RequestedRole); err != nil {
			slog.Warn("failed to send registration notice", "admin", admin.Email, "error", err)
		}
	}
}

// Pending lists pending requests, oldest first.
func (s *RegistrationService) Pending(limit, offset int) ([]models.RegistrationRequest, int, error) {
	requests, err := s.registrationRepo.GetPending(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.registrationRepo.CountPending()
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Approve turns a pending request into an active account with the
// requested role and notifies the applicant.
func (s *RegistrationService) Approve(requestID, decidedBy uint) (*models.User, error) {
	req, err := s.registrationRepo.GetByID(requestID)
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.GetByName(req.RequestedRole)
	if err != nil {
		return nil, fmt.Errorf("requested role not found: %w", err)
	}

	if err := s.registrationRepo.Decide(requestID, decidedBy, models.RegistrationApproved); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create approved user: %w", err)
	}

	if err := s.userRepo.AssignRole(user.ID, role.ID); err != nil {
		slog.Error("failed to assign role to approved user", "user_id", user.ID, "role", role.Name, "error", err)
	}

	if err := s.emailSvc.SendRegistrationApproved(user.Email, user.FirstName); err != nil {
		slog.Warn("failed to send approval email", "email", user.Email, "error", err)
	}

	s.auditSvc.Log(decidedBy, "registration.approved", "registrations",
		fmt.Sprintf("Request %d approved, user %d created with role %s", requestID, user.ID, role.Name))

	return user, nil
}

// Reject declines a pending request and notifies the applicant.
func (s *RegistrationService) Reject(requestID, decidedBy uint) error {
	req, err := s.registrationRepo.GetByID(requestID)
	if err != nil {
		return err
	}

	if err := s.registrationRepo.Decide(requestID, decidedBy, models.RegistrationRejected); err != nil {
		return err
	}

	if err := s.emailSvc.SendRegistrationRejected(req.Email, req.FirstName); err != nil {
		slog.Warn("failed to send rejection email", "email", req.Email, "error", err)
	}

	s.auditSvc.Log(decidedBy, "registration.rejected", "registrations",
		fmt.Sprintf("Request %d rejected", requestID))

	return nil
}
