package scheduler

import (
	"log/slog"
	"time"

	"charter-reporter/internal/config"
	"charter-reporter/internal/email"
	"charter-reporter/internal/models"
	"charter-reporter/internal/repository"
)

// Scheduler handles periodic maintenance tasks: purging expired sessions
// and reminding administrators about registration requests that are still
// waiting for a decision.
type Scheduler struct {
	sessionRepo      *repository.SessionRepository
	registrationRepo *repository.RegistrationRepository
	roleRepo         *repository.RoleRepository
	emailService     *email.Service
	config           *config.SchedulerConfig
	stopChan         chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(
	sessionRepo *repository.SessionRepository,
	registrationRepo *repository.RegistrationRepository,
	roleRepo *repository.RoleRepository,
	emailService *email.Service,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		sessionRepo:      sessionRepo,
		registrationRepo: registrationRepo,
		roleRepo:         roleRepo,
		emailService:     emailService,
		config:           cfg,
		stopChan:         make(chan bool),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"session_cleanup_interval", s.config.SessionCleanupInterval,
		"pending_reminders_enabled", s.config.EnablePendingReminders)

	go s.runIntervalTask(s.config.SessionCleanupInterval, "session_cleanup", s.cleanupExpiredSessions)

	if s.config.EnablePendingReminders {
		go s.runIntervalTask(s.config.PendingReminderInterval, "pending_registration_reminders", s.sendPendingReminders)
	}

	slog.Info("Scheduler started")
}

// Stop stops all scheduled tasks
func (s *Scheduler) Stop() {
	close(s.stopChan)
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) runIntervalTask(interval time.Duration, taskName string, task func()) {
	if interval <= 0 {
		slog.Warn("Scheduler task disabled, interval not positive", "task", taskName)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			slog.Debug("Running scheduled task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// cleanupExpiredSessions removes sessions whose tokens can no longer be
// used anyway
func (s *Scheduler) cleanupExpiredSessions() {
	if err := s.sessionRepo.DeleteExpiredSessions(); err != nil {
		slog.Error("Expired session cleanup failed", "error", err)
		return
	}
	slog.Debug("Expired sessions cleaned up")
}

// sendPendingReminders emails every active administrator when registration
// requests are waiting for review
func (s *Scheduler) sendPendingReminders() {
	count, err := s.registrationRepo.CountPending()
	if err != nil {
		slog.Error("Pending registration count failed", "error", err)
		return
	}
	if count == 0 {
		return
	}

	admins, err := s.roleRepo.GetUsersByRole(models.RoleCharterAdmin)
	if err != nil {
		slog.Error("Admin lookup failed for pending reminders", "error", err)
		return
	}

	for _, admin := range admins {
		if !admin.IsActive {
			continue
		}
		if err := s.emailService.SendPendingRegistrationsReminder(admin.Email, count); err != nil {
			slog.Error("Pending registration reminder failed", "to", admin.Email, "error", err)
		}
	}

	slog.Info("Pending registration reminders sent", "pending", count, "admins", len(admins))
}
