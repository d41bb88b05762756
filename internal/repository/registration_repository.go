package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"charter-reporter/internal/models"
)

var (
	ErrRegistrationNotFound = errors.New("registration request not found")
	ErrRegistrationDecided  = errors.New("registration request already decided")
)

// RegistrationRepository handles registration request database operations
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create creates a new pending registration request
func (r *RegistrationRepository) Create(req *models.RegistrationRequest) error {
	query := `
		INSERT INTO registration_requests (email, password_hash, first_name, last_name, requested_role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	req.Status = models.RegistrationPending
	err := r.db.QueryRow(
		query,
		req.Email,
		req.PasswordHash,
		req.FirstName,
		req.LastName,
		req.RequestedRole,
		req.Status,
		now,
		now,
	).Scan(&req.ID)

	if err != nil {
		return fmt.Errorf("failed to create registration request: %w", err)
	}

	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

// GetByID retrieves a registration request by ID
func (r *RegistrationRepository) GetByID(id uint) (*models.RegistrationRequest, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, requested_role,
		       status, decided_by, decided_at, created_at, updated_at
		FROM registration_requests
		WHERE id = $1
	`

	req := &models.RegistrationRequest{}
	err := r.db.QueryRow(query, id).Scan(
		&req.ID,
		&req.Email,
		&req.PasswordHash,
		&req.FirstName,
		&req.LastName,
		&req.RequestedRole,
		&req.Status,
		&req.DecidedBy,
		&req.DecidedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration request: %w", err)
	}

	return req, nil
}

// HasPendingByEmail reports whether a pending request already exists for an email
func (r *RegistrationRepository) HasPendingByEmail(email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM registration_requests
			WHERE email = $1 AND status = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(query, email, models.RegistrationPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending registration: %w", err)
	}
	return exists, nil
}

// GetPending retrieves pending registration requests, oldest first
func (r *RegistrationRepository) GetPending(limit, offset int) ([]models.RegistrationRequest, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, requested_role,
		       status, decided_by, decided_at, created_at, updated_at
		FROM registration_requests
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, models.RegistrationPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending registrations: %w", err)
	}
	defer rows.Close()

	var requests []models.RegistrationRequest
	for rows.Next() {
		var req models.RegistrationRequest
		if err := rows.Scan(
			&req.ID,
			&req.Email,
			&req.PasswordHash,
			&req.FirstName,
			&req.LastName,
			&req.RequestedRole,
			&req.Status,
			&req.DecidedBy,
			&req.DecidedAt,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, nil
}

// CountPending returns the number of pending registration requests
func (r *RegistrationRepository) CountPending() (int, error) {
	query := `SELECT COUNT(*) FROM registration_requests WHERE status = $1`

	var count int
	err := r.db.QueryRow(query, models.RegistrationPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending registrations: %w", err)
	}
	return count, nil
}

// Decide marks a pending request approved or rejected. Requests that have
// already been decided are left untouched and reported as a conflict.
func (r *RegistrationRepository) Decide(id, decidedBy uint, status string) error {
	query := `
		UPDATE registration_requests
		SET status = $1, decided_by = $2, decided_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.Exec(query, status, decidedBy, time.Now(), id, models.RegistrationPending)
	if err != nil {
		return fmt.Errorf("failed to decide registration request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to decide registration request: %w", err)
	}
	if affected == 0 {
		return ErrRegistrationDecided
	}

	return nil
}
