package repository

import (
	"database/sql"
	"fmt"
	"time"

	"charter-reporter/internal/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, user_email, action, resource, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRow(
		query,
		log.UserID,
		log.UserEmail,
		log.Action,
		log.Resource,
		log.Details,
		log.IPAddress,
		log.UserAgent,
		time.Now(),
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// AuditFilters holds filter parameters for audit log queries
type AuditFilters struct {
	UserID    *uint
	Action    string
	Resource  string
	SortBy    string
	SortOrder string
}

func (f AuditFilters) where() (string, []interface{}) {
	query := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if f.UserID != nil {
		query += fmt.Sprintf(` AND user_id = $%d`, argPos)
		args = append(args, *f.UserID)
		argPos++
	}
	if f.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argPos)
		args = append(args, f.Action)
		argPos++
	}
	if f.Resource != "" {
		query += fmt.Sprintf(` AND resource = $%d`, argPos)
		args = append(args, f.Resource)
	}

	return query, args
}

// GetAllWithFilters retrieves audit logs with filtering, sorting, and pagination
func (r *AuditRepository) GetAllWithFilters(filters AuditFilters, limit, offset int) ([]models.AuditLog, error) {
	query := `
		SELECT id, user_id, user_email, action, resource, details, ip_address, user_agent, created_at
		FROM audit_logs
	`

	where, args := filters.where()
	query += where

	sortColumn := "created_at"
	switch filters.SortBy {
	case "id":
		sortColumn = "id"
	case "user_id":
		sortColumn = "user_id"
	case "action":
		sortColumn = "action"
	case "resource":
		sortColumn = "resource"
	case "created_at":
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	query += fmt.Sprintf(` ORDER BY %s %s LIMIT $%d OFFSET $%d`, sortColumn, sortOrder, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.UserEmail,
			&log.Action,
			&log.Resource,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, nil
}

// CountWithFilters returns the total count of audit logs matching the filters
func (r *AuditRepository) CountWithFilters(filters AuditFilters) (int, error) {
	query := `SELECT COUNT(*) FROM audit_logs`

	where, args := filters.where()
	query += where

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}

// GetByUserID retrieves audit logs for a specific user
func (r *AuditRepository) GetByUserID(userID uint, limit, offset int) ([]models.AuditLog, error) {
	filters := AuditFilters{UserID: &userID}
	return r.GetAllWithFilters(filters, limit, offset)
}
