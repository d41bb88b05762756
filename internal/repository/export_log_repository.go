package repository

import (
	"database/sql"
	"fmt"
	"time"

	"charter-reporter/internal/models"
)

// ExportLogRepository handles export log database operations
type ExportLogRepository struct {
	db *sql.DB
}

// NewExportLogRepository creates a new export log repository
func NewExportLogRepository(db *sql.DB) *ExportLogRepository {
	return &ExportLogRepository{db: db}
}

// Create records one export attempt, allowed or denied
func (r *ExportLogRepository) Create(log *models.ExportLog) error {
	query := `
		INSERT INTO export_logs (user_id, dataset, row_count, columns, allowed, deny_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		log.UserID,
		log.Dataset,
		log.RowCount,
		log.Columns,
		log.Allowed,
		log.DenyReason,
		now,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create export log: %w", err)
	}

	log.CreatedAt = now
	return nil
}

// GetByUserID retrieves export logs for a specific user, newest first
func (r *ExportLogRepository) GetByUserID(userID uint, limit, offset int) ([]models.ExportLog, error) {
	query := `
		SELECT id, user_id, dataset, row_count, columns, allowed, deny_reason, created_at
		FROM export_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get export logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ExportLog
	for rows.Next() {
		var log models.ExportLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Dataset,
			&log.RowCount,
			&log.Columns,
			&log.Allowed,
			&log.DenyReason,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, nil
}

// GetAll retrieves all export logs with pagination, newest first
func (r *ExportLogRepository) GetAll(limit, offset int) ([]models.ExportLog, error) {
	query := `
		SELECT id, user_id, dataset, row_count, columns, allowed, deny_reason, created_at
		FROM export_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get export logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ExportLog
	for rows.Next() {
		var log models.ExportLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Dataset,
			&log.RowCount,
			&log.Columns,
			&log.Allowed,
			&log.DenyReason,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, nil
}
