package models

import (
	"time"
)

// Role names seeded by the migrations.
const (
	RoleCharterAdmin = "CharterAdmin"
	RoleRebosaAdmin  = "RebosaAdmin"
)

// Registration request states.
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// User represents an application account
type User struct {
	ID           uint       `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Role represents a user role
type Role struct {
	ID          uint      `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole represents the many-to-many relationship between users and roles
type UserRole struct {
	UserID    uint      `json:"user_id" db:"user_id"`
	RoleID    uint      `json:"role_id" db:"role_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserWithRoles extends User with roles information
type UserWithRoles struct {
	User
	Roles []Role `json:"roles"`
}

// RegistrationRequest is a pending account application. Accounts only
// become Users once an administrator approves the request.
type RegistrationRequest struct {
	ID            uint       `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	FirstName     string     `json:"first_name" db:"first_name"`
	LastName      string     `json:"last_name" db:"last_name"`
	RequestedRole string     `json:"requested_role" db:"requested_role"`
	Status        string     `json:"status" db:"status"`
	DecidedBy     *uint      `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt     *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Session tracks one issued token. SessionID groups the access and
// refresh tokens minted by the same login so logout can revoke both.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    uint      `json:"user_id" db:"user_id"`
	SessionID string    `json:"session_id" db:"session_id"`
	JTI       string    `json:"jti" db:"jti"`
	TokenType string    `json:"token_type" db:"token_type"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	UserEmail *string   `json:"user_email,omitempty" db:"user_email"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExportLog records one spreadsheet export: who asked, what dataset, how
// many rows left the system and whether the governor allowed it.
type ExportLog struct {
	ID         uint      `json:"id" db:"id"`
	UserID     uint      `json:"user_id" db:"user_id"`
	Dataset    string    `json:"dataset" db:"dataset"`
	RowCount   int       `json:"row_count" db:"row_count"`
	Columns    string    `json:"columns" db:"columns"`
	Allowed    bool      `json:"allowed" db:"allowed"`
	DenyReason string    `json:"deny_reason,omitempty" db:"deny_reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
