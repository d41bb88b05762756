package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"charter-reporter/internal/models"
)

// Fixtures holds test data
type Fixtures struct {
	DB           *sql.DB
	CharterAdmin *models.User
	RebosaAdmin  *models.User
	InactiveUser *models.User
}

// SetupFixtures creates application users for each role. The roles
// themselves are seeded by the migrations.
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	charterRole := getRole(t, db, models.RoleCharterAdmin)
	rebosaRole := getRole(t, db, models.RoleRebosaAdmin)

	fixtures := &Fixtures{DB: db}
	fixtures.CharterAdmin = createUser(t, db, "charter@test.com", "Charter", "Admin", true, []uint{charterRole.ID})
	fixtures.RebosaAdmin = createUser(t, db, "rebosa@test.com", "Rebosa", "Admin", true, []uint{rebosaRole.ID})
	fixtures.InactiveUser = createUser(t, db, "inactive@test.com", "Former", "Admin", false, []uint{rebosaRole.ID})

	return fixtures
}

func getRole(t *testing.T, db *sql.DB, name string) *models.Role {
	t.Helper()

	var role models.Role
	err := db.QueryRow(
		"SELECT id, name, created_at, updated_at FROM roles WHERE name = $1",
		name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to load role %s: %v", name, err)
	}
	return &role
}

func createUser(t *testing.T, db *sql.DB, email, firstName, lastName string, active bool, roleIDs []uint) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  active,
	}
	err = db.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		email, string(hash), firstName, lastName, active, now,
	).Scan(&user.ID)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}

	for _, roleID := range roleIDs {
		if _, err := db.Exec(
			"INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)",
			user.ID, roleID, now,
		); err != nil {
			t.Fatalf("Failed to assign role %d to %s: %v", roleID, email, err)
		}
	}

	return user
}

// createSourceSchema creates the subset of the Moodle and WordPress tables
// the report queries touch. Column types follow the originals where it
// matters for scanning.
func createSourceSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mdl_user (
			id BIGINT PRIMARY KEY,
			firstname VARCHAR(100) NOT NULL,
			lastname VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL,
			phone1 VARCHAR(20) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_course_categories (
			id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			visible TINYINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_course (
			id BIGINT PRIMARY KEY,
			fullname VARCHAR(254) NOT NULL,
			category BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_course_completions (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			userid BIGINT NOT NULL,
			course BIGINT NOT NULL,
			timecompleted BIGINT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_enrol (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			courseid BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_user_enrolments (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			userid BIGINT NOT NULL,
			enrolid BIGINT NOT NULL,
			timecreated BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_user_info_field (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			shortname VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mdl_user_info_data (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			userid BIGINT NOT NULL,
			fieldid BIGINT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wp_users (
			ID BIGINT PRIMARY KEY,
			user_email VARCHAR(100) NOT NULL,
			display_name VARCHAR(250) NOT NULL DEFAULT '',
			user_registered DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wp_usermeta (
			umeta_id BIGINT PRIMARY KEY AUTO_INCREMENT,
			user_id BIGINT NOT NULL,
			meta_key VARCHAR(255),
			meta_value LONGTEXT
		)`,
		`CREATE TABLE IF NOT EXISTS wp_posts (
			ID BIGINT PRIMARY KEY,
			post_type VARCHAR(20) NOT NULL,
			post_status VARCHAR(20) NOT NULL,
			post_date DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wp_postmeta (
			meta_id BIGINT PRIMARY KEY AUTO_INCREMENT,
			post_id BIGINT NOT NULL,
			meta_key VARCHAR(255),
			meta_value LONGTEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create source table: %w", err)
		}
	}
	return nil
}

// SeedSourceData loads a small cross-source dataset:
//   - alice exists in both sources with four LMS completions,
//   - bob exists only in the LMS with four completions,
//   - carol exists only in the membership database,
//   - dave has three completions and never reaches the reporting window.
func SeedSourceData(t *testing.T, db *sql.DB) {
	t.Helper()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	day := int64(24 * 60 * 60)

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO mdl_course_categories (id, name, visible) VALUES (1, 'Compliance', 1), (2, 'Hidden', 0)`, nil},
		{`INSERT INTO mdl_course (id, fullname, category) VALUES
			(10, 'Ethics Module 1', 1), (11, 'Ethics Module 2', 1),
			(12, 'Ethics Module 3', 1), (13, 'Ethics Module 4', 1)`, nil},
		{`INSERT INTO mdl_user (id, firstname, lastname, email, phone1) VALUES
			(100, 'Alice', 'Moore', 'ALICE@X.COM', '0821234567'),
			(101, 'Bob', 'Stone', 'bob@y.com', ''),
			(103, 'Dave', 'Short', 'dave@z.com', '')`, nil},
		{`INSERT INTO mdl_user_info_field (id, shortname) VALUES (1, 'ppranumber'), (2, 'province')`, nil},
		{`INSERT INTO mdl_user_info_data (userid, fieldid, data) VALUES
			(100, 1, 'PPRA-100'), (100, 2, 'Gauteng'), (101, 1, 'PPRA-101')`, nil},
		{`INSERT INTO mdl_enrol (id, courseid) VALUES (1, 10), (2, 11), (3, 12), (4, 13)`, nil},
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt.query, stmt.args...); err != nil {
			t.Fatalf("Failed to seed source data: %v", err)
		}
	}

	// Four completions each for alice and bob, three for dave.
	for i, userID := range []int64{100, 100, 100, 100, 101, 101, 101, 101, 103, 103, 103} {
		courseID := int64(10 + i%4)
		completed := base + int64(i%4)*day
		if _, err := db.Exec(
			`INSERT INTO mdl_course_completions (userid, course, timecompleted) VALUES (?, ?, ?)`,
			userID, courseID, completed,
		); err != nil {
			t.Fatalf("Failed to seed completion: %v", err)
		}
		if _, err := db.Exec(
			`INSERT INTO mdl_user_enrolments (userid, enrolid, timecreated) VALUES (?, ?, ?)`,
			userID, courseID-9, completed-7*day,
		); err != nil {
			t.Fatalf("Failed to seed enrolment: %v", err)
		}
	}

	wpStmts := []string{
		`INSERT INTO wp_users (ID, user_email, display_name, user_registered) VALUES
			(200, 'alice@x.com', 'Alice Moore', '2023-06-01 09:00:00'),
			(201, 'carol@z.com', 'Carol Reed', '2024-01-15 10:30:00')`,
		`INSERT INTO wp_usermeta (user_id, meta_key, meta_value) VALUES
			(200, 'first_name', 'Alice'), (200, 'last_name', 'Moore'),
			(200, 'billing_phone', '0827654321'), (200, 'billing_company', 'Acme Realty'),
			(201, 'first_name', 'Carol'), (201, 'last_name', 'Reed'),
			(201, 'billing_state', 'Western Cape')`,
		`INSERT INTO wp_posts (ID, post_type, post_status, post_date) VALUES
			(300, 'shop_order', 'wc-completed', '2024-03-02 11:00:00'),
			(301, 'shop_order', 'wc-pending', '2024-03-03 11:00:00')`,
		`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES
			(300, '_order_total', '450.00'), (301, '_order_total', '999.00')`,
	}
	for _, stmt := range wpStmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed membership data: %v", err)
		}
	}
}
