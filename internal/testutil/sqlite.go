// Package testutil provides SQLite test helpers
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// schema mirrors migrations/001_init.sql in SQLite syntax
const schema = `
CREATE TABLE categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL DEFAULT 0,
	fullname TEXT NOT NULL DEFAULT '',
	shortname TEXT NOT NULL DEFAULT '',
	idnumber TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	startdate INTEGER NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT 'topics',
	audience_visible INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE course_activities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL,
	section INTEGER NOT NULL DEFAULT 0,
	module TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	config TEXT NOT NULL DEFAULT ''
);

CREATE TABLE course_blocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL,
	block_name TEXT NOT NULL,
	region TEXT NOT NULL DEFAULT '',
	weight INTEGER NOT NULL DEFAULT 0,
	config TEXT NOT NULL DEFAULT ''
);

CREATE TABLE course_filters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL,
	filter TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE enrol (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL,
	enrol TEXT NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	sortorder INTEGER NOT NULL DEFAULT 0,
	roleid INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL DEFAULT '',
	customint1 INTEGER NOT NULL DEFAULT 0,
	customtext1 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE customfield_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL,
	field_id INTEGER NOT NULL,
	data TEXT NOT NULL DEFAULT ''
);

CREATE TABLE course_content_formats (
	course_id INTEGER NOT NULL,
	format_id TEXT NOT NULL,
	PRIMARY KEY (course_id, format_id)
);

CREATE TABLE cohort_visibility (
	course_id INTEGER NOT NULL,
	cohort_id INTEGER NOT NULL,
	PRIMARY KEY (course_id, cohort_id)
);

CREATE TABLE course_templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	course_id INTEGER NOT NULL,
	filename TEXT,
	screenshot TEXT,
	time_created INTEGER NOT NULL
);

CREATE TABLE template_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE template_tag_instances (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_id INTEGER NOT NULL,
	template_id INTEGER NOT NULL
);
`

// SQLiteTestHelper provides utilities for SQLite testing
type SQLiteTestHelper struct {
	DB     *sqlx.DB
	DBPath string
}

// NewSQLiteTestHelper creates a temp database with the service schema applied
func NewSQLiteTestHelper(t *testing.T) *SQLiteTestHelper {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// a single connection keeps sqlite writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	helper := &SQLiteTestHelper{DB: db, DBPath: dbPath}
	t.Cleanup(func() {
		_ = helper.DB.Close()
	})
	return helper
}

// Exec executes a SQL statement
func (h *SQLiteTestHelper) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()
	if _, err := h.DB.Exec(query, args...); err != nil {
		t.Fatalf("Failed to execute SQL: %v", err)
	}
}

// Insert executes an INSERT and returns the new row id
func (h *SQLiteTestHelper) Insert(t *testing.T, query string, args ...interface{}) int {
	t.Helper()
	res, err := h.DB.Exec(query, args...)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read insert id: %v", err)
	}
	return int(id)
}

// RowExists checks if a row exists
func (h *SQLiteTestHelper) RowExists(t *testing.T, table string, where string, args ...interface{}) bool {
	t.Helper()
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := h.DB.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	return count > 0
}

// Count returns the count of rows in a table
func (h *SQLiteTestHelper) Count(t *testing.T, table string) int {
	t.Helper()
	var count int
	if err := h.DB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	return count
}

// SeedCourse inserts a course and returns its id
func (h *SQLiteTestHelper) SeedCourse(t *testing.T, categoryID int, fullname, shortname string) int {
	t.Helper()
	return h.Insert(t, `INSERT INTO courses (category_id, fullname, shortname) VALUES (?, ?, ?)`,
		categoryID, fullname, shortname)
}

// SeedCategory inserts a category and returns its id
func (h *SQLiteTestHelper) SeedCategory(t *testing.T, name string) int {
	t.Helper()
	return h.Insert(t, `INSERT INTO categories (name) VALUES (?)`, name)
}
