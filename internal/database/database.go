package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
}

// ChangeRecord is one audited mutation of a durable collection.
type ChangeRecord struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDB creates a new database connection and initializes tables
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	// Initialize tables
	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initTables creates the necessary database tables
func (db *DB) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS change_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_change_log_collection ON change_log(collection);
	CREATE INDEX IF NOT EXISTS idx_change_log_created_at ON change_log(created_at);
	`

	_, err := db.conn.Exec(query)
	return err
}

// RecordChanges appends a batch of change records in one transaction.
func (db *DB) RecordChanges(records []ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO change_log (collection, comment, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare change insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		at := r.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(r.Collection, r.Comment, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record change: %w", err)
		}
	}

	return tx.Commit()
}

// RecentChanges returns the newest change records, most recent first.
func (db *DB) RecentChanges(limit int) ([]ChangeRecord, error) {
	rows, err := db.conn.Query(
		`SELECT id, collection, comment, created_at FROM change_log ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ChangeRecord
	for rows.Next() {
		var r ChangeRecord
		if err := rows.Scan(&r.ID, &r.Collection, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
