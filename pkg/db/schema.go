// Package db provides SQLite storage for the payment submission history.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Submissions table
-- One row per single or batch payment request
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,               -- uuid returned to the caller
    kind TEXT NOT NULL,                -- 'cashbook' or 'batch_cashbook'
    issue_date TEXT NOT NULL,          -- date as entered on the payment
    entries INTEGER NOT NULL,          -- number of payees
    rows_json TEXT NOT NULL,           -- cashbook rows written, JSON array
    success INTEGER NOT NULL,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_created
    ON submissions(created_at);

-- Downstream outcomes table
-- Result of each personal account, ledger and trial balance write of a submission
CREATE TABLE IF NOT EXISTS downstream_outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    operation TEXT NOT NULL,
    employee TEXT,
    success INTEGER NOT NULL,
    action TEXT,
    kind TEXT,
    row_updated INTEGER,
    file_path TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_downstream_submission
    ON downstream_outcomes(submission_id);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}
	return nil
}
