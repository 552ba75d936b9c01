package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
)

// SubmissionRecord is a stored payment submission.
type SubmissionRecord struct {
	ID         string              `json:"id"`
	Kind       string              `json:"kind"`
	IssueDate  string              `json:"date"`
	Entries    int                 `json:"entries"`
	Rows       []int               `json:"rows"`
	Success    bool                `json:"success"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	Downstream []DownstreamOutcome `json:"downstream,omitempty"`
}

// DownstreamOutcome is the stored result of one downstream write.
type DownstreamOutcome struct {
	Operation  string `json:"operation"`
	Employee   string `json:"employee,omitempty"`
	Success    bool   `json:"success"`
	Action     string `json:"action,omitempty"`
	Kind       string `json:"kind,omitempty"`
	RowUpdated int    `json:"row_updated,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// History manages payment submission history.
type History struct {
	conn *Connection
}

// NewHistory creates a new History instance.
func NewHistory(conn *Connection) *History {
	return &History{conn: conn}
}

// RecordSubmission stores a submission and its downstream outcomes.
// Recording the same id twice replaces the earlier record.
func (h *History) RecordSubmission(ctx context.Context, s ledger.Submission) error {
	rows := s.Rows
	if rows == nil {
		rows = []int{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err = h.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, s.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO submissions (id, kind, issue_date, entries, rows_json, success, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, string(s.Kind), s.Date, s.Entries, string(rowsJSON), s.Success, nullString(s.Error), createdAt.UTC())
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO downstream_outcomes
				(submission_id, operation, employee, success, action, kind, row_updated, file_path, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, d := range s.Downstream {
			r := d.Result
			if _, err := stmt.ExecContext(ctx, s.ID, string(d.Operation), nullString(d.Employee), r.Success,
				nullString(r.Action), nullString(string(r.Kind)), r.RowUpdated, nullString(r.FilePath), nullString(r.Error)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a submission with its downstream outcomes.
// It returns nil when the id is unknown.
func (h *History) GetSubmission(ctx context.Context, id string) (*SubmissionRecord, error) {
	row := h.conn.QueryRow(ctx, `
		SELECT id, kind, issue_date, entries, rows_json, success, error, created_at
		FROM submissions
		WHERE id = ?
	`, id)
	record, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	rows, err := h.conn.Query(ctx, `
		SELECT operation, employee, success, action, kind, row_updated, file_path, error
		FROM downstream_outcomes
		WHERE submission_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get downstream outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DownstreamOutcome
		var employee, action, kind, filePath, errMsg sql.NullString
		var row sql.NullInt64
		if err := rows.Scan(&d.Operation, &employee, &d.Success, &action, &kind, &row, &filePath, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan downstream outcome: %w", err)
		}
		d.Employee, d.Action, d.Kind = employee.String, action.String, kind.String
		d.FilePath, d.Error = filePath.String, errMsg.String
		d.RowUpdated = int(row.Int64)
		record.Downstream = append(record.Downstream, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read downstream outcomes: %w", err)
	}

	return record, nil
}

// ListSubmissions returns the most recent submissions, newest first.
func (h *History) ListSubmissions(ctx context.Context, limit int) ([]SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.conn.Query(ctx, `
		SELECT id, kind, issue_date, entries, rows_json, success, error, created_at
		FROM submissions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	records := []SubmissionRecord{}
	for rows.Next() {
		record, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Stats represents history statistics.
type Stats struct {
	TotalSubmissions  int            `json:"total_submissions"`
	FailedSubmissions int            `json:"failed_submissions"`
	TotalEntries      int            `json:"total_entries"`
	DownstreamWrites  int            `json:"downstream_writes"`
	FailedDownstream  int            `json:"failed_downstream"`
	LastSubmission    sql.NullString `json:"-"`
}

// GetStats retrieves history statistics.
func (h *History) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0), COALESCE(SUM(entries), 0)
		FROM submissions
	`).Scan(&stats.TotalSubmissions, &stats.FailedSubmissions, &stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission counts: %w", err)
	}

	err = h.conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM downstream_outcomes
	`).Scan(&stats.DownstreamWrites, &stats.FailedDownstream)
	if err != nil {
		return nil, fmt.Errorf("failed to get downstream counts: %w", err)
	}

	err = h.conn.QueryRow(ctx, `SELECT MAX(created_at) FROM submissions`).Scan(&stats.LastSubmission)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last submission time: %w", err)
	}

	return &stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(s scanner) (*SubmissionRecord, error) {
	var record SubmissionRecord
	var rowsJSON string
	var errMsg sql.NullString
	if err := s.Scan(&record.ID, &record.Kind, &record.IssueDate, &record.Entries,
		&rowsJSON, &record.Success, &errMsg, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rowsJSON), &record.Rows); err != nil {
		return nil, fmt.Errorf("invalid rows for submission %s: %w", record.ID, err)
	}
	record.Error = errMsg.String
	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
