package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteJobRepository implements JobRepository on a SQLite database.
type SQLiteJobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the job database at path and applies
// pending migrations. Jobs left processing by a previous process are queued
// for retry.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteJobRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	r := &SQLiteJobRepository{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if n, err := r.requeueInterrupted(); err != nil {
		logger.Warn("failed to requeue interrupted jobs", "error", err)
	} else if n > 0 {
		logger.Info("requeued interrupted jobs", "count", n)
	}

	return r, nil
}

// Close closes the database.
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteJobRepository) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if r.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := r.db.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		r.logger.Info("applied migration", "name", name)
	}
	return nil
}

func (r *SQLiteJobRepository) isMigrationApplied(name string) bool {
	var exists int
	err := r.db.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}
	var applied int
	err = r.db.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (r *SQLiteJobRepository) requeueInterrupted() (int64, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := r.db.Exec(
		`UPDATE analysis_jobs SET status = ?, last_error = 'interrupted by restart', queued_at = ?, updated_at = ? WHERE status = ?`,
		domain.JobStatusRetrying, now, now, domain.JobStatusProcessing,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Enqueue adds a job to the queue.
func (r *SQLiteJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	req, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	prog, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs
			(id, source_ref, request_json, status, attempts, max_retries, last_error, progress_json, queued_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Request.SourceRef, string(req), job.Status, job.Attempts, job.MaxRetries, job.LastError,
		string(prog), formatTime(time.Now()), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Dequeue claims the oldest queued or retrying job and marks it processing.
func (r *SQLiteJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectJob+`
		WHERE status IN (?, ?)
		ORDER BY queued_at, rowid
		LIMIT 1`,
		domain.JobStatusQueued, domain.JobStatusRetrying,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoJobs
	}
	if err != nil {
		return nil, err
	}

	job.MarkProcessing()
	if _, err := tx.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		job.Status, formatTime(job.UpdatedAt), job.ID,
	); err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue: %w", err)
	}
	return job, nil
}

// Update modifies job state.
func (r *SQLiteJobRepository) Update(ctx context.Context, job *domain.Job) error {
	prog, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	var result sql.NullString
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	query := `UPDATE analysis_jobs SET status = ?, attempts = ?, last_error = ?, progress_json = ?, result_json = ?, updated_at = ?`
	args := []any{job.Status, job.Attempts, job.LastError, string(prog), result, formatTime(job.UpdatedAt)}
	if job.Status == domain.JobStatusRetrying {
		query += `, queued_at = ?`
		args = append(args, formatTime(time.Now()))
	}
	query += ` WHERE id = ?`
	args = append(args, job.ID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return requireRow(res)
}

// UpdateProgress records the latest progress report of a job.
func (r *SQLiteJobRepository) UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) error {
	prog, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET progress_json = ?, updated_at = ? WHERE id = ?`,
		string(prog), formatTime(p.ReportedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return requireRow(res)
}

// Get retrieves a job by ID.
func (r *SQLiteJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// ListPending returns all queued/retrying jobs in queue order.
func (r *SQLiteJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, selectJob+`
		WHERE status IN (?, ?)
		ORDER BY queued_at, rowid`,
		domain.JobStatusQueued, domain.JobStatusRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns queue statistics.
func (r *SQLiteJobRepository) Stats(ctx context.Context) (*QueueStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM analysis_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.add(domain.JobStatus(status), n)
	}
	return stats, rows.Err()
}

const selectJob = `
	SELECT id, request_json, status, attempts, max_retries, last_error, progress_json, result_json, created_at, updated_at
	FROM analysis_jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	var (
		job                  domain.Job
		id, status           string
		reqJSON, progJSON    string
		resultJSON           sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&id, &reqJSON, &status, &job.Attempts, &job.MaxRetries, &job.LastError,
		&progJSON, &resultJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.ID = domain.JobID(id)
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(reqJSON), &job.Request); err != nil {
		return nil, fmt.Errorf("decode request of job %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(progJSON), &job.Progress); err != nil {
		return nil, fmt.Errorf("decode progress of job %s: %w", id, err)
	}
	if resultJSON.Valid {
		job.Result = &domain.AggregatedResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), job.Result); err != nil {
			return nil, fmt.Errorf("decode result of job %s: %w", id, err)
		}
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
