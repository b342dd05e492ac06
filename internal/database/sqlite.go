package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leca/dt-video-gen/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements Database backed by SQLite.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs migrations.
// For in-memory use pass "file::memory:?cache=shared".
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	} else if !strings.Contains(dsn, "_journal_mode") {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// RecordJob inserts a job, or refreshes its status if the id is already
// known. The original creation time and archive key are kept.
func (s *SQLiteDB) RecordJob(rec *model.JobRecord) error {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO jobs (id, parent_id, model, size, seconds, prompt, status, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, progress = excluded.progress, updated_at = excluded.updated_at`,
		rec.ID, rec.ParentID, rec.Model, rec.Size, rec.Seconds, rec.Prompt,
		string(rec.Status), rec.Progress,
		rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SQLiteDB) UpdateJobStatus(id string, status model.JobState, progress int) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET status = ?, progress = ?, updated_at = ?
		WHERE id = ?`,
		string(status), progress, s.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteDB) MarkArchived(id, key string) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET archive_key = ?, updated_at = ?
		WHERE id = ?`,
		key, s.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteDB) GetJob(id string) (*model.JobRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM jobs WHERE id = ?`,
		id,
	)
	return scanJob(row)
}

func (s *SQLiteDB) ListJobs(page, perPage int) ([]*model.JobRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	offset := (page - 1) * perPage
	rows, err := s.db.Query(`
		SELECT `+jobColumns+`
		FROM jobs
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?`,
		perPage, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = `id, parent_id, model, size, seconds, prompt, status, progress, archive_key, created_at, updated_at`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scannable) (*model.JobRecord, error) {
	rec := &model.JobRecord{}
	var status, createdStr, updatedStr string

	err := row.Scan(&rec.ID, &rec.ParentID, &rec.Model, &rec.Size, &rec.Seconds, &rec.Prompt,
		&status, &rec.Progress, &rec.ArchiveKey, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	rec.Status = model.JobState(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return rec, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
