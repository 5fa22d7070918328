package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "appsched/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) InsertSchedule(ctx context.Context, sc Schedule) (int64, error) {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	if sc.Status == "" {
		sc.Status = StatusPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(package_id, display_name, scheduled_at, status, created_at, executed_at)
		 VALUES(?,?,?,?,?,?)`,
		sc.PackageID, sc.DisplayName, sc.ScheduledAt.UnixMilli(), string(sc.Status),
		sc.CreatedAt.UnixMilli(), nullMillis(sc.ExecutedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, package_id, display_name, scheduled_at, status, created_at, executed_at
		 FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	return sc, err
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, sc Schedule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET package_id=?, display_name=?, scheduled_at=?, status=?, executed_at=?
		 WHERE id=?`,
		sc.PackageID, sc.DisplayName, sc.ScheduledAt.UnixMilli(), string(sc.Status),
		nullMillis(sc.ExecutedAt), sc.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT id, package_id, display_name, scheduled_at, status, created_at, executed_at
		 FROM schedules ORDER BY scheduled_at ASC`)
}

func (s *sqliteStore) ListSchedulesByStatus(ctx context.Context, status Status) ([]Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT id, package_id, display_name, scheduled_at, status, created_at, executed_at
		 FROM schedules WHERE status = ? ORDER BY scheduled_at ASC`, string(status))
}

func (s *sqliteStore) ListConflicting(ctx context.Context, start, end time.Time) ([]Schedule, error) {
	return s.querySchedules(ctx,
		`SELECT id, package_id, display_name, scheduled_at, status, created_at, executed_at
		 FROM schedules
		 WHERE status = ? AND scheduled_at BETWEEN ? AND ?
		 ORDER BY scheduled_at ASC`,
		string(StatusPending), start.UnixMilli(), end.UnixMilli())
}

func (s *sqliteStore) AppendExecutionLog(ctx context.Context, e ExecutionLog) (int64, error) {
	if e.AttemptedAt.IsZero() {
		e.AttemptedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_logs(schedule_id, attempted_at, outcome, details)
		 VALUES(?,?,?,?)`,
		e.ScheduleID, e.AttemptedAt.UnixMilli(), string(e.Outcome), nullStr(e.Details),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ListExecutionLogs(ctx context.Context, scheduleID int64) ([]ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schedule_id, attempted_at, outcome, details
		 FROM execution_logs WHERE schedule_id = ? ORDER BY attempted_at DESC`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionLog
	for rows.Next() {
		var (
			e       ExecutionLog
			ms      int64
			outcome string
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ScheduleID, &ms, &outcome, &details); err != nil {
			return nil, err
		}
		e.AttemptedAt = time.UnixMilli(ms)
		e.Outcome = Outcome(outcome)
		e.Details = details.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneExecutionLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM execution_logs WHERE attempted_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r rowScanner) (Schedule, error) {
	var (
		sc         Schedule
		schedMS    int64
		createdMS  int64
		status     string
		executedMS sql.NullInt64
	)
	if err := r.Scan(&sc.ID, &sc.PackageID, &sc.DisplayName, &schedMS, &status, &createdMS, &executedMS); err != nil {
		return Schedule{}, err
	}
	sc.ScheduledAt = time.UnixMilli(schedMS)
	sc.Status = Status(status)
	sc.CreatedAt = time.UnixMilli(createdMS)
	if executedMS.Valid {
		t := time.UnixMilli(executedMS.Int64)
		sc.ExecutedAt = &t
	}
	return sc, nil
}

func (s *sqliteStore) querySchedules(ctx context.Context, q string, args ...any) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
