// Package journal records detection sessions and emitted warnings in SQLite
// so that gaps in guidance can be diagnosed after the fact. The journal is
// write-only from the detection loop's point of view.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/wayfinder/internal/detection"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/perception"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pragmas applied to every pooled connection.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)"

// Journal is a SQLite-backed warning journal.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the journal at path and applies migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j := &Journal{db: db, path: path}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// DB exposes the underlying handle for admin tooling.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// MigrateUp runs all pending migrations up to the latest version.
func (j *Journal) MigrateUp() error {
	m, err := j.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version.
func (j *Journal) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := j.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (j *Journal) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// Record stores the parts of a published result the journal keeps: session
// boundaries and emitted warnings. Plain ticks without a warning are ignored.
func (j *Journal) Record(ctx context.Context, res detection.Result) error {
	switch res.Event {
	case detection.EventStarted:
		_, err := j.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO sessions (session_id, strategy, started_unix_ms) VALUES (?, ?, ?)`,
			res.SessionID, res.Strategy.String(), res.Timestamp.UnixMilli())
		if err != nil {
			return fmt.Errorf("record session start: %w", err)
		}
	case detection.EventStopped:
		if res.SessionID == "" {
			return nil
		}
		_, err := j.db.ExecContext(ctx,
			`UPDATE sessions SET stopped_unix_ms = ? WHERE session_id = ?`,
			res.Timestamp.UnixMilli(), res.SessionID)
		if err != nil {
			return fmt.Errorf("record session stop: %w", err)
		}
	case detection.EventTick:
		if res.Warning == nil {
			return nil
		}
		w := res.Warning
		var direction sql.NullString
		if res.Direction != nil {
			direction = sql.NullString{String: string(*res.Direction), Valid: true}
		}
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO warnings (
				session_id, emitted_unix_ms, severity, message, obstacle_id,
				obstacle_type, obstacle_size, distance_m, bearing_deg, direction
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.SessionID, w.EmittedAt.UnixMilli(), w.Severity.String(), w.Message, w.Obstacle.ID,
			string(w.Obstacle.Type), string(w.Obstacle.Size), w.Obstacle.Distance,
			perception.BearingDeg(w.Obstacle), direction)
		if err != nil {
			return fmt.Errorf("record warning: %w", err)
		}
	}
	return nil
}

// RecordStats stores the controller counters against a session.
func (j *Journal) RecordStats(ctx context.Context, sessionID string, s detection.Stats) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ticks = ?, frame_misses = ?, skipped_ticks = ? WHERE session_id = ?`,
		int64(s.Ticks), int64(s.FrameMisses), int64(s.SkippedTicks), sessionID)
	if err != nil {
		return fmt.Errorf("record session stats: %w", err)
	}
	return nil
}

// ResultSource is the subset of the detection controller the journal reads.
type ResultSource interface {
	Subscribe() (string, <-chan detection.Result)
	Unsubscribe(string)
}

// Run records results from src until ctx is cancelled or the subscription
// closes. Write failures are logged and do not stop the journal.
func (j *Journal) Run(ctx context.Context, src ResultSource) {
	j.Follow(src)(ctx)
}

// Follow subscribes to src immediately and returns the recording loop, so
// that results published before the loop is scheduled are not missed.
func (j *Journal) Follow(src ResultSource) func(ctx context.Context) {
	id, results := src.Subscribe()
	return func(ctx context.Context) {
		defer src.Unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-results:
				if !ok {
					return
				}
				if err := j.Record(ctx, res); err != nil {
					monitoring.Logf("journal: %v", err)
				}
				if res.Event == detection.EventStopped && res.SessionID != "" && res.Stats != nil {
					if err := j.RecordStats(ctx, res.SessionID, *res.Stats); err != nil {
						monitoring.Logf("journal: %v", err)
					}
				}
			}
		}
	}
}

// SessionRecord is one journaled session.
type SessionRecord struct {
	SessionID    string     `json:"session_id"`
	Strategy     string     `json:"strategy"`
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at"`
	Ticks        int64      `json:"ticks"`
	FrameMisses  int64      `json:"frame_misses"`
	SkippedTicks int64      `json:"skipped_ticks"`
}

// Sessions returns the most recent sessions, newest first.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, strategy, started_unix_ms, stopped_unix_ms, ticks, frame_misses, skipped_ticks
		FROM sessions ORDER BY started_unix_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var started int64
		var stopped sql.NullInt64
		if err := rows.Scan(&r.SessionID, &r.Strategy, &started, &stopped, &r.Ticks, &r.FrameMisses, &r.SkippedTicks); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if stopped.Valid {
			t := time.UnixMilli(stopped.Int64).UTC()
			r.StoppedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WarningRecord is one journaled warning.
type WarningRecord struct {
	SessionID  string    `json:"session_id"`
	EmittedAt  time.Time `json:"emitted_at"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	ObstacleID string    `json:"obstacle_id"`
	Type       string    `json:"type"`
	Size       string    `json:"size"`
	Distance   float64   `json:"distance_m"`
	BearingDeg float64   `json:"bearing_deg"`
	Direction  string    `json:"direction,omitempty"`
}

// Warnings returns a session's warnings in emission order.
func (j *Journal) Warnings(ctx context.Context, sessionID string) ([]WarningRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, emitted_unix_ms, severity, message, obstacle_id,
		       obstacle_type, obstacle_size, distance_m, bearing_deg, direction
		FROM warnings WHERE session_id = ? ORDER BY emitted_unix_ms, warning_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	var out []WarningRecord
	for rows.Next() {
		var r WarningRecord
		var emitted int64
		var direction sql.NullString
		if err := rows.Scan(&r.SessionID, &emitted, &r.Severity, &r.Message, &r.ObstacleID,
			&r.Type, &r.Size, &r.Distance, &r.BearingDeg, &direction); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		r.EmittedAt = time.UnixMilli(emitted).UTC()
		r.Direction = direction.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LongestSilence returns the longest gap between consecutive warnings (or
// the session bounds) for a stopped session.
func (j *Journal) LongestSilence(ctx context.Context, sessionID string) (time.Duration, error) {
	var started int64
	var stopped sql.NullInt64
	err := j.db.QueryRowContext(ctx,
		`SELECT started_unix_ms, stopped_unix_ms FROM sessions WHERE session_id = ?`, sessionID).Scan(&started, &stopped)
	if err != nil {
		return 0, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	if !stopped.Valid {
		return 0, fmt.Errorf("session %s is still open", sessionID)
	}

	warnings, err := j.Warnings(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	prev := started
	var longest int64
	for _, w := range warnings {
		ms := w.EmittedAt.UnixMilli()
		longest = max(longest, ms-prev)
		prev = ms
	}
	longest = max(longest, stopped.Int64-prev)
	return time.Duration(longest) * time.Millisecond, nil
}
