package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"morehradar/server/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite persists signals in a local SQLite database, standing in for the
// hosted relational backend.
type SQLite struct {
	db *sql.DB
	notifier
}

// OpenSQLite initializes the database connection, creating directories as
// needed.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the signals table exists.
func (s *SQLite) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			food_desc TEXT NOT NULL,
			pax INTEGER NOT NULL,
			claims INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			posted_by_name TEXT,
			posted_by_email TEXT,
			last_updated TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_last_updated ON signals(last_updated);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// FetchAll returns every signal ordered by last_updated descending.
func (s *SQLite) FetchAll(ctx context.Context) ([]model.Signal, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, lat, lng, food_desc, pax, claims, status, posted_by_name, posted_by_email, last_updated
		 FROM signals
		 ORDER BY last_updated DESC;`)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var (
			sig            model.Signal
			status         string
			postedByName   sql.NullString
			postedByEmail  sql.NullString
			lastUpdatedStr string
		)

		if err := rows.Scan(&sig.ID, &sig.Name, &sig.Position.Lat, &sig.Position.Lng,
			&sig.FoodDesc, &sig.Pax, &sig.Claims, &status,
			&postedByName, &postedByEmail, &lastUpdatedStr); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}

		sig.Status = model.Status(status)
		sig.PostedByName = postedByName.String
		sig.PostedByEmail = postedByEmail.String

		lastUpdated, err := time.Parse(time.RFC3339Nano, lastUpdatedStr)
		if err != nil {
			lastUpdated, _ = time.Parse("2006-01-02T15:04:05Z07:00", lastUpdatedStr)
		}
		sig.LastUpdated = lastUpdated

		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}

	return signals, nil
}

// Insert persists a new broadcast.
func (s *SQLite) Insert(ctx context.Context, draft model.Draft) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	lastUpdated := draft.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO signals (name, lat, lng, food_desc, pax, status, posted_by_name, posted_by_email, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		draft.Name,
		draft.Position.Lat,
		draft.Position.Lng,
		draft.FoodDesc,
		draft.Pax,
		string(draft.Status),
		draft.PostedByName,
		draft.PostedByEmail,
		lastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}

	s.notify()
	return nil
}

// Update mutates the provided fields of one signal.
func (s *SQLite) Update(ctx context.Context, id int64, fields Fields) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	var (
		sets []string
		args []interface{}
	)

	if fields.Pax != nil {
		sets = append(sets, "pax = ?")
		args = append(args, *fields.Pax)
	}
	if fields.Claims != nil {
		sets = append(sets, "claims = ?")
		args = append(args, *fields.Claims)
	}
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*fields.Status))
	}
	if fields.LastUpdated != nil {
		sets = append(sets, "last_updated = ?")
		args = append(args, fields.LastUpdated.UTC().Format(time.RFC3339Nano))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE signals SET %s WHERE id = ?;`, strings.Join(sets, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update signal: %w", err)
	}

	s.notify()
	return nil
}

// Subscribe registers a change callback.
func (s *SQLite) Subscribe(fn func()) func() {
	return s.subscribe(fn)
}
