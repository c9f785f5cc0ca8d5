package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/swdee/go-vidcount/session"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a report id does not exist
var ErrNotFound = errors.New("report not found")

// Record is a stored video report
type Record struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Model           string          `json:"model"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedFrames int             `json:"processed_frames"`
	UniqueObjects   int             `json:"total_unique_objects"`
	Report          *session.Report `json:"report,omitempty"`
}

// Store persists video reports in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and migrates it to the latest
// schema
func Open(path string) (*Store, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db, now: time.Now}

	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrateUp runs all pending migrations from the embedded migration files
func (s *Store) migrateUp() error {

	src, err := iofs.New(migrationsFS, "migrations")

	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})

	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)

	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// the migrate instance is not closed as that would close the database
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the report of a processed video under a new id
func (s *Store) Save(ctx context.Context, source string, rep *session.Report) (Record, error) {

	if rep == nil {
		return Record{}, errors.New("no report to save")
	}

	body, err := json.Marshal(rep)

	if err != nil {
		return Record{}, fmt.Errorf("failed to encode report: %w", err)
	}

	rec := Record{
		ID:              uuid.NewString(),
		Source:          source,
		Model:           rep.Model,
		CreatedAt:       s.now().UTC(),
		ProcessedFrames: rep.ProcessedFrames,
		Report:          rep,
	}

	if rep.TrackingInfo != nil {
		rec.UniqueObjects = rep.TrackingInfo.TotalUniqueObjects
	}

	query := `
		INSERT INTO reports (
			id, source, model, created_at, processed_frames,
			total_unique_objects, report
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Source,
		rec.Model,
		rec.CreatedAt.UnixNano(),
		rec.ProcessedFrames,
		rec.UniqueObjects,
		string(body),
	)

	if err != nil {
		return Record{}, fmt.Errorf("failed to save report: %w", err)
	}

	return rec, nil
}

// Get returns the stored report with the given id
func (s *Store) Get(ctx context.Context, id string) (Record, error) {

	if _, err := uuid.Parse(id); err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	query := `
		SELECT id, source, model, created_at, processed_frames,
			total_unique_objects, report
		FROM reports WHERE id = ?
	`

	var rec Record
	var created int64
	var body string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Source,
		&rec.Model,
		&created,
		&rec.ProcessedFrames,
		&rec.UniqueObjects,
		&body,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return Record{}, fmt.Errorf("failed to get report: %w", err)
	}

	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.Report = &session.Report{}

	if err := json.Unmarshal([]byte(body), rec.Report); err != nil {
		return Record{}, fmt.Errorf("failed to decode report %s: %w", id, err)
	}

	return rec, nil
}

// List returns the most recent reports, newest first, without their bodies
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source, model, created_at, processed_frames,
			total_unique_objects
		FROM reports ORDER BY created_at DESC, id LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	defer rows.Close()

	recs := make([]Record, 0)

	for rows.Next() {

		var rec Record
		var created int64

		err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.Model,
			&created,
			&rec.ProcessedFrames,
			&rec.UniqueObjects,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		rec.CreatedAt = time.Unix(0, created).UTC()
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return recs, nil
}
