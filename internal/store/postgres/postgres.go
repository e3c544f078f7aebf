// Package postgres provides the PostgreSQL-backed store.Store implementation.
// It uses pgx/v5 (pure Go, no CGO) and runs embedded migrations at startup.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuwcodebox/disaster-feed/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB implements store.Store using PostgreSQL via pgx/v5.
type DB struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool, runs migrations, and returns a ready DB.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &DB{pool: pool}, nil
}

// RunMigrations applies all pending up-migrations against dsn. Safe to call
// multiple times — ErrNoChange is treated as success. Used by cmd/initdb.
func RunMigrations(dsn string) error { return runMigrations(dsn) }

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, toMigrateURL(dsn))
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// toMigrateURL converts a postgres:// or postgresql:// DSN to the pgx5://
// scheme expected by golang-migrate's pgx/v5 driver.
func toMigrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + dsn[len(prefix):]
		}
	}
	return "pgx5://" + dsn
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// ---- event log ----

func (d *DB) Insert(ctx context.Context, e *model.Event) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO events (id, source, kind, title, body, fetched_at, occurred_at, region_text, level, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, int(e.Source), int(e.Kind), e.Title, e.Body, e.FetchedAt, e.OccurredAt, e.RegionText, int(e.Level), rawOrNil(e.Payload))
	return err
}

func (d *DB) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, source, kind, title, body, fetched_at, occurred_at, region_text, level, payload
		FROM events WHERE id = $1
	`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (d *DB) List(ctx context.Context, filter model.ListFilter) ([]*model.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, source, kind, title, body, fetched_at, occurred_at, region_text, level, payload
		FROM events WHERE 1=1
	`
	args := []any{}
	if filter.Kind != nil {
		args = append(args, int(*filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Source != nil {
		args = append(args, int(*filter.Source))
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY fetched_at DESC LIMIT $%d", len(args))

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (d *DB) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, source, kind, title, body, fetched_at, occurred_at, region_text, level, payload
		FROM events WHERE fetched_at > $1
		ORDER BY fetched_at ASC, id ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ---- checkpoints ----

func (d *DB) Get(ctx context.Context, sourceID model.Source) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	cp.SourceID = sourceID
	err := d.pool.QueryRow(ctx,
		`SELECT state, updated_at FROM ingest_checkpoints WHERE source_id = $1`, int(sourceID),
	).Scan(&cp.State, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (d *DB) Upsert(ctx context.Context, sourceID model.Source, state *string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO ingest_checkpoints (source_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id) DO UPDATE SET state = $2, updated_at = now()
	`, int(sourceID), state)
	return err
}

// ---- scanning ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var source, kind, level int
	var payload []byte
	if err := row.Scan(&e.ID, &source, &kind, &e.Title, &e.Body, &e.FetchedAt, &e.OccurredAt, &e.RegionText, &level, &payload); err != nil {
		return nil, err
	}
	e.Source = model.Source(source)
	e.Kind = model.Kind(kind)
	e.Level = model.Level(level)
	if payload != nil {
		e.Payload = payload
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func rawOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
