// Package postgres is the pgx-backed ResourceStore. Records are unique on
// (source, source_id) and written with last-write-wins upserts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS disaster_resources (
	id               BIGSERIAL PRIMARY KEY,
	source           TEXT NOT NULL,
	source_id        TEXT NOT NULL,
	name             TEXT NOT NULL CHECK (name <> ''),
	category         TEXT NOT NULL,
	categories       TEXT[] NOT NULL DEFAULT '{}',
	description      TEXT NOT NULL DEFAULT '',
	phone            TEXT,
	website          TEXT,
	email            TEXT,
	address          TEXT,
	city             TEXT,
	state            TEXT,
	postal_code      TEXT NOT NULL,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	distance_mi      DOUBLE PRECISION,
	hours            TEXT,
	last_seen_at     TIMESTAMPTZ NOT NULL,
	last_verified_at TIMESTAMPTZ NOT NULL,
	is_archived      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_id)
);
CREATE INDEX IF NOT EXISTS disaster_resources_postal_seen_idx
	ON disaster_resources (postal_code, last_seen_at DESC) WHERE NOT is_archived;
`

const upsertSQL = `
INSERT INTO disaster_resources (
	source, source_id, name, category, categories, description,
	phone, website, email, address, city, state, postal_code,
	latitude, longitude, distance_mi, hours, last_seen_at, last_verified_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
)
ON CONFLICT (source, source_id) DO UPDATE SET
	name             = EXCLUDED.name,
	category         = EXCLUDED.category,
	categories       = EXCLUDED.categories,
	description      = EXCLUDED.description,
	phone            = EXCLUDED.phone,
	website          = EXCLUDED.website,
	email            = EXCLUDED.email,
	address          = EXCLUDED.address,
	city             = EXCLUDED.city,
	state            = EXCLUDED.state,
	postal_code      = EXCLUDED.postal_code,
	latitude         = EXCLUDED.latitude,
	longitude        = EXCLUDED.longitude,
	distance_mi      = EXCLUDED.distance_mi,
	hours            = EXCLUDED.hours,
	last_seen_at     = EXCLUDED.last_seen_at,
	last_verified_at = EXCLUDED.last_verified_at,
	is_archived      = FALSE
`

const freshSQL = `
SELECT source, source_id, name, category, categories, description,
	phone, website, email, address, city, state, postal_code,
	latitude, longitude, distance_mi, hours, last_seen_at, last_verified_at
FROM disaster_resources
WHERE postal_code = $1 AND last_seen_at >= $2 AND NOT is_archived
ORDER BY distance_mi ASC NULLS LAST, name ASC
`

// Store implements pipeline.ResourceStore on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ pipeline.ResourceStore = (*Store)(nil)

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int32, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connection established", "max_conns", maxConns)
	return &Store{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the resources table and index when missing. Intended
// for local runs; managed deployments apply the same DDL as a migration.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return wrapError("ensure schema", err)
	}
	return nil
}

func (s *Store) FreshResources(ctx context.Context, postalCode string, since time.Time) ([]domain.ResourceRecord, time.Time, error) {
	rows, err := s.pool.Query(ctx, freshSQL, postalCode, since)
	if err != nil {
		return nil, time.Time{}, wrapError("query fresh resources", err)
	}
	defer rows.Close()

	var (
		out    []domain.ResourceRecord
		newest time.Time
	)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, time.Time{}, wrapError("scan resource", err)
		}
		if r.LastSeenAt.After(newest) {
			newest = r.LastSeenAt
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, wrapError("iterate resources", err)
	}
	return out, newest, nil
}

// UpsertResources writes all records in one transaction using a pipelined
// batch, so a failed statement leaves the previous rows untouched.
func (s *Store) UpsertResources(ctx context.Context, records []domain.ResourceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapError("begin upsert", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertSQL, upsertArgs(r)...)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return wrapError(fmt.Sprintf("upsert %s", records[i].Key()), err)
		}
	}
	if err := br.Close(); err != nil {
		return wrapError("close upsert batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError("commit upsert", err)
	}
	s.logger.Debug("upserted resources", "count", len(records))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func upsertArgs(r domain.ResourceRecord) []any {
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	return []any{
		string(r.Source), r.SourceID, r.Name, r.Category, categories, r.Description,
		r.Phone, r.Website, r.Email, r.Address, r.City, r.State, r.PostalCode,
		r.Latitude, r.Longitude, r.DistanceMi, r.Hours, r.LastSeenAt, r.LastVerifiedAt,
	}
}

func scanRecord(row pgx.Row) (domain.ResourceRecord, error) {
	var (
		r      domain.ResourceRecord
		source string
	)
	err := row.Scan(
		&source, &r.SourceID, &r.Name, &r.Category, &r.Categories, &r.Description,
		&r.Phone, &r.Website, &r.Email, &r.Address, &r.City, &r.State, &r.PostalCode,
		&r.Latitude, &r.Longitude, &r.DistanceMi, &r.Hours, &r.LastSeenAt, &r.LastVerifiedAt,
	)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	r.Source = domain.Source(source)
	r.LastSeenAt = r.LastSeenAt.UTC()
	r.LastVerifiedAt = r.LastVerifiedAt.UTC()
	return r, nil
}

// wrapError tags err with a persistence reason derived from its SQLSTATE.
func wrapError(op string, err error) error {
	return &domain.PersistenceError{Reason: Classify(err), Err: fmt.Errorf("%s: %w", op, err)}
}

// Classify maps a pgx error onto "connection", "constraint", "timeout" or
// "other".
func Classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return "constraint"
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return "connection"
		case pgErr.Code == pgerrcode.QueryCanceled:
			return "timeout"
		default:
			return "other"
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return "connection"
	}
	return "other"
}
