package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fairscan/leadmerge-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":      `INSERT INTO runs (id, status, scan_path, sheet_path, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_run":         `SELECT id, status, scan_path, sheet_path, output_path, stats, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_cached_site": `SELECT url, text, fetched_at, expires_at FROM site_cache WHERE url = $1 AND expires_at > now()`,
	"set_cached_site": `INSERT INTO site_cache (url, text, fetched_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (url) DO UPDATE SET text = $2, fetched_at = $3, expires_at = $4`,
	"get_quota":       `SELECT day, crawls, extractions FROM quota_usage WHERE day = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status      TEXT NOT NULL DEFAULT 'running',
	scan_path   TEXT,
	sheet_path  TEXT,
	output_path TEXT,
	stats       JSONB,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS site_cache (
	url        TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_usage (
	day         TEXT PRIMARY KEY,
	crawls      INTEGER NOT NULL DEFAULT 0,
	extractions INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_site_cache_expires_at ON site_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, scanPath, sheetPath string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, scan_path, sheet_path, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(model.RunStatusRunning), scanPath, sheetPath, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		ScanPath:  scanPath,
		SheetPath: sheetPath,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID, outputPath string, stats *model.MergeStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, output_path = $2, stats = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), outputPath, statsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, scan_path, sheet_path, output_path, stats, error, created_at, updated_at
		 FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, scan_path, sheet_path, output_path, stats, error, created_at, updated_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedSite(ctx context.Context, url string) (*model.CachedSite, error) {
	var cs model.CachedSite
	err := s.pool.QueryRow(ctx,
		`SELECT url, text, fetched_at, expires_at FROM site_cache
		 WHERE url = $1 AND expires_at > now()`,
		url,
	).Scan(&cs.URL, &cs.Text, &cs.FetchedAt, &cs.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached site")
	}
	return &cs, nil
}

func (s *PostgresStore) SetCachedSite(ctx context.Context, url, text string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO site_cache (url, text, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET text = $2, fetched_at = $3, expires_at = $4`,
		url, text, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached site")
}

func (s *PostgresStore) DeleteExpiredSites(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM site_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired sites")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) IncrQuota(ctx context.Context, day string, crawls, extractions int) (*model.QuotaUsage, error) {
	var q model.QuotaUsage
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quota_usage (day, crawls, extractions) VALUES ($1, $2, $3)
		 ON CONFLICT (day) DO UPDATE SET crawls = quota_usage.crawls + $2, extractions = quota_usage.extractions + $3
		 RETURNING day, crawls, extractions`,
		day, crawls, extractions,
	).Scan(&q.Day, &q.Crawls, &q.Extractions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: incr quota")
	}
	return &q, nil
}

func (s *PostgresStore) GetQuota(ctx context.Context, day string) (*model.QuotaUsage, error) {
	q := model.QuotaUsage{Day: day}
	err := s.pool.QueryRow(ctx,
		`SELECT day, crawls, extractions FROM quota_usage WHERE day = $1`,
		day,
	).Scan(&q.Day, &q.Crawls, &q.Extractions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &q, nil
		}
		return nil, eris.Wrap(err, "postgres: get quota")
	}
	return &q, nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var scanPath, sheetPath, outputPath, errMsg *string
	var statsJSON []byte

	err := row.Scan(&r.ID, &r.Status, &scanPath, &sheetPath, &outputPath, &statsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if scanPath != nil {
		r.ScanPath = *scanPath
	}
	if sheetPath != nil {
		r.SheetPath = *sheetPath
	}
	if outputPath != nil {
		r.OutputPath = *outputPath
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if statsJSON != nil {
		r.Stats = &model.MergeStats{}
		if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "unmarshal stats")
		}
	}
	return &r, nil
}
