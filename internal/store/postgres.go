package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landscore/internal/scoring"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool  Pool
	clock clockwork.Clock
}

// PoolConfig holds optional connection pool sizing.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	poolCfg := buildOptions(opts).pool
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg.MaxConns > 0 {
		pgxCfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		pgxCfg.MinConns = poolCfg.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, opts...), nil
}

func newPostgresStore(pool Pool, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{pool: pool, clock: o.clock}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	summary    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS parcel_scores (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	parcel_id     INTEGER NOT NULL,
	source_id     TEXT NOT NULL DEFAULT '',
	overall_score DOUBLE PRECISION NOT NULL,
	srid          INTEGER NOT NULL DEFAULT 0,
	geom          BYTEA,
	properties    JSONB NOT NULL,
	PRIMARY KEY (run_id, parcel_id)
);

CREATE TABLE IF NOT EXISTS overpass_cache (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params RunParams) (*Run, error) {
	id := uuid.New().String()
	now := s.clock.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status RunStatus, summary *scoring.Summary, runErr string) error {
	var summaryJSON []byte
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal summary")
		}
		summaryJSON = b
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), summaryJSON, runErr, s.clock.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, params, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, params, summary, error, created_at, updated_at FROM runs
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, max(0, filter.Offset),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var scoreColumns = []string{"run_id", "parcel_id", "source_id", "overall_score", "srid", "geom", "properties"}

// SaveScores bulk-loads rows with COPY.
func (s *PostgresStore) SaveScores(ctx context.Context, runID string, srid int, rows []ScoreRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	data := make([][]any, len(rows))
	for i, r := range rows {
		values, err := scoreValues(r, srid)
		if err != nil {
			return 0, err
		}
		data[i] = append([]any{runID}, values...)
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"parcel_scores"}, scoreColumns, pgx.CopyFromRows(data))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: COPY INTO parcel_scores")
	}
	return n, nil
}

func (s *PostgresStore) ListScores(ctx context.Context, runID string, page Page) ([]ScoreRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT parcel_id, source_id, overall_score, geom, properties FROM parcel_scores
		 WHERE run_id = $1 ORDER BY parcel_id LIMIT $2 OFFSET $3`,
		runID, page.limit(), max(0, page.Offset),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var (
			r     ScoreRow
			geomB []byte
			props []byte
		)
		if err := rows.Scan(&r.ParcelID, &r.SourceID, &r.OverallScore, &geomB, &props); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		if err := decodeScore(&r, geomB, props); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scores iterate")
}

func (s *PostgresStore) GetCachedQuery(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM overpass_cache WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached query")
	}
	return data, true, nil
}

func (s *PostgresStore) SetCachedQuery(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO overpass_cache (key, data, fetched_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, fetched_at = EXCLUDED.fetched_at`,
		key, data, s.clock.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set cached query")
}
