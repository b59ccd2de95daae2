// Package store persists scoring runs, their parcel scores, and raw
// Overpass responses in SQLite or Postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landscore/internal/scoring"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run states.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams describes a run at creation time.
type RunParams struct {
	CRS       string `json:"crs"`
	BBox      string `json:"bbox,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Run is one invocation of the scoring pipeline.
type Run struct {
	ID        string           `json:"id"`
	Status    RunStatus        `json:"status"`
	Params    RunParams        `json:"params"`
	Summary   *scoring.Summary `json:"summary,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ScoreRow is a persisted parcel score.
type ScoreRow struct {
	ParcelID     int            `json:"id"`
	SourceID     string         `json:"source_id,omitempty"`
	OverallScore float64        `json:"overallScore"`
	Geometry     orb.Geometry   `json:"-"`
	Properties   map[string]any `json:"properties"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) limit() int {
	if p.Limit <= 0 {
		return 1000
	}
	return p.Limit
}

// Store is the persistence interface for runs and the Overpass cache.
type Store interface {
	CreateRun(ctx context.Context, params RunParams) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus, summary *scoring.Summary, runErr string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	SaveScores(ctx context.Context, runID string, srid int, rows []ScoreRow) (int64, error)
	ListScores(ctx context.Context, runID string, page Page) ([]ScoreRow, error)

	GetCachedQuery(ctx context.Context, key string) ([]byte, bool, error)
	SetCachedQuery(ctx context.Context, key string, data []byte) error

	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock clockwork.Clock
	pool  PoolConfig
}

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPool sizes the Postgres connection pool. Zero values keep the defaults.
func WithPool(p PoolConfig) Option {
	return func(o *options) { o.pool = p }
}

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Open returns a migrated store for driver "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		s, err = NewSQLite(dsn, opts...)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, opts...)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
