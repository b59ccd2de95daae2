// Package dispatch scores parcels in parallel over contiguous chunks while
// keeping ids tied to input order.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/model"
	"github.com/sells-group/landscore/internal/scoring"
)

// Scorer scores one parcel against a zone index.
type Scorer interface {
	Score(p model.Parcel, ix *scoring.Index) model.Score
}

// Chunk is the half-open parcel range [Start, End).
type Chunk struct {
	Start, End int
}

func (c Chunk) String() string { return fmt.Sprintf("[%d,%d)", c.Start, c.End) }

// Len returns the number of parcels in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// ChunkResult reports the outcome of one chunk.
type ChunkResult struct {
	Chunk   Chunk
	Elapsed time.Duration
	Err     error
}

// ChunkError is a failed chunk and its cause.
type ChunkError struct {
	Chunk Chunk
	Err   error
}

// PartialError is returned alongside the successful results when one or more
// chunks failed. The missing parcels are exactly the failed ranges.
type PartialError struct {
	Total  int
	Failed []ChunkError
}

func (e *PartialError) Error() string {
	parts := make([]string, len(e.Failed))
	missing := 0
	for i, f := range e.Failed {
		parts[i] = f.Chunk.String() + ": " + f.Err.Error()
		missing += f.Chunk.Len()
	}
	return fmt.Sprintf("dispatch: %d of %d parcels not scored: %s", missing, e.Total, strings.Join(parts, "; "))
}

// Options configures a run.
type Options struct {
	// Workers bounds concurrent chunks. Zero uses DefaultWorkers.
	Workers int
	Clock   clockwork.Clock
	// OnChunkDone is called once per chunk, from the worker goroutine.
	OnChunkDone func(ChunkResult)
}

// DefaultWorkers leaves one CPU free.
func DefaultWorkers() int {
	return max(1, runtime.GOMAXPROCS(0)-1)
}

// Chunks splits n items into contiguous ranges of max(1, n/workers) items.
// The tail range may be shorter, and there may be more ranges than workers.
func Chunks(n, workers int) []Chunk {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	size := max(1, n/workers)
	out := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, Chunk{Start: start, End: min(start+size, n)})
	}
	return out
}

// Run scores every parcel. Each chunk builds its own index over zones. The
// returned slice is in input order; parcel i gets id i. When some chunks
// fail the successful results are still returned with a *PartialError.
func Run(ctx context.Context, parcels []model.Parcel, zones []model.Zone, proj *geometry.Projector, scorer Scorer, opts Options) ([]model.Scored, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := zap.L().With(zap.String("component", "dispatch"))

	chunks := Chunks(len(parcels), workers)
	log.Info("scoring parcels",
		zap.Int("parcels", len(parcels)),
		zap.Int("zones", len(zones)),
		zap.Int("workers", workers),
		zap.Int("chunks", len(chunks)),
	)

	results := make([]model.Scored, len(parcels))
	done := make([]bool, len(chunks))
	var (
		mu     sync.Mutex
		failed []ChunkError
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for ci, c := range chunks {
		g.Go(func() error {
			start := clock.Now()
			err := scoreChunk(ctx, c, parcels, zones, proj, scorer, results)
			res := ChunkResult{Chunk: c, Elapsed: clock.Since(start), Err: err}

			mu.Lock()
			if err != nil {
				failed = append(failed, ChunkError{Chunk: c, Err: err})
			} else {
				done[ci] = true
			}
			mu.Unlock()

			if err != nil {
				log.Error("chunk failed", zap.Stringer("chunk", c), zap.Error(err))
			} else {
				log.Debug("chunk scored", zap.Stringer("chunk", c), zap.Duration("elapsed", res.Elapsed))
			}
			if opts.OnChunkDone != nil {
				opts.OnChunkDone(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dispatch: run cancelled")
	}

	out := make([]model.Scored, 0, len(parcels))
	for ci, c := range chunks {
		if done[ci] {
			out = append(out, results[c.Start:c.End]...)
		}
	}
	if len(failed) > 0 {
		slices.SortFunc(failed, func(a, b ChunkError) int { return a.Chunk.Start - b.Chunk.Start })
		return out, &PartialError{Total: len(parcels), Failed: failed}
	}
	return out, nil
}

func scoreChunk(ctx context.Context, c Chunk, parcels []model.Parcel, zones []model.Zone, proj *geometry.Projector, scorer Scorer, results []model.Scored) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("dispatch: chunk %s panicked: %v", c, r)
		}
	}()

	ix := scoring.NewIndex(zones, proj)
	for i := c.Start; i < c.End; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := scorer.Score(parcels[i], ix)
		s.ID = i
		results[i] = model.Scored{Parcel: parcels[i], Score: s}
	}
	return nil
}

